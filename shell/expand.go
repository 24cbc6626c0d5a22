// Copyright (c) 2018, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package shell contains high-level features that use the syntax,
// expand, and interp packages under the hood.
//
// Please note that this package uses POSIX Shell syntax. As such,
// path names on Windows with back slashes and drive letters won't
// work as expected.
package shell

import (
	"os"

	"github.com/hsh-shell/hsh/expand"
	"github.com/hsh-shell/hsh/syntax"
)

// Expand performs shell expansion on s as if it were a single shell
// word, using env to resolve variables. This includes parameter
// expansion and arithmetic, but not brace expansion or globbing.
//
// If env is nil, the current environment variables are used. Empty
// variables are treated as unset; to support variables which are set
// but empty, use the expand package directly.
//
// Command substitutions like $(echo foo) aren't supported to avoid
// running arbitrary code. To support those, use an interpreter with
// the interp package.
func Expand(s string, env func(string) string) (string, error) {
	cfg := prepareConfig(env)
	word := &syntax.Word{Text: s, TokenKind: syntax.WORD, LeadingQuoted: true}
	return expand.Literal(cfg, word)
}

// Fields performs shell expansion on s as if it were a command's
// arguments, using env to resolve variables. It is similar to Expand,
// but includes brace expansion, tilde expansion, and globbing.
//
// If env is nil, the current environment variables are used. Empty
// variables are treated as unset; to support variables which are set
// but empty, use the expand package directly.
func Fields(s string, env func(string) string) ([]string, error) {
	cfg := prepareConfig(env)
	cfg.ReadDir = os.ReadDir
	var words []*syntax.Word
	lex := syntax.NewLexer([]byte(s))
	for {
		tok := lex.Next()
		if !tok.Kind.IsWordToken() {
			break
		}
		words = append(words, &syntax.Word{
			Position:      tok.Pos,
			Text:          tok.Text,
			TokenKind:     tok.Kind,
			LeadingQuoted: tok.LeadingQuoted,
		})
	}
	return expand.Fields(cfg, words...)
}

func prepareConfig(env func(string) string) *expand.Config {
	if env == nil {
		env = os.Getenv
	}
	return &expand.Config{Env: expand.FuncEnviron(env)}
}
