// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package expand implements the word expansion that a shell performs
// between parsing a command and executing it: tilde, parameter,
// command substitution, arithmetic, brace, and pathname expansion, in
// that order, honoring the quoting context each piece of a word came
// from.
package expand

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os/user"
	"regexp"
	"slices"
	"strings"

	"github.com/hsh-shell/hsh/pattern"
	"github.com/hsh-shell/hsh/syntax"
)

// Config defines how to expand a word. Env must not be nil; the other
// fields disable their feature when left unset.
type Config struct {
	// Env is used to get and set environment variables when performing
	// shell expansions. Special parameters such as "?", "#" and the
	// positionals are resolved through it too, so callers embedding an
	// interpreter should answer those names from their shell state.
	Env Environ

	// CmdSubst expands a command substitution body, writing its
	// standard output to the provided writer.
	//
	// If nil, encountering a command substitution is an error.
	CmdSubst func(io.Writer, string) error

	// ReadDir is used for pathname expansion. If nil, glob patterns
	// are left in place verbatim.
	ReadDir func(string) ([]fs.DirEntry, error)

	// Dir is the working directory that relative glob patterns are
	// resolved against.
	Dir string
}

// UnexpectedCommandError is returned if a command substitution is
// encountered when [Config.CmdSubst] is nil.
type UnexpectedCommandError struct {
	Src string
}

func (u UnexpectedCommandError) Error() string {
	return fmt.Sprintf("unexpected command substitution: $(%s)", u.Src)
}

func (cfg *Config) envGet(name string) string {
	return cfg.Env.Get(name).String()
}

// field is a string being built up during expansion, with a parallel
// per-byte mask recording which bytes came from quoted or escaped
// source text. The mask is what lets brace expansion and globbing skip
// quoted metacharacters.
type field struct {
	text   []byte
	quoted []bool
}

func (f *field) add(s string, quoted bool) {
	f.text = append(f.text, s...)
	for i := 0; i < len(s); i++ {
		f.quoted = append(f.quoted, quoted)
	}
}

func (f *field) addField(other *field) {
	f.text = append(f.text, other.text...)
	f.quoted = append(f.quoted, other.quoted...)
}

func (f *field) slice(i, j int) *field {
	return &field{text: f.text[i:j], quoted: f.quoted[i:j]}
}

func (f *field) str() string { return string(f.text) }

// pat renders the field as a shell pattern, escaping any quoted bytes
// so that they only match literally.
func (f *field) pat() string {
	var sb strings.Builder
	for i, b := range f.text {
		if f.quoted[i] {
			switch b {
			case '*', '?', '[', '\\':
				sb.WriteByte('\\')
			}
		}
		sb.WriteByte(b)
	}
	return sb.String()
}

// Fields expands a number of words as if they were arguments in a
// shell command. This includes all the shell expansion phases in
// order; brace expansion and globbing mean one word may expand to any
// number of fields.
func Fields(cfg *Config, words ...*syntax.Word) ([]string, error) {
	fields := make([]string, 0, len(words))
	for _, word := range words {
		f, err := cfg.wordField(word)
		if err != nil {
			return nil, err
		}
		if len(f.text) == 0 && !strings.ContainsAny(word.Text, `'"`) {
			// a word without quotes that expands to nothing yields no field
			continue
		}
		for _, bf := range braceExpand(f) {
			fields = append(fields, cfg.glob(bf)...)
		}
	}
	return fields, nil
}

// Literal expands a single word without brace expansion or globbing,
// the way assignment values and redirection targets are expanded.
func Literal(cfg *Config, word *syntax.Word) (string, error) {
	f, err := cfg.wordField(word)
	if err != nil {
		return "", err
	}
	return f.str(), nil
}

// Pattern expands a single word as a shell pattern: quoted pieces have
// their pattern metacharacters escaped, so that they match literally.
// The result is suitable for [pattern.Regexp] or [pattern.Match].
func Pattern(cfg *Config, word *syntax.Word) (string, error) {
	f, err := cfg.wordField(word)
	if err != nil {
		return "", err
	}
	return f.pat(), nil
}

// wordField runs the tilde, parameter, command substitution and
// arithmetic phases over one word, producing a single field.
func (cfg *Config) wordField(word *syntax.Word) (*field, error) {
	text := word.Text
	f := &field{}
	if !word.LeadingQuoted && strings.HasPrefix(text, "~") {
		rest, home, ok := cfg.tilde(text)
		if ok {
			// The looked-up path must not glob nor brace-expand.
			f.add(home, true)
			text = rest
		}
	}
	if err := cfg.scan(f, text, false); err != nil {
		return nil, err
	}
	return f, nil
}

// tilde classifies the head of a tilde-prefixed word and resolves it:
// "~" to HOME, "~+" to PWD, "~-" to OLDPWD, and "~user" through the
// passwd database. Any lookup failure leaves the word alone.
func (cfg *Config) tilde(text string) (rest, home string, ok bool) {
	head, rest, found := strings.Cut(text[1:], "/")
	if found {
		rest = "/" + rest
	}
	switch head {
	case "":
		home = cfg.envGet("HOME")
		if home == "" {
			if u, err := user.Current(); err == nil {
				home = u.HomeDir
			}
		}
	case "+":
		home = cfg.envGet("PWD")
	case "-":
		home = cfg.envGet("OLDPWD")
	default:
		u, err := user.Lookup(head)
		if err != nil {
			return "", "", false
		}
		home = u.HomeDir
	}
	if home == "" {
		return "", "", false
	}
	return rest, home, true
}

// scan walks the raw text of a word, resolving quotes, escapes, and
// the embedded expansions the lexer absorbed. Inside double quotes
// (and for expansion results within them), produced bytes are marked
// quoted.
func (cfg *Config) scan(f *field, text string, quoted bool) error {
	for i := 0; i < len(text); i++ {
		b := text[i]
		switch {
		case !quoted && b == '\'':
			end := strings.IndexByte(text[i+1:], '\'')
			if end < 0 { // the lexer rejects these; be safe
				f.add(text[i:], true)
				return nil
			}
			f.add(text[i+1:i+1+end], true)
			i += end + 1
		case !quoted && b == '"':
			end, err := dquoteEnd(text[i+1:])
			if err != nil {
				f.add(text[i:], true)
				return nil
			}
			if err := cfg.scan(f, text[i+1:i+1+end], true); err != nil {
				return err
			}
			i += end + 1
		case b == '\\':
			if i+1 >= len(text) {
				f.add(`\`, false)
				break
			}
			c := text[i+1]
			if quoted {
				// inside double quotes only a handful of
				// escapes are special
				switch c {
				case '$', '`', '"', '\\':
					f.add(string(c), true)
				case '\n':
					// line continuation, dropped
				default:
					f.add(`\`, true)
					f.add(string(c), true)
				}
			} else if c == '\n' {
				// line continuation, dropped
			} else {
				f.add(string(c), true)
			}
			i++
		case b == '$':
			n, err := cfg.scanDollar(f, text[i:], quoted)
			if err != nil {
				return err
			}
			i += n - 1
		case b == '`':
			end := backquoteEnd(text[i+1:])
			if end < 0 {
				f.add(text[i:], quoted)
				return nil
			}
			out, err := cfg.cmdSubst(unescapeBackquotes(text[i+1 : i+1+end]))
			if err != nil {
				return err
			}
			f.add(out, quoted)
			i += end + 1
		default:
			f.add(string(b), quoted)
		}
	}
	return nil
}

// scanDollar handles one "$..." occurrence at the start of text,
// returning how many input bytes it consumed.
func (cfg *Config) scanDollar(f *field, text string, quoted bool) (int, error) {
	if len(text) < 2 {
		f.add("$", quoted)
		return 1, nil
	}
	switch c := text[1]; {
	case c == '(' && strings.HasPrefix(text, "$(("):
		end := balancedEnd(text[3:], '(', ')')
		if end < 0 || !strings.HasPrefix(text[3+end:], "))") {
			f.add(text, quoted)
			return len(text), nil
		}
		res, err := cfg.arithm(text[3 : 3+end])
		if err != nil {
			return 0, err
		}
		f.add(res, quoted)
		return 3 + end + 2, nil
	case c == '(':
		end := balancedEnd(text[2:], '(', ')')
		if end < 0 {
			f.add(text, quoted)
			return len(text), nil
		}
		out, err := cfg.cmdSubst(text[2 : 2+end])
		if err != nil {
			return 0, err
		}
		f.add(out, quoted)
		return 2 + end + 1, nil
	case c == '{':
		end := balancedEnd(text[2:], '{', '}')
		if end < 0 {
			f.add(text, quoted)
			return len(text), nil
		}
		if err := cfg.paramExp(f, text[2:2+end], quoted); err != nil {
			return 0, err
		}
		return 2 + end + 1, nil
	case isNameByte(c, false):
		n := 2
		for n < len(text) && isNameByte(text[n], true) {
			n++
		}
		name := text[1:n]
		f.add(cfg.envGet(name), quoted)
		return n, nil
	case isSpecialParam(c):
		f.add(cfg.envGet(string(c)), quoted)
		return 2, nil
	default:
		// a lone dollar is literal
		f.add("$", quoted)
		return 1, nil
	}
}

// cmdSubst runs a command substitution body and captures its output,
// with trailing newlines stripped.
func (cfg *Config) cmdSubst(src string) (string, error) {
	if cfg.CmdSubst == nil {
		return "", UnexpectedCommandError{Src: src}
	}
	var buf bytes.Buffer
	if err := cfg.CmdSubst(&buf, src); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func isNameByte(b byte, cont bool) bool {
	switch {
	case b == '_', b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z':
		return true
	case b >= '0' && b <= '9':
		return cont
	}
	return false
}

func isSpecialParam(b byte) bool {
	switch b {
	case '?', '$', '!', '#', '*', '@', '-':
		return true
	}
	return b >= '0' && b <= '9'
}

// dquoteEnd finds the index of the closing double quote in s, skipping
// escapes and embedded expansions.
func dquoteEnd(s string) (int, error) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			return i, nil
		case '\\':
			i++
		case '$':
			if i+1 < len(s) {
				switch s[i+1] {
				case '(':
					open, close := byte('('), byte(')')
					if end := balancedEnd(s[i+2:], open, close); end >= 0 {
						i += 2 + end
					}
				case '{':
					if end := balancedEnd(s[i+2:], '{', '}'); end >= 0 {
						i += 2 + end
					}
				}
			}
		case '`':
			if end := backquoteEnd(s[i+1:]); end >= 0 {
				i += 1 + end
			}
		}
	}
	return 0, fmt.Errorf("unterminated double-quoted string")
}

// balancedEnd returns the index of the byte that closes an already
// open bracket pair, or -1. Quoted segments do not affect the depth.
func balancedEnd(s string, open, close byte) int {
	depth := 1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '\'':
			if end := strings.IndexByte(s[i+1:], '\''); end >= 0 {
				i += 1 + end
			}
		case '"':
			if end, err := dquoteEnd(s[i+1:]); err == nil {
				i += 1 + end
			}
		case open:
			depth++
		case close:
			if depth--; depth == 0 {
				return i
			}
		}
	}
	return -1
}

// backquoteEnd returns the index of the closing backquote, or -1.
func backquoteEnd(s string) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '`':
			return i
		}
	}
	return -1
}

// unescapeBackquotes undoes the escapes that are special within a
// backquoted command substitution: \$, \` and \\.
func unescapeBackquotes(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '$', '`', '\\':
				i++
				sb.WriteByte(s[i])
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// glob runs pathname expansion over one brace-expanded field. A
// pattern with no matches expands to itself verbatim.
func (cfg *Config) glob(f *field) []string {
	pat := f.pat()
	if cfg.ReadDir == nil || !pattern.HasMeta(pat) {
		return []string{f.str()}
	}
	matches := cfg.globPath(pat)
	if len(matches) == 0 {
		return []string{f.str()}
	}
	slices.Sort(matches)
	return matches
}

// globPath matches a slash-separated pattern against the filesystem,
// one path component at a time.
func (cfg *Config) globPath(pat string) []string {
	prefixes := []string{""}
	if strings.HasPrefix(pat, "/") {
		prefixes = []string{"/"}
		pat = strings.TrimLeft(pat, "/")
	}
	parts := strings.Split(pat, "/")
	for _, part := range parts {
		if part == "" {
			continue
		}
		var next []string
		for _, dir := range prefixes {
			next = append(next, cfg.globDir(dir, part)...)
		}
		prefixes = next
		if len(prefixes) == 0 {
			return nil
		}
	}
	return prefixes
}

// globDir expands one pattern component within dir, an
// already-matched prefix ("" meaning the working directory).
func (cfg *Config) globDir(dir, part string) []string {
	entries, err := cfg.ReadDir(cfg.physicalDir(dir))
	if err != nil {
		return nil
	}
	if !pattern.HasMeta(part) {
		name := unescapePattern(part)
		for _, entry := range entries {
			if entry.Name() == name {
				return []string{joinGlob(dir, name)}
			}
		}
		return nil
	}
	expr, err := pattern.Regexp(part, pattern.Filenames|pattern.EntireString)
	if err != nil {
		return nil
	}
	rx, err := regexp.Compile(expr)
	if err != nil {
		return nil
	}
	// hidden names only match patterns that literally start with a dot
	matchHidden := strings.HasPrefix(part, ".") || strings.HasPrefix(part, `\.`)
	var matches []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") && !matchHidden {
			continue
		}
		if rx.MatchString(name) {
			matches = append(matches, joinGlob(dir, name))
		}
	}
	return matches
}

func (cfg *Config) physicalDir(dir string) string {
	switch {
	case dir == "":
		if cfg.Dir == "" {
			return "."
		}
		return cfg.Dir
	case strings.HasPrefix(dir, "/"):
		return dir
	case cfg.Dir == "":
		return dir
	default:
		return cfg.Dir + "/" + dir
	}
}

func joinGlob(dir, name string) string {
	switch dir {
	case "":
		return name
	case "/":
		return "/" + name
	default:
		return dir + "/" + name
	}
}

func unescapePattern(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
