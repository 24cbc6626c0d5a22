// Copyright (c) 2018, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/go-cmp/cmp"

	"github.com/hsh-shell/hsh/syntax"
)

func testCfg(tb testing.TB, pairs ...string) *Config {
	return &Config{
		Env: ListEnviron(append([]string{
			"HOME=/home/user",
			"PWD=/tmp/pwd",
			"FOO=bar",
			"EMPTY=",
		}, pairs...)...),
		CmdSubst: func(w io.Writer, src string) error {
			// stand-in for an interpreter: echo back the source
			_, err := fmt.Fprintf(w, "out(%s)\n", src)
			return err
		},
	}
}

func word(text string, quoted bool) *syntax.Word {
	return &syntax.Word{Text: text, TokenKind: syntax.WORD, LeadingQuoted: quoted}
}

var literalTests = []struct {
	src    string
	quoted bool
	want   string
}{
	{src: "foo", want: "foo"},
	{src: "'single $FOO'", quoted: true, want: "single $FOO"},
	{src: `"double $FOO"`, quoted: true, want: "double bar"},
	{src: `\$FOO`, quoted: true, want: "$FOO"},
	{src: "$FOO", want: "bar"},
	{src: "${FOO}", want: "bar"},
	{src: "${FOO}x", want: "barx"},
	{src: "$FOO/baz", want: "bar/baz"},
	{src: "$MISSING", want: ""},
	{src: "${MISSING:-def}", want: "def"},
	{src: "${MISSING:-$FOO}", want: "bar"},
	// an empty-but-set variable wins over the default
	{src: "${EMPTY:-def}", want: ""},
	{src: "~", want: "/home/user"},
	{src: "~/x", want: "/home/user/x"},
	{src: "~+", want: "/tmp/pwd"},
	// OLDPWD is unset, so the word stays verbatim
	{src: "~-", want: "~-"},
	{src: "~nosuchuserhopefully42", want: "~nosuchuserhopefully42"},
	{src: "$(echo hi)", want: "out(echo hi)"},
	{src: "`echo hi`", want: "out(echo hi)"},
	{src: "x$(inner)y", want: "xout(inner)y"},
	{src: "$((2 + 3 * 4))", want: "14"},
	{src: "$((2**3))", want: "8"},
	{src: "a$$b", want: "ab"}, // "$$" resolves via Env; unset here
}

func TestLiteral(t *testing.T) {
	t.Parallel()
	cfg := testCfg(t)
	for _, tc := range literalTests {
		t.Run(tc.src, func(t *testing.T) {
			got, err := Literal(cfg, word(tc.src, tc.quoted))
			if err != nil {
				t.Fatalf("Literal(%q) error: %v", tc.src, err)
			}
			if got != tc.want {
				t.Fatalf("Literal(%q) = %q, want %q", tc.src, got, tc.want)
			}
		})
	}
}

func TestLiteralTildeSkipsQuotedWords(t *testing.T) {
	t.Parallel()
	cfg := testCfg(t)
	got, err := Literal(cfg, word(`'~'`, true))
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, got, qt.Equals, "~")
}

var fieldsTests = []struct {
	src  string
	want []string
}{
	{src: "foo", want: []string{"foo"}},
	{src: "{a,b}", want: []string{"a", "b"}},
	{src: "{a,b}{1,2}", want: []string{"a1", "a2", "b1", "b2"}},
	{src: "x{a,{b,c}}y", want: []string{"xay", "xby", "xcy"}},
	{src: "{1..4}", want: []string{"1", "2", "3", "4"}},
	{src: "{3..1}", want: []string{"3", "2", "1"}},
	{src: "{a..c}", want: []string{"a", "b", "c"}},
	{src: "{a,b", want: []string{"{a,b"}},
	{src: "{ab}", want: []string{"{ab}"}},
	{src: `'{a,b}'`, want: []string{"{a,b}"}},
	{src: `"{a,b}"`, want: []string{"{a,b}"}},
	{src: "$FOO{1,2}", want: []string{"bar1", "bar2"}},
}

func TestFields(t *testing.T) {
	t.Parallel()
	cfg := testCfg(t)
	for _, tc := range fieldsTests {
		t.Run(tc.src, func(t *testing.T) {
			got, err := Fields(cfg, word(tc.src, false))
			if err != nil {
				t.Fatalf("Fields(%q) error: %v", tc.src, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("Fields(%q) mismatch (-want +got):\n%s", tc.src, diff)
			}
		})
	}
}

func TestFieldsGlob(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for _, name := range []string{"a.go", "b.go", "c.txt", ".hidden.go"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o666); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o777); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "d.go"), nil, 0o666); err != nil {
		t.Fatal(err)
	}

	cfg := testCfg(t)
	cfg.ReadDir = os.ReadDir
	cfg.Dir = dir

	for _, tc := range []struct {
		src  string
		want []string
	}{
		{src: "*.go", want: []string{"a.go", "b.go"}},
		{src: "?.go", want: []string{"a.go", "b.go"}},
		{src: "[ab].go", want: []string{"a.go", "b.go"}},
		{src: "[!a].go", want: []string{"b.go"}},
		{src: ".*.go", want: []string{".hidden.go"}},
		{src: "sub/*.go", want: []string{"sub/d.go"}},
		{src: "*/d.go", want: []string{"sub/d.go"}},
		{src: "*.nomatch", want: []string{"*.nomatch"}},
		{src: `\*.go`, want: []string{"*.go"}},
		{src: `'*'.go`, want: []string{"*.go"}},
	} {
		t.Run(tc.src, func(t *testing.T) {
			got, err := Fields(cfg, word(tc.src, false))
			if err != nil {
				t.Fatalf("Fields(%q) error: %v", tc.src, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("Fields(%q) mismatch (-want +got):\n%s", tc.src, diff)
			}
		})
	}
}

func TestPattern(t *testing.T) {
	t.Parallel()
	cfg := testCfg(t, "PAT=*")
	for _, tc := range []struct {
		src  string
		want string
	}{
		{src: "*.go", want: "*.go"},
		{src: `'*'.go`, want: `\*.go`},
		{src: `"?"x`, want: `\?x`},
		{src: "$PAT", want: "*"},
	} {
		got, err := Pattern(cfg, word(tc.src, false))
		qt.Assert(t, err, qt.IsNil)
		qt.Assert(t, got, qt.Equals, tc.want, qt.Commentf("src %q", tc.src))
	}
}

func TestFieldsCmdSubstError(t *testing.T) {
	t.Parallel()
	cfg := &Config{Env: ListEnviron()}
	_, err := Fields(cfg, word("$(boom)", false))
	qt.Assert(t, err, qt.ErrorMatches, `unexpected command substitution.*`)
}
