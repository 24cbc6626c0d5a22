// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hsh-shell/hsh/expand"
	"github.com/hsh-shell/hsh/internal"
	"github.com/hsh-shell/hsh/interp"
	"github.com/hsh-shell/hsh/syntax"
)

// runScript parses and runs src on a fresh runner, returning the
// combined output and the error from Run.
func runScript(tb testing.TB, src string, opts ...interp.RunnerOption) (string, error) {
	tb.Helper()
	file, err := syntax.Parse([]byte(src), "")
	if err != nil {
		tb.Fatalf("parse(%q): %v", src, err)
	}
	var cb internal.ConcBuffer
	opts = append([]interp.RunnerOption{interp.StdIO(nil, &cb, &cb)}, opts...)
	r, err := interp.New(opts...)
	if err != nil {
		tb.Fatal(err)
	}
	runErr := r.Run(context.Background(), file)
	return cb.String(), runErr
}

// Each case is one shell program and the output it must produce; a
// "exit status N" want on the error side uses wantErr.
var fileCases = []struct {
	in      string
	want    string
	wantErr string
}{
	// basic words and quoting
	{in: "echo", want: "\n"},
	{in: "echo hello", want: "hello\n"},
	{in: "echo a b  c", want: "a b c\n"},
	{in: "echo -n hello", want: "hello"},
	{in: "echo -n -n hi", want: "hi"},
	{in: `echo "a  b"`, want: "a  b\n"},
	{in: `echo 'single $X'`, want: "single $X\n"},
	{in: `echo a\ b`, want: "a b\n"},

	// variables and parameters
	{in: "VAR=hello; echo $VAR", want: "hello\n"},
	{in: "VAR=hello; echo ${VAR}x", want: "hellox\n"},
	{in: "echo ${NOSUCH:-def}", want: "def\n"},
	{in: "EMPTY=; echo ${EMPTY:-def}", want: "\n"},
	{in: "VAR=a; VAR=b; echo $VAR", want: "b\n"},
	{in: "false; echo $?", want: "1\n"},
	{in: "true; echo $?", want: "0\n"},
	{in: "set -- a b c; echo $2; echo $#", want: "b\n3\n"},
	{in: "set -- a b c; shift; echo $1", want: "b\n"},
	{in: "set -- a b; echo $*", want: "a b\n"},

	// command substitution
	{in: "echo $(echo nested)", want: "nested\n"},
	{in: "echo `echo bt`", want: "bt\n"},
	{in: "echo x$(echo y)z", want: "xyz\n"},

	// arithmetic
	{in: "echo $((2 + 3 * 4))", want: "14\n"},
	{in: "x=5; echo $((x * 2))", want: "10\n"},
	{in: "echo $((2**10))", want: "1024\n"},
	{in: "echo $((7 / 2))", want: "3.500000\n"},
	{
		in:      "echo $((1/0))",
		want:    "arithmetic error at position 1: division by zero\n",
		wantErr: "exit status 1",
	},

	// brace expansion
	{in: "echo {a,b}{1,2}", want: "a1 a2 b1 b2\n"},
	{in: "echo {1..4}", want: "1 2 3 4\n"},
	{in: "echo '{a,b}'", want: "{a,b}\n"},

	// pipelines
	{in: "echo hello | cat", want: "hello\n"},
	{in: "echo hello | cat | cat", want: "hello\n"},
	{in: "false | true"},
	{in: "set -o pipefail; false | true", wantErr: "exit status 1"},
	{in: "set -o pipefail; true | false | true", wantErr: "exit status 1"},
	{in: "! false"},
	{in: "! true", wantErr: "exit status 1"},
	{in: "echo up | cd", want: "cd: cannot be used in a pipeline\n", wantErr: "exit status 1"},

	// logical expressions
	{in: "true && echo y || echo n", want: "y\n"},
	{in: "false && echo y || echo n", want: "n\n"},
	{in: "false || false", wantErr: "exit status 1"},

	// if clauses
	{in: "if true; then echo y; else echo n; fi", want: "y\n"},
	{in: "if false; then echo y; else echo n; fi", want: "n\n"},
	{in: "if false; then echo y; elif true; then echo e; else echo n; fi", want: "e\n"},
	{in: "if false; then echo y; fi"},

	// loops
	{in: "for i in 1 2 3; do echo $i; done", want: "1\n2\n3\n"},
	{in: "for i in x; do echo $i; done; echo $i", want: "x\n\n"},
	{in: "set -- p q; for a; do echo $a; done", want: "p\nq\n"},
	{in: "while false; do echo x; done"},
	{in: "until true; do echo x; done"},

	// case statements
	{in: "case abc in a*) echo match;; *) echo no;; esac", want: "match\n"},
	{in: "case zzz in a*) echo match;; *) echo no;; esac", want: "no\n"},
	{in: "case b in a|b) echo ab;; esac", want: "ab\n"},
	{in: "x=hi; case $x in h?) echo y;; esac", want: "y\n"},
	{in: "case abc in esac"},

	// groups and subshells
	{in: "{ echo a; echo b; }", want: "a\nb\n"},
	{in: "V=a; (V=b); echo $V", want: "a\n"},
	{in: "V=a; { V=b; }; echo $V", want: "b\n"},
	{in: "(exit 4); echo $?", want: "4\n"},

	// functions
	{in: "greet() { echo hi $1; }; greet world", want: "hi world\n"},
	{in: "function greet { echo yo; }; greet", want: "yo\n"},
	{in: "f() { echo $#; }; f a b c", want: "3\n"},

	// aliases
	{in: "alias gs='echo git status'; gs -sb", want: "git status -sb\n"},
	{in: "alias e=echo; e hi", want: "hi\n"},
	{in: "alias x=; x echo hi", want: "hi\n"},
	{in: "alias e=echo; alias e", want: "alias e='echo'\n"},
	{in: "alias e=echo; unalias e; alias e", want: "alias: e: not found\n", wantErr: "exit status 1"},

	// exit
	{in: "exit 3", wantErr: "exit status 3"},
	{in: "exit 300", wantErr: "exit status 44"},
	{in: "false; exit", wantErr: "exit status 1"},
	{in: "exit abc", want: "exit: abc: numeric argument required\n", wantErr: "exit status 2"},
	{in: "echo before; exit 0; echo after", want: "before\n"},

	// export
	{in: "export FOO=bar; env | grep ^FOO=", want: "FOO=bar\n"},
	{in: "export 1BAD=x", want: "export: 1BAD: not a valid identifier\n", wantErr: "exit status 1"},

	// background jobs
	{in: "true & wait"},
	{in: "echo bg & wait", want: "bg\n"},

	// command not found and launch failures
	{
		in:      "hsh-no-such-command-here",
		want:    "\"hsh-no-such-command-here\": executable file not found in $PATH\n",
		wantErr: "exit status 127",
	},

	// here-document operators are parsed; the body is not ingested
	{in: "cat << EOF"},
}

func TestRunnerRun(t *testing.T) {
	t.Parallel()
	for i, tc := range fileCases {
		t.Run(fmt.Sprintf("%03d", i), func(t *testing.T) {
			got, err := runScript(t, tc.in)
			if tc.wantErr == "" && err != nil {
				t.Fatalf("run(%q): unexpected error %v\noutput: %s", tc.in, err, got)
			}
			if tc.wantErr != "" && fmt.Sprint(err) != tc.wantErr {
				t.Fatalf("run(%q): want error %q, got %v", tc.in, tc.wantErr, err)
			}
			if got != tc.want {
				t.Fatalf("run(%q):\nwant %q\ngot  %q", tc.in, tc.want, got)
			}
		})
	}
}

func TestPipelineExternal(t *testing.T) {
	t.Parallel()
	got, err := runScript(t, "echo hello | wc -l")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(got) != "1" {
		t.Fatalf("want %q somewhere in %q", "1", got)
	}
}

func TestWhileWithExternalTest(t *testing.T) {
	t.Parallel()
	got, err := runScript(t, "i=1; while test $i -le 3; do echo $i; i=$(($i + 1)); done")
	if err != nil {
		t.Fatal(err)
	}
	if got != "1\n2\n3\n" {
		t.Fatalf("got %q", got)
	}
}

func TestHomeExpansion(t *testing.T) {
	t.Parallel()
	env := expand.ListEnviron("HOME=/home/user", "PATH="+os.Getenv("PATH"))
	got, err := runScript(t, `echo "$HOME"; echo '$HOME'; echo ~`, interp.Env(env))
	if err != nil {
		t.Fatal(err)
	}
	if got != "/home/user\n$HOME\n/home/user\n" {
		t.Fatalf("got %q", got)
	}
}

func TestCd(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o777); err != nil {
		t.Fatal(err)
	}
	src := "cd sub; pwd; cd -; pwd"
	got, err := runScript(t, src, interp.Dir(dir))
	if err != nil {
		t.Fatal(err)
	}
	// cd - prints the directory it returns to
	want := sub + "\n" + dir + "\n" + dir + "\n"
	if got != want {
		t.Fatalf("run(%q):\nwant %q\ngot  %q", src, want, got)
	}
}

func TestCdErrors(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		in   string
		want string
	}{
		{"cd a b", "cd: too many arguments\n"},
		{"cd /no/such/dir/hopefully", "cd: /no/such/dir/hopefully: no such file or directory\n"},
	} {
		got, err := runScript(t, tc.in)
		if fmt.Sprint(err) != "exit status 1" {
			t.Fatalf("run(%q): want exit status 1, got %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("run(%q): want %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestRedirections(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for _, tc := range []struct {
		in   string
		want string
	}{
		{"echo hi > f; cat f", "hi\n"},
		{"echo one > f; echo two >> f; cat f", "one\ntwo\n"},
		{"echo trunc > f; echo x > f; cat f", "x\n"},
		{"echo in > f; cat < f", "in\n"},
		{"sh -c 'echo e >&2' 2> f; cat f", "e\n"},
		{"sh -c 'echo o; echo e >&2' > f 2>&1; cat f", "o\ne\n"},
		{"echo hi > /dev/null", ""},
		{"echo hi 3> f", "unsupported file descriptor: 3\n"},
	} {
		got, _ := runScript(t, tc.in, interp.Dir(dir))
		if got != tc.want {
			t.Fatalf("run(%q): want %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestSubshellDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	got, err := runScript(t, "(cd /; pwd); pwd", interp.Dir(dir))
	if err != nil {
		t.Fatal(err)
	}
	want := "/\n" + dir + "\n"
	if got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func TestGlobExpansion(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for _, name := range []string{"a.go", "b.go", "c.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o666); err != nil {
			t.Fatal(err)
		}
	}
	for _, tc := range []struct {
		in   string
		want string
	}{
		{"echo *.go", "a.go b.go\n"},
		{"echo [ab].go", "a.go b.go\n"},
		{"echo *.nomatch", "*.nomatch\n"},
		{"echo '*'.go", "*.go\n"},
	} {
		got, err := runScript(t, tc.in, interp.Dir(dir))
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.want {
			t.Fatalf("run(%q): want %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestJobsBuiltin(t *testing.T) {
	t.Parallel()
	got, err := runScript(t, "true & wait; jobs")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "[1]") || !strings.Contains(got, "true") {
		t.Fatalf("jobs output missing the job line: %q", got)
	}
}

func TestRunnerReset(t *testing.T) {
	t.Parallel()
	var cb internal.ConcBuffer
	r, err := interp.New(interp.StdIO(nil, &cb, &cb))
	if err != nil {
		t.Fatal(err)
	}
	file, _ := syntax.Parse([]byte("VAR=kept; echo $VAR"), "")
	if err := r.Run(context.Background(), file); err != nil {
		t.Fatal(err)
	}
	r.Reset()
	file2, _ := syntax.Parse([]byte("echo again $VAR"), "")
	if err := r.Run(context.Background(), file2); err != nil {
		t.Fatal(err)
	}
	if got := cb.String(); got != "kept\nagain\n" {
		t.Fatalf("got %q", got)
	}
}

func TestRunIncremental(t *testing.T) {
	t.Parallel()
	var cb internal.ConcBuffer
	r, err := interp.New(interp.StdIO(nil, &cb, &cb))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, line := range []string{"VAR=x", "echo $VAR"} {
		file, err := syntax.Parse([]byte(line), "")
		if err != nil {
			t.Fatal(err)
		}
		if err := r.Run(ctx, file); err != nil {
			t.Fatal(err)
		}
	}
	if got := cb.String(); got != "x\n" {
		t.Fatalf("got %q", got)
	}
}

func TestExited(t *testing.T) {
	t.Parallel()
	var cb internal.ConcBuffer
	r, err := interp.New(interp.StdIO(nil, &cb, &cb))
	if err != nil {
		t.Fatal(err)
	}
	file, _ := syntax.Parse([]byte("echo hi"), "")
	if err := r.Run(context.Background(), file); err != nil {
		t.Fatal(err)
	}
	if r.Exited() {
		t.Fatal("Exited: want false after a plain command")
	}
	file2, _ := syntax.Parse([]byte("exit"), "")
	if err := r.Run(context.Background(), file2); err != nil {
		t.Fatal(err)
	}
	if !r.Exited() {
		t.Fatal("Exited: want true after exit")
	}
}
