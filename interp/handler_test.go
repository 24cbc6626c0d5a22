// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/hsh-shell/hsh/expand"
	"github.com/hsh-shell/hsh/internal"
	"github.com/hsh-shell/hsh/interp"
	"github.com/hsh-shell/hsh/syntax"
)

func TestLookPathDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test relies on unix permission bits")
	}
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "runnable"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "plain"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	env := expand.ListEnviron("PATH=" + dir)

	path, err := interp.LookPathDir(dir, env, "runnable")
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "runnable") {
		t.Fatalf("got %q", path)
	}
	if _, err := interp.LookPathDir(dir, env, "plain"); err == nil {
		t.Fatal("want an error for a non-executable file")
	}
	if _, err := interp.LookPathDir(dir, env, "missing"); err == nil {
		t.Fatal("want an error for a missing file")
	}
	// a name with a slash resolves relative to dir, not PATH
	path, err = interp.LookPathDir(dir, env, "./runnable")
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "runnable") {
		t.Fatalf("got %q", path)
	}
}

func TestExecNotExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test relies on unix permission bits")
	}
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "prog"), []byte("#!/bin/sh\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// found but not runnable reports 126
	_, err := runScript(t, "./prog", interp.Dir(dir))
	if fmt.Sprint(err) != "exit status 126" {
		t.Fatalf("want exit status 126, got %v", err)
	}
}

func TestCustomExecHandler(t *testing.T) {
	t.Parallel()
	handler := func(ctx context.Context, args []string) error {
		hc := interp.HandlerCtx(ctx)
		if args[0] == "greet" {
			fmt.Fprintf(hc.Stdout, "hello %s\n", strings.Join(args[1:], " "))
			return nil
		}
		return interp.ExitStatus(127)
	}
	var cb internal.ConcBuffer
	r, err := interp.New(
		interp.StdIO(nil, &cb, &cb),
		interp.ExecHandler(handler),
	)
	if err != nil {
		t.Fatal(err)
	}
	file, _ := syntax.Parse([]byte("greet out there"), "")
	if err := r.Run(context.Background(), file); err != nil {
		t.Fatal(err)
	}
	if got := cb.String(); got != "hello out there\n" {
		t.Fatalf("got %q", got)
	}
}

func TestCustomOpenHandler(t *testing.T) {
	t.Parallel()
	var opened []string
	var cb internal.ConcBuffer
	r, err := interp.New(
		interp.StdIO(nil, &cb, &cb),
		interp.OpenHandler(func(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
			opened = append(opened, path)
			return nopFile{}, nil
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	file, _ := syntax.Parse([]byte("echo hi > somefile"), "")
	if err := r.Run(context.Background(), file); err != nil {
		t.Fatal(err)
	}
	if len(opened) != 1 || filepath.Base(opened[0]) != "somefile" {
		t.Fatalf("opened: %q", opened)
	}
}

type nopFile struct{}

func (nopFile) Read(p []byte) (int, error)  { return 0, io.EOF }
func (nopFile) Write(p []byte) (int, error) { return len(p), nil }
func (nopFile) Close() error                { return nil }
