// Copyright (c) 2018, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package shell

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSourceFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "vars.sh")
	src := "A=1\nB=two\nC=$A$B\n"
	if err := os.WriteFile(path, []byte(src), 0o666); err != nil {
		t.Fatal(err)
	}
	vars, err := SourceFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	for name, want := range map[string]string{
		"A": "1",
		"B": "two",
		"C": "1two",
	} {
		if got := vars[name].String(); got != want {
			t.Fatalf("vars[%q] = %q, want %q", name, got, want)
		}
	}
}

func TestSourceNodeRefusesExec(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.sh")
	if err := os.WriteFile(path, []byte("rm -rf /\n"), 0o666); err != nil {
		t.Fatal(err)
	}
	_, err := SourceFile(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "could not run") {
		t.Fatalf("want a refusal error, got %v", err)
	}
}
