// Copyright (c) 2021, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

//go:build unix

package interp_test

import (
	"fmt"
	"testing"
)

// A process killed by signal N must report exit status 128+N.
func TestSignalExitStatus(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		in      string
		wantErr string
	}{
		{in: "sh -c 'kill -KILL $$'", wantErr: "exit status 137"},
		{in: "sh -c 'kill -TERM $$'", wantErr: "exit status 143"},
	} {
		_, err := runScript(t, tc.in)
		if fmt.Sprint(err) != tc.wantErr {
			t.Fatalf("run(%q): want %q, got %v", tc.in, tc.wantErr, err)
		}
	}
}

// The $! parameter exposes the pid of the last background job's
// primary process once it has been spawned.
func TestBgPidParameter(t *testing.T) {
	t.Parallel()
	got, err := runScript(t, "sleep 0.1 & wait; test -n \"$!\" && echo have-pid")
	if err != nil {
		t.Fatal(err)
	}
	if got != "have-pid\n" {
		t.Fatalf("got %q", got)
	}
}
