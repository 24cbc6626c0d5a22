// Copyright (c) 2021, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

//go:build unix

package interp

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// prepareCommand places each spawned program in its own process group,
// so that signals meant for a job reach the program and any children
// it forks.
func prepareCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killCommand delivers an interrupt or a kill to the command's whole
// process group.
func killCommand(cmd *exec.Cmd, force bool) {
	if cmd.Process == nil {
		return
	}
	sig := unix.SIGINT
	if force {
		sig = unix.SIGKILL
	}
	// Negative pid targets the process group.
	_ = unix.Kill(-cmd.Process.Pid, sig)
}

// continueProcessGroup delivers SIGCONT to a stopped job's process
// group, for the fg and bg builtins.
func continueProcessGroup(pgid int) error {
	return unix.Kill(-pgid, unix.SIGCONT)
}

// waitStatus extracts a command's exit code from its wait status,
// reporting 128+N for a process killed by signal N.
func waitStatus(err *exec.ExitError) (uint8, bool) {
	status, ok := err.Sys().(syscall.WaitStatus)
	if !ok {
		return 0, false
	}
	if status.Signaled() {
		return uint8(128 + int(status.Signal())), true
	}
	if status.Exited() {
		return uint8(status.ExitStatus()), true
	}
	return 0, false
}
