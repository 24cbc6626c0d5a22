// Copyright (c) 2021, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

//go:build !unix

package interp

import (
	"fmt"
	"os"
	"os/exec"
)

func prepareCommand(cmd *exec.Cmd) {}

func killCommand(cmd *exec.Cmd, force bool) {
	if cmd.Process == nil {
		return
	}
	if force {
		_ = cmd.Process.Kill()
		return
	}
	_ = cmd.Process.Signal(os.Interrupt)
}

func continueProcessGroup(pgid int) error {
	return fmt.Errorf("job control is not supported on this platform")
}

func waitStatus(err *exec.ExitError) (uint8, bool) {
	if n := err.ExitCode(); n >= 0 {
		return uint8(n), true
	}
	return 0, false
}
