// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hsh-shell/hsh/expand"
)

// HandlerContext is the data passed to all the handler functions via
// [context.Context]. It contains some of the current state of the
// [Runner].
type HandlerContext struct {
	// Env is a read-only version of the interpreter's environment,
	// including the variables that were exported to the command.
	Env expand.Environ

	// Dir is the interpreter's current directory.
	Dir string

	// Stdin, Stdout and Stderr are the interpreter's standard streams
	// with any per-command redirections already applied.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// OnStart, if non-nil, is called with the process ID of a spawned
	// program as soon as it has started. The interpreter uses it to
	// fill in its job table for background pipelines.
	OnStart func(pid int)
}

// HandlerCtx returns the [HandlerContext] value stored in ctx. It
// panics if ctx has no HandlerContext stored.
func HandlerCtx(ctx context.Context) HandlerContext {
	hc, ok := ctx.Value(handlerCtxKey{}).(HandlerContext)
	if !ok {
		panic("interp.HandlerCtx: no HandlerContext in ctx")
	}
	return hc
}

type handlerCtxKey struct{}

// ExecHandlerFunc is a handler which executes simple commands. It is
// the runner's job to print any errors it returns; returning an
// [ExitStatus] reports the command's exit status without any printing.
type ExecHandlerFunc func(ctx context.Context, args []string) error

// OpenHandlerFunc is a handler which opens files, used for
// redirections. The path parameter is absolute.
type OpenHandlerFunc func(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error)

// DefaultExecHandler returns the [ExecHandlerFunc] used by default: it
// finds binaries in the environment's PATH and spawns them as separate
// processes, each in its own process group so that signals can be
// forwarded to the whole group.
//
// If the context is cancelled while the command is running, it
// receives an interrupt signal, followed by a kill signal once
// killTimeout has elapsed.
//
// A program that could not be found reports exit status 127, and one
// that was found but failed to launch reports 126.
func DefaultExecHandler(killTimeout time.Duration) ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		hc := HandlerCtx(ctx)
		path, err := LookPathDir(hc.Dir, hc.Env, args[0])
		if err != nil {
			fmt.Fprintln(hc.Stderr, err)
			if errors.Is(err, fs.ErrPermission) {
				// found but not executable
				return ExitStatus(126)
			}
			return ExitStatus(127)
		}
		cmd := exec.Cmd{
			Path:   path,
			Args:   args,
			Env:    execEnviron(hc.Env),
			Dir:    hc.Dir,
			Stdin:  hc.Stdin,
			Stdout: hc.Stdout,
			Stderr: hc.Stderr,
		}
		prepareCommand(&cmd)

		err = cmd.Start()
		if err == nil {
			if hc.OnStart != nil {
				hc.OnStart(cmd.Process.Pid)
			}
			if done := ctx.Done(); done != nil {
				go func() {
					<-done
					if killTimeout <= 0 {
						killCommand(&cmd, true)
						return
					}
					// Forward the interrupt to the whole
					// process group, then force a kill once
					// the grace period runs out.
					killCommand(&cmd, false)
					time.Sleep(killTimeout)
					killCommand(&cmd, true)
				}()
			}
			err = cmd.Wait()
		}

		switch err := err.(type) {
		case *exec.ExitError:
			if code, ok := exitCode(err); ok {
				return ExitStatus(code)
			}
			return ExitStatus(1)
		case *exec.Error:
			// did not start
			fmt.Fprintf(hc.Stderr, "%v\n", err)
			if errors.Is(err.Err, fs.ErrNotExist) {
				return ExitStatus(127)
			}
			return ExitStatus(126)
		default:
			return err
		}
	}
}

func execEnviron(env expand.Environ) []string {
	var list []string
	env.Each(func(name string, vr expand.Variable) bool {
		if vr.Exported {
			list = append(list, name+"="+vr.String())
		}
		return true
	})
	return list
}

// DefaultOpenHandler returns the [OpenHandlerFunc] used by default: it
// opens files on disk, with /dev/null special-cased to a stream that
// reads empty and discards writes.
func DefaultOpenHandler() OpenHandlerFunc {
	return func(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
		if path == "/dev/null" {
			return devNull{}, nil
		}
		return os.OpenFile(path, flag, perm)
	}
}

type devNull struct{}

func (devNull) Read(p []byte) (int, error)  { return 0, io.EOF }
func (devNull) Write(p []byte) (int, error) { return len(p), nil }
func (devNull) Close() error                { return nil }

// LookPath is deprecated; see [LookPathDir].
func LookPath(env expand.Environ, file string) (string, error) {
	return LookPathDir(".", env, file)
}

// LookPathDir is similar to [os/exec.LookPath], with a few key
// differences: it uses the given environment's PATH, and it resolves
// relative paths against dir.
func LookPathDir(dir string, env expand.Environ, file string) (string, error) {
	if strings.Contains(file, "/") {
		path := absPath(dir, file)
		if err := checkExecutable(path); err != nil {
			return "", fmt.Errorf("%s: %w", file, err)
		}
		return path, nil
	}
	for _, elem := range filepath.SplitList(env.Get("PATH").String()) {
		if elem == "" {
			elem = "."
		}
		path := absPath(dir, filepath.Join(elem, file))
		if err := checkExecutable(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%q: executable file not found in $PATH", file)
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if m := info.Mode(); m.IsDir() || m&0o111 == 0 {
		return fs.ErrPermission
	}
	return nil
}

func absPath(dir, path string) string {
	if path == "" {
		return ""
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	return filepath.Clean(path)
}

func exitCode(err *exec.ExitError) (uint8, bool) {
	if code, ok := waitStatus(err); ok {
		return code, true
	}
	if n := err.ExitCode(); n >= 0 {
		return uint8(n), true
	}
	return 0, false
}
