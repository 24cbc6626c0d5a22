// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package interp implements an interpreter that executes shell
// programs: it walks the syntax tree the parser builds, expands each
// word, and dispatches execution across external processes, builtins,
// pipelines and compound control structures, while tracking background
// jobs.
package interp

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hsh-shell/hsh/expand"
	"github.com/hsh-shell/hsh/syntax"
)

// A Runner interprets shell programs. It can be reused, but it is not
// safe for concurrent use. Use [New] to build a new Runner.
//
// Note that writes to Stdout and Stderr may be concurrent if
// background commands are used, so an [io.Writer] that isn't safe for
// concurrent use should be hidden behind a mutex.
//
// Runner's exported fields are meant to be configured via
// [RunnerOption]; once a Runner has been created, the fields should be
// treated as read-only.
type Runner struct {
	// Env specifies the initial environment for the interpreter, which
	// must not be nil. It can only be set via [Env].
	Env expand.Environ

	// writeEnv overlays Env with the variables set while running.
	writeEnv expand.WriteEnviron

	// Dir specifies the working directory of the command, which must
	// be an absolute path. It can only be set via [Dir].
	Dir string

	// Params are the current positional parameters, e.g. from running
	// a shell file or calling a function.
	Params []string

	// Funcs holds the defined shell functions by name.
	Funcs map[string]syntax.Command

	// alias maps an alias name to its raw value text, which is
	// re-tokenized each time the alias is used.
	alias map[string]string

	execHandler    ExecHandlerFunc
	openHandler    OpenHandlerFunc
	readDirHandler ReadDirHandlerFunc

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	ecfg *expand.Config
	ectx context.Context // so that subshell expansions can reuse it

	opts runnerOpts

	// The current and last exit statuses. They can only differ while
	// the interpreter is in the middle of running a statement.
	exit     exitStatus
	lastExit exitStatus

	filename string // only if the node was a File

	jobs     jobTable
	bgShells errgroup.Group

	// inPipe marks a runner executing one stage of a multi-command
	// pipeline, where state-mutating builtins are rejected.
	inPipe bool

	// job, when non-nil, is the background job that processes spawned
	// by this runner should report their pid to.
	job *Job

	// funcDepth guards against runaway function recursion.
	funcDepth int

	usedNew  bool
	didReset bool

	origDir    string
	origParams []string
	origOpts   runnerOpts
	origStdin  io.Reader
	origStdout io.Writer
	origStderr io.Writer
}

// exitStatus is the state of the shell after running one command:
// the status code, plus whether the shell should keep running.
type exitStatus struct {
	code    uint8
	exiting bool // the "exit" builtin ran
}

func (e *exitStatus) ok() bool { return e.code == 0 }

// New creates a new Runner, applying a number of options. If applying
// any of the options results in an error, it is returned.
//
// Any unset options fall back to their defaults; for example, not
// supplying the environment falls back to the process's environment,
// and not supplying the standard output writer means that the output
// will be discarded.
func New(opts ...RunnerOption) (*Runner, error) {
	r := &Runner{
		usedNew:        true,
		execHandler:    DefaultExecHandler(2 * time.Second),
		openHandler:    DefaultOpenHandler(),
		readDirHandler: DefaultReadDirHandler(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	// Set the default fallbacks, if necessary.
	if r.Env == nil {
		Env(nil)(r)
	}
	if r.Dir == "" {
		if err := Dir("")(r); err != nil {
			return nil, err
		}
	}
	if r.stdout == nil || r.stderr == nil {
		StdIO(r.stdin, r.stdout, r.stderr)(r)
	}
	return r, nil
}

// RunnerOption can be passed to [New] to alter a [Runner]'s behaviour.
// It can also be applied directly on an existing Runner, such as
// interp.Params("-o", "pipefail")(runner).
type RunnerOption func(*Runner) error

// Env sets the interpreter's environment. If nil, a copy of the
// current process's environment is used.
func Env(env expand.Environ) RunnerOption {
	return func(r *Runner) error {
		if env == nil {
			env = expand.ListEnviron(os.Environ()...)
		}
		r.Env = env
		return nil
	}
}

// Dir sets the interpreter's working directory. If empty, the
// process's current directory is used.
func Dir(path string) RunnerOption {
	return func(r *Runner) error {
		if path == "" {
			path, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("could not get current dir: %w", err)
			}
			r.Dir = path
			return nil
		}
		path, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("could not get absolute dir: %w", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("could not stat: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", path)
		}
		r.Dir = path
		return nil
	}
}

// Params populates the shell options and parameters. For example,
// Params("-o", "pipefail", "--", "foo") will enable pipefail and set
// the parameters ["foo"]; Params("+o", "pipefail") will disable it and
// leave the parameters untouched.
//
// This is similar to what the interpreter's "set" builtin does.
func Params(args ...string) RunnerOption {
	return func(r *Runner) error {
		for len(args) > 0 {
			arg := args[0]
			if arg == "--" {
				r.Params = args[1:]
				return nil
			}
			if len(arg) < 2 || (arg[0] != '-' && arg[0] != '+') {
				break
			}
			enable := arg[0] == '-'
			args = args[1:]
			if arg[1] == 'o' {
				if len(args) == 0 {
					return fmt.Errorf("-o requires an option name")
				}
				opt := r.optByName(args[0])
				if opt == nil {
					return fmt.Errorf("invalid option: %q", args[0])
				}
				*opt = enable
				args = args[1:]
				continue
			}
			opt := r.optByFlag(arg[1])
			if opt == nil {
				return fmt.Errorf("invalid option: %q", arg)
			}
			*opt = enable
		}
		if len(args) > 0 {
			r.Params = args
		}
		return nil
	}
}

// ExecHandler sets the command execution handler, which replaces
// [DefaultExecHandler](2 * time.Second). See [ExecHandlerFunc].
func ExecHandler(f ExecHandlerFunc) RunnerOption {
	return func(r *Runner) error {
		r.execHandler = f
		return nil
	}
}

// OpenHandler sets the file open handler. See [OpenHandlerFunc].
func OpenHandler(f OpenHandlerFunc) RunnerOption {
	return func(r *Runner) error {
		r.openHandler = f
		return nil
	}
}

// ReadDirHandler sets the directory listing handler used for glob
// expansion. See [ReadDirHandlerFunc].
func ReadDirHandler(f ReadDirHandlerFunc) RunnerOption {
	return func(r *Runner) error {
		r.readDirHandler = f
		return nil
	}
}

// StdIO configures an interpreter's standard input, standard output,
// and standard error. If out or err are nil, they default to a writer
// that discards the output.
func StdIO(in io.Reader, out, err io.Writer) RunnerOption {
	return func(r *Runner) error {
		r.stdin = in
		if out == nil {
			out = io.Discard
		}
		r.stdout = out
		if err == nil {
			err = io.Discard
		}
		r.stderr = err
		return nil
	}
}

type runnerOpts [len(shellOptsTable)]bool

type shellOpt struct {
	flag byte
	name string
}

var shellOptsTable = [...]shellOpt{
	// sorted alphabetically by name; use a space for the options
	// that have no flag form
	{' ', "pipefail"},
	{'v', "verbose"},
}

const (
	optPipeFail = iota
	optVerbose
)

func (r *Runner) optByFlag(flag byte) *bool {
	for i, opt := range &shellOptsTable {
		if opt.flag == flag {
			return &r.opts[i]
		}
	}
	return nil
}

func (r *Runner) optByName(name string) *bool {
	for i, opt := range &shellOptsTable {
		if opt.name == name {
			return &r.opts[i]
		}
	}
	return nil
}

// Reset returns a runner to its initial state, right before the first
// call to Run or Reset.
//
// Typically, this function only needs to be called if a runner is
// reused to run multiple programs non-incrementally. Not calling Reset
// between each run will mean that the shell state will be kept,
// including variables, aliases, and the current directory.
func (r *Runner) Reset() {
	if !r.usedNew {
		panic("use interp.New to construct a Runner")
	}
	if !r.didReset {
		r.origDir = r.Dir
		r.origParams = r.Params
		r.origOpts = r.opts
		r.origStdin = r.stdin
		r.origStdout = r.stdout
		r.origStderr = r.stderr
	}
	// reset the internal state
	*r = Runner{
		Env:            r.Env,
		execHandler:    r.execHandler,
		openHandler:    r.openHandler,
		readDirHandler: r.readDirHandler,

		// These can be set by functions like [Dir] or [Params], but
		// builtins can overwrite them; reset the fields to whatever
		// the constructor set up.
		Dir:    r.origDir,
		Params: r.origParams,
		opts:   r.origOpts,
		stdin:  r.origStdin,
		stdout: r.origStdout,
		stderr: r.origStderr,

		origDir:    r.origDir,
		origParams: r.origParams,
		origOpts:   r.origOpts,
		origStdin:  r.origStdin,
		origStdout: r.origStdout,
		origStderr: r.origStderr,

		usedNew: r.usedNew,
	}
	r.writeEnv = newOverlayEnviron(r.Env)
	if !r.writeEnv.Get("HOME").IsSet() {
		home, _ := os.UserHomeDir()
		r.setVarString("HOME", home)
	}
	r.setVarString("PWD", r.Dir)
	r.didReset = true
}

// ExitStatus is a non-zero status code resulting from running a shell
// node.
type ExitStatus uint8

func (s ExitStatus) Error() string { return fmt.Sprintf("exit status %d", s) }

// Run interprets a node, which can be a [*syntax.File], a
// [*syntax.CompoundStatement], or a [syntax.Command]. If a non-nil
// error is returned, it will typically be an [ExitStatus] holding a
// command's exit status.
//
// Run can be called multiple times synchronously to interpret programs
// incrementally. To reuse a [Runner] without keeping the internal
// shell state, call Reset.
func (r *Runner) Run(ctx context.Context, node syntax.Node) error {
	if !r.didReset {
		r.Reset()
	}
	r.fillExpandConfig(ctx)
	r.exit = exitStatus{}
	r.filename = ""
	switch node := node.(type) {
	case *syntax.File:
		r.filename = node.Name
		r.stmts(ctx, node.Stmts)
	case *syntax.CompoundStatement:
		r.stmts(ctx, node)
	case syntax.Command:
		r.cmd(ctx, node)
	default:
		return fmt.Errorf("node can only be File, CompoundStatement, or Command: %T", node)
	}
	if code := r.exit.code; code != 0 {
		return ExitStatus(code)
	}
	return nil
}

// SetStatus sets the exit status that $? reports next. The line-reader
// loop uses it to record a parse error as a failed command before
// returning to the prompt.
func (r *Runner) SetStatus(code uint8) {
	if !r.didReset {
		r.Reset()
	}
	r.lastExit = exitStatus{code: code}
}

// Exited reports whether the last Run call should exit the entire
// shell, as triggered by the "exit" builtin.
//
// Note that this state is overwritten at every Run call, so it should
// be checked immediately after each Run call.
func (r *Runner) Exited() bool {
	return r.exit.exiting
}

// Subshell makes a copy of the given [Runner], suitable for use
// concurrently with the original. The copy will have the same
// environment, including variables, functions and aliases, but they
// can all be modified without affecting the original.
//
// Subshell is not safe to use concurrently with [Run]. Orchestrating
// this is left up to the caller; no locking is performed.
func (r *Runner) Subshell() *Runner {
	if !r.didReset {
		r.Reset()
	}
	// Keep in sync with the Runner type: manually copy fields so that
	// copies are deep and the errgroup and job table are left behind.
	r2 := &Runner{
		Env:            r.Env,
		Dir:            r.Dir,
		Params:         r.Params,
		execHandler:    r.execHandler,
		openHandler:    r.openHandler,
		readDirHandler: r.readDirHandler,
		stdin:          r.stdin,
		stdout:         r.stdout,
		stderr:         r.stderr,
		filename:       r.filename,
		opts:           r.opts,
		usedNew:        r.usedNew,
		exit:           r.exit,
		lastExit:       r.lastExit,
	}
	r2.writeEnv = cloneOverlayEnviron(r.writeEnv)
	r2.Funcs = maps.Clone(r.Funcs)
	r2.alias = maps.Clone(r.alias)
	// $! carries over, though the copy tracks its own jobs from here
	r2.jobs.lastBg = r.jobs.lastBgPid()
	r2.fillExpandConfig(r.ectx)
	r2.didReset = true
	return r2
}

// ReadDirHandlerFunc is the readDirHandler function signature; see
// [ReadDirHandler].
type ReadDirHandlerFunc func(ctx context.Context, path string) ([]fs.DirEntry, error)

// DefaultReadDirHandler returns the [ReadDirHandlerFunc] used by
// default; it simply lists directories on disk.
func DefaultReadDirHandler() ReadDirHandlerFunc {
	return func(ctx context.Context, path string) ([]fs.DirEntry, error) {
		return os.ReadDir(path)
	}
}
