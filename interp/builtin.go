// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/hsh-shell/hsh/expand"
	"github.com/hsh-shell/hsh/syntax"
)

// IsBuiltin returns true if the given word is a shell builtin.
func IsBuiltin(name string) bool {
	switch name {
	case ":", "true", "false", "echo", "pwd", "cd", "export", "unset",
		"exit", "alias", "unalias", "set", "shift", "jobs", "fg", "bg",
		"wait":
		return true
	}
	return false
}

// builtinCode runs a builtin in-process and returns its exit status.
// The builtin reads and writes the runner's standard streams, which
// already carry any per-command redirections.
func (r *Runner) builtinCode(ctx context.Context, name string, args []string) uint8 {
	switch name {
	case ":", "true":
		return 0
	case "false":
		return 1
	case "echo":
		newline := true
		// -n flags are greedy; everything after the first
		// non-flag argument is printed verbatim
		for len(args) > 0 && args[0] == "-n" {
			newline = false
			args = args[1:]
		}
		r.out(strings.Join(args, " "))
		if newline {
			r.out("\n")
		}
		return 0
	case "pwd":
		r.outf("%s\n", r.Dir)
		return 0
	case "cd":
		return r.builtinCd(args)
	case "export":
		return r.builtinExport(args)
	case "unset":
		funcs := false
		for len(args) > 0 && (args[0] == "-f" || args[0] == "-v") {
			funcs = args[0] == "-f"
			args = args[1:]
		}
		for _, name := range args {
			if funcs {
				delete(r.Funcs, name)
			} else {
				r.delVar(name)
			}
		}
		return 0
	case "exit":
		code := r.lastExit.code
		switch len(args) {
		case 0:
		case 1:
			// the whole argument must parse as a number; the
			// status is its lowest 8 bits
			n, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				r.errf("exit: %s: numeric argument required\n", args[0])
				r.exit.exiting = true
				return 2
			}
			code = uint8(n & 0xff)
		default:
			r.errf("exit: too many arguments\n")
			return 1
		}
		r.exit.exiting = true
		return code
	case "alias":
		return r.builtinAlias(args)
	case "unalias":
		if len(args) > 0 && args[0] == "-a" {
			r.alias = nil
			return 0
		}
		code := uint8(0)
		for _, name := range args {
			if _, ok := r.alias[name]; !ok {
				r.errf("unalias: %s: not found\n", name)
				code = 1
				continue
			}
			delete(r.alias, name)
		}
		return code
	case "set":
		return r.builtinSet(args)
	case "shift":
		n := 1
		switch len(args) {
		case 0:
		case 1:
			var err error
			n, err = strconv.Atoi(args[0])
			if err != nil || n < 0 {
				r.errf("shift: %s: numeric argument required\n", args[0])
				return 1
			}
		default:
			r.errf("shift: too many arguments\n")
			return 1
		}
		if n > len(r.Params) {
			return 1
		}
		r.Params = r.Params[n:]
		return 0
	case "jobs":
		if len(args) > 0 {
			r.errf("jobs: too many arguments\n")
			return 1
		}
		for _, job := range r.jobs.list() {
			state, _ := job.State()
			r.outf("[%d]  %s %s\n", job.ID, state, job.Command)
		}
		return 0
	case "fg":
		job := r.jobArg("fg", args)
		if job == nil {
			return 1
		}
		if state, _ := job.State(); state == JobStopped {
			if pid := job.Pid(); pid > 0 {
				if err := continueProcessGroup(pid); err != nil {
					r.errf("fg: failed to continue job\n")
					return 1
				}
			}
			job.setState(JobRunning)
		}
		r.outf("%s\n", job.Command)
		code := job.Wait()
		r.jobs.remove(job)
		return code
	case "bg":
		job := r.jobArg("bg", args)
		if job == nil {
			return 1
		}
		if pid := job.Pid(); pid > 0 {
			if err := continueProcessGroup(pid); err != nil {
				r.errf("bg: failed to continue job\n")
				return 1
			}
		}
		job.setState(JobRunning)
		r.outf("[%d] %s &\n", job.ID, job.Command)
		return 0
	case "wait":
		if len(args) == 0 {
			r.bgShells.Wait()
			return 0
		}
		job := r.jobArg("wait", args)
		if job == nil {
			return 127
		}
		code := job.Wait()
		r.jobs.remove(job)
		return code
	}
	// the callers check IsBuiltin first
	panic("unhandled builtin: " + name)
}

func (r *Runner) builtinCd(args []string) uint8 {
	if len(args) > 1 {
		r.errf("cd: too many arguments\n")
		return 1
	}
	target := ""
	printDir := false
	switch {
	case len(args) == 0:
		target = r.lookupVar("HOME").String()
		if target == "" {
			r.errf("cd: HOME not set\n")
			return 1
		}
	case args[0] == "-":
		target = r.lookupVar("OLDPWD").String()
		if target == "" {
			r.errf("cd: OLDPWD not set\n")
			return 1
		}
		printDir = true
	default:
		target = args[0]
	}
	path := absPath(r.Dir, target)
	info, err := os.Stat(path)
	if err != nil {
		r.errf("cd: %s: no such file or directory\n", target)
		return 1
	}
	if !info.IsDir() {
		r.errf("cd: %s: not a directory\n", target)
		return 1
	}
	r.setVar("OLDPWD", expand.Variable{Set: true, Exported: true, Str: r.Dir})
	r.Dir = path
	r.ecfg.Dir = path
	r.setVar("PWD", expand.Variable{Set: true, Exported: true, Str: path})
	if printDir {
		r.outf("%s\n", path)
	}
	return 0
}

func (r *Runner) builtinExport(args []string) uint8 {
	if len(args) == 0 {
		var lines []string
		r.writeEnv.Each(func(name string, vr expand.Variable) bool {
			if vr.Exported {
				lines = append(lines, name+"="+vr.String())
			}
			return true
		})
		slices.Sort(lines)
		for _, line := range lines {
			r.outf("%s\n", line)
		}
		return 0
	}
	for _, arg := range args {
		name, value, hasValue := strings.Cut(arg, "=")
		if !ValidName(name) {
			r.errf("export: %s: not a valid identifier\n", name)
			return 1
		}
		if hasValue {
			r.setVar(name, expand.Variable{Set: true, Exported: true, Str: value})
			continue
		}
		// exporting a name alone keeps its value; unset variables
		// export as empty
		prev := r.writeEnv.Get(name)
		r.setVar(name, expand.Variable{Set: prev.IsSet(), Exported: true, Str: prev.String()})
	}
	return 0
}

func (r *Runner) builtinAlias(args []string) uint8 {
	if r.alias == nil {
		r.alias = make(map[string]string)
	}
	if len(args) == 0 {
		names := make([]string, 0, len(r.alias))
		for name := range r.alias {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			r.outf("alias %s=%s\n", name, syntax.Quote(r.alias[name]))
		}
		return 0
	}
	code := uint8(0)
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if ok {
			r.alias[name] = value
			continue
		}
		if value, found := r.alias[arg]; found {
			r.outf("alias %s=%s\n", arg, syntax.Quote(value))
		} else {
			r.errf("alias: %s: not found\n", arg)
			code = 1
		}
	}
	return code
}

func (r *Runner) builtinSet(args []string) uint8 {
	if len(args) == 0 {
		var lines []string
		r.writeEnv.Each(func(name string, vr expand.Variable) bool {
			if vr.IsSet() {
				lines = append(lines, name+"="+syntax.Quote(vr.String()))
			}
			return true
		})
		slices.Sort(lines)
		for _, line := range lines {
			r.outf("%s\n", line)
		}
		return 0
	}
	for i := 0; i < len(args); {
		arg := args[i]
		switch {
		case arg == "--":
			r.Params = args[i+1:]
			return 0
		case arg == "-o" || arg == "+o":
			enable := arg == "-o"
			if i+1 >= len(args) {
				// query form: list every option's state
				for j, opt := range &shellOptsTable {
					if enable {
						state := "off"
						if r.opts[j] {
							state = "on"
						}
						r.outf("%-16s%s\n", opt.name, state)
					} else {
						flag := "+o"
						if r.opts[j] {
							flag = "-o"
						}
						r.outf("set %s %s\n", flag, opt.name)
					}
				}
				i++
				continue
			}
			opt := r.optByName(args[i+1])
			if opt == nil {
				r.errf("set: %s: invalid option name\n", args[i+1])
				return 2
			}
			*opt = enable
			i += 2
		case len(arg) == 2 && (arg[0] == '-' || arg[0] == '+'):
			opt := r.optByFlag(arg[1])
			if opt == nil {
				r.errf("set: %s: invalid option\n", arg)
				return 2
			}
			*opt = arg[0] == '-'
			i++
		default:
			r.Params = args[i:]
			return 0
		}
	}
	return 0
}

// jobArg resolves the optional job argument of the fg, bg and wait
// builtins: a "%n" or "n" job ID, defaulting to the most recent job.
func (r *Runner) jobArg(name string, args []string) *Job {
	if len(args) == 0 {
		job := r.jobs.current()
		if job == nil {
			r.errf("%s: no current job\n", name)
		}
		return job
	}
	arg := strings.TrimPrefix(args[0], "%")
	id, err := strconv.Atoi(arg)
	if err != nil {
		r.errf("%s: %s: no such job\n", name, args[0])
		return nil
	}
	job := r.jobs.byID(id)
	if job == nil {
		r.errf("%s: %%%d: no such job\n", name, id)
	}
	return job
}
