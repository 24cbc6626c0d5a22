// Copyright (c) 2019, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"fmt"
	"maps"
	"os"
	"strconv"

	"github.com/hsh-shell/hsh/expand"
)

// overlayEnviron is an [expand.WriteEnviron] that writes variables to
// an in-memory overlay on top of a read-only parent environment.
type overlayEnviron struct {
	parent expand.Environ
	values map[string]expand.Variable
}

func newOverlayEnviron(parent expand.Environ) *overlayEnviron {
	return &overlayEnviron{
		parent: parent,
		values: make(map[string]expand.Variable),
	}
}

// cloneOverlayEnviron deep-copies the overlay, so that a subshell can
// mutate its variables without the parent seeing the changes.
func cloneOverlayEnviron(env expand.WriteEnviron) expand.WriteEnviron {
	oenv := env.(*overlayEnviron)
	return &overlayEnviron{
		parent: oenv.parent,
		values: maps.Clone(oenv.values),
	}
}

func (o *overlayEnviron) Get(name string) expand.Variable {
	if vr, ok := o.values[name]; ok {
		return vr
	}
	return o.parent.Get(name)
}

func (o *overlayEnviron) Set(name string, vr expand.Variable) error {
	if name == "" {
		return fmt.Errorf("invalid variable name")
	}
	if prev, ok := o.values[name]; ok && prev.ReadOnly {
		return fmt.Errorf("%s: readonly variable", name)
	}
	o.values[name] = vr
	return nil
}

// Each iterates the parent environment and then the overlay, so that
// overlay entries take priority per the Each contract. Variables that
// were unset (and not exported) stay hidden.
func (o *overlayEnviron) Each(fn func(name string, vr expand.Variable) bool) {
	cont := true
	o.parent.Each(func(name string, vr expand.Variable) bool {
		if _, ok := o.values[name]; ok {
			return true // overridden by the overlay below
		}
		cont = fn(name, vr)
		return cont
	})
	if !cont {
		return
	}
	for name, vr := range o.values {
		if !vr.IsSet() && !vr.Exported {
			continue
		}
		if !fn(name, vr) {
			return
		}
	}
}

func (r *Runner) setVar(name string, vr expand.Variable) {
	if err := r.writeEnv.Set(name, vr); err != nil {
		r.errf("%v\n", err)
	}
}

func (r *Runner) setVarString(name, value string) {
	prev := r.writeEnv.Get(name)
	r.setVar(name, expand.Variable{Set: true, Exported: prev.Exported, Str: value})
}

func (r *Runner) delVar(name string) {
	r.writeEnv.Set(name, expand.Variable{})
}

// lookupVar resolves a variable or special parameter name the way the
// expander sees them: $? $$ $! $0 $# $* $@ and the positionals come
// from the interpreter state, everything else from the environment.
func (r *Runner) lookupVar(name string) expand.Variable {
	set := func(s string) expand.Variable {
		return expand.Variable{Set: true, Str: s}
	}
	switch name {
	case "?":
		return set(strconv.Itoa(int(r.lastExit.code)))
	case "$":
		return set(strconv.Itoa(os.Getpid()))
	case "!":
		if pid := r.jobs.lastBgPid(); pid > 0 {
			return set(strconv.Itoa(pid))
		}
		return expand.Variable{}
	case "0":
		if r.filename != "" {
			return set(r.filename)
		}
		return set("hsh")
	case "#":
		return set(strconv.Itoa(len(r.Params)))
	case "*", "@":
		str := ""
		for i, p := range r.Params {
			if i > 0 {
				str += " "
			}
			str += p
		}
		return set(str)
	case "-":
		return expand.Variable{}
	}
	if len(name) > 0 && name[0] >= '1' && name[0] <= '9' {
		if n, err := strconv.Atoi(name); err == nil {
			if n <= len(r.Params) {
				return set(r.Params[n-1])
			}
			return expand.Variable{}
		}
	}
	return r.writeEnv.Get(name)
}

// expandEnv adapts a Runner to [expand.Environ], so that parameter
// expansion resolves special parameters through the shell state.
type expandEnv struct {
	r *Runner
}

func (e expandEnv) Get(name string) expand.Variable {
	return e.r.lookupVar(name)
}

func (e expandEnv) Each(fn func(name string, vr expand.Variable) bool) {
	e.r.writeEnv.Each(fn)
}

// Vars returns a snapshot of the variables that were set while
// running, not including the initial environment.
func (r *Runner) Vars() map[string]expand.Variable {
	vars := make(map[string]expand.Variable)
	if r.writeEnv == nil {
		return vars
	}
	for name, vr := range r.writeEnv.(*overlayEnviron).values {
		if vr.IsSet() {
			vars[name] = vr
		}
	}
	return vars
}

// ValidName reports whether the string is a valid shell variable name:
// letters, digits and underscores, not starting with a digit.
func ValidName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b == '_', b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z':
		case b >= '0' && b <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
