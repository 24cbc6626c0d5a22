// Copyright (c) 2018, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"slices"
	"strings"
)

// Environ is the base interface for a shell's environment, allowing it
// to fetch variables by name and to iterate over all the currently set
// variables.
type Environ interface {
	// Get retrieves a variable by its name. To check if the variable is
	// set, use [Variable.IsSet].
	Get(name string) Variable

	// Each iterates over all the currently set variables, calling the
	// supplied function on each variable. Iteration is stopped if the
	// function returns false.
	//
	// The names used in the calls aren't required to be unique or
	// sorted. If a variable name appears twice, the latest occurrence
	// takes priority.
	//
	// Each is required to forward exported variables when executing
	// programs.
	Each(func(name string, vr Variable) bool)
}

// WriteEnviron is an extension on Environ that supports modifying and
// deleting variables.
type WriteEnviron interface {
	Environ
	// Set sets a variable by name. If !vr.IsSet(), the variable is
	// being unset; otherwise, the variable is being replaced.
	//
	// An error may be returned if the operation is invalid, such as
	// when the name is empty or a read-only variable is overwritten.
	Set(name string, vr Variable) error
}

// Variable describes a shell variable: a plain string value plus the
// attributes a shell context tracks for it.
type Variable struct {
	// Set is true when the variable has been set to a value, which may
	// be empty.
	Set bool

	Exported bool
	ReadOnly bool

	Str string
}

// IsSet reports whether the variable has been set to a value.
// The zero value of a Variable is unset.
func (v Variable) IsSet() bool {
	return v.Set
}

// String returns the variable's value, which is empty if unset.
func (v Variable) String() string { return v.Str }

// FuncEnviron wraps a function mapping variable names to their string
// values, and implements [Environ]. Empty strings returned by the
// function will be treated as unset variables. All variables will be
// exported.
//
// Note that the returned Environ's Each method will be a no-op.
func FuncEnviron(fn func(string) string) Environ {
	return funcEnviron(fn)
}

type funcEnviron func(string) string

func (f funcEnviron) Get(name string) Variable {
	value := f(name)
	if value == "" {
		return Variable{}
	}
	return Variable{Set: true, Exported: true, Str: value}
}

func (f funcEnviron) Each(func(name string, vr Variable) bool) {}

// ListEnviron returns an [Environ] with the supplied variables, in the
// form "key=value". All variables will be exported. The last value in
// pairs is used if multiple values are present.
func ListEnviron(pairs ...string) Environ {
	list := slices.Clone(pairs)
	slices.SortStableFunc(list, func(a, b string) int {
		asep := strings.IndexByte(a, '=') + 1
		bsep := strings.IndexByte(b, '=') + 1
		return strings.Compare(a[:asep], b[:bsep])
	})
	last := ""
	for i := 0; i < len(list); {
		name, _, ok := strings.Cut(list[i], "=")
		if name == "" || !ok {
			// invalid element; remove it
			list = slices.Delete(list, i, i+1)
			continue
		}
		if last == name {
			// duplicate; the last one wins
			list = slices.Delete(list, i-1, i)
			continue
		}
		last = name
		i++
	}
	return listEnviron(list)
}

// listEnviron is a sorted list of "name=value" strings.
type listEnviron []string

func (l listEnviron) Get(name string) Variable {
	prefix := name + "="
	i, ok := slices.BinarySearchFunc(l, prefix, func(l, prefix string) int {
		if strings.HasPrefix(l, prefix) {
			return 0
		}
		return strings.Compare(l, prefix)
	})
	if ok {
		return Variable{Set: true, Exported: true, Str: l[i][len(prefix):]}
	}
	return Variable{}
}

func (l listEnviron) Each(fn func(name string, vr Variable) bool) {
	for _, pair := range l {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			// should never happen; see ListEnviron
			panic("expand.listEnviron: malformed name-value pair: " + pair)
		}
		if !fn(name, Variable{Set: true, Exported: true, Str: value}) {
			return
		}
	}
}
