// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package variable implements the shell's variable environment (spec §4.2):
// a stack of scopes holding typed values, with read-only enforcement and
// exported-environment synthesis.
package variable

import (
	"sort"
	"strings"

	"mvdan.cc/posh/syntax"
)

// Value is a variable's content: either a scalar string or an ordered array.
// A nil Value means the variable is unset.
type Value interface {
	isValue()
}

// Scalar is a plain string value.
type Scalar string

func (Scalar) isValue() {}

// Array is an ordered sequence of strings, used for $@ and user arrays.
type Array []string

func (Array) isValue() {}

// JoinWith concatenates an Array's elements with sep between them; callers
// pick the separator (EnvCStrings uses ':').
func (a Array) JoinWith(sep string) string { return strings.Join([]string(a), sep) }

// Location is a parser-reported position, used to blame assignments and
// read-only declarations for diagnostics (spec §7).
type Location = syntax.Pos

// Variable is one named binding (spec §3 "Variable").
type Variable struct {
	Value              Value
	LastAssignLocation Location
	IsExported         bool
	ReadOnlyLocation   *Location // non-nil iff read-only
}

// IsSet reports whether the variable currently holds a value.
func (v Variable) IsSet() bool { return v.Value != nil }

// IsReadOnly reports whether assignment to this variable is forbidden.
func (v Variable) IsReadOnly() bool { return v.ReadOnlyLocation != nil }

// String renders the value the way parameter expansion does for a scalar
// context: the scalar itself, or an array's first element.
func (v Variable) String() string {
	switch val := v.Value.(type) {
	case Scalar:
		return string(val)
	case Array:
		if len(val) > 0 {
			return val[0]
		}
		return ""
	}
	return ""
}

// ReadOnlyError reports an attempt to modify a read-only variable
// (spec §4.2 "Error kinds").
type ReadOnlyError struct {
	Name             string
	ReadOnlyLocation Location
	NewValue         Value
}

func (e *ReadOnlyError) Error() string {
	return e.Name + ": readonly variable"
}

// UnsetError reports an attempt to unset a read-only variable.
type UnsetError struct {
	Name             string
	ReadOnlyLocation Location
}

func (e *UnsetError) Error() string {
	return e.Name + ": cannot unset readonly variable"
}

// Scope selects where an assignment or lookup is anchored (spec §3 "Scope
// context").
type Scope int

const (
	// Global finds the topmost existing binding across the whole stack,
	// overwriting it in place; absent a match, it creates in the base
	// context.
	Global Scope = iota
	// Local always binds in the topmost context, shadowing any lower
	// binding of the same name.
	Local
)

// contextKind distinguishes the three kinds of scope context (spec §3).
type contextKind int

const (
	// kindBase is the implicit bottom context; always present.
	kindBase contextKind = iota
	// kindRegular backs a function body or subshell frame.
	kindRegular
	// kindVolatile backs single-command assignments made to regular
	// builtins/externals, and is torn down when that command returns.
	kindVolatile
)

type context struct {
	kind   contextKind
	values map[string]*Variable
}

func newContext(kind contextKind) *context {
	return &context{kind: kind, values: make(map[string]*Variable)}
}

// Env is the stack of scopes described by spec §4.2. The zero value is not
// usable; call New.
type Env struct {
	stack []*context
}

// New creates an Env with only the implicit base context.
func New() *Env {
	e := &Env{}
	e.stack = append(e.stack, newContext(kindBase))
	return e
}

// PushRegular enters a new Regular context (function call or subshell).
func (e *Env) PushRegular() { e.stack = append(e.stack, newContext(kindRegular)) }

// PushVolatile enters a new Volatile context (single-command assignment
// scope for a regular builtin/external).
func (e *Env) PushVolatile() { e.stack = append(e.stack, newContext(kindVolatile)) }

// Pop discards the topmost context. Panics if called more times than
// contexts were pushed beyond the base.
func (e *Env) Pop() {
	if len(e.stack) <= 1 {
		panic("variable: Pop called on base context")
	}
	e.stack = e.stack[:len(e.stack)-1]
}

// Get looks up name by walking the context stack from top to bottom.
func (e *Env) Get(name string) (Variable, bool) {
	for i := len(e.stack) - 1; i >= 0; i-- {
		if vr, ok := e.stack[i].values[name]; ok {
			return *vr, true
		}
	}
	return Variable{}, false
}

// GetScoped looks up name only within the given scope's anchor: for Local,
// only the topmost context; for Global, the same search as Get.
func (e *Env) GetScoped(name string, scope Scope) (Variable, bool) {
	if scope == Local {
		top := e.stack[len(e.stack)-1]
		if vr, ok := top.values[name]; ok {
			return *vr, true
		}
		return Variable{}, false
	}
	return e.Get(name)
}

// Assign implements spec §4.2's assignment policy. loc blames the
// assignment's source location.
func (e *Env) Assign(name string, value Value, loc Location, scope Scope) (prev Variable, err error) {
	target, found := e.findTarget(name, scope)
	if found && target.IsReadOnly() {
		return *target, &ReadOnlyError{Name: name, ReadOnlyLocation: *target.ReadOnlyLocation, NewValue: value}
	}
	if found {
		prev = *target
		target.Value = value
		target.LastAssignLocation = loc
		return prev, nil
	}
	nv := &Variable{Value: value, LastAssignLocation: loc}
	e.bind(name, nv, scope)
	return Variable{}, nil
}

// findTarget locates the *Variable that an assignment with the given scope
// would modify, without creating it.
func (e *Env) findTarget(name string, scope Scope) (*Variable, bool) {
	if scope == Local {
		top := e.stack[len(e.stack)-1]
		if vr, ok := top.values[name]; ok {
			return vr, true
		}
		return nil, false
	}
	for i := len(e.stack) - 1; i >= 0; i-- {
		if vr, ok := e.stack[i].values[name]; ok {
			return vr, true
		}
	}
	return nil, false
}

// bind creates name in the context Assign's policy selects.
func (e *Env) bind(name string, vr *Variable, scope Scope) {
	if scope == Local {
		top := e.stack[len(e.stack)-1]
		top.values[name] = vr
		return
	}
	e.stack[0].values[name] = vr // Global with no existing binding creates in the base
}

// GetOrCreate returns a handle to name in the given scope, creating an unset
// Variable there if absent, without going through Assign's read-only check.
func (e *Env) GetOrCreate(name string, scope Scope) *Variable {
	if vr, ok := e.findTarget(name, scope); ok {
		return vr
	}
	vr := &Variable{}
	e.bind(name, vr, scope)
	return vr
}

// MakeReadOnly marks the topmost binding of name read-only, creating an
// unset-but-declared binding in the base context if none exists yet.
func (e *Env) MakeReadOnly(name string, loc Location) {
	vr := e.GetOrCreate(name, Global)
	vr.ReadOnlyLocation = &loc
}

// Export sets or clears name's exported flag, creating the variable unset
// in the base context if it does not exist.
func (e *Env) Export(name string, exported bool) error {
	vr, found := e.findTarget(name, Global)
	if !found {
		vr = e.GetOrCreate(name, Global)
	}
	vr.IsExported = exported
	return nil
}

// Unset implements spec §4.2's unset, honoring read-only enforcement.
func (e *Env) Unset(name string, scope Scope) error {
	for i := len(e.stack) - 1; i >= 0; i-- {
		vr, ok := e.stack[i].values[name]
		if !ok {
			if scope == Local {
				return nil
			}
			continue
		}
		if vr.IsReadOnly() {
			return &UnsetError{Name: name, ReadOnlyLocation: *vr.ReadOnlyLocation}
		}
		delete(e.stack[i].values, name)
		return nil
	}
	return nil
}

// Iter calls fn for every visible variable (topmost binding of each name),
// across the whole context stack.
func (e *Env) Iter(fn func(name string, vr Variable) bool) {
	seen := make(map[string]bool)
	for i := len(e.stack) - 1; i >= 0; i-- {
		// Sort names for determinism, matching the teacher's preference for
		// reproducible `export`/`typeset -p` output in tests.
		names := make([]string, 0, len(e.stack[i].values))
		for name := range e.stack[i].values {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if seen[name] {
				continue
			}
			seen[name] = true
			if !fn(name, *e.stack[i].values[name]) {
				return
			}
		}
	}
}

// Clone deep-copies the entire context stack, so that assignments,
// exports and read-only marks made through the clone never mutate e. This
// backs subshell and command-substitution isolation, where the child gets
// its own copy of every variable binding rather than a shared one.
func (e *Env) Clone() *Env {
	clone := &Env{stack: make([]*context, len(e.stack))}
	for i, c := range e.stack {
		nc := &context{kind: c.kind, values: make(map[string]*Variable, len(c.values))}
		for name, vr := range c.values {
			cp := *vr
			nc.values[name] = &cp
		}
		clone.stack[i] = nc
	}
	return clone
}

// EnvCStrings materializes "name=value" pairs for every exported, set
// variable, for use as the envp argument to execve (spec §4.2 invariant).
// Arrays join with ":", matching the teacher's PATH-like array-to-string
// convention.
func (e *Env) EnvCStrings() []string {
	var out []string
	e.Iter(func(name string, vr Variable) bool {
		if !vr.IsExported || !vr.IsSet() {
			return true
		}
		if strings.ContainsAny(name, "=\x00") {
			return true
		}
		var val string
		switch v := vr.Value.(type) {
		case Scalar:
			val = string(v)
		case Array:
			val = v.JoinWith(":")
		}
		out = append(out, name+"="+val)
		return true
	})
	return out
}

// Positional implements the "@" pseudo-variable of spec §4.2: positional
// parameters are stored in the topmost Regular context.
func (e *Env) Positional() []string {
	for i := len(e.stack) - 1; i >= 0; i-- {
		if e.stack[i].kind == kindRegular {
			if vr, ok := e.stack[i].values["@"]; ok {
				if arr, ok := vr.Value.(Array); ok {
					return []string(arr)
				}
			}
			return nil
		}
	}
	if vr, ok := e.stack[0].values["@"]; ok {
		if arr, ok := vr.Value.(Array); ok {
			return []string(arr)
		}
	}
	return nil
}

// SetPositional rebinds "@" in the topmost Regular context (or the base
// context, for the top-level script).
func (e *Env) SetPositional(params []string) {
	for i := len(e.stack) - 1; i >= 0; i-- {
		if e.stack[i].kind == kindRegular {
			e.stack[i].values["@"] = &Variable{Value: Array(params)}
			return
		}
	}
	e.stack[0].values["@"] = &Variable{Value: Array(params)}
}
