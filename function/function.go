// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package function implements the shell's function table (spec §4.3): named
// AST bodies with an optional read-only flag.
package function

import (
	"fmt"

	"mvdan.cc/posh/syntax"
)

// Function is a named compound-command body bound by a function definition
// command (spec §3 "Function").
type Function struct {
	Name     string
	Body     *syntax.Stmt // the compound command, reference-counted via Go's GC
	Origin   syntax.Pos
	ReadOnly bool
}

// DefinitionError reports an attempt to redefine a read-only function.
type DefinitionError struct {
	Name           string
	ExistingOrigin syntax.Pos
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("%s: readonly function", e.Name)
}

// Table holds the shell's defined functions. The zero value is ready to use.
type Table struct {
	byName map[string]*Function
}

// Define binds fn.Name to fn, unless an existing read-only function with the
// same name is present. Redefining during a running call is safe for that
// call: callers execute a cloned handle obtained from Get before Define
// runs, so a running body is unaffected by its own redefinition.
func (t *Table) Define(fn *Function) error {
	if existing, ok := t.byName[fn.Name]; ok && existing.ReadOnly {
		return &DefinitionError{Name: fn.Name, ExistingOrigin: existing.Origin}
	}
	if t.byName == nil {
		t.byName = make(map[string]*Function)
	}
	t.byName[fn.Name] = fn
	return nil
}

// Get returns the function bound to name, or nil if none is defined. The
// returned pointer is a stable handle: later redefinition rebinds the name
// in the table without mutating a Function value already obtained here.
func (t *Table) Get(name string) *Function {
	return t.byName[name]
}

// Unset removes name from the table, unless it is read-only.
func (t *Table) Unset(name string) error {
	if fn, ok := t.byName[name]; ok && fn.ReadOnly {
		return &DefinitionError{Name: name, ExistingOrigin: fn.Origin}
	}
	delete(t.byName, name)
	return nil
}

// Clone shallow-copies the name-to-function map, so that a subshell or
// command substitution can define or unset functions of its own without
// those changes reaching the parent table. Function bodies themselves are
// immutable ASTs and are safe to share between the original and the clone.
func (t *Table) Clone() *Table {
	nt := &Table{byName: make(map[string]*Function, len(t.byName))}
	for name, fn := range t.byName {
		nt.byName[name] = fn
	}
	return nt
}

// Iter calls fn for every defined function, in unspecified order.
func (t *Table) Iter(fn func(*Function) bool) {
	for _, f := range t.byName {
		if !fn(f) {
			return
		}
	}
}
