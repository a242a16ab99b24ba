// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package builtin

import (
	"bytes"
	"context"
	"io"
	"strings"

	"mvdan.cc/posh/divert"
	"mvdan.cc/posh/function"
	"mvdan.cc/posh/job"
	"mvdan.cc/posh/system"
	"mvdan.cc/posh/system/virtual"
	"mvdan.cc/posh/trap"
	"mvdan.cc/posh/variable"
)

// fakeRuntime is a hand-rolled Runtime double: builtin cannot import interp
// (the package that owns the real implementation, Runner) without a cycle,
// so these tests exercise each Builtin.Run directly against a minimal
// stand-in built from the same sibling packages Runner itself composes.
type fakeRuntime struct {
	env      *variable.Env
	funcs    *function.Table
	builtins *Registry
	sys      system.System
	jobs     *job.Table
	traps    *trap.Manager

	stdin          io.Reader
	stdout, stderr bytes.Buffer

	exitStatus uint8
	scriptName string
	positional []string

	opts     map[byte]bool
	optNames map[string]bool

	evalFn     func(ctx context.Context, source string) (uint8, divert.Divert, error)
	identifyFn func(name string, verbose bool) (string, bool)
	dispatchFn func(ctx context.Context, args []string, skipFunctions bool) Result
}

func newFakeRuntime() *fakeRuntime {
	sys := virtual.New()
	return &fakeRuntime{
		env:      variable.New(),
		funcs:    &function.Table{},
		builtins: &Registry{},
		sys:      sys,
		jobs:     job.New(),
		traps:    trap.New(sys, nil),
		stdin:    strings.NewReader(""),
		opts:     make(map[byte]bool),
		optNames: make(map[string]bool),
	}
}

func (f *fakeRuntime) Env() *variable.Env       { return f.env }
func (f *fakeRuntime) Functions() *function.Table { return f.funcs }
func (f *fakeRuntime) Builtins() *Registry      { return f.builtins }
func (f *fakeRuntime) System() system.System    { return f.sys }
func (f *fakeRuntime) Jobs() *job.Table         { return f.jobs }
func (f *fakeRuntime) Traps() *trap.Manager     { return f.traps }

func (f *fakeRuntime) Stdin() io.Reader  { return f.stdin }
func (f *fakeRuntime) Stdout() io.Writer { return &f.stdout }
func (f *fakeRuntime) Stderr() io.Writer { return &f.stderr }

func (f *fakeRuntime) ExitStatus() uint8     { return f.exitStatus }
func (f *fakeRuntime) SetExitStatus(s uint8) { f.exitStatus = s }

func (f *fakeRuntime) ScriptName() string         { return f.scriptName }
func (f *fakeRuntime) Positional() []string       { return f.positional }
func (f *fakeRuntime) SetPositional(p []string)   { f.positional = p }

func (f *fakeRuntime) Eval(ctx context.Context, source string) (uint8, divert.Divert, error) {
	if f.evalFn != nil {
		return f.evalFn(ctx, source)
	}
	return 0, divert.Divert{}, nil
}

func (f *fakeRuntime) Identify(name string, verbose bool) (string, bool) {
	if f.identifyFn != nil {
		return f.identifyFn(name, verbose)
	}
	return "", false
}

func (f *fakeRuntime) Dispatch(ctx context.Context, args []string, skipFunctions bool) Result {
	if f.dispatchFn != nil {
		return f.dispatchFn(ctx, args, skipFunctions)
	}
	return Result{ExitStatus: 127}
}

func (f *fakeRuntime) Option(flag byte) (bool, bool) {
	on, known := f.opts[flag]
	return on, known
}

func (f *fakeRuntime) SetOption(flag byte, on bool) error {
	f.opts[flag] = on
	return nil
}

func (f *fakeRuntime) OptionByName(name string) (bool, bool) {
	on, known := f.optNames[name]
	return on, known
}

func (f *fakeRuntime) SetOptionByName(name string, on bool) error {
	f.optNames[name] = on
	return nil
}
