// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"io"

	"mvdan.cc/posh/builtin"
	"mvdan.cc/posh/divert"
	"mvdan.cc/posh/function"
	"mvdan.cc/posh/job"
	"mvdan.cc/posh/search"
	"mvdan.cc/posh/system"
	"mvdan.cc/posh/trap"
	"mvdan.cc/posh/variable"
)

// Runtime methods: Runner satisfies builtin.Runtime so the concrete
// builtins in package builtin can observe and mutate shell state without
// that package importing interp back (spec §4.11's dependency-inversion
// seam).
var _ builtin.Runtime = (*Runner)(nil)

func (r *Runner) Env() *variable.Env          { return r.Vars }
func (r *Runner) Functions() *function.Table  { return r.Funcs }
func (r *Runner) Builtins() *builtin.Registry { return r.BuiltinReg }
func (r *Runner) System() system.System       { return r.Sys }
func (r *Runner) Jobs() *job.Table            { return r.JobTable }
func (r *Runner) Traps() *trap.Manager        { return r.TrapMgr }

func (r *Runner) Stdin() io.Reader  { return r.stdin }
func (r *Runner) Stdout() io.Writer { return r.stdout }
func (r *Runner) Stderr() io.Writer { return r.stderr }

func (r *Runner) ExitStatus() uint8      { return r.exitStatus }
func (r *Runner) SetExitStatus(s uint8)  { r.exitStatus = s }

func (r *Runner) ScriptName() string { return r.scriptName }

func (r *Runner) Positional() []string         { return r.Vars.Positional() }
func (r *Runner) SetPositional(params []string) { r.Vars.SetPositional(params) }

// Eval parses source with the injected ParseFunc and runs it in the
// current environment (spec §4.10), backing `eval`/`.` and trap scripts.
func (r *Runner) Eval(ctx context.Context, source string) (uint8, divert.Divert, error) {
	if r.Parse == nil {
		return 0, divert.None, ErrNoParser{}
	}
	stmts, err := r.Parse(r.scriptName, source)
	if err != nil {
		return 0, divert.None, err
	}
	d := r.Run(ctx, stmts)
	return r.exitStatus, d, nil
}

// Identify implements builtin.Runtime.Identify for `command -v`/`-V`.
func (r *Runner) Identify(name string, verbose bool) (string, bool) {
	return search.Identify(r.searchEnv(), name, verbose)
}

// Dispatch implements builtin.Runtime.Dispatch for the `command` builtin.
func (r *Runner) Dispatch(ctx context.Context, args []string, skipFunctions bool) builtin.Result {
	return r.dispatch(ctx, args, skipFunctions)
}

func (r *Runner) searchEnv() *search.Env {
	return &search.Env{
		Builtins:  r.BuiltinReg,
		Functions: r.Funcs,
		Vars:      r.Vars,
		Sys:       r.Sys,
	}
}

func (r *Runner) Option(flag byte) (on, known bool) {
	slot, ok := optFlags[flag]
	if !ok {
		return false, false
	}
	return r.opts[slot], true
}

func (r *Runner) SetOption(flag byte, on bool) error {
	slot, ok := optFlags[flag]
	if !ok {
		return &UnknownOptionError{Flag: string(flag)}
	}
	r.opts[slot] = on
	return nil
}

func (r *Runner) OptionByName(name string) (on, known bool) {
	slot, ok := optNames[name]
	if !ok {
		return false, false
	}
	return r.opts[slot], true
}

func (r *Runner) SetOptionByName(name string, on bool) error {
	slot, ok := optNames[name]
	if !ok {
		return &UnknownOptionError{Flag: name}
	}
	r.opts[slot] = on
	return nil
}

// UnknownOptionError reports an unrecognized `set -o`/`set -X` option.
type UnknownOptionError struct{ Flag string }

func (e *UnknownOptionError) Error() string { return "set: " + e.Flag + ": unknown option" }
