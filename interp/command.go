// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"fmt"

	"mvdan.cc/posh/builtin"
	"mvdan.cc/posh/function"
	"mvdan.cc/posh/search"
)

// dispatch runs the search-and-invoke half of a simple command directly
// against already-expanded args, without any assignment or redirection
// handling of its own: the primitive the `command` builtin needs (spec
// §4.11's SUPPLEMENTED "command" utility). simpleCommand does not call it;
// it does its own search after expanding a CallExpr's words.
func (r *Runner) dispatch(ctx context.Context, args []string, skipFunctions bool) builtin.Result {
	if len(args) == 0 {
		return builtin.Result{}
	}

	env := r.searchEnv()
	if skipFunctions {
		// `command` never consults the function table (spec §4.11); an
		// empty, throwaway Table makes every lookup miss without
		// disturbing the shell's real one.
		env = &search.Env{Builtins: r.BuiltinReg, Functions: &function.Table{}, Vars: r.Vars, Sys: r.Sys}
	}

	target, found := search.Search(env, args[0])
	if !found {
		fmt.Fprintf(r.stderr, "%s: not found\n", args[0])
		r.exitStatus = 127
		return builtin.Result{ExitStatus: 127}
	}

	switch target.Kind {
	case search.Builtin:
		d := r.runBuiltin(ctx, target.Builtin, args)
		return builtin.Result{ExitStatus: r.exitStatus, Divert: d}
	case search.Function:
		d := r.callFunction(ctx, target.Func, args)
		return builtin.Result{ExitStatus: r.exitStatus, Divert: d}
	default:
		d := r.runExternal(ctx, args[0], target.Path, args)
		return builtin.Result{ExitStatus: r.exitStatus, Divert: d}
	}
}
