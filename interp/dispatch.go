// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"bytes"
	"context"
	"fmt"

	"mvdan.cc/posh/builtin"
	"mvdan.cc/posh/divert"
	"mvdan.cc/posh/expand"
	"mvdan.cc/posh/function"
	"mvdan.cc/posh/redir"
	"mvdan.cc/posh/search"
	"mvdan.cc/posh/sig"
	"mvdan.cc/posh/syntax"
	"mvdan.cc/posh/system"
	"mvdan.cc/posh/variable"
)

// simpleCommand expands a CallExpr's words, applies any prefix assignments,
// and searches for and dispatches to the resulting command (spec §4.8, the
// shell's single most exercised path).
func (r *Runner) simpleCommand(ctx context.Context, ce *syntax.CallExpr, assigns []*syntax.Assign) divert.Divert {
	cfg := r.expandConfig(ctx)
	words := make([]*syntax.Word, len(ce.Args))
	for i := range ce.Args {
		words[i] = &ce.Args[i]
	}
	fields, err := expand.Fields(ctx, cfg, words)
	if err != nil {
		return r.abort(err)
	}

	if len(fields) == 0 {
		// Every word expanded away to nothing (e.g. an unquoted unset
		// parameter): spec §4.8 treats this as assignments with no
		// command, persisting them directly.
		if err := r.applyAssigns(ctx, assigns, variable.Global); err != nil {
			return r.abort(err)
		}
		r.exitStatus = 0
		return divert.None
	}

	args := make([]string, len(fields))
	for i, f := range fields {
		args[i] = string(f)
	}

	pushed := len(assigns) > 0
	if pushed {
		r.Vars.PushVolatile()
		if err := r.applyAssigns(ctx, assigns, variable.Local); err != nil {
			r.Vars.Pop()
			return r.abort(err)
		}
	}

	target, found := search.Search(r.searchEnv(), args[0])
	special := found && target.Kind == search.Builtin && target.Builtin.Kind == builtin.Special

	if pushed {
		if special {
			// A special builtin's preceding assignments persist in the
			// current scope rather than being scoped to the command
			// (spec §4.8, §4.11's Kind table).
			r.promoteVolatileAssigns(assigns)
		} else {
			defer r.Vars.Pop()
		}
	}

	if !found {
		fmt.Fprintf(r.stderr, "%s: command not found\n", args[0])
		r.exitStatus = 127
		return divert.None
	}

	switch target.Kind {
	case search.Builtin:
		return r.runBuiltin(ctx, target.Builtin, args)
	case search.Function:
		return r.callFunction(ctx, target.Func, args)
	default:
		return r.runExternal(ctx, args[0], target.Path, args)
	}
}

// promoteVolatileAssigns moves the current Volatile context's bindings for
// assigns into the Global scope and pops the context, used when the command
// those assignments preceded turned out to be a special builtin (spec
// §4.8, §4.11).
func (r *Runner) promoteVolatileAssigns(assigns []*syntax.Assign) {
	vals := make([]variable.Variable, len(assigns))
	found := make([]bool, len(assigns))
	for i, as := range assigns {
		if vr, ok := r.Vars.GetScoped(as.Name.Value, variable.Local); ok {
			vals[i], found[i] = vr, true
		}
	}
	r.Vars.Pop()
	for i, as := range assigns {
		if found[i] {
			r.Vars.Assign(as.Name.Value, vals[i].Value, as.Name.Pos(), variable.Global)
		}
	}
}

// applyAssigns expands and binds each assignment's value in scope, honoring
// "+=" append semantics for scalars and arrays (spec §4.2, §4.8).
func (r *Runner) applyAssigns(ctx context.Context, assigns []*syntax.Assign, scope variable.Scope) error {
	cfg := r.expandConfig(ctx)
	for _, as := range assigns {
		field, err := expand.Assign(ctx, cfg, &as.Value)
		if err != nil {
			return err
		}
		var newVal variable.Value = variable.Scalar(field)
		if as.Append {
			if prev, ok := r.Vars.GetScoped(as.Name.Value, scope); ok {
				switch pv := prev.Value.(type) {
				case variable.Scalar:
					newVal = variable.Scalar(string(pv) + string(field))
				case variable.Array:
					newVal = append(append(variable.Array{}, pv...), string(field))
				}
			}
		}
		if _, err := r.Vars.Assign(as.Name.Value, newVal, as.Name.Pos(), scope); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runBuiltin(ctx context.Context, b *builtin.Builtin, args []string) divert.Divert {
	if b.Run == nil {
		fmt.Fprintf(r.stderr, "%s: not implemented\n", args[0])
		r.exitStatus = 127
		return divert.None
	}
	result := b.Run(ctx, r, args)
	r.exitStatus = result.ExitStatus
	return result.Divert
}

// callFunction runs fn's body in a new Regular variable scope with args[1:]
// bound as positional parameters, converting a bare Return into the
// function's own exit status (spec §4.3, §9).
func (r *Runner) callFunction(ctx context.Context, fn *function.Function, args []string) divert.Divert {
	r.Vars.PushRegular()
	r.Vars.SetPositional(args[1:])
	wasInFunc := r.inFunc
	r.inFunc = true

	d := r.stmt(ctx, fn.Body)

	r.inFunc = wasInFunc
	r.Vars.Pop()

	if d.Kind == divert.Return {
		if d.Status.HasStatus {
			r.exitStatus = d.Status.Value
		}
		return divert.None
	}
	return d
}

// runExternal spawns path as a child process, waits for it, and converts
// its WaitStatus into the shell's exit status (spec §4.8's "External"
// command kind).
func (r *Runner) runExternal(ctx context.Context, name, path string, args []string) divert.Divert {
	dir, _ := r.Sys.Getcwd()
	attr := system.ProcessAttr{
		Dir:   dir,
		Env:   r.Vars.EnvCStrings(),
		Files: [3]system.Fd{system.Stdin, system.Stdout, system.Stderr},
	}
	pid, err := r.Sys.StartProcess(path, args, attr)
	if err != nil {
		fmt.Fprintf(r.stderr, "%s: %v\n", name, err)
		r.exitStatus = 126
		return divert.None
	}
	ws, err := r.Sys.WaitPid(pid, true)
	if err != nil {
		fmt.Fprintf(r.stderr, "%s: %v\n", name, err)
		r.exitStatus = 126
		return divert.None
	}
	r.applyWaitStatusToExit(ws)
	return divert.None
}

func (r *Runner) applyWaitStatusToExit(ws system.WaitStatus) {
	switch {
	case ws.Exited:
		r.exitStatus = ws.ExitCode
	case ws.Signaled:
		r.exitStatus = 128 + signalNumber(ws.Signal)
	default:
		r.exitStatus = 0
	}
}

func signalNumber(s sig.Name) uint8 {
	if n, ok := sig.NumberOf(s); ok {
		return uint8(n)
	}
	return 0
}

// flattenPipeline walks a left-nested chain of Pipe/PipeAll BinaryCmds into
// an ordered stage list. Only the outermost Stmt may carry the pipeline's
// own redirections/negation (applied by the caller); an intermediate stage
// wrapper with its own Redirs or Negated would mean the grammar attached
// them to one pipe segment specifically, which this workspace's parser
// front-end (see DESIGN.md) never produces, so such a stage is treated as a
// pipeline boundary rather than flattened further.
func flattenPipeline(b *syntax.BinaryCmd) []*syntax.Stmt {
	var stmts []*syntax.Stmt
	var walk func(st *syntax.Stmt)
	walk = func(st *syntax.Stmt) {
		if bc, ok := st.Cmd.(*syntax.BinaryCmd); ok && !st.Negated && len(st.Redirs) == 0 &&
			(bc.Op == syntax.Pipe || bc.Op == syntax.PipeAll) {
			walk(bc.X)
			walk(bc.Y)
			return
		}
		stmts = append(stmts, st)
	}
	walk(b.X)
	walk(b.Y)
	return stmts
}

// execPipeline runs each stage of a pipeline in its own cloned subshell
// Runner, relaying one stage's captured stdout as the next stage's stdin
// (spec §4.8's Pipe/PipeAll command kind).
//
// Stages run sequentially to completion rather than concurrently: this
// workspace's virtual System models pipe reads as "return whatever is
// buffered so far, never blocking and never reporting EOF" (see DESIGN.md),
// which makes a concurrent producer/consumer goroutine pair race against
// that ambiguity. Running stage N to completion before starting stage N+1
// sidesteps it entirely, at the cost of not overlapping pipeline stages'
// work the way a forking shell would.
func (r *Runner) execPipeline(ctx context.Context, b *syntax.BinaryCmd) divert.Divert {
	stmts := flattenPipeline(b)

	var pending []byte
	var statuses []uint8
	var lastDiv divert.Divert

	for i, st := range stmts {
		last := i == len(stmts)-1
		sub := r.cloneRunner()
		sub.Redir = redir.New(sub.Sys)

		savedIn, _ := r.Sys.Dup(system.Stdin)
		ipr, ipw, _ := r.Sys.Pipe()
		if len(pending) > 0 {
			r.Sys.Write(ipw, pending)
		}
		r.Sys.Close(ipw)
		r.Sys.Dup2(ipr, system.Stdin)
		r.Sys.Close(ipr)

		var savedOut, opr system.Fd
		if !last {
			savedOut, _ = r.Sys.Dup(system.Stdout)
			var opw system.Fd
			opr, opw, _ = r.Sys.Pipe()
			r.Sys.Dup2(opw, system.Stdout)
			r.Sys.Close(opw)
		}

		d := sub.stmt(ctx, st)
		statuses = append(statuses, sub.exitStatus)
		lastDiv = d

		r.Sys.Dup2(savedIn, system.Stdin)
		r.Sys.Close(savedIn)

		if !last {
			r.Sys.Dup2(savedOut, system.Stdout)
			r.Sys.Close(savedOut)
			pending = drainPipe(r.Sys, opr)
			r.Sys.Close(opr)
		}

		if !d.IsNone() {
			break
		}
	}

	if len(statuses) > 0 {
		r.exitStatus = statuses[len(statuses)-1]
		if r.opts[optPipeFail] {
			for i := len(statuses) - 1; i >= 0; i-- {
				if statuses[i] != 0 {
					r.exitStatus = statuses[i]
					break
				}
			}
		}
	}
	if !lastDiv.IsNone() {
		return lastDiv
	}
	return divert.None
}

func drainPipe(sys system.System, fd system.Fd) []byte {
	var buf bytes.Buffer
	tmp := make([]byte, 4096)
	for {
		n, err := sys.Read(fd, tmp)
		if n > 0 {
			buf.Write(tmp[:n])
		}
		if n == 0 || err != nil {
			break
		}
	}
	return buf.Bytes()
}
