// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"

	"mvdan.cc/posh/divert"
	"mvdan.cc/posh/job"
	"mvdan.cc/posh/redir"
	"mvdan.cc/posh/syntax"
	"mvdan.cc/posh/system"
)

// cloneRunner builds a new execution environment for a subshell, background
// job, or command substitution: its own copy of every variable binding and
// defined function, so that nothing it does is visible to the parent once
// it finishes (spec §4.8's "Subshell"/"External" isolation rule), grounded
// on the teacher's r.subshell, which likewise clones parameters, variables
// and functions for its bgProc/subshell paths.
//
// Sys, the job table, and the redirection engine's underlying file
// descriptor numbers are left shared: this workspace's System façade models
// one process's worth of state, not a forked copy, so a cloned Runner still
// observes the same open files and the same job table as its parent. That
// is the right behavior for a synchronous `(...)` subshell (nothing else
// runs concurrently with it), and is a documented, deliberate
// simplification for a backgrounded job (see runBackground).
func (r *Runner) cloneRunner() *Runner {
	nr := *r
	nr.Vars = r.Vars.Clone()
	nr.Funcs = r.Funcs.Clone()
	nr.TrapMgr = r.TrapMgr.Clone()
	nr.inSubshell = true
	return &nr
}

// runSubshell runs stmts in a cloned environment and folds its outcome back
// into r: only the exit status crosses the boundary, never a variable,
// function, or trap change, and never a Return/Break/ContinueLoop (spec
// §4.8's "Subshell" command kind: there is no enclosing loop or function
// for one of those to target once the subshell itself has no more frames).
func (r *Runner) runSubshell(ctx context.Context, stmts []*syntax.Stmt) divert.Divert {
	sub := r.cloneRunner()
	d := sub.Run(ctx, stmts)
	r.exitStatus = sub.exitStatus

	switch d.Kind {
	case divert.Exit:
		if d.Status.HasStatus {
			r.exitStatus = d.Status.Value
		}
		return divert.None
	case divert.Interrupt:
		return d
	default:
		return divert.None
	}
}

// runBackground starts st (with its own Background flag cleared) running in
// a goroutine, registers it in the job table immediately so `jobs`/`wait`
// can observe it right away, and reports its completion via
// job.Table.SetState once it finishes (spec §4.5, §4.8's "Background"
// statement kind), grounded on the teacher's r.stmt: clone the runner's
// state, strip Background, run the clone in `go func(){ ... }()`, and
// signal completion once it returns.
//
// The clone's Redir engine is fresh rather than shared, so that the
// goroutine's own redirections never race the parent's concurrently
// running Scope stack; the underlying System file descriptor table is
// still shared, a known limitation of not truly forking a process per job
// (see cloneRunner and DESIGN.md).
func (r *Runner) runBackground(ctx context.Context, st *syntax.Stmt) {
	sub := r.cloneRunner()
	sub.Redir = redir.New(sub.Sys)

	st2 := *st
	st2.Background = false

	j := &job.Job{Name: backgroundName(st), State: job.RunningState}
	idx := r.JobTable.Add(j)
	// This job never corresponds to a real OS process (it may be a
	// backgrounded builtin, function, or compound command), so there is no
	// WaitStatus for PollSIGCHLD to ever observe; give it a synthetic,
	// negative, table-unique Pid so `kill`/`wait` can still name it without
	// colliding with a real child's Pid.
	j.Pid = system.Pid(-idx)
	r.backgroundPID = int(j.Pid)

	// r.bgShells (golang.org/x/sync/errgroup), not a bare goroutine, tracks
	// this job so WaitBackground can join it later; the Func always
	// returns nil since a job's failure is reported through the job table,
	// not through errgroup's error aggregation (grounded on the teacher's
	// own Runner.bgShells field in interp/interp.go).
	r.bgShells.Go(func() error {
		d := sub.stmt(ctx, &st2)
		status := sub.exitStatus
		if d.Kind == divert.Exit && d.Status.HasStatus {
			status = d.Status.Value
		}
		r.JobTable.SetState(idx, job.State{Result: job.Result{Kind: job.Exited, Code: status}})
		return nil
	})
}

// WaitBackground blocks until every background job this Runner has
// launched has finished running. RunSource does not call it; it gives
// callers and tests a deterministic join point instead of polling the job
// table.
func (r *Runner) WaitBackground() {
	r.bgShells.Wait()
}

func backgroundName(st *syntax.Stmt) string {
	if ce, ok := st.Cmd.(*syntax.CallExpr); ok && len(ce.Args) > 0 {
		if lit, ok := ce.Args[0].Parts[0].(*syntax.Lit); ok {
			return lit.Value
		}
	}
	return "background job"
}

// runCmdSubst implements expand.CmdSubstRunner: it runs stmts in a cloned
// environment with its standard output redirected to a pipe, then drains
// the pipe in one shot once the clone has finished (spec §4.8's "Command
// substitution" expansion).
//
// Like execPipeline, this relies on running the producer to completion
// before reading any of its output, rather than draining concurrently:
// the virtual System's pipe Read never blocks and never reports EOF (see
// DESIGN.md), so there is no safe point at which a concurrent reader could
// tell "empty so far" from "done forever".
func (r *Runner) runCmdSubst(ctx context.Context, stmts []*syntax.Stmt) (string, uint8, error) {
	pr, pw, err := r.Sys.Pipe()
	if err != nil {
		return "", 0, err
	}
	savedOut, err := r.Sys.Dup(system.Stdout)
	if err != nil {
		r.Sys.Close(pr)
		r.Sys.Close(pw)
		return "", 0, err
	}
	if err := r.Sys.Dup2(pw, system.Stdout); err != nil {
		r.Sys.Close(pr)
		r.Sys.Close(pw)
		r.Sys.Close(savedOut)
		return "", 0, err
	}
	r.Sys.Close(pw)

	sub := r.cloneRunner()
	d := sub.Run(ctx, stmts)
	status := sub.exitStatus
	if d.Kind == divert.Exit && d.Status.HasStatus {
		status = d.Status.Value
	}

	r.Sys.Dup2(savedOut, system.Stdout)
	r.Sys.Close(savedOut)

	out := drainPipe(r.Sys, pr)
	r.Sys.Close(pr)

	return string(out), status, nil
}
