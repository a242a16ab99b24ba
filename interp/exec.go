// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"

	"mvdan.cc/posh/divert"
)

// RunSource parses source with the Runner's injected ParseFunc and runs it
// to completion, the read-eval loop's top-level entry point (spec §4.10): a
// script file, a `-c` command string, or (one line at a time, by the
// caller) an interactive session. It always runs the EXIT trap, if one is
// set, before returning, matching spec §4.10 step 6's termination order.
//
// RunSource returns [ErrNoParser] if the Runner has no ParseFunc configured.
func (r *Runner) RunSource(ctx context.Context, name, source string) (uint8, error) {
	if r.Parse == nil {
		return 0, ErrNoParser{}
	}
	stmts, err := r.Parse(name, source)
	if err != nil {
		return 0, err
	}

	d := r.Run(ctx, stmts)
	switch d.Kind {
	case divert.Exit:
		if d.Status.HasStatus {
			r.exitStatus = d.Status.Value
		}
	case divert.Interrupt:
		if d.Status.HasStatus {
			r.exitStatus = d.Status.Value
		}
	}

	r.runExitTrap(ctx)
	return r.exitStatus, nil
}

// runExitTrap runs the EXIT condition's trap, if any was set, folding any
// status it sets into the Runner's final exit status. A bare Return inside
// the EXIT trap is already collapsed to divert.None by trap.Manager.RunExit;
// any other diversion (Exit, Break, ContinueLoop) has nowhere further to go
// at shell termination, so its status is kept and the diversion itself is
// dropped.
func (r *Runner) runExitTrap(ctx context.Context) {
	wasHandling := r.handlingTrap
	r.handlingTrap = true
	d, err := r.TrapMgr.RunExit(r.trapExecutor(ctx))
	r.handlingTrap = wasHandling
	if err != nil {
		return
	}
	if d.Status.HasStatus {
		r.exitStatus = d.Status.Value
	}
}
