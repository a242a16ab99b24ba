// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package trap implements the signal & trap manager (spec §4.4): per-
// condition actions, the OS-level dispositions that back them, and the
// pending-bitset drain that runs trap scripts at safe points (spec §4.10,
// §4.11, §5 "Suspension points").
//
// Running a trap script requires parsing and executing shell source, which
// would make this package depend on interp; interp already depends on trap
// to drain pending signals at its own safe points, so doing that would
// cycle. Trap instead calls back into an injected [Executor], the same
// dependency-inversion shape the teacher uses for interp.ExecHandlerFunc.
package trap

import (
	"fmt"
	"sync"

	"mvdan.cc/posh/divert"
	"mvdan.cc/posh/sig"
	"mvdan.cc/posh/syntax"
	"mvdan.cc/posh/system"
)

// Action is the disposition a trap condition is set to.
type Action int

const (
	// ActionDefault restores the signal's default OS action.
	ActionDefault Action = iota
	// ActionIgnore installs the OS-level ignore disposition.
	ActionIgnore
	// ActionCommand installs a catch handler that only marks the signal
	// pending; the script runs later, at a safe point.
	ActionCommand
)

// Condition is a trap condition: either on-exit, or a signal.
type Condition struct {
	Exit   bool
	Signal sig.Name
}

// ExitCondition is the "0"/"EXIT" condition (spec §6 "Trap conditions").
var ExitCondition = Condition{Exit: true}

// SignalCondition builds a signal trap condition.
func SignalCondition(s sig.Name) Condition { return Condition{Signal: s} }

func (c Condition) String() string {
	if c.Exit {
		return "EXIT"
	}
	return c.Signal.String()
}

// Trap records one condition's current action.
type Trap struct {
	Action  Action
	Command string // source text, meaningful only when Action == ActionCommand
	Origin  syntax.Pos
}

// Executor runs a trap script in the shell's current environment and
// reports its outcome, matching the way any other command list executes
// (spec §4.4 "Exit status and divert propagation... follow the same rules
// as any command"). A *divert.Divert of Kind Return means the trap itself
// returned; Manager.RunPending converts that the same way a function body
// would, per the special case spec §4.4 calls out.
type Executor func(script string) (exitStatus uint8, d divert.Divert, err error)

// Manager is the per-shell-environment trap table. The zero value is not
// ready to use; construct with New.
type Manager struct {
	sys system.System

	mu    sync.Mutex
	traps map[Condition]*Trap

	// ignoredAtEntry records signals the shell inherited as Ignore; POSIX
	// forbids ever changing these away from Ignore (spec §4.4).
	ignoredAtEntry map[sig.Name]bool

	stoppersEngaged bool
}

// New constructs a Manager. ignoredAtEntry should list every signal the
// surrounding process already had set to SIG_IGN when the shell started;
// a front-end typically discovers this by probing sigaction before
// installing any of its own handlers.
func New(sys system.System, ignoredAtEntry []sig.Name) *Manager {
	m := &Manager{
		sys:            sys,
		traps:          make(map[Condition]*Trap),
		ignoredAtEntry: make(map[sig.Name]bool, len(ignoredAtEntry)),
	}
	for _, s := range ignoredAtEntry {
		m.ignoredAtEntry[s] = true
	}
	return m
}

// LockedAtIgnoreError reports an attempt to move a signal that was already
// Ignore at shell entry away from Ignore.
type LockedAtIgnoreError struct {
	Signal sig.Name
}

func (e *LockedAtIgnoreError) Error() string {
	return fmt.Sprintf("%s: cannot override SIG_IGN inherited at shell entry", e.Signal)
}

// Set installs action as cond's disposition. origin and command are only
// meaningful when action is ActionCommand.
func (m *Manager) Set(cond Condition, action Action, command string, origin syntax.Pos) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !cond.Exit && action != ActionIgnore && m.ignoredAtEntry[cond.Signal] {
		return &LockedAtIgnoreError{Signal: cond.Signal}
	}

	t := &Trap{Action: action, Command: command, Origin: origin}
	m.traps[cond] = t

	if cond.Exit {
		return nil
	}
	switch action {
	case ActionIgnore:
		return m.sys.SigactionIgnore(cond.Signal)
	case ActionDefault:
		return m.sys.SigactionDefault(cond.Signal)
	case ActionCommand:
		return m.sys.SigactionCatch(cond.Signal)
	}
	return nil
}

// Get returns cond's current trap, or nil if none was ever set (meaning:
// whatever disposition the shell started with).
func (m *Manager) Get(cond Condition) *Trap {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.traps[cond]
}

// HasUserTrap reports whether s has a user-installed Command or Ignore
// trap, as opposed to having never been touched. Used by the "SIGINT and
// SIGQUIT are set to Ignore in async subshells unless the user has set a
// trap on them" rule (spec §4.4).
func (m *Manager) HasUserTrap(s sig.Name) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.traps[Condition{Signal: s}]
	return ok
}

// ApplyAsyncSubshellDefaults implements "SIGINT and SIGQUIT are set to
// Ignore in async (&) subshells unless the user has set a trap on them"
// (spec §4.4).
func (m *Manager) ApplyAsyncSubshellDefaults() error {
	for _, s := range []sig.Name{sig.INT, sig.QUIT} {
		if m.HasUserTrap(s) {
			continue
		}
		if err := m.sys.SigactionIgnore(s); err != nil {
			return err
		}
	}
	return nil
}

// stoppers is the set of job-control signals gated by the Interactive and
// Monitor shell options (spec §4.4).
var stoppers = []sig.Name{sig.TSTP, sig.TTIN, sig.TTOU}

// EngageStoppers installs or releases the internal handler for the stopper
// signals depending on whether the shell is interactive, monitoring jobs,
// and not itself running inside a subshell frame.
func (m *Manager) EngageStoppers(interactive, monitor, inSubshell bool) error {
	m.mu.Lock()
	engage := interactive && monitor && !inSubshell
	m.stoppersEngaged = engage
	m.mu.Unlock()

	for _, s := range stoppers {
		if m.HasUserTrap(s) {
			continue // an explicit user trap always wins
		}
		var err error
		if engage {
			err = m.sys.SigactionIgnore(s)
		} else {
			err = m.sys.SigactionDefault(s)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ResetForSubshell restores every non-user-overridden disposition touched
// by EngageStoppers to the OS default, implementing "reset in every
// subshell before user commands run" (spec §4.4). User-installed traps
// (Command or explicit Ignore) survive a fork and are left untouched here;
// the caller is responsible for re-registering ActionCommand catch hooks
// against the child's own signal channel if the runtime requires it.
func (m *Manager) ResetForSubshell() error {
	m.mu.Lock()
	m.stoppersEngaged = false
	m.mu.Unlock()
	for _, s := range stoppers {
		if m.HasUserTrap(s) {
			continue
		}
		if err := m.sys.SigactionDefault(s); err != nil {
			return err
		}
	}
	return nil
}

// Clone copies the trap table for a subshell frame, so that `trap` commands
// run inside the subshell (including HasUserTrap bookkeeping) never mutate
// the parent's table once the subshell exits. It does not touch any OS-level
// signal disposition, since Sys is shared with the parent for the lifetime
// of this process; a subshell here is a cloned Go value, not a forked
// process, so re-applying sigaction from the clone would wrongly affect the
// still-running parent too (see interp's subshell documentation).
func (m *Manager) Clone() *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	traps := make(map[Condition]*Trap, len(m.traps))
	for cond, t := range m.traps {
		tc := *t
		traps[cond] = &tc
	}
	ignored := make(map[sig.Name]bool, len(m.ignoredAtEntry))
	for s, v := range m.ignoredAtEntry {
		ignored[s] = v
	}
	return &Manager{sys: m.sys, traps: traps, ignoredAtEntry: ignored, stoppersEngaged: m.stoppersEngaged}
}

// Iter calls fn for every condition that has ever had a trap explicitly
// set, in unspecified order, backing the `trap` builtin's no-operand
// listing form.
func (m *Manager) Iter(fn func(Condition, *Trap) bool) {
	m.mu.Lock()
	snapshot := make(map[Condition]*Trap, len(m.traps))
	for cond, t := range m.traps {
		snapshot[cond] = t
	}
	m.mu.Unlock()
	for cond, t := range snapshot {
		if !fn(cond, t) {
			return
		}
	}
}

// RunPending atomically drains the pending-signal bitset (masking new
// deliveries while it does) and, for each raised signal with an
// ActionCommand trap, runs that trap's script via exec. It does not run
// the EXIT trap; RunExit does.
//
// Errors from one trap script do not stop the drain from reaching the
// remaining pending signals (spec §4.4: "Errors during trap execution do
// not clear the remaining pending signals for other traps in the same
// drain"). The first non-Continue Divert wins and is returned immediately
// once that trap finishes; earlier traps in the same drain still ran to
// completion.
func (m *Manager) RunPending(exec Executor) (divert.Divert, error) {
	if err := m.sys.Sigprocmask(true, nil); err != nil {
		return divert.None, err
	}
	pending := m.sys.DrainPending()
	if uerr := m.sys.Sigprocmask(false, nil); uerr != nil && len(pending) == 0 {
		return divert.None, uerr
	}

	var firstErr error
	for _, s := range pending {
		m.mu.Lock()
		t, ok := m.traps[Condition{Signal: s}]
		m.mu.Unlock()
		if !ok || t.Action != ActionCommand {
			continue
		}
		status, d, err := exec(t.Command)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("trap on %s: %w", s, err)
		}
		if d.Kind == divert.Return {
			// A bare "return" inside a trap returns from the trap itself
			// when not running inside a function (spec §4.4); interp's
			// Executor is responsible for resolving "enclosing function
			// or the trap" before this point, so by the time it reaches
			// here a Return simply becomes Continue with the status set.
			d = divert.None
		}
		if !d.IsNone() {
			return d, firstErr
		}
		_ = status
	}
	return divert.None, firstErr
}

// RunExit runs the EXIT condition's trap, if any, via exec. It is called
// once, at shell termination, separately from RunPending's signal drain
// (spec §4.10 step 6 terminates the loop; the EXIT trap still needs to run
// before the process actually exits).
func (m *Manager) RunExit(exec Executor) (divert.Divert, error) {
	m.mu.Lock()
	t, ok := m.traps[ExitCondition]
	m.mu.Unlock()
	if !ok || t.Action != ActionCommand {
		return divert.None, nil
	}
	_, d, err := exec(t.Command)
	if d.Kind == divert.Return {
		d = divert.None
	}
	return d, err
}
