// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package divert defines the control-flow sum type threaded out of executor
// frames in place of exceptions (spec §4.8, §9 "Control flow divert", and
// the GLOSSARY's "Divert" entry). It has no dependents other than the
// packages that need to return or inspect one, so it stays leaf-level and
// importable from both trap and interp without a cycle.
package divert

// Kind discriminates a Divert value's variant.
type Kind int

const (
	// Continue means normal fall-through: no non-local control flow.
	Continue Kind = iota
	// Return unwinds to the nearest function-call frame (or the top level).
	Return
	// Break unwinds Count enclosing loop frames, then stops.
	Break
	// ContinueLoop restarts Count enclosing loop frames' next iteration.
	ContinueLoop
	// Interrupt is a non-interactive-fatal abort (parse/expansion/redirection
	// errors that must not be swallowed).
	Interrupt
	// Exit terminates the read-eval loop entirely.
	Exit
)

// Status is an optional exit status; HasStatus is false when the divert
// carries none (e.g. a bare "return" inside a function uses the status
// already set by the last command).
type Status struct {
	Value     uint8
	HasStatus bool
}

// NoStatus is the zero Status: no explicit exit status attached.
var NoStatus = Status{}

// WithStatus constructs a Status carrying the given code.
func WithStatus(code uint8) Status { return Status{Value: code, HasStatus: true} }

// Divert is the non-local control signal returned out of an executor frame.
// The zero value is {Kind: Continue}, i.e. "no diversion", matching the
// convention that every executor defaults to plain fall-through.
type Divert struct {
	Kind   Kind
	Status Status
	Count  int // meaningful only for Break and ContinueLoop
}

// None is the canonical "no diversion" value.
var None = Divert{Kind: Continue}

// IsNone reports whether d carries no diversion.
func (d Divert) IsNone() bool { return d.Kind == Continue }

// ReturnWith builds a Divert{Kind: Return} carrying an optional status.
func ReturnWith(s Status) Divert { return Divert{Kind: Return, Status: s} }

// BreakN builds a Divert{Kind: Break} for n enclosing loops.
func BreakN(n int) Divert { return Divert{Kind: Break, Count: n} }

// ContinueN builds a Divert{Kind: ContinueLoop} for n enclosing loops.
func ContinueN(n int) Divert { return Divert{Kind: ContinueLoop, Count: n} }

// InterruptWith builds a Divert{Kind: Interrupt} carrying an optional status.
func InterruptWith(s Status) Divert { return Divert{Kind: Interrupt, Status: s} }

// ExitWith builds a Divert{Kind: Exit} carrying an optional status.
func ExitWith(s Status) Divert { return Divert{Kind: Exit, Status: s} }

// DecrementLoop converts a Break/ContinueLoop diversion meant for an
// enclosing loop frame into either None (this frame owns it, Count reaches
// 0) or a copy with Count-1 (propagate further out). Non-loop diverts pass
// through unchanged. This implements the "frames decrement Break/Continue
// counts and convert to Continue when they reach their owning boundary"
// rule (spec §9).
func (d Divert) DecrementLoop() Divert {
	switch d.Kind {
	case Break, ContinueLoop:
		if d.Count <= 1 {
			if d.Kind == ContinueLoop {
				return None
			}
			return None
		}
		return Divert{Kind: d.Kind, Count: d.Count - 1}
	default:
		return d
	}
}
