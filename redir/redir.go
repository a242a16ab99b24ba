// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package redir implements the redirection engine (spec §4.6): a stack of
// SavedFd groups, one per enclosing scope, that let a redirected file
// descriptor be restored exactly when its scope exits.
package redir

import (
	"fmt"
	"io"

	"mvdan.cc/posh/syntax"
	"mvdan.cc/posh/system"
)

// Error reports a failed redirection, with a location pointing at the
// operand that caused it (spec §4.6 "structured RedirectionError").
type Error struct {
	Op    syntax.RedirOperator
	Pos   syntax.Pos
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("redirection %s: %v", e.Op, e.Cause)
}
func (e *Error) Unwrap() error { return e.Cause }

// savedFd records how to restore one clobbered target descriptor.
type savedFd struct {
	target system.Fd
	save   system.Fd // -1 means the target was not open before
	hadAny bool
}

// Scope is one redirection scope (simple command, compound command,
// function call). Redirections applied within are undone in reverse order
// when the scope exits, unless Preserve is called instead (spec §4.6
// "Preserve discards saves without restoring").
type Scope struct {
	sys    system.System
	parent *Scope
	saves  []savedFd
}

// Engine owns the stack of nested Scopes for one shell environment.
type Engine struct {
	sys system.System
	top *Scope
}

// New creates an Engine with an implicit outermost scope covering Fds 0-2.
func New(sys system.System) *Engine {
	return &Engine{sys: sys, top: &Scope{sys: sys}}
}

// Push opens a new nested scope whose Undo restores exactly the
// redirections applied since Push was called.
func (e *Engine) Push() *Scope {
	s := &Scope{sys: e.sys, parent: e.top}
	e.top = s
	return s
}

// Pop closes the current scope, restoring its redirections, and returns to
// its parent. It is a convenience wrapper equivalent to calling Undo on the
// scope Push returned.
func (e *Engine) Pop() error {
	s := e.top
	if s.parent == nil {
		panic("redir: Pop called on the outermost scope")
	}
	e.top = s.parent
	return s.Undo()
}

func targetDefault(op syntax.RedirOperator) system.Fd {
	switch op {
	case syntax.RdrIn, syntax.RdrInOut, syntax.DplIn, syntax.Hdoc, syntax.DashHdoc, syntax.WordHdoc:
		return system.Stdin
	default:
		return system.Stdout
	}
}

// HdocSource supplies a here-document or here-string body's raw bytes.
// interp computes this ahead of time (expansion rules depend on the
// delimiter's quoting, spec §4.6 step 3), so redir just needs to stage it.
type HdocSource func() ([]byte, error)

// Apply performs one redirection from r, tracking a SavedFd in the
// engine's current scope so it can be undone later. hdoc supplies the
// already-expanded body for here-document/here-string operators; it is
// ignored for every other operator and may be nil.
func (e *Engine) Apply(r *syntax.Redirect, clobberAllowed bool, hdoc HdocSource) error {
	return e.top.apply(r, clobberAllowed, hdoc)
}

func explicitTarget(r *syntax.Redirect, def system.Fd) (system.Fd, error) {
	if r.N == nil {
		return def, nil
	}
	var n int
	if _, err := fmt.Sscanf(r.N.Value, "%d", &n); err != nil {
		return -1, fmt.Errorf("%q: invalid file descriptor", r.N.Value)
	}
	return system.Fd(n), nil
}

func (s *Scope) apply(r *syntax.Redirect, clobberAllowed bool, hdoc HdocSource) error {
	target, err := explicitTarget(r, targetDefault(r.Op))
	if err != nil {
		return &Error{Op: r.Op, Pos: r.Pos(), Cause: err}
	}

	// Step 2: snapshot the target before it is clobbered.
	saved := savedFd{target: target, save: -1}
	if dup, err := s.sys.Dup(target); err == nil {
		s.sys.SetCloseOnExec(dup, true)
		saved.save = dup
		saved.hadAny = true
	}
	s.saves = append(s.saves, saved)

	newFd, closeSource, err := s.open(r, clobberAllowed, hdoc)
	if err != nil {
		return &Error{Op: r.Op, Pos: r.Pos(), Cause: err}
	}
	if newFd == -1 {
		// "-" operand: close the target and stop (§4.6 step 3, >&-/<&-).
		s.sys.Close(target)
		return nil
	}

	// Step 4: move the new description onto target.
	if err := s.sys.Dup2(newFd, target); err != nil {
		return &Error{Op: r.Op, Pos: r.Pos(), Cause: err}
	}
	if closeSource {
		s.sys.Close(newFd)
	}
	return nil
}

// open computes the new file description for r and reports whether the
// returned Fd is a temporary source that must be closed after Dup2 (every
// case except a bare "duplicate an existing Fd onto target" form, where the
// source Fd is the user's own and must survive).
func (s *Scope) open(r *syntax.Redirect, clobberAllowed bool, hdoc HdocSource) (system.Fd, bool, error) {
	switch r.Op {
	case syntax.RdrIn:
		fd, err := s.sys.Open(litWord(r.Word), system.ORdonly, 0)
		return fd, true, err

	case syntax.RdrOut:
		flag := system.OWronly | system.OCreate
		if !clobberAllowed {
			flag |= system.OExcl
		} else {
			flag |= system.OTrunc
		}
		fd, err := s.sys.Open(litWord(r.Word), flag, 0o644)
		return fd, true, err

	case syntax.ClbOut: // >|, explicit clobber override
		fd, err := s.sys.Open(litWord(r.Word), system.OWronly|system.OCreate|system.OTrunc, 0o644)
		return fd, true, err

	case syntax.AppOut: // >>
		fd, err := s.sys.Open(litWord(r.Word), system.OWronly|system.OCreate|system.OAppend, 0o644)
		return fd, true, err

	case syntax.RdrInOut: // <>
		fd, err := s.sys.Open(litWord(r.Word), system.ORdwr|system.OCreate, 0o644)
		return fd, true, err

	case syntax.DplIn, syntax.DplOut: // <& / >&
		operand := litWord(r.Word)
		if operand == "-" {
			return -1, false, nil
		}
		var n int
		if _, err := fmt.Sscanf(operand, "%d", &n); err != nil {
			return -1, false, fmt.Errorf("%q: invalid file descriptor", operand)
		}
		return system.Fd(n), false, nil

	case syntax.Hdoc, syntax.DashHdoc, syntax.WordHdoc:
		if hdoc == nil {
			return -1, false, fmt.Errorf("here-document body not supplied")
		}
		body, err := hdoc()
		if err != nil {
			return -1, false, err
		}
		pr, pw, err := s.sys.Pipe()
		if err != nil {
			return -1, false, err
		}
		if _, err := writeAll(s.sys, pw, body); err != nil {
			s.sys.Close(pw)
			s.sys.Close(pr)
			return -1, false, err
		}
		s.sys.Close(pw)
		return pr, true, nil

	default:
		return -1, false, fmt.Errorf("unsupported redirection operator %s", r.Op)
	}
}

func writeAll(sys system.System, fd system.Fd, p []byte) (int, error) {
	w := sys.FdWriter(fd)
	if w == nil {
		return 0, fmt.Errorf("fd %d: not writable", fd)
	}
	n, err := w.Write(p)
	if err != nil && err != io.ErrShortWrite {
		return n, err
	}
	return n, nil
}

// litWord renders a syntax.Word back to its literal text. interp is
// responsible for ensuring r.Word has already been through expansion into
// a single field by the time redir sees it; this helper only handles the
// already-expanded, quote-free literal case used directly by unit tests
// that build ASTs without a full expansion pass.
func litWord(w syntax.Word) string {
	var s string
	for _, part := range w.Parts {
		if lit, ok := part.(*syntax.Lit); ok {
			s += lit.Value
		}
	}
	return s
}

// Undo restores every SavedFd this scope recorded, in reverse insertion
// order, and discards the scope (spec §4.6 "Restoration on scope exit").
func (s *Scope) Undo() error {
	var firstErr error
	for i := len(s.saves) - 1; i >= 0; i-- {
		sv := s.saves[i]
		if sv.hadAny {
			if err := s.sys.Dup2(sv.save, sv.target); err != nil && firstErr == nil {
				firstErr = err
			}
			s.sys.Close(sv.save)
		} else {
			s.sys.Close(sv.target)
		}
	}
	s.saves = nil
	return firstErr
}

// Preserve discards this scope's saves without restoring the targets,
// implementing the "exec"-style built-in opt-in of spec §4.6. The save
// Fds are handed to the parent scope so that a later, outer Undo can still
// release them once nothing nested references them anymore (spec §4.6
// design note: "save Fds must remain open until the outermost enclosing
// scope exits").
func (s *Scope) Preserve() {
	if s.parent != nil {
		s.parent.saves = append(s.parent.saves, s.saves...)
	} else {
		for _, sv := range s.saves {
			if sv.hadAny {
				s.sys.Close(sv.save)
			}
		}
	}
	s.saves = nil
}
