// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package builtin declares the shell's built-in utility registry (spec
// §4.11's "Builtin registry interface"): each entry's name, priority class,
// and a parser hint, looked up by command search ahead of functions and
// external utilities, plus the concrete built-in set.
//
// A builtin's Func is written against [Runtime], a narrow slice of the
// shell state it may touch, rather than the interpreter's own Runner type
// directly: interp depends on builtin to populate its registry, so builtin
// cannot import interp back without a cycle. interp.Runner satisfies
// Runtime, the same dependency-inversion shape expand.CmdSubstRunner and
// trap.Executor use.
package builtin

import (
	"context"
	"io"

	"mvdan.cc/posh/divert"
	"mvdan.cc/posh/function"
	"mvdan.cc/posh/job"
	"mvdan.cc/posh/system"
	"mvdan.cc/posh/trap"
	"mvdan.cc/posh/variable"
)

// Kind classifies a builtin's priority in command search (spec §4.11) and
// its error-handling policy (spec §4.8's simple-command dispatch, §9's
// ExpansionError/RedirectionError table).
type Kind int

const (
	// Special builtins are found before functions, their expansion and
	// redirection errors are fatal (Divert::Interrupt), and their
	// assignments persist in the current scope rather than a volatile one.
	Special Kind = iota
	// Mandatory builtins are POSIX-required utilities implemented in the
	// shell itself; found after functions, same as Elective/Extension.
	Mandatory
	// Elective builtins are optional POSIX utilities the shell chooses to
	// implement internally.
	Elective
	// Extension builtins are non-POSIX utilities specific to this shell.
	Extension
	// Substitutive builtins only take priority over an external utility
	// of the same name when one is actually found on $PATH; otherwise
	// command search falls through to other candidates.
	Substitutive
)

func (k Kind) String() string {
	switch k {
	case Special:
		return "special"
	case Mandatory:
		return "mandatory"
	case Elective:
		return "elective"
	case Extension:
		return "extension"
	case Substitutive:
		return "substitutive"
	default:
		return "unknown"
	}
}

// Builtin is one entry in the registry (spec §4.11's "Builtin registry
// interface"). Every builtin this package implements sets its own Run, and
// Register adds them to a registry as they are; Run may be left nil for a
// Builtin used only to probe the registry's shape (e.g. in command-search
// tests). Run reaches the shell through Runtime rather than the
// interpreter's own types, the same inversion expand.CmdSubstRunner and
// trap.Executor use to avoid a cycle back to the execution engine.
type Builtin struct {
	Name string
	Kind Kind

	// IsDeclarationUtility hints to the parser that this builtin's
	// operands may themselves contain further word expansions subject to
	// assignment-like rules (e.g. `export`, `readonly`, `typeset`).
	IsDeclarationUtility bool

	Run Func
}

// Registry holds the builtins known to a running shell. The zero value is
// ready to use.
type Registry struct {
	byName map[string]*Builtin
}

// Register adds or replaces b under b.Name.
func (r *Registry) Register(b *Builtin) {
	if r.byName == nil {
		r.byName = make(map[string]*Builtin)
	}
	r.byName[b.Name] = b
}

// Get looks up name, returning ok=false if no builtin is registered under
// that name.
func (r *Registry) Get(name string) (*Builtin, bool) {
	b, ok := r.byName[name]
	return b, ok
}

// Iter calls fn for every registered builtin, in unspecified order.
func (r *Registry) Iter(fn func(*Builtin) bool) {
	for _, b := range r.byName {
		if !fn(b) {
			return
		}
	}
}

// Result is spec §4.11's BuiltinResult: the outcome of running one builtin
// invocation. Divert carries exit/return/break/continue signalling (spec
// §4.8) out through the call stack; RetainRedirs tells the caller not to
// undo the invocation's redirections once it returns, the behavior `exec`
// needs when none of its operands name a command to run.
type Result struct {
	ExitStatus   uint8
	Divert       divert.Divert
	RetainRedirs bool
}

// Func is a builtin's implementation. args[0] is the command name itself,
// matching argv conventions; a builtin never sees the assignments or
// redirections attached to the simple command that invoked it, those are
// applied by the caller per spec §4.8's dispatch rules before Func runs.
type Func func(ctx context.Context, rt Runtime, args []string) Result

// Runtime is the slice of shell state a builtin may observe or mutate (spec
// §4.11, §6). It is satisfied by the interpreter's Runner; builtin depends
// on this interface instead of importing the interpreter package directly,
// avoiding the import cycle that would otherwise exist since the
// interpreter also depends on builtin to populate its registry.
type Runtime interface {
	Env() *variable.Env
	Functions() *function.Table
	Builtins() *Registry
	System() system.System
	Jobs() *job.Table
	Traps() *trap.Manager

	Stdin() io.Reader
	Stdout() io.Writer
	Stderr() io.Writer

	ExitStatus() uint8
	SetExitStatus(uint8)

	ScriptName() string
	Positional() []string
	SetPositional([]string)

	// Eval parses and runs source as shell input in the current
	// environment, the primitive `eval` and `.` are built from (spec
	// §4.10). It returns an error if no parser is available to the
	// running shell.
	Eval(ctx context.Context, source string) (exitStatus uint8, d divert.Divert, err error)

	// Identify renders the description line `command -v`/`-V` prints for
	// name (spec's SUPPLEMENTED FEATURES). It is a Runtime method rather
	// than a direct call into package search because search already
	// imports builtin to describe a Target's Kind; builtin importing
	// search back would cycle. found is false if name resolves to
	// nothing.
	Identify(name string, verbose bool) (line string, found bool)

	// Dispatch runs name/args through the same command-search-and-invoke
	// path a simple command uses, the primitive the `command` builtin is
	// built from. skipFunctions implements `command`'s rule that function
	// definitions are never consulted, only builtins and external
	// utilities.
	Dispatch(ctx context.Context, args []string, skipFunctions bool) Result

	// Option reports whether the single-letter shell option flag is
	// recognized and, if so, its current state (spec §4.9's options:
	// errexit 'e', noglob 'f', noexec 'n', nounset 'u', xtrace 'x',
	// pipefail via `set -o pipefail` has no single-letter form and is
	// queried through name instead).
	Option(flag byte) (on, known bool)
	// SetOption turns a single-letter shell option on or off (the `set
	// -e`/`set +e` family). unknown is reported as an error by the
	// caller, not here.
	SetOption(flag byte, on bool) error
	// OptionByName is Option's `set -o name` form.
	OptionByName(name string) (on, known bool)
	// SetOptionByName is SetOption's `set -o name`/`set +o name` form.
	SetOptionByName(name string, on bool) error
}
