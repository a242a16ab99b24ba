// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package interp implements the execution engine and read-eval loop (spec
// §4.8, §4.10): the component that walks an already-parsed [syntax.Stmt]
// tree and produces effects, tying together every other package in this
// module (expand, redir, search, job, trap, variable, function, builtin,
// system).
package interp

import (
	"io"

	"golang.org/x/sync/errgroup"

	"mvdan.cc/posh/builtin"
	"mvdan.cc/posh/function"
	"mvdan.cc/posh/job"
	"mvdan.cc/posh/redir"
	"mvdan.cc/posh/syntax"
	"mvdan.cc/posh/system"
	"mvdan.cc/posh/trap"
	"mvdan.cc/posh/variable"
)

// ParseFunc parses source text into a statement list, the primitive the
// read-eval loop, `eval`, `.` and trap scripts all need. This workspace's
// syntax package carries AST definitions only, not a lexer/parser (see
// DESIGN.md); a Runner with no ParseFunc configured returns [ErrNoParser]
// from every operation that would otherwise need to parse new source,
// while still being able to execute a [syntax.Stmt] tree built directly,
// e.g. by a test.
type ParseFunc func(name, source string) ([]*syntax.Stmt, error)

// ErrNoParser is returned by RunSource, Eval and any trap/`eval`/`.`
// invocation when the Runner has no ParseFunc configured.
type ErrNoParser struct{}

func (ErrNoParser) Error() string { return "interp: no parser configured" }

// shellOpt indexes Runner.opts (spec §4.9's option set). Keeping options in
// a fixed-size array indexed by this enum, rather than named bool fields,
// mirrors the teacher's runnerOpts array and keeps Option/SetOption below
// a single small switch instead of one per field.
type shellOpt int

const (
	optErrExit shellOpt = iota
	optNoExec
	optNoGlob
	optNoUnset
	optXTrace
	optPipeFail
	optMonitor
	optInteractive
	optIgnoreEOF
	numShellOpts
)

// optFlags maps a single-letter `set -X`/`set +X` flag to its shellOpt slot;
// options with no single-letter form (pipefail, monitor, ...) are reached
// only through OptionByName/SetOptionByName.
var optFlags = map[byte]shellOpt{
	'e': optErrExit,
	'n': optNoExec,
	'f': optNoGlob,
	'u': optNoUnset,
	'x': optXTrace,
}

var optNames = map[string]shellOpt{
	"errexit":     optErrExit,
	"noexec":      optNoExec,
	"noglob":      optNoGlob,
	"nounset":     optNoUnset,
	"xtrace":      optXTrace,
	"pipefail":    optPipeFail,
	"monitor":     optMonitor,
	"interactive": optInteractive,
	"ignoreeof":   optIgnoreEOF,
}

// Runner interprets shell programs built from this module's syntax
// package. It is not safe for concurrent use from more than one goroutine
// at a time, except for the background job goroutines it itself spawns,
// which are coordinated through Jobs and the stdio writers the caller
// supplies (spec §4.5's concurrency note).
type Runner struct {
	Sys      system.System
	Vars     *variable.Env
	Funcs    *function.Table
	BuiltinReg *builtin.Registry
	JobTable *job.Table
	TrapMgr  *trap.Manager
	Redir    *redir.Engine
	Parse    ParseFunc

	scriptName string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	opts [numShellOpts]bool

	exitStatus uint8

	// shellPID/backgroundPID back $$/$! (spec §4.2's pseudo-variables).
	shellPID      int
	backgroundPID int

	// inFunc/inSubshell/handlingTrap gate the "should this frame no-op"
	// check the same way the teacher's r.stop does (spec §4.10's
	// termination ordering, §4.4's trap re-entrancy rule).
	inFunc       bool
	inSubshell   bool
	handlingTrap bool

	// noErrExit suppresses optErrExit for the duration of evaluating a
	// compound command's condition (spec §4.9's errexit exemption list).
	noErrExit bool

	initParams []string

	// bgShells tracks every background-job goroutine this Runner has
	// spawned, the same bookkeeping the teacher's Runner.bgShells field
	// provides, so that WaitBackground (and, through it, a top-level read-
	// eval loop resetting between commands) can block until they have all
	// finished rather than leaking goroutines past the statement that
	// spawned them.
	bgShells errgroup.Group
}

// RunnerOption configures a Runner at construction time, mirroring the
// teacher's functional-options RunnerOption shape.
type RunnerOption func(*Runner)

// New builds a Runner. Sys, Vars, Builtins, Funcs, Jobs, Traps and Redir
// are required; New panics if any required option was not supplied, since
// a misconfigured Runner cannot safely execute anything (spec §4.8's
// invariant that the engine never runs without its dependencies wired).
func New(opts ...RunnerOption) *Runner {
	r := &Runner{
		shellPID: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Sys == nil || r.Vars == nil || r.BuiltinReg == nil || r.Funcs == nil ||
		r.JobTable == nil || r.TrapMgr == nil || r.Redir == nil {
		panic("interp: New requires System, Env, Builtins, Funcs, Jobs, Traps and Redir")
	}
	// Absent an explicit WithStdIO override, builtins read and write
	// through the System's own fd 0/1/2 rather than a fixed Go stream:
	// FdReader/FdWriter re-resolve the fd on every call, so a redirection
	// applied later via Dup2 is immediately visible to `read`/`echo`/etc.
	// without builtin Runtime methods needing to know about redir at all.
	if r.stdout == nil {
		r.stdout = r.Sys.FdWriter(system.Stdout)
	}
	if r.stderr == nil {
		r.stderr = r.Sys.FdWriter(system.Stderr)
	}
	if r.stdin == nil {
		r.stdin = r.Sys.FdReader(system.Stdin)
	}
	r.shellPID = int(r.Sys.Getpid())
	if r.initParams != nil {
		r.Vars.SetPositional(r.initParams)
	}
	return r
}

// WithSystem sets the System façade every other operation goes through.
func WithSystem(sys system.System) RunnerOption {
	return func(r *Runner) { r.Sys = sys }
}

// WithEnv sets the variable environment.
func WithEnv(vars *variable.Env) RunnerOption {
	return func(r *Runner) { r.Vars = vars }
}

// WithFuncs sets the function table.
func WithFuncs(funcs *function.Table) RunnerOption {
	return func(r *Runner) { r.Funcs = funcs }
}

// WithBuiltins sets the builtin registry.
func WithBuiltins(b *builtin.Registry) RunnerOption {
	return func(r *Runner) { r.BuiltinReg = b }
}

// WithJobs sets the job table.
func WithJobs(j *job.Table) RunnerOption {
	return func(r *Runner) { r.JobTable = j }
}

// WithTraps sets the trap manager.
func WithTraps(t *trap.Manager) RunnerOption {
	return func(r *Runner) { r.TrapMgr = t }
}

// WithRedir sets the redirection engine.
func WithRedir(e *redir.Engine) RunnerOption {
	return func(r *Runner) { r.Redir = e }
}

// WithParse sets the injected parse hook used by the read-eval loop,
// `eval`, `.` and trap scripts.
func WithParse(p ParseFunc) RunnerOption {
	return func(r *Runner) { r.Parse = p }
}

// WithStdIO sets the three standard streams. A nil writer discards output;
// a nil reader yields immediate EOF.
func WithStdIO(stdin io.Reader, stdout, stderr io.Writer) RunnerOption {
	return func(r *Runner) {
		r.stdin, r.stdout, r.stderr = stdin, stdout, stderr
	}
}

// WithScriptName sets the value $0 expands to.
func WithScriptName(name string) RunnerOption {
	return func(r *Runner) { r.scriptName = name }
}

// WithParams sets the initial positional parameters ($1, $2, ...).
func WithParams(params ...string) RunnerOption {
	return func(r *Runner) {
		r.initParams = append([]string(nil), params...)
	}
}

// Interactive marks the Runner as driving an interactive session, gating
// EngageStoppers and the ignore-EOF input wrapper (spec §4.4, §4.10).
func Interactive(on bool) RunnerOption {
	return func(r *Runner) { r.opts[optInteractive] = on }
}

// Monitor turns on job-control signal handling (spec §4.4's stopper set).
func Monitor(on bool) RunnerOption {
	return func(r *Runner) { r.opts[optMonitor] = on }
}
