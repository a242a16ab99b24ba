// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package job implements the job table (spec §4.5): background and
// suspended subshells, their current/previous pointers, and the textual
// report format of spec §6 "Job report format".
package job

import (
	"fmt"
	"strings"
	"sync"

	"mvdan.cc/posh/sig"
	"mvdan.cc/posh/system"
)

// ResultKind discriminates a halted job's outcome.
type ResultKind int

const (
	Exited ResultKind = iota
	Stopped
	Signaled
)

// Result is a job's terminal or suspended outcome.
type Result struct {
	Kind     ResultKind
	Code     uint8    // meaningful for Exited
	Signal   sig.Name // meaningful for Stopped and Signaled
	CoreDump bool     // meaningful for Signaled
}

// State is a job's running/halted status.
type State struct {
	Running bool
	Result  Result // meaningful when !Running
}

// RunningState is the State of a job still executing.
var RunningState = State{Running: true}

// Job is a background or stopped subshell tracked by the shell (spec §3
// "Job").
type Job struct {
	Pid           system.Pid
	ProcessGroup  system.Pid
	State         State
	StateChanged  bool
	Name          string
	JobControlled bool
}

// Filter selects which jobs a report call includes.
type Filter func(*Job) bool

// All matches every job.
func All(*Job) bool { return true }

// Style selects the report's verbosity.
type Style int

const (
	// StylePlain omits the pid column.
	StylePlain Style = iota
	// StyleVerbose includes the pid column, right-aligned in 5 columns.
	StyleVerbose
)

// Table is the shell's job table. The zero value is ready to use. A
// background job's completion is observed from a goroutine distinct from
// whichever one is running `jobs`/`wait`/the main script, so every exported
// method takes mu (spec §4.5's concurrency note).
type Table struct {
	mu sync.Mutex

	jobs    []*Job
	current int // index into jobs, or -1
	prev    int // index into jobs, or -1
}

// New returns an empty Table.
func New() *Table {
	return &Table{current: -1, prev: -1}
}

// Add inserts job and returns its 1-based report index. Per POSIX, a newly
// added suspended or background job becomes the current job; the prior
// current becomes previous (spec §4.5).
func (t *Table) Add(j *Job) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs = append(t.jobs, j)
	idx := len(t.jobs) - 1
	t.prev = t.current
	t.current = idx
	return idx + 1
}

// SetState overwrites the state of the job at 1-based index n, used by a
// background goroutine running a job this shell cannot hand to a real OS
// process (a backgrounded builtin, function or compound command) to report
// its own completion, since no WaitStatus will ever arrive for it through
// PollSIGCHLD.
func (t *Table) SetState(n int, s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if j, ok := t.byIndex(n); ok {
		j.State = s
		j.StateChanged = true
	}
}

// byIndex returns the zero-based slot for a 1-based report index.
func (t *Table) byIndex(n int) (*Job, bool) {
	if n < 1 || n > len(t.jobs) {
		return nil, false
	}
	return t.jobs[n-1], t.jobs[n-1] != nil
}

// byPid is ByPid's lock-free core, for use by callers that already hold mu.
func (t *Table) byPid(pid system.Pid) (*Job, int, bool) {
	for i, j := range t.jobs {
		if j != nil && j.Pid == pid {
			return j, i + 1, true
		}
	}
	return nil, 0, false
}

// ByPid finds a job by its process id.
func (t *Table) ByPid(pid system.Pid) (*Job, int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byPid(pid)
}

// Get returns the job at 1-based index n.
func (t *Table) Get(n int) (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byIndex(n)
}

// Len returns the number of report-index slots in the table, including
// slots emptied by a prior Report/Apply. The `wait` builtin with no
// operands uses this to enumerate every job still worth waiting for.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}

// Current returns the current job, if any.
func (t *Table) Current() (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current < 0 || t.current >= len(t.jobs) || t.jobs[t.current] == nil {
		return nil, false
	}
	return t.jobs[t.current], true
}

// Previous returns the previous job, if any.
func (t *Table) Previous() (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.prev < 0 || t.prev >= len(t.jobs) || t.jobs[t.prev] == nil {
		return nil, false
	}
	return t.jobs[t.prev], true
}

// PollSIGCHLD drains one WaitStatus observed by sys and applies it to the
// matching job's state, setting StateChanged and rotating current/previous
// when the current job halts (spec §4.5, §5 "SIGCHLD may arrive at any
// point... reconciliation happens at defined safe points").
func (t *Table) PollSIGCHLD(sys system.System) (*Job, bool) {
	ws, err := sys.WaitAny(false)
	if err != nil {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	j, idx, ok := t.byPid(ws.Pid)
	if !ok {
		return nil, false
	}
	t.applyWaitStatus(j, idx, ws)
	return j, true
}

// WaitFor polls block-style until the job at index transitions to Halted,
// applying every intervening WaitStatus it observes along the way (spec
// §4.5 "wait_for(index|pid) polls the system until that job transitions to
// Halted").
func (t *Table) WaitFor(sys system.System, index int) (*Job, error) {
	t.mu.Lock()
	j, ok := t.byIndex(index)
	running := ok && j.State.Running
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("job %d: no such job", index)
	}
	for running {
		ws, err := sys.WaitAny(true)
		if err != nil {
			return nil, err
		}
		t.mu.Lock()
		if owner, idx, ok := t.byPid(ws.Pid); ok {
			t.applyWaitStatus(owner, idx, ws)
		}
		running = j.State.Running
		t.mu.Unlock()
	}
	return j, nil
}

func (t *Table) applyWaitStatus(j *Job, idx int, ws system.WaitStatus) {
	switch {
	case ws.Exited:
		j.State = State{Result: Result{Kind: Exited, Code: ws.ExitCode}}
	case ws.Signaled:
		j.State = State{Result: Result{Kind: Signaled, Signal: ws.Signal, CoreDump: ws.CoreDump}}
	case ws.Stopped:
		j.State = State{Running: true, Result: Result{Kind: Stopped, Signal: ws.Signal}}
		j.StateChanged = true
		return
	case ws.Continued:
		j.State = RunningState
		j.StateChanged = true
		return
	default:
		return
	}
	j.StateChanged = true
	if idx-1 == t.current {
		t.current = t.prev
		t.prev = -1
	}
}

func stateLabel(s State) string {
	if s.Running {
		if s.Result.Kind == Stopped {
			return fmt.Sprintf("Stopped(SIG%s)", s.Result.Signal)
		}
		return "Running"
	}
	switch s.Result.Kind {
	case Exited:
		if s.Result.Code == 0 {
			return "Done"
		}
		return fmt.Sprintf("Done(%d)", s.Result.Code)
	case Signaled:
		if s.Result.CoreDump {
			return fmt.Sprintf("Killed(SIG%s: core dumped)", s.Result.Signal)
		}
		return fmt.Sprintf("Killed(SIG%s)", s.Result.Signal)
	}
	return "Done"
}

// Report renders every job matching filter in the format of spec §6 "Job
// report format" and, on success, clears StateChanged on reported jobs and
// removes reported halted jobs from the table (spec §4.5). If the caller's
// output ultimately fails, it should not call Report at all until it can
// retry, since Report itself always commits its side effects once it
// returns a string; callers needing the "if output fails nothing is
// cleared" invariant (spec §4.5, Testable Property... "Job table") should
// use ReportDryRun to render first and Commit after a successful write.
func (t *Table) Report(filter Filter, style Style) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, c := t.render(filter, style)
	t.commit(c)
	return s
}

// ReportDryRun renders the report without mutating the table. Apply must
// be called afterward with the returned Commit to apply the same
// state-clearing and removal Report would have applied immediately.
func (t *Table) ReportDryRun(filter Filter, style Style) (string, Commit) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.render(filter, style)
}

// Commit is an opaque token naming which jobs a prior ReportDryRun would
// remove/clear, to be applied only once the caller's output actually
// succeeded (spec §4.5 "If output fails, nothing is cleared or removed").
type Commit struct {
	toRemove []int
	toClear  []int
}

// Apply performs the clearing/removal a matching ReportDryRun described.
func (t *Table) Apply(c Commit) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commit(c)
}

func (t *Table) render(filter Filter, style Style) (string, Commit) {
	var b strings.Builder
	var c Commit
	for i, j := range t.jobs {
		if j == nil || !filter(j) {
			continue
		}
		marker := " "
		switch i {
		case t.current:
			marker = "+"
		case t.prev:
			marker = "-"
		}
		var pidCol string
		if style == StyleVerbose {
			pidCol = fmt.Sprintf("%5d ", j.Pid)
		}
		fmt.Fprintf(&b, "[%d]%s %s%-20s %s\n", i+1, marker, pidCol, stateLabel(j.State), j.Name)
		if !j.State.Running {
			c.toRemove = append(c.toRemove, i)
		} else {
			c.toClear = append(c.toClear, i)
		}
	}
	return b.String(), c
}

func (t *Table) commit(c Commit) {
	for _, i := range c.toClear {
		if t.jobs[i] != nil {
			t.jobs[i].StateChanged = false
		}
	}
	for _, i := range c.toRemove {
		t.jobs[i] = nil
	}
	for len(t.jobs) > 0 && t.jobs[len(t.jobs)-1] == nil {
		t.jobs = t.jobs[:len(t.jobs)-1]
	}
	if t.current >= len(t.jobs) || (t.current >= 0 && t.jobs[t.current] == nil) {
		t.current = -1
	}
	if t.prev >= len(t.jobs) || (t.prev >= 0 && t.jobs[t.prev] == nil) {
		t.prev = -1
	}
}
