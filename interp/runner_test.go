// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"testing"

	"mvdan.cc/posh/builtin"
	"mvdan.cc/posh/divert"
	"mvdan.cc/posh/syntax"
	"mvdan.cc/posh/variable"
)

func TestRunSequencesStatements(t *testing.T) {
	r, _, reg := newTestRunner(t)
	registerEcho(reg)

	d := r.Run(context.Background(), []*syntax.Stmt{call("echo", "a"), call("echo", "b")})
	if !d.IsNone() {
		t.Fatalf("unexpected diversion %+v", d)
	}
	if r.ExitStatus() != 0 {
		t.Fatalf("got exit status %d, want 0", r.ExitStatus())
	}
}

func TestCommandNotFoundSetsStatus127(t *testing.T) {
	r, _, _ := newTestRunner(t)
	d := r.Run(context.Background(), []*syntax.Stmt{call("nope")})
	if !d.IsNone() {
		t.Fatalf("unexpected diversion %+v", d)
	}
	if r.ExitStatus() != 127 {
		t.Fatalf("got exit status %d, want 127", r.ExitStatus())
	}
}

func TestNegationInvertsStatus(t *testing.T) {
	r, _, reg := newTestRunner(t)
	registerEcho(reg)
	st := call("echo", "x")
	st.Negated = true

	r.Run(context.Background(), []*syntax.Stmt{st})
	if r.ExitStatus() != 1 {
		t.Fatalf("got exit status %d, want 1 after negating a successful command", r.ExitStatus())
	}

	st2 := call("nope")
	st2.Negated = true
	r.Run(context.Background(), []*syntax.Stmt{st2})
	if r.ExitStatus() != 0 {
		t.Fatalf("got exit status %d, want 0 after negating a failing command", r.ExitStatus())
	}
}

func TestBareAssignmentStatementPersists(t *testing.T) {
	r, _, _ := newTestRunner(t)
	st := &syntax.Stmt{Assigns: []*syntax.Assign{
		{Name: &syntax.Lit{Value: "FOO"}, Value: word("bar")},
	}}
	r.Run(context.Background(), []*syntax.Stmt{st})
	if r.ExitStatus() != 0 {
		t.Fatalf("got exit status %d, want 0", r.ExitStatus())
	}
	vr, ok := r.Vars.Get("FOO")
	if !ok || vr.String() != "bar" {
		t.Fatalf("got %+v, %v, want FOO=bar", vr, ok)
	}
}

func TestIfClauseErrexitExemptForCondition(t *testing.T) {
	r, _, reg := newTestRunner(t)
	registerEcho(reg)
	r.SetOption('e', true)

	c := &syntax.IfClause{
		CondStmts: []*syntax.Stmt{call("nope")},
		ThenStmts: []*syntax.Stmt{call("echo", "then")},
		ElseStmts: []*syntax.Stmt{call("echo", "else")},
	}
	d := r.Run(context.Background(), []*syntax.Stmt{{Cmd: c}})
	if !d.IsNone() {
		t.Fatalf("unexpected diversion %+v: a failing if-condition must not trip errexit", d)
	}
	if r.ExitStatus() != 0 {
		t.Fatalf("got exit status %d, want 0 from the else branch", r.ExitStatus())
	}
}

func TestErrexitAbortsAfterFailingCommand(t *testing.T) {
	r, _, reg := newTestRunner(t)
	registerEcho(reg)
	r.SetOption('e', true)

	d := r.Run(context.Background(), []*syntax.Stmt{call("nope"), call("echo", "unreached")})
	if d.Kind != divert.Exit {
		t.Fatalf("got diversion %+v, want Exit", d)
	}
	if r.ExitStatus() != 127 {
		t.Fatalf("got exit status %d, want 127", r.ExitStatus())
	}
}

func TestAndOrShortCircuit(t *testing.T) {
	r, _, reg := newTestRunner(t)
	registerEcho(reg)

	and := &syntax.BinaryCmd{Op: syntax.AndStmt, X: call("nope"), Y: call("echo", "unreached")}
	r.Run(context.Background(), []*syntax.Stmt{{Cmd: and}})
	if r.ExitStatus() != 127 {
		t.Fatalf("got exit status %d, want the failing left side's 127 (right side must not run)", r.ExitStatus())
	}

	or := &syntax.BinaryCmd{Op: syntax.OrStmt, X: call("nope"), Y: call("echo", "fallback")}
	r.Run(context.Background(), []*syntax.Stmt{{Cmd: or}})
	if r.ExitStatus() != 0 {
		t.Fatalf("got exit status %d, want 0 from the fallback side", r.ExitStatus())
	}
}

// countingCondBuiltin registers a builtin named "cond" that succeeds while
// *n is below limit, incrementing *n on every call, backing the while-loop
// break test below without needing real arithmetic expansion.
func countingCondBuiltin(n *int, limit int) *builtin.Builtin {
	return &builtin.Builtin{
		Name: "cond",
		Kind: builtin.Mandatory,
		Run: func(ctx context.Context, rt builtin.Runtime, args []string) builtin.Result {
			*n++
			if *n <= limit {
				return builtin.Result{ExitStatus: 0}
			}
			return builtin.Result{ExitStatus: 1}
		},
	}
}

// captureBuiltin registers a builtin named "capture" that appends the
// current value of shell variable "x" to *seen, used by the for/case tests
// below to observe loop-variable bindings without needing parameter
// expansion wired into the test's synthetic AST.
func captureBuiltin(seen *[]string) *builtin.Builtin {
	return &builtin.Builtin{
		Name: "capture",
		Kind: builtin.Mandatory,
		Run: func(ctx context.Context, rt builtin.Runtime, args []string) builtin.Result {
			if vr, ok := rt.Env().Get("x"); ok {
				*seen = append(*seen, vr.String())
			} else if len(args) > 1 {
				*seen = append(*seen, args[1])
			}
			return builtin.Result{ExitStatus: 0}
		},
	}
}

func breakBuiltin() *builtin.Builtin {
	return &builtin.Builtin{
		Name: "break",
		Kind: builtin.Special,
		Run: func(ctx context.Context, rt builtin.Runtime, args []string) builtin.Result {
			return builtin.Result{Divert: divert.BreakN(1)}
		},
	}
}

func TestWhileLoopRunsUntilConditionFailsAndBreakStopsEarly(t *testing.T) {
	r, _, reg := newTestRunner(t)
	n := 0
	reg.Register(countingCondBuiltin(&n, 5))

	w := &syntax.WhileClause{CondStmts: []*syntax.Stmt{call("cond")}, DoStmts: nil}
	r.Run(context.Background(), []*syntax.Stmt{{Cmd: w}})
	if n != 6 {
		t.Fatalf("got %d condition checks, want 6 (5 successes + 1 failure)", n)
	}
	if r.ExitStatus() != 0 {
		t.Fatalf("got exit status %d, want 0", r.ExitStatus())
	}

	n = 0
	reg.Register(breakBuiltin())
	w2 := &syntax.WhileClause{CondStmts: []*syntax.Stmt{call("cond")}, DoStmts: []*syntax.Stmt{call("break")}}
	d := r.Run(context.Background(), []*syntax.Stmt{{Cmd: w2}})
	if !d.IsNone() {
		t.Fatalf("unexpected diversion %+v: break must not escape its own loop", d)
	}
	if n != 1 {
		t.Fatalf("got %d condition checks, want 1 (break must stop after the first iteration)", n)
	}
}

func TestForLoopOverWordList(t *testing.T) {
	r, _, reg := newTestRunner(t)
	var seen []string
	reg.Register(captureBuiltin(&seen))

	loop := &syntax.WordIter{
		Name: syntax.Lit{Value: "x"},
		List: []syntax.Word{word("a"), word("b"), word("c")},
	}
	f := &syntax.ForClause{Loop: loop, DoStmts: []*syntax.Stmt{call("capture")}}
	r.Run(context.Background(), []*syntax.Stmt{{Cmd: f}})
	if len(seen) != 3 || seen[0] != "a" || seen[1] != "b" || seen[2] != "c" {
		t.Fatalf("got %v, want [a b c]", seen)
	}
}

func TestForLoopWithNoInClauseUsesPositional(t *testing.T) {
	r, _, reg := newTestRunner(t)
	r.Vars.SetPositional([]string{"p1", "p2"})
	var seen []string
	reg.Register(captureBuiltin(&seen))

	loop := &syntax.WordIter{Name: syntax.Lit{Value: "x"}}
	f := &syntax.ForClause{Loop: loop, DoStmts: []*syntax.Stmt{call("capture")}}
	r.Run(context.Background(), []*syntax.Stmt{{Cmd: f}})
	if len(seen) != 2 || seen[0] != "p1" || seen[1] != "p2" {
		t.Fatalf("got %v, want [p1 p2]", seen)
	}
}

func TestForLoopArithmeticFormUnsupported(t *testing.T) {
	r, _, _ := newTestRunner(t)
	f := &syntax.ForClause{Loop: &syntax.CStyleLoop{}}
	r.Run(context.Background(), []*syntax.Stmt{{Cmd: f}})
	if r.ExitStatus() != 2 {
		t.Fatalf("got exit status %d, want 2 for an unsupported C-style for loop", r.ExitStatus())
	}
}

func TestCaseClauseDoubleSemiFallResumesMatching(t *testing.T) {
	r, _, reg := newTestRunner(t)
	var seen []string
	reg.Register(captureBuiltin(&seen))

	c := &syntax.CaseClause{
		Word: word("x"),
		List: []*syntax.PatternList{
			{Op: syntax.DblSemiFall, Patterns: []syntax.Word{word("x")}, Stmts: []*syntax.Stmt{call("capture")}},
			{Op: syntax.DblSemicolon, Patterns: []syntax.Word{word("y")}, Stmts: []*syntax.Stmt{call("capture")}},
		},
	}
	r.Vars.Assign("x", variable.Scalar("first"), 0, variable.Global)
	r.Run(context.Background(), []*syntax.Stmt{{Cmd: c}})
	if len(seen) != 1 {
		t.Fatalf("got %v, want one capture (;;& resumes matching and \"y\" does not match)", seen)
	}
}

func TestCaseClauseNoMatchSetsStatusZero(t *testing.T) {
	r, _, _ := newTestRunner(t)
	r.SetExitStatus(9)
	c := &syntax.CaseClause{
		Word: word("z"),
		List: []*syntax.PatternList{
			{Op: syntax.DblSemicolon, Patterns: []syntax.Word{word("y")}, Stmts: []*syntax.Stmt{call("nope")}},
		},
	}
	r.Run(context.Background(), []*syntax.Stmt{{Cmd: c}})
	if r.ExitStatus() != 0 {
		t.Fatalf("got exit status %d, want 0 when no pattern matches", r.ExitStatus())
	}
}
