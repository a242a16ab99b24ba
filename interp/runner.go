// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"fmt"
	"regexp"

	"mvdan.cc/posh/arith"
	"mvdan.cc/posh/divert"
	"mvdan.cc/posh/expand"
	"mvdan.cc/posh/function"
	"mvdan.cc/posh/pattern"
	"mvdan.cc/posh/redir"
	"mvdan.cc/posh/syntax"
	"mvdan.cc/posh/variable"
)

// Run executes stmts in sequence, the primitive every entry point (Eval, a
// trap script, a function body, a `.`-sourced file) reduces to (spec §4.8,
// §4.10).
func (r *Runner) Run(ctx context.Context, stmts []*syntax.Stmt) divert.Divert {
	for _, st := range stmts {
		d := r.stmt(ctx, st)
		if !d.IsNone() {
			return d
		}
	}
	return divert.None
}

// stmt runs one statement, threading it either synchronously or, for a
// Background statement, in a goroutine tracked by the job table (spec
// §4.8's statement-execution step, grounded on the teacher's r.stmt/r.stop
// pair: a background statement never blocks the caller and never diverts
// it, matching the teacher's "subshells don't exit the parent shell" rule).
func (r *Runner) stmt(ctx context.Context, st *syntax.Stmt) divert.Divert {
	if err := ctx.Err(); err != nil {
		r.exitStatus = 1
		return divert.InterruptWith(divert.WithStatus(1))
	}
	if st.Background {
		r.runBackground(ctx, st)
		r.exitStatus = 0
		return r.afterStmt(ctx)
	}
	d := r.stmtSync(ctx, st)
	if !d.IsNone() {
		return d
	}
	return r.afterStmt(ctx)
}

// afterStmt runs any trap made pending by the statement just executed and
// applies the errexit option, the two safe-point checks spec §4.9 and §4.10
// require after every statement.
func (r *Runner) afterStmt(ctx context.Context) divert.Divert {
	if d := r.checkTraps(ctx); !d.IsNone() {
		return d
	}
	if r.opts[optErrExit] && !r.noErrExit && r.exitStatus != 0 {
		return divert.ExitWith(divert.WithStatus(r.exitStatus))
	}
	return divert.None
}

func (r *Runner) checkTraps(ctx context.Context) divert.Divert {
	if r.handlingTrap {
		return divert.None
	}
	d, err := r.TrapMgr.RunPending(r.trapExecutor(ctx))
	if err != nil {
		fmt.Fprintln(r.stderr, err)
	}
	return d
}

// trapExecutor adapts Eval to trap.Executor, marking handlingTrap so a
// trap script's own pending signals are not drained re-entrantly mid-script
// (spec §4.4's re-entrancy rule).
func (r *Runner) trapExecutor(ctx context.Context) func(string) (uint8, divert.Divert, error) {
	return func(script string) (uint8, divert.Divert, error) {
		was := r.handlingTrap
		r.handlingTrap = true
		status, d, err := r.Eval(ctx, script)
		r.handlingTrap = was
		return status, d, err
	}
}

// stmtSync applies st's redirections and runs its command or bare
// assignments, undoing the redirections when the statement finishes
// (spec §4.6, §4.8).
func (r *Runner) stmtSync(ctx context.Context, st *syntax.Stmt) divert.Divert {
	r.Redir.Push()
	defer r.Redir.Pop()

	for _, rd := range st.Redirs {
		if err := r.applyRedirect(ctx, rd); err != nil {
			return r.abort(err)
		}
	}

	var d divert.Divert
	if st.Cmd == nil {
		if err := r.applyAssigns(ctx, st.Assigns, variable.Global); err != nil {
			return r.abort(err)
		}
		r.exitStatus = 0
	} else {
		d = r.cmd(ctx, st.Cmd, st.Assigns)
	}

	if st.Negated && d.IsNone() {
		if r.exitStatus == 0 {
			r.exitStatus = 1
		} else {
			r.exitStatus = 0
		}
	}
	return d
}

// abort converts an expansion or redirection error into the fatal,
// non-interactive-abort diversion spec §9's ExpansionError/RedirectionError
// table calls for, collapsed to a single uniform policy (see DESIGN.md).
func (r *Runner) abort(err error) divert.Divert {
	fmt.Fprintln(r.stderr, err)
	r.exitStatus = 1
	return divert.InterruptWith(divert.WithStatus(1))
}

// applyRedirect pre-expands a redirection's word (and, for a heredoc or
// here-string, its body) before handing a synthetic single-Lit Redirect to
// the redirection engine, since redir.Apply only reads literal text out of
// its operand (spec §4.6 step 3's expansion-then-apply split).
func (r *Runner) applyRedirect(ctx context.Context, rd *syntax.Redirect) error {
	cfg := r.expandConfig(ctx)

	word, err := expand.Literal(ctx, cfg, &rd.Word)
	if err != nil {
		return err
	}
	synthetic := *rd
	synthetic.Word = syntax.Word{Parts: []syntax.WordPart{
		&syntax.Lit{Value: string(word), ValuePos: rd.Word.Pos()},
	}}

	var hdoc redir.HdocSource
	switch rd.Op {
	case syntax.Hdoc, syntax.DashHdoc:
		body, err := expand.Literal(ctx, cfg, &rd.Hdoc)
		if err != nil {
			return err
		}
		text := string(body)
		hdoc = func() ([]byte, error) { return []byte(text), nil }
	case syntax.WordHdoc:
		// A here-string's operand is its own body (spec's SUPPLEMENTED
		// FEATURES); conventionally a trailing newline is appended.
		body, err := expand.Literal(ctx, cfg, &rd.Word)
		if err != nil {
			return err
		}
		text := string(body) + "\n"
		hdoc = func() ([]byte, error) { return []byte(text), nil }
	}

	return r.Redir.Apply(&synthetic, true, hdoc)
}

func (r *Runner) expandConfig(ctx context.Context) *expand.Config {
	return &expand.Config{
		Env:           r.Vars,
		NoGlob:        r.opts[optNoGlob],
		UnsetIsError:  r.opts[optNoUnset],
		RunCmdSubst:   r.runCmdSubst,
		ExitStatus:    r.exitStatus,
		ShellPID:      r.shellPID,
		BackgroundPID: r.backgroundPID,
		ScriptName:    r.scriptName,
	}
}

// cmd is the central compound-command dispatch (spec §4.8's command-type
// table).
func (r *Runner) cmd(ctx context.Context, cm syntax.Command, assigns []*syntax.Assign) divert.Divert {
	switch c := cm.(type) {
	case *syntax.CallExpr:
		return r.simpleCommand(ctx, c, assigns)
	case *syntax.Block:
		// A brace group shares the current scope; only subshells and
		// function calls open a new one (spec §4.3's scoping rule).
		return r.Run(ctx, c.Stmts)
	case *syntax.Subshell:
		return r.runSubshell(ctx, c.Stmts)
	case *syntax.BinaryCmd:
		return r.binaryCmd(ctx, c)
	case *syntax.IfClause:
		return r.runIf(ctx, c)
	case *syntax.WhileClause:
		return r.runLoop(ctx, c.CondStmts, c.DoStmts, false)
	case *syntax.UntilClause:
		return r.runLoop(ctx, c.CondStmts, c.DoStmts, true)
	case *syntax.ForClause:
		return r.runFor(ctx, c)
	case *syntax.CaseClause:
		return r.runCase(ctx, c)
	case *syntax.FuncDecl:
		fn := &function.Function{Name: c.Name.Value, Body: c.Body, Origin: c.Position}
		if err := r.Funcs.Define(fn); err != nil {
			fmt.Fprintln(r.stderr, err)
			r.exitStatus = 1
			return divert.None
		}
		r.exitStatus = 0
		return divert.None
	case *syntax.ArithmCmd:
		v, err := arith.Eval(r.Vars, c.X, r.opts[optNoUnset])
		if err != nil {
			return r.abort(err)
		}
		if v != 0 {
			r.exitStatus = 0
		} else {
			r.exitStatus = 1
		}
		return divert.None
	default:
		fmt.Fprintf(r.stderr, "%T: command type not supported\n", cm)
		r.exitStatus = 2
		return divert.None
	}
}

func (r *Runner) binaryCmd(ctx context.Context, b *syntax.BinaryCmd) divert.Divert {
	switch b.Op {
	case syntax.AndStmt, syntax.OrStmt:
		return r.execAndOr(ctx, b)
	case syntax.Pipe, syntax.PipeAll:
		return r.execPipeline(ctx, b)
	default:
		fmt.Fprintf(r.stderr, "%s: binary command operator not supported\n", b.Op)
		r.exitStatus = 2
		return divert.None
	}
}

// execAndOr runs X, suppressing errexit for it since it is never the last
// command of the list (spec §4.9's errexit exemption), then short-circuits
// or runs Y depending on X's status and the operator.
func (r *Runner) execAndOr(ctx context.Context, b *syntax.BinaryCmd) divert.Divert {
	wasNoErrExit := r.noErrExit
	r.noErrExit = true
	d := r.stmt(ctx, b.X)
	r.noErrExit = wasNoErrExit
	if !d.IsNone() {
		return d
	}
	succeeded := r.exitStatus == 0
	if (b.Op == syntax.AndStmt && !succeeded) || (b.Op == syntax.OrStmt && succeeded) {
		return divert.None
	}
	return r.stmt(ctx, b.Y)
}

func (r *Runner) runIf(ctx context.Context, c *syntax.IfClause) divert.Divert {
	wasNoErrExit := r.noErrExit

	r.noErrExit = true
	d := r.Run(ctx, c.CondStmts)
	r.noErrExit = wasNoErrExit
	if !d.IsNone() {
		return d
	}
	if r.exitStatus == 0 {
		return r.Run(ctx, c.ThenStmts)
	}

	for _, elif := range c.Elifs {
		r.noErrExit = true
		d := r.Run(ctx, elif.CondStmts)
		r.noErrExit = wasNoErrExit
		if !d.IsNone() {
			return d
		}
		if r.exitStatus == 0 {
			return r.Run(ctx, elif.ThenStmts)
		}
	}

	if c.ElseStmts != nil {
		return r.Run(ctx, c.ElseStmts)
	}
	r.exitStatus = 0
	return divert.None
}

// runLoop backs both while and until (spec §4.8): until is while with its
// condition's sense inverted.
func (r *Runner) runLoop(ctx context.Context, cond, body []*syntax.Stmt, until bool) divert.Divert {
	for {
		wasNoErrExit := r.noErrExit
		r.noErrExit = true
		d := r.Run(ctx, cond)
		r.noErrExit = wasNoErrExit
		if !d.IsNone() {
			return d
		}
		proceed := r.exitStatus == 0
		if until {
			proceed = !proceed
		}
		if !proceed {
			break
		}

		d = r.Run(ctx, body)
		if !d.IsNone() {
			switch d.Kind {
			case divert.Break:
				return d.DecrementLoop()
			case divert.ContinueLoop:
				if d = d.DecrementLoop(); d.IsNone() {
					continue
				}
				return d
			default:
				return d
			}
		}
	}
	r.exitStatus = 0
	return divert.None
}

func (r *Runner) runFor(ctx context.Context, c *syntax.ForClause) divert.Divert {
	wi, ok := c.Loop.(*syntax.WordIter)
	if !ok {
		fmt.Fprintln(r.stderr, "for: arithmetic for loops are not supported")
		r.exitStatus = 2
		return divert.None
	}

	var values []string
	if wi.List == nil {
		// `for name; do ...` with no `in` clause iterates $@ (spec §4.2).
		values = r.Vars.Positional()
	} else {
		cfg := r.expandConfig(ctx)
		words := make([]*syntax.Word, len(wi.List))
		for i := range wi.List {
			words[i] = &wi.List[i]
		}
		fields, err := expand.Fields(ctx, cfg, words)
		if err != nil {
			return r.abort(err)
		}
		values = make([]string, len(fields))
		for i, f := range fields {
			values[i] = string(f)
		}
	}

	for _, v := range values {
		if _, err := r.Vars.Assign(wi.Name.Value, variable.Scalar(v), wi.Name.Pos(), variable.Global); err != nil {
			return r.abort(err)
		}
		d := r.Run(ctx, c.DoStmts)
		if !d.IsNone() {
			switch d.Kind {
			case divert.Break:
				return d.DecrementLoop()
			case divert.ContinueLoop:
				if d = d.DecrementLoop(); d.IsNone() {
					continue
				}
				return d
			default:
				return d
			}
		}
	}
	r.exitStatus = 0
	return divert.None
}

// runCase implements spec §4.8's case dispatch: the subject undergoes
// Literal expansion (no splitting/globbing), each pattern undergoes Pattern
// expansion before compiling to a Go regexp via package pattern, and the
// three case operators select what follows a matched clause's body: ;;
// ends the case, ;& runs the next clause's body without matching, and ;;&
// resumes matching with the next clause.
func (r *Runner) runCase(ctx context.Context, c *syntax.CaseClause) divert.Divert {
	cfg := r.expandConfig(ctx)
	subjField, err := expand.Literal(ctx, cfg, &c.Word)
	if err != nil {
		return r.abort(err)
	}
	subject := string(subjField)

	matched := false
	fallingThrough := false
	for _, pl := range c.List {
		hit := fallingThrough
		if !hit {
			for i := range pl.Patterns {
				pat, err := expand.Pattern(ctx, cfg, &pl.Patterns[i])
				if err != nil {
					return r.abort(err)
				}
				reStr, err := pattern.Regexp(pat, pattern.EntireString)
				if err != nil {
					continue
				}
				re, err := regexp.Compile(reStr)
				if err != nil {
					continue
				}
				if re.MatchString(subject) {
					hit = true
					break
				}
			}
		}
		if !hit {
			fallingThrough = false
			continue
		}

		matched = true
		d := r.Run(ctx, pl.Stmts)
		if !d.IsNone() {
			return d
		}
		switch pl.Op {
		case syntax.SemiFall:
			fallingThrough = true
		case syntax.DblSemiFall:
			// ;;& goes on testing the following clauses' patterns.
			fallingThrough = false
		default:
			return divert.None
		}
	}
	if !matched {
		r.exitStatus = 0
	}
	return divert.None
}
