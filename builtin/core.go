// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package builtin

import (
	"context"
	"strconv"
	"strings"

	"mvdan.cc/posh/divert"
)

// parseOptionalStatus parses a builtin's single optional numeric operand
// (the `n` in `exit [n]`/`return [n]`), defaulting to the Runtime's current
// exit status when absent, matching spec §6's shared "no operand reuses
// the last exit status" rule for exit/return.
func parseOptionalStatus(rt Runtime, args []string) uint8 {
	if len(args) < 2 {
		return rt.ExitStatus()
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 2
	}
	return uint8(n)
}

// parseOptionalCount parses a builtin's single optional positive integer
// operand (the `n` in `break [n]`/`continue [n]`), defaulting to 1.
func parseOptionalCount(args []string) int {
	if len(args) < 2 {
		return 1
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Colon implements `:` (spec §6): a no-op that always succeeds, the
// canonical Special builtin every other Special builtin's redirection and
// assignment handling is tested against.
var Colon = &Builtin{
	Name: ":",
	Kind: Special,
	Run: func(ctx context.Context, rt Runtime, args []string) Result {
		return Result{ExitStatus: 0}
	},
}

// True implements `true`.
var True = &Builtin{
	Name: "true",
	Kind: Mandatory,
	Run: func(ctx context.Context, rt Runtime, args []string) Result {
		return Result{ExitStatus: 0}
	},
}

// False implements `false`.
var False = &Builtin{
	Name: "false",
	Kind: Mandatory,
	Run: func(ctx context.Context, rt Runtime, args []string) Result {
		return Result{ExitStatus: 1}
	},
}

// Exit implements `exit [n]` (spec §4.8, §6): diverts Exit, carrying n or
// (absent) the shell's current exit status.
var Exit = &Builtin{
	Name: "exit",
	Kind: Special,
	Run: func(ctx context.Context, rt Runtime, args []string) Result {
		status := parseOptionalStatus(rt, args)
		return Result{ExitStatus: status, Divert: divert.ExitWith(divert.WithStatus(status))}
	},
}

// Return implements `return [n]` (spec §4.8, §6): diverts Return, unwinding
// to the nearest enclosing function call or, at the top level, the
// read-eval loop itself.
var Return = &Builtin{
	Name: "return",
	Kind: Special,
	Run: func(ctx context.Context, rt Runtime, args []string) Result {
		status := parseOptionalStatus(rt, args)
		return Result{ExitStatus: status, Divert: divert.ReturnWith(divert.WithStatus(status))}
	},
}

// Break implements `break [n]` (spec §4.8, §6): diverts Break for n
// enclosing loop frames.
var Break = &Builtin{
	Name: "break",
	Kind: Special,
	Run: func(ctx context.Context, rt Runtime, args []string) Result {
		return Result{ExitStatus: 0, Divert: divert.BreakN(parseOptionalCount(args))}
	},
}

// Continue implements `continue [n]` (spec §4.8, §6): diverts ContinueLoop
// for n enclosing loop frames.
var Continue = &Builtin{
	Name: "continue",
	Kind: Special,
	Run: func(ctx context.Context, rt Runtime, args []string) Result {
		return Result{ExitStatus: 0, Divert: divert.ContinueN(parseOptionalCount(args))}
	},
}

// Eval implements `eval [arg...]` (spec §4.8, §6): joins its operands with
// a single space, the POSIX-mandated reconstruction rule, and runs the
// result as shell input in the current environment.
var Eval = &Builtin{
	Name: "eval",
	Kind: Special,
	Run: func(ctx context.Context, rt Runtime, args []string) Result {
		script := strings.Join(args[1:], " ")
		status, d, err := rt.Eval(ctx, script)
		if err != nil {
			return Result{ExitStatus: 2, Divert: divert.InterruptWith(divert.WithStatus(2))}
		}
		return Result{ExitStatus: status, Divert: d}
	},
}
