// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package builtin

import (
	"context"
	"fmt"
	"io"

	"mvdan.cc/posh/sig"
	"mvdan.cc/posh/trap"
)

// parseTrapCondition parses one `trap` operand into a trap.Condition,
// grounded on yash-builtin/trap/syntax.rs's condition parser: a decimal
// number, "0"/"EXIT", or a signal name with or without "SIG", case
// insensitive (delegated to sig.Parse, which already implements that exact
// grammar for the `kill` builtin's operands too).
func parseTrapCondition(s string) (trap.Condition, bool) {
	name, isExit, ok := sig.Parse(s)
	if !ok {
		return trap.Condition{}, false
	}
	if isExit {
		return trap.ExitCondition, true
	}
	return trap.SignalCondition(name), true
}

func printTrapLine(w io.Writer, cond trap.Condition, t *trap.Trap) {
	switch {
	case t == nil:
		fmt.Fprintf(w, "trap -- - %s\n", cond)
	case t.Action == trap.ActionIgnore:
		fmt.Fprintf(w, "trap -- '' %s\n", cond)
	case t.Action == trap.ActionDefault:
		fmt.Fprintf(w, "trap -- - %s\n", cond)
	default:
		fmt.Fprintf(w, "trap -- %s %s\n", quoteScalar(t.Command), cond)
	}
}

// Trap implements the `trap` builtin (spec §4.4, §6): `trap` alone or
// `trap -p [condition...]` lists current dispositions; `trap action
// condition...` installs action (`-` for default, an empty string for
// ignore, anything else as a command script) for every listed condition.
// A single operand that parses as a condition, with no action given, is
// treated as an informational query for that one condition's current
// disposition, the classic POSIX "trap N" ambiguity resolution.
var Trap = &Builtin{
	Name: "trap",
	Kind: Special,
	Run: func(ctx context.Context, rt Runtime, args []string) Result {
		operands := args[1:]
		printOnly := false
		if len(operands) > 0 && operands[0] == "-p" {
			printOnly = true
			operands = operands[1:]
		}

		if len(operands) == 0 {
			rt.Traps().Iter(func(cond trap.Condition, t *trap.Trap) bool {
				printTrapLine(rt.Stdout(), cond, t)
				return true
			})
			return Result{ExitStatus: 0}
		}

		if printOnly {
			status := uint8(0)
			for _, operand := range operands {
				cond, ok := parseTrapCondition(operand)
				if !ok {
					fmt.Fprintf(rt.Stderr(), "trap: %s: unknown condition\n", operand)
					status = 1
					continue
				}
				printTrapLine(rt.Stdout(), cond, rt.Traps().Get(cond))
			}
			return Result{ExitStatus: status}
		}

		if len(operands) == 1 {
			if cond, ok := parseTrapCondition(operands[0]); ok {
				printTrapLine(rt.Stdout(), cond, rt.Traps().Get(cond))
				return Result{ExitStatus: 0}
			}
			fmt.Fprintf(rt.Stderr(), "trap: %s: trap action specified without a condition\n", operands[0])
			return Result{ExitStatus: 2}
		}

		action := operands[0]
		status := uint8(0)
		for _, operand := range operands[1:] {
			cond, ok := parseTrapCondition(operand)
			if !ok {
				fmt.Fprintf(rt.Stderr(), "trap: %s: unknown condition\n", operand)
				status = 1
				continue
			}
			var err error
			switch action {
			case "-":
				err = rt.Traps().Set(cond, trap.ActionDefault, "", 0)
			case "":
				err = rt.Traps().Set(cond, trap.ActionIgnore, "", 0)
			default:
				err = rt.Traps().Set(cond, trap.ActionCommand, action, 0)
			}
			if err != nil {
				fmt.Fprintf(rt.Stderr(), "trap: %v\n", err)
				status = 1
			}
		}
		return Result{ExitStatus: status}
	},
}
