// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package builtin

import (
	"context"
	"fmt"
)

// Command implements `command [-v|-V] name [arg...]` (spec §4.11's command
// search, SUPPLEMENTED FEATURES "command -v/-V"), grounded on
// original_source's yash-builtin/command/identify.rs: with `-v`/`-V` it
// describes how name would be resolved instead of running it, via
// Runtime.Identify; otherwise it dispatches name/args the way a simple
// command would, except that function definitions are never consulted
// (Runtime.Dispatch's skipFunctions), the rule that lets `command cd`
// always run the builtin even if a function named "cd" shadows it.
var Command = &Builtin{
	Name: "command",
	Kind: Mandatory,
	Run: func(ctx context.Context, rt Runtime, args []string) Result {
		operands := args[1:]
		verbose := false
		identify := false
		for len(operands) > 0 {
			switch operands[0] {
			case "-v":
				identify = true
			case "-V":
				identify = true
				verbose = true
			case "-p":
				// accepted and ignored: Dispatch searches the shell's own
				// $PATH, not a default one.
			default:
				goto operandsDone
			}
			operands = operands[1:]
		}
	operandsDone:
		if len(operands) == 0 {
			fmt.Fprintln(rt.Stderr(), "command: usage: command [-v|-V] name [arg...]")
			return Result{ExitStatus: 2}
		}
		if identify {
			status := uint8(0)
			for _, name := range operands {
				line, found := rt.Identify(name, verbose)
				if !found {
					status = 1
					continue
				}
				fmt.Fprintln(rt.Stdout(), line)
			}
			return Result{ExitStatus: status}
		}
		return rt.Dispatch(ctx, operands, true)
	},
}
