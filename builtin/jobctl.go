// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package builtin

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"mvdan.cc/posh/job"
	"mvdan.cc/posh/sig"
	"mvdan.cc/posh/system"
)

// Jobs implements `jobs [-l]` (spec §4.5, §6 "Job report format"): renders
// every tracked job via job.Table.Report, `-l` selecting the verbose
// (pid-column) style.
var Jobs = &Builtin{
	Name: "jobs",
	Kind: Mandatory,
	Run: func(ctx context.Context, rt Runtime, args []string) Result {
		style := job.StylePlain
		for _, a := range args[1:] {
			if a == "-l" {
				style = job.StyleVerbose
			}
		}
		fmt.Fprint(rt.Stdout(), rt.Jobs().Report(job.All, style))
		return Result{ExitStatus: 0}
	},
}

// parseJobIndex resolves a `wait`/`kill` job operand: a bare number names
// a pid directly; "%n" names the job at report index n (spec §4.5, §6's
// job-id syntax).
func parseJobIndex(rt Runtime, operand string) (int, bool) {
	if strings.HasPrefix(operand, "%") {
		n, err := strconv.Atoi(operand[1:])
		if err != nil {
			return 0, false
		}
		return n, true
	}
	pid, err := strconv.Atoi(operand)
	if err != nil {
		return 0, false
	}
	for i := 1; i <= rt.Jobs().Len(); i++ {
		if j, ok := rt.Jobs().Get(i); ok && int(j.Pid) == pid {
			return i, true
		}
	}
	return 0, false
}

// Wait implements `wait [job_id...]` (spec §4.5, §6): blocks until every
// named job (or, with no operands, every job still in the table) reaches
// Halted, using job.Table.WaitFor's polling loop.
var Wait = &Builtin{
	Name: "wait",
	Kind: Mandatory,
	Run: func(ctx context.Context, rt Runtime, args []string) Result {
		operands := args[1:]
		sys := rt.System()
		status := uint8(0)
		if len(operands) == 0 {
			for i := 1; i <= rt.Jobs().Len(); i++ {
				j, err := rt.Jobs().WaitFor(sys, i)
				if err != nil {
					continue
				}
				if j.State.Result.Kind == job.Exited {
					status = j.State.Result.Code
				}
			}
			return Result{ExitStatus: status}
		}
		for _, operand := range operands {
			idx, ok := parseJobIndex(rt, operand)
			if !ok {
				fmt.Fprintf(rt.Stderr(), "wait: %s: no such job\n", operand)
				status = 127
				continue
			}
			j, err := rt.Jobs().WaitFor(sys, idx)
			if err != nil {
				fmt.Fprintf(rt.Stderr(), "wait: %v\n", err)
				status = 127
				continue
			}
			if j.State.Result.Kind == job.Exited {
				status = j.State.Result.Code
			} else {
				status = 128
			}
		}
		return Result{ExitStatus: status}
	},
}

// Kill implements `kill [-s signame | -signame | -n] pid...` (spec §4.4,
// §4.5, §6): sends a signal (default TERM) to each named pid or job.
var Kill = &Builtin{
	Name: "kill",
	Kind: Mandatory,
	Run: func(ctx context.Context, rt Runtime, args []string) Result {
		operands := args[1:]
		signal := sig.TERM
		if len(operands) > 0 && strings.HasPrefix(operands[0], "-") && operands[0] != "-" {
			spec := operands[0][1:]
			if spec == "s" && len(operands) > 1 {
				name, _, ok := sig.Parse(operands[1])
				if !ok {
					fmt.Fprintf(rt.Stderr(), "kill: %s: unknown signal\n", operands[1])
					return Result{ExitStatus: 1}
				}
				signal = name
				operands = operands[2:]
			} else if name, _, ok := sig.Parse(spec); ok {
				signal = name
				operands = operands[1:]
			}
		}
		status := uint8(0)
		for _, operand := range operands {
			idx, isJob := parseJobIndex(rt, operand)
			pid := 0
			if strings.HasPrefix(operand, "%") {
				if !isJob {
					fmt.Fprintf(rt.Stderr(), "kill: %s: no such job\n", operand)
					status = 1
					continue
				}
				j, ok := rt.Jobs().Get(idx)
				if !ok {
					fmt.Fprintf(rt.Stderr(), "kill: %s: no such job\n", operand)
					status = 1
					continue
				}
				pid = int(j.Pid)
			} else {
				n, err := strconv.Atoi(operand)
				if err != nil {
					fmt.Fprintf(rt.Stderr(), "kill: %s: arguments must be process or job IDs\n", operand)
					status = 1
					continue
				}
				pid = n
			}
			if err := rt.System().Kill(system.Pid(pid), signal); err != nil {
				fmt.Fprintf(rt.Stderr(), "kill: %v\n", err)
				status = 1
			}
		}
		return Result{ExitStatus: status}
	},
}
