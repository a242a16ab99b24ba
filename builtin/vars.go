// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package builtin

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"mvdan.cc/posh/variable"
)

// splitAssign splits a `NAME=value` operand the way export/readonly/typeset
// accept in addition to a bare name; ok is false for a bare name.
func splitAssign(arg string) (name, value string, ok bool) {
	i := strings.IndexByte(arg, '=')
	if i < 0 {
		return arg, "", false
	}
	return arg[:i], arg[i+1:], true
}

// quoteScalar renders s as a single-quoted shell word, matching the
// teacher's own quoting convention for round-trippable output
// (spec's "typeset -p round-trip" SUPPLEMENTED FEATURE).
func quoteScalar(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Set implements `set` (spec §4.9, §6): with operands starting `-`/`+`,
// toggles shell options; once a `--` or a non-option operand is seen, the
// remaining operands replace the positional parameters. With no operands
// at all, it lists every variable as a `name=value` assignment, the
// POSIX-mandated "set with no operands" form.
var Set = &Builtin{
	Name: "set",
	Kind: Special,
	Run: func(ctx context.Context, rt Runtime, args []string) Result {
		rest := args[1:]
		i := 0
		replacePositional := false
		for ; i < len(rest); i++ {
			arg := rest[i]
			if arg == "--" {
				i++
				replacePositional = true
				break
			}
			if len(arg) < 2 || (arg[0] != '-' && arg[0] != '+') {
				replacePositional = true
				break
			}
			on := arg[0] == '-'
			if arg == "-o" || arg == "+o" {
				if i+1 >= len(rest) {
					continue
				}
				i++
				if err := rt.SetOptionByName(rest[i], on); err != nil {
					fmt.Fprintf(rt.Stderr(), "set: %v\n", err)
					return Result{ExitStatus: 2}
				}
				continue
			}
			for _, flag := range arg[1:] {
				if err := rt.SetOption(byte(flag), on); err != nil {
					fmt.Fprintf(rt.Stderr(), "set: %v\n", err)
					return Result{ExitStatus: 2}
				}
			}
		}
		if len(rest) == 0 {
			var names []string
			rt.Env().Iter(func(name string, vr variable.Variable) bool {
				names = append(names, name)
				return true
			})
			sort.Strings(names)
			for _, name := range names {
				vr, _ := rt.Env().Get(name)
				fmt.Fprintf(rt.Stdout(), "%s=%s\n", name, quoteScalar(vr.String()))
			}
			return Result{ExitStatus: 0}
		}
		if replacePositional {
			rt.SetPositional(append([]string(nil), rest[i:]...))
		}
		return Result{ExitStatus: 0}
	},
}

// Shift implements `shift [n]` (spec §4.2, §6): drops n (default 1)
// positional parameters from the front of the list.
var Shift = &Builtin{
	Name: "shift",
	Kind: Special,
	Run: func(ctx context.Context, rt Runtime, args []string) Result {
		n := 1
		if len(args) > 1 {
			v, err := strconv.Atoi(args[1])
			if err != nil || v < 0 {
				fmt.Fprintf(rt.Stderr(), "shift: %s: invalid count\n", args[1])
				return Result{ExitStatus: 2}
			}
			n = v
		}
		params := rt.Positional()
		if n > len(params) {
			return Result{ExitStatus: 1}
		}
		rt.SetPositional(append([]string(nil), params[n:]...))
		return Result{ExitStatus: 0}
	},
}

// Unset implements `unset [-fv] name...` (spec §4.2, §4.3, §6): removes
// each name from the variable environment (default, or with `-v`) or the
// function table (`-f`).
var Unset = &Builtin{
	Name: "unset",
	Kind: Special,
	Run: func(ctx context.Context, rt Runtime, args []string) Result {
		wantFunc := false
		names := args[1:]
		if len(names) > 0 && (names[0] == "-f" || names[0] == "-v") {
			wantFunc = names[0] == "-f"
			names = names[1:]
		}
		status := uint8(0)
		for _, name := range names {
			var err error
			if wantFunc {
				err = rt.Functions().Unset(name)
			} else {
				err = rt.Env().Unset(name, variable.Global)
			}
			if err != nil {
				fmt.Fprintf(rt.Stderr(), "unset: %v\n", err)
				status = 1
			}
		}
		return Result{ExitStatus: status}
	},
}

// declareAttr sets or prints the export/read-only attribute for operands
// shared by export, readonly and typeset/declare.
func declareAttr(rt Runtime, builtinName string, args []string, exportFlag, readOnlyFlag bool) Result {
	operands := args[1:]
	printOnly := false
	if len(operands) > 0 && operands[0] == "-p" {
		printOnly = true
		operands = operands[1:]
	}
	if printOnly || len(operands) == 0 {
		var names []string
		rt.Env().Iter(func(name string, vr variable.Variable) bool {
			if exportFlag && !vr.IsExported {
				return true
			}
			if readOnlyFlag && !vr.IsReadOnly() {
				return true
			}
			names = append(names, name)
			return true
		})
		sort.Strings(names)
		for _, name := range names {
			vr, _ := rt.Env().Get(name)
			if vr.IsSet() {
				fmt.Fprintf(rt.Stdout(), "%s %s=%s\n", builtinName, name, quoteScalar(vr.String()))
			} else {
				fmt.Fprintf(rt.Stdout(), "%s %s\n", builtinName, name)
			}
		}
		return Result{ExitStatus: 0}
	}
	status := uint8(0)
	for _, operand := range operands {
		name, value, hasValue := splitAssign(operand)
		if hasValue {
			if _, err := rt.Env().Assign(name, variable.Scalar(value), 0, variable.Global); err != nil {
				fmt.Fprintf(rt.Stderr(), "%s: %v\n", builtinName, err)
				status = 1
				continue
			}
		}
		if exportFlag {
			rt.Env().Export(name, true)
		}
		if readOnlyFlag {
			rt.Env().MakeReadOnly(name, 0)
		}
	}
	return Result{ExitStatus: status}
}

// Export implements `export [-p] [name[=value]...]` (spec §4.2, §6).
var Export = &Builtin{
	Name:                 "export",
	Kind:                 Special,
	IsDeclarationUtility: true,
	Run: func(ctx context.Context, rt Runtime, args []string) Result {
		return declareAttr(rt, "export", args, true, false)
	},
}

// Readonly implements `readonly [-p] [name[=value]...]` (spec §4.2, §6).
var Readonly = &Builtin{
	Name:                 "readonly",
	Kind:                 Special,
	IsDeclarationUtility: true,
	Run: func(ctx context.Context, rt Runtime, args []string) Result {
		return declareAttr(rt, "readonly", args, false, true)
	},
}

// Typeset implements `typeset`/`declare [-p] [-x] [-r] [name[=value]...]`
// (spec's SUPPLEMENTED FEATURES "typeset -p round-trip"): a generalization
// of export/readonly that can set either or both attributes in one call
// and, with `-p` or no operands, prints every variable as a `typeset`
// command that would re-create its value and attributes.
func newTypeset(name string) *Builtin {
	return &Builtin{
		Name:                 name,
		Kind:                 Extension,
		IsDeclarationUtility: true,
		Run: func(ctx context.Context, rt Runtime, args []string) Result {
			exportFlag, readOnlyFlag, printOnly := false, false, false
			operands := args[1:]
			i := 0
		flagLoop:
			for ; i < len(operands); i++ {
				switch operands[i] {
				case "-x":
					exportFlag = true
				case "-r":
					readOnlyFlag = true
				case "-p":
					printOnly = true
				default:
					break flagLoop
				}
			}
			operands = operands[i:]
			if printOnly || len(operands) == 0 {
				var names []string
				rt.Env().Iter(func(n string, vr variable.Variable) bool {
					names = append(names, n)
					return true
				})
				sort.Strings(names)
				for _, n := range names {
					vr, _ := rt.Env().Get(n)
					fmt.Fprint(rt.Stdout(), name)
					if vr.IsReadOnly() {
						fmt.Fprint(rt.Stdout(), " -r")
					}
					if vr.IsExported {
						fmt.Fprint(rt.Stdout(), " -x")
					}
					if vr.IsSet() {
						fmt.Fprintf(rt.Stdout(), " %s=%s\n", n, quoteScalar(vr.String()))
					} else {
						fmt.Fprintf(rt.Stdout(), " %s\n", n)
					}
				}
				return Result{ExitStatus: 0}
			}
			status := uint8(0)
			for _, operand := range operands {
				opName, value, hasValue := splitAssign(operand)
				if hasValue {
					if _, err := rt.Env().Assign(opName, variable.Scalar(value), 0, variable.Global); err != nil {
						fmt.Fprintf(rt.Stderr(), "%s: %v\n", name, err)
						status = 1
						continue
					}
				} else {
					rt.Env().GetOrCreate(opName, variable.Global)
				}
				if exportFlag {
					rt.Env().Export(opName, true)
				}
				if readOnlyFlag {
					rt.Env().MakeReadOnly(opName, 0)
				}
			}
			return Result{ExitStatus: status}
		},
	}
}

// Typeset and Declare are the two names yash-rs and bash respectively use
// for the same builtin; both are registered so either spelling works.
var Typeset = newTypeset("typeset")
var Declare = newTypeset("declare")
