// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package builtin

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"mvdan.cc/posh/variable"
)

func scalarVar(rt Runtime, name string) string {
	vr, ok := rt.Env().Get(name)
	if !ok || !vr.IsSet() {
		return ""
	}
	return vr.String()
}

// cdTarget resolves `cd`'s operand to a directory to change into, following
// original_source's yash-builtin/cd/target.rs steps 1-6: no operand
// substitutes $HOME, "-" substitutes $OLDPWD (usedOldpwd tells Cd to echo
// the result to stdout, the traditional `cd -` behavior), and any other
// operand is returned as is. The $CDPATH search for a relative operand is
// done by Cd, not here.
func cdTarget(rt Runtime, operand string) (path string, usedOldpwd bool, err error) {
	switch {
	case operand == "":
		home := scalarVar(rt, "HOME")
		if home == "" {
			return "", false, fmt.Errorf("HOME not set")
		}
		return home, false, nil
	case operand == "-":
		oldpwd := scalarVar(rt, "OLDPWD")
		if oldpwd == "" {
			return "", false, fmt.Errorf("OLDPWD not set")
		}
		return oldpwd, true, nil
	default:
		return operand, false, nil
	}
}

func isCdpathEligible(operand string) bool {
	return !strings.HasPrefix(operand, "/") &&
		operand != "." && operand != ".." &&
		!strings.HasPrefix(operand, "./") && !strings.HasPrefix(operand, "../")
}

// Cd implements `cd [-L|-P] [dir]` (spec's SUPPLEMENTED FEATURES "cd
// physical/logical path resolution"): resolves the target per cdTarget,
// searches $CDPATH when eligible, changes directory via the System facade,
// and updates $OLDPWD/$PWD. `-P` resolves to the System's own idea of the
// new working directory (physical); the default/`-L` keeps the
// non-canonicalized logical path formed by joining the prior $PWD.
var Cd = &Builtin{
	Name: "cd",
	Kind: Mandatory,
	Run: func(ctx context.Context, rt Runtime, args []string) Result {
		physical := false
		operands := args[1:]
		for len(operands) > 0 {
			switch operands[0] {
			case "-L":
				physical = false
			case "-P":
				physical = true
			default:
				goto operandsDone
			}
			operands = operands[1:]
		}
	operandsDone:
		operand := ""
		if len(operands) > 0 {
			operand = operands[0]
		}

		target, usedOldpwd, err := cdTarget(rt, operand)
		if err != nil {
			fmt.Fprintf(rt.Stderr(), "cd: %v\n", err)
			return Result{ExitStatus: 1}
		}

		oldpwd := scalarVar(rt, "PWD")
		logical := target
		if isCdpathEligible(target) {
			for _, dir := range strings.Split(scalarVar(rt, "CDPATH"), ":") {
				if dir == "" {
					continue
				}
				candidate := filepath.Join(dir, target)
				if chdirErr := rt.System().Chdir(candidate); chdirErr == nil {
					target = candidate
					logical = candidate
					goto chdirDone
				}
			}
		}
		if !filepath.IsAbs(target) {
			logical = filepath.Join(oldpwd, target)
		}
		if err := rt.System().Chdir(target); err != nil {
			fmt.Fprintf(rt.Stderr(), "cd: %s: %v\n", target, err)
			return Result{ExitStatus: 1}
		}
	chdirDone:
		newPwd := logical
		if physical {
			if cwd, err := rt.System().Getcwd(); err == nil {
				newPwd = cwd
			}
		} else {
			newPwd = filepath.Clean(logical)
		}
		rt.Env().Assign("OLDPWD", variable.Scalar(oldpwd), 0, variable.Global)
		rt.Env().Assign("PWD", variable.Scalar(newPwd), 0, variable.Global)
		if usedOldpwd {
			fmt.Fprintln(rt.Stdout(), newPwd)
		}
		return Result{ExitStatus: 0}
	},
}

// Pwd implements `pwd [-L|-P]` (spec §6): `-L` (the default) prints $PWD
// if set, falling back to the System's working directory; `-P` always
// asks the System directly.
var Pwd = &Builtin{
	Name: "pwd",
	Kind: Mandatory,
	Run: func(ctx context.Context, rt Runtime, args []string) Result {
		physical := false
		for _, a := range args[1:] {
			if a == "-P" {
				physical = true
			}
		}
		if !physical {
			if pwd := scalarVar(rt, "PWD"); pwd != "" {
				fmt.Fprintln(rt.Stdout(), pwd)
				return Result{ExitStatus: 0}
			}
		}
		cwd, err := rt.System().Getcwd()
		if err != nil {
			fmt.Fprintf(rt.Stderr(), "pwd: %v\n", err)
			return Result{ExitStatus: 1}
		}
		fmt.Fprintln(rt.Stdout(), cwd)
		return Result{ExitStatus: 0}
	},
}

// Read implements `read [-r] name...` (spec §4.7, §6), grounded on
// original_source's yash-builtin/read/assigning.rs: reads one line from
// standard input (a trailing backslash joins the next line unless `-r` is
// given), splits it on $IFS, and assigns the resulting fields to the named
// variables, the last variable absorbing any excess fields verbatim. Any
// other backslash is kept as an ordinary character and does not suppress
// splitting.
var Read = &Builtin{
	Name: "read",
	Kind: Mandatory,
	Run: func(ctx context.Context, rt Runtime, args []string) Result {
		raw := false
		names := args[1:]
		if len(names) > 0 && names[0] == "-r" {
			raw = true
			names = names[1:]
		}
		if len(names) == 0 {
			fmt.Fprintln(rt.Stderr(), "read: usage: read [-r] name...")
			return Result{ExitStatus: 2}
		}

		line, err := readLine(rt, raw)
		if err != nil && line == "" {
			return Result{ExitStatus: 1}
		}

		ifs := scalarVar(rt, "IFS")
		if ifs == "" && !hasIFS(rt) {
			ifs = " \t\n"
		}
		fields := splitIFS(line, ifs, len(names))
		for i, name := range names {
			val := ""
			if i < len(fields) {
				val = fields[i]
			}
			if _, aerr := rt.Env().Assign(name, variable.Scalar(val), 0, variable.Global); aerr != nil {
				fmt.Fprintf(rt.Stderr(), "read: %v\n", aerr)
				return Result{ExitStatus: 1}
			}
		}
		if err != nil {
			return Result{ExitStatus: 1}
		}
		return Result{ExitStatus: 0}
	},
}

func hasIFS(rt Runtime) bool {
	_, ok := rt.Env().Get("IFS")
	return ok
}

// readOneLine reads up to and including the next '\n' from r one byte at a
// time, returning the line sans the newline. Byte-at-a-time is deliberate:
// `read` must consume exactly one line from the shell's shared stdin
// descriptor, and a buffered reader would pull ahead into bytes a sibling
// command or a later `read` still needs to see.
func readOneLine(r io.Reader) (string, error) {
	var buf [1]byte
	var b strings.Builder
	for {
		n, err := r.Read(buf[:])
		if n > 0 {
			if buf[0] == '\n' {
				return b.String(), nil
			}
			b.WriteByte(buf[0])
		}
		if err != nil {
			return b.String(), err
		}
	}
}

// readLine reads one logical line from stdin, honoring backslash-newline
// continuation unless raw is set (spec §4.7's read semantics, simplified
// to the common single-statement read case: no here-document, just Stdin
// as an io.Reader).
func readLine(rt Runtime, raw bool) (string, error) {
	stdin := rt.Stdin()
	var b strings.Builder
	for {
		line, err := readOneLine(stdin)
		if !raw && strings.HasSuffix(line, `\`) {
			b.WriteString(strings.TrimSuffix(line, `\`))
			b.WriteByte('\n')
			if err != nil {
				return b.String(), err
			}
			continue
		}
		b.WriteString(line)
		return b.String(), err
	}
}

// splitIFS splits s on the characters of ifs, collapsing consecutive IFS
// whitespace runs the way POSIX field splitting does, and keeping the
// final field (up to maxFields) intact with no further splitting so that
// `read name1 name2` assigns "the rest of the line" to the last variable.
func splitIFS(s, ifs string, maxFields int) []string {
	if maxFields <= 0 {
		return nil
	}
	if ifs == "" {
		return []string{s}
	}
	isIFS := func(r rune) bool { return strings.ContainsRune(ifs, r) }

	var fields []string
	i := 0
	for i < len(s) {
		for i < len(s) && isIFS(rune(s[i])) {
			i++
		}
		if i >= len(s) {
			break
		}
		if len(fields) == maxFields-1 {
			fields = append(fields, strings.TrimRight(s[i:], ifs))
			return fields
		}
		start := i
		for i < len(s) && !isIFS(rune(s[i])) {
			i++
		}
		fields = append(fields, s[start:i])
	}
	return fields
}
