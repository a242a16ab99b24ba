// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"testing"

	"mvdan.cc/posh/builtin"
	"mvdan.cc/posh/divert"
	"mvdan.cc/posh/function"
	"mvdan.cc/posh/job"
	"mvdan.cc/posh/redir"
	"mvdan.cc/posh/syntax"
	"mvdan.cc/posh/system/virtual"
	"mvdan.cc/posh/trap"
	"mvdan.cc/posh/variable"
)

// newTestRunner builds a fully-wired Runner over a fresh virtual System and
// its own builtin registry, the shape every test in this package needs
// (mirroring search_test.go's newEnv helper, one level up the dependency
// stack: an interp test needs the whole engine, not just a search.Env).
func newTestRunner(t *testing.T) (*Runner, *virtual.Virtual, *builtin.Registry) {
	t.Helper()
	sys := virtual.New()
	reg := &builtin.Registry{}
	r := New(
		WithSystem(sys),
		WithEnv(variable.New()),
		WithFuncs(&function.Table{}),
		WithBuiltins(reg),
		WithJobs(job.New()),
		WithTraps(trap.New(sys, nil)),
		WithRedir(redir.New(sys)),
		WithScriptName("test"),
	)
	return r, sys, reg
}

// word builds a one-literal Word, the common case for a test's command
// arguments.
func word(s string) syntax.Word {
	return syntax.Word{Parts: []syntax.WordPart{&syntax.Lit{Value: s}}}
}

// call builds a *syntax.Stmt running a simple command with the given
// literal words as its argv.
func call(args ...string) *syntax.Stmt {
	words := make([]syntax.Word, len(args))
	for i, a := range args {
		words[i] = word(a)
	}
	return &syntax.Stmt{Cmd: &syntax.CallExpr{Args: words}}
}

// registerEcho adds a minimal Mandatory builtin named "echo" that joins its
// operands with spaces and writes them followed by a newline to Stdout,
// enough to observe successful dispatch without depending on the real
// `echo` builtin.
func registerEcho(reg *builtin.Registry) {
	reg.Register(&builtin.Builtin{
		Name: "echo",
		Kind: builtin.Mandatory,
		Run: func(ctx context.Context, rt builtin.Runtime, args []string) builtin.Result {
			for i, a := range args[1:] {
				if i > 0 {
					rt.Stdout().Write([]byte(" "))
				}
				rt.Stdout().Write([]byte(a))
			}
			rt.Stdout().Write([]byte("\n"))
			return builtin.Result{ExitStatus: 0}
		},
	})
}

// registerExitBuiltin adds a Special builtin named "exit" that returns an
// Exit diversion carrying the status named by its first operand (defaulting
// to the Runtime's current exit status), standing in for the real `exit`
// builtin in tests that only need the diversion to propagate correctly.
func registerExitBuiltin(reg *builtin.Registry) {
	reg.Register(&builtin.Builtin{
		Name: "exit",
		Kind: builtin.Special,
		Run: func(ctx context.Context, rt builtin.Runtime, args []string) builtin.Result {
			status := rt.ExitStatus()
			if len(args) > 1 {
				status = parseStatus(args[1])
			}
			return builtin.Result{ExitStatus: status, Divert: divert.ExitWith(divert.WithStatus(status))}
		},
	})
}

func parseStatus(s string) uint8 {
	var n uint8
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + uint8(c-'0')
	}
	return n
}
