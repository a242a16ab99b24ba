// Copyright (c) 2019, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

//go:build !windows

package interp

import (
	"bufio"
	"context"
	"testing"

	"github.com/creack/pty"

	"mvdan.cc/posh/builtin"
	"mvdan.cc/posh/function"
	"mvdan.cc/posh/job"
	"mvdan.cc/posh/redir"
	"mvdan.cc/posh/syntax"
	"mvdan.cc/posh/system/virtual"
	"mvdan.cc/posh/trap"
	"mvdan.cc/posh/variable"
)

// TestStdoutThroughRealPseudoTerminal runs a builtin's Stdout write through
// a real pseudo-terminal rather than the virtual System's in-memory fifo,
// confirming WithStdIO's override reaches a genuine tty line discipline
// (which turns a bare "\n" into "\r\n", something an in-memory pipe never
// does) and not just the virtual System's approximation of one, grounded
// on the teacher's own interp/terminal_test.go TestRunnerTerminalStdIO
// "Pseudo" case.
func TestStdoutThroughRealPseudoTerminal(t *testing.T) {
	ptyFile, ttyFile, err := pty.Open()
	if err != nil {
		t.Skipf("no pseudo-terminal available in this environment: %v", err)
	}
	defer ptyFile.Close()
	defer ttyFile.Close()

	sys := virtual.New()
	reg := &builtin.Registry{}
	reg.Register(writeArgBuiltin("put"))
	r := New(
		WithSystem(sys),
		WithEnv(variable.New()),
		WithFuncs(&function.Table{}),
		WithBuiltins(reg),
		WithJobs(job.New()),
		WithTraps(trap.New(sys, nil)),
		WithRedir(redir.New(sys)),
		WithStdIO(nil, ttyFile, ttyFile),
	)

	go r.Run(context.Background(), []*syntax.Stmt{call("put", "hello\n")})

	got, err := bufio.NewReader(ptyFile).ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello\r\n" {
		t.Fatalf("got %q, want %q (a real tty's line discipline adds the \\r)", got, "hello\r\n")
	}
}
