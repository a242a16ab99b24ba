// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package builtin

import (
	"context"
	"strings"
	"testing"

	"mvdan.cc/posh/trap"
)

func TestTrapInstallsCommandAction(t *testing.T) {
	rt := newFakeRuntime()
	res := Trap.Run(context.Background(), rt, []string{"trap", "echo bye", "INT"})
	if res.ExitStatus != 0 {
		t.Fatalf("got status %d, want 0", res.ExitStatus)
	}
	tr := rt.traps.Get(trap.SignalCondition("INT"))
	if tr == nil || tr.Action != trap.ActionCommand || tr.Command != "echo bye" {
		t.Fatalf("got %+v, want command trap 'echo bye'", tr)
	}
}

func TestTrapDashResetsToDefault(t *testing.T) {
	rt := newFakeRuntime()
	Trap.Run(context.Background(), rt, []string{"trap", "echo bye", "INT"})
	Trap.Run(context.Background(), rt, []string{"trap", "-", "INT"})
	tr := rt.traps.Get(trap.SignalCondition("INT"))
	if tr == nil || tr.Action != trap.ActionDefault {
		t.Fatalf("got %+v, want default action", tr)
	}
}

func TestTrapEmptyActionIgnores(t *testing.T) {
	rt := newFakeRuntime()
	Trap.Run(context.Background(), rt, []string{"trap", "", "INT"})
	tr := rt.traps.Get(trap.SignalCondition("INT"))
	if tr == nil || tr.Action != trap.ActionIgnore {
		t.Fatalf("got %+v, want ignore action", tr)
	}
}

func TestTrapSingleOperandQueriesCondition(t *testing.T) {
	rt := newFakeRuntime()
	Trap.Run(context.Background(), rt, []string{"trap", "echo bye", "INT"})
	rt.stdout.Reset()
	res := Trap.Run(context.Background(), rt, []string{"trap", "INT"})
	if res.ExitStatus != 0 {
		t.Fatalf("got status %d, want 0", res.ExitStatus)
	}
	if !strings.Contains(rt.stdout.String(), "echo bye") {
		t.Fatalf("got stdout %q, want it to echo the installed command", rt.stdout.String())
	}
}

func TestTrapSingleNonConditionOperandIsAnError(t *testing.T) {
	rt := newFakeRuntime()
	res := Trap.Run(context.Background(), rt, []string{"trap", "echo hi"})
	if res.ExitStatus != 2 {
		t.Fatalf("got status %d, want 2", res.ExitStatus)
	}
}

func TestTrapNoOperandsListsEverything(t *testing.T) {
	rt := newFakeRuntime()
	Trap.Run(context.Background(), rt, []string{"trap", "echo bye", "INT"})
	rt.stdout.Reset()
	Trap.Run(context.Background(), rt, []string{"trap"})
	if !strings.Contains(rt.stdout.String(), "INT") {
		t.Fatalf("got stdout %q, want it to list INT", rt.stdout.String())
	}
}
