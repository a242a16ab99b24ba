// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package builtin

import (
	"context"
	"strings"
	"testing"
)

func TestCommandDashVReportsIdentity(t *testing.T) {
	rt := newFakeRuntime()
	rt.identifyFn = func(name string, verbose bool) (string, bool) {
		if name == "ls" {
			return "/bin/ls", true
		}
		return "", false
	}
	res := Command.Run(context.Background(), rt, []string{"command", "-v", "ls"})
	if res.ExitStatus != 0 {
		t.Fatalf("got status %d, want 0", res.ExitStatus)
	}
	if !strings.Contains(rt.stdout.String(), "/bin/ls") {
		t.Fatalf("got stdout %q, want it to mention /bin/ls", rt.stdout.String())
	}
}

func TestCommandDashVUnknownNameFails(t *testing.T) {
	rt := newFakeRuntime()
	res := Command.Run(context.Background(), rt, []string{"command", "-v", "nonesuch"})
	if res.ExitStatus != 1 {
		t.Fatalf("got status %d, want 1", res.ExitStatus)
	}
}

func TestCommandDispatchesSkippingFunctions(t *testing.T) {
	rt := newFakeRuntime()
	var gotSkip bool
	var gotArgs []string
	rt.dispatchFn = func(ctx context.Context, args []string, skipFunctions bool) Result {
		gotSkip = skipFunctions
		gotArgs = args
		return Result{ExitStatus: 0}
	}
	res := Command.Run(context.Background(), rt, []string{"command", "cd", "/tmp"})
	if res.ExitStatus != 0 {
		t.Fatalf("got status %d, want 0", res.ExitStatus)
	}
	if !gotSkip {
		t.Fatal("want command to dispatch with skipFunctions=true")
	}
	if len(gotArgs) != 2 || gotArgs[0] != "cd" || gotArgs[1] != "/tmp" {
		t.Fatalf("got args %v, want [cd /tmp]", gotArgs)
	}
}
