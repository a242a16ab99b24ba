// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package builtin

import (
	"context"
	"strings"
	"testing"

	"mvdan.cc/posh/variable"
)

func mustWriteFile(t *testing.T, rt *fakeRuntime, path, content string) {
	t.Helper()
	virt, ok := rt.sys.(interface {
		WriteFile(path string, data []byte, perm uint32) error
	})
	if !ok {
		t.Fatal("fake runtime's system cannot write files")
	}
	if err := virt.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCdWithNoOperandGoesHome(t *testing.T) {
	rt := newFakeRuntime()
	mustWriteFile(t, rt, "/home/me/.keep", "")
	rt.env.Assign("HOME", variable.Scalar("/home/me"), 0, variable.Global)
	res := Cd.Run(context.Background(), rt, []string{"cd"})
	if res.ExitStatus != 0 {
		t.Fatalf("got status %d, want 0", res.ExitStatus)
	}
	cwd, err := rt.sys.Getcwd()
	if err != nil || cwd != "/home/me" {
		t.Fatalf("got cwd %q, err %v, want /home/me", cwd, err)
	}
	if got := getVar(t, rt, "PWD"); got != "/home/me" {
		t.Fatalf("got PWD=%q, want /home/me", got)
	}
}

func TestCdDashUsesOldpwdAndEchoes(t *testing.T) {
	rt := newFakeRuntime()
	mustWriteFile(t, rt, "/a/.keep", "")
	mustWriteFile(t, rt, "/b/.keep", "")
	rt.env.Assign("OLDPWD", variable.Scalar("/a"), 0, variable.Global)
	rt.env.Assign("PWD", variable.Scalar("/b"), 0, variable.Global)
	res := Cd.Run(context.Background(), rt, []string{"cd", "-"})
	if res.ExitStatus != 0 {
		t.Fatalf("got status %d, want 0", res.ExitStatus)
	}
	if !strings.Contains(rt.stdout.String(), "/a") {
		t.Fatalf("got stdout %q, want it to echo /a", rt.stdout.String())
	}
	if got := getVar(t, rt, "PWD"); got != "/a" {
		t.Fatalf("got PWD=%q, want /a", got)
	}
	if got := getVar(t, rt, "OLDPWD"); got != "/b" {
		t.Fatalf("got OLDPWD=%q, want /b", got)
	}
}

func TestCdSearchesCdpath(t *testing.T) {
	rt := newFakeRuntime()
	mustWriteFile(t, rt, "/proj/sub/.keep", "")
	rt.env.Assign("PWD", variable.Scalar("/"), 0, variable.Global)
	rt.env.Assign("CDPATH", variable.Scalar("/proj"), 0, variable.Global)
	res := Cd.Run(context.Background(), rt, []string{"cd", "sub"})
	if res.ExitStatus != 0 {
		t.Fatalf("got status %d, want 0", res.ExitStatus)
	}
	cwd, _ := rt.sys.Getcwd()
	if cwd != "/proj/sub" {
		t.Fatalf("got cwd %q, want /proj/sub", cwd)
	}
}

func TestCdNoSuchDirectoryFails(t *testing.T) {
	rt := newFakeRuntime()
	res := Cd.Run(context.Background(), rt, []string{"cd", "/does/not/exist"})
	if res.ExitStatus != 1 {
		t.Fatalf("got status %d, want 1", res.ExitStatus)
	}
}

func TestPwdPrefersPWDVariable(t *testing.T) {
	rt := newFakeRuntime()
	rt.env.Assign("PWD", variable.Scalar("/somewhere"), 0, variable.Global)
	Pwd.Run(context.Background(), rt, []string{"pwd"})
	if got := strings.TrimSpace(rt.stdout.String()); got != "/somewhere" {
		t.Fatalf("got stdout %q, want /somewhere", got)
	}
}

func TestPwdPhysicalAsksSystem(t *testing.T) {
	rt := newFakeRuntime()
	rt.env.Assign("PWD", variable.Scalar("/somewhere/else"), 0, variable.Global)
	Pwd.Run(context.Background(), rt, []string{"pwd", "-P"})
	cwd, _ := rt.sys.Getcwd()
	if got := strings.TrimSpace(rt.stdout.String()); got != cwd {
		t.Fatalf("got stdout %q, want the system cwd %q", got, cwd)
	}
}

func TestReadSplitsOnIFS(t *testing.T) {
	rt := newFakeRuntime()
	rt.stdin = strings.NewReader("  foo   bar baz\n")
	res := Read.Run(context.Background(), rt, []string{"read", "a", "b"})
	if res.ExitStatus != 0 {
		t.Fatalf("got status %d, want 0", res.ExitStatus)
	}
	if got := getVar(t, rt, "a"); got != "foo" {
		t.Fatalf("got a=%q, want foo", got)
	}
	if got := getVar(t, rt, "b"); got != "bar baz" {
		t.Fatalf("got b=%q, want 'bar baz' (rest of line in last var)", got)
	}
}

func TestReadAtEOFReturnsFailure(t *testing.T) {
	rt := newFakeRuntime()
	rt.stdin = strings.NewReader("")
	res := Read.Run(context.Background(), rt, []string{"read", "a"})
	if res.ExitStatus != 1 {
		t.Fatalf("got status %d, want 1", res.ExitStatus)
	}
}
