// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package redir

import (
	"testing"

	"mvdan.cc/posh/syntax"
	"mvdan.cc/posh/system"
	"mvdan.cc/posh/system/virtual"
)

func litWordNode(s string) syntax.Word {
	return syntax.Word{Parts: []syntax.WordPart{&syntax.Lit{Value: s}}}
}

func redirect(op syntax.RedirOperator, word string) *syntax.Redirect {
	return &syntax.Redirect{Op: op, Word: litWordNode(word)}
}

func readAll(t *testing.T, sys system.System, fd system.Fd) string {
	t.Helper()
	buf := make([]byte, 4096)
	n, err := sys.Read(fd, buf)
	if err != nil {
		t.Fatal(err)
	}
	return string(buf[:n])
}

func TestRdrOutCreatesAndWritesFile(t *testing.T) {
	sys := virtual.New()
	e := New(sys)
	if err := e.Apply(redirect(syntax.RdrOut, "/out"), true, nil); err != nil {
		t.Fatal(err)
	}
	sys.Write(system.Stdout, []byte("hi"))
	got, err := sys.ReadFile("/out")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hi" {
		t.Fatalf("got %q, want %q", got, "hi")
	}
}

func TestNoclobberRejectsExistingFile(t *testing.T) {
	sys := virtual.New()
	sys.WriteFile("/out", []byte("old"), 0o644)
	e := New(sys)
	err := e.Apply(redirect(syntax.RdrOut, "/out"), false, nil)
	if err == nil {
		t.Fatal("expected an error when clobbering is disallowed and the file exists")
	}
}

func TestClbOutOverridesNoclobber(t *testing.T) {
	sys := virtual.New()
	sys.WriteFile("/out", []byte("old"), 0o644)
	e := New(sys)
	if err := e.Apply(redirect(syntax.ClbOut, "/out"), false, nil); err != nil {
		t.Fatal(err)
	}
}

func TestAppOutAppendsWithoutTruncating(t *testing.T) {
	sys := virtual.New()
	sys.WriteFile("/out", []byte("old:"), 0o644)
	e := New(sys)
	if err := e.Apply(redirect(syntax.AppOut, "/out"), true, nil); err != nil {
		t.Fatal(err)
	}
	sys.Write(system.Stdout, []byte("new"))
	got, _ := sys.ReadFile("/out")
	if string(got) != "old:new" {
		t.Fatalf("got %q, want %q", got, "old:new")
	}
}

func TestUndoRestoresOriginalTarget(t *testing.T) {
	sys := virtual.New()
	e := New(sys)
	s := e.Push()
	if err := s.apply(redirect(syntax.RdrOut, "/out"), true, nil); err != nil {
		t.Fatal(err)
	}
	if err := e.Pop(); err != nil {
		t.Fatal(err)
	}
	// Stdout should be usable again as the original terminal description,
	// not the file: writing must not error and must not land in /out.
	if _, err := sys.Write(system.Stdout, []byte("restored")); err != nil {
		t.Fatal(err)
	}
	got, _ := sys.ReadFile("/out")
	if string(got) != "" {
		t.Fatalf("got %q in /out, want the restore to have stopped writes landing there", got)
	}
}

func TestHdocWritesExpandedBodyToReadEnd(t *testing.T) {
	sys := virtual.New()
	e := New(sys)
	hdoc := func() ([]byte, error) { return []byte("heredoc body\n"), nil }
	if err := e.Apply(redirect(syntax.Hdoc, "EOF"), true, hdoc); err != nil {
		t.Fatal(err)
	}
	if got := readAll(t, sys, system.Stdin); got != "heredoc body\n" {
		t.Fatalf("got %q, want %q", got, "heredoc body\n")
	}
}

func TestDplOutDashClosesTarget(t *testing.T) {
	sys := virtual.New()
	e := New(sys)
	if err := e.Apply(redirect(syntax.DplOut, "-"), true, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := sys.Write(system.Stdout, []byte("x")); err != system.EBADF {
		t.Fatalf("got %v, want EBADF after closing stdout via >&-", err)
	}
}

func TestExplicitTargetOverridesDefault(t *testing.T) {
	sys := virtual.New()
	e := New(sys)
	r := redirect(syntax.RdrOut, "/out")
	r.N = &syntax.Lit{Value: "5"}
	if err := e.Apply(r, true, nil); err != nil {
		t.Fatal(err)
	}
	sys.Write(system.Fd(5), []byte("via-fd5"))
	got, _ := sys.ReadFile("/out")
	if string(got) != "via-fd5" {
		t.Fatalf("got %q, want redirection targeting explicit fd 5", got)
	}
}
