// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package variable

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestGlobalAssignFindsOuterBinding(t *testing.T) {
	e := New()
	if _, err := e.Assign("x", Scalar("1"), 0, Global); err != nil {
		t.Fatal(err)
	}
	e.PushRegular()
	if _, err := e.Assign("x", Scalar("2"), 0, Global); err != nil {
		t.Fatal(err)
	}
	e.Pop()
	vr, ok := e.Get("x")
	if !ok || vr.String() != "2" {
		t.Fatalf("got %+v, want overwritten outer binding", vr)
	}
}

func TestLocalAssignShadows(t *testing.T) {
	e := New()
	e.Assign("x", Scalar("1"), 0, Global)
	e.PushRegular()
	e.Assign("x", Scalar("2"), 0, Local)
	if vr, _ := e.Get("x"); vr.String() != "2" {
		t.Fatalf("inner scope should see shadow, got %q", vr.String())
	}
	e.Pop()
	if vr, _ := e.Get("x"); vr.String() != "1" {
		t.Fatalf("outer scope should be unaffected by Local assign, got %q", vr.String())
	}
}

func TestReadOnlyRejectsAssignAndUnset(t *testing.T) {
	e := New()
	e.Assign("x", Scalar("1"), 0, Global)
	e.MakeReadOnly("x", 0)

	if _, err := e.Assign("x", Scalar("2"), 0, Global); err == nil {
		t.Fatal("expected ReadOnlyError")
	}
	if err := e.Unset("x", Global); err == nil {
		t.Fatal("expected UnsetError")
	}
	if vr, _ := e.Get("x"); vr.String() != "1" {
		t.Fatalf("value must be unchanged, got %q", vr.String())
	}
}

func TestEnvCStringsExcludesUnexported(t *testing.T) {
	e := New()
	e.Assign("PUBLIC", Scalar("1"), 0, Global)
	e.Export("PUBLIC", true)
	e.Assign("PRIVATE", Scalar("2"), 0, Global)

	got := e.EnvCStrings()
	want := []string{"PUBLIC=1"}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("EnvCStrings mismatch (-want +got):\n%s", diff)
	}
}

func TestArrayEnvJoinsWithColon(t *testing.T) {
	e := New()
	e.Assign("PATHLIKE", Array{"a", "b"}, 0, Global)
	e.Export("PATHLIKE", true)
	got := e.EnvCStrings()
	want := []string{"PATHLIKE=a:b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("EnvCStrings mismatch (-want +got):\n%s", diff)
	}
}

func TestPositionalParametersScopedToFunctionFrame(t *testing.T) {
	e := New()
	e.SetPositional([]string{"outer1", "outer2"})
	e.PushRegular()
	e.SetPositional([]string{"inner1"})
	if got := e.Positional(); len(got) != 1 || got[0] != "inner1" {
		t.Fatalf("got %v, want [inner1]", got)
	}
	e.Pop()
	if got := e.Positional(); len(got) != 2 {
		t.Fatalf("got %v, want 2 restored outer params", got)
	}
}
