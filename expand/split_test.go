// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"testing"

	"mvdan.cc/posh/variable"
)

func rawFields(fields []AttrField) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.raw()
	}
	return out
}

func eqStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSplitFieldWhitespaceCollapses(t *testing.T) {
	cfg := &Config{Env: variable.New()}
	af := softField("a b  c", false)
	got := rawFields(splitField(cfg, af))
	want := []string{"a", "b", "c"}
	if !eqStrings(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSplitFieldTrailingNonWhitespaceSurvives(t *testing.T) {
	cfg := &Config{Env: variable.New()}
	cfg.Env.Assign("IFS", variable.Scalar(":"), 0, variable.Global)
	af := softField("a:", false)
	got := rawFields(splitField(cfg, af))
	want := []string{"a", ""}
	if !eqStrings(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSplitFieldAllWhitespaceVanishes(t *testing.T) {
	cfg := &Config{Env: variable.New()}
	af := softField(" ", false)
	got := splitField(cfg, af)
	if len(got) != 0 {
		t.Fatalf("got %v, want no fields", got)
	}
}

func TestSplitFieldEmptyIFSDisablesSplitting(t *testing.T) {
	cfg := &Config{Env: variable.New()}
	cfg.Env.Assign("IFS", variable.Scalar(""), 0, variable.Global)
	af := softField(" ", false)
	got := rawFields(splitField(cfg, af))
	want := []string{" "}
	if !eqStrings(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSplitFieldQuotedEmptySurvives(t *testing.T) {
	cfg := &Config{Env: variable.New()}
	af := quotedLiteral("")
	fields := splitField(cfg, af)
	if len(fields) != 1 || quoteRemoval(fields[0]) != "" {
		t.Fatalf("got %v, want one empty field", rawFields(fields))
	}
}

func TestSplitFieldQuotedCharNotSplittable(t *testing.T) {
	cfg := &Config{Env: variable.New()}
	af := AttrField{
		{Value: 'a', Origin: SoftExpansion},
		{Value: ' ', Origin: SoftExpansion, IsQuoted: true},
		{Value: 'b', Origin: SoftExpansion},
	}
	got := rawFields(splitField(cfg, af))
	want := []string{"a b"}
	if !eqStrings(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
