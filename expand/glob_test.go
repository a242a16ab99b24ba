// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"mvdan.cc/posh/variable"
)

func TestQuoteRemoval(t *testing.T) {
	af := AttrField{
		{Value: '"', IsQuoting: true},
		{Value: 'a', Origin: LiteralOrigin, IsQuoted: true},
		{Value: '"', IsQuoting: true},
		{Value: 'b', Origin: LiteralOrigin},
	}
	if got := quoteRemoval(af); got != "ab" {
		t.Fatalf("got %q, want %q", got, "ab")
	}
}

func TestHasGlobMeta(t *testing.T) {
	plain := softField("abc", false)
	if hasGlobMeta(plain) {
		t.Fatal("plain field should have no glob metacharacters")
	}
	star := softField("a*c", false)
	if !hasGlobMeta(star) {
		t.Fatal("expected a*c to carry glob meaning")
	}
	quotedStar := AttrField{
		{Value: 'a', Origin: LiteralOrigin},
		{Value: '*', Origin: LiteralOrigin, IsQuoted: true},
	}
	if hasGlobMeta(quotedStar) {
		t.Fatal("a quoted '*' should not carry glob meaning")
	}
}

func TestGlobFieldMatchesAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.txt", "a.txt", "c.log"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cfg := &Config{Env: variable.New()}
	af := softField(filepath.Join(dir, "*.txt"), false)
	got := globField(cfg, af)
	want := []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt")}
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if string(got[i]) != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestGlobFieldNoMatchKeepsLiteral(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{Env: variable.New()}
	af := softField(filepath.Join(dir, "*.nope"), false)
	got := globField(cfg, af)
	want := filepath.Join(dir, "*.nope")
	if len(got) != 1 || string(got[0]) != want {
		t.Fatalf("got %v, want [%q]", got, want)
	}
}

func TestGlobFieldSkipsDotfilesUnlessExplicit(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{".hidden", "visible"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cfg := &Config{Env: variable.New()}
	af := softField(filepath.Join(dir, "*"), false)
	got := globField(cfg, af)
	if len(got) != 1 || string(got[0]) != filepath.Join(dir, "visible") {
		t.Fatalf("got %v, want only the visible entry", got)
	}
}

func TestGlobFieldNoGlobDisables(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &Config{Env: variable.New(), NoGlob: true}
	pattern := filepath.Join(dir, "*.txt")
	af := softField(pattern, false)
	got := globField(cfg, af)
	if len(got) != 1 || string(got[0]) != pattern {
		t.Fatalf("got %v, want literal [%q]", got, pattern)
	}
}
