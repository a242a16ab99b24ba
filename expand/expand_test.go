// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"context"
	"errors"
	"testing"

	"mvdan.cc/posh/syntax"
	"mvdan.cc/posh/variable"
)

func lit(s string) *syntax.Lit { return &syntax.Lit{Value: s} }

func word(parts ...syntax.WordPart) *syntax.Word { return &syntax.Word{Parts: parts} }

func litWord(s string) *syntax.Word { return word(lit(s)) }

func sglQuoted(s string) *syntax.SglQuoted { return &syntax.SglQuoted{Value: s} }

func dblQuoted(parts ...syntax.WordPart) *syntax.DblQuoted { return &syntax.DblQuoted{Parts: parts} }

func paramExp(name string) *syntax.ParamExp {
	return &syntax.ParamExp{Short: true, Param: syntax.Lit{Value: name}}
}

func newCfg(t *testing.T) *Config {
	t.Helper()
	return &Config{Env: variable.New()}
}

func setVar(cfg *Config, name, val string) {
	cfg.Env.Assign(name, variable.Scalar(val), 0, variable.Global)
}

func fieldsOf(t *testing.T, cfg *Config, words ...*syntax.Word) []string {
	t.Helper()
	got, err := Fields(context.Background(), cfg, words)
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	out := make([]string, len(got))
	for i, f := range got {
		out[i] = string(f)
	}
	return out
}

func TestFieldsLiteral(t *testing.T) {
	cfg := newCfg(t)
	got := fieldsOf(t, cfg, litWord("foo"), litWord("bar"))
	want := []string{"foo", "bar"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFieldsParamSplitsUnquoted(t *testing.T) {
	cfg := newCfg(t)
	setVar(cfg, "x", "a b  c")
	got := fieldsOf(t, cfg, word(paramExp("x")))
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFieldsQuotedParamDoesNotSplit(t *testing.T) {
	cfg := newCfg(t)
	setVar(cfg, "x", "a b  c")
	got := fieldsOf(t, cfg, word(dblQuoted(paramExp("x"))))
	if len(got) != 1 || got[0] != "a b  c" {
		t.Fatalf("got %v, want [%q]", got, "a b  c")
	}
}

func TestFieldsUnsetUnquotedVanishes(t *testing.T) {
	cfg := newCfg(t)
	got := fieldsOf(t, cfg, word(paramExp("unset_var")))
	if len(got) != 0 {
		t.Fatalf("got %v, want no fields", got)
	}
}

func TestFieldsQuotedEmptySurvives(t *testing.T) {
	cfg := newCfg(t)
	setVar(cfg, "x", "")
	got := fieldsOf(t, cfg, word(dblQuoted(paramExp("x"))))
	if len(got) != 1 || got[0] != "" {
		t.Fatalf("got %v, want one empty field", got)
	}
}

func TestAssignDoesNotSplitOrGlob(t *testing.T) {
	cfg := newCfg(t)
	setVar(cfg, "x", "a b *")
	got, err := Assign(context.Background(), cfg, word(paramExp("x")))
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if string(got) != "a b *" {
		t.Fatalf("got %q, want %q", got, "a b *")
	}
}

func TestSingleQuotedLiteral(t *testing.T) {
	cfg := newCfg(t)
	got := fieldsOf(t, cfg, word(sglQuoted("a $x b")))
	if len(got) != 1 || got[0] != "a $x b" {
		t.Fatalf("got %v, want [%q]", got, "a $x b")
	}
}

func TestDollarSingleQuotedEscapes(t *testing.T) {
	cfg := newCfg(t)
	q := &syntax.SglQuoted{Dollar: true, Value: `a\tb`}
	got := fieldsOf(t, cfg, word(q))
	if len(got) != 1 || got[0] != "a\tb" {
		t.Fatalf("got %v, want [%q]", got, "a\tb")
	}
}

func TestArithmExpansion(t *testing.T) {
	cfg := newCfg(t)
	x := &syntax.ArithmExp{X: &syntax.BinaryArithm{
		Op: syntax.Add,
		X:  litWord("2"),
		Y:  litWord("3"),
	}}
	got := fieldsOf(t, cfg, word(x))
	if len(got) != 1 || got[0] != "5" {
		t.Fatalf("got %v, want [%q]", got, "5")
	}
}

func TestBacklashEscapesUnquoted(t *testing.T) {
	cfg := newCfg(t)
	got := fieldsOf(t, cfg, litWord(`a\ b`))
	if len(got) != 1 || got[0] != "a b" {
		t.Fatalf("got %v, want [%q]", got, "a b")
	}
}

func TestTildeExpansion(t *testing.T) {
	cfg := newCfg(t)
	setVar(cfg, "HOME", "/home/gopher")
	got := fieldsOf(t, cfg, litWord("~/work"))
	if len(got) != 1 || got[0] != "/home/gopher/work" {
		t.Fatalf("got %v, want [%q]", got, "/home/gopher/work")
	}
}

func TestQuotedArrayAt(t *testing.T) {
	cfg := newCfg(t)
	cfg.Env.PushRegular()
	defer cfg.Env.Pop()
	cfg.Env.SetPositional([]string{"a b", "", "c"})
	got := fieldsOf(t, cfg, word(dblQuoted(paramExp("@"))))
	want := []string{"a b", "", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestQuotedArrayStarJoinsWithIFS(t *testing.T) {
	cfg := newCfg(t)
	cfg.Env.PushRegular()
	defer cfg.Env.Pop()
	cfg.Env.SetPositional([]string{"a", "b", "c"})
	setVar(cfg, "IFS", "-")
	got := fieldsOf(t, cfg, word(dblQuoted(paramExp("*"))))
	if len(got) != 1 || got[0] != "a-b-c" {
		t.Fatalf("got %v, want [%q]", got, "a-b-c")
	}
}

func TestUnsetIsErrorUnquoted(t *testing.T) {
	cfg := newCfg(t)
	cfg.UnsetIsError = true
	_, err := Fields(context.Background(), cfg, []*syntax.Word{word(paramExp("nope"))})
	if err == nil {
		t.Fatal("want an error, got nil")
	}
	var e *Error
	if !errors.As(err, &e) || e.Kind != UnboundVariable {
		t.Fatalf("want UnboundVariable, got %v", err)
	}
}
