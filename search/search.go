// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package search implements command search (spec §4.11): given a simple
// command's name, it decides whether the name resolves to a built-in
// utility, a shell function, or an external utility, and if external,
// where on $PATH it lives.
package search

import (
	"fmt"
	"path/filepath"
	"strings"

	"mvdan.cc/posh/builtin"
	"mvdan.cc/posh/function"
	"mvdan.cc/posh/system"
	"mvdan.cc/posh/variable"
)

// TargetKind distinguishes the three things a command name can resolve to.
type TargetKind int

const (
	Builtin TargetKind = iota
	Function
	External
)

// Target is the outcome of Search: the thing a simple command should run.
type Target struct {
	Kind TargetKind

	// Builtin is set when Kind == Builtin.
	Builtin *builtin.Builtin
	// Path is the external utility path, set when Kind == External, and
	// also set on a Substitutive Builtin target that shadows one (the
	// path is then the executable the builtin takes the place of).
	Path string
	// Func is set when Kind == Function.
	Func *function.Function
}

// Env is the slice of shell state command search depends on: the builtin
// registry, the function table, and $PATH resolution via System.
type Env struct {
	Builtins  *builtin.Registry
	Functions *function.Table
	Vars      *variable.Env
	Sys       system.System
}

// Search resolves name to a Target following spec §4.11's priority order:
// a name containing '/' is always external; otherwise special builtins win,
// then functions, then other builtins, then $PATH. A Substitutive builtin
// only wins over an external utility of the same name if one is actually
// found on $PATH; otherwise search falls through to the plain external
// utility (which, at that point, does not exist either, so the overall
// result is "not found").
func Search(env *Env, name string) (Target, bool) {
	if strings.Contains(name, "/") {
		return Target{Kind: External, Path: name}, true
	}

	var b *builtin.Builtin
	if env.Builtins != nil {
		if found, ok := env.Builtins.Get(name); ok {
			b = found
		}
	}

	if b != nil && b.Kind == builtin.Special {
		return Target{Kind: Builtin, Builtin: b}, true
	}

	if env.Functions != nil {
		if fn := env.Functions.Get(name); fn != nil {
			return Target{Kind: Function, Func: fn}, true
		}
	}

	if b != nil && b.Kind != builtin.Substitutive {
		return Target{Kind: Builtin, Builtin: b}, true
	}

	if path, ok := SearchPath(env, name); ok {
		if b != nil {
			return Target{Kind: Builtin, Builtin: b, Path: path}, true
		}
		return Target{Kind: External, Path: path}, true
	}

	return Target{}, false
}

// SearchPath scans $PATH for an executable regular file named name,
// returning the first match (spec §4.11 steps 5/6). An empty element of
// $PATH names the current directory. The returned path is not necessarily
// absolute: a relative $PATH entry yields a relative result.
func SearchPath(env *Env, name string) (string, bool) {
	path := pathValue(env.Vars)
	for _, dir := range strings.Split(path, ":") {
		var candidate string
		if dir == "" {
			candidate = name
		} else {
			candidate = filepath.Join(dir, name)
		}
		if env.Sys.IsExecutableFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// Identify renders the description line the `command -v`/`-V` builtin
// prints for name (spec's SUPPLEMENTED FEATURES, grounded on
// original_source's yash-builtin/command/identify.rs): `-v`'s plain form
// (verbose=false) prints just the thing that would run (the name itself
// for a builtin or function, the resolved path for an external utility);
// `-V`'s verbose form additionally says what kind of thing it is. ok is
// false when name resolves to nothing, matching Search's own result.
func Identify(env *Env, name string, verbose bool) (line string, ok bool) {
	target, found := Search(env, name)
	if !found {
		return "", false
	}
	if !verbose {
		switch target.Kind {
		case External:
			return target.Path + "\n", true
		default:
			return name + "\n", true
		}
	}
	switch target.Kind {
	case Builtin:
		return fmt.Sprintf("%s: %s built-in\n", name, target.Builtin.Kind), true
	case Function:
		return fmt.Sprintf("%s: function\n", name), true
	default: // External
		return fmt.Sprintf("%s: external utility at %s\n", name, target.Path), true
	}
}

// pathValue reads $PATH as a colon-joined string regardless of whether the
// variable holds a scalar or an array (POSIX does not define array PATH,
// but this execution core's Array value type can still hold one).
func pathValue(vars *variable.Env) string {
	if vars == nil {
		return ""
	}
	vr, ok := vars.Get("PATH")
	if !ok || !vr.IsSet() {
		return ""
	}
	if arr, ok := vr.Value.(variable.Array); ok {
		return strings.Join([]string(arr), ":")
	}
	return vr.String()
}
