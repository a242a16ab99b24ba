// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"mvdan.cc/posh/syntax"
	"mvdan.cc/posh/variable"
)

// expandParam implements spec §4.7a's parameter expansion: `${name}`,
// `${name:-word}`, `${name:=word}`, `${name:?word}`, `${name:+word}`,
// `${#name}`, and the four pattern-removal operators, plus the special
// parameters `$@ $* $# $? $! $$ $0` and positional parameters `$1`...
//
// pe.Ind, pe.Slice and pe.Repl address bash array/substring/replace
// extensions this execution core does not implement (spec.md's Non-goals
// exclude non-POSIX scripting extensions); encountering one is a
// BadSubstitution error rather than a silent approximation.
func expandParam(ctx context.Context, cfg *Config, pe *syntax.ParamExp, quoted bool) (string, error) {
	if pe.Ind != nil || pe.Slice != nil || pe.Repl != nil {
		return "", &Error{Kind: BadSubstitution, Pos: pe.Pos(), Message: "array/substring/replace parameter expansions are not supported"}
	}

	name := pe.Param.Value
	set, str, isArray, arrayLen := lookupParam(cfg, name)

	if pe.Length {
		if isArray {
			return strconv.Itoa(arrayLen), nil
		}
		return strconv.Itoa(utf8.RuneCountInString(str)), nil
	}

	if pe.Exp == nil {
		if !set && cfg.UnsetIsError {
			return "", &Error{Kind: UnboundVariable, Pos: pe.Pos(), Message: name + ": parameter not set"}
		}
		return str, nil
	}

	arg, err := Literal(ctx, cfg, &pe.Exp.Word)
	if err != nil {
		return "", err
	}
	word := string(arg)

	switch pe.Exp.Op {
	case syntax.SubstColAdd:
		if str == "" {
			return str, nil
		}
		fallthrough
	case syntax.SubstAdd:
		if set {
			return word, nil
		}
		return str, nil

	case syntax.SubstSub:
		if set {
			return str, nil
		}
		return word, nil
	case syntax.SubstColSub:
		if str == "" {
			return word, nil
		}
		return str, nil

	case syntax.SubstQuest:
		if set {
			return str, nil
		}
		return "", &Error{Kind: UnboundVariable, Pos: pe.Pos(), Message: paramErrMessage(name, word)}
	case syntax.SubstColQuest:
		if str != "" {
			return str, nil
		}
		return "", &Error{Kind: UnboundVariable, Pos: pe.Pos(), Message: paramErrMessage(name, word)}

	case syntax.SubstAssgn, syntax.SubstColAssgn:
		if set && !(pe.Exp.Op == syntax.SubstColAssgn && str == "") {
			return str, nil
		}
		if _, err := cfg.Env.Assign(name, variable.Scalar(word), pe.Pos(), variable.Global); err != nil {
			return "", &Error{Kind: BadSubstitution, Pos: pe.Pos(), Message: err.Error(), Err: err}
		}
		return word, nil

	case syntax.RemSmallPrefix, syntax.RemLargePrefix, syntax.RemSmallSuffix, syntax.RemLargeSuffix:
		suffix := pe.Exp.Op == syntax.RemSmallSuffix || pe.Exp.Op == syntax.RemLargeSuffix
		greedy := pe.Exp.Op == syntax.RemLargePrefix || pe.Exp.Op == syntax.RemLargeSuffix
		return removePattern(str, word, suffix, greedy)

	default:
		return "", &Error{Kind: BadSubstitution, Pos: pe.Pos(), Message: "unsupported parameter expansion operator (non-POSIX extension)"}
	}
}

func paramErrMessage(name, custom string) string {
	if custom != "" {
		return name + ": " + custom
	}
	return name + ": parameter not set"
}

// lookupParam resolves a parameter name to its string value (spec §4.2's
// special-parameter list plus ordinary variables). isArray and arrayLen
// describe "@"/"*" so pe.Length (`${#name}`) can report the number of
// positional parameters instead of a string's rune count; "#" is a plain
// scalar.
func lookupParam(cfg *Config, name string) (set bool, str string, isArray bool, arrayLen int) {
	switch name {
	case "@", "*":
		params := cfg.Env.Positional()
		sep := " "
		if ifs := cfg.ifs(); name == "*" && ifs != "" {
			sep = ifs[:1]
		}
		return len(params) > 0, strings.Join(params, sep), true, len(params)
	case "#":
		n := len(cfg.Env.Positional())
		return true, strconv.Itoa(n), false, 0
	case "?":
		return true, strconv.Itoa(int(cfg.ExitStatus)), false, 0
	case "$":
		return true, strconv.Itoa(cfg.ShellPID), false, 0
	case "!":
		if cfg.BackgroundPID == 0 {
			return false, "", false, 0
		}
		return true, strconv.Itoa(cfg.BackgroundPID), false, 0
	case "0":
		return true, cfg.ScriptName, false, 0
	}
	if n, err := strconv.Atoi(name); err == nil && n >= 0 {
		params := cfg.Env.Positional()
		if n == 0 {
			return true, cfg.ScriptName, false, 0
		}
		if n-1 < len(params) {
			return true, params[n-1], false, 0
		}
		return false, "", false, 0
	}
	vr, ok := cfg.Env.Get(name)
	if !ok || !vr.IsSet() {
		return false, "", false, 0
	}
	return true, vr.String(), false, 0
}

// removePattern implements the `#`/`##`/`%`/`%%` operators (spec §4.7a):
// translate pattern via syntax.TranslatePattern (greedy for the `##`/`%%`
// forms) and strip the first match from the requested end of str.
func removePattern(str, pat string, fromEnd, greedy bool) (string, error) {
	if pat == "" {
		return str, nil
	}
	expr, err := syntax.TranslatePattern(pat, greedy)
	if err != nil {
		return "", &Error{Kind: BadSubstitution, Message: err.Error(), Err: err}
	}
	switch {
	case fromEnd && !greedy:
		expr = ".*(" + expr + ")$"
	case fromEnd:
		expr = "(" + expr + ")$"
	default:
		expr = "^(" + expr + ")"
	}
	rx, err := regexp.Compile(expr)
	if err != nil {
		return "", &Error{Kind: BadSubstitution, Message: err.Error(), Err: err}
	}
	if loc := rx.FindStringSubmatchIndex(str); loc != nil {
		return str[:loc[2]] + str[loc[3]:], nil
	}
	return str, nil
}
