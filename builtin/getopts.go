// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package builtin

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"mvdan.cc/posh/variable"
)

// optPlaceVar holds the remaining unparsed characters of a bundled option
// argument (e.g. the "bc" left in "-abc" once "a" has been consumed)
// between one getopts invocation and the next. POSIX only specifies
// OPTIND/OPTARG as the builtin's visible state; original_source's
// yash-builtin/getopts/model.rs instead returns an explicit next_char_index
// the caller threads through by hand. This workspace's Func signature has
// nowhere to return that to the caller, so it is threaded the same way
// OPTIND itself is: through a variable, kept unexported-looking by its name
// so a script is unlikely to collide with it by accident.
const optPlaceVar = "_GETOPTS_PLACE"

// Getopts implements `getopts optstring name [arg...]` (spec's SUPPLEMENTED
// FEATURES "getopts state machine", grounded on
// yash-builtin/getopts/model.rs's OptionSpec.judge/next, simplified from
// that file's explicit Result/next_arg_index/next_char_index return values
// into the imperative OPTIND/OPTARG/OPTIND-bundle-position state machine
// every POSIX shell actually exposes to scripts).
var Getopts = &Builtin{
	Name: "getopts",
	Kind: Mandatory,
	Run: func(ctx context.Context, rt Runtime, args []string) Result {
		if len(args) < 3 {
			fmt.Fprintln(rt.Stderr(), "getopts: usage: getopts optstring name [arg...]")
			return Result{ExitStatus: 2}
		}
		optstring := args[1]
		name := args[2]
		opArgs := args[3:]
		if len(opArgs) == 0 {
			opArgs = rt.Positional()
		}

		silent := strings.HasPrefix(optstring, ":")
		spec := strings.TrimPrefix(optstring, ":")

		optind := getoptsInt(rt, "OPTIND", 1)
		place := getoptsStr(rt, optPlaceVar)

		for place == "" {
			if optind > len(opArgs) {
				setOptindPlace(rt, optind, "")
				rt.Env().Assign(name, variable.Scalar("?"), 0, variable.Global)
				return Result{ExitStatus: 1}
			}
			arg := opArgs[optind-1]
			if len(arg) < 2 || arg[0] != '-' {
				setOptindPlace(rt, optind, "")
				rt.Env().Assign(name, variable.Scalar("?"), 0, variable.Global)
				return Result{ExitStatus: 1}
			}
			optind++
			if arg == "--" {
				setOptindPlace(rt, optind, "")
				rt.Env().Assign(name, variable.Scalar("?"), 0, variable.Global)
				return Result{ExitStatus: 1}
			}
			place = arg[1:]
		}

		optChar := place[0]
		place = place[1:]
		idx := strings.IndexByte(spec, optChar)

		if optChar == ':' || idx < 0 {
			rt.Env().Assign(name, variable.Scalar("?"), 0, variable.Global)
			if silent {
				rt.Env().Assign("OPTARG", variable.Scalar(string(optChar)), 0, variable.Global)
			} else {
				fmt.Fprintf(rt.Stderr(), "%s: illegal option -- %c\n", args[2], optChar)
				rt.Env().Unset("OPTARG", variable.Global)
			}
			setOptindPlace(rt, optind, place)
			return Result{ExitStatus: 0}
		}

		takesArg := idx+1 < len(spec) && spec[idx+1] == ':'
		if !takesArg {
			rt.Env().Assign(name, variable.Scalar(string(optChar)), 0, variable.Global)
			rt.Env().Unset("OPTARG", variable.Global)
			setOptindPlace(rt, optind, place)
			return Result{ExitStatus: 0}
		}

		var optArg string
		if place != "" {
			optArg = place
			place = ""
		} else {
			if optind > len(opArgs) {
				if silent {
					rt.Env().Assign(name, variable.Scalar(":"), 0, variable.Global)
					rt.Env().Assign("OPTARG", variable.Scalar(string(optChar)), 0, variable.Global)
				} else {
					fmt.Fprintf(rt.Stderr(), "%s: option requires an argument -- %c\n", args[2], optChar)
					rt.Env().Assign(name, variable.Scalar("?"), 0, variable.Global)
					rt.Env().Unset("OPTARG", variable.Global)
				}
				setOptindPlace(rt, optind, "")
				return Result{ExitStatus: 0}
			}
			optArg = opArgs[optind-1]
			optind++
		}
		rt.Env().Assign(name, variable.Scalar(string(optChar)), 0, variable.Global)
		rt.Env().Assign("OPTARG", variable.Scalar(optArg), 0, variable.Global)
		setOptindPlace(rt, optind, place)
		return Result{ExitStatus: 0}
	},
}

func getoptsInt(rt Runtime, name string, def int) int {
	vr, ok := rt.Env().Get(name)
	if !ok || !vr.IsSet() {
		return def
	}
	n, err := strconv.Atoi(vr.String())
	if err != nil {
		return def
	}
	return n
}

func getoptsStr(rt Runtime, name string) string {
	vr, ok := rt.Env().Get(name)
	if !ok || !vr.IsSet() {
		return ""
	}
	return vr.String()
}

func setOptindPlace(rt Runtime, optind int, place string) {
	rt.Env().Assign("OPTIND", variable.Scalar(strconv.Itoa(optind)), 0, variable.Global)
	if place == "" {
		rt.Env().Unset(optPlaceVar, variable.Global)
		return
	}
	rt.Env().Assign(optPlaceVar, variable.Scalar(place), 0, variable.Global)
}
