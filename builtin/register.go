// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package builtin

// Register adds every builtin this package implements to reg, the set a
// freshly constructed Runner needs to behave as a complete shell (spec
// §4.11's "Builtin registry interface"). Callers that only need a handful
// of builtins (tests, embedding scenarios) may instead call reg.Register
// directly with a subset of the package-level *Builtin values.
func Register(reg *Registry) {
	for _, b := range []*Builtin{
		Colon,
		True,
		False,
		Exit,
		Return,
		Break,
		Continue,
		Eval,
		Set,
		Shift,
		Unset,
		Export,
		Readonly,
		Typeset,
		Declare,
		Getopts,
		Trap,
		Jobs,
		Wait,
		Kill,
		Cd,
		Pwd,
		Read,
		Command,
	} {
		reg.Register(b)
	}
}
