// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"os/user"
	"strings"
)

// expandTilde implements spec §4.7's tilde expansion: only at the start of
// an unquoted word, producing HardExpansion characters. s is the literal
// text that opens the word; if it starts with '~', the leading "~name" (or
// bare "~") is resolved to a home directory and the remainder of s is
// returned as rest for the caller to expand normally. ok is false when s
// does not begin with '~', or the name does not resolve to a known user,
// in which case the literal text is left untouched.
func expandTilde(cfg *Config, s string) (expanded, rest string, ok bool) {
	if len(s) == 0 || s[0] != '~' {
		return "", s, false
	}
	name := s[1:]
	tail := ""
	if i := strings.IndexByte(name, '/'); i >= 0 {
		tail = name[i:]
		name = name[:i]
	}
	if name == "" {
		if vr, found := cfg.Env.Get("HOME"); found && vr.IsSet() {
			return vr.String() + tail, "", true
		}
		return "", s, false
	}
	u, err := user.Lookup(name)
	if err != nil {
		return "", s, false
	}
	return u.HomeDir + tail, "", true
}
