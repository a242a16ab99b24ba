// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package sig defines the shell's signal name/number mapping (spec §4.1,
// §6 "Trap conditions"). Names omit the "SIG" prefix internally but accept
// it (case-insensitively) when parsed from user input.
package sig

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Number is a validated, positive signal number.
type Number int

// Name identifies a signal independently of its numeric value on the host,
// so that trap tables built on one system remain meaningful when printed.
type Name string

// Well-known names used by the job-control and trap machinery (§4.4, §4.8).
const (
	INT  Name = "INT"
	QUIT Name = "QUIT"
	TERM Name = "TERM"
	HUP  Name = "HUP"
	CHLD Name = "CHLD"
	TSTP Name = "TSTP"
	TTIN Name = "TTIN"
	TTOU Name = "TTOU"
	STOP Name = "STOP"
	CONT Name = "CONT"
	KILL Name = "KILL"
	USR1 Name = "USR1"
	USR2 Name = "USR2"
	PIPE Name = "PIPE"
	ALRM Name = "ALRM"
)

// table maps every POSIX-required signal name to the host's numeric value.
// Populated from golang.org/x/sys/unix so that numbers are correct per GOOS,
// rather than hard-coded to Linux.
var table = map[Name]Number{
	"HUP": Number(unix.SIGHUP), "INT": Number(unix.SIGINT), "QUIT": Number(unix.SIGQUIT),
	"ILL": Number(unix.SIGILL), "TRAP": Number(unix.SIGTRAP), "ABRT": Number(unix.SIGABRT),
	"BUS": Number(unix.SIGBUS), "FPE": Number(unix.SIGFPE), "KILL": Number(unix.SIGKILL),
	"USR1": Number(unix.SIGUSR1), "SEGV": Number(unix.SIGSEGV), "USR2": Number(unix.SIGUSR2),
	"PIPE": Number(unix.SIGPIPE), "ALRM": Number(unix.SIGALRM), "TERM": Number(unix.SIGTERM),
	"CHLD": Number(unix.SIGCHLD), "CONT": Number(unix.SIGCONT), "STOP": Number(unix.SIGSTOP),
	"TSTP": Number(unix.SIGTSTP), "TTIN": Number(unix.SIGTTIN), "TTOU": Number(unix.SIGTTOU),
	"URG": Number(unix.SIGURG), "XCPU": Number(unix.SIGXCPU), "XFSZ": Number(unix.SIGXFSZ),
	"VTALRM": Number(unix.SIGVTALRM), "PROF": Number(unix.SIGPROF), "WINCH": Number(unix.SIGWINCH),
	"IO": Number(unix.SIGIO), "SYS": Number(unix.SIGSYS),
}

var byNumber map[Number]Name

func init() {
	byNumber = make(map[Number]Name, len(table))
	for name, num := range table {
		byNumber[num] = name
	}
}

// Parse resolves a trap condition operand (§6 "Trap conditions"): a decimal
// number, "0"/"EXIT", or a signal name with or without the "SIG" prefix,
// case-insensitively. ok is false if name refers to no known signal.
func Parse(s string) (name Name, isExit bool, ok bool) {
	if s == "0" || strings.EqualFold(s, "EXIT") {
		return "", true, true
	}
	if n, err := strconv.Atoi(s); err == nil {
		if nm, found := byNumber[Number(n)]; found {
			return nm, false, true
		}
		return "", false, false
	}
	up := strings.ToUpper(s)
	up = strings.TrimPrefix(up, "SIG")
	if _, found := table[Name(up)]; found {
		return Name(up), false, true
	}
	return "", false, false
}

// NumberOf returns the host-specific number for a signal name.
func NumberOf(n Name) (Number, bool) {
	num, ok := table[n]
	return num, ok
}

// NameOf returns the portable name for a host signal number.
func NameOf(num Number) (Name, bool) {
	n, ok := byNumber[num]
	return n, ok
}

// String renders a signal the way the job table does (§6 "Job report
// format"): "SIGINT", "SIGKILL", and so on.
func (n Name) String() string { return "SIG" + string(n) }

// IsStopper reports whether n is one of the job-control "stopper" signals
// whose internal disposition is engaged only in an interactive, monitored,
// non-subshell shell (§4.4).
func (n Name) IsStopper() bool {
	switch n {
	case TSTP, TTIN, TTOU, STOP:
		return true
	}
	return false
}

// ErrUnknownSignal is returned by callers that validate a parsed operand
// themselves and want a uniform error message.
func ErrUnknownSignal(operand string) error {
	return fmt.Errorf("%s: invalid signal specification", operand)
}
