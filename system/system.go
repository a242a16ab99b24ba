// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package system is the narrow façade over the OS that spec §4.1 requires:
// every other component in this module takes a System by reference and
// never touches the kernel directly. Two implementations exist: [Real],
// backed by the actual operating system, and the deterministic in-memory
// simulator in the sibling package system/virtual, which drives the unit
// tests across this module (spec §2 "Test harness").
package system

import (
	"io"
	"time"

	"mvdan.cc/posh/sig"
)

// Fd is a file-descriptor handle. 0/1/2 are the standard streams; values
// >= 10 are reserved by the redirection engine for saves (spec §3 "Fd").
type Fd int

const (
	Stdin  Fd = 0
	Stdout Fd = 1
	Stderr Fd = 2

	// FirstSaveFd is the lowest Fd the redirection engine may use to save a
	// clobbered descriptor (spec §4.6 step 2).
	FirstSaveFd Fd = 10
)

// Errno classifies a failed system call the way POSIX errno does. Every
// fallible System operation returns one of these on failure so that callers
// can branch on cause without string-matching (spec §4.1 "Errno kind").
type Errno int

const (
	ErrNone Errno = iota
	ENOENT
	EEXIST
	EACCES
	EBADF
	EINVAL
	ENOTDIR
	EISDIR
	ENOSPC
	EINTR
	EAGAIN
	ECHILD
	ESRCH
	EPERM
	EPIPE
	ENOEXEC
	ENOTTY
)

func (e Errno) Error() string {
	switch e {
	case ENOENT:
		return "no such file or directory"
	case EEXIST:
		return "file exists"
	case EACCES:
		return "permission denied"
	case EBADF:
		return "bad file descriptor"
	case EINVAL:
		return "invalid argument"
	case ENOTDIR:
		return "not a directory"
	case EISDIR:
		return "is a directory"
	case ENOSPC:
		return "no space left on device"
	case EINTR:
		return "interrupted system call"
	case EAGAIN:
		return "resource temporarily unavailable"
	case ECHILD:
		return "no child processes"
	case ESRCH:
		return "no such process"
	case EPERM:
		return "operation not permitted"
	case EPIPE:
		return "broken pipe"
	case ENOEXEC:
		return "exec format error"
	case ENOTTY:
		return "inappropriate ioctl for device"
	default:
		return "unknown error"
	}
}

// OpenFlag mirrors the subset of O_* flags the redirection engine needs
// (spec §4.6 step 3).
type OpenFlag int

const (
	ORdonly OpenFlag = 1 << iota
	OWronly
	ORdwr
	OCreate
	OTrunc
	OAppend
	OExcl
)

// Whence selects Lseek's reference point.
type Whence int

const (
	SeekSet Whence = iota
	SeekCur
	SeekEnd
)

// Pid identifies a process known to this System. Real uses host PIDs;
// Virtual assigns small sequential ids so tests are reproducible.
type Pid int

// ProcessAttr configures a spawned external command (spec §4.8 "External").
type ProcessAttr struct {
	Dir    string
	Env    []string
	Files  [3]Fd // stdin, stdout, stderr, as seen by the child
	Pgid   Pid   // 0 starts a new group, -1 joins the caller's group
	Setpgid bool
}

// WaitStatus reports how a child process's state changed (spec §3 "Job",
// "ProcessResult").
type WaitStatus struct {
	Pid      Pid
	Exited   bool
	ExitCode uint8
	Signaled bool
	Signal   sig.Name
	CoreDump bool
	Stopped  bool
	Continued bool
}

// System is the capability set of spec §4.1. Every fallible operation
// returns an Errno-shaped error.
type System interface {
	// File I/O
	Open(path string, flag OpenFlag, perm uint32) (Fd, error)
	Close(fd Fd) error
	Read(fd Fd, p []byte) (int, error)
	Write(fd Fd, p []byte) (int, error)
	Dup(fd Fd) (Fd, error)
	Dup2(oldfd, newfd Fd) error
	Pipe() (r, w Fd, err error)
	SetCloseOnExec(fd Fd, on bool) error
	Lseek(fd Fd, offset int64, whence Whence) (int64, error)
	FdReader(fd Fd) io.Reader
	FdWriter(fd Fd) io.Writer

	// Process control
	StartProcess(argv0 string, argv []string, attr ProcessAttr) (Pid, error)
	WaitAny(block bool) (WaitStatus, error)
	WaitPid(pid Pid, block bool) (WaitStatus, error)
	Kill(pid Pid, s sig.Name) error

	// Signal dispositions
	SigactionIgnore(s sig.Name) error
	SigactionDefault(s sig.Name) error
	SigactionCatch(s sig.Name) error // delivery only sets the pending bit
	Sigprocmask(block bool, sigs []sig.Name) error
	DrainPending() []sig.Name

	// Terminal & process groups
	Tcsetpgrp(fd Fd, pgid Pid) error
	Tcgetpgrp(fd Fd) (Pid, error)
	IsATTY(fd Fd) bool
	Getpgrp() Pid
	Setpgid(pid Pid, pgid Pid) error

	// Identity
	Getuid() int
	Geteuid() int
	Getgid() int
	Getegid() int
	Getpid() Pid
	Getppid() Pid

	// Filesystem
	Getcwd() (string, error)
	Chdir(path string) error
	// IsExecutableFile reports whether path names a regular file with at
	// least one executable permission bit set (spec §4.11 command search).
	IsExecutableFile(path string) bool

	// Time
	Now() time.Time
}
