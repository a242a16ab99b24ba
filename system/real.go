// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

//go:build unix

package system

import (
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"mvdan.cc/posh/sig"
)

// Real is the OS-backed implementation of [System].
type Real struct {
	mu    sync.Mutex
	files map[Fd]*os.File
	next  Fd

	sigOnce     sync.Once
	sigCh       chan os.Signal
	pendingMu   sync.Mutex
	pending     []sig.Name
	maskBlocked bool
}

// signalNumber extracts the numeric signal value regardless of whether the
// concrete type is syscall.Signal (what os/signal hands back) or
// unix.Signal (what the rest of this file uses).
func signalNumber(s os.Signal) int {
	if ss, ok := s.(syscall.Signal); ok {
		return int(ss)
	}
	if us, ok := s.(unix.Signal); ok {
		return int(us)
	}
	return -1
}

// NewReal wires fds 0/1/2 to the process's own standard streams.
func NewReal() *Real {
	r := &Real{
		files: make(map[Fd]*os.File),
		next:  FirstSaveFd,
	}
	r.files[Stdin] = os.Stdin
	r.files[Stdout] = os.Stdout
	r.files[Stderr] = os.Stderr
	return r
}

func (r *Real) alloc(f *os.File) Fd {
	r.mu.Lock()
	defer r.mu.Unlock()
	fd := r.next
	r.next++
	r.files[fd] = f
	return fd
}

func (r *Real) file(fd Fd) (*os.File, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[fd]
	return f, ok
}

func errnoOf(err error) error {
	if err == nil {
		return nil
	}
	if errno, ok := err.(unix.Errno); ok {
		switch errno {
		case unix.ENOENT:
			return ENOENT
		case unix.EEXIST:
			return EEXIST
		case unix.EACCES:
			return EACCES
		case unix.EBADF:
			return EBADF
		case unix.EINVAL:
			return EINVAL
		case unix.ENOTDIR:
			return ENOTDIR
		case unix.EISDIR:
			return EISDIR
		case unix.ENOSPC:
			return ENOSPC
		case unix.EINTR:
			return EINTR
		case unix.EAGAIN:
			return EAGAIN
		case unix.ECHILD:
			return ECHILD
		case unix.ESRCH:
			return ESRCH
		case unix.EPERM:
			return EPERM
		case unix.EPIPE:
			return EPIPE
		case unix.ENOEXEC:
			return ENOEXEC
		case unix.ENOTTY:
			return ENOTTY
		}
	}
	return err
}

func toOSFlag(flag OpenFlag) int {
	var f int
	switch {
	case flag&OWronly != 0:
		f |= os.O_WRONLY
	case flag&ORdwr != 0:
		f |= os.O_RDWR
	default:
		f |= os.O_RDONLY
	}
	if flag&OCreate != 0 {
		f |= os.O_CREATE
	}
	if flag&OTrunc != 0 {
		f |= os.O_TRUNC
	}
	if flag&OAppend != 0 {
		f |= os.O_APPEND
	}
	if flag&OExcl != 0 {
		f |= os.O_EXCL
	}
	return f
}

func (r *Real) Open(path string, flag OpenFlag, perm uint32) (Fd, error) {
	f, err := os.OpenFile(path, toOSFlag(flag), os.FileMode(perm))
	if err != nil {
		if perr, ok := err.(*os.PathError); ok {
			return -1, errnoOf(perr.Err)
		}
		return -1, err
	}
	return r.alloc(f), nil
}

func (r *Real) Close(fd Fd) error {
	f, ok := r.file(fd)
	if !ok {
		return EBADF
	}
	r.mu.Lock()
	delete(r.files, fd)
	r.mu.Unlock()
	if fd <= Stderr {
		return nil // never actually close the standard streams
	}
	return f.Close()
}

func (r *Real) Read(fd Fd, p []byte) (int, error) {
	f, ok := r.file(fd)
	if !ok {
		return 0, EBADF
	}
	return f.Read(p)
}

func (r *Real) Write(fd Fd, p []byte) (int, error) {
	f, ok := r.file(fd)
	if !ok {
		return 0, EBADF
	}
	return f.Write(p)
}

func (r *Real) Dup(fd Fd) (Fd, error) {
	f, ok := r.file(fd)
	if !ok {
		return -1, EBADF
	}
	newFd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		return -1, errnoOf(err)
	}
	nf := os.NewFile(uintptr(newFd), f.Name())
	return r.alloc(nf), nil
}

func (r *Real) Dup2(oldfd, newfd Fd) error {
	of, ok := r.file(oldfd)
	if !ok {
		return EBADF
	}
	if err := unix.Dup2(int(of.Fd()), int(newfd)); err != nil {
		return errnoOf(err)
	}
	r.mu.Lock()
	r.files[newfd] = os.NewFile(uintptr(newfd), of.Name())
	r.mu.Unlock()
	return nil
}

func (r *Real) Pipe() (Fd, Fd, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return -1, -1, err
	}
	return r.alloc(pr), r.alloc(pw), nil
}

func (r *Real) SetCloseOnExec(fd Fd, on bool) error {
	f, ok := r.file(fd)
	if !ok {
		return EBADF
	}
	if on {
		unix.CloseOnExec(int(f.Fd()))
	}
	return nil
}

func (r *Real) Lseek(fd Fd, offset int64, whence Whence) (int64, error) {
	f, ok := r.file(fd)
	if !ok {
		return 0, EBADF
	}
	return f.Seek(offset, int(whence))
}

func (r *Real) FdReader(fd Fd) io.Reader {
	f, _ := r.file(fd)
	return f
}

func (r *Real) FdWriter(fd Fd) io.Writer {
	f, _ := r.file(fd)
	return f
}

func (r *Real) StartProcess(argv0 string, argv []string, attr ProcessAttr) (Pid, error) {
	var sys unix.SysProcAttr
	if attr.Setpgid {
		sys.Setpgid = true
		if attr.Pgid > 0 {
			sys.Pgid = int(attr.Pgid)
		}
	}
	files := make([]*os.File, 3)
	for i, fd := range attr.Files {
		f, _ := r.file(fd)
		files[i] = f
	}
	proc, err := os.StartProcess(argv0, argv, &os.ProcAttr{
		Dir:   attr.Dir,
		Env:   attr.Env,
		Files: []*os.File{files[0], files[1], files[2]},
		Sys:   &sys,
	})
	if err != nil {
		return -1, err
	}
	return Pid(proc.Pid), nil
}

func (r *Real) wait(pid Pid, block bool) (WaitStatus, error) {
	var options int
	if !block {
		options |= unix.WNOHANG
	}
	options |= unix.WUNTRACED | unix.WCONTINUED
	var ws unix.WaitStatus
	got, err := unix.Wait4(int(pid), &ws, options, nil)
	if err != nil {
		return WaitStatus{}, errnoOf(err)
	}
	if got == 0 {
		return WaitStatus{}, EAGAIN
	}
	out := WaitStatus{Pid: Pid(got)}
	switch {
	case ws.Exited():
		out.Exited = true
		out.ExitCode = uint8(ws.ExitStatus())
	case ws.Signaled():
		out.Signaled = true
		out.Signal, _ = sig.NameOf(sig.Number(ws.Signal()))
		out.CoreDump = ws.CoreDump()
	case ws.Stopped():
		out.Stopped = true
		out.Signal, _ = sig.NameOf(sig.Number(ws.StopSignal()))
	case ws.Continued():
		out.Continued = true
	}
	return out, nil
}

func (r *Real) WaitAny(block bool) (WaitStatus, error) { return r.wait(-1, block) }
func (r *Real) WaitPid(pid Pid, block bool) (WaitStatus, error) { return r.wait(pid, block) }

func (r *Real) Kill(pid Pid, s sig.Name) error {
	num, ok := sig.NumberOf(s)
	if !ok {
		return EINVAL
	}
	return errnoOf(unix.Kill(int(pid), unix.Signal(num)))
}

// Go's runtime owns the thread that delivers signals, so dispositions are
// set through os/signal rather than a raw sigaction(2) call (the same
// approach the teacher takes for SIGINT/SIGQUIT in its external-command
// handler). SigactionCatch only arranges for the signal to land on
// r.pending; the trap manager drains it at a safe point (spec §4.4).
func (r *Real) SigactionIgnore(s sig.Name) error {
	num, ok := sig.NumberOf(s)
	if !ok {
		return EINVAL
	}
	signal.Ignore(unix.Signal(num))
	return nil
}

func (r *Real) SigactionDefault(s sig.Name) error {
	num, ok := sig.NumberOf(s)
	if !ok {
		return EINVAL
	}
	signal.Reset(unix.Signal(num))
	return nil
}

func (r *Real) SigactionCatch(s sig.Name) error {
	num, ok := sig.NumberOf(s)
	if !ok {
		return EINVAL
	}
	r.sigOnce.Do(r.startSigLoop)
	signal.Notify(r.sigCh, unix.Signal(num))
	return nil
}

// Sigprocmask is a best-effort approximation: pure Go cannot block signal
// delivery to a specific goroutine the way pthread_sigmask can, since the Go
// runtime's own signal-handling thread always receives first. Blocking here
// instead suppresses draining of the pending set, which is sufficient for
// run_pending's "atomically drains the pending set" requirement (§4.4)
// because only the main goroutine ever calls DrainPending.
func (r *Real) Sigprocmask(block bool, sigs []sig.Name) error {
	r.pendingMu.Lock()
	r.maskBlocked = block
	r.pendingMu.Unlock()
	return nil
}

// DrainPending atomically empties and returns the set of caught signals
// received since the last drain (spec §3 "Pending-signal set").
func (r *Real) DrainPending() []sig.Name {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	if r.maskBlocked || len(r.pending) == 0 {
		return nil
	}
	out := r.pending
	r.pending = nil
	return out
}

func (r *Real) startSigLoop() {
	r.sigCh = make(chan os.Signal, 64)
	go func() {
		for s := range r.sigCh {
			name, ok := sig.NameOf(sig.Number(signalNumber(s)))
			if !ok {
				continue
			}
			r.pendingMu.Lock()
			r.pending = append(r.pending, name)
			r.pendingMu.Unlock()
		}
	}()
}

func (r *Real) Tcsetpgrp(fd Fd, pgid Pid) error {
	f, ok := r.file(fd)
	if !ok {
		return EBADF
	}
	return errnoOf(unix.IoctlSetPointerInt(int(f.Fd()), unix.TIOCSPGRP, int(pgid)))
}

func (r *Real) Tcgetpgrp(fd Fd) (Pid, error) {
	f, ok := r.file(fd)
	if !ok {
		return -1, EBADF
	}
	pgid, err := unix.IoctlGetInt(int(f.Fd()), unix.TIOCGPGRP)
	if err != nil {
		return -1, errnoOf(err)
	}
	return Pid(pgid), nil
}

func (r *Real) IsATTY(fd Fd) bool {
	f, ok := r.file(fd)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func (r *Real) Getpgrp() Pid {
	pgid, _ := unix.Getpgid(0)
	return Pid(pgid)
}

func (r *Real) Setpgid(pid, pgid Pid) error {
	return errnoOf(unix.Setpgid(int(pid), int(pgid)))
}

func (r *Real) Getuid() int  { return unix.Getuid() }
func (r *Real) Geteuid() int { return unix.Geteuid() }
func (r *Real) Getgid() int  { return unix.Getgid() }
func (r *Real) Getegid() int { return unix.Getegid() }
func (r *Real) Getpid() Pid  { return Pid(unix.Getpid()) }
func (r *Real) Getppid() Pid { return Pid(unix.Getppid()) }

func (r *Real) Getcwd() (string, error) { return os.Getwd() }
func (r *Real) Chdir(path string) error { return os.Chdir(path) }

func (r *Real) IsExecutableFile(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return false
	}
	return fi.Mode()&0o111 != 0
}

func (r *Real) Now() time.Time { return time.Now() }

var _ System = (*Real)(nil)
