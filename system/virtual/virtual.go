// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package virtual implements the deterministic in-memory [system.System]
// simulator required by spec §4.1 ("Test harness", §2 table): an in-process
// file system of inodes, a process table with signal dispositions and
// pending sets, and a process table that records spawned commands with a
// scripted outcome instead of running them. It is what drives every unit
// test in this module.
//
// The file-tree design is grounded on the disk/memory dual filesystem split
// used elsewhere in the shell ecosystem (a plain tree of named children,
// each either a directory or a leaf body), adapted here to the inode shapes
// spec §4.1 names: regular, directory, fifo, symlink, and terminal bodies.
package virtual

import (
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"mvdan.cc/posh/sig"
	"mvdan.cc/posh/system"
)

// bodyKind distinguishes the inode bodies spec §4.1 requires.
type bodyKind int

const (
	bodyRegular bodyKind = iota
	bodyDirectory
	bodyFifo
	bodySymlink
	bodyTerminal
)

type inode struct {
	kind  bodyKind
	perm  uint32
	data  []byte            // bodyRegular
	dir   map[string]*inode  // bodyDirectory
	link  string             // bodySymlink target
	fifo  *pipeBuf           // bodyFifo
}

func newDir() *inode { return &inode{kind: bodyDirectory, perm: 0o755, dir: make(map[string]*inode)} }

// pipeBuf is a minimal byte-queue standing in for a kernel pipe/fifo: writes
// append, reads drain from the front. Not safe for concurrent use without
// holding fsMu, which every accessor below already does.
type pipeBuf struct {
	buf    []byte
	closed bool
}

// openFile is a live handle onto an inode, tracking its own read/write
// cursor the way a real open file description would (spec §3 "SavedFd"
// restoration depends on descriptions being distinct per-open).
type openFile struct {
	node   *inode
	pos    int64
	flags  system.OpenFlag
	cloexec bool
}

// Virtual is the deterministic, in-memory [system.System].
type Virtual struct {
	mu sync.Mutex

	root *inode
	cwd  string

	fds    map[system.Fd]*openFile
	nextFd system.Fd

	procs       map[system.Pid]*procEntry
	nextPid     system.Pid
	selfPid     system.Pid
	selfPgid    system.Pid
	fgPgid      system.Pid
	now         time.Time

	pending     []sig.Name
	maskBlocked bool
	dispositions map[sig.Name]disposition

	uid, gid int
}

type disposition int

const (
	dispDefault disposition = iota
	dispIgnore
	dispCatch
)

// procEntry models a spawned child for WaitAny/WaitPid. Virtual never
// really forks a process; StartProcess instead records a successful,
// instant exit, which a test may replace via SetExitOutcome — enough to drive the job table and executor
// without depending on the host OS (spec §2 "Test harness").
type procEntry struct {
	pid      system.Pid
	pgid     system.Pid
	outcome  system.WaitStatus
	reported bool
	argv     []string
}

// New creates a Virtual system with just a root directory and the calling
// shell's own pid/pgid set to 1.
func New() *Virtual {
	v := &Virtual{
		root:    newDir(),
		cwd:     "/",
		fds:     make(map[system.Fd]*openFile),
		nextFd:  system.FirstSaveFd,
		procs:   make(map[system.Pid]*procEntry),
		nextPid: 2,
		selfPid: 1,
		selfPgid: 1,
		fgPgid:  1,
		now:     time.Unix(0, 0),
		dispositions: make(map[sig.Name]disposition),
	}
	v.fds[system.Stdin] = &openFile{node: &inode{kind: bodyTerminal}}
	v.fds[system.Stdout] = &openFile{node: &inode{kind: bodyTerminal}}
	v.fds[system.Stderr] = &openFile{node: &inode{kind: bodyTerminal}}
	return v
}

func clean(p string) string {
	if p == "" {
		return "/"
	}
	parts := strings.Split(p, "/")
	var out []string
	for _, part := range parts {
		switch part {
		case "", ".":
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, part)
		}
	}
	return "/" + strings.Join(out, "/")
}

func (v *Virtual) resolve(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = v.cwd + "/" + path
	}
	return clean(path)
}

func (v *Virtual) lookup(path string) (*inode, bool) {
	path = v.resolve(path)
	if path == "/" {
		return v.root, true
	}
	cur := v.root
	for _, name := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		if cur.kind != bodyDirectory {
			return nil, false
		}
		next, ok := cur.dir[name]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func (v *Virtual) mkdirAll(path string) (*inode, error) {
	path = v.resolve(path)
	cur := v.root
	if path == "/" {
		return cur, nil
	}
	for _, name := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		if cur.kind != bodyDirectory {
			return nil, system.ENOTDIR
		}
		next, ok := cur.dir[name]
		if !ok {
			next = newDir()
			cur.dir[name] = next
		}
		cur = next
	}
	return cur, nil
}

func (v *Virtual) Open(path string, flag system.OpenFlag, perm uint32) (system.Fd, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	full := v.resolve(path)
	dirPath, base := splitPath(full)
	node, ok := v.lookup(full)
	if !ok {
		if flag&system.OCreate == 0 {
			return -1, system.ENOENT
		}
		parent, err := v.mkdirAll(dirPath)
		if err != nil {
			return -1, err
		}
		node = &inode{kind: bodyRegular, perm: perm}
		parent.dir[base] = node
	} else if flag&(system.OCreate|system.OExcl) == system.OCreate|system.OExcl {
		return -1, system.EEXIST
	} else if node.kind == bodyDirectory && flag&(system.OWronly|system.ORdwr) != 0 {
		return -1, system.EISDIR
	} else if flag&system.OTrunc != 0 {
		node.data = nil
	}

	of := &openFile{node: node, flags: flag}
	if flag&system.OAppend != 0 {
		of.pos = int64(len(node.data))
	}
	fd := v.nextFd
	v.nextFd++
	v.fds[fd] = of
	return fd, nil
}

func splitPath(full string) (dir, base string) {
	i := strings.LastIndexByte(full, '/')
	if i <= 0 {
		return "/", full[i+1:]
	}
	return full[:i], full[i+1:]
}

func (v *Virtual) Close(fd system.Fd) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.fds[fd]; !ok {
		return system.EBADF
	}
	delete(v.fds, fd)
	return nil
}

func (v *Virtual) Read(fd system.Fd, p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	of, ok := v.fds[fd]
	if !ok {
		return 0, system.EBADF
	}
	if of.node.kind == bodyFifo {
		n := copy(p, of.node.fifo.buf)
		of.node.fifo.buf = of.node.fifo.buf[n:]
		return n, nil
	}
	if of.pos >= int64(len(of.node.data)) {
		return 0, nil // EOF
	}
	n := copy(p, of.node.data[of.pos:])
	of.pos += int64(n)
	return n, nil
}

func (v *Virtual) Write(fd system.Fd, p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	of, ok := v.fds[fd]
	if !ok {
		return 0, system.EBADF
	}
	if of.node.kind == bodyFifo {
		of.node.fifo.buf = append(of.node.fifo.buf, p...)
		return len(p), nil
	}
	if of.node.kind == bodyTerminal {
		return len(p), nil // terminal writes are observed via FdWriter in tests, not here
	}
	if int64(len(of.node.data)) < of.pos {
		of.node.data = append(of.node.data, make([]byte, of.pos-int64(len(of.node.data)))...)
	}
	end := of.pos + int64(len(p))
	if int64(len(of.node.data)) < end {
		grown := make([]byte, end)
		copy(grown, of.node.data)
		of.node.data = grown
	}
	copy(of.node.data[of.pos:end], p)
	of.pos = end
	return len(p), nil
}

func (v *Virtual) Dup(fd system.Fd) (system.Fd, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	of, ok := v.fds[fd]
	if !ok {
		return -1, system.EBADF
	}
	cp := *of
	cp.cloexec = false
	newFd := v.nextFd
	v.nextFd++
	v.fds[newFd] = &cp
	return newFd, nil
}

func (v *Virtual) Dup2(oldfd, newfd system.Fd) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	of, ok := v.fds[oldfd]
	if !ok {
		return system.EBADF
	}
	cp := *of
	cp.cloexec = false
	v.fds[newfd] = &cp
	return nil
}

func (v *Virtual) Pipe() (system.Fd, system.Fd, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	node := &inode{kind: bodyFifo, fifo: &pipeBuf{}}
	r := v.nextFd
	v.nextFd++
	v.fds[r] = &openFile{node: node}
	w := v.nextFd
	v.nextFd++
	v.fds[w] = &openFile{node: node}
	return r, w, nil
}

func (v *Virtual) SetCloseOnExec(fd system.Fd, on bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	of, ok := v.fds[fd]
	if !ok {
		return system.EBADF
	}
	of.cloexec = on
	return nil
}

func (v *Virtual) Lseek(fd system.Fd, offset int64, whence system.Whence) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	of, ok := v.fds[fd]
	if !ok {
		return 0, system.EBADF
	}
	switch whence {
	case system.SeekSet:
		of.pos = offset
	case system.SeekCur:
		of.pos += offset
	case system.SeekEnd:
		of.pos = int64(len(of.node.data)) + offset
	}
	return of.pos, nil
}

// fdReadWriter adapts an (fd, Virtual) pair to io.Reader/io.Writer without
// requiring callers to hold v.mu themselves.
type fdReadWriter struct {
	v  *Virtual
	fd system.Fd
}

func (rw fdReadWriter) Read(p []byte) (int, error)  { return rw.v.Read(rw.fd, p) }
func (rw fdReadWriter) Write(p []byte) (int, error) { return rw.v.Write(rw.fd, p) }

func (v *Virtual) FdReader(fd system.Fd) io.Reader { return fdReadWriter{v, fd} }
func (v *Virtual) FdWriter(fd system.Fd) io.Writer { return fdReadWriter{v, fd} }

// Getcwd/Chdir

func (v *Virtual) Getcwd() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cwd, nil
}

func (v *Virtual) Chdir(path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	node, ok := v.lookup(path)
	if !ok {
		return system.ENOENT
	}
	if node.kind != bodyDirectory {
		return system.ENOTDIR
	}
	v.cwd = v.resolve(path)
	return nil
}

// IsExecutableFile reports whether path names a regular file with any
// executable permission bit set (spec §4.11 command search).
func (v *Virtual) IsExecutableFile(path string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	node, ok := v.lookup(path)
	if !ok || node.kind != bodyRegular {
		return false
	}
	return node.perm&0o111 != 0
}

func (v *Virtual) Now() time.Time { return v.now }

// SetNow lets tests pin $SECONDS-style behavior deterministically.
func (v *Virtual) SetNow(t time.Time) { v.mu.Lock(); v.now = t; v.mu.Unlock() }

// WriteFile and ReadFile are test helpers, not part of [system.System]:
// they let a test seed or inspect the virtual file tree directly (spec §2
// "Test harness... assertion helpers for stdout/stderr/file system").
func (v *Virtual) WriteFile(path string, data []byte, perm uint32) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	full := v.resolve(path)
	dir, base := splitPath(full)
	parent, err := v.mkdirAll(dir)
	if err != nil {
		return err
	}
	parent.dir[base] = &inode{kind: bodyRegular, perm: perm, data: append([]byte(nil), data...)}
	return nil
}

func (v *Virtual) ReadFile(path string) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	node, ok := v.lookup(path)
	if !ok || node.kind != bodyRegular {
		return nil, system.ENOENT
	}
	return append([]byte(nil), node.data...), nil
}

// ListDir returns the sorted names of a directory's entries, for assertions.
func (v *Virtual) ListDir(path string) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	node, ok := v.lookup(path)
	if !ok || node.kind != bodyDirectory {
		return nil, system.ENOTDIR
	}
	names := make([]string, 0, len(node.dir))
	for name := range node.dir {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Process control.
//
// Virtual never really forks: StartProcess just records a procEntry and
// returns a fresh Pid. By default the recorded outcome is an immediate
// successful exit, so a test that doesn't care about a particular external
// command's result can ignore process control entirely. Tests that do care
// call SetExitOutcome with the returned Pid before waiting for it.
func (v *Virtual) StartProcess(argv0 string, argv []string, attr system.ProcessAttr) (system.Pid, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	pid := v.nextPid
	v.nextPid++
	pgid := attr.Pgid
	if attr.Setpgid {
		if pgid == 0 {
			pgid = pid
		}
	} else {
		pgid = v.selfPgid
	}
	v.procs[pid] = &procEntry{
		pid:  pid,
		pgid: pgid,
		argv: append([]string{argv0}, argv...),
		outcome: system.WaitStatus{Pid: pid, Exited: true, ExitCode: 0},
	}
	return pid, nil
}

// SetExitOutcome lets a test script the WaitStatus that waiting for pid,
// a Pid an earlier StartProcess returned, will report; an unknown pid is
// ignored. It is not part of
// [system.System]; interp's external-command tests call it directly on the
// concrete *Virtual.
func (v *Virtual) SetExitOutcome(pid system.Pid, ws system.WaitStatus) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if p, ok := v.procs[pid]; ok {
		ws.Pid = pid
		p.outcome = ws
	}
}

func (v *Virtual) WaitAny(block bool) (system.WaitStatus, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, p := range v.procs {
		if !p.reported {
			p.reported = true
			return p.outcome, nil
		}
	}
	return system.WaitStatus{}, system.ECHILD
}

func (v *Virtual) WaitPid(pid system.Pid, block bool) (system.WaitStatus, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.procs[pid]
	if !ok || p.reported {
		return system.WaitStatus{}, system.ECHILD
	}
	p.reported = true
	return p.outcome, nil
}

func (v *Virtual) Kill(pid system.Pid, s sig.Name) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.procs[pid]
	if !ok {
		return system.ESRCH
	}
	if s.IsStopper() {
		p.outcome = system.WaitStatus{Pid: pid, Stopped: true, Signal: s}
		return nil
	}
	p.outcome = system.WaitStatus{Pid: pid, Signaled: true, Signal: s}
	p.reported = false
	return nil
}

// Signal dispositions. Virtual only tracks state for assertions; it never
// actually delivers anything asynchronously. A test drives delivery itself
// by calling Raise.
func (v *Virtual) SigactionIgnore(s sig.Name) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dispositions[s] = dispIgnore
	return nil
}

func (v *Virtual) SigactionDefault(s sig.Name) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dispositions[s] = dispDefault
	return nil
}

func (v *Virtual) SigactionCatch(s sig.Name) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dispositions[s] = dispCatch
	return nil
}

func (v *Virtual) Sigprocmask(block bool, sigs []sig.Name) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.maskBlocked = block
	return nil
}

func (v *Virtual) DrainPending() []sig.Name {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.maskBlocked || len(v.pending) == 0 {
		return nil
	}
	out := v.pending
	v.pending = nil
	return out
}

// Raise simulates an external signal arriving for the shell process itself
// (e.g. a test driving SIGINT delivery). It respects the recorded
// disposition: ignored signals are dropped, caught signals queue onto the
// pending set for DrainPending, and signals with no explicit catch/ignore
// disposition are recorded as pending too, matching trap's default
// fall-through to its own default-action table.
func (v *Virtual) Raise(s sig.Name) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.dispositions[s] == dispIgnore {
		return
	}
	v.pending = append(v.pending, s)
}

// Terminal & process groups.
func (v *Virtual) Tcsetpgrp(fd system.Fd, pgid system.Pid) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fgPgid = pgid
	return nil
}

func (v *Virtual) Tcgetpgrp(fd system.Fd) (system.Pid, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fgPgid, nil
}

func (v *Virtual) IsATTY(fd system.Fd) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	of, ok := v.fds[fd]
	return ok && of.node.kind == bodyTerminal
}

func (v *Virtual) Getpgrp() system.Pid { v.mu.Lock(); defer v.mu.Unlock(); return v.selfPgid }

func (v *Virtual) Setpgid(pid system.Pid, pgid system.Pid) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if pid == 0 || pid == v.selfPid {
		if pgid == 0 {
			pgid = v.selfPid
		}
		v.selfPgid = pgid
		return nil
	}
	p, ok := v.procs[pid]
	if !ok {
		return system.ESRCH
	}
	if pgid == 0 {
		pgid = pid
	}
	p.pgid = pgid
	return nil
}

// Identity. Fixed, deterministic values; tests that care about a
// particular uid/gid construct a Virtual and set the fields through
// SetIdentity.
func (v *Virtual) Getuid() int  { return v.uid }
func (v *Virtual) Geteuid() int { return v.uid }
func (v *Virtual) Getgid() int  { return v.gid }
func (v *Virtual) Getegid() int { return v.gid }
func (v *Virtual) Getpid() system.Pid  { return v.selfPid }
func (v *Virtual) Getppid() system.Pid { return 1 }

// SetIdentity lets a test pin the uid/gid Getuid/Getgid report, e.g. to
// exercise a builtin's privilege checks.
func (v *Virtual) SetIdentity(uid, gid int) { v.mu.Lock(); v.uid, v.gid = uid, gid; v.mu.Unlock() }

var _ system.System = (*Virtual)(nil)
