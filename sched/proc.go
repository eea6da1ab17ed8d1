// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sched runs user programs as processes whose threads are
// goroutines. It provides the process manager, timer, and port I/O
// the kernel's syscall gate is built on.
package sched

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"rsc.io/stacs/kernel"
	"rsc.io/stacs/vm"
)

// A Main is the body of a user program. It runs on the main thread
// of its process; its result is the process exit code.
type Main func(t *Thread, args string) uint64

// An Entry is the body of a thread started with start_thread.
type Entry func(t *Thread, arg uint64)

// A Gate is where threads trap into the kernel.
type Gate interface {
	Syscall(t kernel.Thread, nr kernel.Sysno, a0, a1, a2, a3 uint64) kernel.Result
}

// progMagic starts every executable in the file system.
// The rest of the first line names a registered program.
const progMagic = "#!prog "

// maxExec bounds how much of a file is read to find its program name.
const maxExec = 256

// A Manager creates processes from executables in a file system.
// It implements kernel.ProcessManager.
type Manager struct {
	Trace bool        // log process creation and exit
	Limit uint64      // bytes of memory per process; 0 means vm.DefaultLimit
	Log   *log.Logger // diagnostics; default standard error

	fs   kernel.FileSystem
	gate Gate

	mu      sync.Mutex
	progs   map[string]Main
	procs   map[uint64]*Process
	nextPID uint64
}

// NewManager returns a manager loading executables from fs.
func NewManager(fs kernel.FileSystem) *Manager {
	return &Manager{
		Log:   log.New(os.Stderr, "sched: ", 0),
		fs:    fs,
		progs: make(map[string]Main),
		procs: make(map[uint64]*Process),
	}
}

// Register makes main runnable as the program name.
func (m *Manager) Register(name string, main Main) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progs[name] = main
}

// Attach connects the manager's threads to the syscall gate.
// It must be called before any process starts.
func (m *Manager) Attach(g Gate) {
	m.gate = g
}

// CreateProcess loads the executable at path into a new idle process.
func (m *Manager) CreateProcess(path, args string) (kernel.Process, error) {
	p, err := m.create(path, args)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Spawn creates and starts a process from the host side.
func (m *Manager) Spawn(path, args string) (*Process, error) {
	p, err := m.create(path, args)
	if err != nil {
		return nil, err
	}
	p.Start()
	return p, nil
}

func (m *Manager) create(path, args string) (*Process, error) {
	name, err := m.progName(path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	main, ok := m.progs[name]
	if !ok {
		return nil, fmt.Errorf("%s: unknown program %q: %w", path, name, kernel.NotFound)
	}
	m.nextPID++
	p := &Process{
		m:     m,
		pid:   m.nextPID,
		path:  path,
		args:  args,
		main:  main,
		space: vm.NewSpace(m.Limit),
	}
	p.c = sync.NewCond(&p.mu)
	m.procs[p.pid] = p
	if m.Trace {
		m.Log.Printf("[pid %d] create %s %q", p.pid, path, args)
	}
	return p, nil
}

// progName reads the program name from the executable at path.
func (m *Manager) progName(path string) (string, error) {
	node, ok := m.fs.Lookup(path)
	if !ok {
		return "", fmt.Errorf("%s: %w", path, kernel.NotFound)
	}
	s, ok := node.Open()
	if !ok {
		return "", fmt.Errorf("%s: not a file: %w", path, kernel.NotSupported)
	}
	defer s.Close()

	buf := make([]byte, maxExec)
	r := s.Pread(buf, 0)
	if r.Code != kernel.OK {
		return "", fmt.Errorf("%s: %w", path, r.Code)
	}
	line, _, _ := bytes.Cut(buf[:r.Data], []byte("\n"))
	name, ok := strings.CutPrefix(string(line), progMagic)
	if !ok || strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%s: not executable: %w", path, kernel.NotSupported)
	}
	return strings.TrimSpace(name), nil
}

// Lookup returns the live process with the given id.
func (m *Manager) Lookup(pid uint64) (*Process, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.procs[pid]
	return p, ok
}

// Len returns the number of processes that have not exited.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.procs)
}

func (m *Manager) forget(p *Process) {
	m.mu.Lock()
	delete(m.procs, p.pid)
	m.mu.Unlock()
}

// ProcState is the lifecycle state of a process.
type ProcState int

const (
	SIDL  ProcState = iota // created, not started
	SRUN                   // running
	SZOMB                  // exited
)

var stateNames = map[ProcState]string{
	SIDL:  "idl",
	SRUN:  "run",
	SZOMB: "zomb",
}

func (st ProcState) String() string {
	if name, ok := stateNames[st]; ok {
		return name
	}
	return fmt.Sprintf("ProcState(%d)", int(st))
}

// A Process is a running program. It implements kernel.Process.
type Process struct {
	m     *Manager
	pid   uint64
	path  string
	args  string
	main  Main
	space *vm.Space

	mu      sync.Mutex
	c       *sync.Cond
	state   ProcState
	code    uint64
	nextTID uint64
	threads []*Thread
	entries []Entry
}

func (p *Process) ID() uint64                        { return p.pid }
func (p *Process) AddressSpace() kernel.AddressSpace { return p.space }

// Space returns the process memory.
func (p *Process) Space() *vm.Space { return p.space }

// Path returns the executable the process was created from.
func (p *Process) Path() string { return p.path }

// State returns the current state of p.
func (p *Process) State() ProcState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Process) setState(st ProcState) {
	p.mu.Lock()
	p.state = st
	p.mu.Unlock()
	p.c.Broadcast()
}

// WaitState waits until p reaches at least state st.
func (p *Process) WaitState(st ProcState) {
	p.mu.Lock()
	for p.state < st {
		p.c.Wait()
	}
	p.mu.Unlock()
}

// Link registers fn as a thread entry point of p and returns the
// address start_thread accepts for it.
func (p *Process) Link(fn Entry) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, fn)
	return entryBase + uint64(len(p.entries)-1)*entryAlign
}

// Entry addresses live below vm.UserBase so they never alias data.
const (
	entryBase  = 0x1000
	entryAlign = 0x10
)

func (p *Process) entry(addr uint64) (Entry, bool) {
	if addr < entryBase || (addr-entryBase)%entryAlign != 0 {
		return nil, false
	}
	i := (addr - entryBase) / entryAlign
	p.mu.Lock()
	defer p.mu.Unlock()
	if i >= uint64(len(p.entries)) {
		return nil, false
	}
	return p.entries[i], true
}

// CreateThread returns a new thread of p that will run the entry
// point linked at entry with arg.
func (p *Process) CreateThread(entry, arg uint64) (kernel.Thread, error) {
	fn, ok := p.entry(entry)
	if !ok {
		return nil, fmt.Errorf("pid %d: no entry point at %#x: %w", p.pid, entry, kernel.InvalidArgument)
	}
	if p.State() == SZOMB {
		return nil, fmt.Errorf("pid %d: process exited: %w", p.pid, kernel.NotSupported)
	}
	return p.newThread(func(t *Thread) {
		fn(t, arg)
		t.Trap(kernel.SysStopCurrentThread, 0, 0, 0, 0)
	}), nil
}

func (p *Process) newThread(body func(*Thread)) *Thread {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.newThreadLocked(body)
}

func (p *Process) newThreadLocked(body func(*Thread)) *Thread {
	p.nextTID++
	t := &Thread{p: p, tid: p.nextTID, body: body}
	t.c = sync.NewCond(&t.mu)
	p.threads = append(p.threads, t)
	return t
}

// Start runs the program's main thread.
// The process exits with main's result when main returns.
// Only the first call on a new process has any effect.
func (p *Process) Start() {
	p.mu.Lock()
	if p.state != SIDL {
		p.mu.Unlock()
		return
	}
	t := p.newThreadLocked(func(t *Thread) {
		code := p.main(t, p.args)
		t.Trap(kernel.SysExit, code, 0, 0, 0)
	})
	p.state = SRUN
	p.c.Broadcast()
	p.mu.Unlock()

	t.Start()
}

// Stop moves p to its terminal state with the given exit code
// and unmaps its memory. Only the first call has any effect.
func (p *Process) Stop(code uint64) {
	p.mu.Lock()
	if p.state == SZOMB {
		p.mu.Unlock()
		return
	}
	p.code = code
	p.mu.Unlock()

	p.setState(SZOMB)
	p.space.Release()
	p.m.forget(p)
	if p.m.Trace {
		p.m.Log.Printf("[pid %d] exit %d", p.pid, code)
	}
}

// Wait blocks until p exits and returns its exit code.
func (p *Process) Wait() kernel.Result {
	p.WaitState(SZOMB)
	p.mu.Lock()
	defer p.mu.Unlock()
	return kernel.Ok(p.code)
}
