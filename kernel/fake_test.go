// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"bytes"
	"errors"
	"io"
	"log"
	"path"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

// Test doubles for the resource providers.

type fakeFile struct {
	name     string
	data     []byte
	readonly bool
	closed   int
	mu       sync.Mutex
}

func (f *fakeFile) Name() string   { return f.name }
func (f *fakeFile) Kind() NodeKind { return KindFile }
func (f *fakeFile) Size() uint64   { return uint64(len(f.data)) }
func (f *fakeFile) Open() (Stream, bool) {
	return &fakeStream{f: f}, true
}

// fakeSized is a file whose size is reported without content.
type fakeSized struct {
	name string
	size uint64
}

func (f *fakeSized) Name() string         { return f.name }
func (f *fakeSized) Kind() NodeKind       { return KindFile }
func (f *fakeSized) Size() uint64         { return f.size }
func (f *fakeSized) Open() (Stream, bool) { return nil, false }

type fakeDir struct {
	name     string
	children []Node
}

func (d *fakeDir) Name() string         { return d.name }
func (d *fakeDir) Kind() NodeKind       { return KindDirectory }
func (d *fakeDir) Size() uint64         { return 0 }
func (d *fakeDir) Open() (Stream, bool) { return nil, false }
func (d *fakeDir) Children() []Node     { return d.children }

// fakeDirKind claims to be a directory but cannot list children.
type fakeDirKind struct{ fakeSized }

func (d *fakeDirKind) Kind() NodeKind { return KindDirectory }

type fakeFS map[string]Node

func (fs fakeFS) Lookup(p string) (Node, bool) {
	n, ok := fs[path.Clean(p)]
	return n, ok
}

// gatedFS holds every Lookup until gate is closed, after signaling
// entered.
type gatedFS struct {
	fakeFS
	entered chan struct{}
	gate    chan struct{}
}

func (fs *gatedFS) Lookup(p string) (Node, bool) {
	fs.entered <- struct{}{}
	<-fs.gate
	return fs.fakeFS.Lookup(p)
}

type fakeStream struct {
	f   *fakeFile
	off uint64
}

func (s *fakeStream) Read(b []byte) Result {
	r := s.Pread(b, s.off)
	s.off += r.Data
	return r
}

func (s *fakeStream) Write(b []byte) Result {
	r := s.Pwrite(b, s.off)
	s.off += r.Data
	return r
}

func (s *fakeStream) Pread(b []byte, off uint64) Result {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if off >= uint64(len(s.f.data)) {
		return Ok(0)
	}
	return Ok(uint64(copy(b, s.f.data[off:])))
}

func (s *fakeStream) Pwrite(b []byte, off uint64) Result {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if s.f.readonly {
		return Fail(PermissionDenied)
	}
	if end := off + uint64(len(b)); end > uint64(len(s.f.data)) {
		s.f.data = append(s.f.data, make([]byte, end-uint64(len(s.f.data)))...)
	}
	return Ok(uint64(copy(s.f.data[off:], b)))
}

func (s *fakeStream) Ioctl(cmd uint64, arg []byte) Result {
	switch cmd {
	case 1:
		return Ok(s.f.Size())
	case 99:
		panic("ioctl exploded")
	}
	return Fail(InvalidArgument)
}

func (s *fakeStream) Close() {
	s.f.mu.Lock()
	s.f.closed++
	s.f.mu.Unlock()
}

const fakeBase = 0x10000

type fakeSpace struct {
	mem     []byte
	regions int
}

func newFakeSpace() *fakeSpace {
	return &fakeSpace{mem: make([]byte, 1<<20)}
}

func (s *fakeSpace) AllocRegion(size uint64, flags RegionFlags) (uint64, error) {
	if size > 1<<30 {
		return 0, OutOfMemory
	}
	s.regions++
	return fakeBase + uint64(s.regions)*size, nil
}

func (s *fakeSpace) Slice(addr, n uint64) ([]byte, bool) {
	if addr < fakeBase || addr-fakeBase > uint64(len(s.mem)) || n > uint64(len(s.mem))-(addr-fakeBase) {
		return nil, false
	}
	off := addr - fakeBase
	return s.mem[off : off+n], true
}

func (s *fakeSpace) String(addr uint64) (string, bool) {
	b, ok := s.Slice(addr, 0)
	if !ok {
		return "", false
	}
	off := addr - fakeBase
	b = s.mem[off:]
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return "", false
	}
	return string(b[:i]), true
}

// put copies s and a NUL into user memory at addr.
func (s *fakeSpace) put(addr uint64, str string) uint64 {
	b, _ := s.Slice(addr, uint64(len(str)+1))
	copy(b, str)
	b[len(str)] = 0
	return addr
}

type fakeProcess struct {
	id       uint64
	space    *fakeSpace
	mu       sync.Mutex
	cond     *sync.Cond
	stopped  bool
	code     uint64
	started  bool
	threads  []*fakeThread
	nothread bool
}

func newFakeProcess(id uint64) *fakeProcess {
	p := &fakeProcess{id: id, space: newFakeSpace()}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *fakeProcess) ID() uint64                 { return p.id }
func (p *fakeProcess) AddressSpace() AddressSpace { return p.space }

func (p *fakeProcess) CreateThread(entry, arg uint64) (Thread, error) {
	if p.nothread {
		return nil, errors.New("no threads today")
	}
	t := newFakeThread(p, uint64(len(p.threads)+2))
	t.entry = entry
	t.arg = arg
	p.threads = append(p.threads, t)
	return t, nil
}

func (p *fakeProcess) Start() {
	p.mu.Lock()
	p.started = true
	p.mu.Unlock()
}

func (p *fakeProcess) Stop(code uint64) {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		p.code = code
	}
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *fakeProcess) Wait() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.stopped {
		p.cond.Wait()
	}
	return Ok(p.code)
}

type fakeThread struct {
	id      uint64
	owner   *fakeProcess
	entry   uint64
	arg     uint64
	mu      sync.Mutex
	cond    *sync.Cond
	started bool
	stopped bool
	fs, gs  uint64
	parked  chan struct{}
}

func newFakeThread(p *fakeProcess, id uint64) *fakeThread {
	t := &fakeThread{id: id, owner: p, parked: make(chan struct{})}
	t.cond = sync.NewCond(&t.mu)
	return t
}

func (t *fakeThread) ID() uint64     { return t.id }
func (t *fakeThread) Owner() Process { return t.owner }
func (t *fakeThread) Start()         { t.started = true }

func (t *fakeThread) SetBase(reg BaseReg, v uint64) {
	if reg == FSBase {
		t.fs = v
	} else {
		t.gs = v
	}
}

func (t *fakeThread) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	t.cond.Broadcast()
}

func (t *fakeThread) Join() Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	for !t.stopped {
		t.cond.Wait()
	}
	return Ok(0)
}

func (t *fakeThread) Park() {
	close(t.parked)
	runtime.Goexit()
}

type fakeProcs struct {
	next  uint64
	procs []*fakeProcess
}

func (m *fakeProcs) CreateProcess(path, args string) (Process, error) {
	if !strings.HasPrefix(path, "/bin/") {
		return nil, NotFound
	}
	m.next++
	p := newFakeProcess(100 + m.next)
	m.procs = append(m.procs, p)
	return p, nil
}

type fakeMachine struct {
	mu    sync.Mutex
	slept []uint64
	outw  [][2]uint16
}

func (m *fakeMachine) Sleep(ms uint64) {
	m.mu.Lock()
	m.slept = append(m.slept, ms)
	m.mu.Unlock()
}

func (m *fakeMachine) Outw(port, v uint16) {
	m.mu.Lock()
	m.outw = append(m.outw, [2]uint16{port, v})
	m.mu.Unlock()
}

// testSystem is a kernel over test doubles with one running process.
type testSystem struct {
	k     *Kernel
	fs    fakeFS
	procs *fakeProcs
	mach  *fakeMachine
	p     *fakeProcess
	t     *fakeThread
	log   bytes.Buffer
}

func newTestSystem(tb testing.TB) *testSystem {
	tb.Helper()
	s := &testSystem{
		fs: fakeFS{
			"/": &fakeDir{name: ""},
			"/bin": &fakeDir{name: "bin", children: []Node{
				&fakeSized{name: "a", size: 10},
				&fakeSized{name: "bb", size: 200},
			}},
			"/etc/motd": &fakeFile{name: "motd", data: []byte("hello\n")},
			"/etc/ro":   &fakeFile{name: "ro", data: []byte("fixed"), readonly: true},
		},
		procs: &fakeProcs{},
		mach:  &fakeMachine{},
	}
	s.k = New(Providers{
		FS:        s.fs,
		Processes: s.procs,
		Sleeper:   s.mach,
		Ports:     s.mach,
	}, &Params{Log: newTestLogger(&s.log)})
	s.p = newFakeProcess(1)
	s.t = newFakeThread(s.p, 1)
	return s
}

func (s *testSystem) sys(nr Sysno, args ...uint64) Result {
	var a [4]uint64
	copy(a[:], args)
	return s.k.Syscall(s.t, nr, a[0], a[1], a[2], a[3])
}

// terminal runs a syscall that parks the calling thread and waits
// for the thread to give up.
func (s *testSystem) terminal(tb testing.TB, th *fakeThread, nr Sysno, args ...uint64) {
	tb.Helper()
	var a [4]uint64
	copy(a[:], args)
	done := make(chan bool)
	go func() {
		returned := false
		defer func() { done <- returned }()
		s.k.Syscall(th, nr, a[0], a[1], a[2], a[3])
		returned = true
	}()
	select {
	case returned := <-done:
		if returned {
			tb.Fatalf("%v returned to its caller", nr)
		}
	case <-time.After(5 * time.Second):
		tb.Fatalf("%v did not park the thread", nr)
	}
	select {
	case <-th.parked:
	default:
		tb.Fatalf("%v did not call Park", nr)
	}
}

func newTestLogger(w io.Writer) *log.Logger {
	return log.New(w, "", 0)
}

// must unwraps a Create*Object result whose owner is known to be live.
func must(obj Object, ok bool) Object {
	if !ok {
		panic("object created for an exited owner")
	}
	return obj
}
