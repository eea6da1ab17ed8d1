// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fixed user addresses inside the fake address space.
const (
	pathAddr = fakeBase + 0x100
	argsAddr = fakeBase + 0x200
	bufAddr  = fakeBase + 0x1000
	badAddr  = 0x10
)

func (s *testSystem) open(t *testing.T, path string) uint64 {
	t.Helper()
	res := s.sys(SysOpen, s.p.space.put(pathAddr, path))
	require.Equal(t, OK, res.Code, "open %s", path)
	return res.Data
}

func (s *testSystem) buf(n int) []byte {
	b, _ := s.p.space.Slice(bufAddr, uint64(n))
	return b
}

func TestUnknownSyscall(t *testing.T) {
	s := newTestSystem(t)
	assert.Equal(t, Fail(NotSupported), s.sys(NumSyscalls))
	assert.Equal(t, Fail(NotSupported), s.sys(Sysno(1000), 1, 2, 3, 4))
	assert.Contains(t, s.log.String(), "unsupported syscall 0x3e8")
}

func TestSysnoString(t *testing.T) {
	assert.Equal(t, "ls", SysLs.String())
	assert.Equal(t, "stop_current_thread", SysStopCurrentThread.String())
	assert.Equal(t, "Sysno(0x13)", NumSyscalls.String())
	for nr := Sysno(0); nr < NumSyscalls; nr++ {
		sys := sysent[nr]
		assert.NotEmpty(t, sys.name, "sysno %d", nr)
		assert.True(t, (sys.impl == nil) != (sys.term == nil), "%s: exactly one handler", sys.name)
	}
}

func TestUnknownHandle(t *testing.T) {
	s := newTestSystem(t)
	for _, tt := range []struct {
		nr   Sysno
		args []uint64
	}{
		{SysRead, []uint64{5, bufAddr, 4}},
		{SysWrite, []uint64{5, bufAddr, 4}},
		{SysPread, []uint64{5, bufAddr, 4, 0}},
		{SysPwrite, []uint64{5, bufAddr, 4, 0}},
		{SysIoctl, []uint64{5, 1, 0, 0}},
		{SysWaitForProcess, []uint64{5}},
		{SysJoinThread, []uint64{5}},
		// A bad buffer does not matter when the handle is unknown.
		{SysRead, []uint64{5, badAddr, 4}},
	} {
		assert.Equal(t, Fail(NotFound), s.sys(tt.nr, tt.args...), "%v%v", tt.nr, tt.args)
	}
}

func TestOpenReadWrite(t *testing.T) {
	s := newTestSystem(t)
	h := s.open(t, "/etc/motd")
	assert.Equal(t, uint64(1), h)

	assert.Equal(t, Ok(6), s.sys(SysRead, h, bufAddr, 64))
	assert.Equal(t, "hello\n", string(s.buf(6)))
	assert.Equal(t, Ok(0), s.sys(SysRead, h, bufAddr, 64))

	copy(s.buf(2), "HE")
	assert.Equal(t, Ok(2), s.sys(SysPwrite, h, bufAddr, 2, 0))
	assert.Equal(t, Ok(6), s.sys(SysPread, h, bufAddr, 64, 0))
	assert.Equal(t, "HEllo\n", string(s.buf(6)))
	assert.Equal(t, Ok(3), s.sys(SysPread, h, bufAddr, 64, 3))
	assert.Equal(t, "lo\n", string(s.buf(3)))

	copy(s.buf(3), "!!\n")
	assert.Equal(t, Ok(3), s.sys(SysWrite, h, bufAddr, 3))
	assert.Equal(t, "HEllo\n!!\n", string(s.fs["/etc/motd"].(*fakeFile).data))
}

func TestOpenErrors(t *testing.T) {
	s := newTestSystem(t)
	assert.Equal(t, Fail(NotFound), s.sys(SysOpen, s.p.space.put(pathAddr, "/nope")))
	assert.Equal(t, Fail(NotSupported), s.sys(SysOpen, s.p.space.put(pathAddr, "/bin")))
	assert.Equal(t, Fail(Fault), s.sys(SysOpen, badAddr))
	assert.Equal(t, 0, s.k.Objects().Len(s.p))
}

func TestOpenDistinctHandles(t *testing.T) {
	s := newTestSystem(t)
	h1 := s.open(t, "/etc/motd")
	h2 := s.open(t, "/etc/motd")
	assert.NotEqual(t, h1, h2)

	// Each handle has its own position.
	assert.Equal(t, Ok(6), s.sys(SysRead, h1, bufAddr, 64))
	assert.Equal(t, Ok(6), s.sys(SysRead, h2, bufAddr, 64))
}

func TestClose(t *testing.T) {
	s := newTestSystem(t)
	f := s.fs["/etc/motd"].(*fakeFile)
	h := s.open(t, "/etc/motd")

	assert.Equal(t, Ok(0), s.sys(SysClose, h))
	assert.Equal(t, 1, f.closed)
	assert.Equal(t, Fail(NotFound), s.sys(SysRead, h, bufAddr, 4))

	// Closing twice, or closing a handle that never existed, is fine.
	assert.Equal(t, Ok(0), s.sys(SysClose, h))
	assert.Equal(t, Ok(0), s.sys(SysClose, 999))
	assert.Equal(t, 1, f.closed)

	h2 := s.open(t, "/etc/motd")
	assert.NotEqual(t, h, h2, "handle reused after close")
}

func TestHandleIsolation(t *testing.T) {
	s := newTestSystem(t)
	h := s.open(t, "/etc/motd")

	other := newFakeProcess(2)
	ot := newFakeThread(other, 1)
	assert.Equal(t, Fail(NotFound), s.k.Syscall(ot, SysRead, h, bufAddr, 4, 0))
	assert.Equal(t, Ok(0), s.k.Syscall(ot, SysClose, h, 0, 0, 0))
	assert.Equal(t, Ok(6), s.sys(SysRead, h, bufAddr, 64))
}

func TestBadBuffer(t *testing.T) {
	s := newTestSystem(t)
	h := s.open(t, "/etc/motd")
	assert.Equal(t, Fail(Fault), s.sys(SysRead, h, badAddr, 4))
	assert.Equal(t, Fail(Fault), s.sys(SysWrite, h, bufAddr, 1<<40))
	assert.Equal(t, Fail(Fault), s.sys(SysPread, h, badAddr, 4, 0))
	assert.Equal(t, Fail(Fault), s.sys(SysPwrite, h, badAddr, 4, 0))
	assert.Equal(t, Fail(Fault), s.sys(SysIoctl, h, 1, badAddr, 4))
}

func TestProviderCodesPassThrough(t *testing.T) {
	s := newTestSystem(t)
	h := s.open(t, "/etc/ro")
	assert.Equal(t, Fail(PermissionDenied), s.sys(SysWrite, h, bufAddr, 1))
	assert.Equal(t, Fail(PermissionDenied), s.sys(SysPwrite, h, bufAddr, 1, 0))
	assert.Equal(t, Ok(5), s.sys(SysIoctl, h, 1, 0, 0))
	assert.Equal(t, Fail(InvalidArgument), s.sys(SysIoctl, h, 2, bufAddr, 8))
}

func TestProviderPanic(t *testing.T) {
	s := newTestSystem(t)
	h := s.open(t, "/etc/motd")
	assert.Equal(t, Fail(IOError), s.sys(SysIoctl, h, 99, 0, 0))
	assert.Contains(t, s.log.String(), "ioctl: panic: ioctl exploded")

	// The pin taken for the failed call was dropped.
	assert.Equal(t, Ok(0), s.sys(SysClose, h))
	assert.Equal(t, 1, s.fs["/etc/motd"].(*fakeFile).closed)
}

func TestWrongObjectKind(t *testing.T) {
	s := newTestSystem(t)
	ph := s.sys(SysStartProcess, s.p.space.put(pathAddr, "/bin/a"), 0).Data
	th := s.sys(SysStartThread, 0x400, 0).Data
	fh := s.open(t, "/etc/motd")

	assert.Equal(t, Fail(NotSupported), s.sys(SysRead, ph, bufAddr, 4))
	assert.Equal(t, Fail(NotSupported), s.sys(SysIoctl, th, 1, 0, 0))
	assert.Equal(t, Fail(NotSupported), s.sys(SysWaitForProcess, fh))
	assert.Equal(t, Fail(NotSupported), s.sys(SysJoinThread, ph))
	assert.Equal(t, Fail(NotSupported), s.sys(SysWaitForProcess, th))
}

func TestAllocMem(t *testing.T) {
	s := newTestSystem(t)
	assert.Equal(t, Ok(fakeBase+PageSize), s.sys(SysAllocMem, 1))
	assert.Equal(t, Ok(fakeBase+2*2*PageSize), s.sys(SysAllocMem, PageSize+1))
	assert.Equal(t, Fail(OutOfMemory), s.sys(SysAllocMem, ^uint64(0)))
	assert.Equal(t, Fail(OutOfMemory), s.sys(SysAllocMem, 1<<31))
}

func TestPageAlignUp(t *testing.T) {
	for _, tt := range []struct {
		in, out uint64
		ok      bool
	}{
		{0, 0, true},
		{1, PageSize, true},
		{PageSize, PageSize, true},
		{PageSize + 1, 2 * PageSize, true},
		{^uint64(0) - PageSize + 1, ^uint64(0) - PageSize + 1, true},
		{^uint64(0) - PageSize + 2, 0, false},
	} {
		out, ok := pageAlignUp(tt.in)
		assert.Equal(t, tt.ok, ok, "pageAlignUp(%#x)", tt.in)
		assert.Equal(t, tt.out, out, "pageAlignUp(%#x)", tt.in)
	}
}

func TestStartAndWaitProcess(t *testing.T) {
	s := newTestSystem(t)
	res := s.sys(SysStartProcess, s.p.space.put(pathAddr, "/bin/a"), s.p.space.put(argsAddr, "x y"))
	require.Equal(t, OK, res.Code)
	require.Len(t, s.procs.procs, 1)
	child := s.procs.procs[0]
	assert.True(t, child.started)

	go func() {
		time.Sleep(10 * time.Millisecond)
		child.Stop(3)
	}()
	assert.Equal(t, Ok(3), s.sys(SysWaitForProcess, res.Data))

	assert.Equal(t, Fail(NotFound), s.sys(SysStartProcess, s.p.space.put(pathAddr, "/nope"), 0))
	assert.Equal(t, Fail(Fault), s.sys(SysStartProcess, badAddr, 0))
	assert.Equal(t, Fail(Fault), s.sys(SysStartProcess, pathAddr, badAddr))
}

func TestStartAndJoinThread(t *testing.T) {
	s := newTestSystem(t)
	res := s.sys(SysStartThread, 0x400, 9)
	require.Equal(t, OK, res.Code)
	require.Len(t, s.p.threads, 1)
	th := s.p.threads[0]
	assert.True(t, th.started)
	assert.Equal(t, uint64(0x400), th.entry)
	assert.Equal(t, uint64(9), th.arg)

	go th.Stop()
	assert.Equal(t, Ok(0), s.sys(SysJoinThread, res.Data))

	s.p.nothread = true
	assert.Equal(t, Fail(IOError), s.sys(SysStartThread, 0x400, 0))
}

func TestSetBase(t *testing.T) {
	s := newTestSystem(t)
	assert.Equal(t, Ok(0), s.sys(SysSetFS, 0x7000))
	assert.Equal(t, Ok(0), s.sys(SysSetGS, 0x8000))
	assert.Equal(t, uint64(0x7000), s.t.fs)
	assert.Equal(t, uint64(0x8000), s.t.gs)
}

func TestSleep(t *testing.T) {
	s := newTestSystem(t)
	assert.Equal(t, Ok(0), s.sys(SysSleep, 25))
	assert.Equal(t, []uint64{25}, s.mach.slept)
}

func TestLsSyscall(t *testing.T) {
	s := newTestSystem(t)
	path := s.p.space.put(pathAddr, "/bin")

	res := s.sys(SysLs, path, bufAddr, 64, 0)
	require.Equal(t, Ok(5), res)
	assert.Equal(t, "a\nbb\n\x00", string(s.buf(6)))

	want := "[F] a" + strings.Repeat(" ", 11) + "10\n[F] bb" + strings.Repeat(" ", 10) + "200\n"
	res = s.sys(SysLs, path, bufAddr, 64, 1)
	require.Equal(t, Ok(uint64(len(want))), res)
	assert.Equal(t, want+"\x00", string(s.buf(len(want)+1)))

	assert.Equal(t, Ok(0), s.sys(SysLs, path, bufAddr, 0, 0))
	assert.Equal(t, Fail(NotFound), s.sys(SysLs, s.p.space.put(pathAddr, "/etc/motd"), bufAddr, 64, 0))
	assert.Equal(t, Fail(Fault), s.sys(SysLs, badAddr, bufAddr, 64, 0))
	assert.Equal(t, Fail(Fault), s.sys(SysLs, path, badAddr, 64, 0))
}

func TestExit(t *testing.T) {
	s := newTestSystem(t)
	f := s.fs["/etc/motd"].(*fakeFile)
	s.open(t, "/etc/motd")
	s.open(t, "/etc/motd")

	s.terminal(t, s.t, SysExit, 7)
	assert.Equal(t, Ok(7), s.p.Wait())
	assert.Equal(t, 0, s.k.Objects().Len(s.p))
	assert.Equal(t, 2, f.closed)
}

func TestExitDuringOpen(t *testing.T) {
	s := newTestSystem(t)
	fs := &gatedFS{fakeFS: s.fs, entered: make(chan struct{}), gate: make(chan struct{})}
	s.k = New(Providers{
		FS:        fs,
		Processes: s.procs,
		Sleeper:   s.mach,
		Ports:     s.mach,
	}, &Params{Log: newTestLogger(&s.log)})
	f := s.fs["/etc/motd"].(*fakeFile)
	path := s.p.space.put(pathAddr, "/etc/motd")

	th2 := newFakeThread(s.p, 2)
	done := make(chan Result, 1)
	go func() { done <- s.k.Syscall(th2, SysOpen, path, 0, 0, 0) }()
	<-fs.entered

	s.terminal(t, s.t, SysExit, 1)
	close(fs.gate)

	select {
	case res := <-done:
		assert.Equal(t, Fail(NotFound), res)
	case <-time.After(5 * time.Second):
		t.Fatal("open did not return")
	}
	assert.Equal(t, 0, s.k.Objects().Len(s.p))
	assert.Equal(t, 1, f.closed)
	assert.Equal(t, Ok(1), s.p.Wait())
}

func TestStartAfterExit(t *testing.T) {
	s := newTestSystem(t)
	th2 := newFakeThread(s.p, 2)
	s.terminal(t, s.t, SysExit, 0)

	res := s.k.Syscall(th2, SysStartProcess, s.p.space.put(pathAddr, "/bin/a"), 0, 0, 0)
	assert.Equal(t, Fail(NotFound), res)
	require.Len(t, s.procs.procs, 1)
	child := s.procs.procs[0]
	assert.False(t, child.started)
	assert.True(t, child.stopped)

	res = s.k.Syscall(th2, SysStartThread, 0x400, 0, 0, 0)
	assert.Equal(t, Fail(NotFound), res)
	require.Len(t, s.p.threads, 1)
	assert.False(t, s.p.threads[0].started)
	assert.Equal(t, 0, s.k.Objects().Len(s.p))
}

func TestStopCurrentThread(t *testing.T) {
	s := newTestSystem(t)
	s.terminal(t, s.t, SysStopCurrentThread)
	assert.Equal(t, Ok(0), s.t.Join())
	assert.False(t, s.p.stopped)
}

func TestPoweroff(t *testing.T) {
	s := newTestSystem(t)
	s.terminal(t, s.t, SysPoweroff)
	assert.Equal(t, [][2]uint16{{0x604, 0x2000}}, s.mach.outw)
}

type recordTracer struct {
	mu     sync.Mutex
	events []TraceEvent
}

func (r *recordTracer) Trace(ev TraceEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func TestTrace(t *testing.T) {
	s := newTestSystem(t)
	rec := &recordTracer{}
	s.k.params.Trace = true
	s.k.params.Tracer = rec

	h := s.open(t, "/etc/motd")
	s.sys(SysRead, h, bufAddr, 3)
	s.sys(SysClose, h)
	s.terminal(t, s.t, SysExit, 0)

	log := s.log.String()
	assert.Contains(t, log, `[pid 1 tid 1] CALL open("/etc/motd")`)
	assert.Contains(t, log, "[pid 1 tid 1] RET  open ok 1")
	assert.Contains(t, log, "CALL read(1, 0x11000, 3)")
	assert.Contains(t, log, "RET  read ok 3")
	assert.Contains(t, log, "CALL exit(0)")

	require.Len(t, rec.events, 4)
	assert.Equal(t, SysOpen, rec.events[0].Sysno)
	assert.Equal(t, Ok(1), rec.events[0].Result)
	assert.Equal(t, [4]uint64{1, bufAddr, 3, 0}, rec.events[1].Args)
	assert.Equal(t, SysExit, rec.events[3].Sysno)
	assert.Equal(t, uint64(1), rec.events[3].PID)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, OK, codeOf(nil))
	assert.Equal(t, OutOfMemory, codeOf(OutOfMemory))
	assert.Equal(t, InvalidArgument, codeOf(errors.Join(errors.New("size"), InvalidArgument)))
	assert.Equal(t, IOError, codeOf(errors.New("disk on fire")))
	assert.Equal(t, "permission_denied", PermissionDenied.Error())
	assert.Equal(t, "Code(42)", Code(42).String())
	assert.Equal(t, "ok 7", Ok(7).String())
	assert.Equal(t, "fault", Fail(Fault).String())
}
