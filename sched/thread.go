// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sched

import (
	"runtime"
	"sync"

	"rsc.io/stacs/kernel"
)

// A Thread is a goroutine running on behalf of a process.
// It implements kernel.Thread.
type Thread struct {
	p    *Process
	tid  uint64
	body func(*Thread)

	mu      sync.Mutex
	c       *sync.Cond
	started bool
	stopped bool
	fs, gs  uint64
}

func (t *Thread) ID() uint64            { return t.tid }
func (t *Thread) Owner() kernel.Process { return t.p }

// Process returns the process t belongs to.
func (t *Thread) Process() *Process { return t.p }

// Start runs the thread. Starting a thread twice has no effect.
func (t *Thread) Start() {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()
	go t.run()
}

func (t *Thread) run() {
	defer t.Stop()
	defer func() {
		if e := recover(); e != nil {
			t.p.m.Log.Printf("[pid %d tid %d] panic: %v", t.p.pid, t.tid, e)
			t.Trap(kernel.SysExit, 255, 0, 0, 0)
		}
	}()
	t.body(t)
}

// Stop marks t stopped and wakes its joiners.
func (t *Thread) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	t.c.Broadcast()
}

// Join blocks until t stops.
func (t *Thread) Join() kernel.Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	for !t.stopped {
		t.c.Wait()
	}
	return kernel.Ok(0)
}

// SetBase sets a segment base register.
func (t *Thread) SetBase(reg kernel.BaseReg, v uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch reg {
	case kernel.FSBase:
		t.fs = v
	case kernel.GSBase:
		t.gs = v
	}
}

// Base returns the value of a segment base register.
func (t *Thread) Base(reg kernel.BaseReg) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if reg == kernel.GSBase {
		return t.gs
	}
	return t.fs
}

// Park ends the calling goroutine, which must be t's own.
// Deferred calls run, so joiners are woken.
func (t *Thread) Park() {
	runtime.Goexit()
}

// Trap enters the kernel with syscall nr. A thread whose process has
// already exited parks instead.
func (t *Thread) Trap(nr kernel.Sysno, a0, a1, a2, a3 uint64) kernel.Result {
	if t.p.State() == SZOMB {
		t.Park()
	}
	if t.p.m.gate == nil {
		panic("sched: no syscall gate attached")
	}
	return t.p.m.gate.Syscall(t, nr, a0, a1, a2, a3)
}
