// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package user is the user-side runtime: syscall wrappers that marshal
// Go values through process memory, and the programs shipped in the
// root image.
package user

import (
	"bytes"
	"fmt"

	"rsc.io/stacs/kernel"
	"rsc.io/stacs/sched"
)

// arenaSize is the size of the scratch region used to pass
// strings and buffers to the kernel.
const arenaSize = 16 << 10

// An Env is the runtime of one user thread.
// It must not be shared between threads.
type Env struct {
	t *sched.Thread

	arena uint64
	size  uint64
	off   uint64

	console uint64 // handle on /dev/console, 0 until opened
}

// NewEnv returns the runtime for t.
func NewEnv(t *sched.Thread) *Env {
	return &Env{t: t}
}

// Program adapts a user main to the scheduler. The process exit
// code is main's result.
func Program(main func(e *Env, args string) int) sched.Main {
	return func(t *sched.Thread, args string) uint64 {
		return uint64(main(NewEnv(t), args))
	}
}

// Syscall traps into the kernel with raw arguments.
func (e *Env) Syscall(nr kernel.Sysno, a0, a1, a2, a3 uint64) kernel.Result {
	return e.t.Trap(nr, a0, a1, a2, a3)
}

func result(r kernel.Result) (uint64, error) {
	if r.Code != kernel.OK {
		return 0, r.Code
	}
	return r.Data, nil
}

// scratch reserves n bytes of user memory for the current call.
func (e *Env) scratch(n uint64) (uint64, error) {
	if e.size == 0 || n > e.size-e.off {
		size := max(uint64(arenaSize), n)
		base, err := result(e.Syscall(kernel.SysAllocMem, size, 0, 0, 0))
		if err != nil {
			return 0, err
		}
		e.arena, e.size, e.off = base, size, 0
	}
	addr := e.arena + e.off
	e.off += n
	return addr, nil
}

// reset releases the scratch memory of the previous call.
func (e *Env) reset() {
	e.off = 0
}

// cstr copies s and a NUL into scratch memory.
func (e *Env) cstr(s string) (uint64, error) {
	addr, err := e.scratch(uint64(len(s)) + 1)
	if err != nil {
		return 0, err
	}
	b := append([]byte(s), 0)
	if err := e.t.Process().Space().Write(addr, b); err != nil {
		return 0, kernel.Fault
	}
	return addr, nil
}

// mem returns the user memory at addr as a Go slice.
func (e *Env) mem(addr, n uint64) []byte {
	b, _ := e.t.Process().Space().Slice(addr, n)
	return b
}

// Exit ends the process. It does not return.
func (e *Env) Exit(code uint64) {
	e.Syscall(kernel.SysExit, code, 0, 0, 0)
}

// Open opens path and returns its handle.
func (e *Env) Open(path string) (uint64, error) {
	e.reset()
	p, err := e.cstr(path)
	if err != nil {
		return 0, err
	}
	return result(e.Syscall(kernel.SysOpen, p, 0, 0, 0))
}

// Close closes handle h.
func (e *Env) Close(h uint64) {
	e.Syscall(kernel.SysClose, h, 0, 0, 0)
	if h == e.console {
		e.console = 0
	}
}

// Read reads from h at its current position.
func (e *Env) Read(h uint64, b []byte) (int, error) {
	return e.read(kernel.SysRead, h, b, 0)
}

// Pread reads from h at off.
func (e *Env) Pread(h uint64, b []byte, off uint64) (int, error) {
	return e.read(kernel.SysPread, h, b, off)
}

func (e *Env) read(nr kernel.Sysno, h uint64, b []byte, off uint64) (int, error) {
	e.reset()
	addr, err := e.scratch(uint64(len(b)))
	if err != nil {
		return 0, err
	}
	n, err := result(e.Syscall(nr, h, addr, uint64(len(b)), off))
	if err != nil {
		return 0, err
	}
	return copy(b, e.mem(addr, n)), nil
}

// Write writes b to h at its current position.
func (e *Env) Write(h uint64, b []byte) (int, error) {
	return e.write(kernel.SysWrite, h, b, 0)
}

// Pwrite writes b to h at off.
func (e *Env) Pwrite(h uint64, b []byte, off uint64) (int, error) {
	return e.write(kernel.SysPwrite, h, b, off)
}

func (e *Env) write(nr kernel.Sysno, h uint64, b []byte, off uint64) (int, error) {
	e.reset()
	addr, err := e.scratch(uint64(len(b)))
	if err != nil {
		return 0, err
	}
	copy(e.mem(addr, uint64(len(b))), b)
	n, err := result(e.Syscall(nr, h, addr, uint64(len(b)), off))
	return int(n), err
}

// Ioctl issues control command cmd on h with an optional argument buffer.
func (e *Env) Ioctl(h, cmd uint64, arg []byte) (uint64, error) {
	e.reset()
	var addr uint64
	if len(arg) > 0 {
		var err error
		addr, err = e.scratch(uint64(len(arg)))
		if err != nil {
			return 0, err
		}
		copy(e.mem(addr, uint64(len(arg))), arg)
	}
	return result(e.Syscall(kernel.SysIoctl, h, cmd, addr, uint64(len(arg))))
}

// AllocMem maps at least size bytes and returns the base address.
func (e *Env) AllocMem(size uint64) (uint64, error) {
	return result(e.Syscall(kernel.SysAllocMem, size, 0, 0, 0))
}

// StartProcess runs the executable at path with args and returns
// a handle to wait on.
func (e *Env) StartProcess(path, args string) (uint64, error) {
	e.reset()
	p, err := e.cstr(path)
	if err != nil {
		return 0, err
	}
	var a uint64
	if args != "" {
		if a, err = e.cstr(args); err != nil {
			return 0, err
		}
	}
	return result(e.Syscall(kernel.SysStartProcess, p, a, 0, 0))
}

// WaitForProcess waits for the process behind h to exit and
// returns its exit code.
func (e *Env) WaitForProcess(h uint64) (uint64, error) {
	return result(e.Syscall(kernel.SysWaitForProcess, h, 0, 0, 0))
}

// Go starts fn on a new thread of the calling process and returns
// a handle to join it.
func (e *Env) Go(fn func(e *Env, arg uint64), arg uint64) (uint64, error) {
	entry := e.t.Process().Link(func(t *sched.Thread, arg uint64) {
		fn(NewEnv(t), arg)
	})
	return result(e.Syscall(kernel.SysStartThread, entry, arg, 0, 0))
}

// Join waits for the thread behind h to stop.
func (e *Env) Join(h uint64) error {
	_, err := result(e.Syscall(kernel.SysJoinThread, h, 0, 0, 0))
	return err
}

// StopThread stops the calling thread. It does not return.
func (e *Env) StopThread() {
	e.Syscall(kernel.SysStopCurrentThread, 0, 0, 0, 0)
}

// Sleep blocks for at least ms milliseconds.
func (e *Env) Sleep(ms uint64) {
	e.Syscall(kernel.SysSleep, ms, 0, 0, 0)
}

// Poweroff turns the machine off. It does not return.
func (e *Env) Poweroff() {
	e.Syscall(kernel.SysPoweroff, 0, 0, 0, 0)
}

// SetFS sets the thread's FS base register.
func (e *Env) SetFS(v uint64) {
	e.Syscall(kernel.SysSetFS, v, 0, 0, 0)
}

// SetGS sets the thread's GS base register.
func (e *Env) SetGS(v uint64) {
	e.Syscall(kernel.SysSetGS, v, 0, 0, 0)
}

// Ls renders the directory listing of path through a buffer of size
// bytes. The listing is cut to fit the buffer.
func (e *Env) Ls(path string, size int, long bool) (string, error) {
	e.reset()
	p, err := e.cstr(path)
	if err != nil {
		return "", err
	}
	buf, err := e.scratch(uint64(size))
	if err != nil {
		return "", err
	}
	var l uint64
	if long {
		l = 1
	}
	n, err := result(e.Syscall(kernel.SysLs, p, buf, uint64(size), l))
	if err != nil {
		return "", err
	}
	out := e.mem(buf, n)
	if i := bytes.IndexByte(out, 0); i >= 0 {
		out = out[:i]
	}
	return string(out), nil
}

// Print writes s to the console.
func (e *Env) Print(s string) {
	if e.console == 0 {
		h, err := e.Open("/dev/console")
		if err != nil {
			return
		}
		e.console = h
	}
	e.Write(e.console, []byte(s))
}

// Printf formats to the console.
func (e *Env) Printf(format string, args ...any) {
	e.Print(fmt.Sprintf(format, args...))
}
