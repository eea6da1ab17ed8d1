// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"log"
	"time"
)

// Kernel is the syscall gate. It owns the object manager and
// reaches every other subsystem through its Providers.
type Kernel struct {
	params  Params
	log     *log.Logger
	fs      FileSystem
	procs   ProcessManager
	sleeper Sleeper
	ports   Ports
	objects *ObjectManager
}

// New creates a kernel on top of the given providers.
func New(prov Providers, params *Params) *Kernel {
	k := &Kernel{
		fs:      prov.FS,
		procs:   prov.Processes,
		sleeper: prov.Sleeper,
		ports:   prov.Ports,
		objects: NewObjectManager(),
	}
	if params != nil {
		k.params = *params
	}
	k.log = k.params.Log
	if k.log == nil {
		k.log = defaultLogger()
	}
	return k
}

// Objects returns the kernel's object manager.
func (k *Kernel) Objects() *ObjectManager {
	return k.objects
}

// Exit tears down p the way the exit syscall does: every handle p
// holds is closed and p moves to its terminal state.
func (k *Kernel) Exit(p Process, code uint64) {
	k.objects.FreeAll(p)
	p.Stop(code)
}

// call is one syscall in flight.
type call struct {
	k     *Kernel
	t     Thread
	p     Process
	nr    Sysno
	args  [4]uint64
	start time.Time
}

// str reads a NUL-terminated string from the caller's memory.
func (c *call) str(addr uint64) (string, bool) {
	return c.p.AddressSpace().String(addr)
}

// mem returns n bytes of the caller's memory at addr.
func (c *call) mem(addr, n uint64) ([]byte, bool) {
	return c.p.AddressSpace().Slice(addr, n)
}

// Syscall runs syscall nr for thread t with four register arguments
// and returns its result. Every syscall yields exactly one Result,
// except the terminal ones (exit, stop_current_thread, poweroff),
// which end by parking t and never return.
func (k *Kernel) Syscall(t Thread, nr Sysno, a0, a1, a2, a3 uint64) Result {
	c := &call{
		k:     k,
		t:     t,
		p:     t.Owner(),
		nr:    nr,
		args:  [4]uint64{a0, a1, a2, a3},
		start: time.Now(),
	}
	if nr >= NumSyscalls {
		k.log.Printf("[pid %d tid %d] unsupported syscall %#x", c.pid(), t.ID(), uint64(nr))
		return Fail(NotSupported)
	}
	sys := &sysent[nr]
	c.traceCall(sys)

	if sys.term != nil {
		res := k.guard(c, sys, func() Result {
			sys.term(c)
			return Ok(0)
		})
		c.traceRet(sys, res)
		t.Park()
		panic("kernel: parked thread resumed")
	}

	res := k.guard(c, sys, func() Result { return sys.impl(c) })
	c.traceRet(sys, res)
	return res
}

// guard runs fn and turns a panic in a handler or provider into
// an IOError so that no fault crosses the syscall boundary.
func (k *Kernel) guard(c *call, sys *sysentry, fn func() Result) (res Result) {
	defer func() {
		if e := recover(); e != nil {
			k.log.Printf("[pid %d tid %d] %s: panic: %v", c.pid(), c.t.ID(), sys.name, e)
			res = Fail(IOError)
		}
	}()
	return fn()
}

// withObject resolves handle h in the caller's table, runs fn on the
// pinned object, and releases it.
func (c *call) withObject(h uint64, fn func(Object) Result) Result {
	obj, ok := c.k.objects.Get(c.p, Handle(h))
	if !ok {
		return Fail(NotFound)
	}
	defer obj.Release()
	return fn(obj)
}

func sysexit(c *call) {
	c.k.Exit(c.p, c.args[0])
}

func syssetfs(c *call) Result {
	c.t.SetBase(FSBase, c.args[0])
	return Ok(0)
}

func syssetgs(c *call) Result {
	c.t.SetBase(GSBase, c.args[0])
	return Ok(0)
}

func sysopen(c *call) Result {
	path, ok := c.str(c.args[0])
	if !ok {
		return Fail(Fault)
	}
	node, ok := c.k.fs.Lookup(path)
	if !ok {
		return Fail(NotFound)
	}
	s, ok := node.Open()
	if !ok {
		return Fail(NotSupported)
	}
	obj, ok := c.k.objects.CreateFileObject(c.p, s)
	if !ok {
		return Fail(NotFound)
	}
	return Ok(uint64(obj.Handle()))
}

// sysclose always succeeds; closing an absent handle is a no-op.
func sysclose(c *call) Result {
	c.k.objects.Free(c.p, Handle(c.args[0]))
	return Ok(0)
}

func syswrite(c *call) Result {
	return c.withObject(c.args[0], func(o Object) Result {
		b, ok := c.mem(c.args[1], c.args[2])
		if !ok {
			return Fail(Fault)
		}
		return o.Write(b)
	})
}

func syspwrite(c *call) Result {
	return c.withObject(c.args[0], func(o Object) Result {
		b, ok := c.mem(c.args[1], c.args[2])
		if !ok {
			return Fail(Fault)
		}
		return o.Pwrite(b, c.args[3])
	})
}

func sysread(c *call) Result {
	return c.withObject(c.args[0], func(o Object) Result {
		b, ok := c.mem(c.args[1], c.args[2])
		if !ok {
			return Fail(Fault)
		}
		return o.Read(b)
	})
}

func syspread(c *call) Result {
	return c.withObject(c.args[0], func(o Object) Result {
		b, ok := c.mem(c.args[1], c.args[2])
		if !ok {
			return Fail(Fault)
		}
		return o.Pread(b, c.args[3])
	})
}

func sysioctl(c *call) Result {
	return c.withObject(c.args[0], func(o Object) Result {
		var arg []byte
		if c.args[3] != 0 {
			b, ok := c.mem(c.args[2], c.args[3])
			if !ok {
				return Fail(Fault)
			}
			arg = b
		}
		return o.Ioctl(c.args[1], arg)
	})
}

func pageAlignUp(n uint64) (uint64, bool) {
	if n > ^uint64(0)-(PageSize-1) {
		return 0, false
	}
	return (n + PageSize - 1) &^ (PageSize - 1), true
}

func sysallocmem(c *call) Result {
	size, ok := pageAlignUp(c.args[0])
	if !ok {
		return Fail(OutOfMemory)
	}
	base, err := c.p.AddressSpace().AllocRegion(size, RegionReadWrite)
	if err != nil {
		return Fail(codeOf(err))
	}
	return Ok(base)
}

func sysstartprocess(c *call) Result {
	path, ok := c.str(c.args[0])
	if !ok {
		return Fail(Fault)
	}
	var args string
	if c.args[1] != 0 {
		args, ok = c.str(c.args[1])
		if !ok {
			return Fail(Fault)
		}
	}
	child, err := c.k.procs.CreateProcess(path, args)
	if err != nil {
		if c.k.params.Trace {
			c.k.log.Printf("[pid %d] start_process %q: %v", c.pid(), path, err)
		}
		return Fail(NotFound)
	}
	obj, ok := c.k.objects.CreateProcessObject(c.p, child)
	if !ok {
		// The caller exited meanwhile; nobody could wait on the child.
		child.Stop(0)
		return Fail(NotFound)
	}
	child.Start()
	return Ok(uint64(obj.Handle()))
}

func syswaitforprocess(c *call) Result {
	return c.withObject(c.args[0], Object.Wait)
}

func sysstartthread(c *call) Result {
	t, err := c.p.CreateThread(c.args[0], c.args[1])
	if err != nil {
		return Fail(codeOf(err))
	}
	obj, ok := c.k.objects.CreateThreadObject(c.p, t)
	if !ok {
		return Fail(NotFound)
	}
	t.Start()
	return Ok(uint64(obj.Handle()))
}

func sysstopcurrentthread(c *call) {
	c.t.Stop()
}

func sysjointhread(c *call) Result {
	return c.withObject(c.args[0], Object.Join)
}

func syssleep(c *call) Result {
	c.k.sleeper.Sleep(c.args[0])
	return Ok(0)
}

// Writing SLP_TYPa|SLP_EN to the PM1a control block of the
// emulated chipset powers the machine off.
const (
	pm1aControlPort = 0x604
	pm1aPowerOff    = 0x2000
)

func syspoweroff(c *call) {
	c.k.ports.Outw(pm1aControlPort, pm1aPowerOff)
}

func sysls(c *call) Result {
	path, ok := c.str(c.args[0])
	if !ok {
		return Fail(Fault)
	}
	buf, ok := c.mem(c.args[1], c.args[2])
	if !ok {
		return Fail(Fault)
	}
	return List(c.k.fs, path, buf, c.args[3] != 0)
}
