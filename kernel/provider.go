// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

// This file lists the resource providers the syscall gate consumes.
// The kernel never reaches them through globals; they are handed to New
// in a Providers bundle.

// NodeKind distinguishes files from directories.
type NodeKind int

const (
	KindFile NodeKind = iota
	KindDirectory
)

func (k NodeKind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// A Node is a filesystem node returned by lookup.
type Node interface {
	Name() string
	Kind() NodeKind
	Size() uint64

	// Open returns a new stream on the node.
	// It reports false if the node cannot be opened as a stream.
	Open() (Stream, bool)
}

// A Directory is a Node that can enumerate its immediate children.
// Listing a node requires this capability; the kind tag alone is not enough.
type Directory interface {
	Node
	Children() []Node
}

// A FileSystem resolves absolute paths to nodes.
type FileSystem interface {
	Lookup(path string) (Node, bool)
}

// A Stream is an open file. Its results are passed through the
// syscall boundary unchanged, so its codes are part of the ABI.
type Stream interface {
	Read(b []byte) Result
	Write(b []byte) Result
	Pread(b []byte, off uint64) Result
	Pwrite(b []byte, off uint64) Result
	Ioctl(cmd uint64, arg []byte) Result
	Close()
}

// RegionFlags are the access permissions of a memory region.
type RegionFlags uint8

const (
	RegionRead RegionFlags = 1 << iota
	RegionWrite

	RegionReadWrite = RegionRead | RegionWrite
)

// PageSize is the granularity of alloc_mem.
const PageSize = 4096

// An AddressSpace is the user memory of one process.
type AddressSpace interface {
	// AllocRegion maps a new region of size bytes and returns its base.
	// Size is already page aligned.
	AllocRegion(size uint64, flags RegionFlags) (uint64, error)

	// Slice returns the n bytes of user memory at addr,
	// or false if they do not lie inside a single mapped region.
	Slice(addr, n uint64) ([]byte, bool)

	// String returns the NUL-terminated string at addr.
	String(addr uint64) (string, bool)
}

// A Process is a process control block owned by the ProcessManager.
type Process interface {
	ID() uint64
	AddressSpace() AddressSpace
	CreateThread(entry, arg uint64) (Thread, error)
	Start()

	// Stop moves the process to its terminal state with the given exit code.
	Stop(code uint64)

	// Wait blocks until the process changes state and reports that change.
	Wait() Result
}

// BaseReg names a per-thread segment base register.
type BaseReg int

const (
	FSBase BaseReg = iota
	GSBase
)

// A Thread is a thread control block owned by the ProcessManager.
type Thread interface {
	ID() uint64
	Owner() Process
	Start()
	Stop()

	// Join blocks until the thread terminates.
	Join() Result

	SetBase(reg BaseReg, v uint64)

	// Park gives up the processor for good. It does not return.
	Park()
}

// A ProcessManager constructs processes from executables.
type ProcessManager interface {
	CreateProcess(path, args string) (Process, error)
}

// A Sleeper suspends the calling thread.
type Sleeper interface {
	Sleep(ms uint64)
}

// Ports is low-level port I/O.
type Ports interface {
	Outw(port, v uint16)
}

// Providers is the set of resource providers the kernel runs on.
type Providers struct {
	FS        FileSystem
	Processes ProcessManager
	Sleeper   Sleeper
	Ports     Ports
}
