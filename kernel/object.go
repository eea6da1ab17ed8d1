// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"fmt"
	"sync/atomic"
)

// A Handle names a kernel object within one process.
// Handle values are not comparable across processes.
type Handle uint64

// NoHandle is never a valid handle.
const NoHandle Handle = 0

// ObjectKind is the kind of resource an Object wraps.
type ObjectKind int

const (
	FileObject ObjectKind = iota
	ProcessObject
	ThreadObject
)

func (k ObjectKind) String() string {
	switch k {
	case FileObject:
		return "file"
	case ProcessObject:
		return "process"
	case ThreadObject:
		return "thread"
	}
	return fmt.Sprintf("ObjectKind(%d)", int(k))
}

// An Object is a kernel-side handle on one provider resource.
// Every kind supports the full operation set; operations that make
// no sense for a kind return NotSupported.
//
// Objects returned by ObjectManager.Get are pinned and must be
// released with Release.
type Object interface {
	Handle() Handle
	Kind() ObjectKind

	Read(b []byte) Result
	Write(b []byte) Result
	Pread(b []byte, off uint64) Result
	Pwrite(b []byte, off uint64) Result
	Ioctl(cmd uint64, arg []byte) Result
	Wait() Result
	Join() Result

	Release()
	acquire()
}

// object holds what every kind has in common: the handle and
// the reference count. The table holds one reference; each
// in-flight operation holds another. The provider resource is
// torn down when the last reference goes away.
type object struct {
	h        Handle
	refs     atomic.Int32
	teardown func()
}

func (o *object) Handle() Handle { return o.h }

func (o *object) acquire() { o.refs.Add(1) }

func (o *object) Release() {
	n := o.refs.Add(-1)
	if n < 0 {
		panic("kernel: object released too many times")
	}
	if n == 0 && o.teardown != nil {
		o.teardown()
	}
}

// unsupported supplies NotSupported for every operation.
type unsupported struct{}

func (unsupported) Read([]byte) Result           { return Fail(NotSupported) }
func (unsupported) Write([]byte) Result          { return Fail(NotSupported) }
func (unsupported) Pread([]byte, uint64) Result  { return Fail(NotSupported) }
func (unsupported) Pwrite([]byte, uint64) Result { return Fail(NotSupported) }
func (unsupported) Ioctl(uint64, []byte) Result  { return Fail(NotSupported) }
func (unsupported) Wait() Result                 { return Fail(NotSupported) }
func (unsupported) Join() Result                 { return Fail(NotSupported) }

type fileObject struct {
	object
	unsupported
	s Stream
}

func (o *fileObject) Kind() ObjectKind                    { return FileObject }
func (o *fileObject) Read(b []byte) Result                { return o.s.Read(b) }
func (o *fileObject) Write(b []byte) Result               { return o.s.Write(b) }
func (o *fileObject) Pread(b []byte, off uint64) Result   { return o.s.Pread(b, off) }
func (o *fileObject) Pwrite(b []byte, off uint64) Result  { return o.s.Pwrite(b, off) }
func (o *fileObject) Ioctl(cmd uint64, arg []byte) Result { return o.s.Ioctl(cmd, arg) }

type processObject struct {
	object
	unsupported
	p Process
}

func (o *processObject) Kind() ObjectKind { return ProcessObject }
func (o *processObject) Wait() Result     { return o.p.Wait() }

type threadObject struct {
	object
	unsupported
	t Thread
}

func (o *threadObject) Kind() ObjectKind { return ThreadObject }
func (o *threadObject) Join() Result     { return o.t.Join() }
