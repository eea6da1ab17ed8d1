// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tarfs

import (
	"errors"
	"io"
	"sync"

	"rsc.io/stacs/kernel"
)

// A Device backs the character device nodes bound to it by name.
// Devices ignore offsets they have no use for.
type Device interface {
	Read(b []byte, off uint64) kernel.Result
	Write(b []byte, off uint64) kernel.Result
}

// SetDevice binds the device name to d in the device switch.
func (fsys *FS) SetDevice(name string, d Device) {
	fsys.devmu.Lock()
	defer fsys.devmu.Unlock()
	fsys.devtab[name] = d
}

// device returns the device bound to name.
// Nodes naming an unknown device get errdev.
func (fsys *FS) device(name string) Device {
	fsys.devmu.RLock()
	defer fsys.devmu.RUnlock()
	if d, ok := fsys.devtab[name]; ok {
		return d
	}
	return errdev{}
}

type errdev struct{}

func (errdev) Read(b []byte, off uint64) kernel.Result  { return kernel.Fail(kernel.IOError) }
func (errdev) Write(b []byte, off uint64) kernel.Result { return kernel.Fail(kernel.IOError) }

type nulldev struct{}

func (nulldev) Read(b []byte, off uint64) kernel.Result  { return kernel.Ok(0) }
func (nulldev) Write(b []byte, off uint64) kernel.Result { return kernel.Ok(uint64(len(b))) }

// A Console connects a device node to host input and output.
type Console struct {
	mu  sync.Mutex
	In  io.Reader
	Out io.Writer
}

// Read reads from In. End of input reads as zero bytes.
func (c *Console) Read(b []byte, off uint64) kernel.Result {
	if c.In == nil {
		return kernel.Ok(0)
	}
	n, err := c.In.Read(b)
	if n == 0 && err != nil && !errors.Is(err, io.EOF) {
		return kernel.Fail(kernel.IOError)
	}
	return kernel.Ok(uint64(n))
}

// Write writes b to Out. Concurrent writers are serialized
// so that their output does not interleave within one call.
func (c *Console) Write(b []byte, off uint64) kernel.Result {
	if c.Out == nil {
		return kernel.Ok(uint64(len(b)))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.Out.Write(b)
	if err != nil {
		return kernel.Fail(kernel.IOError)
	}
	return kernel.Ok(uint64(n))
}
