// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tarfs

import (
	"sync"

	"rsc.io/stacs/kernel"
)

// Ioctl commands understood by tarfs streams.
const (
	IoctlSize     = 1 // result is the file size in bytes
	IoctlTruncate = 2 // cut the file to zero length
)

// A stream is an open file with its own position.
type stream struct {
	fsys *FS
	ip   *inode

	mu  sync.Mutex
	off uint64
}

func (s *stream) Read(b []byte) kernel.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.Pread(b, s.off)
	if r.Code == kernel.OK {
		s.off += r.Data
	}
	return r
}

func (s *stream) Write(b []byte) kernel.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.Pwrite(b, s.off)
	if r.Code == kernel.OK {
		s.off += r.Data
	}
	return r
}

func (s *stream) Pread(b []byte, off uint64) kernel.Result {
	if s.ip.isDev() {
		return s.fsys.device(s.ip.dev).Read(b, off)
	}
	if s.ip.mode&modeRead == 0 {
		return kernel.Fail(kernel.PermissionDenied)
	}

	s.fsys.mu.RLock()
	defer s.fsys.mu.RUnlock()
	if off >= uint64(len(s.ip.data)) {
		return kernel.Ok(0)
	}
	return kernel.Ok(uint64(copy(b, s.ip.data[off:])))
}

func (s *stream) Pwrite(b []byte, off uint64) kernel.Result {
	if s.ip.isDev() {
		return s.fsys.device(s.ip.dev).Write(b, off)
	}
	if s.ip.mode&modeWrite == 0 {
		return kernel.Fail(kernel.PermissionDenied)
	}
	if off > maxFileSize {
		return kernel.Fail(kernel.InvalidArgument)
	}
	if off+uint64(len(b)) > maxFileSize {
		return kernel.Fail(kernel.IOError)
	}
	if len(b) == 0 {
		return kernel.Ok(0)
	}

	s.fsys.mu.Lock()
	defer s.fsys.mu.Unlock()
	ip := s.ip
	if end := int(off) + len(b); end > len(ip.data) {
		old := len(ip.data)
		for cap(ip.data) < end {
			ip.data = append(ip.data[:cap(ip.data)], 0)
		}
		ip.data = ip.data[:end]
		if uint64(old) < off {
			clear(ip.data[old:off])
		}
	}
	ip.mtime = now()
	return kernel.Ok(uint64(copy(ip.data[off:], b)))
}

func (s *stream) Ioctl(cmd uint64, arg []byte) kernel.Result {
	switch cmd {
	case IoctlSize:
		s.fsys.mu.RLock()
		defer s.fsys.mu.RUnlock()
		return kernel.Ok(uint64(len(s.ip.data)))
	case IoctlTruncate:
		if s.ip.isDev() {
			return kernel.Fail(kernel.NotSupported)
		}
		if s.ip.mode&modeWrite == 0 {
			return kernel.Fail(kernel.PermissionDenied)
		}
		s.fsys.mu.Lock()
		defer s.fsys.mu.Unlock()
		s.ip.data = nil
		s.ip.mtime = now()
		return kernel.Ok(0)
	}
	return kernel.Fail(kernel.InvalidArgument)
}

func (s *stream) Close() {}
