// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vm implements process address spaces as a set of
// page-granular regions of host memory.
package vm

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	"rsc.io/stacs/kernel"
)

const (
	// UserBase is the lowest address handed out. Addresses below it,
	// including 0, are never mapped.
	UserBase = 0x400000

	// DefaultLimit is the default number of bytes a space may map.
	DefaultLimit = 64 << 20

	// MaxString is the longest user string String will read.
	MaxString = 4096
)

var (
	ErrMem   = errors.New("invalid memory access")
	ErrLimit = fmt.Errorf("address space limit reached: %w", kernel.OutOfMemory)
	ErrSize  = fmt.Errorf("region size not a positive page multiple: %w", kernel.InvalidArgument)
)

type region struct {
	base  uint64
	mem   []byte
	flags kernel.RegionFlags
}

func (r *region) end() uint64 { return r.base + uint64(len(r.mem)) }

// A Space is the user memory of one process.
// It implements kernel.AddressSpace.
type Space struct {
	mu      sync.RWMutex
	regions []*region // sorted by base
	next    uint64
	used    uint64
	limit   uint64
}

// NewSpace returns an empty address space that maps at most limit bytes.
// A zero limit means DefaultLimit.
func NewSpace(limit uint64) *Space {
	if limit == 0 {
		limit = DefaultLimit
	}
	return &Space{next: UserBase, limit: limit}
}

// AllocRegion maps size bytes of zeroed memory and returns the base.
// Consecutive regions are separated by an unmapped guard page, so a
// buffer can never run from one region into the next.
func (s *Space) AllocRegion(size uint64, flags kernel.RegionFlags) (uint64, error) {
	if size == 0 || size%kernel.PageSize != 0 {
		return 0, ErrSize
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if size > s.limit-s.used {
		return 0, ErrLimit
	}
	base := s.next
	s.regions = append(s.regions, &region{base: base, mem: make([]byte, size), flags: flags})
	s.next = base + size + kernel.PageSize
	s.used += size
	return base, nil
}

// find returns the region containing addr, or nil.
// Callers hold s.mu.
func (s *Space) find(addr uint64) *region {
	i := sort.Search(len(s.regions), func(i int) bool {
		return s.regions[i].end() > addr
	})
	if i < len(s.regions) && s.regions[i].base <= addr {
		return s.regions[i]
	}
	return nil
}

// Slice returns the n bytes at addr. They must lie within one
// readable region. A zero-length slice is valid at any mapped address.
func (s *Space) Slice(addr, n uint64) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := s.find(addr)
	if r == nil || r.flags&kernel.RegionRead == 0 {
		return nil, false
	}
	off := addr - r.base
	if n > uint64(len(r.mem))-off {
		return nil, false
	}
	return r.mem[off : off+n : off+n], true
}

// String returns the NUL-terminated string at addr.
// The string and its terminator must lie within one region
// and be at most MaxString bytes long.
func (s *Space) String(addr uint64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := s.find(addr)
	if r == nil || r.flags&kernel.RegionRead == 0 {
		return "", false
	}
	b := r.mem[addr-r.base:]
	if len(b) > MaxString+1 {
		b = b[:MaxString+1]
	}
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return "", false
	}
	return string(b[:i]), true
}

// Write copies b into user memory at addr.
func (s *Space) Write(addr uint64, b []byte) error {
	dst, ok := s.Slice(addr, uint64(len(b)))
	if !ok {
		return fmt.Errorf("write %d bytes at %#x: %w", len(b), addr, ErrMem)
	}
	copy(dst, b)
	return nil
}

// Used returns the number of bytes mapped.
func (s *Space) Used() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

// Release unmaps every region. Later accesses fail.
func (s *Space) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regions = nil
	s.used = 0
}
