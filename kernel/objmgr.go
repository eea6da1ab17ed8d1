// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import "sync"

// An ObjectManager owns the handle tables of all processes.
// Each process has its own table and its own handle numbering;
// no lookup ever crosses from one table into another.
type ObjectManager struct {
	mu     sync.Mutex
	tables map[uint64]*handleTable
}

type handleTable struct {
	mu      sync.Mutex
	next    Handle
	objects map[Handle]Object
	dead    bool // owner exited; no handle is ever installed again
}

// NewObjectManager returns an empty object manager.
func NewObjectManager() *ObjectManager {
	return &ObjectManager{tables: make(map[uint64]*handleTable)}
}

func (m *ObjectManager) table(owner Process, create bool) *handleTable {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.tables[owner.ID()]
	if t == nil && create {
		t = &handleTable{objects: make(map[Handle]Object)}
		m.tables[owner.ID()] = t
	}
	return t
}

// install assigns the next handle of owner's table to o and stores it.
// Handles start at 1 and are never reused within a table.
// If owner has already exited the object is torn down at once and
// install reports false.
func (m *ObjectManager) install(owner Process, o *object, obj Object) (Object, bool) {
	t := m.table(owner, true)
	t.mu.Lock()
	o.refs.Store(1)
	if t.dead {
		t.mu.Unlock()
		obj.Release()
		return nil, false
	}
	t.next++
	o.h = t.next
	t.objects[o.h] = obj
	t.mu.Unlock()
	return obj, true
}

// CreateFileObject wraps an open stream. The stream is closed when the
// object is freed and no operation is using it, or at once if owner
// has exited, in which case CreateFileObject reports false.
func (m *ObjectManager) CreateFileObject(owner Process, s Stream) (Object, bool) {
	o := &fileObject{s: s}
	o.teardown = s.Close
	return m.install(owner, &o.object, o)
}

// CreateProcessObject wraps a process so owner can wait on it.
// It reports false if owner has exited.
func (m *ObjectManager) CreateProcessObject(owner Process, p Process) (Object, bool) {
	o := &processObject{p: p}
	return m.install(owner, &o.object, o)
}

// CreateThreadObject wraps a thread so owner can join it.
// It reports false if owner has exited.
func (m *ObjectManager) CreateThreadObject(owner Process, t Thread) (Object, bool) {
	o := &threadObject{t: t}
	return m.install(owner, &o.object, o)
}

// Get returns the object for h in owner's table. The object is pinned
// until the caller calls Release, so a concurrent Free cannot tear it
// down underneath an operation in flight.
func (m *ObjectManager) Get(owner Process, h Handle) (Object, bool) {
	t := m.table(owner, false)
	if t == nil {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	obj, ok := t.objects[h]
	if !ok {
		return nil, false
	}
	obj.acquire()
	return obj, true
}

// Free removes h from owner's table and drops the table's reference.
// It reports whether h was present.
func (m *ObjectManager) Free(owner Process, h Handle) bool {
	t := m.table(owner, false)
	if t == nil {
		return false
	}
	t.mu.Lock()
	obj, ok := t.objects[h]
	delete(t.objects, h)
	t.mu.Unlock()

	if ok {
		obj.Release()
	}
	return ok
}

// FreeAll closes every handle owned by owner and marks its table
// dead, so a syscall of another of owner's threads still in flight
// cannot install a new handle afterwards. It is called on process
// teardown.
func (m *ObjectManager) FreeAll(owner Process) {
	t := m.table(owner, true)

	t.mu.Lock()
	t.dead = true
	objs := make([]Object, 0, len(t.objects))
	for h, obj := range t.objects {
		objs = append(objs, obj)
		delete(t.objects, h)
	}
	t.mu.Unlock()

	for _, obj := range objs {
		obj.Release()
	}
}

// Len returns the number of handles owner holds.
func (m *ObjectManager) Len(owner Process) int {
	t := m.table(owner, false)
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.objects)
}
