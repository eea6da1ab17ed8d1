// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sched

import (
	"log"
	"math"
	"os"
	"sync"
	"time"
)

// PM1a control block of the emulated chipset.
const (
	PM1aControl = 0x604
	SlpEn       = 0x2000
)

// A Machine is the platform: a timer and a port I/O space.
// It implements kernel.Sleeper and kernel.Ports.
type Machine struct {
	Log *log.Logger

	halt chan struct{}
	once sync.Once
}

// NewMachine returns a running machine.
func NewMachine() *Machine {
	return &Machine{
		Log:  log.New(os.Stderr, "machine: ", 0),
		halt: make(chan struct{}),
	}
}

// Sleep blocks for at least ms milliseconds.
func (m *Machine) Sleep(ms uint64) {
	time.Sleep(sleepDuration(ms))
}

// sleepDuration converts ms to a Duration, saturating at the
// longest Duration instead of wrapping.
func sleepDuration(ms uint64) time.Duration {
	if ms > math.MaxInt64/uint64(time.Millisecond) {
		return math.MaxInt64
	}
	return time.Duration(ms) * time.Millisecond
}

// Outw writes v to port. Setting SLP_EN in the PM1a control block
// powers the machine off; writes to other ports are logged and dropped.
func (m *Machine) Outw(port, v uint16) {
	if port == PM1aControl && v&SlpEn != 0 {
		m.once.Do(func() { close(m.halt) })
		return
	}
	m.Log.Printf("outw %#x, %#x: no device", port, v)
}

// Halted is closed when the machine powers off.
func (m *Machine) Halted() <-chan struct{} {
	return m.halt
}
