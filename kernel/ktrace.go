// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"fmt"
	"time"
)

// A TraceEvent describes one completed syscall.
type TraceEvent struct {
	PID    uint64
	TID    uint64
	Sysno  Sysno
	Args   [4]uint64
	Result Result
	Start  time.Time
	Dur    time.Duration
}

// A Tracer receives syscall events. Trace is called on the calling
// thread and should not block.
type Tracer interface {
	Trace(ev TraceEvent)
}

// desc formats the call the way the syscall table describes it:
// %d is a decimal argument, %x a hex argument, %s a user string,
// %p a user pointer.
func (c *call) desc(sys *sysentry) string {
	var b []byte
	arg := 0
	for i := 0; i < len(sys.format); i++ {
		ch := sys.format[i]
		if ch != '%' || i+1 == len(sys.format) {
			b = append(b, ch)
			continue
		}
		i++
		if arg >= len(c.args) {
			break
		}
		v := c.args[arg]
		arg++
		switch sys.format[i] {
		case 'd':
			b = fmt.Appendf(b, "%d", v)
		case 's':
			if s, ok := c.str(v); ok {
				b = fmt.Appendf(b, "%q", s)
			} else {
				b = fmt.Appendf(b, "%#x", v)
			}
		case 'p', 'x':
			b = fmt.Appendf(b, "%#x", v)
		default:
			b = append(b, '%', sys.format[i])
		}
	}
	return string(b)
}

func (c *call) traceCall(sys *sysentry) {
	if !c.k.params.Trace {
		return
	}
	c.k.log.Printf("[pid %d tid %d] CALL %s", c.pid(), c.t.ID(), c.desc(sys))
}

func (c *call) traceRet(sys *sysentry, res Result) {
	if c.k.params.Trace {
		c.k.log.Printf("[pid %d tid %d] RET  %s %v", c.pid(), c.t.ID(), sys.name, res)
	}
	if c.k.params.Tracer != nil {
		c.k.params.Tracer.Trace(TraceEvent{
			PID:    c.pid(),
			TID:    c.t.ID(),
			Sysno:  c.nr,
			Args:   c.args,
			Result: res,
			Start:  c.start,
			Dur:    time.Since(c.start),
		})
	}
}

func (c *call) pid() uint64 {
	if c.p == nil {
		return 0
	}
	return c.p.ID()
}
