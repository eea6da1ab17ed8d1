// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

// A ucursor writes text into a user buffer. The last byte of the
// buffer is reserved for the NUL terminator; the cursor never writes
// a data byte there and never advances past it. Once the buffer is
// full every further write is dropped.
type ucursor struct {
	buf  []byte
	off  int
	full bool
}

func newUcursor(buf []byte) *ucursor {
	return &ucursor{buf: buf, full: len(buf) <= 1}
}

func (w *ucursor) limit() int {
	return len(w.buf) - 1
}

func (w *ucursor) putc(c byte) bool {
	if w.full {
		return false
	}
	w.buf[w.off] = c
	w.off++
	if w.off >= w.limit() {
		w.full = true
	}
	return true
}

func (w *ucursor) puts(s string) bool {
	for i := 0; i < len(s); i++ {
		if !w.putc(s[i]) {
			return false
		}
	}
	return true
}

func (w *ucursor) write(b []byte) bool {
	for _, c := range b {
		if !w.putc(c) {
			return false
		}
	}
	return true
}

func (w *ucursor) pad(n int) bool {
	for ; n > 0; n-- {
		if !w.putc(' ') {
			return false
		}
	}
	return true
}

// terminate writes the NUL at the current position and returns the
// number of data bytes before it. An empty buffer gets nothing.
func (w *ucursor) terminate() int {
	if len(w.buf) == 0 {
		return 0
	}
	w.buf[w.off] = 0
	return w.off
}
