// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"log"
	"os"
)

// Params define kernel parameters.
type Params struct {
	// Trace logs every syscall and its result.
	Trace bool

	// Log receives diagnostics. The default writes to standard error.
	Log *log.Logger

	// Tracer, if set, receives every completed syscall.
	Tracer Tracer
}

func defaultLogger() *log.Logger {
	return log.New(os.Stderr, "kernel: ", 0)
}
