// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"errors"
	"fmt"
)

// A Code is the status half of a syscall result.
// The numeric values are part of the syscall ABI.
type Code uint64

const (
	OK Code = iota
	NotFound
	NotSupported
	IOError
	PermissionDenied
	InvalidArgument
	Fault
	OutOfMemory
)

var codeNames = []string{
	OK:               "ok",
	NotFound:         "not_found",
	NotSupported:     "not_supported",
	IOError:          "io_error",
	PermissionDenied: "permission_denied",
	InvalidArgument:  "invalid_argument",
	Fault:            "fault",
	OutOfMemory:      "out_of_memory",
}

func (c Code) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("Code(%d)", uint64(c))
}

// Error makes a non-OK Code usable as an error by providers.
func (c Code) Error() string {
	return c.String()
}

// codeOf converts a provider error into a result code.
// Errors that do not wrap a Code are reported as IOError.
func codeOf(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) && c != OK {
		return c
	}
	return IOError
}

// A Result is returned by value from every syscall.
// Data is meaningful only when Code is OK.
type Result struct {
	Code Code
	Data uint64
}

func (r Result) String() string {
	if r.Code != OK {
		return r.Code.String()
	}
	return fmt.Sprintf("ok %d", r.Data)
}

// Ok returns a successful result carrying data.
func Ok(data uint64) Result {
	return Result{Code: OK, Data: data}
}

// Fail returns a failed result with zero data.
func Fail(c Code) Result {
	return Result{Code: c}
}
