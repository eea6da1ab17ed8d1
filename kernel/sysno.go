// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import "fmt"

// A Sysno is a syscall number. The numbering is the wire contract
// between user programs and the kernel and must not change.
type Sysno uint64

const (
	SysExit Sysno = iota
	SysSetFS
	SysSetGS
	SysOpen
	SysClose
	SysWrite
	SysPwrite
	SysRead
	SysPread
	SysIoctl
	SysAllocMem
	SysStartProcess
	SysWaitForProcess
	SysStartThread
	SysStopCurrentThread
	SysJoinThread
	SysSleep
	SysPoweroff
	SysLs

	NumSyscalls
)

func (nr Sysno) String() string {
	if nr < NumSyscalls {
		return sysent[nr].name
	}
	return fmt.Sprintf("Sysno(%#x)", uint64(nr))
}
