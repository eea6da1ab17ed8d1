// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

var sysent [NumSyscalls]sysentry

// A sysentry describes one syscall. Exactly one of impl and term is
// set: impl handlers produce a Result for the caller, term handlers
// perform a terminal transition and the caller never resumes.
type sysentry struct {
	name   string
	format string
	impl   func(*call) Result
	term   func(*call)
}

func init() {
	sysent = [NumSyscalls]sysentry{
		SysExit:              {name: "exit", format: "exit(%d)", term: sysexit},
		SysSetFS:             {name: "set_fs", format: "set_fs(%x)", impl: syssetfs},
		SysSetGS:             {name: "set_gs", format: "set_gs(%x)", impl: syssetgs},
		SysOpen:              {name: "open", format: "open(%s)", impl: sysopen},
		SysClose:             {name: "close", format: "close(%d)", impl: sysclose},
		SysWrite:             {name: "write", format: "write(%d, %p, %d)", impl: syswrite},
		SysPwrite:            {name: "pwrite", format: "pwrite(%d, %p, %d, %d)", impl: syspwrite},
		SysRead:              {name: "read", format: "read(%d, %p, %d)", impl: sysread},
		SysPread:             {name: "pread", format: "pread(%d, %p, %d, %d)", impl: syspread},
		SysIoctl:             {name: "ioctl", format: "ioctl(%d, %x, %p, %d)", impl: sysioctl},
		SysAllocMem:          {name: "alloc_mem", format: "alloc_mem(%d)", impl: sysallocmem},
		SysStartProcess:      {name: "start_process", format: "start_process(%s, %s)", impl: sysstartprocess},
		SysWaitForProcess:    {name: "wait_for_process", format: "wait_for_process(%d)", impl: syswaitforprocess},
		SysStartThread:       {name: "start_thread", format: "start_thread(%x, %x)", impl: sysstartthread},
		SysStopCurrentThread: {name: "stop_current_thread", format: "stop_current_thread()", term: sysstopcurrentthread},
		SysJoinThread:        {name: "join_thread", format: "join_thread(%d)", impl: sysjointhread},
		SysSleep:             {name: "sleep", format: "sleep(%d)", impl: syssleep},
		SysPoweroff:          {name: "poweroff", format: "poweroff()", term: syspoweroff},
		SysLs:                {name: "ls", format: "ls(%s, %p, %d, %d)", impl: sysls},
	}
}
