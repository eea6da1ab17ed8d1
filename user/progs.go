// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package user

import (
	"strconv"
	"strings"

	"rsc.io/stacs/sched"
)

// Register adds the standard programs to m.
// The root image refers to them by these names.
func Register(m *sched.Manager) {
	for name, main := range progs {
		m.Register(name, Program(main))
	}
}

var progs = map[string]func(*Env, string) int{
	"cat":      Cat,
	"echo":     Echo,
	"ls":       Ls,
	"poweroff": Poweroff,
	"sh":       Sh,
	"sleep":    Sleep,
}

// lsBufferSize is the size of the buffer ls hands to the kernel.
const lsBufferSize = 4096

// Ls lists a directory: ls [-l] <absolute-path>.
func Ls(e *Env, args string) int {
	if args == "" {
		e.Print("error: usage: ls [-l] <path>\n")
		return 1
	}
	long := false
	if strings.HasPrefix(args, "-l") {
		long = true
		args = args[min(3, len(args)):]
	}
	if !strings.HasPrefix(args, "/") {
		e.Print("error: path invalid\n")
		return 1
	}
	out, err := e.Ls(args, lsBufferSize, long)
	if err != nil {
		e.Printf("error: ls: %v\n", err)
		return 1
	}
	e.Print(out)
	return 0
}

// Cat copies files to the console.
func Cat(e *Env, args string) int {
	status := 0
	buf := make([]byte, 512)
	for _, name := range strings.Fields(args) {
		h, err := e.Open(name)
		if err != nil {
			e.Printf("error: cat: %s: %v\n", name, err)
			status = 1
			continue
		}
		for {
			n, err := e.Read(h, buf)
			if err != nil {
				e.Printf("error: cat: %s: %v\n", name, err)
				status = 1
				break
			}
			if n == 0 {
				break
			}
			e.Print(string(buf[:n]))
		}
		e.Close(h)
	}
	return status
}

// Echo prints its arguments.
func Echo(e *Env, args string) int {
	e.Print(args + "\n")
	return 0
}

// Sleep sleeps for the given number of milliseconds.
func Sleep(e *Env, args string) int {
	ms, err := strconv.ParseUint(strings.TrimSpace(args), 10, 64)
	if err != nil {
		e.Print("error: usage: sleep <ms>\n")
		return 1
	}
	e.Sleep(ms)
	return 0
}

// Poweroff turns the machine off.
func Poweroff(e *Env, args string) int {
	e.Poweroff()
	return 1
}

// Sh runs a list of commands separated by semicolons, one after
// another. A command is a program name, looked up in /bin unless it
// is an absolute path, followed by its arguments. The exit code is
// that of the last command.
func Sh(e *Env, args string) int {
	status := 0
	for _, cmd := range strings.Split(args, ";") {
		cmd = strings.TrimSpace(cmd)
		if cmd == "" {
			continue
		}
		prog, rest, _ := strings.Cut(cmd, " ")
		rest = strings.TrimSpace(rest)
		path := prog
		if !strings.HasPrefix(path, "/") {
			path = "/bin/" + prog
		}
		h, err := e.StartProcess(path, rest)
		if err != nil {
			e.Printf("error: %s: %v\n", prog, err)
			status = 127
			continue
		}
		code, err := e.WaitForProcess(h)
		e.Close(h)
		if err != nil {
			e.Printf("error: %s: wait: %v\n", prog, err)
			status = 1
			continue
		}
		status = int(code)
	}
	return status
}
