// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"strings"

	"rsc.io/stacs/kernel"
	"rsc.io/stacs/sched"
	"rsc.io/stacs/tarfs"
	"rsc.io/stacs/tracedb"
	"rsc.io/stacs/user"
)

//go:embed root.txtar
var rootImage []byte

// A system is a booted machine.
type system struct {
	cfg   config
	fs    *tarfs.FS
	procs *sched.Manager
	mach  *sched.Machine
	k     *kernel.Kernel
	trace *tracedb.DB
}

// boot loads the root image and wires the kernel to its providers.
// Console output goes to console.
func boot(cfg config, console *tarfs.Console) (*system, error) {
	image := rootImage
	if cfg.Image != "" {
		data, err := os.ReadFile(cfg.Image)
		if err != nil {
			return nil, err
		}
		image = data
	}
	fs, err := tarfs.Parse(image)
	if err != nil {
		return nil, fmt.Errorf("root image: %v", err)
	}
	fs.SetDevice("console", console)

	s := &system{cfg: cfg, fs: fs}
	s.procs = sched.NewManager(fs)
	s.procs.Trace = cfg.Trace
	s.procs.Limit = cfg.Memory
	user.Register(s.procs)
	s.mach = sched.NewMachine()

	params := &kernel.Params{Trace: cfg.Trace}
	if cfg.TraceDB != "" {
		db, err := tracedb.Open(cfg.TraceDB)
		if err != nil {
			return nil, err
		}
		s.trace = db
		params.Tracer = db
	}
	s.k = kernel.New(kernel.Providers{
		FS:        fs,
		Processes: s.procs,
		Sleeper:   s.mach,
		Ports:     s.mach,
	}, params)
	s.procs.Attach(s.k)
	return s, nil
}

// command resolves a command line to an executable path and its
// argument string. Bare names are looked up in /bin.
func command(args []string) (path, rest string) {
	path = args[0]
	if !strings.HasPrefix(path, "/") {
		path = "/bin/" + path
	}
	return path, strings.Join(args[1:], " ")
}

// run starts path and waits until it exits or the machine powers off.
func (s *system) run(path, args string) (code uint64, halted bool, err error) {
	p, err := s.procs.Spawn(path, args)
	if err != nil {
		return 0, false, err
	}
	done := make(chan kernel.Result, 1)
	go func() { done <- p.Wait() }()
	select {
	case r := <-done:
		return r.Data, false, nil
	case <-s.mach.Halted():
		return 0, true, nil
	}
}

// shutdown flushes the trace database and, if asked, saves the
// root image.
func (s *system) shutdown() error {
	if s.trace != nil {
		if n := s.trace.Dropped(); n > 0 {
			log.Printf("trace: dropped %d events", n)
		}
		if err := s.trace.Close(); err != nil {
			return err
		}
	}
	if s.cfg.Save {
		if s.cfg.Image == "" {
			return fmt.Errorf("-w needs -image")
		}
		if err := os.WriteFile(s.cfg.Image, s.fs.Archive(), 0666); err != nil {
			return err
		}
	}
	return nil
}
