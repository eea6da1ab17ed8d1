// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Stacs boots the StACSOS syscall gate on a root image and runs
// programs on it.
//
// Usage:
//
//	stacs [-trace] [-image file] [-tracedb file] [-mem bytes] [-w] [prog [args...]]
//
// With a program argument, stacs runs that program and exits with its
// exit code. Without one, it reads command lines from standard input
// and runs each with /bin/sh until end of input or poweroff.
//
// The -image flag names a root image in txtar form; the default is a
// built-in image holding the standard programs. The -w flag writes
// the image back to that file on exit.
//
// The -trace flag logs every syscall to standard error, and the
// -tracedb flag records every syscall in a SQLite database.
//
// The environment variables STACS_IMAGE, STACS_TRACE, STACS_TRACEDB
// and STACS_MEMORY supply defaults for the corresponding flags.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime/pprof"

	"golang.org/x/term"
	"rsc.io/stacs/tarfs"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: stacs [-trace] [-image file] [-tracedb file] [-mem bytes] [-w] [prog [args...]]\n")
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	log.SetPrefix("stacs: ")
	log.SetFlags(0)

	cfg := loadConfig()
	flag.StringVar(&cfg.Image, "image", cfg.Image, "boot the root image in `file`")
	flag.BoolVar(&cfg.Trace, "trace", cfg.Trace, "trace every syscall")
	flag.StringVar(&cfg.TraceDB, "tracedb", cfg.TraceDB, "record syscalls in the SQLite database `file`")
	flag.Uint64Var(&cfg.Memory, "mem", cfg.Memory, "limit each process to `bytes` of memory")
	flag.BoolVar(&cfg.Save, "w", false, "write the root image back on exit")
	cpuprofile := flag.String("cpuprofile", "", "write cpuprofile to `file`")
	flag.Usage = usage
	flag.Parse()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal(err)
		}
		defer pprof.StopCPUProfile()
	}

	if flag.NArg() > 0 {
		code := runOne(cfg, flag.Args())
		pprof.StopCPUProfile()
		os.Exit(code)
	}
	if err := interactive(cfg); err != nil {
		log.Fatal(err)
	}
}

// runOne runs a single program with the console on standard I/O
// and returns the exit status for stacs itself.
func runOne(cfg config, args []string) int {
	s, err := boot(cfg, &tarfs.Console{In: os.Stdin, Out: os.Stdout})
	if err != nil {
		log.Print(err)
		return 1
	}
	path, rest := command(args)
	code, _, err := s.run(path, rest)
	if err != nil {
		log.Print(err)
		code = 127
	}
	if err := s.shutdown(); err != nil {
		log.Print(err)
		return 1
	}
	return int(code)
}

// interactive runs command lines until end of input or poweroff.
// On a terminal it uses a line editor in raw mode.
func interactive(cfg config) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		s, err := boot(cfg, &tarfs.Console{Out: os.Stdout})
		if err != nil {
			return err
		}
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			if halted := s.line(sc.Text(), os.Stderr); halted {
				break
			}
		}
		if err := sc.Err(); err != nil {
			return err
		}
		return s.shutdown()
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer term.Restore(fd, oldState)

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}, "$ ")
	s, err := boot(cfg, &tarfs.Console{Out: t})
	if err != nil {
		return err
	}
	s.line("cat /etc/motd", t)
	for {
		line, err := t.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if line == "exit" {
			break
		}
		if halted := s.line(line, t); halted {
			break
		}
	}
	return s.shutdown()
}

// line runs one command line with /bin/sh. It reports whether the
// machine powered off.
func (s *system) line(text string, errw io.Writer) bool {
	if text == "" {
		return false
	}
	code, halted, err := s.run("/bin/sh", text)
	if err != nil {
		fmt.Fprintf(errw, "stacs: %v\n", err)
		return false
	}
	if code != 0 && !halted {
		fmt.Fprintf(errw, "exit %d\n", code)
	}
	return halted
}
