// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"strconv"
	"strings"
)

// config holds the machine settings. Flags override the environment.
type config struct {
	Image   string // root image file; empty means the built-in image
	Trace   bool   // log every syscall
	TraceDB string // SQLite trace database; empty disables it
	Memory  uint64 // per-process memory limit in bytes; 0 means the default
	Save    bool   // write the root image back on exit
}

func loadConfig() config {
	return config{
		Image:   envOrDefault("STACS_IMAGE", ""),
		Trace:   envBoolOrDefault("STACS_TRACE", false),
		TraceDB: envOrDefault("STACS_TRACEDB", ""),
		Memory:  envUintOrDefault("STACS_MEMORY", 0),
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envUintOrDefault(key string, fallback uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 0, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolOrDefault(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "1" || strings.EqualFold(v, "true")
}
