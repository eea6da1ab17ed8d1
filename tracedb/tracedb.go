// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tracedb records kernel syscall traces in a SQLite database.
//
// A DB implements kernel.Tracer. Events are queued on a buffered
// channel and written by a single goroutine, so tracing never blocks
// the calling thread; when the queue is full the event is dropped and
// counted.
package tracedb

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"rsc.io/stacs/kernel"
)

// DefaultQueue is the number of events buffered between the kernel
// and the database writer.
const DefaultQueue = 1024

// maxBatch bounds the events written in one transaction.
const maxBatch = 64

const schema = `
	CREATE TABLE IF NOT EXISTS calls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pid INTEGER NOT NULL,
		tid INTEGER NOT NULL,
		sysno INTEGER NOT NULL,
		name TEXT NOT NULL,
		a0 INTEGER NOT NULL,
		a1 INTEGER NOT NULL,
		a2 INTEGER NOT NULL,
		a3 INTEGER NOT NULL,
		code TEXT NOT NULL,
		data INTEGER NOT NULL,
		start_ns INTEGER NOT NULL,
		dur_ns INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_calls_pid ON calls(pid, id);
	CREATE INDEX IF NOT EXISTS idx_calls_name ON calls(name);
`

// A request is a queued event, or a flush marker when flush is non-nil.
type request struct {
	ev    kernel.TraceEvent
	flush chan struct{}
}

// A DB is an open trace database.
type DB struct {
	// Log receives write errors.
	Log *log.Logger

	db      *sql.DB
	mu      sync.RWMutex // guards closed and sends on ch
	closed  bool
	ch      chan request
	done    chan struct{}
	dropped atomic.Uint64
}

// Open opens or creates the trace database at path, creating its
// directory if needed, and starts the writer.
func Open(path string) (*DB, error) {
	return OpenQueue(path, DefaultQueue)
}

// OpenQueue is like Open with a queue of n events.
func OpenQueue(path string, n int) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("tracedb: create directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("tracedb: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("tracedb: ping %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("tracedb: init schema: %w", err)
	}
	d := &DB{
		Log:  log.New(os.Stderr, "tracedb: ", 0),
		db:   db,
		ch:   make(chan request, n),
		done: make(chan struct{}),
	}
	go d.writer()
	return d, nil
}

// Trace queues ev. It never blocks.
func (d *DB) Trace(ev kernel.TraceEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return
	}
	select {
	case d.ch <- request{ev: ev}:
	default:
		d.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded.
func (d *DB) Dropped() uint64 {
	return d.dropped.Load()
}

// Flush waits until every event queued before the call is written.
func (d *DB) Flush() {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return
	}
	c := make(chan struct{})
	d.ch <- request{flush: c}
	d.mu.RUnlock()
	<-c
}

// Close writes the queued events and closes the database.
func (d *DB) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()
	<-d.done
	return d.db.Close()
}

func (d *DB) writer() {
	defer close(d.done)
	var batch []kernel.TraceEvent
	for r := range d.ch {
		var flushes []chan struct{}
		collect := func(r request) {
			if r.flush != nil {
				flushes = append(flushes, r.flush)
			} else {
				batch = append(batch, r.ev)
			}
		}
		collect(r)
	Drain:
		for len(batch) < maxBatch {
			select {
			case r, ok := <-d.ch:
				if !ok {
					break Drain
				}
				collect(r)
			default:
				break Drain
			}
		}
		if len(batch) > 0 {
			if err := d.insert(batch); err != nil {
				d.Log.Printf("write %d events: %v", len(batch), err)
			}
			batch = batch[:0]
		}
		for _, c := range flushes {
			close(c)
		}
	}
}

func (d *DB) insert(batch []kernel.TraceEvent) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.Prepare(`INSERT INTO calls
		(pid, tid, sysno, name, a0, a1, a2, a3, code, data, start_ns, dur_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, ev := range batch {
		// SQLite integers are signed; uint64 values round-trip through int64.
		_, err := stmt.Exec(
			int64(ev.PID), int64(ev.TID), int64(ev.Sysno), ev.Sysno.String(),
			int64(ev.Args[0]), int64(ev.Args[1]), int64(ev.Args[2]), int64(ev.Args[3]),
			ev.Result.Code.String(), int64(ev.Result.Data),
			ev.Start.UnixNano(), int64(ev.Dur),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// A Call is one recorded syscall.
type Call struct {
	ID    int64
	PID   uint64
	TID   uint64
	Sysno kernel.Sysno
	Name  string
	Args  [4]uint64
	Code  string
	Data  uint64
	Start time.Time
	Dur   time.Duration
}

// Calls returns the recorded syscalls of process pid in order.
func (d *DB) Calls(pid uint64) ([]Call, error) {
	rows, err := d.db.Query(`SELECT id, pid, tid, sysno, name, a0, a1, a2, a3, code, data, start_ns, dur_ns
		FROM calls WHERE pid = ? ORDER BY id`, int64(pid))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var calls []Call
	for rows.Next() {
		var c Call
		var p, t, nr, data, start, dur int64
		var a [4]int64
		if err := rows.Scan(&c.ID, &p, &t, &nr, &c.Name, &a[0], &a[1], &a[2], &a[3], &c.Code, &data, &start, &dur); err != nil {
			return nil, err
		}
		c.PID, c.TID, c.Sysno = uint64(p), uint64(t), kernel.Sysno(nr)
		for i := range a {
			c.Args[i] = uint64(a[i])
		}
		c.Data = uint64(data)
		c.Start = time.Unix(0, start)
		c.Dur = time.Duration(dur)
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// Counts returns the number of recorded calls per syscall name.
func (d *DB) Counts() (map[string]int, error) {
	rows, err := d.db.Query(`SELECT name, COUNT(*) FROM calls GROUP BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		counts[name] = n
	}
	return counts, rows.Err()
}
