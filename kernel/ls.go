// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import "strconv"

const (
	lsMaxColumn = 50 // longest name that widens the size column
	lsColumnPad = 10
)

// List renders the children of the directory at path into buf.
//
// The short form is one "name\n" per child. The long form is
// "[F] name<pad>size\n" for files and "[D] name<pad>\n" for
// directories, where the name is padded to min(longest name, 50)+10
// columns. Children with empty names are skipped.
//
// buf is always NUL-terminated within its length. If the listing does
// not fit it is cut at len(buf)-1 and List still reports OK. The
// result data is the number of bytes before the terminator.
// A path that is missing or not a directory reports NotFound and
// leaves buf untouched.
func List(fs FileSystem, path string, buf []byte, long bool) Result {
	node, ok := fs.Lookup(path)
	if !ok {
		return Fail(NotFound)
	}
	dir, ok := node.(Directory)
	if !ok {
		return Fail(NotFound)
	}
	children := dir.Children()

	width := 0
	for _, child := range children {
		if n := len(child.Name()); n > width {
			width = n
		}
	}
	width = min(width, lsMaxColumn) + lsColumnPad

	w := newUcursor(buf)
	var num [20]byte
	for _, child := range children {
		name := child.Name()
		if name == "" {
			continue
		}
		if long {
			if child.Kind() == KindDirectory {
				w.puts("[D] ")
			} else {
				w.puts("[F] ")
			}
		}
		w.puts(name)
		if long {
			w.pad(width - len(name))
			if child.Kind() == KindFile {
				w.write(strconv.AppendUint(num[:0], child.Size(), 10))
			}
		}
		w.putc('\n')
		if w.full {
			break
		}
	}
	return Ok(uint64(w.terminate()))
}
