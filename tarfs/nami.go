// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tarfs

import (
	"fmt"
	"io/fs"
)

const (
	nameFind = iota
	nameCreate
)

// namei walks name from the root. With nameFind it returns the inode
// for name. With nameCreate it instead returns the directory that
// would hold the final element, creating missing parents as it goes,
// along with that element. Callers hold fsys.mu.
func (fsys *FS) namei(name string, op int) (ip *inode, elem string, err error) {
	if name == "" || name[0] != '/' {
		return nil, "", fmt.Errorf("%s: path not absolute", name)
	}
	dp := fsys.root
	for {
		e, rest := nextElem(name)
		if e == "" {
			if op == nameCreate {
				return nil, "", fmt.Errorf("%s: %w", name, fs.ErrExist)
			}
			return dp, "", nil
		}
		if !dp.isDir() {
			return nil, "", fmt.Errorf("%s: not a directory", dp.name)
		}
		if rest == "" && op == nameCreate {
			return dp, e, nil
		}
		ip := dp.dsearch(e)
		if ip == nil {
			if op != nameCreate {
				return nil, "", fmt.Errorf("%s: %w", e, fs.ErrNotExist)
			}
			ip = &inode{name: e, mode: ModeDir | 0755, mtime: now()}
			dp.children = append(dp.children, ip)
		}
		name = rest
		dp = ip
		if name == "" {
			return dp, "", nil
		}
	}
}

func nextElem(path string) (elem, rest string) {
	i := 0
	for i < len(path) && path[i] == '/' {
		i++
	}
	path = path[i:]
	if path == "" {
		return "", ""
	}
	i = 0
	for i < len(path) && path[i] != '/' {
		i++
	}
	elem = path[:i]
	for i < len(path) && path[i] == '/' {
		i++
	}
	rest = path[i:]
	return elem, rest
}
