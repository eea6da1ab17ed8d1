// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tarfs is an in-memory file tree loaded from a txtar image.
//
// Each file in the archive is named by an absolute path followed by
// optional key=value attributes:
//
//	-- /bin/ls mode=0755 --
//	#!prog ls
//	-- /dev/console dev=console --
//	-- /tmp mode=040777 --
//
// The attributes are mode (octal, with 040000 marking a directory),
// mtime (Unix seconds), dev (a device name, making the node a
// character device), and base64=1 (the content is base64 encoded).
// Parent directories are created as needed.
package tarfs

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/tools/txtar"
	"rsc.io/stacs/kernel"
)

// An FS is a mutable file tree. It implements kernel.FileSystem.
type FS struct {
	mu   sync.RWMutex
	root *inode

	devmu  sync.RWMutex
	devtab map[string]Device
}

// New returns an empty tree holding only the root directory
// and the null device switch entry.
func New() *FS {
	return &FS{
		root:   &inode{mode: ModeDir | 0755},
		devtab: map[string]Device{"null": nulldev{}},
	}
}

// Parse builds a tree from a txtar image.
func Parse(archive []byte) (*FS, error) {
	fsys := New()
	ar := txtar.Parse(archive)
	for _, file := range ar.Files {
		f := strings.Fields(file.Name)
		if len(f) == 0 {
			return nil, fmt.Errorf("empty txtar file name")
		}
		name := f[0]
		var (
			mode    uint16
			hasMode bool
			mtime   int64
			dev     string
			b64     bool
		)
		for _, arg := range f[1:] {
			k, v, ok := strings.Cut(arg, "=")
			if !ok {
				return nil, fmt.Errorf("invalid txtar k=v: %s", arg)
			}
			if k == "dev" {
				dev = v
				continue
			}
			i, err := strconv.ParseInt(v, 0, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid txtar k=v: %s", arg)
			}
			switch k {
			default:
				return nil, fmt.Errorf("invalid txtar k=v: %s", arg)
			case "mode":
				mode = uint16(i)
				hasMode = true
			case "mtime":
				mtime = i
			case "base64":
				b64 = i != 0
			}
		}

		var err error
		switch {
		case dev != "":
			if !hasMode {
				mode = 0666
			}
			err = fsys.mknod(name, dev, mode, mtime)
		case mode&ModeType == ModeDir:
			err = fsys.mkdir(name, mode, mtime)
		default:
			if !hasMode {
				mode = 0644
			}
			data := file.Data
			if b64 {
				dec, derr := base64.StdEncoding.DecodeString(string(data))
				if derr != nil {
					return nil, fmt.Errorf("%s: decoding: %v", name, derr)
				}
				data = dec
			}
			err = fsys.writeFile(name, data, mode&ModePerm, mtime)
		}
		if err != nil {
			return nil, err
		}
	}
	return fsys, nil
}

// Mkdir creates the directory name and any missing parents.
// An existing directory only has its mode updated.
func (fsys *FS) Mkdir(name string, perm uint16) error {
	return fsys.mkdir(name, ModeDir|perm&ModePerm, now())
}

func (fsys *FS) mkdir(name string, mode uint16, mtime int64) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	name = path.Clean(name)
	if name == "/" {
		fsys.root.mode = mode
		return nil
	}
	dp, elem, err := fsys.namei(name, nameCreate)
	if err != nil {
		return err
	}
	if ip := dp.dsearch(elem); ip != nil {
		if !ip.isDir() {
			return fmt.Errorf("%s: %w", name, fs.ErrExist)
		}
		ip.mode = mode
		ip.mtime = mtime
		return nil
	}
	dp.children = append(dp.children, &inode{name: elem, mode: mode, mtime: mtime})
	return nil
}

// WriteFile creates or replaces the regular file name.
func (fsys *FS) WriteFile(name string, data []byte, perm uint16) error {
	return fsys.writeFile(name, data, perm&ModePerm, now())
}

func (fsys *FS) writeFile(name string, data []byte, mode uint16, mtime int64) error {
	if len(data) > maxFileSize {
		return fmt.Errorf("%s: file too large", name)
	}
	return fsys.create(name, &inode{mode: mode, mtime: mtime, data: bytes.Clone(data)})
}

// Mknod creates a character device node bound to the device dev.
func (fsys *FS) Mknod(name, dev string, perm uint16) error {
	return fsys.mknod(name, dev, perm&ModePerm, now())
}

func (fsys *FS) mknod(name, dev string, mode uint16, mtime int64) error {
	return fsys.create(name, &inode{mode: ModeDevice | mode&ModePerm, mtime: mtime, dev: dev})
}

func (fsys *FS) create(name string, ip *inode) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	name = path.Clean(name)
	dp, elem, err := fsys.namei(name, nameCreate)
	if err != nil {
		return err
	}
	ip.name = elem
	for i, old := range dp.children {
		if old.name == elem {
			if old.isDir() {
				return fmt.Errorf("%s: is a directory", name)
			}
			dp.children[i] = ip
			return nil
		}
	}
	dp.children = append(dp.children, ip)
	return nil
}

// Lookup resolves an absolute path to a node.
func (fsys *FS) Lookup(name string) (kernel.Node, bool) {
	fsys.mu.RLock()
	defer fsys.mu.RUnlock()

	ip, _, err := fsys.namei(path.Clean(name), nameFind)
	if err != nil {
		return nil, false
	}
	return fsys.wrap(ip), true
}

// ReadFile returns a copy of the content of the regular file name.
func (fsys *FS) ReadFile(name string) ([]byte, error) {
	fsys.mu.RLock()
	defer fsys.mu.RUnlock()

	ip, _, err := fsys.namei(path.Clean(name), nameFind)
	if err != nil {
		return nil, err
	}
	if ip.mode&ModeType != 0 {
		return nil, fmt.Errorf("%s: not a regular file", name)
	}
	return bytes.Clone(ip.data), nil
}

// An Entry describes one node visited by Walk.
type Entry struct {
	Path  string
	Mode  uint16
	Mtime int64
	Dev   string
	Size  int
}

// IsDir reports whether e is a directory.
func (e Entry) IsDir() bool { return e.Mode&ModeType == ModeDir }

// IsDevice reports whether e is a device node.
func (e Entry) IsDevice() bool { return e.Mode&ModeType == ModeDevice }

// Walk calls fn for every node below the root in depth-first,
// creation order. The tree must not be modified from fn.
func (fsys *FS) Walk(fn func(Entry) error) error {
	fsys.mu.RLock()
	defer fsys.mu.RUnlock()
	return walk(fsys.root, "/", fn)
}

func walk(dp *inode, dir string, fn func(Entry) error) error {
	for _, ip := range dp.children {
		p := path.Join(dir, ip.name)
		if err := fn(Entry{Path: p, Mode: ip.mode, Mtime: ip.mtime, Dev: ip.dev, Size: len(ip.data)}); err != nil {
			return err
		}
		if ip.isDir() {
			if err := walk(ip, p, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Archive encodes the tree in the txtar image format read by Parse.
func (fsys *FS) Archive() []byte {
	fsys.mu.RLock()
	defer fsys.mu.RUnlock()

	ar := new(txtar.Archive)
	var add func(dp *inode, dir string)
	add = func(dp *inode, dir string) {
		for _, ip := range dp.children {
			p := path.Join(dir, ip.name)
			attrs := fmt.Sprintf("%s mode=%#o", p, ip.mode)
			if ip.mtime != 0 {
				attrs += fmt.Sprintf(" mtime=%d", ip.mtime)
			}
			var data []byte
			switch {
			case ip.isDir():
				ar.Files = append(ar.Files, txtar.File{Name: attrs})
				add(ip, p)
				continue
			case ip.isDev():
				attrs += " dev=" + ip.dev
			default:
				data = ip.data
				if needBase64(data) {
					attrs += " base64=1"
					data = []byte(wrap(base64.StdEncoding.EncodeToString(data)))
				}
			}
			ar.Files = append(ar.Files, txtar.File{Name: attrs, Data: data})
		}
	}
	add(fsys.root, "/")
	return txtar.Format(ar)
}

// needBase64 reports whether data would not survive a txtar round trip
// as plain text.
func needBase64(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return !utf8.Valid(data) || bytes.HasPrefix(data, []byte("-- ")) || bytes.Contains(data, []byte("\n-- ")) || !bytes.HasSuffix(data, []byte("\n"))
}

func wrap(text string) string {
	if len(text) < 70 {
		return text + "\n"
	}
	return text[:70] + "\n" + wrap(text[70:])
}
