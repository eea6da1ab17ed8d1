// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tarfs

import (
	"time"

	"rsc.io/stacs/kernel"
)

// Mode bits, as stored in the image.
const (
	ModeDir    uint16 = 040000 // directory
	ModeDevice uint16 = 020000 // character device
	ModeType          = ModeDir | ModeDevice
	ModePerm   uint16 = 0777

	modeRead  uint16 = 0400
	modeWrite uint16 = 0200
)

const maxFileSize = 1<<24 - 1

// An inode is one file, directory, or device in the tree.
// All fields are guarded by the owning FS's mutex.
type inode struct {
	name     string
	mode     uint16
	mtime    int64
	dev      string
	data     []byte
	children []*inode
}

func (ip *inode) isDir() bool { return ip.mode&ModeType == ModeDir }
func (ip *inode) isDev() bool { return ip.mode&ModeType == ModeDevice }

// dsearch returns the child of ip named elem.
func (ip *inode) dsearch(elem string) *inode {
	for _, c := range ip.children {
		if c.name == elem {
			return c
		}
	}
	return nil
}

func now() int64 {
	return time.Now().Unix()
}

// A node is the kernel's view of a non-directory inode.
type node struct {
	fsys *FS
	ip   *inode
}

func (n *node) Name() string { return n.ip.name }

func (n *node) Kind() kernel.NodeKind { return kernel.KindFile }

func (n *node) Size() uint64 {
	n.fsys.mu.RLock()
	defer n.fsys.mu.RUnlock()
	return uint64(len(n.ip.data))
}

func (n *node) Open() (kernel.Stream, bool) {
	return &stream{fsys: n.fsys, ip: n.ip}, true
}

// A dir is the kernel's view of a directory inode.
// It carries the Directory capability that listing requires.
type dir struct {
	fsys *FS
	ip   *inode
}

func (d *dir) Name() string                { return d.ip.name }
func (d *dir) Kind() kernel.NodeKind       { return kernel.KindDirectory }
func (d *dir) Size() uint64                { return 0 }
func (d *dir) Open() (kernel.Stream, bool) { return nil, false }

// Children returns the entries of d in the order they were created.
func (d *dir) Children() []kernel.Node {
	d.fsys.mu.RLock()
	defer d.fsys.mu.RUnlock()
	out := make([]kernel.Node, 0, len(d.ip.children))
	for _, c := range d.ip.children {
		out = append(out, d.fsys.wrap(c))
	}
	return out
}

func (fsys *FS) wrap(ip *inode) kernel.Node {
	if ip.isDir() {
		return &dir{fsys: fsys, ip: ip}
	}
	return &node{fsys: fsys, ip: ip}
}
