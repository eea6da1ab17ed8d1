// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Mkimage converts a host directory tree to the txtar root image
// format booted by stacs.
//
// Usage:
//
//	mkimage [-o out.txtar] [-x] dir
//
// The -o flag specifies the name of the output file to write (default standard output).
//
// Host directories become image directories and regular files become
// image files with their permission bits.
// A file whose name ends in ".dev" becomes a device node, named
// without the suffix, bound to the device driver named on its first line.
//
// The -x flag inverts the operation: the argument is now a txtar image,
// and -o is the name of a directory to write the files into (default _fs).
// Device nodes are extracted as ".dev" files.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"rsc.io/stacs/tarfs"
)

var (
	outfile = flag.String("o", "", "write output to `file` (default standard output)")
	xflag   = flag.Bool("x", false, "extract txtar image")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: mkimage [-o out.txtar] [-x] dir\n")
	os.Exit(2)
}

const devSuffix = ".dev"

func main() {
	log.SetPrefix("mkimage: ")
	log.SetFlags(0)
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) != 1 {
		usage()
	}

	if *xflag {
		data, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatal(err)
		}
		if *outfile == "" {
			*outfile = "_fs"
		}
		if err := extract(data, *outfile); err != nil {
			log.Fatal(err)
		}
		return
	}

	image, err := pack(args[0])
	if err != nil {
		log.Fatal(err)
	}
	if *outfile == "" {
		os.Stdout.Write(image)
		return
	}
	if err := os.WriteFile(*outfile, image, 0666); err != nil {
		log.Fatal(err)
	}
}

// pack builds an image from the tree rooted at dir.
func pack(dir string) ([]byte, error) {
	fsys := tarfs.New()
	err := filepath.WalkDir(dir, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		name := path.Join("/", filepath.ToSlash(rel))
		info, err := d.Info()
		if err != nil {
			return err
		}
		perm := uint16(info.Mode().Perm())
		switch {
		case d.IsDir():
			if name == "/" {
				return nil
			}
			return fsys.Mkdir(name, perm)
		case !info.Mode().IsRegular():
			log.Printf("skipping %s: not a regular file", file)
			return nil
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		if strings.HasSuffix(name, devSuffix) {
			dev, _, _ := strings.Cut(string(data), "\n")
			return fsys.Mknod(strings.TrimSuffix(name, devSuffix), strings.TrimSpace(dev), perm)
		}
		return fsys.WriteFile(name, data, perm)
	})
	if err != nil {
		return nil, err
	}
	return fsys.Archive(), nil
}

// extract writes the files of image under dir.
func extract(image []byte, dir string) error {
	fsys, err := tarfs.Parse(image)
	if err != nil {
		return err
	}
	return fsys.Walk(func(e tarfs.Entry) error {
		targ := filepath.Join(dir, filepath.FromSlash(e.Path))
		perm := fs.FileMode(e.Mode & tarfs.ModePerm)
		switch {
		case e.IsDir():
			return os.MkdirAll(targ, perm|0700)
		case e.IsDevice():
			return os.WriteFile(targ+devSuffix, []byte(e.Dev+"\n"), perm)
		}
		data, err := fsys.ReadFile(e.Path)
		if err != nil {
			return err
		}
		return os.WriteFile(targ, data, perm)
	})
}
