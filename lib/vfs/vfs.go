// SPDX-License-Identifier: GPL-2.0-or-later

// Package vfs builds an in-memory directory tree from a package's asset
// index and answers stat/readdir/read against it.
package vfs

import (
	"sort"
	"strings"

	"github.com/Qix-/starfuse/lib/btreedb4"
	"github.com/Qix-/starfuse/lib/pak"
)

// Open opens path as a package and builds its VFS in one step.
func Open(path string, cfg btreedb4.Config) (*FS, error) {
	pkg, err := pak.Open(path, cfg)
	if err != nil {
		return nil, err
	}
	fs, err := Build(pkg)
	if err != nil {
		pkg.Close()
		return nil, err
	}
	return fs, nil
}

// node is either a directory (children non-nil) or a file (isFile set,
// entry holding its index entry).
type node struct {
	children map[string]*node
	entry    pak.Entry
	isFile   bool
}

func newDir() *node { return &node{children: make(map[string]*node)} }

// FS is a read-only virtual filesystem over a package's asset index.
type FS struct {
	pkg  *pak.Package
	root *node
}

// Info is the result of Stat.
type Info struct {
	IsDir bool
	Size  int64
}

// Build constructs an FS from an already-opened package, walking its index
// once at open time; the tree is read-only thereafter.
func Build(pkg *pak.Package) (*FS, error) {
	index, err := pkg.Index()
	if err != nil {
		return nil, err
	}

	fs := &FS{pkg: pkg, root: newDir()}
	for path, entry := range index {
		if err := fs.insert(path, entry); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func (fs *FS) insert(path string, entry pak.Entry) error {
	names := splitPath(path)
	if len(names) == 0 {
		return nil
	}

	dir := fs.root
	for _, name := range names[:len(names)-1] {
		child, ok := dir.children[name]
		if !ok {
			child = newDir()
			dir.children[name] = child
		} else if child.isFile {
			return &NotADirError{Path: path}
		}
		dir = child
	}

	leaf := names[len(names)-1]
	if existing, ok := dir.children[leaf]; ok {
		if !existing.isFile {
			return &IsADirError{Path: path}
		}
		// Duplicate file entries are tolerated; keep the first.
		return nil
	}
	dir.children[leaf] = &node{isFile: true, entry: entry}
	return nil
}

// resolve walks path to its terminal node.
func (fs *FS) resolve(path string) (*node, error) {
	names := splitPath(path)
	cur := fs.root
	for i, name := range names {
		if cur.isFile {
			return nil, &NotADirError{Path: path}
		}
		child, ok := cur.children[name]
		if !ok {
			return nil, &NotFoundError{Path: path}
		}
		if i == len(names)-1 {
			return child, nil
		}
		cur = child
	}
	return cur, nil
}

// Stat resolves path and reports whether it's a directory and, for a file,
// its size.
func (fs *FS) Stat(path string) (Info, error) {
	n, err := fs.resolve(path)
	if err != nil {
		return Info{}, err
	}
	if n.isFile {
		size, err := fs.pkg.FileSize(n.entry)
		if err != nil {
			return Info{}, err
		}
		return Info{IsDir: false, Size: size}, nil
	}
	return Info{IsDir: true}, nil
}

// ReadDir returns path's child names, sorted, so a caller paging through
// entries across repeated calls (FUSE readdir) sees a stable order.
func (fs *FS) ReadDir(path string) ([]string, error) {
	n, err := fs.resolve(path)
	if err != nil {
		return nil, err
	}
	if n.isFile {
		return nil, &NotADirError{Path: path}
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ReadFile reads length bytes starting at offset from path's contents;
// length<0 means "to the end".
func (fs *FS) ReadFile(path string, offset, length int64) ([]byte, error) {
	n, err := fs.resolve(path)
	if err != nil {
		return nil, err
	}
	if !n.isFile {
		return nil, &IsADirError{Path: path}
	}
	full, err := fs.pkg.FileContents(n.entry)
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if offset > int64(len(full)) {
		offset = int64(len(full))
	}
	end := int64(len(full))
	if length >= 0 && offset+length < end {
		end = offset + length
	}
	return full[offset:end], nil
}

// Close closes the underlying package.
func (fs *FS) Close() error { return fs.pkg.Close() }
