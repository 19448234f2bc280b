// SPDX-License-Identifier: GPL-2.0-or-later

// Package diskio provides the narrow file interface the paged mapping is
// built on.
package diskio

import "io"

// File is the subset of *os.File that the paged mapping is built on. The
// paged mapping itself only names, sizes, mmaps (by descriptor) and closes
// the file; ReadAt/WriteAt give plain positional access alongside it.
type File interface {
	Name() string
	Size() (int64, error)
	Fd() uintptr
	Close() error
	ReadAt(p []byte, off int64) (n int, err error)
	WriteAt(p []byte, off int64) (n int, err error)
}

var (
	_ io.ReaderAt = File(nil)
	_ io.WriterAt = File(nil)
)
