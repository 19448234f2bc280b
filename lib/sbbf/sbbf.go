// SPDX-License-Identifier: GPL-2.0-or-later

// Package sbbf parses the SBBF02/SBBF03 block file container: a magic
// string, a header of declared size, and a dense array of fixed-size
// blocks following it. It does not interpret block contents; that's
// btreedb4's job.
package sbbf

import (
	"encoding/binary"
	"fmt"

	"github.com/Qix-/starfuse/lib/pagemap"
)

const (
	headerPrefixSize = 32 // bytes [0,32) read up front, before header_size is known
	userHeaderStart  = 0x20
)

var validMagic = map[string]bool{
	"SBBF02": true,
	"SBBF03": true,
}

// File is an opened SBBF02/03 block file.
type File struct {
	path string
	pf   *pagemap.PagedFile

	HeaderSize int32
	BlockSize  int32

	Header     *pagemap.Region // [0, HeaderSize)
	UserHeader *pagemap.Region // [0x20, HeaderSize)
}

// Open mmaps path and parses the SBBF header.
func Open(path string, pageMultiplier int, readOnly bool) (*File, error) {
	pf, err := pagemap.Open(path, pageMultiplier, readOnly)
	if err != nil {
		return nil, err
	}
	f, err := load(path, pf)
	if err != nil {
		pf.Close()
		return nil, err
	}
	return f, nil
}

func load(path string, pf *pagemap.PagedFile) (*File, error) {
	probe, err := pf.Region(0, headerPrefixSize)
	if err != nil {
		return nil, err
	}

	magic, err := probe.ReadAt(0, 6)
	if err != nil {
		return nil, err
	}
	if !validMagic[string(magic)] {
		return nil, &InvalidMagicError{Path: path, Got: magic}
	}

	sizes, err := probe.ReadAt(6, 8)
	if err != nil {
		return nil, err
	}
	headerSize := int32(binary.BigEndian.Uint32(sizes[0:4]))
	blockSize := int32(binary.BigEndian.Uint32(sizes[4:8]))
	if headerSize < headerPrefixSize {
		return nil, &FormatError{Msg: fmt.Sprintf("header_size=%d is smaller than the minimum %d", headerSize, headerPrefixSize)}
	}
	if blockSize <= 0 {
		return nil, &FormatError{Msg: fmt.Sprintf("block_size=%d must be positive", blockSize)}
	}

	header, err := pf.Region(0, int64(headerSize))
	if err != nil {
		return nil, err
	}
	userHeader, err := header.Region(userHeaderStart, int64(headerSize)-userHeaderStart)
	if err != nil {
		return nil, err
	}

	return &File{
		path:       path,
		pf:         pf,
		HeaderSize: headerSize,
		BlockSize:  blockSize,
		Header:     header,
		UserHeader: userHeader,
	}, nil
}

// BlockCount is advisory: it's derived by truncating (F-header_size)/block_size;
// a non-zero remainder is tolerated, not fatal.
func (f *File) BlockCount() (int64, error) {
	size, err := f.pf.Len()
	if err != nil {
		return 0, err
	}
	return (size - int64(f.HeaderSize)) / int64(f.BlockSize), nil
}

// BlockRegion returns block i's bytes uninterpreted.
func (f *File) BlockRegion(i int64) (*pagemap.Region, error) {
	base := int64(f.HeaderSize) + i*int64(f.BlockSize)
	return f.pf.Region(base, int64(f.BlockSize))
}

// Len is the underlying file's current length.
func (f *File) Len() (int64, error) { return f.pf.Len() }

// Close releases the paged mapping and the file handle.
func (f *File) Close() error { return f.pf.Close() }
