// SPDX-License-Identifier: GPL-2.0-or-later

package diskio

import (
	"io"
	"os"
)

// OSFile adapts *os.File to File.
type OSFile struct {
	*os.File
}

var _ File = (*OSFile)(nil)

func (f *OSFile) Size() (int64, error) {
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	return size, nil
}

func (f *OSFile) ReadAt(dat []byte, off int64) (int, error) {
	return f.File.ReadAt(dat, off)
}

func (f *OSFile) WriteAt(dat []byte, off int64) (int, error) {
	return f.File.WriteAt(dat, off)
}

func OpenFile(path string, readOnly bool) (*OSFile, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	fh, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, err
	}
	return &OSFile{File: fh}, nil
}
