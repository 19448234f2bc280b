// SPDX-License-Identifier: GPL-2.0-or-later

// Package pagemap memory-maps a file in fixed-size pages and hands out
// byte-range "regions" over it, the way a btree pager mmaps growable
// chunks of a database file instead of reading it whole into the heap.
package pagemap

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/Qix-/starfuse/lib/diskio"
)

// PagedFile maps a diskio.File into memory one fixed-size page at a time.
// Pages are created lazily on first access and released only on Close; the
// same byte is never mapped by two different pages.
type PagedFile struct {
	file     diskio.File
	pageSize int64
	readOnly bool

	mu    sync.Mutex
	pages map[int64][]byte // page index -> mmap'd bytes
}

// DefaultPageMultiplier is the default k=256 applied when a caller doesn't
// override it.
const DefaultPageMultiplier = 256

// Open mmaps path. pageMultiplier is the k in P = k*pagesize; 0 selects
// DefaultPageMultiplier.
func Open(path string, pageMultiplier int, readOnly bool) (*PagedFile, error) {
	f, err := diskio.OpenFile(path, readOnly)
	if err != nil {
		return nil, err
	}
	return New(f, pageMultiplier, readOnly)
}

// New wraps an already-open diskio.File.
func New(f diskio.File, pageMultiplier int, readOnly bool) (*PagedFile, error) {
	if pageMultiplier <= 0 {
		pageMultiplier = DefaultPageMultiplier
	}
	granularity := int64(unix.Getpagesize())
	pageSize := int64(pageMultiplier) * granularity
	if pageSize%granularity != 0 {
		return nil, fmt.Errorf("pagemap: page size %d is not a multiple of allocation granularity %d", pageSize, granularity)
	}
	return &PagedFile{
		file:     f,
		pageSize: pageSize,
		readOnly: readOnly,
		pages:    make(map[int64][]byte),
	}, nil
}

// Len returns the file's current length, re-read from the OS each call.
func (pf *PagedFile) Len() (int64, error) {
	return pf.file.Size()
}

// Region ensures every page covering [offset, offset+size) is mapped and
// returns a Region over it, in root-file coordinates.
func (pf *PagedFile) Region(offset, size int64) (*Region, error) {
	if err := pf.ensureMapped(offset, size); err != nil {
		return nil, err
	}
	return &Region{owner: pf, base: offset, size: size}, nil
}

func (pf *PagedFile) ensureMapped(offset, size int64) error {
	if size <= 0 {
		return nil
	}
	fsize, err := pf.Len()
	if err != nil {
		return err
	}

	lowerPage := offset / pf.pageSize
	upperPage := (offset + size - 1) / pf.pageSize

	pf.mu.Lock()
	defer pf.mu.Unlock()
	for i := lowerPage; i <= upperPage; i++ {
		if _, ok := pf.pages[i]; ok {
			continue
		}
		pageOffset := i * pf.pageSize
		if pageOffset >= fsize {
			continue
		}
		pageLen := pf.pageSize
		if pageOffset+pageLen > fsize {
			pageLen = fsize - pageOffset
		}
		prot := unix.PROT_READ
		if !pf.readOnly {
			prot |= unix.PROT_WRITE
		}
		mapped, err := unix.Mmap(int(pf.file.Fd()), pageOffset, int(pageLen), prot, unix.MAP_SHARED)
		if err != nil {
			return fmt.Errorf("pagemap: mmap page %d (offset=%d len=%d): %w", i, pageOffset, pageLen, err)
		}
		pf.pages[i] = mapped
	}
	return nil
}

// Read returns min(length, F-offset) bytes read from root coordinates.
func (pf *PagedFile) Read(length int, offset int64, advance bool) ([]byte, error) {
	fsize, err := pf.Len()
	if err != nil {
		return nil, err
	}
	if offset >= fsize {
		return nil, nil
	}
	if int64(length) > fsize-offset {
		length = int(fsize - offset)
	}
	if length <= 0 {
		return nil, nil
	}
	if err := pf.ensureMapped(offset, int64(length)); err != nil {
		return nil, err
	}

	pf.mu.Lock()
	defer pf.mu.Unlock()

	out := make([]byte, 0, length)
	remaining := length
	curPage := offset / pf.pageSize
	within := offset % pf.pageSize
	for remaining > 0 {
		page, ok := pf.pages[curPage]
		if !ok {
			break
		}
		avail := int64(len(page)) - within
		if avail <= 0 {
			break
		}
		n := avail
		if n > int64(remaining) {
			n = int64(remaining)
		}
		out = append(out, page[within:within+n]...)
		remaining -= int(n)
		within = 0
		curPage++
	}
	return out, nil
}

// WriteAt writes to the mapped pages covering the region; fails if the
// mapping is read-only. Not exercised by the read-only core, but kept so a
// future writer can build on the same substrate.
func (pf *PagedFile) WriteAt(dat []byte, offset int64) (int, error) {
	if pf.readOnly {
		return 0, &ReadOnlyError{Path: pf.file.Name()}
	}
	if err := pf.ensureMapped(offset, int64(len(dat))); err != nil {
		return 0, err
	}

	pf.mu.Lock()
	defer pf.mu.Unlock()

	written := 0
	remaining := len(dat)
	curPage := offset / pf.pageSize
	within := offset % pf.pageSize
	for remaining > 0 {
		page, ok := pf.pages[curPage]
		if !ok {
			break
		}
		avail := int64(len(page)) - within
		if avail <= 0 {
			break
		}
		n := avail
		if n > int64(remaining) {
			n = int64(remaining)
		}
		copy(page[within:within+n], dat[written:written+int(n)])
		written += int(n)
		remaining -= int(n)
		within = 0
		curPage++
	}
	return written, nil
}

// Close unmaps every page and closes the underlying file. Idempotent.
func (pf *PagedFile) Close() error {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	for i, page := range pf.pages {
		_ = unix.Munmap(page)
		delete(pf.pages, i)
	}
	if pf.file == nil {
		return nil
	}
	err := pf.file.Close()
	pf.file = nil
	return err
}
