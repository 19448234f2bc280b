// SPDX-License-Identifier: GPL-2.0-or-later

package pagemap

// Region is a logical window into its owning PagedFile. It owns no bytes of
// its own; (base, size) are always expressed in the root file's
// coordinates, and reads/writes are delegated back to the owner.
type Region struct {
	owner *PagedFile
	base  int64
	size  int64
	// cursor advances on reads/writes that don't request advance=false.
	// Thread-hostile: request-serving code must pass explicit offsets
	// instead of relying on this field from more than one goroutine.
	cursor int64
}

// Len returns the region's size.
func (r *Region) Len() int64 { return r.size }

// sanitize clamps (offset, length) to the region and resolves -1 sentinels
// to "use the cursor" / "to the end", mirroring the original mapped-region
// semantics.
func (r *Region) sanitize(offset, length int64) (int64, int64, error) {
	if offset < 0 {
		offset = r.cursor
	}
	if offset > r.size {
		return 0, 0, &RegionOverflowError{Offset: offset, Size: r.size}
	}
	if length < 0 {
		length = r.size - offset
	}
	if offset+length > r.size {
		length = r.size - offset
	}
	return offset, length, nil
}

// Read reads length bytes starting at offset (offset<0 means "at the
// cursor", length<0 means "to the end of the region"). Advances the
// region's cursor only if advance is true.
func (r *Region) Read(length int, offset int64, advance bool) ([]byte, error) {
	off, n, err := r.sanitize(offset, int64(length))
	if err != nil {
		return nil, err
	}
	result, err := r.owner.Read(int(n), r.base+off, false)
	if err != nil {
		return nil, err
	}
	if advance {
		r.cursor = off + int64(len(result))
	}
	return result, nil
}

// ReadAt is a convenience for an explicit-offset, non-advancing read; this
// is the form request-serving code should use instead of the cursor.
func (r *Region) ReadAt(offset int64, length int) ([]byte, error) {
	return r.Read(length, offset, false)
}

// Next reads n bytes starting at the cursor and advances it, satisfying the
// sequential-source shape the SBON codec decodes from.
func (r *Region) Next(n int) ([]byte, error) {
	return r.Read(n, -1, true)
}

// ByteAt returns the single byte at relative offset o.
func (r *Region) ByteAt(o int64) (byte, error) {
	b, err := r.ReadAt(o, 1)
	if err != nil {
		return 0, err
	}
	if len(b) == 0 {
		return 0, &RegionOverflowError{Offset: o, Size: r.size}
	}
	return b[0], nil
}

// Region carves out a sub-region, offsets composing additively against the
// owning PagedFile's coordinate space.
func (r *Region) Region(offset, size int64) (*Region, error) {
	if offset < 0 {
		offset = r.cursor
	}
	if size < 0 {
		size = r.size - offset
	}
	if offset+size > r.size {
		return nil, &RegionOverflowError{Offset: offset + size, Size: r.size}
	}
	return r.owner.Region(r.base+offset, size)
}

// Write writes value at offset, failing with ReadOnlyError if the owning
// mapping is read-only.
func (r *Region) Write(value []byte, offset int64, advance bool) (int, error) {
	off, n, err := r.sanitize(offset, int64(len(value)))
	if err != nil {
		return 0, err
	}
	written, err := r.owner.WriteAt(value[:n], r.base+off)
	if err != nil {
		return 0, err
	}
	if advance {
		r.cursor = off + int64(written)
	}
	return written, nil
}
