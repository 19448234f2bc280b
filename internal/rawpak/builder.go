// SPDX-License-Identifier: GPL-2.0-or-later

// Package rawpak assembles bit-exact SBBF02/BTreeDB4 byte streams for
// tests, so the reading side (pagemap/sbbf/btreedb4/pak/vfs) can be
// exercised against real on-disk bytes instead of mocks.
package rawpak

import (
	"encoding/binary"
)

const (
	headerSize = 32 + 12 + 12 + 19 // SBBF header prefix + BTreeDB4 user header
	sigLen     = 2
	nextLen    = 4
)

// Entry is one (key, value) pair to place in the database.
type Entry struct {
	Key   []byte
	Value []byte
}

func putVarlen(buf []byte, n uint64) []byte {
	var stack []byte
	stack = append(stack, byte(n&0x7f))
	n >>= 7
	for n > 0 {
		stack = append(stack, byte(n&0x7f)|0x80)
		n >>= 7
	}
	// stack is least-significant-chunk-first; the wire format is
	// most-significant-chunk-first with the continuation bit set on every
	// byte but the last.
	out := make([]byte, len(stack))
	for i, b := range stack {
		out[len(stack)-1-i] = b
	}
	for i := 0; i < len(out)-1; i++ {
		out[i] |= 0x80
	}
	out[len(out)-1] &^= 0x80
	return append(buf, out...)
}

// Build lays out a single-root-leaf BTreeDB4 database (no index blocks: the
// root block index 0 is itself a leaf, possibly chained across further
// leaves if the logical record stream overflows one block). identifier is
// the 12-byte (NUL-padded) database name, e.g. "Assets1" or "Assets2".
func Build(identifier string, blockSize int32, entries []Entry) []byte {
	keySize := 0
	if len(entries) > 0 {
		keySize = len(entries[0].Key)
	}

	record := make([]byte, 4)
	binary.BigEndian.PutUint32(record, uint32(len(entries)))
	for _, e := range entries {
		record = append(record, e.Key...)
		record = putVarlen(record, uint64(len(e.Value)))
		record = append(record, e.Value...)
	}

	leafData := int(blockSize) - sigLen - nextLen
	var blocks [][]byte
	for off := 0; off < len(record) || len(blocks) == 0; off += leafData {
		end := off + leafData
		if end > len(record) {
			end = len(record)
		}
		chunk := record[off:end]
		block := make([]byte, blockSize)
		copy(block[0:2], "LL")
		copy(block[2:2+len(chunk)], chunk)
		// next_block filled in once we know if there's a following block
		blocks = append(blocks, block)
		if end == len(record) {
			break
		}
	}
	for i, block := range blocks {
		next := int32(-1)
		if i < len(blocks)-1 {
			next = int32(i + 1)
		}
		binary.BigEndian.PutUint32(block[blockSize-4:], uint32(next))
	}

	total := headerSize + len(blocks)*int(blockSize)
	buf := make([]byte, total)

	copy(buf[0:6], "SBBF02")
	binary.BigEndian.PutUint32(buf[6:10], uint32(headerSize))
	binary.BigEndian.PutUint32(buf[10:14], uint32(blockSize))

	uh := buf[32:headerSize]
	copy(uh[0:12], "BTreeDB4")
	copy(uh[12:24], identifier)
	binary.BigEndian.PutUint32(uh[24:28], uint32(keySize))
	uh[28] = 0 // alt_flag = false: active root is A
	binary.BigEndian.PutUint32(uh[30:34], 0)  // root_a = block 0
	uh[34] = 1                                // root_a_is_leaf
	binary.BigEndian.PutUint32(uh[38:42], uint32(^uint32(0))) // root_b = -1
	uh[42] = 0

	pos := headerSize
	for _, block := range blocks {
		copy(buf[pos:pos+int(blockSize)], block)
		pos += int(blockSize)
	}

	return buf
}
