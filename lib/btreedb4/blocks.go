// SPDX-License-Identifier: GPL-2.0-or-later

package btreedb4

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/Qix-/starfuse/lib/pagemap"
)

// IndexBlock is an "II" block: num_keys (key,child) pairs ordered
// ascending, plus a left_child for keys less than the first entry.
type IndexBlock struct {
	Index    int64
	Level    uint8
	Keys     [][]byte
	Children []int64 // len(Children) == len(Keys)+1; Children[0] is left_child
}

// ChildFor returns the child block index to descend into for key, via
// upper-bound bisection: values[bisect_right(keys, key)].
func (b *IndexBlock) ChildFor(key []byte) int64 {
	i := sort.Search(len(b.Keys), func(i int) bool {
		return bytes.Compare(b.Keys[i], key) > 0
	})
	return b.Children[i]
}

// LeafBlock is an "LL" block: opaque data plus a pointer to the next leaf in
// the chain (noBlock if none).
type LeafBlock struct {
	Index     int64
	Data      []byte
	NextBlock int64 // noBlock if none
}

// FreeBlock is an "FF" block: a reclaimable block kept on a free list. Raw
// holds everything after the 2-byte signature so repair mode can
// reinterpret it as a leaf.
type FreeBlock struct {
	Index         int64
	NextFreeBlock int64 // noBlock if none
	Raw           []byte
}

// noBlock is the sentinel for "-1" / "none" block pointers.
const noBlock = -1

func decodeI32(b []byte) int64 {
	return int64(int32(binary.BigEndian.Uint32(b)))
}

// parseBlock dispatches on a block's 2-byte signature. It returns a nil
// value (and nil error) for the "unused" \0\0 signature.
func parseBlock(index int64, region *pagemap.Region, keySize int32, blockSize int32) (any, error) {
	sig, err := region.ReadAt(0, 2)
	if err != nil {
		return nil, err
	}

	switch string(sig) {
	case "II":
		return parseIndexBlock(index, region, keySize)
	case "LL":
		return parseLeafBlock(index, region, blockSize)
	case "FF":
		return parseFreeBlock(index, region, blockSize)
	case "\x00\x00":
		return nil, nil
	default:
		return nil, &InvalidSignatureError{Block: index, Signature: sig}
	}
}

func parseIndexBlock(index int64, region *pagemap.Region, keySize int32) (*IndexBlock, error) {
	head, err := region.ReadAt(2, 9)
	if err != nil {
		return nil, err
	}
	level := head[0]
	numKeys := decodeI32(head[1:5])
	leftChild := decodeI32(head[5:9])
	if numKeys < 0 {
		return nil, &FormatError{Msg: "index block has negative num_keys"}
	}

	keys := make([][]byte, 0, numKeys)
	children := make([]int64, 0, numKeys+1)
	children = append(children, leftChild)

	off := int64(2 + 9)
	entrySize := int64(keySize) + 4
	for i := int64(0); i < numKeys; i++ {
		entry, err := region.ReadAt(off, int(entrySize))
		if err != nil {
			return nil, err
		}
		key := make([]byte, keySize)
		copy(key, entry[:keySize])
		keys = append(keys, key)
		children = append(children, decodeI32(entry[keySize:keySize+4]))
		off += entrySize
	}

	return &IndexBlock{Index: index, Level: level, Keys: keys, Children: children}, nil
}

func parseLeafBlock(index int64, region *pagemap.Region, blockSize int32) (*LeafBlock, error) {
	dataSize := int(blockSize) - 6
	data, err := region.ReadAt(2, dataSize)
	if err != nil {
		return nil, err
	}
	next, err := region.ReadAt(int64(2+dataSize), 4)
	if err != nil {
		return nil, err
	}
	nextBlock := decodeI32(next)
	return &LeafBlock{Index: index, Data: data, NextBlock: nextBlock}, nil
}

func parseFreeBlock(index int64, region *pagemap.Region, blockSize int32) (*FreeBlock, error) {
	raw, err := region.ReadAt(2, int(blockSize)-2)
	if err != nil {
		return nil, err
	}
	next := decodeI32(raw[:4])
	return &FreeBlock{Index: index, NextFreeBlock: next, Raw: raw}, nil
}

// asRestoredLeaf reinterprets a free block as a leaf for repair mode: the
// data is everything but the trailing 4 bytes, and next_block is read from
// those trailing 4 bytes.
func asRestoredLeaf(fb *FreeBlock) *LeafBlock {
	data := fb.Raw[:len(fb.Raw)-4]
	next := decodeI32(fb.Raw[len(fb.Raw)-4:])
	return &LeafBlock{Index: fb.Index, Data: data, NextBlock: next}
}
