// SPDX-License-Identifier: GPL-2.0-or-later

package btreedb4

import "github.com/Qix-/starfuse/lib/containers"

// leafReader is a pseudo-reader that crosses leaf-chain boundaries as
// needed. It is owned by a single call (descent + scan) and must not be
// shared across goroutines.
type leafReader struct {
	db      *DB
	leaf    *LeafBlock
	offset  int
	visited containers.Set[int64]
}

func newLeafReader(db *DB, leaf *LeafBlock) *leafReader {
	return &leafReader{
		db:      db,
		leaf:    leaf,
		offset:  0,
		visited: containers.NewSet(leaf.Index),
	}
}

// Next implements sbon.Source.
func (r *leafReader) Next(n int) ([]byte, error) {
	if r.offset+n <= len(r.leaf.Data) {
		b := r.leaf.Data[r.offset : r.offset+n]
		r.offset += n
		return b, nil
	}

	out := make([]byte, 0, n)
	out = append(out, r.leaf.Data[r.offset:]...)
	remaining := n - len(out)

	for remaining > 0 {
		next := r.leaf.NextBlock
		if next == noBlock {
			return nil, &ChainBrokenError{Msg: "leaf chain ended before satisfying read"}
		}
		if r.visited.Has(next) {
			return nil, &ChainBrokenError{Msg: "leaf chain revisits a block"}
		}
		r.visited.Insert(next)

		blk, err := r.db.block(next)
		if err != nil {
			return nil, err
		}
		leaf, ok := blk.(*LeafBlock)
		if !ok {
			if fb, isFree := blk.(*FreeBlock); isFree && r.db.Repair {
				leaf = asRestoredLeaf(fb)
			} else {
				return nil, &ChainBrokenError{Msg: "leaf chain points to a non-leaf block"}
			}
		}
		r.leaf = leaf

		take := remaining
		if take > len(leaf.Data) {
			take = len(leaf.Data)
		}
		out = append(out, leaf.Data[:take]...)
		remaining -= take
		r.offset = take
	}

	return out, nil
}
