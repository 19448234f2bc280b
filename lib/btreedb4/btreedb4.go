// SPDX-License-Identifier: GPL-2.0-or-later

// Package btreedb4 implements the BTreeDB4 B+-tree engine layered on an
// SBBF02/03 block file: user-header parsing, block dispatch, tree descent,
// and a record reader that crosses chained leaves.
package btreedb4

import (
	"github.com/Qix-/starfuse/lib/containers"
	"github.com/Qix-/starfuse/lib/sbbf"
	"github.com/Qix-/starfuse/lib/sbon"
)

const expectedFormat = "BTreeDB4"

// maxLeafKeys is a sanity bound: a sane leaf never claims to hold 1000+
// keys; tripping this means the descent landed on garbage.
const maxLeafKeys = 1000

// Config configures a DB at construction time.
type Config struct {
	// PageMultiplier is the k in P = k*pagesize for the underlying paged
	// mapping; 0 selects pagemap.DefaultPageMultiplier.
	PageMultiplier int
	// ReadOnly opens the underlying file read-only.
	ReadOnly bool
	// Repair enables best-effort leaf-chain repair: a free block
	// encountered while chasing next_block is reinterpreted as a leaf
	// instead of failing the chain.
	Repair bool
	// BlockCacheSize is the ARC cache capacity for parsed blocks; 0
	// disables the cache.
	BlockCacheSize int
}

// DB is a BTreeDB4 database over an SBBF block file.
type DB struct {
	File *sbbf.File

	KeySize    int32
	Identifier string

	activeRoot int64
	otherRoot  int64
	altFlag    bool

	Repair     bool
	blockCache *containers.LRUCache[int64, any]
}

// Open opens path as an SBBF block file and parses its BTreeDB4 user
// header.
func Open(path string, cfg Config) (*DB, error) {
	f, err := sbbf.Open(path, cfg.PageMultiplier, cfg.ReadOnly)
	if err != nil {
		return nil, err
	}
	db, err := newFromFile(f, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}
	return db, nil
}

func newFromFile(f *sbbf.File, cfg Config) (*DB, error) {
	db := &DB{File: f, Repair: cfg.Repair}
	if cfg.BlockCacheSize > 0 {
		db.blockCache = containers.NewLRUCache[int64, any](cfg.BlockCacheSize)
	}
	if err := db.loadHeader(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) loadHeader() error {
	uh := db.File.UserHeader

	format, err := sbon.FixlenString(uh, 12)
	if err != nil {
		return err
	}
	if format != expectedFormat {
		return &FormatError{Msg: "user header does not carry the BTreeDB4 tag"}
	}

	identifier, err := sbon.FixlenString(uh, 12)
	if err != nil {
		return err
	}
	db.Identifier = identifier

	rest, err := uh.ReadAt(24, 19)
	if err != nil {
		return err
	}
	keySize := decodeI32(rest[0:4])
	altFlag := rest[4] != 0
	// rest[5] is 1 pad byte
	rootA := decodeI32(rest[6:10])
	_ = rest[10] // root_a_is_leaf, not needed for descent
	// rest[11:14] are 3 pad bytes
	rootB := decodeI32(rest[14:18])
	_ = rest[18] // root_b_is_leaf

	db.KeySize = int32(keySize)
	db.altFlag = altFlag
	if altFlag {
		db.activeRoot, db.otherRoot = rootB, rootA
	} else {
		db.activeRoot, db.otherRoot = rootA, rootB
	}
	return nil
}

// Commit swaps the active and other roots. The core never calls this
// itself; it exists for a future writer.
func (db *DB) Commit() {
	db.activeRoot, db.otherRoot = db.otherRoot, db.activeRoot
	db.altFlag = !db.altFlag
}

// block parses (or fetches from cache) the block at index i. Returns nil
// for the "unused" \0\0 signature.
func (db *DB) block(i int64) (any, error) {
	if db.blockCache != nil {
		if v, ok := db.blockCache.Get(i); ok {
			return v, nil
		}
	}
	region, err := db.File.BlockRegion(i)
	if err != nil {
		return nil, err
	}
	blk, err := parseBlock(i, region, db.KeySize, db.File.BlockSize)
	if err != nil {
		return nil, err
	}
	if db.blockCache != nil && blk != nil {
		db.blockCache.Add(i, blk)
	}
	return blk, nil
}

// descend walks the tree from the active root to the leaf that would
// contain key.
func (db *DB) descend(key []byte) (*LeafBlock, error) {
	blk, err := db.block(db.activeRoot)
	if err != nil {
		return nil, err
	}
	if blk == nil {
		return nil, &FormatError{Msg: "root block is unused"}
	}
	for {
		switch b := blk.(type) {
		case *IndexBlock:
			next := b.ChildFor(key)
			blk, err = db.block(next)
			if err != nil {
				return nil, err
			}
			if blk == nil {
				return nil, &FormatError{Msg: "descent reached an unused block"}
			}
		case *LeafBlock:
			return b, nil
		default:
			return nil, &FormatError{Msg: "descent reached a free block instead of a leaf"}
		}
	}
}

// scan walks a leaf's logical record stream looking for key, calling
// onMatch with a Source positioned right after the matching key. Returns
// KeyNotFoundError if the scan exhausts num_keys entries without a match.
func (db *DB) scan(key []byte, onMatch func(sbon.Source) error) error {
	if len(key) != int(db.KeySize) {
		return &FormatError{Msg: "encoded key length does not match key_size"}
	}
	leaf, err := db.descend(key)
	if err != nil {
		return err
	}
	reader := newLeafReader(db, leaf)

	numKeysBytes, err := reader.Next(4)
	if err != nil {
		return err
	}
	numKeys := decodeI32(numKeysBytes)
	if numKeys < 0 || numKeys >= maxLeafKeys {
		return &FormatError{Msg: "leaf claims an implausible number of keys"}
	}

	for i := int64(0); i < numKeys; i++ {
		curKey, err := reader.Next(int(db.KeySize))
		if err != nil {
			return err
		}
		if string(curKey) == string(key) {
			return onMatch(reader)
		}
		// Not a match: skip this entry's value without materializing it.
		if err := skipBytes(reader); err != nil {
			return err
		}
	}
	return &KeyNotFoundError{EncodedKey: key}
}

func skipBytes(reader *leafReader) error {
	n, err := sbon.VarlenNumber(reader)
	if err != nil {
		return err
	}
	_, err = reader.Next(int(n))
	return err
}

// GetEncoded returns the value stored under the already-encoded key.
func (db *DB) GetEncoded(key []byte) ([]byte, error) {
	var value []byte
	err := db.scan(key, func(src sbon.Source) error {
		v, err := sbon.Bytes(src)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	return value, err
}

// GetEncodedSize returns the length of the value stored under the
// already-encoded key, without materializing the payload.
func (db *DB) GetEncodedSize(key []byte) (int64, error) {
	var size int64
	err := db.scan(key, func(src sbon.Source) error {
		n, err := sbon.VarlenNumber(src)
		if err != nil {
			return err
		}
		size = int64(n)
		return nil
	})
	return size, err
}

// Close releases the underlying block file.
func (db *DB) Close() error { return db.File.Close() }
