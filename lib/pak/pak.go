// SPDX-License-Identifier: GPL-2.0-or-later

// Package pak extends btreedb4 with the StarBound asset-package
// conventions: SHA-256(lower(path)) key encoding and the well-known
// "_digest"/"_index" entries that enumerate a package's contents.
package pak

import (
	"crypto/sha256"
	"errors"
	"strings"

	"github.com/Qix-/starfuse/lib/btreedb4"
	"github.com/Qix-/starfuse/lib/sbon"
)

const (
	DigestKey = "_digest"
	IndexKey  = "_index"

	identifierAssets1 = "Assets1"
	identifierAssets2 = "Assets2"
)

// EncodeKey is the package key encoder: SHA-256 of the lower-cased UTF-8
// path.
func EncodeKey(path string) []byte {
	sum := sha256.Sum256([]byte(strings.ToLower(path)))
	return sum[:]
}

// Entry is the index's lookup value for one asset path.
type Entry struct {
	// Path is the asset path itself, as carried by an Assets1 index.
	Path string
	// Digest is the SHA-256 of the lower-cased path, as carried by an
	// Assets2 index; it doubles as the already-encoded content key.
	Digest    [32]byte
	HasDigest bool
}

// contentKey is the key passed to the BTreeDB4 engine to fetch this
// entry's bytes. For Assets2 it's the pre-computed digest. For Assets1 the
// original implementation passes the bare path through as if it were
// already an encoded key; this is an implementation-defined quirk of that index
// format, so we replicate it rather than silently "fixing" it into a
// re-hash.
func (e Entry) contentKey() []byte {
	if e.HasDigest {
		return e.Digest[:]
	}
	return []byte(e.Path)
}

// Package is a BTreeDB4 database keyed by SHA-256(lower(path)).
type Package struct {
	DB *btreedb4.DB

	index map[string]Entry
}

// Open opens path as a package.
func Open(path string, cfg btreedb4.Config) (*Package, error) {
	db, err := btreedb4.Open(path, cfg)
	if err != nil {
		return nil, err
	}
	return &Package{DB: db}, nil
}

func (p *Package) get(path string) ([]byte, error) {
	val, err := p.DB.GetEncoded(EncodeKey(path))
	if err != nil {
		var knf *btreedb4.KeyNotFoundError
		if errors.As(err, &knf) {
			knf.Path = path
		}
		return nil, err
	}
	return val, nil
}

// Digest returns the package's opaque check value ("_digest").
func (p *Package) Digest() ([]byte, error) {
	return p.get(DigestKey)
}

// Index returns the package's asset index, parsing and caching it on first
// call.
func (p *Package) Index() (map[string]Entry, error) {
	if p.index != nil {
		return p.index, nil
	}

	raw, err := p.get(IndexKey)
	if err != nil {
		return nil, err
	}
	src := sbon.NewBytesSource(raw)

	index := make(map[string]Entry)
	switch p.DB.Identifier {
	case identifierAssets1:
		paths, err := sbon.StringList(src)
		if err != nil {
			return nil, err
		}
		for _, path := range paths {
			index[path] = Entry{Path: path}
		}
	case identifierAssets2:
		digests, err := sbon.StringDigestMap(src)
		if err != nil {
			return nil, err
		}
		for path, digest := range digests {
			index[path] = Entry{Digest: digest, HasDigest: true}
		}
	default:
		return nil, &UnsupportedIdentifierError{Identifier: p.DB.Identifier}
	}

	p.index = index
	return index, nil
}

// FileContents reads the full value stored for an index entry's content
// key.
func (p *Package) FileContents(entry Entry) ([]byte, error) {
	return p.DB.GetEncoded(entry.contentKey())
}

// FileSize returns the length of the value stored for an index entry's
// content key, without materializing the payload.
func (p *Package) FileSize(entry Entry) (int64, error) {
	return p.DB.GetEncodedSize(entry.contentKey())
}

// Close releases the underlying database.
func (p *Package) Close() error { return p.DB.Close() }
