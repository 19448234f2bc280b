// SPDX-License-Identifier: GPL-2.0-or-later

package btreedb4

import "fmt"

// FormatError reports a structural mismatch in the BTreeDB4 user header or
// a parsed block (wrong tag, num_keys too large, key_size mismatch, ...).
type FormatError struct {
	Msg string
	Err error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("btreedb4: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("btreedb4: %s", e.Msg)
}

func (e *FormatError) Unwrap() error { return e.Err }

// InvalidSignatureError is returned when a block's 2-byte signature is
// neither II, LL, FF nor the null "unused" marker.
type InvalidSignatureError struct {
	Block     int64
	Signature []byte
}

func (e *InvalidSignatureError) Error() string {
	return fmt.Sprintf("btreedb4: block %d: invalid signature %q", e.Block, e.Signature)
}

// ChainBrokenError is returned when a leaf chain points to -1 prematurely,
// revisits a block, or lands on a non-leaf outside repair mode.
type ChainBrokenError struct {
	Msg string
}

func (e *ChainBrokenError) Error() string { return fmt.Sprintf("btreedb4: leaf chain broken: %s", e.Msg) }

// KeyNotFoundError carries the hex of the encoded key that a leaf scan
// exhausted without finding, plus the original path when the caller knows
// one (the Package layer fills this in).
type KeyNotFoundError struct {
	EncodedKey []byte
	Path       string
}

func (e *KeyNotFoundError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("btreedb4: key not found for path %q (encoded %x)", e.Path, e.EncodedKey)
	}
	return fmt.Sprintf("btreedb4: key not found: %x", e.EncodedKey)
}
