// SPDX-License-Identifier: GPL-2.0-or-later

package sbon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarlenNumberRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 129, 16383, 16384, 1 << 20, 1 << 40, (1 << 56) - 1}
	for _, n := range values {
		var buf []byte
		tmp := n
		var stack []byte
		stack = append(stack, byte(tmp&0x7f))
		tmp >>= 7
		for tmp > 0 {
			stack = append(stack, byte(tmp&0x7f)|0x80)
			tmp >>= 7
		}
		for i := len(stack) - 1; i >= 0; i-- {
			b := stack[i]
			if i != 0 {
				b |= 0x80
			} else {
				b &^= 0x80
			}
			buf = append(buf, b)
		}

		got, err := VarlenNumber(NewBytesSource(buf))
		require.NoError(t, err)
		assert.Equal(t, n, got, "n=%d", n)
	}
}

func TestFixlenStringTrimsNULs(t *testing.T) {
	src := NewBytesSource([]byte("hello\x00\x00\x00\x00\x00\x00\x00"))
	s, err := FixlenString(src, 12)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}

func TestBytes(t *testing.T) {
	src := NewBytesSource([]byte{3, 'a', 'b', 'c'})
	b, err := Bytes(src)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), b)
}

func TestStringList(t *testing.T) {
	var buf []byte
	buf = append(buf, 2) // count
	buf = append(buf, 1, 'a')
	buf = append(buf, 1, 'b')
	list, err := StringList(NewBytesSource(buf))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, list)
}

func TestStringDigestMap(t *testing.T) {
	digest := make([]byte, DigestSize)
	for i := range digest {
		digest[i] = byte(i)
	}
	var buf []byte
	buf = append(buf, 1) // count
	buf = append(buf, 1, 'x')
	buf = append(buf, digest...)

	m, err := StringDigestMap(NewBytesSource(buf))
	require.NoError(t, err)
	require.Contains(t, m, "x")
	got := m["x"]
	assert.Equal(t, digest, got[:])
}

func TestShortRead(t *testing.T) {
	_, err := FixlenString(NewBytesSource([]byte("ab")), 5)
	require.Error(t, err)
	var shortRead *ShortReadError
	assert.ErrorAs(t, err, &shortRead)
}
