// SPDX-License-Identifier: GPL-2.0-or-later

package sbbf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qix-/starfuse/internal/rawpak"
)

func TestOpenParsesHeader(t *testing.T) {
	buf := rawpak.Build("Assets2", 4096, nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "test.pak")
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	f, err := Open(path, 0, true)
	require.NoError(t, err)
	defer f.Close()

	assert.EqualValues(t, 4096, f.BlockSize)
	assert.True(t, f.HeaderSize >= 32)

	count, err := f.BlockCount()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, int64(1))
}

func TestOpenRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.pak")
	require.NoError(t, os.WriteFile(path, []byte("NOTAPAK!garbagegarbagegarbage"), 0o644))

	_, err := Open(path, 0, true)
	require.Error(t, err)
	var magicErr *InvalidMagicError
	assert.ErrorAs(t, err, &magicErr)
}

func TestBlockRegionReadsLeafSignature(t *testing.T) {
	entries := []rawpak.Entry{{Key: []byte{0, 0, 0, 1}, Value: []byte("x")}}
	buf := rawpak.Build("Assets2", 64, entries)
	dir := t.TempDir()
	path := filepath.Join(dir, "test.pak")
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	f, err := Open(path, 0, true)
	require.NoError(t, err)
	defer f.Close()

	region, err := f.BlockRegion(0)
	require.NoError(t, err)
	sig, err := region.ReadAt(0, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("LL"), sig)
}
