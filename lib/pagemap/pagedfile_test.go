// SPDX-License-Identifier: GPL-2.0-or-later

package pagemap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func patternBytes(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i % 251)
	}
	return out
}

func TestRegionReadWithinOnePage(t *testing.T) {
	content := patternBytes(4096)
	path := writeFile(t, content)

	pf, err := Open(path, 1, true)
	require.NoError(t, err)
	defer pf.Close()

	region, err := pf.Region(0, 4096)
	require.NoError(t, err)
	got, err := region.ReadAt(100, 50)
	require.NoError(t, err)
	assert.Equal(t, content[100:150], got)
}

func TestRegionReadCrossesPageBoundary(t *testing.T) {
	pageSize := int64(os.Getpagesize())
	total := pageSize*2 + 500
	content := patternBytes(int(total))
	path := writeFile(t, content)

	// PageMultiplier=1 keeps pages at exactly one OS page, so a read
	// spanning the first page boundary forces Read to stitch bytes from
	// two pages.
	pf, err := Open(path, 1, true)
	require.NoError(t, err)
	defer pf.Close()

	start := pageSize - 10
	length := 20
	region, err := pf.Region(0, total)
	require.NoError(t, err)
	got, err := region.ReadAt(start, int64(length))
	require.NoError(t, err)
	assert.Equal(t, content[start:start+int64(length)], got)
}

func TestSubRegionComposesOffsets(t *testing.T) {
	content := patternBytes(8192)
	path := writeFile(t, content)

	pf, err := Open(path, 1, true)
	require.NoError(t, err)
	defer pf.Close()

	outer, err := pf.Region(1000, 2000)
	require.NoError(t, err)
	inner, err := outer.Region(50, 10)
	require.NoError(t, err)
	got, err := inner.ReadAt(0, 10)
	require.NoError(t, err)
	assert.Equal(t, content[1050:1060], got)
}

func TestReadOnlyWriteFails(t *testing.T) {
	path := writeFile(t, patternBytes(4096))
	pf, err := Open(path, 1, true)
	require.NoError(t, err)
	defer pf.Close()

	region, err := pf.Region(0, 4096)
	require.NoError(t, err)
	_, err = region.Write([]byte("x"), 0, false)
	require.Error(t, err)
	var roErr *ReadOnlyError
	assert.ErrorAs(t, err, &roErr)
}

func TestCloseIsIdempotent(t *testing.T) {
	path := writeFile(t, patternBytes(4096))
	pf, err := Open(path, 1, true)
	require.NoError(t, err)
	require.NoError(t, pf.Close())
	require.NoError(t, pf.Close())
}
