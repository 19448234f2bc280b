// SPDX-License-Identifier: GPL-2.0-or-later

package vfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qix-/starfuse/internal/rawpak"
	"github.com/Qix-/starfuse/lib/btreedb4"
	"github.com/Qix-/starfuse/lib/pak"
)

func sbonByte(n byte) []byte { return []byte{n} }

func sbonString(s string) []byte {
	return append([]byte{byte(len(s))}, []byte(s)...)
}

func buildPackage(t *testing.T, paths map[string]string) string {
	t.Helper()

	var indexPayload []byte
	indexPayload = append(indexPayload, sbonByte(byte(len(paths)))...)
	entries := []rawpak.Entry{}
	i := byte(1)
	for path, contents := range paths {
		var digest [32]byte
		digest[0] = i
		i++
		indexPayload = append(indexPayload, sbonString(path)...)
		indexPayload = append(indexPayload, digest[:]...)
		entries = append(entries, rawpak.Entry{Key: digest[:], Value: []byte(contents)})
	}
	entries = append([]rawpak.Entry{{Key: pak.EncodeKey(pak.IndexKey), Value: indexPayload}}, entries...)

	buf := rawpak.Build("Assets2", 4096, entries)
	dir := t.TempDir()
	p := filepath.Join(dir, "test.pak")
	require.NoError(t, os.WriteFile(p, buf, 0o644))
	return p
}

func TestVFSEmptyIndex(t *testing.T) {
	path := buildPackage(t, map[string]string{})
	fs, err := Open(path, btreedb4.Config{})
	require.NoError(t, err)
	defer fs.Close()

	names, err := fs.ReadDir("/")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestVFSSingleFile(t *testing.T) {
	path := buildPackage(t, map[string]string{"/hello.txt": "hello world"})
	fs, err := Open(path, btreedb4.Config{})
	require.NoError(t, err)
	defer fs.Close()

	info, err := fs.Stat("/hello.txt")
	require.NoError(t, err)
	assert.False(t, info.IsDir)
	assert.EqualValues(t, len("hello world"), info.Size)

	content, err := fs.ReadFile("/hello.txt", 6, -1)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), content)

	content, err = fs.ReadFile("/hello.txt", 0, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), content)
}

func TestVFSNestedDirectories(t *testing.T) {
	path := buildPackage(t, map[string]string{
		"/items/sword.item": "sword",
		"/items/bow.item":   "bow",
		"/tiles/dirt.png":   "dirt",
	})
	fs, err := Open(path, btreedb4.Config{})
	require.NoError(t, err)
	defer fs.Close()

	root, err := fs.ReadDir("/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"items", "tiles"}, root)

	items, err := fs.ReadDir("/items")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sword.item", "bow.item"}, items)

	info, err := fs.Stat("/items")
	require.NoError(t, err)
	assert.True(t, info.IsDir)
}

func TestVFSMissingPath(t *testing.T) {
	path := buildPackage(t, map[string]string{"/a.txt": "a"})
	fs, err := Open(path, btreedb4.Config{})
	require.NoError(t, err)
	defer fs.Close()

	_, err = fs.Stat("/nope.txt")
	require.Error(t, err)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestVFSDirectoryFileConflict(t *testing.T) {
	// "/a" is a file in one entry and must act as a directory for
	// "/a/b" in another: the second insert should fail cleanly instead
	// of silently clobbering the first.
	path := buildPackage(t, map[string]string{
		"/a":   "file contents",
		"/a/b": "nested file",
	})
	_, err := Open(path, btreedb4.Config{})
	require.Error(t, err)
}

func TestVFSReadOnDirectoryFails(t *testing.T) {
	path := buildPackage(t, map[string]string{"/dir/file.txt": "x"})
	fs, err := Open(path, btreedb4.Config{})
	require.NoError(t, err)
	defer fs.Close()

	_, err = fs.ReadFile("/dir", 0, -1)
	require.Error(t, err)
	var isDir *IsADirError
	assert.ErrorAs(t, err, &isDir)
}
