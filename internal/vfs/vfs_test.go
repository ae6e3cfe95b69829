package vfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnsafePaths(t *testing.T) {
	fs := New()
	fs.AddDirectory("", t.TempDir())

	for _, p := range []string{"../x", "raw/q/../other", " /x", "a//b", "a:b"} {
		_, _, err := fs.Read(p)
		assert.ErrorIs(t, err, ErrUnsafePath, "path %q", p)
	}
}

func TestFirstMatchingMountWins(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dirA, "x.txt"), []byte("from A"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dirB, "x.txt"), []byte("from B"), 0644))

	fs := New()
	fs.AddDirectory("", dirA)
	fs.AddDirectory("", dirB)

	data, prov, err := fs.Read("x.txt")
	require.NoError(t, err)
	assert.Equal(t, "from A", string(data))
	assert.Equal(t, dirA, prov.Source)
}

func TestListMergesFirstSeen(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dirA, "shared.txt"), []byte("A"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dirA, "only_a.txt"), []byte("A"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dirB, "shared.txt"), []byte("B"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dirB, "only_b.txt"), []byte("B"), 0644))

	fs := New()
	fs.AddDirectory("", dirA)
	fs.AddDirectory("", dirB)

	names, err := fs.List("")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"shared.txt", "only_a.txt", "only_b.txt"}, names)

	data, _, err := fs.Read("shared.txt")
	require.NoError(t, err)
	assert.Equal(t, "A", string(data))
}

func TestNotFound(t *testing.T) {
	fs := New()
	fs.AddDirectory("", t.TempDir())
	_, _, err := fs.Read("nope.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}
