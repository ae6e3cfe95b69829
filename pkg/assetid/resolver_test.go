package assetid

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pallet-engine/pallet/internal/vfs"
)

func TestEngineResolverDevOverridesShipped(t *testing.T) {
	dir := t.TempDir()
	devRoot := filepath.Join(dir, "dev")
	shippedRoot := filepath.Join(dir, "shipped")

	devPath := filepath.Join(devRoot, "content", "text", "fixtures", "golden.cfg")
	shippedPath := filepath.Join(shippedRoot, "text", "fixtures", "golden.cfg")
	require.NoError(t, os.MkdirAll(filepath.Dir(devPath), 0755))
	require.NoError(t, os.WriteFile(devPath, []byte("dev"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Dir(shippedPath), 0755))
	require.NoError(t, os.WriteFile(shippedPath, []byte("shipped"), 0644))

	r := NewResolver(devRoot, shippedRoot, nil)
	id, err := New(Engine, KindText, "fixtures/golden.cfg")
	require.NoError(t, err)

	loc, trail, ok := r.Resolve(id)
	require.True(t, ok)
	assert.Equal(t, devPath, loc.Candidate.Source)
	assert.Equal(t, LayerDev, loc.Candidate.Layer)
	require.Len(t, trail, 2)
}

func TestEngineResolverFallsBackToShipped(t *testing.T) {
	dir := t.TempDir()
	devRoot := filepath.Join(dir, "dev")
	shippedRoot := filepath.Join(dir, "shipped")
	shippedPath := filepath.Join(shippedRoot, "text", "fixtures", "golden.cfg")
	require.NoError(t, os.MkdirAll(filepath.Dir(shippedPath), 0755))
	require.NoError(t, os.WriteFile(shippedPath, []byte("shipped"), 0644))

	r := NewResolver(devRoot, shippedRoot, nil)
	id, err := New(Engine, KindText, "fixtures/golden.cfg")
	require.NoError(t, err)

	loc, _, ok := r.Resolve(id)
	require.True(t, ok)
	assert.Equal(t, shippedPath, loc.Candidate.Source)
	assert.Equal(t, LayerShipped, loc.Candidate.Layer)
}

func TestEngineResolverTestMapDirectory(t *testing.T) {
	dir := t.TempDir()
	shippedRoot := filepath.Join(dir, "shipped")
	p := filepath.Join(shippedRoot, "test_maps", "box.map")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte("map"), 0644))

	r := NewResolver("", shippedRoot, nil)
	id, err := New(Engine, KindTestMap, "box.map")
	require.NoError(t, err)

	loc, _, ok := r.Resolve(id)
	require.True(t, ok)
	assert.Equal(t, p, loc.Candidate.Source)
}

func TestQuakeResolverRawPassthrough(t *testing.T) {
	fs := vfs.New()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "maps"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "maps", "e1m1.bsp"), []byte("bsp"), 0644))
	fs.AddDirectory("raw/quake", dir)

	r := NewResolver("", "", fs)
	id, err := New(Quake1, KindRaw, "maps/e1m1.bsp")
	require.NoError(t, err)

	loc, _, ok := r.Resolve(id)
	require.True(t, ok)
	assert.Equal(t, "raw/quake/maps/e1m1.bsp", loc.Candidate.Source)
}

func TestQuakeResolverPrependsKind(t *testing.T) {
	fs := vfs.New()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "texture"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "texture", "wall.tga"), []byte("tex"), 0644))
	fs.AddDirectory("raw/quake", dir)

	r := NewResolver("", "", fs)
	id, err := New(Quake1, KindTexture, "wall.tga")
	require.NoError(t, err)

	loc, _, ok := r.Resolve(id)
	require.True(t, ok)
	assert.Equal(t, "raw/quake/texture/wall.tga", loc.Candidate.Source)
}
