package levelmanifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pallet-engine/pallet/internal/vfs"
	"github.com/pallet-engine/pallet/pkg/assetid"
)

func writeManifest(t *testing.T, root, level, contents string) string {
	t.Helper()
	dir := filepath.Join(root, filepath.FromSlash(level))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, ManifestFileName)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadManifest(t *testing.T) {
	root := t.TempDir()
	path := writeManifest(t, root, "e1m1", `
version = 1
geometry = "quake1:map/e1m1"
assets = ["engine:texture/ui/crosshair.png", "engine:text/briefings/e1m1.txt"]
requires = ["engine:script/levels/e1m1_rules.cfg"]
`)

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Version)
	assert.Equal(t, "quake1:map/e1m1", m.Geometry.String())
	require.Len(t, m.Assets, 2)
	assert.Equal(t, "engine:texture/ui/crosshair.png", m.Assets[0].String())
	require.Len(t, m.Requires, 1)

	deps := m.Dependencies()
	require.Len(t, deps, 4)
	assert.Equal(t, m.Geometry, deps[0], "geometry leads the dependency list")
}

func TestLoadManifestDefaultsVersion(t *testing.T) {
	root := t.TempDir()
	path := writeManifest(t, root, "lobby", `assets = ["engine:blob/lobby/props.bin"]`)

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Version)
	assert.Equal(t, "", m.Geometry.String(), "geometry is optional")
	require.Len(t, m.Dependencies(), 1)
}

func TestLoadManifestRejectsBadFields(t *testing.T) {
	root := t.TempDir()

	path := writeManifest(t, root, "v2", "version = 2\n")
	_, err := Load(path)
	assert.Error(t, err, "unsupported version")

	path = writeManifest(t, root, "badgeom", `geometry = "engine:blob/x"`)
	_, err = Load(path)
	assert.Error(t, err, "geometry must be quake1:map")

	path = writeManifest(t, root, "badasset", `assets = ["quake1:map/e1m1"]`)
	_, err = Load(path)
	assert.Error(t, err, "assets must be engine namespace")
}

func TestLocatePrefersDevOverride(t *testing.T) {
	devRoot := t.TempDir()
	shippedRoot := t.TempDir()
	resolver := assetid.NewResolver(devRoot, shippedRoot, vfs.New())

	writeManifest(t, filepath.Join(shippedRoot, "levels"), "e1m1", "version = 1\n")

	p, err := Locate(resolver, "e1m1")
	require.NoError(t, err)
	assert.Equal(t, SourceShipped, p.Source)
	assert.Equal(t, "engine:level/e1m1", p.ID.String())

	writeManifest(t, filepath.Join(devRoot, "content", "levels"), "e1m1", "version = 1\n")
	p, err = Locate(resolver, "e1m1")
	require.NoError(t, err)
	assert.Equal(t, SourceDev, p.Source, "dev override wins")

	_, err = Locate(resolver, "no_such_level")
	assert.Error(t, err)
}

func TestDiscoverMergesLayers(t *testing.T) {
	devRoot := t.TempDir()
	shippedRoot := t.TempDir()
	resolver := assetid.NewResolver(devRoot, shippedRoot, vfs.New())

	writeManifest(t, filepath.Join(shippedRoot, "levels"), "e1m1", "version = 1\n")
	writeManifest(t, filepath.Join(shippedRoot, "levels"), "hub/lobby", "version = 1\n")
	devPath := writeManifest(t, filepath.Join(devRoot, "content", "levels"), "e1m1", "version = 1\n")

	found, err := Discover(resolver)
	require.NoError(t, err)
	require.Len(t, found, 2)

	// Sorted by canonical id: engine:level/e1m1 then engine:level/hub/lobby.
	assert.Equal(t, "engine:level/e1m1", found[0].ID.String())
	assert.Equal(t, SourceDev, found[0].Source, "dev manifest shadows the shipped one")
	assert.Equal(t, devPath, found[0].File)
	assert.Equal(t, "engine:level/hub/lobby", found[1].ID.String())
	assert.Equal(t, SourceShipped, found[1].Source)
}
