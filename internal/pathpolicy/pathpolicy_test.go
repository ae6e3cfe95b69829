package pathpolicy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakePolicy(t *testing.T, exists map[string]bool, env map[string]string) *Policy {
	t.Helper()
	dir := t.TempDir()
	p := New("pallet", filepath.Join(dir, "dev"), filepath.Join(dir, "shipped"))
	p.Getenv = func(k string) string { return env[k] }
	p.Stat = func(path string) (os.FileInfo, error) {
		if exists[path] {
			return nil, nil
		}
		return nil, os.ErrNotExist
	}
	return p
}

func TestDevOverridesShipped(t *testing.T) {
	dir := t.TempDir()
	devPath := filepath.Join(dir, "dev", "script", "intro.txt")
	shippedPath := filepath.Join(dir, "shipped", "script", "intro.txt")

	p := fakePolicy(t, map[string]bool{devPath: true, shippedPath: true}, nil)
	// Force consistent roots with our temp dir.
	p.DevRoot = filepath.Join(dir, "dev")
	p.ShippedDir = filepath.Join(dir, "shipped")

	path, _, err := p.Resolve(KindScript, "intro.txt", "", false)
	require.NoError(t, err)
	assert.Equal(t, devPath, path)
}

func TestRemovingDevFileSwitchesToShipped(t *testing.T) {
	dir := t.TempDir()
	shippedPath := filepath.Join(dir, "shipped", "script", "intro.txt")

	p := fakePolicy(t, map[string]bool{shippedPath: true}, nil)
	p.DevRoot = filepath.Join(dir, "dev")
	p.ShippedDir = filepath.Join(dir, "shipped")

	path, _, err := p.Resolve(KindScript, "intro.txt", "", false)
	require.NoError(t, err)
	assert.Equal(t, shippedPath, path)
}

func TestEnvOverrideWins(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "custom.txt")
	shippedPath := filepath.Join(dir, "shipped", "script", "intro.txt")

	p := fakePolicy(t, map[string]bool{envPath: true, shippedPath: true}, map[string]string{
		"PALLET_CONFIG_OVERRIDE_SCRIPT": envPath,
	})
	p.DevRoot = filepath.Join(dir, "dev")
	p.ShippedDir = filepath.Join(dir, "shipped")

	path, _, err := p.Resolve(KindScript, "intro.txt", "", false)
	require.NoError(t, err)
	assert.Equal(t, envPath, path)
}

func TestNoCandidateErrorsWithoutBuiltin(t *testing.T) {
	p := fakePolicy(t, nil, nil)
	_, _, err := p.Resolve(KindScript, "missing.txt", "", false)
	assert.Error(t, err)
}

func TestBuiltinSentinelWhenAllowed(t *testing.T) {
	p := fakePolicy(t, nil, nil)
	path, trail, err := p.Resolve(KindScript, "missing.txt", "", true)
	require.NoError(t, err)
	assert.NotEmpty(t, path)
	assert.Equal(t, LayerBuiltin, trail[len(trail)-1].Layer)
}

func TestUserConfigRootPrecedence(t *testing.T) {
	p := fakePolicy(t, nil, map[string]string{
		"APPDATA":         "",
		"XDG_CONFIG_HOME": "/xdg",
		"HOME":            "/home/user",
	})
	assert.Equal(t, "/xdg/pallet", p.UserConfigRoot())

	p.Getenv = func(k string) string {
		if k == "HOME" {
			return "/home/user"
		}
		return ""
	}
	assert.Equal(t, "/home/user/.config/pallet", p.UserConfigRoot())
}
