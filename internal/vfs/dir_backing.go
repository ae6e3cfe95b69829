package vfs

import (
	"os"
	"path/filepath"
	"strings"
)

// dirBacking serves a plain on-disk directory. Path-joining rejects
// anything but plain components — normalisation at the FS layer already
// stripped "..", leading slashes, and empty segments, but we re-validate
// defensively since a backing may be invoked directly in tests.
type dirBacking struct {
	base string
}

func safeJoin(base, rel string) (string, error) {
	if rel == "" {
		return base, nil
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", ErrUnsafePath
		}
	}
	return filepath.Join(base, filepath.FromSlash(rel)), nil
}

func (d *dirBacking) read(rel string) ([]byte, error) {
	full, err := safeJoin(d.base, rel)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

func (d *dirBacking) has(rel string) bool {
	full, err := safeJoin(d.base, rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

func (d *dirBacking) list(rel string) ([]string, error) {
	full, err := safeJoin(d.base, rel)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
