// Package vfs implements a read-only union-mount virtual filesystem over
// plain directories and Quake PAK/PK3 archives.
package vfs

import (
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	log "github.com/pallet-engine/pallet/pkg/palletlog"
)

// ErrUnsafePath is returned by Read/List when the requested path escapes
// the normalisation rules (leading slash, "..", empty segment, ":").
var ErrUnsafePath = errors.New("vfs: unsafe path")

// ErrNotFound is returned when no mount contains the requested path.
var ErrNotFound = errors.New("vfs: not found")

// BackingKind is the closed set of mount backing types.
type BackingKind string

const (
	BackingDirectory BackingKind = "directory"
	BackingPAK       BackingKind = "pak"
	BackingPK3       BackingKind = "pk3"
)

// backing is the internal interface each mount kind implements.
type backing interface {
	// read returns the bytes at virtual path rel (relative to the mount's
	// root), or an error satisfying os.IsNotExist.
	read(rel string) ([]byte, error)
	// list returns direct child entry names under rel.
	list(rel string) ([]string, error)
	// has reports existence of rel without materialising its bytes.
	has(rel string) bool
}

// Mount is one entry in the union mount list.
type Mount struct {
	Root   string // virtual root prefix, e.g. "raw/quake"
	Kind   BackingKind
	Source string // backing directory path or archive file path

	backing backing
}

// Provenance describes where a read's bytes came from.
type Provenance struct {
	MountRoot string
	Kind      BackingKind
	Source    string
}

// FS is the union-mount filesystem. AddDirectory, AddPAK and AddPK3 append
// mounts under the write lock; reads take the read lock.
type FS struct {
	mu     sync.RWMutex
	mounts []*Mount

	dirCache *cache.Cache // records each opened PK3's entry count
}

// New returns an empty FS.
func New() *FS {
	return &FS{
		dirCache: cache.New(cache.NoExpiration, 0),
	}
}

// Normalize enforces: forward-slash separators, no leading slash, no empty
// components, no "." or "..", no ":" anywhere.
func Normalize(p string) (string, error) {
	if strings.Contains(p, ":") {
		return "", ErrUnsafePath
	}
	p = strings.ReplaceAll(p, `\`, "/")
	if strings.HasPrefix(p, "/") {
		return "", ErrUnsafePath
	}
	if strings.Contains(p, "//") {
		return "", ErrUnsafePath
	}
	// Disallow any leading/trailing whitespace in the whole path or any
	// segment — a lone " /x" style path is unsafe.
	if strings.TrimSpace(p) != p {
		return "", ErrUnsafePath
	}

	segs := strings.Split(p, "/")
	clean := make([]string, 0, len(segs))
	for _, s := range segs {
		if s == "" {
			return "", ErrUnsafePath
		}
		if s == ".." || s == "." {
			return "", ErrUnsafePath
		}
		if strings.TrimSpace(s) != s {
			return "", ErrUnsafePath
		}
		clean = append(clean, s)
	}

	return path.Join(clean...), nil
}

// AddDirectory mounts a plain on-disk directory at virtual root.
func (f *FS) AddDirectory(root, sourceDir string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mounts = append(f.mounts, &Mount{
		Root: root, Kind: BackingDirectory, Source: sourceDir,
		backing: &dirBacking{base: sourceDir},
	})
	log.Debug("vfs: mounted directory %s at %s", sourceDir, root)
}

// AddPAK eagerly parses a Quake1-style PAK file's directory into memory
// and mounts it at virtual root.
func (f *FS) AddPAK(root, pakPath string) error {
	b, err := newPAKBacking(pakPath)
	if err != nil {
		return errors.Wrapf(err, "vfs: mounting pak %s", pakPath)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mounts = append(f.mounts, &Mount{Root: root, Kind: BackingPAK, Source: pakPath, backing: b})
	log.Debug("vfs: mounted pak %s at %s (%d entries)", pakPath, root, b.count())
	return nil
}

// AddPK3 scans a PK3 (zip) archive's central directory and mounts it at
// virtual root; individual entries are opened lazily on read.
func (f *FS) AddPK3(root, pk3Path string) error {
	b, err := newPK3Backing(pk3Path, f.dirCache)
	if err != nil {
		return errors.Wrapf(err, "vfs: mounting pk3 %s", pk3Path)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mounts = append(f.mounts, &Mount{Root: root, Kind: BackingPK3, Source: pk3Path, backing: b})
	log.Debug("vfs: mounted pk3 %s at %s", pk3Path, root)
	return nil
}

// relativeTo strips a mount's root prefix from a normalised virtual path,
// returning (rel, true) if p is under root.
func relativeTo(root, p string) (string, bool) {
	if root == "" {
		return p, true
	}
	if p == root {
		return "", true
	}
	prefix := root + "/"
	if strings.HasPrefix(p, prefix) {
		return p[len(prefix):], true
	}
	return "", false
}

// Read returns the bytes at virtual path p from the first mount (in
// insertion order) that contains it, along with provenance.
func (f *FS) Read(p string) ([]byte, Provenance, error) {
	norm, err := Normalize(p)
	if err != nil {
		return nil, Provenance{}, err
	}

	f.mu.RLock()
	mounts := append([]*Mount(nil), f.mounts...)
	f.mu.RUnlock()

	for _, m := range mounts {
		rel, ok := relativeTo(m.Root, norm)
		if !ok {
			continue
		}
		data, err := m.backing.read(rel)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, Provenance{}, err
		}
		return data, Provenance{MountRoot: m.Root, Kind: m.Kind, Source: m.Source}, nil
	}

	return nil, Provenance{}, errors.Wrapf(ErrNotFound, "path %q", norm)
}

// List merges directory entries across all mounts containing dir, with
// first-seen precedence (an entry from an earlier mount shadows a same-named
// entry from a later one).
func (f *FS) List(dir string) ([]string, error) {
	norm, err := Normalize(dir)
	if err != nil {
		// Root listing is the only case where an empty path is legal.
		if dir != "" {
			return nil, err
		}
		norm = ""
	}

	f.mu.RLock()
	mounts := append([]*Mount(nil), f.mounts...)
	f.mu.RUnlock()

	seen := map[string]bool{}
	var out []string

	for _, m := range mounts {
		rel, ok := relativeTo(m.Root, norm)
		if !ok {
			continue
		}
		entries, err := m.backing.list(rel)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}

	sort.Strings(out)
	return out, nil
}

// Exists reports whether p resolves to bytes in some mount, along with
// provenance. It performs a full Read and discards the bytes; MountHas
// checks a single mount through its backing without reading.
func (f *FS) Exists(p string) (bool, Provenance) {
	_, prov, err := f.Read(p)
	if err != nil {
		return false, Provenance{}
	}
	return true, prov
}

// MountHas reports whether the mount at the given index (as returned by
// Mounts) contains virtual path p, without reading its bytes. Used by the
// resolver to build a full per-mount candidate trail for diagnostics.
func (f *FS) MountHas(idx int, p string) bool {
	norm, err := Normalize(p)
	if err != nil {
		return false
	}

	f.mu.RLock()
	if idx < 0 || idx >= len(f.mounts) {
		f.mu.RUnlock()
		return false
	}
	m := f.mounts[idx]
	f.mu.RUnlock()

	rel, ok := relativeTo(m.Root, norm)
	if !ok {
		return false
	}
	return m.backing.has(rel)
}

// Mounts returns a copy of the current mount list, in insertion order.
func (f *FS) Mounts() []Mount {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Mount, len(f.mounts))
	for i, m := range f.mounts {
		out[i] = *m
	}
	return out
}
