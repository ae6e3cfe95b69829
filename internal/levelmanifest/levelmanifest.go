// Package levelmanifest loads the per-level manifest (level.toml) sitting
// between a level name and its content: the geometry asset to cook, the
// engine assets to preload, and hard dependencies that must resolve
// before the level is playable. Manifests live under the content root's
// levels/ tree with dev overrides layered on top.
package levelmanifest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/pallet-engine/pallet/pkg/assetid"
)

// ManifestFileName is the fixed file name a level directory carries.
const ManifestFileName = "level.toml"

// Source tags which layer a manifest was found in.
type Source string

const (
	SourceDev     Source = "dev"
	SourceShipped Source = "shipped"
)

// Path is one located manifest: the engine:level identifier it answers,
// the concrete file, and the layer that won.
type Path struct {
	ID     assetid.ID
	File   string
	Source Source
}

// Manifest is a parsed level manifest. Geometry is the zero ID when the
// level ships no map geometry.
type Manifest struct {
	Version  int
	Geometry assetid.ID
	Assets   []assetid.ID
	Requires []assetid.ID
}

// Dependencies returns every asset the level needs, geometry first.
func (m Manifest) Dependencies() []assetid.ID {
	var deps []assetid.ID
	if m.Geometry.String() != "" {
		deps = append(deps, m.Geometry)
	}
	deps = append(deps, m.Assets...)
	deps = append(deps, m.Requires...)
	return deps
}

// manifestDoc is the raw TOML shape before identifier validation.
type manifestDoc struct {
	Version  int      `toml:"version"`
	Geometry string   `toml:"geometry"`
	Assets   []string `toml:"assets"`
	Requires []string `toml:"requires"`
}

// Load reads and validates one manifest file.
func Load(path string) (Manifest, error) {
	var doc manifestDoc
	meta, err := toml.DecodeFile(path, &doc)
	if err != nil {
		return Manifest{}, errors.Wrapf(err, "levelmanifest: %s", path)
	}

	m := Manifest{Version: 1}
	if meta.IsDefined("version") {
		if doc.Version != 1 {
			return Manifest{}, fmt.Errorf("levelmanifest: %s: unsupported version %d", path, doc.Version)
		}
		m.Version = doc.Version
	}

	if doc.Geometry != "" {
		id, err := assetid.Parse(doc.Geometry)
		if err != nil {
			return Manifest{}, errors.Wrapf(err, "levelmanifest: %s: geometry", path)
		}
		if id.Namespace != assetid.Quake1 || id.Kind != assetid.KindMap {
			return Manifest{}, fmt.Errorf("levelmanifest: %s: geometry must be quake1:map/<name>, got %s", path, id.String())
		}
		m.Geometry = id
	}

	if m.Assets, err = parseEngineIDs(path, "assets", doc.Assets); err != nil {
		return Manifest{}, err
	}
	if m.Requires, err = parseEngineIDs(path, "requires", doc.Requires); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func parseEngineIDs(path, field string, raw []string) ([]assetid.ID, error) {
	var out []assetid.ID
	for _, s := range raw {
		id, err := assetid.Parse(s)
		if err != nil {
			return nil, errors.Wrapf(err, "levelmanifest: %s: %s", path, field)
		}
		if id.Namespace != assetid.Engine {
			return nil, fmt.Errorf("levelmanifest: %s: %s entry must be engine namespace, got %s", path, field, id.String())
		}
		out = append(out, id)
	}
	return out, nil
}

// Locate resolves a level name to its manifest file: the dev override
// root's content/levels tree first, then the shipped levels tree, the
// same layering the asset resolver applies to every engine identifier.
func Locate(r *assetid.Resolver, name string) (Path, error) {
	id, err := assetid.New(assetid.Engine, assetid.KindLevel, name)
	if err != nil {
		return Path{}, errors.Wrapf(err, "levelmanifest: level name %q", name)
	}

	rel := filepath.Join(filepath.FromSlash(id.Path), ManifestFileName)
	if r.DevRoot != "" {
		dev := filepath.Join(r.DevRoot, "content", "levels", rel)
		if fileExists(dev) {
			return Path{ID: id, File: dev, Source: SourceDev}, nil
		}
	}
	if r.ShippedRoot != "" {
		shipped := filepath.Join(r.ShippedRoot, "levels", rel)
		if fileExists(shipped) {
			return Path{ID: id, File: shipped, Source: SourceShipped}, nil
		}
	}
	return Path{}, fmt.Errorf("levelmanifest: no manifest found for %s", id.String())
}

// Discover walks both layers' levels trees for level.toml files. A dev
// override shadows the shipped manifest with the same identifier; results
// come back sorted by canonical id.
func Discover(r *assetid.Resolver) ([]Path, error) {
	found := make(map[string]Path)

	if r.ShippedRoot != "" {
		if err := collect(filepath.Join(r.ShippedRoot, "levels"), SourceShipped, found); err != nil {
			return nil, err
		}
	}
	if r.DevRoot != "" {
		if err := collect(filepath.Join(r.DevRoot, "content", "levels"), SourceDev, found); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(found))
	for k := range found {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Path, 0, len(keys))
	for _, k := range keys {
		out = append(out, found[k])
	}
	return out, nil
}

func collect(root string, source Source, found map[string]Path) error {
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != ManifestFileName {
			return nil
		}
		rel, err := filepath.Rel(root, filepath.Dir(path))
		if err != nil {
			return err
		}
		name := strings.Trim(filepath.ToSlash(rel), "/")
		if name == "" || name == "." {
			return fmt.Errorf("levelmanifest: manifest %s sits at the levels root, not in a level directory", path)
		}
		id, err := assetid.New(assetid.Engine, assetid.KindLevel, name)
		if err != nil {
			return errors.Wrapf(err, "levelmanifest: manifest %s", path)
		}
		found[id.String()] = Path{ID: id, File: path, Source: source}
		return nil
	})
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
