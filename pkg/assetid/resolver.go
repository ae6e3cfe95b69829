package assetid

import (
	"os"
	"path/filepath"

	"github.com/pallet-engine/pallet/internal/vfs"
)

// Layer tags where a candidate comes from, mirroring pathpolicy.Layer but
// kept independent since the resolver's layering rule (directory mounts →
// user, archive mounts → shipped, dev override roots → dev) is a distinct
// concern from config-file resolution.
type Layer string

const (
	LayerDev     Layer = "dev"
	LayerShipped Layer = "shipped"
	LayerUser    Layer = "user"
)

// Candidate is one entry in the ordered resolution trail for an
// identifier. The resolver always produces the full trail, not just the
// winner, so diagnostics tooling can show why a particular mount won.
type Candidate struct {
	MountName string
	Order     int
	Layer     Layer
	Source    string // file path or VFS virtual path
	Exists    bool
}

// ResolvedLocation is the winning Candidate plus the identifier it answers.
type ResolvedLocation struct {
	ID        ID
	Candidate Candidate
}

// quakeVirtualRoot maps quake1/quakelive namespaces to their fixed VFS
// virtual root.
var quakeVirtualRoot = map[Namespace]string{
	Quake1:    "raw/quake",
	QuakeLive: "raw/quakelive",
}

// Resolver implements namespace-dependent resolution: engine identifiers
// probe a dev override root then a shipped content root on the local
// filesystem; quake1/quakelive identifiers are translated into a virtual
// path and resolved against the VFS's mount list.
type Resolver struct {
	DevRoot     string // e.g. "<repo>/.pallet"
	ShippedRoot string // e.g. "<install>/content"
	VFS         *vfs.FS

	// Stat is overridable for tests; defaults to os.Stat.
	Stat func(string) (os.FileInfo, error)
}

// NewResolver builds a Resolver with OS-backed defaults.
func NewResolver(devRoot, shippedRoot string, v *vfs.FS) *Resolver {
	return &Resolver{DevRoot: devRoot, ShippedRoot: shippedRoot, VFS: v, Stat: os.Stat}
}

func (r *Resolver) stat(path string) (os.FileInfo, error) {
	if r.Stat != nil {
		return r.Stat(path)
	}
	return os.Stat(path)
}

func (r *Resolver) exists(path string) bool {
	_, err := r.stat(path)
	return err == nil
}

// engineKindDir returns the on-disk directory name for an engine kind.
// test_map is special-cased to "test_maps", level to "levels"; config
// lives under "config" rather than "content".
func engineKindDir(kind Kind) (category, dir string) {
	switch kind {
	case KindTestMap:
		return "content", "test_maps"
	case KindLevel:
		return "content", "levels"
	case KindConfig:
		return "config", "config"
	default:
		return "content", string(kind)
	}
}

// Candidates returns the full ordered candidate trail for id.
func (r *Resolver) Candidates(id ID) []Candidate {
	switch id.Namespace {
	case Engine:
		return r.engineCandidates(id)
	case Quake1, QuakeLive:
		return r.quakeCandidates(id)
	default:
		return nil
	}
}

func (r *Resolver) engineCandidates(id ID) []Candidate {
	category, dir := engineKindDir(id.Kind)

	var out []Candidate
	order := 0

	if r.DevRoot != "" {
		devPath := filepath.Join(r.DevRoot, category, dir, id.Path)
		out = append(out, Candidate{
			MountName: "dev-override", Order: order, Layer: LayerDev,
			Source: devPath, Exists: r.exists(devPath),
		})
		order++
	}

	if r.ShippedRoot != "" {
		shippedPath := filepath.Join(r.ShippedRoot, dir, id.Path)
		out = append(out, Candidate{
			MountName: "shipped", Order: order, Layer: LayerShipped,
			Source: shippedPath, Exists: r.exists(shippedPath),
		})
	}

	return out
}

// quakeTail computes the kind-aware virtual path tail: raw/raw_other pass
// the identifier's path through verbatim, every other kind prepends the
// kind as a path segment.
func quakeTail(id ID) string {
	if id.Kind == KindRaw || id.Kind == KindRawOther {
		return id.Path
	}
	return string(id.Kind) + "/" + id.Path
}

func (r *Resolver) quakeCandidates(id ID) []Candidate {
	root, ok := quakeVirtualRoot[id.Namespace]
	if !ok || r.VFS == nil {
		return nil
	}

	virtual := root + "/" + quakeTail(id)

	var out []Candidate
	for i, m := range r.VFS.Mounts() {
		if m.Root != root {
			continue
		}

		layer := LayerUser
		if m.Kind == vfs.BackingPAK || m.Kind == vfs.BackingPK3 {
			layer = LayerShipped
		}

		exists := r.VFS.MountHas(i, virtual)
		out = append(out, Candidate{
			MountName: m.Source, Order: i, Layer: layer,
			Source: virtual, Exists: exists,
		})
	}

	return out
}

// Resolve returns the winning candidate (the first with Exists == true)
// along with the full trail for diagnostics.
func (r *Resolver) Resolve(id ID) (ResolvedLocation, []Candidate, bool) {
	trail := r.Candidates(id)
	for _, c := range trail {
		if c.Exists {
			return ResolvedLocation{ID: id, Candidate: c}, trail, true
		}
	}
	return ResolvedLocation{}, trail, false
}
