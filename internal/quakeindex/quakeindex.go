// Package quakeindex scans a legacy Quake install (loose files under id1/
// plus its pak archives) into a content index: every entry classified by
// extension, hashed, and attributed to the mount that wins the layered
// lookup. The index is cached on disk under the content root and keyed by
// a fingerprint of the mount set, so an unchanged install never rescans.
package quakeindex

import (
	"archive/zip"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/pallet-engine/pallet/internal/buildmanifest"
	"github.com/pallet-engine/pallet/internal/vfs"
	"github.com/pallet-engine/pallet/pkg/assetid"
)

const IndexVersion = 1

// DefaultIndexRelative is the cached index location under the content
// root.
const DefaultIndexRelative = "build/compat/quake1/index.txt"

// QuakeMountPoint is the virtual root every quake1 mount lands under.
const QuakeMountPoint = "raw/quake"

// AssetKind classifies an entry by its file extension.
type AssetKind string

const (
	KindBSP      AssetKind = "bsp"
	KindTexture  AssetKind = "texture"
	KindSound    AssetKind = "sound"
	KindModel    AssetKind = "model"
	KindWAD      AssetKind = "wad"
	KindCfg      AssetKind = "cfg"
	KindRawOther AssetKind = "raw_other"
)

// Classify maps an entry path to its asset kind by extension.
func Classify(path string) AssetKind {
	lower := strings.ToLower(path)
	ext := ""
	if i := strings.LastIndexByte(lower, '.'); i >= 0 {
		ext = lower[i+1:]
	}
	switch ext {
	case "bsp":
		return KindBSP
	case "lmp", "pcx", "tga", "png":
		return KindTexture
	case "wav", "ogg", "mp3":
		return KindSound
	case "mdl", "md2", "md3":
		return KindModel
	case "wad":
		return KindWAD
	case "cfg":
		return KindCfg
	default:
		return KindRawOther
	}
}

func parseAssetKind(s string) (AssetKind, bool) {
	switch AssetKind(s) {
	case KindBSP, KindTexture, KindSound, KindModel, KindWAD, KindCfg, KindRawOther:
		return AssetKind(s), true
	default:
		return "", false
	}
}

// Source records where an entry's bytes physically live: a loose file
// root, or an archive plus the entry's position within it. FileIndex and
// Offset are -1 where the source kind has no such notion.
type Source struct {
	Kind      string // "loose" | "pak" | "pk3"
	Path      string
	FileIndex int
	Offset    int64
}

// Entry is one indexed file, attributed to the mount it came from.
type Entry struct {
	Path       string
	Kind       AssetKind
	Size       uint64
	Hash       uint64 // FNV-1a of the entry bytes
	MountOrder int
	MountKind  vfs.BackingKind
	Source     Source
}

// DerivedID maps an entry onto the asset-identifier grammar where one
// exists: maps/<m>.bsp becomes quake1:map/<m>, sound/<s>.<ext> becomes
// quake1:sound/<s>. Other kinds have no derived identity.
func (e Entry) DerivedID() (assetid.ID, bool) {
	switch e.Kind {
	case KindBSP:
		rest, ok := strings.CutPrefix(e.Path, "maps/")
		if !ok {
			return assetid.ID{}, false
		}
		name, ok := strings.CutSuffix(rest, ".bsp")
		if !ok {
			return assetid.ID{}, false
		}
		id, err := assetid.New(assetid.Quake1, assetid.KindMap, name)
		return id, err == nil
	case KindSound:
		rest, ok := strings.CutPrefix(e.Path, "sound/")
		if !ok {
			return assetid.ID{}, false
		}
		if i := strings.LastIndexByte(rest, '.'); i > 0 {
			rest = rest[:i]
		}
		id, err := assetid.New(assetid.Quake1, assetid.KindSound, rest)
		return id, err == nil
	default:
		return assetid.ID{}, false
	}
}

// GeometryRawID translates a quake1:map identifier into the raw archive
// path its bytes live at (maps/<name>.bsp) — the inverse of DerivedID,
// for callers that need the physical entry behind a derived identity.
func GeometryRawID(id assetid.ID) (assetid.ID, bool) {
	if id.Namespace != assetid.Quake1 || id.Kind != assetid.KindMap {
		return assetid.ID{}, false
	}
	raw, err := assetid.New(assetid.Quake1, assetid.KindRaw, "maps/"+id.Path+".bsp")
	return raw, err == nil
}

// Mount is one layer of the scanned install: the loose base directory at
// order 0, then the pak archives. Lower order wins duplicate paths.
type Mount struct {
	Order      int
	Kind       vfs.BackingKind
	MountPoint string
	Source     string
	Size       uint64
	Modified   int64 // unix seconds, 0 when unknowable
}

// Index is the scanned content of one Quake install.
type Index struct {
	Version     int
	Fingerprint string
	Mounts      []Mount
	Entries     map[string][]Entry // path -> candidates, winner first
}

// Which reports every candidate for a path, winner first.
type Which struct {
	Path       string
	Winner     Entry
	Candidates []Entry
}

// Duplicate is one path served by more than one mount.
type Duplicate struct {
	Path   string
	Winner Entry
	Others []Entry
}

// DefaultIndexPath returns the cached index file location for a content
// root.
func DefaultIndexPath(contentRoot string) string {
	return filepath.Join(contentRoot, filepath.FromSlash(DefaultIndexRelative))
}

// EntryCount sums candidates across every path.
func (x *Index) EntryCount() int {
	n := 0
	for _, entries := range x.Entries {
		n += len(entries)
	}
	return n
}

// ManifestRecord renders the index as the build manifest's quake_index
// record line.
func (x *Index) ManifestRecord() buildmanifest.QuakeIndexEntry {
	return buildmanifest.QuakeIndexEntry{
		Version:     strconv.Itoa(x.Version),
		Fingerprint: x.Fingerprint,
		Count:       x.EntryCount(),
	}
}

// SortedPaths returns the indexed entry paths in lexical order.
func (x *Index) SortedPaths() []string {
	paths := make([]string, 0, len(x.Entries))
	for p := range x.Entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Duplicates lists every path with more than one candidate mount.
func (x *Index) Duplicates() []Duplicate {
	var out []Duplicate
	for _, p := range x.SortedPaths() {
		entries := x.Entries[p]
		if len(entries) > 1 {
			out = append(out, Duplicate{Path: p, Winner: entries[0], Others: entries[1:]})
		}
	}
	return out
}

// Which resolves one path to its winning entry plus the full candidate
// list, for "why did this file win" diagnostics.
func (x *Index) Which(path string) (Which, bool) {
	key, ok := normalizeEntryPath(path)
	if !ok {
		return Which{}, false
	}
	entries, ok := x.Entries[key]
	if !ok || len(entries) == 0 {
		return Which{}, false
	}
	return Which{Path: key, Winner: entries[0], Candidates: entries}, true
}

// BuildFromQuakeDir scans a Quake install directory (or its id1/
// subdirectory when present) into a fresh Index.
func BuildFromQuakeDir(quakeDir string) (*Index, error) {
	base := quakeBaseDir(quakeDir)
	mounts, err := buildQuakeMounts(base)
	if err != nil {
		return nil, err
	}
	entries, err := buildEntries(mounts)
	if err != nil {
		return nil, err
	}
	return &Index{
		Version:     IndexVersion,
		Fingerprint: fingerprintMounts(mounts),
		Mounts:      mounts,
		Entries:     entries,
	}, nil
}

// LoadCached reads the on-disk index under contentRoot and returns it only
// when its fingerprint still matches the install's current mount set; a
// stale or missing cache returns nil.
func LoadCached(contentRoot, quakeDir string) (*Index, error) {
	path := DefaultIndexPath(contentRoot)
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	idx, err := ReadFrom(path)
	if err != nil {
		return nil, err
	}
	mounts, err := buildQuakeMounts(quakeBaseDir(quakeDir))
	if err != nil {
		return nil, err
	}
	if idx.Fingerprint != fingerprintMounts(mounts) {
		return nil, nil
	}
	return idx, nil
}

// LoadOrBuild returns the cached index when fresh, otherwise rescans.
func LoadOrBuild(contentRoot, quakeDir string) (*Index, error) {
	idx, err := LoadCached(contentRoot, quakeDir)
	if err != nil {
		return nil, err
	}
	if idx != nil {
		return idx, nil
	}
	return BuildFromQuakeDir(quakeDir)
}

func quakeBaseDir(quakeDir string) string {
	id1 := filepath.Join(quakeDir, "id1")
	if info, err := os.Stat(id1); err == nil && info.IsDir() {
		return id1
	}
	return quakeDir
}

// buildQuakeMounts enumerates the install's layers: the loose directory at
// order 0, then pak9..pak0 at orders 1..N — a higher-numbered pak
// overrides a lower one, so it gets the lower (winning) order.
func buildQuakeMounts(baseDir string) ([]Mount, error) {
	info, err := os.Stat(baseDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("quakeindex: quake dir not found: %s", baseDir)
	}

	mounts := []Mount{{
		Order:      0,
		Kind:       vfs.BackingDirectory,
		MountPoint: QuakeMountPoint,
		Source:     baseDir,
		Modified:   modifiedUnix(baseDir),
	}}

	order := 1
	for i := 9; i >= 0; i-- {
		path := filepath.Join(baseDir, fmt.Sprintf("pak%d.pak", i))
		fi, err := os.Stat(path)
		if err != nil || fi.IsDir() {
			continue
		}
		mounts = append(mounts, Mount{
			Order:      order,
			Kind:       vfs.BackingPAK,
			MountPoint: QuakeMountPoint,
			Source:     path,
			Size:       uint64(fi.Size()),
			Modified:   modifiedUnix(path),
		})
		order++
	}
	return mounts, nil
}

func modifiedUnix(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.ModTime().Unix()
}

// fingerprintMounts hashes the mount set (order, kind, source, size,
// mtime) so the cached index self-invalidates when the install changes.
func fingerprintMounts(mounts []Mount) string {
	var b strings.Builder
	fmt.Fprintf(&b, "version=%d\n", IndexVersion)
	for _, m := range mounts {
		fmt.Fprintf(&b, "%d|%s|%s|%s|%d|%d\n",
			m.Order, m.Kind, m.MountPoint, m.Source, m.Size, m.Modified)
	}
	return fmt.Sprintf("%016x", fnv1a64([]byte(b.String())))
}

func fnv1a64(data []byte) uint64 {
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}

func buildEntries(mounts []Mount) (map[string][]Entry, error) {
	entries := make(map[string][]Entry)
	for _, m := range mounts {
		var err error
		switch m.Kind {
		case vfs.BackingDirectory:
			err = collectLooseEntries(m, entries)
		case vfs.BackingPAK:
			err = collectPAKEntries(m, entries)
		case vfs.BackingPK3:
			err = collectPK3Entries(m, entries)
		}
		if err != nil {
			return nil, err
		}
	}
	for _, candidates := range entries {
		sortEntries(candidates)
	}
	return entries, nil
}

// sortEntries orders a path's candidates winner-first: lowest mount order,
// ties broken by source kind label for determinism.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].MountOrder != entries[j].MountOrder {
			return entries[i].MountOrder < entries[j].MountOrder
		}
		return entries[i].Source.Kind < entries[j].Source.Kind
	})
}

func collectLooseEntries(m Mount, entries map[string][]Entry) error {
	var rels []string
	err := filepath.WalkDir(m.Source, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(m.Source, path)
		if err != nil {
			return err
		}
		rels = append(rels, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "quakeindex: walking %s", m.Source)
	}
	sort.Strings(rels)

	for _, rel := range rels {
		if isContainerAsset(rel) {
			continue
		}
		path, ok := normalizeEntryPath(rel)
		if !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.Source, filepath.FromSlash(rel)))
		if err != nil {
			return errors.Wrapf(err, "quakeindex: reading %s", rel)
		}
		entries[path] = append(entries[path], Entry{
			Path:       path,
			Kind:       Classify(path),
			Size:       uint64(len(data)),
			Hash:       fnv1a64(data),
			MountOrder: m.Order,
			MountKind:  m.Kind,
			Source:     Source{Kind: "loose", Path: m.Source, FileIndex: -1, Offset: -1},
		})
	}
	return nil
}

func collectPAKEntries(m Mount, entries map[string][]Entry) error {
	dir, err := vfs.ReadPAKDirectory(m.Source)
	if err != nil {
		return errors.Wrapf(err, "quakeindex: scanning pak %s", m.Source)
	}
	for i, rec := range dir {
		path, ok := normalizeEntryPath(rec.Name)
		if !ok {
			continue
		}
		data, err := vfs.ReadPAKEntryData(m.Source, rec)
		if err != nil {
			return errors.Wrapf(err, "quakeindex: reading pak entry %s", rec.Name)
		}
		entries[path] = append(entries[path], Entry{
			Path:       path,
			Kind:       Classify(path),
			Size:       uint64(len(data)),
			Hash:       fnv1a64(data),
			MountOrder: m.Order,
			MountKind:  m.Kind,
			Source:     Source{Kind: "pak", Path: m.Source, FileIndex: i, Offset: int64(rec.Offset)},
		})
	}
	return nil
}

func collectPK3Entries(m Mount, entries map[string][]Entry) error {
	zr, err := zip.OpenReader(m.Source)
	if err != nil {
		return errors.Wrapf(err, "quakeindex: opening pk3 %s", m.Source)
	}
	defer zr.Close()

	for i, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		path, ok := normalizeEntryPath(f.Name)
		if !ok {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return errors.Wrapf(err, "quakeindex: opening pk3 entry %s", f.Name)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return errors.Wrapf(err, "quakeindex: reading pk3 entry %s", f.Name)
		}
		entries[path] = append(entries[path], Entry{
			Path:       path,
			Kind:       Classify(path),
			Size:       uint64(len(data)),
			Hash:       fnv1a64(data),
			MountOrder: m.Order,
			MountKind:  m.Kind,
			Source:     Source{Kind: "pk3", Path: m.Source, FileIndex: i, Offset: -1},
		})
	}
	return nil
}

func isContainerAsset(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".pak") || strings.HasSuffix(lower, ".pk3")
}

// normalizeEntryPath lowercases and slash-normalises an archive or loose
// file name, rejecting anything the virtual path rules would (empty or
// dot segments, colons).
func normalizeEntryPath(p string) (string, bool) {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.Trim(p, "/")
	if p == "" {
		return "", false
	}
	norm, err := vfs.Normalize(strings.ToLower(p))
	if err != nil {
		return "", false
	}
	return norm, true
}
