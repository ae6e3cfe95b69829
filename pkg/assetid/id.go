// Package assetid implements the engine's asset identifier grammar: a
// closed set of namespaces, each enumerating its own closed set of kinds,
// over a restricted path alphabet.
package assetid

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Namespace is a closed set of content origins.
type Namespace string

const (
	Engine    Namespace = "engine"
	Quake1    Namespace = "quake1"
	QuakeLive Namespace = "quakelive"
)

// Kind is a closed-per-namespace content tag.
type Kind string

const (
	KindText     Kind = "text"
	KindConfig   Kind = "config"
	KindScript   Kind = "script"
	KindBlob     Kind = "blob"
	KindTexture  Kind = "texture"
	KindTestMap  Kind = "test_map"
	KindLevel    Kind = "level"
	KindRaw      Kind = "raw"
	KindRawOther Kind = "raw_other"
	KindSound    Kind = "sound"
	KindModel    Kind = "model"
	KindMap      Kind = "map"
)

// validKinds enumerates the permitted kinds per namespace. A kind not in
// this set for its namespace is rejected by Parse/New.
var validKinds = map[Namespace]map[Kind]bool{
	Engine: {
		KindText: true, KindConfig: true, KindScript: true,
		KindBlob: true, KindTexture: true, KindTestMap: true,
		KindLevel: true,
	},
	Quake1: {
		KindRaw: true, KindRawOther: true, KindTexture: true,
		KindSound: true, KindModel: true, KindMap: true, KindScript: true,
	},
	QuakeLive: {
		KindRaw: true, KindRawOther: true, KindTexture: true,
		KindSound: true, KindModel: true, KindMap: true, KindScript: true,
	},
}

// MaxCanonicalLength is the maximum length, in bytes, of a canonical id
// string.
const MaxCanonicalLength = 512

// ID is a parsed, canonicalised asset identifier. Two IDs are equal iff
// their canonical strings are equal.
type ID struct {
	Namespace Namespace
	Kind      Kind
	Path      string // normalised, lowercase, '/'-separated, no leading slash

	canonical string
	hash      uint64
}

// String returns the canonical "ns:kind/path" form.
func (id ID) String() string { return id.canonical }

// Hash64 returns the precomputed FNV-1a hash of the canonical string.
func (id ID) Hash64() uint64 { return id.hash }

// Equal reports canonical-string equality.
func (id ID) Equal(o ID) bool { return id.canonical == o.canonical }

func fnv1a(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

const pathAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789_-./"

func isAllowedPathByte(b byte) bool {
	return strings.IndexByte(pathAlphabet, b) >= 0
}

// validatePath enforces: '/'-separated, no empty segments, no "..", no ":",
// printable lowercase ascii/digit/_-./ only.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("assetid: empty path")
	}
	if strings.HasPrefix(path, "/") {
		return fmt.Errorf("assetid: path must not start with '/': %q", path)
	}
	if strings.Contains(path, ":") {
		return fmt.Errorf("assetid: path must not contain ':': %q", path)
	}
	if strings.Contains(path, "//") {
		return fmt.Errorf("assetid: path must not contain empty segment: %q", path)
	}
	for i := 0; i < len(path); i++ {
		if !isAllowedPathByte(path[i]) {
			return fmt.Errorf("assetid: path contains disallowed byte %q: %q", path[i:i+1], path)
		}
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			return fmt.Errorf("assetid: path must not contain empty segment: %q", path)
		}
		if seg == ".." {
			return fmt.Errorf("assetid: path must not contain '..': %q", path)
		}
		if seg == "." {
			return fmt.Errorf("assetid: path must not contain '.': %q", path)
		}
	}
	return nil
}

// New builds a canonical ID from an (already lowercase-intended) namespace,
// kind and path, validating the grammar. Namespace and kind are lowercased
// automatically since the canonical form is always lowercase; backslashes
// in path are normalised to '/' so that inputs differing only in slash
// direction canonicalise identically.
func New(ns Namespace, kind Kind, path string) (ID, error) {
	nsLower := Namespace(strings.ToLower(string(ns)))
	kindLower := Kind(strings.ToLower(string(kind)))
	path = strings.ToLower(strings.ReplaceAll(path, `\`, "/"))

	kinds, ok := validKinds[nsLower]
	if !ok {
		return ID{}, fmt.Errorf("assetid: unknown namespace: %q", ns)
	}
	if !kinds[kindLower] {
		return ID{}, fmt.Errorf("assetid: unknown kind %q for namespace %q", kind, nsLower)
	}
	if err := validatePath(path); err != nil {
		return ID{}, err
	}

	canonical := string(nsLower) + ":" + string(kindLower) + "/" + path
	if len(canonical) > MaxCanonicalLength {
		return ID{}, fmt.Errorf("assetid: canonical id exceeds %d bytes", MaxCanonicalLength)
	}

	return ID{
		Namespace: nsLower,
		Kind:      kindLower,
		Path:      path,
		canonical: canonical,
		hash:      fnv1a(canonical),
	}, nil
}

// Parse parses a canonical "ns:kind/path" string (case-insensitively,
// accepting '\' in place of '/') back into an ID.
func Parse(s string) (ID, error) {
	if len(s) > MaxCanonicalLength {
		return ID{}, fmt.Errorf("assetid: input exceeds %d bytes", MaxCanonicalLength)
	}
	s = strings.ToLower(strings.ReplaceAll(s, `\`, "/"))

	nsSep := strings.IndexByte(s, ':')
	if nsSep < 0 {
		return ID{}, fmt.Errorf("assetid: missing ':' in %q", s)
	}
	ns := s[:nsSep]
	rest := s[nsSep+1:]

	kindSep := strings.IndexByte(rest, '/')
	if kindSep < 0 {
		return ID{}, fmt.Errorf("assetid: missing '/' after kind in %q", s)
	}
	kind := rest[:kindSep]
	path := rest[kindSep+1:]

	return New(Namespace(ns), Kind(kind), path)
}
