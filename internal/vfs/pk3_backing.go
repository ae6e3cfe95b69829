package vfs

import (
	"archive/zip"
	"io"
	"os"
	"strings"

	gocache "github.com/patrickmn/go-cache"
)

// pk3Backing scans a PK3 (zip) archive's central directory at mount time
// but defers opening individual entries until read.
type pk3Backing struct {
	path  string
	names map[string]int // lowercase name -> index into zip.File
	dirs  map[string]map[string]bool
	cache *gocache.Cache
}

func newPK3Backing(path string, dirCache *gocache.Cache) (*pk3Backing, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	b := &pk3Backing{
		path:  path,
		names: make(map[string]int, len(zr.File)),
		dirs:  make(map[string]map[string]bool),
		cache: dirCache,
	}

	for i, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(f.Name, "/"))
		b.names[name] = i
		b.indexDirs(name)
	}

	if dirCache != nil {
		dirCache.Set("pk3:"+path, len(b.names), gocache.DefaultExpiration)
	}

	return b, nil
}

func (b *pk3Backing) indexDirs(name string) {
	segs := strings.Split(name, "/")
	for i := 0; i < len(segs); i++ {
		dir := strings.Join(segs[:i], "/")
		child := segs[i]
		if b.dirs[dir] == nil {
			b.dirs[dir] = make(map[string]bool)
		}
		b.dirs[dir][child] = true
	}
}

func (b *pk3Backing) read(rel string) ([]byte, error) {
	_, ok := b.names[rel]
	if !ok {
		return nil, os.ErrNotExist
	}

	// Entries are opened lazily: the zip reader is reopened per-read
	// rather than kept resident, trading a bit of I/O for not holding a
	// file descriptor per mounted archive.
	zr, err := zip.OpenReader(b.path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	idx := b.names[rel]
	rc, err := zr.File[idx].Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

func (b *pk3Backing) has(rel string) bool {
	_, ok := b.names[rel]
	return ok
}

func (b *pk3Backing) list(rel string) ([]string, error) {
	children, ok := b.dirs[rel]
	if !ok {
		return nil, os.ErrNotExist
	}
	out := make([]string, 0, len(children))
	for name := range children {
		out = append(out, name)
	}
	return out, nil
}
