package vfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

const (
	pakMagic     = "PACK"
	pakDirStride = 64 // 56-byte name + int32 offset + int32 size
	pakNameLen   = 56
)

type pakEntry struct {
	offset int32
	size   int32
}

// PAKDirEntry is one record in a PAK archive's directory, in directory
// order. Names are normalised to lowercase forward-slash form.
type PAKDirEntry struct {
	Name   string
	Offset int32
	Size   int32
}

// ReadPAKDirectory parses a PAK file's header and directory without
// mounting it, preserving the archive's record order. Shared by the
// pakBacking mount and the quake-index scanner.
func ReadPAKDirectory(path string) ([]PAKDirEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var header [12]byte
	if _, err := f.Read(header[:]); err != nil {
		return nil, errors.Wrap(err, "reading pak header")
	}
	if string(header[:4]) != pakMagic {
		return nil, fmt.Errorf("pak: bad magic %q", header[:4])
	}
	dirOffset := int32(binary.LittleEndian.Uint32(header[4:8]))
	dirLength := int32(binary.LittleEndian.Uint32(header[8:12]))

	if dirLength%pakDirStride != 0 {
		return nil, fmt.Errorf("pak: directory length %d not a multiple of %d", dirLength, pakDirStride)
	}
	count := int(dirLength / pakDirStride)

	if _, err := f.Seek(int64(dirOffset), 0); err != nil {
		return nil, errors.Wrap(err, "seeking to pak directory")
	}

	buf := make([]byte, dirLength)
	if _, err := f.Read(buf); err != nil {
		return nil, errors.Wrap(err, "reading pak directory")
	}

	out := make([]PAKDirEntry, 0, count)
	for i := 0; i < count; i++ {
		rec := buf[i*pakDirStride : (i+1)*pakDirStride]
		nameRaw := rec[:pakNameLen]
		nul := bytes.IndexByte(nameRaw, 0)
		if nul < 0 {
			nul = pakNameLen
		}
		name := strings.ToLower(strings.ReplaceAll(string(nameRaw[:nul]), `\`, "/"))
		name = strings.TrimPrefix(name, "/")

		out = append(out, PAKDirEntry{
			Name:   name,
			Offset: int32(binary.LittleEndian.Uint32(rec[56:60])),
			Size:   int32(binary.LittleEndian.Uint32(rec[60:64])),
		})
	}
	return out, nil
}

// ReadPAKEntryData reads one directory entry's bytes from the archive.
func ReadPAKEntryData(path string, e PAKDirEntry) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(int64(e.Offset), 0); err != nil {
		return nil, err
	}
	out := make([]byte, e.Size)
	if _, err := io.ReadFull(f, out); err != nil {
		return nil, errors.Wrapf(err, "reading pak entry %s", e.Name)
	}
	return out, nil
}

// pakBacking is an eagerly-parsed Quake1 PAK archive: the directory is read
// once at mount time and held in memory; file bytes are read from the
// backing os.File lazily on demand.
type pakBacking struct {
	path    string
	entries map[string]pakEntry // lowercase name -> entry
	dirs    map[string]map[string]bool
}

func newPAKBacking(path string) (*pakBacking, error) {
	dir, err := ReadPAKDirectory(path)
	if err != nil {
		return nil, err
	}

	b := &pakBacking{
		path:    path,
		entries: make(map[string]pakEntry, len(dir)),
		dirs:    make(map[string]map[string]bool),
	}
	for _, e := range dir {
		b.entries[e.Name] = pakEntry{offset: e.Offset, size: e.Size}
		b.indexDirs(e.Name)
	}
	return b, nil
}

func (b *pakBacking) indexDirs(name string) {
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

func (b *pakBacking) count() int { return len(b.entries) }

func (b *pakBacking) read(rel string) ([]byte, error) {
	e, ok := b.entries[rel]
	if !ok {
		return nil, os.ErrNotExist
	}

	f, err := os.Open(b.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(int64(e.offset), 0); err != nil {
		return nil, err
	}
	out := make([]byte, e.size)
	if _, err := f.Read(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *pakBacking) has(rel string) bool {
	_, ok := b.entries[rel]
	return ok
}

func (b *pakBacking) list(rel string) ([]string, error) {
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
