package quakeindex

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pallet-engine/pallet/internal/buildmanifest"
	"github.com/pallet-engine/pallet/internal/vfs"
)

// WriteTo serializes the index to its cache file, creating parent
// directories as needed.
func (x *Index) WriteTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return x.Write(f)
}

// Write serializes the index: `tag=value` header lines, then `mount|...`
// and `entry|...` record lines with the build-manifest family's
// percent-escaping. Entry order is deterministic (lexical path, winner
// first within a path).
func (x *Index) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "version=%d\n", x.Version)
	fmt.Fprintf(bw, "fingerprint=%s\n", x.Fingerprint)
	fmt.Fprintf(bw, "mount_count=%d\n", len(x.Mounts))
	for _, m := range x.Mounts {
		fmt.Fprintf(bw, "mount|%d|%s|%s|%s|%d|%d\n",
			m.Order, m.Kind,
			buildmanifest.EscapeField(m.MountPoint),
			buildmanifest.EscapeField(m.Source),
			m.Size, m.Modified)
	}
	fmt.Fprintf(bw, "entry_count=%d\n", x.EntryCount())
	for _, p := range x.SortedPaths() {
		for _, e := range x.Entries[p] {
			fileIndex := ""
			if e.Source.FileIndex >= 0 {
				fileIndex = strconv.Itoa(e.Source.FileIndex)
			}
			offset := ""
			if e.Source.Offset >= 0 {
				offset = strconv.FormatInt(e.Source.Offset, 10)
			}
			fmt.Fprintf(bw, "entry|%s|%s|%d|%d|%d|%s|%s|%s|%s|%s\n",
				buildmanifest.EscapeField(e.Path), e.Kind, e.Size, e.Hash,
				e.MountOrder, e.MountKind, e.Source.Kind,
				buildmanifest.EscapeField(e.Source.Path), fileIndex, offset)
		}
	}
	return bw.Flush()
}

// ReadFrom parses a cached index file.
func ReadFrom(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses the Write format. mount_count/entry_count are informational
// and re-derived from the record lines.
func Read(r io.Reader) (*Index, error) {
	x := &Index{Entries: make(map[string][]Entry)}
	haveVersion, haveFingerprint := false, false

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" {
			continue
		}

		if v, ok := strings.CutPrefix(line, "version="); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("quakeindex: line %d: bad version: %w", lineNo, err)
			}
			x.Version = n
			haveVersion = true
			continue
		}
		if v, ok := strings.CutPrefix(line, "fingerprint="); ok {
			x.Fingerprint = strings.TrimSpace(v)
			haveFingerprint = true
			continue
		}
		if strings.HasPrefix(line, "mount_count=") || strings.HasPrefix(line, "entry_count=") {
			continue
		}

		fields := strings.Split(line, "|")
		switch fields[0] {
		case "mount":
			m, err := parseMountRecord(fields)
			if err != nil {
				return nil, fmt.Errorf("quakeindex: line %d: %w", lineNo, err)
			}
			x.Mounts = append(x.Mounts, m)
		case "entry":
			e, err := parseEntryRecord(fields)
			if err != nil {
				return nil, fmt.Errorf("quakeindex: line %d: %w", lineNo, err)
			}
			x.Entries[e.Path] = append(x.Entries[e.Path], e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if !haveVersion {
		return nil, fmt.Errorf("quakeindex: index missing version")
	}
	if !haveFingerprint {
		return nil, fmt.Errorf("quakeindex: index missing fingerprint")
	}
	if x.Version != IndexVersion {
		return nil, fmt.Errorf("quakeindex: unsupported index version %d", x.Version)
	}
	for _, candidates := range x.Entries {
		sortEntries(candidates)
	}
	return x, nil
}

func parseMountRecord(fields []string) (Mount, error) {
	if len(fields) != 7 {
		return Mount{}, fmt.Errorf("mount record wants 7 fields, got %d", len(fields))
	}
	order, err := strconv.Atoi(fields[1])
	if err != nil {
		return Mount{}, fmt.Errorf("bad mount order: %w", err)
	}
	kind, err := parseBackingKind(fields[2])
	if err != nil {
		return Mount{}, err
	}
	size, err := strconv.ParseUint(fields[5], 10, 64)
	if err != nil {
		return Mount{}, fmt.Errorf("bad mount size: %w", err)
	}
	modified, err := strconv.ParseInt(fields[6], 10, 64)
	if err != nil {
		return Mount{}, fmt.Errorf("bad mount mtime: %w", err)
	}
	return Mount{
		Order:      order,
		Kind:       kind,
		MountPoint: buildmanifest.UnescapeField(fields[3]),
		Source:     buildmanifest.UnescapeField(fields[4]),
		Size:       size,
		Modified:   modified,
	}, nil
}

func parseEntryRecord(fields []string) (Entry, error) {
	if len(fields) != 11 {
		return Entry{}, fmt.Errorf("entry record wants 11 fields, got %d", len(fields))
	}
	kind, ok := parseAssetKind(fields[2])
	if !ok {
		return Entry{}, fmt.Errorf("unknown entry kind %q", fields[2])
	}
	size, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("bad entry size: %w", err)
	}
	hash, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("bad entry hash: %w", err)
	}
	mountOrder, err := strconv.Atoi(fields[5])
	if err != nil {
		return Entry{}, fmt.Errorf("bad entry mount order: %w", err)
	}
	mountKind, err := parseBackingKind(fields[6])
	if err != nil {
		return Entry{}, err
	}

	src := Source{
		Kind:      fields[7],
		Path:      buildmanifest.UnescapeField(fields[8]),
		FileIndex: -1,
		Offset:    -1,
	}
	switch src.Kind {
	case "loose", "pak", "pk3":
	default:
		return Entry{}, fmt.Errorf("unknown source kind %q", src.Kind)
	}
	if fields[9] != "" {
		if src.FileIndex, err = strconv.Atoi(fields[9]); err != nil {
			return Entry{}, fmt.Errorf("bad entry file index: %w", err)
		}
	}
	if fields[10] != "" {
		if src.Offset, err = strconv.ParseInt(fields[10], 10, 64); err != nil {
			return Entry{}, fmt.Errorf("bad entry offset: %w", err)
		}
	}

	return Entry{
		Path:       buildmanifest.UnescapeField(fields[1]),
		Kind:       kind,
		Size:       size,
		Hash:       hash,
		MountOrder: mountOrder,
		MountKind:  mountKind,
		Source:     src,
	}, nil
}

func parseBackingKind(s string) (vfs.BackingKind, error) {
	switch vfs.BackingKind(s) {
	case vfs.BackingDirectory, vfs.BackingPAK, vfs.BackingPK3:
		return vfs.BackingKind(s), nil
	default:
		return "", fmt.Errorf("unknown mount kind %q", s)
	}
}
