// Package buildmanifest reads and writes the line-oriented build manifest
// format written to content/build/build_manifest.txt: top-level
// `tag=value` lines plus `|`-separated tagged record lines, with
// percent-escaped `|`, `%`, and newlines inside field values.
package buildmanifest

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MountEntry mirrors one `mount|...` record line.
type MountEntry struct {
	Namespace string
	Order     int
	Layer     string
	Kind      string
	Name      string
	Source    string
}

// StageEntry mirrors one `stage|...` record line. The manifest format
// reserves an unused third field (written as `_`).
type StageEntry struct {
	Name       string
	Status     string
	DurationMS int
}

// QuakeIndexEntry mirrors one `quake_index|...` record line.
type QuakeIndexEntry struct {
	Version     string
	Fingerprint string
	Count       int
}

// Manifest is the parsed content of a build_manifest.txt file.
type Manifest struct {
	Version     int
	ToolVersion string
	Profile     string
	BuildID     string
	Platform    string
	Timestamp   string
	InputCount  int
	OutputCount int

	Mounts       []MountEntry
	Stages       []StageEntry
	QuakeIndexes []QuakeIndexEntry
}

// EscapeField percent-escapes the `|`, `%`, and newline bytes that would
// break a pipe-delimited record line; shared by every format in this
// family (build manifest, quake index).
func EscapeField(s string) string {
	r := strings.NewReplacer(
		"%", "%25",
		"|", "%7C",
		"\n", "%0A",
		"\r", "%0D",
	)
	return r.Replace(s)
}

// UnescapeField reverses EscapeField.
func UnescapeField(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			switch s[i : i+3] {
			case "%25":
				b.WriteByte('%')
				i += 2
				continue
			case "%7C":
				b.WriteByte('|')
				i += 2
				continue
			case "%0A":
				b.WriteByte('\n')
				i += 2
				continue
			case "%0D":
				b.WriteByte('\r')
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func splitFields(line string) []string {
	raw := strings.Split(line, "|")
	out := make([]string, len(raw))
	for i, f := range raw {
		out[i] = UnescapeField(f)
	}
	return out
}

// Write serializes a Manifest in the documented key/value + tagged-record
// format.
func Write(w io.Writer, m Manifest) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "version=%d\n", m.Version)
	fmt.Fprintf(bw, "tool_version=%s\n", EscapeField(m.ToolVersion))
	fmt.Fprintf(bw, "profile=%s\n", EscapeField(m.Profile))
	fmt.Fprintf(bw, "build_id=%s\n", EscapeField(m.BuildID))
	fmt.Fprintf(bw, "platform=%s\n", EscapeField(m.Platform))
	fmt.Fprintf(bw, "timestamp=%s\n", EscapeField(m.Timestamp))
	fmt.Fprintf(bw, "mount_count=%d\n", len(m.Mounts))
	fmt.Fprintf(bw, "input_count=%d\n", m.InputCount)
	fmt.Fprintf(bw, "output_count=%d\n", m.OutputCount)

	for _, mnt := range m.Mounts {
		fmt.Fprintf(bw, "mount|%s|%d|%s|%s|%s|%s\n",
			EscapeField(mnt.Namespace), mnt.Order, EscapeField(mnt.Layer),
			EscapeField(mnt.Kind), EscapeField(mnt.Name), EscapeField(mnt.Source))
	}
	for _, st := range m.Stages {
		fmt.Fprintf(bw, "stage|%s|_|%s|%d\n", EscapeField(st.Name), EscapeField(st.Status), st.DurationMS)
	}
	for _, q := range m.QuakeIndexes {
		fmt.Fprintf(bw, "quake_index|%s|%s|%d\n", EscapeField(q.Version), EscapeField(q.Fingerprint), q.Count)
	}

	return bw.Flush()
}

// Parse reads a build manifest. Unknown tags are ignored so future fields
// don't break older readers.
func Parse(r io.Reader) (Manifest, error) {
	var m Manifest
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" {
			continue
		}

		if strings.Contains(line, "|") && !strings.Contains(strings.SplitN(line, "|", 2)[0], "=") {
			fields := splitFields(line)
			tag := fields[0]
			switch tag {
			case "mount":
				if len(fields) != 7 {
					return Manifest{}, fmt.Errorf("buildmanifest: line %d: mount record wants 7 fields, got %d", lineNo, len(fields))
				}
				order, err := strconv.Atoi(fields[2])
				if err != nil {
					return Manifest{}, fmt.Errorf("buildmanifest: line %d: bad mount order: %w", lineNo, err)
				}
				m.Mounts = append(m.Mounts, MountEntry{
					Namespace: fields[1], Order: order, Layer: fields[3],
					Kind: fields[4], Name: fields[5], Source: fields[6],
				})
			case "stage":
				if len(fields) != 5 {
					return Manifest{}, fmt.Errorf("buildmanifest: line %d: stage record wants 5 fields, got %d", lineNo, len(fields))
				}
				dur, err := strconv.Atoi(fields[4])
				if err != nil {
					return Manifest{}, fmt.Errorf("buildmanifest: line %d: bad stage duration: %w", lineNo, err)
				}
				m.Stages = append(m.Stages, StageEntry{Name: fields[1], Status: fields[3], DurationMS: dur})
			case "quake_index":
				if len(fields) != 4 {
					return Manifest{}, fmt.Errorf("buildmanifest: line %d: quake_index record wants 4 fields, got %d", lineNo, len(fields))
				}
				count, err := strconv.Atoi(fields[3])
				if err != nil {
					return Manifest{}, fmt.Errorf("buildmanifest: line %d: bad quake_index count: %w", lineNo, err)
				}
				m.QuakeIndexes = append(m.QuakeIndexes, QuakeIndexEntry{Version: fields[1], Fingerprint: fields[2], Count: count})
			}
			continue
		}

		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		key, val := line[:eq], line[eq+1:]
		switch key {
		case "version":
			v, err := strconv.Atoi(val)
			if err != nil {
				return Manifest{}, fmt.Errorf("buildmanifest: line %d: bad version: %w", lineNo, err)
			}
			m.Version = v
		case "tool_version":
			m.ToolVersion = UnescapeField(val)
		case "profile":
			m.Profile = UnescapeField(val)
		case "build_id":
			m.BuildID = UnescapeField(val)
		case "platform":
			m.Platform = UnescapeField(val)
		case "timestamp":
			m.Timestamp = UnescapeField(val)
		case "input_count":
			v, err := strconv.Atoi(val)
			if err != nil {
				return Manifest{}, fmt.Errorf("buildmanifest: line %d: bad input_count: %w", lineNo, err)
			}
			m.InputCount = v
		case "output_count":
			v, err := strconv.Atoi(val)
			if err != nil {
				return Manifest{}, fmt.Errorf("buildmanifest: line %d: bad output_count: %w", lineNo, err)
			}
			m.OutputCount = v
		case "mount_count":
			// Derived from len(m.Mounts) on write; read-only informational
			// field, not reconciled against the parsed mount records.
		}
	}
	if err := sc.Err(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}
