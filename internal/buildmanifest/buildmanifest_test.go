package buildmanifest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleManifest() Manifest {
	return Manifest{
		Version:     1,
		ToolVersion: "pallet-cook 0.4.0",
		Profile:     "release",
		BuildID:     "2026-07-29T00:00:00Z",
		Platform:    "linux/amd64",
		Timestamp:   "1753747200",
		InputCount:  3,
		OutputCount: 1,
		Mounts: []MountEntry{
			{Namespace: "engine", Order: 0, Layer: "dev", Kind: "directory", Name: "dev-content", Source: "/repo/.pallet/content"},
			{Namespace: "quake1", Order: 1, Layer: "shipped", Kind: "pak", Name: "base|pak0", Source: "content/quake/PAK0.pak"},
		},
		Stages: []StageEntry{
			{Name: "cook_collision", Status: "ok", DurationMS: 420},
			{Name: "bake_indexes", Status: "failed: lump too small", DurationMS: 12},
		},
		QuakeIndexes: []QuakeIndexEntry{
			{Version: "29", Fingerprint: "abc123", Count: 7},
		},
	}
}

func TestManifestRoundTrip(t *testing.T) {
	m := sampleManifest()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, m))

	parsed, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, m, parsed)
}

func TestManifestEscapesPipeInFieldValues(t *testing.T) {
	m := sampleManifest()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, m))

	// The pipe embedded in the second mount's Name must be escaped on the
	// wire so the record still splits into exactly 7 fields.
	assert.Contains(t, buf.String(), "base%7Cpak0")
}

func TestManifestUnknownTagIgnored(t *testing.T) {
	input := "version=1\nfuture_field=whatever\n"
	m, err := Parse(bytes.NewBufferString(input))
	require.NoError(t, err)
	assert.Equal(t, 1, m.Version)
}
