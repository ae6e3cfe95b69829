package assetid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	id, err := New(Engine, KindText, "fixtures/golden.cfg")
	require.NoError(t, err)

	parsed, err := Parse(id.String())
	require.NoError(t, err)
	assert.True(t, id.Equal(parsed))
	assert.Equal(t, id.Hash64(), parsed.Hash64())
}

func TestRoundTripCaseAndSlashInsensitive(t *testing.T) {
	canonical := "engine:text/fixtures/golden.cfg"
	mixedCase, err := Parse("Engine:TEXT/Fixtures/Golden.cfg")
	require.NoError(t, err)
	assert.Equal(t, canonical, mixedCase.String())

	backslash, err := Parse(`engine:text\fixtures\golden.cfg`)
	require.NoError(t, err)
	assert.Equal(t, canonical, backslash.String())
	assert.Equal(t, mixedCase.Hash64(), backslash.Hash64())
}

func TestHashDependsOnlyOnCanonicalString(t *testing.T) {
	a, err := New(Engine, KindText, "a/b")
	require.NoError(t, err)
	b, err := Parse(a.String())
	require.NoError(t, err)
	assert.Equal(t, a.Hash64(), b.Hash64())
}

func TestRejectDotDot(t *testing.T) {
	_, err := New(Engine, KindText, "a/../b")
	assert.Error(t, err)
}

func TestRejectDoubleSlash(t *testing.T) {
	_, err := New(Engine, KindText, "a//b")
	assert.Error(t, err)
}

func TestRejectColon(t *testing.T) {
	_, err := New(Engine, KindText, "a:b")
	assert.Error(t, err)
}

func TestRejectEmptySegment(t *testing.T) {
	_, err := Parse("engine:text/")
	assert.Error(t, err)
}

func TestRejectUnknownNamespace(t *testing.T) {
	_, err := New(Namespace("quake2"), KindText, "a")
	assert.Error(t, err)
}

func TestRejectUnknownKind(t *testing.T) {
	_, err := New(Engine, Kind("texture2"), "a")
	assert.Error(t, err)
}

func TestRejectOversize(t *testing.T) {
	long := strings.Repeat("a", MaxCanonicalLength)
	_, err := New(Engine, KindText, long)
	assert.Error(t, err)
}

func TestQuakeKinds(t *testing.T) {
	id, err := New(Quake1, KindRaw, "maps/e1m1.bsp")
	require.NoError(t, err)
	assert.Equal(t, "quake1:raw/maps/e1m1.bsp", id.String())

	_, err = New(QuakeLive, KindTexture, "textures/wall.tga")
	require.NoError(t, err)
}
