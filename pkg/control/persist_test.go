package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyValueMapCoercesToRegisteredTypes(t *testing.T) {
	r := NewCVarRegistry()
	_, err := r.Register("dbg_overlay", "", Bool(false), Bounds{}, 0)
	require.NoError(t, err)
	_, err = r.Register("asset_decode_budget_ms", "", Int(8), Bounds{Set: true, MinI: 0, MaxI: 1 << 30}, 0)
	require.NoError(t, err)
	_, err = r.Register("log_filter", "", String(""), Bounds{}, 0)
	require.NoError(t, err)

	// TOML hands back int64 and bare strings; every one must land in the
	// registered type.
	errs := r.ApplyValueMap(map[string]any{
		"dbg_overlay":            "1",
		"asset_decode_budget_ms": int64(16),
		"log_filter":             "meshage",
	})
	require.Empty(t, errs)

	v, err := r.GetByName("dbg_overlay")
	require.NoError(t, err)
	assert.True(t, v.B)
	v, err = r.GetByName("asset_decode_budget_ms")
	require.NoError(t, err)
	assert.Equal(t, int32(16), v.I)
	v, err = r.GetByName("log_filter")
	require.NoError(t, err)
	assert.Equal(t, "meshage", v.S)

	assert.Len(t, r.TakeDirty(), 3)
}

func TestApplyValueMapCollectsErrorsAndKeepsGoing(t *testing.T) {
	r := NewCVarRegistry()
	_, err := r.Register("dbg_fps", "", Bool(false), Bounds{}, 0)
	require.NoError(t, err)
	_, err = r.Register("asset_io_budget_kb", "", Int(4096), Bounds{Set: true, MinI: 0, MaxI: 1 << 30}, 0)
	require.NoError(t, err)

	errs := r.ApplyValueMap(map[string]any{
		"no_such_cvar":       true,
		"asset_io_budget_kb": int64(-5), // out of bounds
		"dbg_fps":            true,
	})
	assert.Len(t, errs, 2)

	v, err := r.GetByName("dbg_fps")
	require.NoError(t, err)
	assert.True(t, v.B, "valid writes apply despite sibling failures")
}
