package netproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputRoundTrip(t *testing.T) {
	in := Input{ClientSeq: 7, ClientTick: 42, MoveX: 1.0, MoveY: -0.5, Yaw: 0.25, Pitch: -0.75, Buttons: 3}
	wire := EncodeInput(in)
	dec, err := Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, TypeInput, dec.Type)
	assert.Equal(t, in, dec.Input)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := Snapshot{
		ServerTick:   100,
		AckClientSeq: 9,
		Entities: []Entity{
			{NetID: 1, Pos: [3]float32{1, 2, 3}, Vel: [3]float32{0.1, 0.2, 0.3}, Yaw: 1.5},
			{NetID: 2, Pos: [3]float32{-1, -2, -3}, Vel: [3]float32{0, 0, 0}, Yaw: -1.5},
		},
	}
	wire, err := EncodeSnapshot(s)
	require.NoError(t, err)
	dec, err := Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, TypeSnapshot, dec.Type)
	assert.Equal(t, s, dec.Snapshot)
}

func TestDeltaSnapshotRoundTrip(t *testing.T) {
	d := DeltaSnapshot{
		ServerTick:   100,
		BaselineTick: 90,
		AckClientSeq: 9,
		Entities:     []Entity{{NetID: 5, Pos: [3]float32{1, 1, 1}}},
	}
	wire, err := EncodeDeltaSnapshot(d)
	require.NoError(t, err)
	dec, err := Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, d, dec.DeltaSnapshot)
}

func TestSnapshotOverLimitFailsToEncode(t *testing.T) {
	s := Snapshot{Entities: make([]Entity, MaxSnapshotEntities+1)}
	_, err := EncodeSnapshot(s)
	require.Error(t, err)
	var tooMany ErrTooManyEntities
	assert.ErrorAs(t, err, &tooMany)
}

func TestDecodeUnknownTypeByte(t *testing.T) {
	_, err := Decode([]byte{200, 1, 2, 3})
	require.Error(t, err)
}

func TestDecodeTrailingBytesIsError(t *testing.T) {
	wire := EncodeInput(Input{})
	_, err := Decode(append(wire, 0xFF))
	require.Error(t, err)
}

func TestDecodeEmptyMessage(t *testing.T) {
	_, err := Decode(nil)
	require.Error(t, err)
}
