// Package netproto implements the engine's wire-level binary protocol:
// length-prefixed, self-describing-by-type-byte messages carrying input
// commands and full/delta entity snapshots.
package netproto

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MaxSnapshotEntities bounds Snapshot/DeltaSnapshot entity counts.
const MaxSnapshotEntities = 2048

// Message type bytes.
const (
	TypeInput          byte = 1
	TypeSnapshot       byte = 2
	TypeDeltaSnapshot  byte = 3
)

// Input is a single client input command.
type Input struct {
	ClientSeq  uint32
	ClientTick uint32
	MoveX      float32
	MoveY      float32
	Yaw        float32
	Pitch      float32
	Buttons    uint32
}

// Entity is one replicated entity's state within a snapshot.
type Entity struct {
	NetID uint32
	Pos   [3]float32
	Vel   [3]float32
	Yaw   float32
}

// Snapshot is a full server-authoritative world snapshot.
type Snapshot struct {
	ServerTick    uint32
	AckClientSeq  uint32
	Entities      []Entity
}

// DeltaSnapshot additionally carries the baseline tick it is deltaed
// against. The wire format currently transmits full entity state
// regardless of baseline; BaselineTick is advisory for application-layer
// reconciliation, not consulted here.
type DeltaSnapshot struct {
	ServerTick    uint32
	BaselineTick  uint32
	AckClientSeq  uint32
	Entities      []Entity
}

// ErrTooManyEntities is returned by Encode when a snapshot exceeds
// MaxSnapshotEntities.
type ErrTooManyEntities struct{ Count int }

func (e ErrTooManyEntities) Error() string {
	return fmt.Sprintf("netproto: %d entities exceeds max %d", e.Count, MaxSnapshotEntities)
}

// ErrDecode wraps a malformed-message decode failure with the offending
// type byte and reason.
type ErrDecode struct {
	Type   byte
	Reason string
}

func (e ErrDecode) Error() string {
	return fmt.Sprintf("netproto: decode type=%d: %s", e.Type, e.Reason)
}

func putFloat32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

func getFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

// EncodeInput serializes an Input message, including its leading type byte.
func EncodeInput(in Input) []byte {
	buf := make([]byte, 1+4+4+4*4+4)
	buf[0] = TypeInput
	i := 1
	binary.LittleEndian.PutUint32(buf[i:], in.ClientSeq)
	i += 4
	binary.LittleEndian.PutUint32(buf[i:], in.ClientTick)
	i += 4
	putFloat32(buf[i:], in.MoveX)
	i += 4
	putFloat32(buf[i:], in.MoveY)
	i += 4
	putFloat32(buf[i:], in.Yaw)
	i += 4
	putFloat32(buf[i:], in.Pitch)
	i += 4
	binary.LittleEndian.PutUint32(buf[i:], in.Buttons)
	return buf
}

func decodeInputBody(b []byte) (Input, error) {
	const want = 4 + 4 + 4*4 + 4
	if len(b) != want {
		return Input{}, ErrDecode{TypeInput, fmt.Sprintf("expected %d body bytes, got %d", want, len(b))}
	}
	var in Input
	i := 0
	in.ClientSeq = binary.LittleEndian.Uint32(b[i:])
	i += 4
	in.ClientTick = binary.LittleEndian.Uint32(b[i:])
	i += 4
	in.MoveX = getFloat32(b[i:])
	i += 4
	in.MoveY = getFloat32(b[i:])
	i += 4
	in.Yaw = getFloat32(b[i:])
	i += 4
	in.Pitch = getFloat32(b[i:])
	i += 4
	in.Buttons = binary.LittleEndian.Uint32(b[i:])
	return in, nil
}

func encodedEntitySize() int { return 4 + 3*4 + 3*4 + 4 }

func putEntity(b []byte, e Entity) int {
	i := 0
	binary.LittleEndian.PutUint32(b[i:], e.NetID)
	i += 4
	for _, v := range e.Pos {
		putFloat32(b[i:], v)
		i += 4
	}
	for _, v := range e.Vel {
		putFloat32(b[i:], v)
		i += 4
	}
	putFloat32(b[i:], e.Yaw)
	i += 4
	return i
}

func getEntity(b []byte) Entity {
	var e Entity
	i := 0
	e.NetID = binary.LittleEndian.Uint32(b[i:])
	i += 4
	for k := range e.Pos {
		e.Pos[k] = getFloat32(b[i:])
		i += 4
	}
	for k := range e.Vel {
		e.Vel[k] = getFloat32(b[i:])
		i += 4
	}
	e.Yaw = getFloat32(b[i:])
	return e
}

// EncodeSnapshot serializes a Snapshot. It returns ErrTooManyEntities
// without allocating a wire buffer when Entities exceeds the limit.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	if len(s.Entities) > MaxSnapshotEntities {
		return nil, ErrTooManyEntities{len(s.Entities)}
	}
	entSize := encodedEntitySize()
	buf := make([]byte, 1+4+4+2+entSize*len(s.Entities))
	buf[0] = TypeSnapshot
	i := 1
	binary.LittleEndian.PutUint32(buf[i:], s.ServerTick)
	i += 4
	binary.LittleEndian.PutUint32(buf[i:], s.AckClientSeq)
	i += 4
	binary.LittleEndian.PutUint16(buf[i:], uint16(len(s.Entities)))
	i += 2
	for _, e := range s.Entities {
		i += putEntity(buf[i:], e)
	}
	return buf, nil
}

func decodeSnapshotBody(b []byte) (Snapshot, error) {
	if len(b) < 4+4+2 {
		return Snapshot{}, ErrDecode{TypeSnapshot, "truncated header"}
	}
	var s Snapshot
	i := 0
	s.ServerTick = binary.LittleEndian.Uint32(b[i:])
	i += 4
	s.AckClientSeq = binary.LittleEndian.Uint32(b[i:])
	i += 4
	count := int(binary.LittleEndian.Uint16(b[i:]))
	i += 2
	entSize := encodedEntitySize()
	want := i + entSize*count
	if len(b) != want {
		return Snapshot{}, ErrDecode{TypeSnapshot, fmt.Sprintf("expected %d total body bytes for %d entities, got %d", want, count, len(b))}
	}
	s.Entities = make([]Entity, count)
	for k := 0; k < count; k++ {
		s.Entities[k] = getEntity(b[i:])
		i += entSize
	}
	return s, nil
}

// EncodeDeltaSnapshot serializes a DeltaSnapshot. See the type's doc comment
// on baseline-tick semantics.
func EncodeDeltaSnapshot(d DeltaSnapshot) ([]byte, error) {
	if len(d.Entities) > MaxSnapshotEntities {
		return nil, ErrTooManyEntities{len(d.Entities)}
	}
	entSize := encodedEntitySize()
	buf := make([]byte, 1+4+4+4+2+entSize*len(d.Entities))
	buf[0] = TypeDeltaSnapshot
	i := 1
	binary.LittleEndian.PutUint32(buf[i:], d.ServerTick)
	i += 4
	binary.LittleEndian.PutUint32(buf[i:], d.BaselineTick)
	i += 4
	binary.LittleEndian.PutUint32(buf[i:], d.AckClientSeq)
	i += 4
	binary.LittleEndian.PutUint16(buf[i:], uint16(len(d.Entities)))
	i += 2
	for _, e := range d.Entities {
		i += putEntity(buf[i:], e)
	}
	return buf, nil
}

func decodeDeltaSnapshotBody(b []byte) (DeltaSnapshot, error) {
	if len(b) < 4+4+4+2 {
		return DeltaSnapshot{}, ErrDecode{TypeDeltaSnapshot, "truncated header"}
	}
	var d DeltaSnapshot
	i := 0
	d.ServerTick = binary.LittleEndian.Uint32(b[i:])
	i += 4
	d.BaselineTick = binary.LittleEndian.Uint32(b[i:])
	i += 4
	d.AckClientSeq = binary.LittleEndian.Uint32(b[i:])
	i += 4
	count := int(binary.LittleEndian.Uint16(b[i:]))
	i += 2
	entSize := encodedEntitySize()
	want := i + entSize*count
	if len(b) != want {
		return DeltaSnapshot{}, ErrDecode{TypeDeltaSnapshot, fmt.Sprintf("expected %d total body bytes for %d entities, got %d", want, count, len(b))}
	}
	d.Entities = make([]Entity, count)
	for k := 0; k < count; k++ {
		d.Entities[k] = getEntity(b[i:])
		i += entSize
	}
	return d, nil
}

// Decoded is the sum type returned by Decode; exactly one field is set,
// selected by Type.
type Decoded struct {
	Type          byte
	Input         Input
	Snapshot      Snapshot
	DeltaSnapshot DeltaSnapshot
}

// Decode parses one self-describing message (type byte + body). Any
// trailing bytes after the declared entity count, or an unknown type byte,
// is a decode error.
func Decode(b []byte) (Decoded, error) {
	if len(b) < 1 {
		return Decoded{}, ErrDecode{0, "empty message"}
	}
	switch b[0] {
	case TypeInput:
		in, err := decodeInputBody(b[1:])
		return Decoded{Type: TypeInput, Input: in}, err
	case TypeSnapshot:
		s, err := decodeSnapshotBody(b[1:])
		return Decoded{Type: TypeSnapshot, Snapshot: s}, err
	case TypeDeltaSnapshot:
		d, err := decodeDeltaSnapshotBody(b[1:])
		return Decoded{Type: TypeDeltaSnapshot, DeltaSnapshot: d}, err
	default:
		return Decoded{}, ErrDecode{b[0], "unknown message type"}
	}
}
