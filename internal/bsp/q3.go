package bsp

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Quake-3 (IBSP 46/47) lump indices, in directory order.
const (
	q3LumpEntities = iota
	q3LumpShaders
	q3LumpPlanes
	q3LumpNodes
	q3LumpLeafs
	q3LumpLeafFaces
	q3LumpLeafBrushes
	q3LumpModels
	q3LumpBrushes
	q3LumpBrushSides
	q3LumpVertices
	q3LumpMeshverts
	q3LumpEffects
	q3LumpFaces
	q3LumpLightmaps
	q3LumpLightvols
	q3LumpVisdata
	q3LumpCount
)

const (
	q3VertexStride = 44
	q3FaceStride   = 104
	q3MeshvertStride = 4

	q3MaxVertices  = 2_000_000
	q3MaxMeshverts = 4_000_000
	q3MaxFaces     = 1_000_000
)

var q3LumpNames = [q3LumpCount]string{
	"entities", "shaders", "planes", "nodes", "leafs",
	"leaffaces", "leafbrushes", "models", "brushes", "brushsides",
	"vertices", "meshverts", "effects", "faces", "lightmaps",
	"lightvols", "visdata",
}

// Q3FaceType distinguishes the face-assembly rule used by the cook.
type Q3FaceType int32

const (
	Q3FacePolygon Q3FaceType = 1
	Q3FacePatch   Q3FaceType = 2
	Q3FaceMesh    Q3FaceType = 3
	Q3FaceBillboard Q3FaceType = 4
)

// Q3Vertex is a render vertex; only Position is consumed by the collision
// cook, but the full on-disk layout is decoded for fidelity.
type Q3Vertex struct {
	Position Vec3
	TexCoord [2]float32
	LMCoord  [2]float32
	Normal   Vec3
	Color    [4]uint8
}

// Q3Face is the per-surface descriptor; the collision cook only consumes
// Type, Vertex/NumVertexes and Meshvert/NumMeshverts, but the remaining
// fields are decoded so the struct is a faithful mirror of the format.
type Q3Face struct {
	Texture     int32
	Effect      int32
	Type        Q3FaceType
	Vertex      int32
	NumVertexes int32
	Meshvert    int32
	NumMeshverts int32
	LMIndex     int32
	LMStart     [2]int32
	LMSize      [2]int32
	LMOrigin    Vec3
	LMVecs      [2]Vec3
	Normal      Vec3
	Size        [2]int32
}

// Q3Map is the fully decoded structural view of an IBSP 46/47 file.
type Q3Map struct {
	Version   int32
	Vertices  []Q3Vertex
	Meshverts []int32
	Faces     []Q3Face
}

// ParseQ3 decodes an IBSP 46/47 file. The "IBSP" magic is mandatory.
func ParseQ3(data []byte) (*Q3Map, error) {
	if len(data) < 8 || !bytes.Equal(data[0:4], []byte("IBSP")) {
		return nil, fmt.Errorf("bsp: q3: missing IBSP magic")
	}
	version := int32(binary.LittleEndian.Uint32(data[4:8]))
	if version != 46 && version != 47 {
		return nil, fmt.Errorf("bsp: q3: unsupported version %d (want 46 or 47)", version)
	}

	entries, _, err := readLumpDirectory(data, 8, q3LumpCount)
	if err != nil {
		return nil, fmt.Errorf("bsp: q3: %w", err)
	}

	vertBytes, vertCount, err := sliceLump(data, q3LumpNames[q3LumpVertices], entries[q3LumpVertices], q3VertexStride)
	if err != nil {
		return nil, err
	}
	if vertCount > q3MaxVertices {
		return nil, InvalidLumpSize{Lump: "vertices", Length: entries[q3LumpVertices].Length, Stride: q3VertexStride, Reason: fmt.Sprintf("%d elements exceeds cap %d", vertCount, q3MaxVertices)}
	}
	meshvertBytes, meshvertCount, err := sliceLump(data, q3LumpNames[q3LumpMeshverts], entries[q3LumpMeshverts], q3MeshvertStride)
	if err != nil {
		return nil, err
	}
	if meshvertCount > q3MaxMeshverts {
		return nil, InvalidLumpSize{Lump: "meshverts", Length: entries[q3LumpMeshverts].Length, Stride: q3MeshvertStride, Reason: fmt.Sprintf("%d elements exceeds cap %d", meshvertCount, q3MaxMeshverts)}
	}
	faceBytes, faceCount, err := sliceLump(data, q3LumpNames[q3LumpFaces], entries[q3LumpFaces], q3FaceStride)
	if err != nil {
		return nil, err
	}
	if faceCount > q3MaxFaces {
		return nil, InvalidLumpSize{Lump: "faces", Length: entries[q3LumpFaces].Length, Stride: q3FaceStride, Reason: fmt.Sprintf("%d elements exceeds cap %d", faceCount, q3MaxFaces)}
	}

	m := &Q3Map{
		Version:   version,
		Vertices:  make([]Q3Vertex, vertCount),
		Meshverts: make([]int32, meshvertCount),
		Faces:     make([]Q3Face, faceCount),
	}

	for i := 0; i < vertCount; i++ {
		b := vertBytes[i*q3VertexStride:]
		m.Vertices[i] = Q3Vertex{
			Position: readVec3(b[0:12]),
			TexCoord: [2]float32{readF32(b[12:16]), readF32(b[16:20])},
			LMCoord:  [2]float32{readF32(b[20:24]), readF32(b[24:28])},
			Normal:   readVec3(b[28:40]),
			Color:    [4]uint8{b[40], b[41], b[42], b[43]},
		}
	}
	for i := 0; i < meshvertCount; i++ {
		m.Meshverts[i] = int32(binary.LittleEndian.Uint32(meshvertBytes[i*q3MeshvertStride:]))
	}
	for i := 0; i < faceCount; i++ {
		b := faceBytes[i*q3FaceStride:]
		readI32 := func(off int) int32 { return int32(binary.LittleEndian.Uint32(b[off : off+4])) }
		m.Faces[i] = Q3Face{
			Texture:      readI32(0),
			Effect:       readI32(4),
			Type:         Q3FaceType(readI32(8)),
			Vertex:       readI32(12),
			NumVertexes:  readI32(16),
			Meshvert:     readI32(20),
			NumMeshverts: readI32(24),
			LMIndex:      readI32(28),
			LMStart:      [2]int32{readI32(32), readI32(36)},
			LMSize:       [2]int32{readI32(40), readI32(44)},
			LMOrigin:     readVec3(b[48:60]),
			LMVecs:       [2]Vec3{readVec3(b[60:72]), readVec3(b[72:84])},
			Normal:       readVec3(b[84:96]),
			Size:         [2]int32{readI32(96), readI32(100)},
		}
	}

	return m, nil
}
