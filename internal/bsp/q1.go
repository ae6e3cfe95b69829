package bsp

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Quake-1 (BSP29) lump indices, in directory order.
const (
	q1LumpEntities = iota
	q1LumpPlanes
	q1LumpTextures
	q1LumpVertices
	q1LumpVisibility
	q1LumpNodes
	q1LumpTexinfo
	q1LumpFaces
	q1LumpLighting
	q1LumpClipnodes
	q1LumpLeaves
	q1LumpMarksurfaces
	q1LumpEdges
	q1LumpSurfedges
	q1LumpModels
	q1LumpCount
)

const (
	q1VertexStride = 12
	q1EdgeStride   = 4
	q1SurfedgeStride = 4
	q1FaceStride   = 20
	q1ModelStride  = 64

	q1Version = 29
)

var q1LumpNames = [q1LumpCount]string{
	"entities", "planes", "textures", "vertices", "visibility",
	"nodes", "texinfo", "faces", "lighting", "clipnodes",
	"leaves", "marksurfaces", "edges", "surfedges", "models",
}

// Q1Edge is a pair of vertex indices.
type Q1Edge [2]uint16

// Q1Face references a plane and a run of edges (via the surfedge lump).
type Q1Face struct {
	PlaneNum  uint16
	Side      uint16
	FirstEdge int32
	NumEdges  uint16
	TexInfo   uint16
}

// Q1Model is a bounding volume plus a range into the face array; world
// geometry is model 0.
type Q1Model struct {
	Mins, Maxs Vec3
	Origin     Vec3
	HeadNode   [4]int32
	VisLeafs   int32
	FirstFace  int32
	NumFaces   int32
}

// Q1Map is the fully decoded structural view of a Quake-1 BSP29 file: every
// reference has been resolved into a flat index.
type Q1Map struct {
	Vertices  []Vec3
	Edges     []Q1Edge
	Surfedges []int32
	Faces     []Q1Face
	Models    []Q1Model
}

// ParseQ1 decodes a Quake-1 BSP29 file. The 4-byte "IBSP" magic is accepted
// but optional ahead of the version field; only version 29 is accepted.
func ParseQ1(data []byte) (*Q1Map, error) {
	cursor := 0
	if len(data) >= 4 && bytes.Equal(data[0:4], []byte("IBSP")) {
		cursor = 4
	}
	if cursor+4 > len(data) {
		return nil, fmt.Errorf("bsp: q1: truncated header")
	}
	version := int32(binary.LittleEndian.Uint32(data[cursor:]))
	cursor += 4
	if version != q1Version {
		return nil, fmt.Errorf("bsp: q1: unsupported version %d (want %d)", version, q1Version)
	}

	entries, _, err := readLumpDirectory(data, cursor, q1LumpCount)
	if err != nil {
		return nil, fmt.Errorf("bsp: q1: %w", err)
	}

	vertBytes, vertCount, err := sliceLump(data, q1LumpNames[q1LumpVertices], entries[q1LumpVertices], q1VertexStride)
	if err != nil {
		return nil, err
	}
	edgeBytes, edgeCount, err := sliceLump(data, q1LumpNames[q1LumpEdges], entries[q1LumpEdges], q1EdgeStride)
	if err != nil {
		return nil, err
	}
	surfedgeBytes, surfedgeCount, err := sliceLump(data, q1LumpNames[q1LumpSurfedges], entries[q1LumpSurfedges], q1SurfedgeStride)
	if err != nil {
		return nil, err
	}
	faceBytes, faceCount, err := sliceLump(data, q1LumpNames[q1LumpFaces], entries[q1LumpFaces], q1FaceStride)
	if err != nil {
		return nil, err
	}
	modelBytes, modelCount, err := sliceLump(data, q1LumpNames[q1LumpModels], entries[q1LumpModels], q1ModelStride)
	if err != nil {
		return nil, err
	}

	m := &Q1Map{
		Vertices:  make([]Vec3, vertCount),
		Edges:     make([]Q1Edge, edgeCount),
		Surfedges: make([]int32, surfedgeCount),
		Faces:     make([]Q1Face, faceCount),
		Models:    make([]Q1Model, modelCount),
	}

	for i := 0; i < vertCount; i++ {
		m.Vertices[i] = readVec3(vertBytes[i*q1VertexStride:])
	}
	for i := 0; i < edgeCount; i++ {
		b := edgeBytes[i*q1EdgeStride:]
		m.Edges[i] = Q1Edge{binary.LittleEndian.Uint16(b[0:2]), binary.LittleEndian.Uint16(b[2:4])}
	}
	for i := 0; i < surfedgeCount; i++ {
		m.Surfedges[i] = int32(binary.LittleEndian.Uint32(surfedgeBytes[i*q1SurfedgeStride:]))
	}
	for i := 0; i < faceCount; i++ {
		b := faceBytes[i*q1FaceStride:]
		m.Faces[i] = Q1Face{
			PlaneNum:  binary.LittleEndian.Uint16(b[0:2]),
			Side:      binary.LittleEndian.Uint16(b[2:4]),
			FirstEdge: int32(binary.LittleEndian.Uint32(b[4:8])),
			NumEdges:  binary.LittleEndian.Uint16(b[8:10]),
			TexInfo:   binary.LittleEndian.Uint16(b[10:12]),
		}
	}
	for i := 0; i < modelCount; i++ {
		b := modelBytes[i*q1ModelStride:]
		m.Models[i] = Q1Model{
			Mins:      readVec3(b[0:12]),
			Maxs:      readVec3(b[12:24]),
			Origin:    readVec3(b[24:36]),
			HeadNode:  [4]int32{int32(binary.LittleEndian.Uint32(b[36:40])), int32(binary.LittleEndian.Uint32(b[40:44])), int32(binary.LittleEndian.Uint32(b[44:48])), int32(binary.LittleEndian.Uint32(b[48:52]))},
			VisLeafs:  int32(binary.LittleEndian.Uint32(b[52:56])),
			FirstFace: int32(binary.LittleEndian.Uint32(b[56:60])),
			NumFaces:  int32(binary.LittleEndian.Uint32(b[60:64])),
		}
	}

	return m, nil
}
