package bsp

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func putU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putI32(buf *bytes.Buffer, v int32) { putU32(buf, uint32(v)) }

func putU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func putF32(buf *bytes.Buffer, v float32) {
	putU32(buf, math.Float32bits(v))
}

// buildQ1Fixture assembles a minimal single-triangle Quake-1 BSP29 file: one
// vertex lump of 3 verts, one edge per pair, a 3-edge surfedge loop, a
// single face, and a single model spanning it.
func buildQ1Fixture(t *testing.T) []byte {
	t.Helper()

	verts := []Vec3{{0, 0, 0}, {64, 0, 0}, {0, 64, 0}}
	edges := []Q1Edge{{0, 1}, {1, 2}, {2, 0}}
	surfedges := []int32{0, 1, 2}
	face := Q1Face{PlaneNum: 0, Side: 0, FirstEdge: 0, NumEdges: 3, TexInfo: 0}
	model := Q1Model{FirstFace: 0, NumFaces: 1}

	var vertBuf, edgeBuf, surfedgeBuf, faceBuf, modelBuf bytes.Buffer
	for _, v := range verts {
		putF32(&vertBuf, v[0])
		putF32(&vertBuf, v[1])
		putF32(&vertBuf, v[2])
	}
	for _, e := range edges {
		putU16(&edgeBuf, e[0])
		putU16(&edgeBuf, e[1])
	}
	for _, s := range surfedges {
		putI32(&surfedgeBuf, s)
	}
	putU16(&faceBuf, face.PlaneNum)
	putU16(&faceBuf, face.Side)
	putI32(&faceBuf, face.FirstEdge)
	putU16(&faceBuf, face.NumEdges)
	putU16(&faceBuf, face.TexInfo)
	faceBuf.Write(make([]byte, 8)) // styles[4] + lightofs to pad to stride 20

	for i := 0; i < 3; i++ {
		putF32(&modelBuf, model.Mins[i])
	}
	for i := 0; i < 3; i++ {
		putF32(&modelBuf, model.Maxs[i])
	}
	for i := 0; i < 3; i++ {
		putF32(&modelBuf, model.Origin[i])
	}
	for i := 0; i < 4; i++ {
		putI32(&modelBuf, model.HeadNode[i])
	}
	putI32(&modelBuf, model.VisLeafs)
	putI32(&modelBuf, model.FirstFace)
	putI32(&modelBuf, model.NumFaces)

	lumps := make([][]byte, q1LumpCount)
	lumps[q1LumpVertices] = vertBuf.Bytes()
	lumps[q1LumpEdges] = edgeBuf.Bytes()
	lumps[q1LumpSurfedges] = surfedgeBuf.Bytes()
	lumps[q1LumpFaces] = faceBuf.Bytes()
	lumps[q1LumpModels] = modelBuf.Bytes()
	for i := range lumps {
		if lumps[i] == nil {
			lumps[i] = []byte{}
		}
	}

	var out bytes.Buffer
	putI32(&out, q1Version)

	headerLen := 4 + q1LumpCount*8
	offset := headerLen
	dirEntries := make([]lumpEntry, q1LumpCount)
	for i, l := range lumps {
		dirEntries[i] = lumpEntry{Offset: uint32(offset), Length: uint32(len(l))}
		offset += len(l)
	}
	for _, e := range dirEntries {
		putU32(&out, e.Offset)
		putU32(&out, e.Length)
	}
	for _, l := range lumps {
		out.Write(l)
	}
	return out.Bytes()
}

func TestParseQ1Fixture(t *testing.T) {
	data := buildQ1Fixture(t)
	m, err := ParseQ1(data)
	require.NoError(t, err)
	require.Len(t, m.Vertices, 3)
	require.Len(t, m.Edges, 3)
	require.Len(t, m.Surfedges, 3)
	require.Len(t, m.Faces, 1)
	require.Len(t, m.Models, 1)
	require.Equal(t, uint16(3), m.Faces[0].NumEdges)
	require.Equal(t, Vec3{64, 0, 0}, m.Vertices[1])
}

func TestParseQ1RejectsBadVersion(t *testing.T) {
	data := buildQ1Fixture(t)
	binary.LittleEndian.PutUint32(data[0:4], 30)
	_, err := ParseQ1(data)
	require.Error(t, err)
}

func TestParseQ1AcceptsOptionalMagic(t *testing.T) {
	data := buildQ1Fixture(t)
	var withMagic bytes.Buffer
	withMagic.WriteString("IBSP")
	withMagic.Write(data)
	m, err := ParseQ1(withMagic.Bytes())
	require.NoError(t, err)
	require.Len(t, m.Vertices, 3)
}

func TestParseQ1TruncatedLumpRejected(t *testing.T) {
	data := buildQ1Fixture(t)
	// Corrupt the vertex lump's declared length to overrun the file.
	dirOffset := 4 + q1LumpVertices*8 + 4
	binary.LittleEndian.PutUint32(data[dirOffset:], uint32(len(data)*2))
	_, err := ParseQ1(data)
	require.Error(t, err)
	var sizeErr InvalidLumpSize
	require.ErrorAs(t, err, &sizeErr)
}

func buildQ3Fixture(t *testing.T) []byte {
	t.Helper()

	verts := []Q3Vertex{
		{Position: Vec3{0, 0, 0}},
		{Position: Vec3{64, 0, 0}},
		{Position: Vec3{0, 64, 0}},
	}
	face := Q3Face{Type: Q3FacePolygon, Vertex: 0, NumVertexes: 3}

	var vertBuf, faceBuf bytes.Buffer
	for _, v := range verts {
		putF32(&vertBuf, v.Position[0])
		putF32(&vertBuf, v.Position[1])
		putF32(&vertBuf, v.Position[2])
		vertBuf.Write(make([]byte, q3VertexStride-12))
	}

	writeFace := func(f Q3Face) {
		putI32(&faceBuf, f.Texture)
		putI32(&faceBuf, f.Effect)
		putI32(&faceBuf, int32(f.Type))
		putI32(&faceBuf, f.Vertex)
		putI32(&faceBuf, f.NumVertexes)
		putI32(&faceBuf, f.Meshvert)
		putI32(&faceBuf, f.NumMeshverts)
		faceBuf.Write(make([]byte, q3FaceStride-28))
	}
	writeFace(face)

	lumps := make([][]byte, q3LumpCount)
	lumps[q3LumpVertices] = vertBuf.Bytes()
	lumps[q3LumpFaces] = faceBuf.Bytes()
	for i := range lumps {
		if lumps[i] == nil {
			lumps[i] = []byte{}
		}
	}

	var out bytes.Buffer
	out.WriteString("IBSP")
	putI32(&out, 46)

	headerLen := 8 + q3LumpCount*8
	offset := headerLen
	for _, l := range lumps {
		putU32(&out, uint32(offset))
		putU32(&out, uint32(len(l)))
		offset += len(l)
	}
	for _, l := range lumps {
		out.Write(l)
	}
	return out.Bytes()
}

func TestParseQ3Fixture(t *testing.T) {
	data := buildQ3Fixture(t)
	m, err := ParseQ3(data)
	require.NoError(t, err)
	require.Equal(t, int32(46), m.Version)
	require.Len(t, m.Vertices, 3)
	require.Len(t, m.Faces, 1)
	require.Equal(t, Q3FacePolygon, m.Faces[0].Type)
	require.Equal(t, Vec3{64, 0, 0}, m.Vertices[1].Position)
}

func TestParseQ3RejectsMissingMagic(t *testing.T) {
	data := buildQ3Fixture(t)
	copy(data[0:4], "XXXX")
	_, err := ParseQ3(data)
	require.Error(t, err)
}

func TestParseQ3RejectsBadVersion(t *testing.T) {
	data := buildQ3Fixture(t)
	binary.LittleEndian.PutUint32(data[4:8], 99)
	_, err := ParseQ3(data)
	require.Error(t, err)
}
