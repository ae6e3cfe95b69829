package collision

import (
	"github.com/pallet-engine/pallet/internal/bsp"
)

// degenerateAreaSqThreshold is the squared-doubled-area cutoff below which a
// fan triangle is dropped as degenerate.
const degenerateAreaSqThreshold = 1e-10

func sub(a, b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }

func cross(a, b Vec3) Vec3 {
	return Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

func dot(a, b Vec3) float32 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

func isDegenerate(a, b, c Vec3) bool {
	n := cross(sub(b, a), sub(c, a))
	return dot(n, n) <= degenerateAreaSqThreshold
}

// fanTriangulate emits one triangle per (poly[0], poly[i], poly[i+1]) for
// i in [1, len-2], dropping degenerate ones.
func fanTriangulate(poly []Vec3) []Triangle {
	if len(poly) < 3 {
		return nil
	}
	out := make([]Triangle, 0, len(poly)-2)
	for i := 1; i < len(poly)-1; i++ {
		a, b, c := poly[0], poly[i], poly[i+1]
		if isDegenerate(a, b, c) {
			continue
		}
		out = append(out, Triangle{A: a, B: b, C: c})
	}
	return out
}

// TriangulateQ1 walks model 0's (world geometry's) face range, assembling
// each face's polygon from its surfedge run before fan-triangulating it.
func TriangulateQ1(m *bsp.Q1Map, scale float32) []Triangle {
	if len(m.Models) == 0 {
		return nil
	}
	world := m.Models[0]

	var out []Triangle
	for fi := world.FirstFace; fi < world.FirstFace+world.NumFaces; fi++ {
		if int(fi) < 0 || int(fi) >= len(m.Faces) {
			continue
		}
		face := m.Faces[fi]
		poly := make([]Vec3, 0, face.NumEdges)
		for i := int32(0); i < int32(face.NumEdges); i++ {
			seIdx := face.FirstEdge + i
			if int(seIdx) < 0 || int(seIdx) >= len(m.Surfedges) {
				continue
			}
			se := m.Surfedges[seIdx]
			var edgeIdx int32
			var useSecond bool
			if se >= 0 {
				edgeIdx = se
				useSecond = false
			} else {
				edgeIdx = -se
				useSecond = true
			}
			if int(edgeIdx) < 0 || int(edgeIdx) >= len(m.Edges) {
				continue
			}
			edge := m.Edges[edgeIdx]
			var vertIdx uint16
			if useSecond {
				vertIdx = edge[1]
			} else {
				vertIdx = edge[0]
			}
			if int(vertIdx) >= len(m.Vertices) {
				continue
			}
			v := m.Vertices[vertIdx]
			poly = append(poly, quakeToEngine(v[0], v[1], v[2], scale))
		}
		out = append(out, fanTriangulate(poly)...)
	}
	return out
}

// TriangulateQ3 triangulates planar (type 1) faces as a vertex-range fan and
// mesh (type 3) faces by consuming meshverts in groups of three. All other
// face types are skipped.
func TriangulateQ3(m *bsp.Q3Map, scale float32) []Triangle {
	var out []Triangle
	for _, face := range m.Faces {
		switch face.Type {
		case bsp.Q3FacePolygon:
			poly := make([]Vec3, 0, face.NumVertexes)
			for i := int32(0); i < face.NumVertexes; i++ {
				vi := face.Vertex + i
				if int(vi) < 0 || int(vi) >= len(m.Vertices) {
					continue
				}
				p := m.Vertices[vi].Position
				poly = append(poly, quakeToEngine(p[0], p[1], p[2], scale))
			}
			out = append(out, fanTriangulate(poly)...)
		case bsp.Q3FaceMesh:
			for i := int32(0); i+3 <= face.NumMeshverts; i += 3 {
				mi0 := face.Meshvert + i
				mi1 := face.Meshvert + i + 1
				mi2 := face.Meshvert + i + 2
				if int(mi2) >= len(m.Meshverts) || int(mi0) < 0 {
					continue
				}
				vi0 := face.Vertex + m.Meshverts[mi0]
				vi1 := face.Vertex + m.Meshverts[mi1]
				vi2 := face.Vertex + m.Meshverts[mi2]
				if int(vi0) < 0 || int(vi0) >= len(m.Vertices) ||
					int(vi1) < 0 || int(vi1) >= len(m.Vertices) ||
					int(vi2) < 0 || int(vi2) >= len(m.Vertices) {
					continue
				}
				p0 := m.Vertices[vi0].Position
				p1 := m.Vertices[vi1].Position
				p2 := m.Vertices[vi2].Position
				a := quakeToEngine(p0[0], p0[1], p0[2], scale)
				b := quakeToEngine(p1[0], p1[1], p1[2], scale)
				c := quakeToEngine(p2[0], p2[1], p2[2], scale)
				if isDegenerate(a, b, c) {
					continue
				}
				out = append(out, Triangle{A: a, B: b, C: c})
			}
		default:
			continue
		}
	}
	return out
}
