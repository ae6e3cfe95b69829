package collision

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func chunkAt(id string, min, max Vec3) Chunk {
	return Chunk{ID: id, AABB: AABB{Min: min, Max: max}, PayloadURI: "collision://" + id, TriangleCount: 1}
}

func TestBVHDeterminism(t *testing.T) {
	chunks := []Chunk{
		chunkAt("a", Vec3{0, 0, 0}, Vec3{1, 1, 1}),
		chunkAt("b", Vec3{5, 0, 5}, Vec3{6, 1, 6}),
		chunkAt("c", Vec3{10, 0, 0}, Vec3{11, 1, 1}),
		chunkAt("d", Vec3{-5, 0, -5}, Vec3{-4, 1, -4}),
		chunkAt("e", Vec3{20, 0, 20}, Vec3{21, 1, 21}),
	}
	bvh1 := BuildBVH(chunks)
	bvh2 := BuildBVH(chunks)
	require.Equal(t, bvh1, bvh2)
}

func TestBVHCoverage(t *testing.T) {
	chunks := []Chunk{
		chunkAt("a", Vec3{0, 0, 0}, Vec3{1, 1, 1}),
		chunkAt("b", Vec3{5, 0, 5}, Vec3{6, 1, 6}),
		chunkAt("c", Vec3{10, 0, 0}, Vec3{11, 1, 1}),
	}
	bvh := BuildBVH(chunks)

	root := EmptyAABB()
	for _, c := range chunks {
		root = root.Union(c.AABB)
	}
	got := bvh.SelectIntersecting(root, chunks)
	require.ElementsMatch(t, []int{0, 1, 2}, got)
}

// TestBVHQueryTwoChunks covers two chunks a[0,0,0]-[1,1,1] and
// b[5,0,5]-[6,1,6]; a query box [0.5,-1,0.5]-[1.5,2,1.5] should return
// exactly [0].
func TestBVHQueryTwoChunks(t *testing.T) {
	chunks := []Chunk{
		chunkAt("a", Vec3{0, 0, 0}, Vec3{1, 1, 1}),
		chunkAt("b", Vec3{5, 0, 5}, Vec3{6, 1, 6}),
	}
	bvh := BuildBVH(chunks)
	query := AABB{Min: Vec3{0.5, -1, 0.5}, Max: Vec3{1.5, 2, 1.5}}
	got := bvh.SelectIntersecting(query, chunks)
	require.Equal(t, []int{0}, got)
}

func TestCookRoundTrip(t *testing.T) {
	tris := []Triangle{
		{A: Vec3{0, 0, 0}, B: Vec3{1, 0, 0}, C: Vec3{0, 0, 1}},
		{A: Vec3{10, 0, 10}, B: Vec3{11, 0, 10}, C: Vec3{10, 0, 11}},
	}
	cfg := DefaultCookConfig("testmap")
	w := Cook(tris, cfg)
	require.NoError(t, w.Validate())

	str := w.ToString()
	parsed, err := ParseWorld(str)
	require.NoError(t, err)
	require.NoError(t, parsed.Validate())
	require.Equal(t, w, parsed)

	reStr := parsed.ToString()
	reparsed, err := ParseWorld(reStr)
	require.NoError(t, err)
	require.Equal(t, parsed, reparsed)
}

func TestFanTriangulateDropsDegenerate(t *testing.T) {
	poly := []Vec3{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}}
	tris := fanTriangulate(poly)
	require.Len(t, tris, 0)
}

func TestFanTriangulateSimpleQuad(t *testing.T) {
	poly := []Vec3{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}
	tris := fanTriangulate(poly)
	require.Len(t, tris, 2)
}
