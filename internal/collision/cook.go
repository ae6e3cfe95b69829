package collision

import "fmt"

// CookConfig parameterizes triangulation, quadtree chunking, and scale/
// origin for a single map cook.
type CookConfig struct {
	MapLabel             string
	Scale                float32
	SpaceOrigin          Vec3
	QuadtreeMaxDepth     int
	QuadtreeMaxTriangles int
}

// DefaultCookConfig returns reasonable chunking parameters.
func DefaultCookConfig(label string) CookConfig {
	return CookConfig{
		MapLabel:             label,
		Scale:                1,
		QuadtreeMaxDepth:     6,
		QuadtreeMaxTriangles: 256,
	}
}

// Chunk is one leaf of the quadtree partition: a world-space AABB, an
// opaque payload reference, and a triangle count.
type Chunk struct {
	ID             string
	AABB           AABB
	PayloadURI     string
	TriangleCount  int
	PartitionHint  string
}

type quadBuilder struct {
	cfg    CookConfig
	chunks []Chunk
}

// buildQuadtree partitions tris in the XZ plane under cfg's depth/count
// limits, emitting leaf chunks in a deterministic SW/SE/NW/NE traversal
// order.
func buildQuadtree(tris []Triangle, cfg CookConfig) []Chunk {
	b := &quadBuilder{cfg: cfg}
	if len(tris) == 0 {
		return nil
	}
	bounds := EmptyAABB()
	for _, t := range tris {
		box := t.AABB()
		bounds = bounds.Union(box)
	}
	b.split(tris, bounds, 0, "0")
	return b.chunks
}

func (b *quadBuilder) split(tris []Triangle, bounds AABB, depth int, hint string) {
	if len(tris) <= b.cfg.QuadtreeMaxTriangles || depth >= b.cfg.QuadtreeMaxDepth {
		b.emitLeaf(tris, hint)
		return
	}

	midX := (bounds.Min.X + bounds.Max.X) / 2
	midZ := (bounds.Min.Z + bounds.Max.Z) / 2

	var sw, se, nw, ne []Triangle
	for _, t := range tris {
		c := t.AABB().Center()
		switch {
		case c.X < midX && c.Z < midZ:
			sw = append(sw, t)
		case c.X >= midX && c.Z < midZ:
			se = append(se, t)
		case c.X < midX && c.Z >= midZ:
			nw = append(nw, t)
		default:
			ne = append(ne, t)
		}
	}

	// A quadrant containing every triangle (all centroids on one side)
	// would recurse forever; emit a leaf instead.
	if len(sw) == len(tris) || len(se) == len(tris) || len(nw) == len(tris) || len(ne) == len(tris) {
		b.emitLeaf(tris, hint)
		return
	}

	quads := []struct {
		name string
		tris []Triangle
		box  AABB
	}{
		{"sw", sw, AABB{Min: bounds.Min, Max: Vec3{midX, bounds.Max.Y, midZ}}},
		{"se", se, AABB{Min: Vec3{midX, bounds.Min.Y, bounds.Min.Z}, Max: Vec3{bounds.Max.X, bounds.Max.Y, midZ}}},
		{"nw", nw, AABB{Min: Vec3{bounds.Min.X, bounds.Min.Y, midZ}, Max: Vec3{midX, bounds.Max.Y, bounds.Max.Z}}},
		{"ne", ne, AABB{Min: Vec3{midX, bounds.Min.Y, midZ}, Max: bounds.Max}},
	}
	for _, q := range quads {
		if len(q.tris) == 0 {
			continue
		}
		b.split(q.tris, q.box, depth+1, hint+"/"+q.name)
	}
}

func (b *quadBuilder) emitLeaf(tris []Triangle, hint string) {
	box := EmptyAABB()
	for _, t := range tris {
		box = box.Union(t.AABB())
	}
	idx := len(b.chunks)
	b.chunks = append(b.chunks, Chunk{
		ID:            fmt.Sprintf("%s/chunk%d", b.cfg.MapLabel, idx),
		AABB:          box,
		PayloadURI:    fmt.Sprintf("collision://%s/chunk%d", b.cfg.MapLabel, idx),
		TriangleCount: len(tris),
		PartitionHint: hint,
	})
}

// Cook triangulates and chunks a set of world-space triangles into a full
// CollisionWorld, including its chunk-bounds BVH.
func Cook(tris []Triangle, cfg CookConfig) World {
	chunks := buildQuadtree(tris, cfg)

	root := EmptyAABB()
	for _, c := range chunks {
		root = root.Union(c.AABB)
	}

	bvh := BuildBVH(chunks)

	return World{
		Version:       1,
		PartitionKind: "quadtree",
		SpaceOrigin:   cfg.SpaceOrigin,
		Scale:         cfg.Scale,
		RootAABB:      root,
		Chunks:        chunks,
		BVH:           bvh,
	}
}
