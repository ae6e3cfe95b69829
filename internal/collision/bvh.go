package collision

import "sort"

// BVHNode is either an internal node with two child indices, or a leaf
// holding a (First, Count) range into BVH.LeafIndices.
type BVHNode struct {
	AABB     AABB
	Internal bool
	Left     int // internal only
	Right    int // internal only
	First    int // leaf only
	Count    int // leaf only
}

// BVH is a binary tree over chunk bounds, built deterministically. Root is
// the index of the root node (the last node pushed during construction).
type BVH struct {
	Nodes       []BVHNode
	LeafIndices []int
	Root        int
}

// BuildBVH constructs a chunk-bounds BVH deterministically: leaves at
// |indices| <= 4, otherwise split on the longest axis of the union AABB by
// sorted centre-projection, tie-broken by original index. Nodes are
// recorded in post-order; the returned BVH's Root is the last index
// pushed. The split rule is fully deterministic given the same chunk list.
func BuildBVH(chunks []Chunk) BVH {
	b := &bvhBuilder{chunks: chunks}
	if len(chunks) == 0 {
		return BVH{}
	}
	indices := make([]int, len(chunks))
	for i := range indices {
		indices[i] = i
	}
	root := b.build(indices)
	return BVH{Nodes: b.nodes, LeafIndices: b.leafIndices, Root: root}
}

type bvhBuilder struct {
	chunks      []Chunk
	nodes       []BVHNode
	leafIndices []int
}

func (b *bvhBuilder) unionOf(indices []int) AABB {
	box := EmptyAABB()
	for _, i := range indices {
		box = box.Union(b.chunks[i].AABB)
	}
	return box
}

// build returns the index of the node it pushed.
func (b *bvhBuilder) build(indices []int) int {
	box := b.unionOf(indices)

	if len(indices) <= 4 {
		first := len(b.leafIndices)
		b.leafIndices = append(b.leafIndices, indices...)
		b.nodes = append(b.nodes, BVHNode{AABB: box, Internal: false, First: first, Count: len(indices)})
		return len(b.nodes) - 1
	}

	extent := Vec3{box.Max.X - box.Min.X, box.Max.Y - box.Min.Y, box.Max.Z - box.Min.Z}
	axis := 0 // x
	if extent.Y > extent.X && extent.Y >= extent.Z {
		axis = 1
	} else if extent.Z > extent.X && extent.Z > extent.Y {
		axis = 2
	}

	sorted := make([]int, len(indices))
	copy(sorted, indices)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci := centreOnAxis(b.chunks[sorted[i]].AABB, axis)
		cj := centreOnAxis(b.chunks[sorted[j]].AABB, axis)
		if ci != cj {
			return ci < cj
		}
		return sorted[i] < sorted[j]
	})

	mid := len(sorted) / 2
	left := b.build(sorted[:mid])
	right := b.build(sorted[mid:])

	b.nodes = append(b.nodes, BVHNode{AABB: box, Internal: true, Left: left, Right: right})
	return len(b.nodes) - 1
}

func centreOnAxis(box AABB, axis int) float32 {
	c := box.Center()
	switch axis {
	case 0:
		return c.X
	case 1:
		return c.Y
	default:
		return c.Z
	}
}

// SelectIntersecting returns the indices (into the owning World's Chunks)
// of every chunk whose AABB intersects bounds, via an iterative stack walk
// in stack-traversal order.
func (bvh BVH) SelectIntersecting(bounds AABB, chunks []Chunk) []int {
	if len(bvh.Nodes) == 0 {
		return nil
	}
	var out []int
	stack := []int{bvh.Root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := bvh.Nodes[n]
		if !node.AABB.Intersects(bounds) {
			continue
		}
		if !node.Internal {
			for i := 0; i < node.Count; i++ {
				idx := bvh.LeafIndices[node.First+i]
				if idx >= 0 && idx < len(chunks) && chunks[idx].AABB.Intersects(bounds) {
					out = append(out, idx)
				}
			}
			continue
		}
		stack = append(stack, node.Left, node.Right)
	}
	return out
}
