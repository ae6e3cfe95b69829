package collision

import "fmt"

// worldEpsilon is the ε tolerance for AABB-containment invariants.
const worldEpsilon = 1e-3

// World is the serializable collision world: version, partition metadata,
// the chunk list, and its chunk-bounds BVH.
type World struct {
	Version       int
	PartitionKind string
	SpaceOrigin   Vec3
	Scale         float32
	RootAABB      AABB
	Chunks        []Chunk
	BVH           BVH
}

// Validate checks version, finiteness, per-chunk well-formedness,
// root-AABB containment, and BVH structural soundness (valid indices,
// children contained by parent, each chunk in exactly one leaf).
func (w World) Validate() error {
	if w.Version != 1 {
		return fmt.Errorf("collision: unsupported world version %d", w.Version)
	}
	if !finiteVec3(w.SpaceOrigin) {
		return fmt.Errorf("collision: non-finite space origin")
	}
	if !finiteF32(w.Scale) || w.Scale == 0 {
		return fmt.Errorf("collision: invalid scale %v", w.Scale)
	}
	if !finiteAABB(w.RootAABB) {
		return fmt.Errorf("collision: non-finite root AABB")
	}

	union := EmptyAABB()
	for i, c := range w.Chunks {
		if c.ID == "" {
			return fmt.Errorf("collision: chunk %d has empty id", i)
		}
		if !finiteAABB(c.AABB) {
			return fmt.Errorf("collision: chunk %s has non-finite AABB", c.ID)
		}
		if c.PayloadURI == "" {
			return fmt.Errorf("collision: chunk %s has empty payload reference", c.ID)
		}
		if c.TriangleCount < 0 {
			return fmt.Errorf("collision: chunk %s has negative triangle count", c.ID)
		}
		union = union.Union(c.AABB)
	}
	if len(w.Chunks) > 0 && !w.RootAABB.Contains(union, worldEpsilon) {
		return fmt.Errorf("collision: root AABB does not contain the union of chunk AABBs")
	}

	return w.BVH.validate(w.Chunks)
}

func (bvh BVH) validate(chunks []Chunk) error {
	numChunks := len(chunks)
	if len(bvh.Nodes) == 0 {
		if numChunks != 0 {
			return fmt.Errorf("collision: bvh has no nodes but %d chunks exist", numChunks)
		}
		return nil
	}
	if bvh.Root < 0 || bvh.Root >= len(bvh.Nodes) {
		return fmt.Errorf("collision: bvh root index %d out of range", bvh.Root)
	}

	seen := make(map[int]bool, numChunks)
	var walk func(i int) (AABB, error)
	walk = func(i int) (AABB, error) {
		if i < 0 || i >= len(bvh.Nodes) {
			return AABB{}, fmt.Errorf("collision: bvh node index %d out of range", i)
		}
		node := bvh.Nodes[i]
		if !node.Internal {
			if node.First < 0 || node.First+node.Count > len(bvh.LeafIndices) {
				return AABB{}, fmt.Errorf("collision: bvh leaf %d has out-of-range range [%d,%d)", i, node.First, node.First+node.Count)
			}
			union := EmptyAABB()
			for k := 0; k < node.Count; k++ {
				idx := bvh.LeafIndices[node.First+k]
				if idx < 0 || idx >= numChunks {
					return AABB{}, fmt.Errorf("collision: bvh leaf %d references out-of-range chunk %d", i, idx)
				}
				if seen[idx] {
					return AABB{}, fmt.Errorf("collision: chunk %d appears in more than one bvh leaf", idx)
				}
				seen[idx] = true
				union = union.Union(chunks[idx].AABB)
			}
			if node.Count > 0 && !node.AABB.Contains(union, worldEpsilon) {
				return AABB{}, fmt.Errorf("collision: bvh leaf %d does not contain its chunks' union", i)
			}
			return node.AABB, nil
		}
		leftBox, err := walk(node.Left)
		if err != nil {
			return AABB{}, err
		}
		rightBox, err := walk(node.Right)
		if err != nil {
			return AABB{}, err
		}
		childUnion := leftBox.Union(rightBox)
		if !node.AABB.Contains(childUnion, worldEpsilon) {
			return AABB{}, fmt.Errorf("collision: bvh internal node %d does not contain its children's union", i)
		}
		return node.AABB, nil
	}

	if _, err := walk(bvh.Root); err != nil {
		return err
	}
	if len(seen) != numChunks {
		return fmt.Errorf("collision: bvh covers %d of %d chunks", len(seen), numChunks)
	}
	return nil
}

func finiteF32(f float32) bool {
	return f == f && f < 1e30 && f > -1e30
}

func finiteVec3(v Vec3) bool { return finiteF32(v.X) && finiteF32(v.Y) && finiteF32(v.Z) }

func finiteAABB(b AABB) bool { return finiteVec3(b.Min) && finiteVec3(b.Max) }
