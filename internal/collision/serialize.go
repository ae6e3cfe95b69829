package collision

import (
	"fmt"
	"strconv"
	"strings"
)

// ToString renders a World as a human-readable key/value document
// (distinct from the build manifest's pipe-delimited format: this one is
// indexed key=value lines, values comma-joined where plural).
func (w World) ToString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "version=%d\n", w.Version)
	fmt.Fprintf(&b, "partition_kind=%s\n", w.PartitionKind)
	fmt.Fprintf(&b, "origin=%s\n", vecStr(w.SpaceOrigin))
	fmt.Fprintf(&b, "scale=%s\n", f32Str(w.Scale))
	fmt.Fprintf(&b, "root_aabb=%s\n", aabbStr(w.RootAABB))
	fmt.Fprintf(&b, "chunks=%d\n", len(w.Chunks))
	for i, c := range w.Chunks {
		fmt.Fprintf(&b, "chunk%d.id=%s\n", i, c.ID)
		fmt.Fprintf(&b, "chunk%d.aabb=%s\n", i, aabbStr(c.AABB))
		fmt.Fprintf(&b, "chunk%d.payload=%s\n", i, c.PayloadURI)
		fmt.Fprintf(&b, "chunk%d.triangles=%d\n", i, c.TriangleCount)
		fmt.Fprintf(&b, "chunk%d.partition_hint=%s\n", i, c.PartitionHint)
	}
	fmt.Fprintf(&b, "bvh.root=%d\n", w.BVH.Root)
	fmt.Fprintf(&b, "bvh.nodes=%d\n", len(w.BVH.Nodes))
	fmt.Fprintf(&b, "bvh.leaf_indices=%s\n", joinInts(w.BVH.LeafIndices))
	for i, n := range w.BVH.Nodes {
		if n.Internal {
			fmt.Fprintf(&b, "node%d.kind=internal\n", i)
			fmt.Fprintf(&b, "node%d.aabb=%s\n", i, aabbStr(n.AABB))
			fmt.Fprintf(&b, "node%d.left=%d\n", i, n.Left)
			fmt.Fprintf(&b, "node%d.right=%d\n", i, n.Right)
		} else {
			fmt.Fprintf(&b, "node%d.kind=leaf\n", i)
			fmt.Fprintf(&b, "node%d.aabb=%s\n", i, aabbStr(n.AABB))
			fmt.Fprintf(&b, "node%d.first=%d\n", i, n.First)
			fmt.Fprintf(&b, "node%d.count=%d\n", i, n.Count)
		}
	}
	return b.String()
}

// ParseWorld parses the ToString format back into a World.
func ParseWorld(s string) (World, error) {
	kv := make(map[string]string)
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			return World{}, fmt.Errorf("collision: malformed line %q", line)
		}
		kv[line[:idx]] = line[idx+1:]
	}

	var w World
	var err error
	if w.Version, err = parseIntField(kv, "version"); err != nil {
		return World{}, err
	}
	w.PartitionKind = kv["partition_kind"]
	if w.SpaceOrigin, err = parseVec(kv["origin"]); err != nil {
		return World{}, fmt.Errorf("collision: origin: %w", err)
	}
	scale, err := parseF32(kv["scale"])
	if err != nil {
		return World{}, fmt.Errorf("collision: scale: %w", err)
	}
	w.Scale = scale
	if w.RootAABB, err = parseAABB(kv["root_aabb"]); err != nil {
		return World{}, fmt.Errorf("collision: root_aabb: %w", err)
	}

	numChunks, err := parseIntField(kv, "chunks")
	if err != nil {
		return World{}, err
	}
	w.Chunks = make([]Chunk, numChunks)
	for i := 0; i < numChunks; i++ {
		var c Chunk
		c.ID = kv[fmt.Sprintf("chunk%d.id", i)]
		if c.AABB, err = parseAABB(kv[fmt.Sprintf("chunk%d.aabb", i)]); err != nil {
			return World{}, fmt.Errorf("collision: chunk%d.aabb: %w", i, err)
		}
		c.PayloadURI = kv[fmt.Sprintf("chunk%d.payload", i)]
		if c.TriangleCount, err = parseIntField(kv, fmt.Sprintf("chunk%d.triangles", i)); err != nil {
			return World{}, err
		}
		c.PartitionHint = kv[fmt.Sprintf("chunk%d.partition_hint", i)]
		w.Chunks[i] = c
	}

	if w.BVH.Root, err = parseIntField(kv, "bvh.root"); err != nil {
		return World{}, err
	}
	numNodes, err := parseIntField(kv, "bvh.nodes")
	if err != nil {
		return World{}, err
	}
	w.BVH.LeafIndices, err = parseIntList(kv["bvh.leaf_indices"])
	if err != nil {
		return World{}, fmt.Errorf("collision: bvh.leaf_indices: %w", err)
	}
	w.BVH.Nodes = make([]BVHNode, numNodes)
	for i := 0; i < numNodes; i++ {
		var n BVHNode
		kind := kv[fmt.Sprintf("node%d.kind", i)]
		if n.AABB, err = parseAABB(kv[fmt.Sprintf("node%d.aabb", i)]); err != nil {
			return World{}, fmt.Errorf("collision: node%d.aabb: %w", i, err)
		}
		switch kind {
		case "internal":
			n.Internal = true
			if n.Left, err = parseIntField(kv, fmt.Sprintf("node%d.left", i)); err != nil {
				return World{}, err
			}
			if n.Right, err = parseIntField(kv, fmt.Sprintf("node%d.right", i)); err != nil {
				return World{}, err
			}
		case "leaf":
			if n.First, err = parseIntField(kv, fmt.Sprintf("node%d.first", i)); err != nil {
				return World{}, err
			}
			if n.Count, err = parseIntField(kv, fmt.Sprintf("node%d.count", i)); err != nil {
				return World{}, err
			}
		default:
			return World{}, fmt.Errorf("collision: node%d has unknown kind %q", i, kind)
		}
		w.BVH.Nodes[i] = n
	}

	return w, nil
}

func vecStr(v Vec3) string { return fmt.Sprintf("%s,%s,%s", f32Str(v.X), f32Str(v.Y), f32Str(v.Z)) }

func aabbStr(b AABB) string { return vecStr(b.Min) + "," + vecStr(b.Max) }

func f32Str(f float32) string { return strconv.FormatFloat(float64(f), 'g', -1, 32) }

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}

func parseIntField(kv map[string]string, key string) (int, error) {
	v, ok := kv[key]
	if !ok {
		return 0, fmt.Errorf("collision: missing field %q", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("collision: field %q: %w", key, err)
	}
	return n, nil
}

func parseF32(s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	return float32(f), err
}

func parseVec(s string) (Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Vec3{}, fmt.Errorf("expected 3 comma-separated components, got %d", len(parts))
	}
	x, err := parseF32(parts[0])
	if err != nil {
		return Vec3{}, err
	}
	y, err := parseF32(parts[1])
	if err != nil {
		return Vec3{}, err
	}
	z, err := parseF32(parts[2])
	if err != nil {
		return Vec3{}, err
	}
	return Vec3{x, y, z}, nil
}

func parseAABB(s string) (AABB, error) {
	parts := strings.SplitN(s, ",", 6)
	if len(parts) != 6 {
		return AABB{}, fmt.Errorf("expected 6 comma-separated components, got %d", len(parts))
	}
	min, err := parseVec(strings.Join(parts[0:3], ","))
	if err != nil {
		return AABB{}, err
	}
	max, err := parseVec(strings.Join(parts[3:6], ","))
	if err != nil {
		return AABB{}, err
	}
	return AABB{Min: min, Max: max}, nil
}

func parseIntList(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	var err error
	for i, p := range parts {
		out[i], err = strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
