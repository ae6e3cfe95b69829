// Package collision cooks parsed BSP geometry into a serializable collision
// world: world-space triangles, a 2-D quadtree chunking, and a
// deterministic chunk-bounds BVH.
package collision

import "math"

// Vec3 is an engine-space (x, z, -y converted from Quake) point or vector.
type Vec3 struct{ X, Y, Z float32 }

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Scale(s float32) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max Vec3
}

// EmptyAABB returns an AABB primed so the first Extend call replaces both
// bounds.
func EmptyAABB() AABB {
	inf := float32(math.Inf(1))
	return AABB{Min: Vec3{inf, inf, inf}, Max: Vec3{-inf, -inf, -inf}}
}

// Extend grows the box to include p.
func (b AABB) Extend(p Vec3) AABB {
	return AABB{
		Min: Vec3{minf(b.Min.X, p.X), minf(b.Min.Y, p.Y), minf(b.Min.Z, p.Z)},
		Max: Vec3{maxf(b.Max.X, p.X), maxf(b.Max.Y, p.Y), maxf(b.Max.Z, p.Z)},
	}
}

// Union returns the smallest AABB containing both a and b.
func (a AABB) Union(b AABB) AABB {
	return AABB{
		Min: Vec3{minf(a.Min.X, b.Min.X), minf(a.Min.Y, b.Min.Y), minf(a.Min.Z, b.Min.Z)},
		Max: Vec3{maxf(a.Max.X, b.Max.X), maxf(a.Max.Y, b.Max.Y), maxf(a.Max.Z, b.Max.Z)},
	}
}

// Intersects reports whether two AABBs overlap (touching counts as overlap).
func (a AABB) Intersects(b AABB) bool {
	if a.Max.X < b.Min.X || a.Min.X > b.Max.X {
		return false
	}
	if a.Max.Y < b.Min.Y || a.Min.Y > b.Max.Y {
		return false
	}
	if a.Max.Z < b.Min.Z || a.Min.Z > b.Max.Z {
		return false
	}
	return true
}

// Contains reports whether a contains b within ε on every axis.
func (a AABB) Contains(b AABB, eps float32) bool {
	return a.Min.X-eps <= b.Min.X && a.Min.Y-eps <= b.Min.Y && a.Min.Z-eps <= b.Min.Z &&
		a.Max.X+eps >= b.Max.X && a.Max.Y+eps >= b.Max.Y && a.Max.Z+eps >= b.Max.Z
}

// Center returns the midpoint of the box.
func (a AABB) Center() Vec3 {
	return Vec3{(a.Min.X + a.Max.X) / 2, (a.Min.Y + a.Max.Y) / 2, (a.Min.Z + a.Max.Z) / 2}
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// Triangle is a world-space, post-conversion collision triangle.
type Triangle struct {
	A, B, C Vec3
}

// AABB computes the triangle's bounding box.
func (t Triangle) AABB() AABB {
	box := EmptyAABB()
	return box.Extend(t.A).Extend(t.B).Extend(t.C)
}

// quakeToEngine converts Quake's (x, y, z) to engine (x, z, -y) after
// applying scale.
func quakeToEngine(x, y, z, scale float32) Vec3 {
	return Vec3{X: x * scale, Y: z * scale, Z: -y * scale}
}
