// Package physics implements the engine's rigid-body/collider world and the
// character-collision component that wraps a step-and-slide kinematic
// character controller.
//
// No third-party character-controller crate exists in this ecosystem, so
// a minimal native step-and-slide substitute lives in stepslide.go, and
// colliders are modeled as axis-aligned boxes rather than a full
// convex/trimesh narrow phase. A collider's contact normal is derived
// from the closest-point direction unless a Normal is configured, which
// turns the box into a slab (used to stand in for sloped surfaces).
// The part worth testing carefully is the classification and post-hoc
// correction logic in CharacterCollision.Move, which is implemented
// faithfully against whatever contacts the primitive reports.
package physics

import "math"

// Vec3 mirrors collision.Vec3 locally so this package has no import-cycle
// dependency on the cooking pipeline; conversion is the caller's job.
type Vec3 struct{ X, Y, Z float32 }

func (a Vec3) Add(b Vec3) Vec3      { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3      { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float32) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) Dot(b Vec3) float32   { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func (a Vec3) Length() float32      { return float32(math.Sqrt(float64(a.Dot(a)))) }

func (a Vec3) Normalized() Vec3 {
	l := a.Length()
	if l < 1e-8 {
		return Vec3{}
	}
	return a.Scale(1 / l)
}

// Collider is a static world collider: an axis-aligned box. A zero Normal
// reports geometry-derived contact normals; a non-zero Normal turns the
// box into a slab that always reports that normal (a sloped surface's
// stand-in).
type Collider struct {
	Min, Max Vec3
	Normal   Vec3
}

func (c Collider) clampPoint(p Vec3) Vec3 {
	return Vec3{
		X: clampf(p.X, c.Min.X, c.Max.X),
		Y: clampf(p.Y, c.Min.Y, c.Max.Y),
		Z: clampf(p.Z, c.Min.Z, c.Max.Z),
	}
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// World owns the static collider set and gravity vector. Dynamic rigid
// bodies beyond the kinematic character are out of this core's scope; Step
// only advances a tick counter and keeps no derived broad-phase state.
type World struct {
	Gravity   Vec3
	Colliders []Collider

	tick uint64
}

// NewWorld constructs a World with the given gravity (default world-up
// fallback is +Y when gravity is zero).
func NewWorld(gravity Vec3) *World {
	return &World{Gravity: gravity}
}

// AddCollider registers a static collider.
func (w *World) AddCollider(c Collider) { w.Colliders = append(w.Colliders, c) }

// Step advances the world's tick counter. The collider set is static and
// queries read it directly, so dt is not used.
func (w *World) Step(dt float32) {
	w.tick++
}

// Up returns the world-up direction derived from gravity, falling back to
// +Y when gravity is zero.
func (w *World) Up() Vec3 {
	g := w.Gravity
	if g.Dot(g) < 1e-12 {
		return Vec3{0, 1, 0}
	}
	return g.Scale(-1).Normalized()
}
