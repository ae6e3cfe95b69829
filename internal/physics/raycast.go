package physics

// rayAABB intersects a ray (origin, dir, not necessarily normalized) against
// a collider's box via the standard slab method, returning the entry
// distance along dir and the entry-face normal.
func rayAABB(origin, dir Vec3, maxDist float32, c Collider) (float32, Vec3, bool) {
	tmin, tmax := float32(0), maxDist
	entryAxis := -1
	axes := [3]struct{ o, d, lo, hi float32 }{
		{origin.X, dir.X, c.Min.X, c.Max.X},
		{origin.Y, dir.Y, c.Min.Y, c.Max.Y},
		{origin.Z, dir.Z, c.Min.Z, c.Max.Z},
	}
	for i, a := range axes {
		if absf(a.d) < 1e-8 {
			if a.o < a.lo || a.o > a.hi {
				return 0, Vec3{}, false
			}
			continue
		}
		t1 := (a.lo - a.o) / a.d
		t2 := (a.hi - a.o) / a.d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tmin {
			tmin = t1
			entryAxis = i
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return 0, Vec3{}, false
		}
	}

	var n Vec3
	switch entryAxis {
	case 0:
		n = Vec3{X: -signf(dir.X)}
	case 1:
		n = Vec3{Y: -signf(dir.Y)}
	case 2:
		n = Vec3{Z: -signf(dir.Z)}
	default:
		// Origin starts on or inside the box; face the ray back out.
		n = dir.Scale(-1).Normalized()
	}
	return tmin, n, true
}

func absf(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

func signf(f float32) float32 {
	if f < 0 {
		return -1
	}
	return 1
}

// groundProbe casts a ray from point along dir up to maxDist against every
// collider, returning the nearest hit. A collider's configured Normal, if
// any, overrides the geometric face normal. Equidistant hits prefer the
// normal most opposed to the ray, so a surface's facing collider beats a
// coincident side slab.
func groundProbe(point, dir Vec3, maxDist float32, colliders []Collider) (hitPos, normal Vec3, ok bool) {
	bestT := maxDist
	bestND := float32(1e30)
	found := false
	for _, c := range colliders {
		t, faceN, hit := rayAABB(point, dir, maxDist, c)
		if !hit {
			continue
		}
		n := c.Normal
		if n.Dot(n) < 1e-12 {
			n = faceN
		}
		nd := n.Dot(dir)
		if !found || t < bestT-1e-6 || (t <= bestT+1e-6 && nd < bestND) {
			bestT = t
			bestND = nd
			normal = n
			found = true
		}
	}
	if !found {
		return Vec3{}, Vec3{}, false
	}
	return point.Add(dir.Scale(bestT)), normal, true
}
