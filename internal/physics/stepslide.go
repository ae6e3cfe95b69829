package physics

// slideParams carries the controller tuning stepAndSlide needs: the
// collision radius, the world-up direction, and the autostep envelope.
type slideParams struct {
	radius     float32
	up         Vec3
	autostep   bool
	stepHeight float32
	wallDot    float32 // cos(max climbable slope angle)
	snapDist   float32
}

// stepAndSlide is the minimal native step-and-slide primitive this core
// uses in place of a third-party character-controller library: it
// iteratively resolves penetration against the collider set and slides
// the remaining translation along each contact plane, invoking onContact
// once per resolved contact so the caller (CharacterCollision) can
// classify it. When autostep is enabled and a wall blocks the move, it
// attempts a raise-advance-drop pass over the obstruction; the returned
// bool reports whether that pass was taken.
func stepAndSlide(pos, translation Vec3, p slideParams, colliders []Collider, onContact func(Vec3)) (Vec3, bool) {
	const maxIterations = 4

	current := pos
	remaining := translation

	for iter := 0; iter < maxIterations; iter++ {
		if remaining.Dot(remaining) < 1e-12 {
			break
		}
		target := current.Add(remaining)
		normal, depth, hit := deepestPenetration(target, p.radius, colliders)
		if !hit {
			current = target
			remaining = Vec3{}
			break
		}

		upDot := normal.Dot(p.up)
		if p.autostep && upDot <= p.wallDot && upDot >= -0.1 {
			if stepped, groundNormal, ok := tryStep(current, remaining, p, colliders); ok {
				if onContact != nil {
					onContact(normal)
					onContact(groundNormal)
				}
				return stepped, true
			}
		}

		if onContact != nil {
			onContact(normal)
		}
		target = target.Add(normal.Scale(depth))
		consumed := target.Sub(current)
		current = target
		leftover := remaining.Sub(consumed)
		remaining = projectOntoPlane(leftover, normal)
	}

	return current, false
}

// tryStep attempts the autostep raise-advance-drop: lift the body by
// stepHeight, re-run the horizontal component of the remaining
// translation, then drop the foot back onto a climbable surface. Fails if
// the raised body or the raised target penetrates anything, or if the
// drop finds no climbable ground within the step envelope.
func tryStep(current, remaining Vec3, p slideParams, colliders []Collider) (Vec3, Vec3, bool) {
	horiz := projectOntoPlane(remaining, p.up)
	if horiz.Dot(horiz) < 1e-12 {
		return Vec3{}, Vec3{}, false
	}

	raised := current.Add(p.up.Scale(p.stepHeight))
	if _, _, hit := deepestPenetration(raised, p.radius, colliders); hit {
		return Vec3{}, Vec3{}, false
	}
	target := raised.Add(horiz)
	if _, _, hit := deepestPenetration(target, p.radius, colliders); hit {
		return Vec3{}, Vec3{}, false
	}

	foot := target.Sub(p.up.Scale(p.radius))
	hitPos, normal, ok := groundProbe(foot, p.up.Scale(-1), p.stepHeight+p.snapDist, colliders)
	if !ok || normal.Dot(p.up) <= p.wallDot {
		return Vec3{}, Vec3{}, false
	}
	return hitPos.Add(p.up.Scale(p.radius)), normal, true
}

func projectOntoPlane(v, n Vec3) Vec3 {
	d := v.Dot(n)
	return v.Sub(n.Scale(d))
}

// deepestPenetration finds the collider with the largest penetration depth
// against a radius-r sphere at p. A collider with a configured Normal is a
// slab: depth is measured along that normal. A zero Normal derives the
// contact normal from the closest-point direction instead.
func deepestPenetration(p Vec3, radius float32, colliders []Collider) (normal Vec3, depth float32, hit bool) {
	best := float32(-1e30)
	for _, c := range colliders {
		closest := c.clampPoint(p)
		diff := p.Sub(closest)
		full := diff.Length()
		inside := full < 1e-6

		n := c.Normal
		derived := n.Dot(n) < 1e-12

		var perp float32
		switch {
		case inside:
			if derived {
				n = Vec3{0, 1, 0}
			}
			perp = 0
		case full > radius:
			continue
		case derived:
			n = diff.Scale(1 / full)
			perp = full
		default:
			perp = diff.Dot(n)
		}

		d := radius - perp
		if d <= 0 {
			continue
		}
		if d > best {
			best = d
			normal = n
			depth = d
			hit = true
		}
	}
	return
}
