package physics

import "math"

// Profile is the character collision tuning data.
type Profile struct {
	CapsuleRadius      float32
	CapsuleHeight      float32
	StepHeight         float32
	StepMinWidth       float32
	MaxSlopeClimbRad   float32
	MinSlideAngleRad   float32
	GroundSnapDist     float32
	EnvironmentOffset  float32
	NormalNudge        float32
	WallSlideDamping   float32 // [0,1]
	WallStepMinForward float32
}

// DefaultProfile returns reasonable tuning values.
func DefaultProfile() Profile {
	return Profile{
		CapsuleRadius:      0.4,
		CapsuleHeight:      1.8,
		StepHeight:         0.3,
		StepMinWidth:       0.2,
		MaxSlopeClimbRad:   float32(50 * math.Pi / 180),
		MinSlideAngleRad:   float32(45 * math.Pi / 180),
		GroundSnapDist:     0.3,
		EnvironmentOffset:  0.02,
		NormalNudge:        0.01,
		WallSlideDamping:   0.8,
		WallStepMinForward: 0.05,
	}
}

// MoveInput is a single character-collision move request.
type MoveInput struct {
	Position    Vec3
	Translation Vec3
	AllowStep   bool
	DT          float32
}

// MoveResult is CharacterCollision.Move's output.
type MoveResult struct {
	Position     Vec3
	Translation  Vec3
	Grounded     bool
	GroundNormal Vec3
	HitWall      bool
	WallNormal   Vec3
	HitCeiling   bool
	Sliding      bool
}

// CharacterCollision wraps the step-and-slide primitive with
// ground/wall/ceiling classification and post-hoc corrections. It does
// not reimplement step-and-slide itself.
type CharacterCollision struct {
	World   *World
	Profile Profile
}

const stepEpsilon = 1e-4

func cosOf(rad float32) float32 { return float32(math.Cos(float64(rad))) }

// contacts accumulates the per-contact classification one controller pass
// produces: the best ground support, the most-opposing wall, and whether
// a ceiling was touched.
type contacts struct {
	haveGround, haveWall, ceiling bool
	groundNormal, wallNormal      Vec3
	bestGroundUpDot               float32
	bestWallOpp, bestWallUpDot    float32
}

// Move performs one step-and-slide character move.
func (cc *CharacterCollision) Move(in MoveInput) MoveResult {
	up := cc.World.Up()
	wallDot := cosOf(cc.Profile.MaxSlopeClimbRad)
	slideDot := cosOf(cc.Profile.MinSlideAngleRad)

	allowStep := in.AllowStep
	movingUp := in.Translation.Dot(up) > 0
	disableGroundSnap := !allowStep && movingUp
	desiredDir := in.Translation.Normalized()

	params := slideParams{
		radius:     cc.Profile.CapsuleRadius,
		up:         up,
		stepHeight: cc.Profile.StepHeight,
		wallDot:    wallDot,
		snapDist:   cc.Profile.GroundSnapDist,
	}
	colliders := cc.World.Colliders

	runPass := func(autostep bool) (Vec3, bool, *contacts) {
		cl := &contacts{bestGroundUpDot: -1e30, bestWallOpp: -1e30, bestWallUpDot: 1e30}
		p := params
		p.autostep = autostep
		end, stepped := stepAndSlide(in.Position, in.Translation, p, colliders, func(n Vec3) {
			upDot := n.Dot(up)
			switch {
			case upDot > wallDot:
				if upDot > cl.bestGroundUpDot {
					cl.bestGroundUpDot = upDot
					cl.groundNormal = n
					cl.haveGround = true
				}
			case upDot < -0.1 && movingUp && !allowStep:
				cl.ceiling = true
			default:
				opp := -n.Dot(desiredDir)
				if opp > cl.bestWallOpp || (opp == cl.bestWallOpp && upDot < cl.bestWallUpDot) {
					cl.bestWallOpp = opp
					cl.bestWallUpDot = upDot
					cl.wallNormal = n
					cl.haveWall = true
				}
			}
		})
		return end, stepped, cl
	}

	endPos, stepped, cl := runPass(allowStep)
	accepted := endPos.Sub(in.Position)

	// Step 4: a step-up taken by the controller is only retained when the
	// move looks like walking into a step: wall contact, grounded landing,
	// a rise within the step envelope, no upward intent, and enough
	// forward progress. Anything else reverts to the flat pass.
	stepRetained := false
	if stepped {
		upAmount := accepted.Dot(up)
		horizAccepted := horizontalComponent(accepted, up)
		horizDesired := horizontalComponent(in.Translation, up)

		keep := allowStep && cl.haveWall && cl.haveGround &&
			upAmount > 0 && upAmount <= cc.Profile.StepHeight+stepEpsilon &&
			in.Translation.Dot(up) <= 0 &&
			horizAccepted.Length() >= maxf32(cc.Profile.WallStepMinForward, 0.05*horizDesired.Length())
		if keep {
			foot := endPos.Sub(up.Scale(cc.Profile.CapsuleRadius))
			maxProbe := cc.Profile.StepHeight + cc.Profile.EnvironmentOffset + stepEpsilon
			if _, _, hit := groundProbe(foot, up.Scale(-1), maxProbe, colliders); hit {
				stepRetained = true
			}
		}
		if !stepRetained {
			endPos, _, cl = runPass(false)
			accepted = endPos.Sub(in.Position)
		}
	}

	finalPos := endPos

	// Step 5: wall slide + damping, only when a wall was hit and no step
	// was retained.
	if cl.haveWall && !stepRetained {
		adjusted := projectOntoPlane(accepted, cl.wallNormal)
		adjusted = adjusted.Scale(cc.Profile.WallSlideDamping)
		finalPos = in.Position.Add(adjusted)
		accepted = adjusted
	}

	// Step 6: restore desired upward translation when moving up without a
	// ceiling hit, undoing any shortening from slope/ground collisions.
	// Same moving-up-while-not-stepping qualifier as the ceiling
	// classification and the ground-probe skip.
	if movingUp && !allowStep && !cl.ceiling {
		desiredUp := in.Translation.Dot(up)
		currentUp := accepted.Dot(up)
		if desiredUp != currentUp {
			accepted = accepted.Add(up.Scale(desiredUp - currentUp))
			finalPos = in.Position.Add(accepted)
		}
	}

	// Step 7: foot-ray ground probe at the resulting position.
	grounded := cl.haveGround
	groundNormal := cl.groundNormal
	sliding := false
	if !disableGroundSnap {
		foot := finalPos.Sub(up.Scale(cc.Profile.CapsuleRadius))
		_, hitNormal, ok := groundProbe(foot, up.Scale(-1), cc.Profile.GroundSnapDist, colliders)
		switch {
		case ok:
			upDot := hitNormal.Dot(up)
			grounded = upDot >= wallDot
			if grounded {
				groundNormal = hitNormal
			}
			sliding = upDot <= slideDot
		case cl.haveGround && cl.bestGroundUpDot <= slideDot:
			// Step 8: no ray hit but the slide already reported a shallow
			// support normal; still flag grounded-sliding.
			grounded = true
			sliding = true
		default:
			grounded = false
		}
	}

	// Step 9: moving up with stepping disabled is never grounded.
	if movingUp && !allowStep {
		grounded = false
	}

	return MoveResult{
		Position:     finalPos,
		Translation:  accepted,
		Grounded:     grounded,
		GroundNormal: groundNormal,
		HitWall:      cl.haveWall,
		WallNormal:   cl.wallNormal,
		HitCeiling:   cl.ceiling,
		Sliding:      sliding,
	}
}

func horizontalComponent(v, up Vec3) Vec3 {
	return v.Sub(up.Scale(v.Dot(up)))
}

func maxf32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
