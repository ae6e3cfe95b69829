package motor

import "math"

// ArenaConfig tunes the arena-style motor: ground friction/acceleration,
// golden-angle air control, bhop grace, and jump buffering.
type ArenaConfig struct {
	MaxSpeedGround   float32
	GroundAccel      float32
	GroundFriction   float32

	AirAccel   float32
	MaxSpeedAir float32

	// Golden-angle air-control gain curve.
	GoldenAngleTargetRad float32
	GainMin              float32
	GainPeak             float32
	BlendStartSpeed      float32
	BlendEndSpeed        float32
	AirBonusImpulse      float32

	// Corridor shaping: caps how fast velocity direction can rotate
	// toward intent, in radians/sec. Zero disables shaping.
	CorridorTurnRateRad float32

	JumpSpeed        float32
	JumpBufferWindow float32

	// Bhop grace: on landing with a buffered/live jump, friction is
	// reduced for BhopGraceWindow seconds.
	BhopGraceWindow float32
	BhopGraceHard   bool // Hard: zero friction; Soft: lerp base->best-angle scale
}

// DefaultArenaConfig returns reasonable arena-motor tuning.
func DefaultArenaConfig() ArenaConfig {
	return ArenaConfig{
		MaxSpeedGround:       7,
		GroundAccel:          14,
		GroundFriction:       6,
		AirAccel:             1.2,
		MaxSpeedAir:          1.5,
		GoldenAngleTargetRad: 2.399963, // ~137.5 deg, the golden angle
		GainMin:              0.3,
		GainPeak:             1.6,
		BlendStartSpeed:      2,
		BlendEndSpeed:        6,
		AirBonusImpulse:      0.15,
		CorridorTurnRateRad:  0,
		JumpSpeed:            4.5,
		JumpBufferWindow:     0.12,
		BhopGraceWindow:      0.25,
		BhopGraceHard:        false,
	}
}

// ArenaMotor implements the bhop/golden-angle air-control character motor.
type ArenaMotor struct {
	Config ArenaConfig
}

func NewArenaMotor(cfg ArenaConfig) *ArenaMotor { return &ArenaMotor{Config: cfg} }

// ResetState clears a State's carried-forward timers/velocity.
func (m *ArenaMotor) ResetState(s *State) { s.Reset() }

// angleBetween returns the unsigned angle in radians between two planar
// vectors, 0 when either is near-zero.
func angleBetween(a, b Vec3) float32 {
	la, lb := a.Length(), b.Length()
	if la < 1e-6 || lb < 1e-6 {
		return 0
	}
	cos := clamp01f(a.Dot(b) / (la * lb))
	return acos32(cos)
}

func clamp01f(v float32) float32 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func acos32(v float32) float32 {
	return float32(math.Acos(float64(v)))
}

// Step advances the motor by one tick. in.WishX/WishZ are a planar wish
// axis in [-1,1]^2 already magnitude-clamped to the unit disc by the
// caller; YawForward is the character's planar facing direction.
func (m *ArenaMotor) Step(s *State, in Input) Output {
	cfg := m.Config
	dt := in.DT

	wishDir := Vec3{in.WishX, 0, in.WishZ}
	wishLen := wishDir.Length()
	if wishLen > 1 {
		wishDir = wishDir.Scale(1 / wishLen)
		wishLen = 1
	}

	vel := s.Velocity
	planarVel := Vec3{vel.X, 0, vel.Z}

	// Jump buffering: level-triggered window.
	if in.Jump {
		s.jumpBufferT = cfg.JumpBufferWindow
	} else if s.jumpBufferT > 0 {
		s.jumpBufferT -= dt
		if s.jumpBufferT < 0 {
			s.jumpBufferT = 0
		}
	}

	jumped := false
	wasGrounded := s.Grounded

	if s.Grounded {
		// Bhop grace window countdown.
		if s.bhopGraceT > 0 {
			s.bhopGraceT -= dt
			if s.bhopGraceT < 0 {
				s.bhopGraceT = 0
			}
		}

		friction := cfg.GroundFriction
		if s.bhopGraceT > 0 {
			if cfg.BhopGraceHard {
				friction = 0
			} else {
				quality := 1 - clamp01(angleBetween(planarVel, wishDir)/cfg.GoldenAngleTargetRad)
				friction = lerp(cfg.GroundFriction, 0, quality)
			}
		}

		speed := planarVel.Length()
		if speed > 0 {
			drop := speed * friction * dt
			newSpeed := speed - drop
			if newSpeed < 0 {
				newSpeed = 0
			}
			planarVel = planarVel.Scale(newSpeed / speed)
		}

		if wishLen > 0 {
			wishSpeed := cfg.MaxSpeedGround * wishLen
			addSpeed := wishSpeed - planarVel.Dot(wishDir)
			if addSpeed > 0 {
				accelSpeed := minf32(cfg.GroundAccel*dt*wishSpeed, addSpeed)
				planarVel = planarVel.Add(wishDir.Scale(accelSpeed))
			}
		}

		// Jump: grounded tick with jump held or a live buffer.
		if in.Jump || s.jumpBufferT > 0 {
			vel.Y = cfg.JumpSpeed
			s.jumpBufferT = 0
			jumped = true
			s.Grounded = false
		}
	} else {
		// Airborne: golden-angle gain modulates accel and wish speed.
		theta := angleBetween(planarVel, wishDir)
		ratio := clamp01(theta / cfg.GoldenAngleTargetRad)
		gain := lerp(cfg.GainMin, cfg.GainPeak, smoothstep(ratio))

		speed := planarVel.Length()
		blend := clamp01((speed - cfg.BlendStartSpeed) / maxf32nz(cfg.BlendEndSpeed-cfg.BlendStartSpeed))
		gain = lerp(1, gain, blend)

		if wishLen > 0 {
			wishSpeed := cfg.MaxSpeedAir * wishLen * gain
			addSpeed := wishSpeed - planarVel.Dot(wishDir)
			if addSpeed > 0 {
				accelSpeed := minf32(cfg.AirAccel*dt*wishSpeed*gain, addSpeed)
				planarVel = planarVel.Add(wishDir.Scale(accelSpeed))
				planarVel = planarVel.Add(wishDir.Scale(cfg.AirBonusImpulse * dt))
			}
		}
	}

	// Optional corridor shaping: rotate velocity direction toward intent
	// at a capped angular rate.
	if cfg.CorridorTurnRateRad > 0 && wishLen > 0 && planarVel.Length() > 1e-4 {
		planarVel = rotateToward(planarVel, wishDir, cfg.CorridorTurnRateRad*dt)
	}

	// Landing transition: enter bhop grace.
	if !wasGrounded && s.Grounded && (in.Jump || s.jumpBufferT > 0) {
		s.bhopGraceT = cfg.BhopGraceWindow
	}

	vel.X, vel.Z = planarVel.X, planarVel.Z
	s.Velocity = vel

	return Output{
		DesiredTranslation: vel.Scale(dt),
		Velocity:           vel,
		Jumped:             jumped,
	}
}

func minf32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf32nz(v float32) float32 {
	if v < 1e-6 {
		return 1e-6
	}
	return v
}

// rotateToward rotates planar vector v toward dir (both Y==0) by at most
// maxRad radians, preserving v's length.
func rotateToward(v, dir Vec3, maxRad float32) Vec3 {
	length := v.Length()
	if length < 1e-6 {
		return v
	}
	cur := v.Normalized()
	target := dir.Normalized()
	angle := angleBetween(cur, target)
	if angle <= maxRad || angle < 1e-6 {
		return target.Scale(length)
	}
	t := maxRad / angle
	// Spherical-ish lerp approximated in-plane via linear blend + renormalize,
	// adequate for small per-tick angular steps.
	blended := Vec3{
		X: lerp(cur.X, target.X, t),
		Z: lerp(cur.Z, target.Z, t),
	}
	return blended.Normalized().Scale(length)
}
