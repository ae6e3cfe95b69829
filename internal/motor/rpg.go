package motor

import "math"

// RPGConfig tunes the stability-first RPG motor: axis smoothing, yaw
// turn-rate cap, slope-aware friction, and air control.
type RPGConfig struct {
	MaxSpeed        float32
	Accel           float32
	Friction        float32
	StopSpeed       float32
	AxisSmoothTime  float32 // time constant for input smoothing
	TurnRateRad     float32 // 0 disables the yaw cap
	AirControlScale float32
	Gravity         float32
	JumpSpeed       float32
}

// DefaultRPGConfig returns reasonable RPG-motor tuning.
func DefaultRPGConfig() RPGConfig {
	return RPGConfig{
		MaxSpeed:        5,
		Accel:           10,
		Friction:        5,
		StopSpeed:       1.5,
		AxisSmoothTime:  0.1,
		TurnRateRad:     8,
		AirControlScale: 0.3,
		Gravity:         -18,
		JumpSpeed:       4,
	}
}

// RPGMotor implements the stability-first character motor.
type RPGMotor struct {
	Config RPGConfig

	smoothedAxisX, smoothedAxisZ float32
}

func NewRPGMotor(cfg RPGConfig) *RPGMotor { return &RPGMotor{Config: cfg} }

func (m *RPGMotor) ResetState(s *State) {
	s.Reset()
	m.smoothedAxisX, m.smoothedAxisZ = 0, 0
}

// expSmooth exponentially smooths current toward target over dt with time
// constant tau (tau <= 0 ⇒ no smoothing).
func expSmooth(current, target, dt, tau float32) float32 {
	if tau <= 1e-6 {
		return target
	}
	alpha := 1 - expNeg(dt/tau)
	return current + (target-current)*alpha
}

func expNeg(x float32) float32 {
	return float32(math.Exp(-float64(x)))
}

func (m *RPGMotor) Step(s *State, in Input) Output {
	cfg := m.Config
	dt := in.DT

	m.smoothedAxisX = expSmooth(m.smoothedAxisX, in.WishX, dt, cfg.AxisSmoothTime)
	m.smoothedAxisZ = expSmooth(m.smoothedAxisZ, in.WishZ, dt, cfg.AxisSmoothTime)

	wishDir := Vec3{m.smoothedAxisX, 0, m.smoothedAxisZ}
	wishLen := wishDir.Length()
	if wishLen > 1 {
		wishDir = wishDir.Scale(1 / wishLen)
		wishLen = 1
	}

	vel := s.Velocity
	planarVel := Vec3{vel.X, 0, vel.Z}

	if cfg.TurnRateRad > 0 && wishLen > 0 && planarVel.Length() > 1e-4 {
		// Rotate the intent direction toward the velocity direction, capped
		// by the turn rate.
		wishDir = rotateIntentToward(wishDir, planarVel, cfg.TurnRateRad*dt)
	}

	jumped := false

	if s.Grounded {
		slopeFactor := 1 - clamp01(s.GroundNormal.Y)
		scale := clamp01f32(1-slopeFactor*4, 0.15, 1.0)
		friction := cfg.Friction * scale
		stopSpeed := cfg.StopSpeed * scale

		// Project wish direction onto the ground plane.
		groundWish := projectOntoGround(wishDir, s.GroundNormal)

		speed := planarVel.Length()
		if speed > 0 {
			control := speed
			if control < stopSpeed {
				control = stopSpeed
			}
			drop := control * friction * dt
			newSpeed := speed - drop
			if newSpeed < 0 {
				newSpeed = 0
			}
			planarVel = planarVel.Scale(newSpeed / speed)
		}

		if wishLen > 0 {
			wishSpeed := cfg.MaxSpeed * wishLen
			addSpeed := wishSpeed - planarVel.Dot(groundWish)
			if addSpeed > 0 {
				accelSpeed := minf32(cfg.Accel*dt*wishSpeed, addSpeed)
				planarVel = planarVel.Add(groundWish.Scale(accelSpeed))
			}
		}

		if in.Jump {
			vel.Y = cfg.JumpSpeed
			jumped = true
			s.Grounded = false
		} else if wishLen > 0 {
			// Tangential slope gravity while grounded, not jumping, and moving.
			slopeTangent := projectOntoGround(Vec3{0, -1, 0}, s.GroundNormal)
			planarVel = planarVel.Add(Vec3{slopeTangent.X, 0, slopeTangent.Z}.Scale(-cfg.Gravity * slopeFactor * dt))
		}
	} else {
		if wishLen > 0 {
			wishSpeed := cfg.MaxSpeed * wishLen * cfg.AirControlScale
			addSpeed := wishSpeed - planarVel.Dot(wishDir)
			if addSpeed > 0 {
				accelSpeed := minf32(cfg.Accel*cfg.AirControlScale*dt*wishSpeed, addSpeed)
				planarVel = planarVel.Add(wishDir.Scale(accelSpeed))
			}
		}
		vel.Y += cfg.Gravity * dt
	}

	vel.X, vel.Z = planarVel.X, planarVel.Z
	s.Velocity = vel

	return Output{
		DesiredTranslation: vel.Scale(dt),
		Velocity:           vel,
		Jumped:             jumped,
	}
}

func clamp01f32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// projectOntoGround projects a planar direction onto the ground plane
// defined by normal n, renormalized to unit length (zero if degenerate).
func projectOntoGround(v Vec3, n Vec3) Vec3 {
	d := v.Dot(n)
	p := v.Sub(n.Scale(d))
	return p.Normalized()
}

// rotateIntentToward rotates dir toward target by at most maxRad radians.
func rotateIntentToward(dir, target Vec3, maxRad float32) Vec3 {
	return rotateToward(dir, target.Normalized(), maxRad)
}
