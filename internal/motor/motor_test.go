package motor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaMotorGroundAccelAndJump(t *testing.T) {
	m := NewArenaMotor(DefaultArenaConfig())
	var s State
	s.Grounded = true

	out := m.Step(&s, Input{WishX: 1, DT: 1.0 / 60})
	assert.Greater(t, out.Velocity.X, float32(0))
	assert.False(t, out.Jumped)

	out = m.Step(&s, Input{WishX: 1, Jump: true, DT: 1.0 / 60})
	require.True(t, out.Jumped)
	assert.InDelta(t, m.Config.JumpSpeed, out.Velocity.Y, 1e-5)
}

func TestArenaMotorJumpBufferCarriesAcrossTicksUntilGrounded(t *testing.T) {
	m := NewArenaMotor(DefaultArenaConfig())
	var s State
	s.Grounded = false

	// Jump pressed while airborne; buffered.
	out := m.Step(&s, Input{Jump: true, DT: 0.02})
	assert.False(t, out.Jumped)

	// Released but still within the buffer window, then grounds.
	s.Grounded = true
	out = m.Step(&s, Input{DT: 0.02})
	assert.True(t, out.Jumped)
	assert.InDelta(t, m.Config.JumpSpeed, out.Velocity.Y, 1e-5)
}

func TestArenaMotorAirControlGainBoundedByPeak(t *testing.T) {
	cfg := DefaultArenaConfig()
	m := NewArenaMotor(cfg)
	var s State
	s.Grounded = false
	s.Velocity = Vec3{X: cfg.BlendEndSpeed + 1, Y: 0, Z: 0}

	before := s.Velocity.Length()
	out := m.Step(&s, Input{WishX: 0, WishZ: 1, DT: 1.0 / 60})
	// Airborne with near-orthogonal wish vs velocity: should still be finite
	// and bounded in magnitude by one tick's acceleration budget.
	assert.Less(t, out.Velocity.Length(), before+10)
}

func TestRPGMotorSlopeFrictionReducesOnSteepGround(t *testing.T) {
	m := NewRPGMotor(DefaultRPGConfig())
	var flat, steep State
	flat.Grounded = true
	flat.GroundNormal = Vec3{0, 1, 0}
	flat.Velocity = Vec3{X: 3}
	steep.Grounded = true
	steep.GroundNormal = Vec3{0, 0.6, 0.8}
	steep.Velocity = Vec3{X: 3}

	outFlat := m.Step(&flat, Input{DT: 1.0 / 60})
	m2 := NewRPGMotor(DefaultRPGConfig())
	outSteep := m2.Step(&steep, Input{DT: 1.0 / 60})

	// Steeper ground scales down friction's effective stop-speed, so pure
	// deceleration (no wish input) should bleed less speed on steep ground
	// than flat ground over one identical tick.
	assert.Less(t, float64(outFlat.Velocity.Length()), 3.0)
	assert.LessOrEqual(t, 3.0-float64(outSteep.Velocity.Length()), 3.0-float64(outFlat.Velocity.Length())+1e-4)
}

func TestRPGMotorJump(t *testing.T) {
	m := NewRPGMotor(DefaultRPGConfig())
	var s State
	s.Grounded = true
	s.GroundNormal = Vec3{0, 1, 0}

	out := m.Step(&s, Input{Jump: true, DT: 1.0 / 60})
	require.True(t, out.Jumped)
	assert.InDelta(t, m.Config.JumpSpeed, out.Velocity.Y, 1e-5)
	assert.False(t, s.Grounded)
}

func TestRPGMotorGravityWhenAirborne(t *testing.T) {
	m := NewRPGMotor(DefaultRPGConfig())
	var s State
	s.Grounded = false

	out := m.Step(&s, Input{DT: 1.0 / 60})
	assert.Less(t, out.Velocity.Y, float32(0))
}

func TestResetStateClearsTimersAndVelocity(t *testing.T) {
	var s State
	s.Velocity = Vec3{X: 5}
	s.Grounded = true
	s.Reset()
	assert.Equal(t, Vec3{}, s.Velocity)
	assert.False(t, s.Grounded)
}
