// Package controller is the character's time-integration authority: it turns
// movement intent into position, velocity and facing, and runs the
// grounded/airborne state machine against a ground provider.
package controller

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/locomotion/internal/core/locomotion"
	"github.com/zeusync/locomotion/internal/core/locomotion/config"
	"github.com/zeusync/locomotion/internal/core/observability/log"
	"github.com/zeusync/locomotion/internal/core/systems/physics"
)

// Input is one tick of player intent.
type Input struct {
	// Move is stick/keys intent: X strafes right, Y moves away from the camera.
	Move mgl64.Vec2 `json:"move"`
	Run  bool       `json:"run"`
	// Jump is the raw button state; a jump fires once per press.
	Jump        bool    `json:"jump"`
	CameraYaw   float64 `json:"camera_yaw"`
	TurnInPlace bool    `json:"turn_in_place"`
}

// State is the controller's full per-tick state, returned by value.
type State struct {
	Position        mgl64.Vec3              `json:"position"`
	Velocity        mgl64.Vec3              `json:"velocity"`
	DesiredVelocity mgl64.Vec3              `json:"desired_velocity"`
	Facing          float64                 `json:"facing"`
	TargetFacing    float64                 `json:"target_facing"`
	Mode            locomotion.MovementMode `json:"mode"`
	Gait            locomotion.GaitType     `json:"gait"`
	Grounded        bool                    `json:"grounded"`
	GroundHeight    float64                 `json:"ground_height"`
	GroundNormal    mgl64.Vec3              `json:"ground_normal"`
	SlopeAngle      float64                 `json:"slope_angle"` // degrees
	LandingTimer    float64                 `json:"landing_timer"`
	JumpConsumed    bool                    `json:"jump_consumed"`
}

// Controller owns one character's movement state.
type Controller struct {
	cfg    config.Controller
	ground physics.GroundProvider
	logger log.Log

	state State

	// Debounce counters for the grounded flag.
	groundTicks int
	airTicks    int
	usedMover   bool
}

type Option func(*Controller)

func WithLogger(l log.Log) Option {
	return func(c *Controller) { c.logger = l }
}

// WithPosition sets the spawn point.
func WithPosition(p mgl64.Vec3) Option {
	return func(c *Controller) { c.state.Position = p }
}

// WithFacing sets the initial facing.
func WithFacing(f float64) Option {
	return func(c *Controller) {
		c.state.Facing = physics.WrapAngle(f)
		c.state.TargetFacing = c.state.Facing
	}
}

// New builds a controller on a ground provider. If the provider also
// implements physics.CharacterMover and reports support, its resolved
// movement replaces naive integration.
func New(cfg config.Controller, ground physics.GroundProvider, opts ...Option) *Controller {
	c := &Controller{
		cfg:    cfg,
		ground: ground,
		logger: log.Provide(),
		state: State{
			Mode:         locomotion.Grounded,
			Grounded:     true,
			GroundNormal: physics.Up,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(log.String("component", "controller"))
	return c
}

func (c *Controller) State() State { return c.state }

// Restore replaces the whole state, e.g. for rollback or tests.
func (c *Controller) Restore(s State) {
	s.Facing = physics.WrapAngle(s.Facing)
	s.TargetFacing = physics.WrapAngle(s.TargetFacing)
	c.state = s
	c.groundTicks, c.airTicks = 0, 0
}

// Teleport moves the character and drops all velocity.
func (c *Controller) Teleport(p mgl64.Vec3) {
	c.state.Position = p
	c.state.Velocity = mgl64.Vec3{}
	c.state.DesiredVelocity = mgl64.Vec3{}
	c.groundTicks, c.airTicks = 0, 0
}

// Capsule is the collision shape handed to kinematic movers.
func (c *Controller) Capsule() physics.CapsuleShape {
	return physics.CapsuleShape{Radius: c.cfg.CapsuleRadius, Height: c.cfg.CapsuleHeight}
}

// Update advances the controller by dt. It only fails when the ground
// provider does.
func (c *Controller) Update(in Input, dt float64) (State, error) {
	s := &c.state
	c.usedMover = false

	if err := c.probe(); err != nil {
		return c.state, err
	}
	c.updateGrounding()

	desired, hasInput := c.desiredVelocity(in)
	s.DesiredVelocity = desired
	if hasInput {
		s.TargetFacing = physics.Heading(desired)
	}
	c.accelerate(desired, dt)
	c.jump(in)

	if !s.Grounded {
		s.Velocity[1] -= c.cfg.Gravity * dt
	}
	if s.Grounded && s.SlopeAngle >= c.cfg.MinProjectionSlope {
		s.Velocity = physics.ProjectOnPlane(s.Velocity, s.GroundNormal)
	}

	if err := c.integrate(dt); err != nil {
		return c.state, err
	}
	if err := c.snap(); err != nil {
		return c.state, err
	}

	c.advanceMode(dt)
	c.turn(dt)
	s.Gait = c.classifyGait(physics.HorizontalLen(s.Velocity), math.Abs(physics.AngleDelta(s.Facing, s.TargetFacing)), in.TurnInPlace)
	c.clampToBounds()

	return c.state, nil
}

func (c *Controller) probe() error {
	sample, err := c.ground.ProbeGround(c.state.Position[0], c.state.Position[2])
	if err != nil {
		return fmt.Errorf("probe ground: %w", err)
	}
	c.applyGround(sample.Height, sample.Normal)
	return nil
}

func (c *Controller) applyGround(height float64, normal mgl64.Vec3) {
	if physics.IsFinite(height) {
		c.state.GroundHeight = height
	}
	c.state.GroundNormal = normal
	c.state.SlopeAngle = physics.SlopeDegrees(normal)
}

func (c *Controller) walkable() bool {
	return c.state.SlopeAngle <= c.cfg.MaxWalkableSlope
}

// updateGrounding applies asymmetric thresholds plus debounce so uneven
// ground does not flicker the grounded flag.
func (c *Controller) updateGrounding() {
	s := &c.state
	dist := s.Position[1] - s.GroundHeight

	if dist < 0 && c.walkable() {
		c.setGrounded(true)
		return
	}

	if s.Grounded {
		c.groundTicks = 0
		if dist > c.cfg.LeaveGroundDistance || !c.walkable() {
			c.airTicks++
			if c.airTicks >= c.cfg.GroundLeaveTicks {
				c.setGrounded(false)
			}
			return
		}
		c.airTicks = 0
		return
	}

	c.airTicks = 0
	if dist <= c.cfg.LandDistance && s.Velocity[1] <= 0 && c.walkable() {
		c.groundTicks++
		if c.groundTicks >= c.cfg.GroundEnterTicks {
			c.setGrounded(true)
		}
		return
	}
	c.groundTicks = 0
}

func (c *Controller) setGrounded(g bool) {
	c.groundTicks, c.airTicks = 0, 0
	if c.state.Grounded == g {
		return
	}
	c.state.Grounded = g
	c.logger.Debug("grounded changed",
		log.Bool("grounded", g),
		log.Float64("height", c.state.Position[1]),
		log.Float64("ground_height", c.state.GroundHeight))
}

// desiredVelocity rotates input into camera space and scales it to walk or
// run speed.
func (c *Controller) desiredVelocity(in Input) (mgl64.Vec3, bool) {
	l := in.Move.Len()
	if l < 1e-6 || !physics.IsFinite(l) {
		return mgl64.Vec3{}, false
	}
	dir := in.Move.Mul(1 / l)

	sin, cos := math.Sincos(in.CameraYaw)
	forward := mgl64.Vec3{-sin, 0, -cos}
	right := mgl64.Vec3{cos, 0, -sin}
	world := right.Mul(dir[0]).Add(forward.Mul(dir[1]))

	speed := c.cfg.WalkSpeed
	if in.Run {
		speed = c.cfg.RunSpeed
	}
	return world.Mul(speed), true
}

// accelerate moves horizontal velocity toward desired by at most rate*dt.
func (c *Controller) accelerate(desired mgl64.Vec3, dt float64) {
	s := &c.state
	current := physics.Horizontal(s.Velocity)

	speeding := desired.Len() >= current.Len()
	var rate float64
	switch {
	case s.Grounded && speeding:
		rate = c.cfg.GroundAccel
	case s.Grounded:
		rate = c.cfg.GroundDecel
	case speeding:
		rate = c.cfg.AirAccel
	default:
		rate = c.cfg.AirDecel
	}

	next := physics.MoveToward(current, physics.Horizontal(desired), rate*dt)
	s.Velocity[0], s.Velocity[2] = next[0], next[2]
}

// jump fires on the press edge only from grounded modes.
func (c *Controller) jump(in Input) {
	s := &c.state
	if !in.Jump {
		s.JumpConsumed = false
		return
	}
	if s.JumpConsumed || !s.Grounded {
		return
	}
	if s.Mode != locomotion.Grounded && s.Mode != locomotion.Landing {
		return
	}
	s.JumpConsumed = true
	s.Velocity[1] = c.cfg.JumpSpeed
	c.setGrounded(false)
	c.setMode(locomotion.Jumping)
}

func (c *Controller) integrate(dt float64) error {
	s := &c.state
	delta := s.Velocity.Mul(dt)

	mover, ok := c.ground.(physics.CharacterMover)
	if !ok || !mover.SupportsCharacterMovement() {
		s.Position = s.Position.Add(delta)
		return nil
	}

	res, err := mover.ComputeCharacterMovement(s.Position, delta, c.Capsule())
	if err != nil {
		return fmt.Errorf("compute character movement: %w", err)
	}
	c.usedMover = true
	s.Position = s.Position.Add(res.Movement)
	if dt > 0 {
		s.Velocity[0] = res.Movement[0] / dt
		s.Velocity[2] = res.Movement[2] / dt
	}
	c.applyGround(res.GroundHeight, res.GroundNormal)

	ascending := s.Velocity[1] > 0 && !s.Grounded
	switch {
	case res.Grounded && !ascending:
		c.setGrounded(true)
	case !res.Grounded && s.Grounded && s.Position[1]-s.GroundHeight > c.cfg.LeaveGroundDistance:
		c.setGrounded(false)
	}
	return nil
}

// snap keeps a grounded character on the ground at its new position.
func (c *Controller) snap() error {
	s := &c.state
	if !c.usedMover {
		if err := c.probe(); err != nil {
			return err
		}
	}
	dist := s.Position[1] - s.GroundHeight
	if !s.Grounded {
		// Airborne below an unwalkable surface: rest on it and slide.
		if dist < 0 {
			s.Position[1] = s.GroundHeight
			n := physics.SafeNormalize(s.GroundNormal, physics.Up)
			if s.Velocity.Dot(n) < 0 {
				s.Velocity = physics.ProjectOnPlane(s.Velocity, n)
			}
		}
		return nil
	}

	if dist > c.cfg.SnapDistance {
		s.Position[1] -= dist * c.cfg.SnapEase
		return nil
	}
	s.Position[1] = s.GroundHeight
	if s.Velocity[1] < 0 {
		s.Velocity[1] = 0
	}
	return nil
}

func (c *Controller) advanceMode(dt float64) {
	s := &c.state
	switch s.Mode {
	case locomotion.Grounded:
		if !s.Grounded {
			c.setMode(locomotion.Falling)
		}
	case locomotion.Jumping:
		if s.Grounded {
			c.setMode(locomotion.Landing)
		} else if s.Velocity[1] <= 0 {
			c.setMode(locomotion.Falling)
		}
	case locomotion.Falling:
		if s.Grounded {
			c.setMode(locomotion.Landing)
		}
	case locomotion.Landing:
		if !s.Grounded {
			c.setMode(locomotion.Falling)
			return
		}
		s.LandingTimer -= dt
		if s.LandingTimer <= 0 {
			c.setMode(locomotion.Grounded)
		}
	}
}

func (c *Controller) setMode(m locomotion.MovementMode) {
	s := &c.state
	if s.Mode == m {
		return
	}
	c.logger.Debug("movement mode changed",
		log.Stringer("from", s.Mode),
		log.Stringer("to", m),
		log.Float64("vy", s.Velocity[1]))
	s.Mode = m
	s.LandingTimer = 0
	if m == locomotion.Landing {
		s.LandingTimer = c.cfg.LandingDuration
	}
}

// turn rotates facing toward the target along the shortest arc.
func (c *Controller) turn(dt float64) {
	s := &c.state
	delta := physics.AngleDelta(s.Facing, s.TargetFacing)
	step := c.cfg.TurnSpeed * dt
	if math.Abs(delta) <= step {
		s.Facing = s.TargetFacing
		return
	}
	s.Facing = physics.WrapAngle(s.Facing + math.Copysign(step, delta))
}

func (c *Controller) classifyGait(speed, facingError float64, turnInPlace bool) locomotion.GaitType {
	if speed < c.cfg.IdleSpeedThreshold {
		if turnInPlace {
			return locomotion.Turning
		}
		if c.cfg.TurnInPlaceAngle > 0 && facingError > mgl64.DegToRad(c.cfg.TurnInPlaceAngle) {
			return locomotion.Turning
		}
		return locomotion.Idle
	}
	if speed < c.cfg.RunSpeedThreshold {
		return locomotion.Walking
	}
	return locomotion.Running
}

func (c *Controller) clampToBounds() {
	s := &c.state
	limit := c.cfg.WorldHalfExtent
	for _, i := range [2]int{0, 2} {
		switch {
		case s.Position[i] > limit:
			s.Position[i] = limit
			s.Velocity[i] = math.Min(s.Velocity[i], 0)
		case s.Position[i] < -limit:
			s.Position[i] = -limit
			s.Velocity[i] = math.Max(s.Velocity[i], 0)
		}
	}
}
