// Package footik drives procedural foot placement: a shared gait cycle,
// world-anchored stance feet, arcing swing feet and turn-in-place freezing.
package footik

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/locomotion/internal/core/locomotion"
	"github.com/zeusync/locomotion/internal/core/locomotion/config"
	"github.com/zeusync/locomotion/internal/core/locomotion/ik"
	"github.com/zeusync/locomotion/internal/core/observability/log"
	"github.com/zeusync/locomotion/internal/core/systems/physics"
)

// System owns both feet and the gait cycle.
type System struct {
	cfg    config.FootIK
	solver ik.Solver
	logger log.Log

	cyclePhase   float64
	feet         [2]foot
	turning      bool
	initialized  bool
	pelvisOffset float64
	lastDt       float64
}

type Option func(*System)

func WithLogger(l log.Log) Option {
	return func(s *System) { s.logger = l }
}

func New(cfg config.FootIK, solver ik.Solver, opts ...Option) *System {
	s := &System{
		cfg:    cfg,
		solver: solver,
		logger: log.Provide(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(log.String("component", "foot_ik"))
	s.Reset()
	return s
}

// Reset forgets all planting state and restarts the cycle at zero.
func (s *System) Reset() {
	s.cyclePhase = 0
	s.turning = false
	s.initialized = false
	s.pelvisOffset = 0
	s.lastDt = 0
	for _, side := range locomotion.Sides {
		s.feet[side] = foot{side: side, terrainNormal: physics.Up}
	}
}

// CyclePhase is the shared gait phase in [0,1). The left foot uses it
// directly, the right foot is offset by half a cycle.
func (s *System) CyclePhase() float64 { return s.cyclePhase }

// FootCyclePhase is the per-foot phase.
func (s *System) FootCyclePhase(side locomotion.Side) float64 {
	if side == locomotion.Right {
		return physics.Wrap01(s.cyclePhase + 0.5)
	}
	return s.cyclePhase
}

// Phase reports whether the foot is planted or swinging according to the cycle.
func (s *System) Phase(side locomotion.Side) locomotion.FootPhase {
	return locomotion.PhaseAt(s.FootCyclePhase(side))
}

func (s *System) Foot(side locomotion.Side) FootState { return s.feet[side].snapshot() }

func (s *System) Feet() [2]FootState {
	return [2]FootState{s.feet[locomotion.Left].snapshot(), s.feet[locomotion.Right].snapshot()}
}

func (s *System) Target(side locomotion.Side) mgl64.Vec3 { return s.feet[side].target }

func (s *System) PelvisOffset() float64 { return s.pelvisOffset }

// Stride returns stride length and arc height for a gait.
func (s *System) Stride(gait locomotion.GaitType) (length, height float64) {
	if gait == locomotion.Running {
		return s.cfg.RunStrideLength, s.cfg.RunStrideHeight
	}
	return s.cfg.WalkStrideLength, s.cfg.WalkStrideHeight
}

// ComputeFootTargets advances the gait cycle and updates both feet for one tick.
//
// moveIntent is the character's desired horizontal velocity; when present it
// steers where swing feet land, otherwise the actual velocity is used.
func (s *System) ComputeFootTargets(
	pos mgl64.Vec3,
	facing float64,
	velocity mgl64.Vec3,
	gait locomotion.GaitType,
	dt float64,
	heightFn physics.HeightFunc,
	normalFn physics.NormalFunc,
	moveIntent *mgl64.Vec3,
) [2]mgl64.Vec3 {
	s.lastDt = dt

	if !s.initialized {
		for _, side := range locomotion.Sides {
			s.stand(&s.feet[side], pos, facing, heightFn, normalFn)
		}
		s.initialized = true
	}

	if gait == locomotion.Turning {
		if !s.turning {
			s.turning = true
			s.logger.Debug("turn in place started", log.Float64("cycle_phase", s.cyclePhase))
		}
		for _, side := range locomotion.Sides {
			s.freeze(&s.feet[side], heightFn, normalFn)
		}
		return s.targets()
	}

	if s.turning {
		s.turning = false
		for _, side := range locomotion.Sides {
			f := &s.feet[side]
			if c, ok := f.contact.(*frozen); ok {
				f.contact = &planted{at: c.at}
			}
		}
		s.logger.Debug("turn in place finished", log.Float64("cycle_phase", s.cyclePhase))
	}

	speed := physics.HorizontalLen(velocity)
	if speed <= s.cfg.MoveThreshold {
		for _, side := range locomotion.Sides {
			s.stand(&s.feet[side], pos, facing, heightFn, normalFn)
		}
		return s.targets()
	}

	strideLen, strideHeight := s.Stride(gait)
	dir := s.travelDirection(facing, velocity, moveIntent)

	s.cyclePhase = physics.Wrap01(s.cyclePhase + dt*speed/strideLen)
	s.earlyStep(pos, dir, strideLen)

	for _, side := range locomotion.Sides {
		f := &s.feet[side]
		hip := s.hipGround(side, pos, facing)
		phase := s.FootCyclePhase(side)
		if locomotion.PhaseAt(phase) == locomotion.Stance {
			s.plant(f, hip, dir, strideLen, heightFn, normalFn)
		} else {
			s.swing(f, hip, dir, strideLen, strideHeight, (phase-0.5)/0.5, dt, heightFn, normalFn)
		}
	}
	return s.targets()
}

// ComputePelvisOffset lowers the pelvis by a share of the height difference
// between the feet so the lower leg can reach uneven ground. The result is
// clamped to MaxPelvisDrop and smoothed over time.
func (s *System) ComputePelvisOffset() float64 {
	diff := math.Abs(s.feet[locomotion.Left].terrainHeight - s.feet[locomotion.Right].terrainHeight)
	target := -math.Min(diff*s.cfg.PelvisDropFactor, s.cfg.MaxPelvisDrop)

	alpha := 1.0
	if s.cfg.PelvisSmoothing > 0 && s.lastDt > 0 {
		alpha = math.Min(1, s.cfg.PelvisSmoothing*s.lastDt)
	}
	s.pelvisOffset += (target - s.pelvisOffset) * alpha
	return s.pelvisOffset
}

// SolveLegIK solves one leg from its hip to the foot target.
func (s *System) SolveLegIK(hip, target mgl64.Vec3, facing float64) ik.Result {
	return s.solver.Solve(hip, target, facing)
}

// IKBlendWeight is how much foot IK should override the animated pose for a
// movement mode.
func (s *System) IKBlendWeight(mode locomotion.MovementMode) float64 {
	return BlendWeight(mode)
}

func BlendWeight(mode locomotion.MovementMode) float64 {
	switch mode {
	case locomotion.Jumping, locomotion.Falling:
		return 0
	case locomotion.Landing:
		return 0.5
	default:
		return 1
	}
}

func (s *System) targets() [2]mgl64.Vec3 {
	return [2]mgl64.Vec3{s.feet[locomotion.Left].target, s.feet[locomotion.Right].target}
}

// hipGround is the hip's (x, z) at the character's ground level.
func (s *System) hipGround(side locomotion.Side, pos mgl64.Vec3, facing float64) mgl64.Vec3 {
	return pos.Add(physics.Right(facing).Mul(side.Sign() * s.cfg.HipWidth / 2))
}

func (s *System) travelDirection(facing float64, velocity mgl64.Vec3, moveIntent *mgl64.Vec3) mgl64.Vec3 {
	fallback := physics.SafeNormalize(physics.Horizontal(velocity), physics.Forward(facing))
	if moveIntent == nil {
		return fallback
	}
	return physics.SafeNormalize(physics.Horizontal(*moveIntent), fallback)
}

// earlyStep lifts a stance foot that trails too far behind the root, e.g.
// after a sudden speed-up, by jumping the cycle to that foot's lift-off.
func (s *System) earlyStep(pos, dir mgl64.Vec3, strideLen float64) {
	limit := strideLen * s.cfg.EarlyStepFactor
	for _, side := range locomotion.Sides {
		c, ok := s.feet[side].contact.(*planted)
		if !ok || s.Phase(side) != locomotion.Stance {
			continue
		}
		behind := -physics.Horizontal(c.at.Sub(pos)).Dot(dir)
		if behind <= limit {
			continue
		}
		if side == locomotion.Left {
			s.cyclePhase = 0.5
		} else {
			s.cyclePhase = 0
		}
		// The other foot now starts its stance; make it plant fresh rather
		// than keep an anchor that is just as stale.
		s.feet[1-side].contact = nil
		s.logger.Debug("early step",
			log.Stringer("side", side),
			log.Float64("trail", behind),
			log.Float64("limit", limit))
		return
	}
}

func (s *System) sample(f *foot, x, z float64, heightFn physics.HeightFunc, normalFn physics.NormalFunc) float64 {
	h := heightFn(x, z)
	if !physics.IsFinite(h) {
		h = f.terrainHeight
	}
	f.terrainHeight = h
	if normalFn != nil {
		f.terrainNormal = physics.SafeNormalize(normalFn(x, z), physics.Up)
	}
	return h + s.cfg.AnkleHeight
}

func (s *System) stand(f *foot, pos mgl64.Vec3, facing float64, heightFn physics.HeightFunc, normalFn physics.NormalFunc) {
	at := s.hipGround(f.side, pos, facing)
	at[1] = s.sample(f, at[0], at[2], heightFn, normalFn)
	f.contact = &planted{at: at}
	f.target = at
	f.swingProgress = 0
}

func (s *System) freeze(f *foot, heightFn physics.HeightFunc, normalFn physics.NormalFunc) {
	c, ok := f.contact.(*frozen)
	if !ok {
		c = &frozen{at: f.target}
		f.contact = c
	}
	c.at[1] = s.sample(f, c.at[0], c.at[2], heightFn, normalFn)
	f.target = c.at
	f.swingProgress = 0
}

func (s *System) plant(f *foot, hip, dir mgl64.Vec3, strideLen float64, heightFn physics.HeightFunc, normalFn physics.NormalFunc) {
	c, ok := f.contact.(*planted)
	if !ok {
		at := hip.Add(dir.Mul(strideLen * s.cfg.PlantAhead))
		c = &planted{at: at}
		f.contact = c
	}
	c.at[1] = s.sample(f, c.at[0], c.at[2], heightFn, normalFn)
	f.target = c.at
	f.swingProgress = 0
}

func (s *System) swing(
	f *foot,
	hip, dir mgl64.Vec3,
	strideLen, strideHeight, progress, dt float64,
	heightFn physics.HeightFunc,
	normalFn physics.NormalFunc,
) {
	progress = physics.Clamp(progress, 0, 1)
	// Where the foot should land: constant for steady motion since the hip
	// advances exactly as fast as the remaining swing shrinks.
	desired := physics.Horizontal(hip.Add(dir.Mul(strideLen * ((1-progress)*0.5 + s.cfg.PlantAhead))))

	c, ok := f.contact.(*swinging)
	if !ok {
		c = &swinging{start: f.target, end: desired}
		f.contact = c
	} else {
		c.end = physics.MoveToward(c.end, desired, s.cfg.RetargetSpeed*dt)
	}

	x := c.start[0] + (c.end[0]-c.start[0])*progress
	z := c.start[2] + (c.end[2]-c.start[2])*progress
	y := s.sample(f, x, z, heightFn, normalFn) + math.Sin(progress*math.Pi)*strideHeight
	f.target = mgl64.Vec3{x, y, z}
	f.swingProgress = progress
}
