package footik

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/locomotion/internal/core/locomotion"
	"github.com/zeusync/locomotion/internal/core/locomotion/config"
	"github.com/zeusync/locomotion/internal/core/locomotion/ik"
	"github.com/zeusync/locomotion/internal/core/observability/log"
	"github.com/zeusync/locomotion/internal/core/systems/physics"
)

func flat(_, _ float64) float64 { return 0 }

func up(_, _ float64) mgl64.Vec3 { return physics.Up }

func newSystem(t *testing.T, mutate ...func(*config.FootIK)) *System {
	t.Helper()
	cfg := config.DefaultFootIK()
	for _, m := range mutate {
		m(&cfg)
	}
	k := config.DefaultIK()
	return New(cfg, ik.NewSolver(k.UpperLength, k.LowerLength), WithLogger(log.NewNop()))
}

func TestStandingSnapsUnderHips(t *testing.T) {
	s := newSystem(t)
	cfg := config.DefaultFootIK()
	pos := mgl64.Vec3{2, 0, 3}

	targets := s.ComputeFootTargets(pos, 0, mgl64.Vec3{}, locomotion.Idle, 0.016, flat, up, nil)

	assert.InDelta(t, 2+cfg.HipWidth/2, targets[locomotion.Left][0], 1e-12)
	assert.InDelta(t, 2-cfg.HipWidth/2, targets[locomotion.Right][0], 1e-12)
	for _, tgt := range targets {
		assert.InDelta(t, 3, tgt[2], 1e-12)
		assert.InDelta(t, cfg.AnkleHeight, tgt[1], 1e-12)
	}
	assert.Equal(t, 0.0, s.CyclePhase())

	left := s.Foot(locomotion.Left)
	require.NotNil(t, left.Planted)
	assert.Equal(t, left.Target, *left.Planted)
}

func TestStanceFootStaysAnchored(t *testing.T) {
	s := newSystem(t)
	hilly := func(x, z float64) float64 { return 0.1*x + 0.05*math.Sin(3*z) }
	vel := mgl64.Vec3{0, 0, 1.5}
	pos := mgl64.Vec3{}
	dt := 0.01

	pos = pos.Add(vel.Mul(dt))
	s.ComputeFootTargets(pos, 0, vel, locomotion.Walking, dt, hilly, up, nil)
	prev := s.Feet()
	checked := 0
	for i := 0; i < 300; i++ {
		pos = pos.Add(vel.Mul(dt))
		s.ComputeFootTargets(pos, 0, vel, locomotion.Walking, dt, hilly, up, nil)
		cur := s.Feet()
		for _, side := range locomotion.Sides {
			if prev[side].Phase != locomotion.Stance || cur[side].Phase != locomotion.Stance {
				continue
			}
			require.NotNil(t, prev[side].Planted)
			require.NotNil(t, cur[side].Planted)
			assert.Equal(t, prev[side].Planted[0], cur[side].Planted[0], "tick %d side %s", i, side)
			assert.Equal(t, prev[side].Planted[2], cur[side].Planted[2], "tick %d side %s", i, side)
			checked++
		}
		prev = cur
	}
	assert.Greater(t, checked, 100)
}

func TestFeetUnplacedUntilFirstTargets(t *testing.T) {
	s := newSystem(t)
	for _, f := range s.Feet() {
		assert.Equal(t, locomotion.Unplaced, f.Phase)
		assert.Nil(t, f.Planted)
	}

	s.ComputeFootTargets(mgl64.Vec3{}, 0, mgl64.Vec3{}, locomotion.Idle, 0.016, flat, up, nil)
	for _, f := range s.Feet() {
		assert.NotEqual(t, locomotion.Unplaced, f.Phase)
		if f.Phase == locomotion.Stance {
			assert.NotNil(t, f.Planted)
		}
	}
}

func TestCycleCadenceIsDistanceCorrect(t *testing.T) {
	run := func(speed, stride float64) float64 {
		s := newSystem(t, func(c *config.FootIK) { c.WalkStrideLength = stride })
		vel := mgl64.Vec3{0, 0, speed}
		pos := mgl64.Vec3{}
		for i := 0; i < 30; i++ {
			pos = pos.Add(vel.Mul(0.01))
			s.ComputeFootTargets(pos, 0, vel, locomotion.Walking, 0.01, flat, up, nil)
		}
		return s.CyclePhase()
	}

	assert.InDelta(t, 30*0.01*1.2/0.8, run(1.2, 0.8), 1e-9)
	assert.InDelta(t, run(1.2, 0.8), run(2.4, 1.6), 1e-9)
}

func TestSwingFootArcsAboveGround(t *testing.T) {
	s := newSystem(t)
	cfg := config.DefaultFootIK()
	vel := mgl64.Vec3{0, 0, 1}
	pos := mgl64.Vec3{}
	maxLift := 0.0
	for i := 0; i < 100; i++ {
		pos = pos.Add(vel.Mul(0.01))
		s.ComputeFootTargets(pos, 0, vel, locomotion.Walking, 0.01, flat, up, nil)
		right := s.Foot(locomotion.Right)
		if right.Phase == locomotion.Swing {
			require.NotNil(t, right.SwingStart)
			require.NotNil(t, right.SwingEnd)
			assert.Nil(t, right.Planted)
			lift := right.Target[1] - cfg.AnkleHeight
			assert.GreaterOrEqual(t, lift, -1e-12)
			maxLift = math.Max(maxLift, lift)
		}
	}
	assert.InDelta(t, cfg.WalkStrideHeight, maxLift, 0.01)
}

func TestSwingRetargetIsRateLimited(t *testing.T) {
	s := newSystem(t)
	cfg := config.DefaultFootIK()
	dt := 0.01
	vel := mgl64.Vec3{0, 0, 1}
	pos := mgl64.Vec3{}
	for i := 0; i < 5; i++ {
		pos = pos.Add(vel.Mul(dt))
		s.ComputeFootTargets(pos, 0, vel, locomotion.Walking, dt, flat, up, nil)
	}
	require.Equal(t, locomotion.Swing, s.Phase(locomotion.Right))

	sideways := mgl64.Vec3{2, 0, 0}
	prevEnd := *s.Foot(locomotion.Right).SwingEnd
	for i := 0; i < 10; i++ {
		pos = pos.Add(vel.Mul(dt))
		s.ComputeFootTargets(pos, 0, vel, locomotion.Walking, dt, flat, up, &sideways)
		right := s.Foot(locomotion.Right)
		if right.Phase != locomotion.Swing {
			break
		}
		end := *right.SwingEnd
		assert.LessOrEqual(t, end.Sub(prevEnd).Len(), cfg.RetargetSpeed*dt+1e-9)
		prevEnd = end
	}
}

func TestEarlyStepLiftsTrailingFoot(t *testing.T) {
	s := newSystem(t)
	s.ComputeFootTargets(mgl64.Vec3{}, 0, mgl64.Vec3{}, locomotion.Idle, 0.01, flat, up, nil)
	require.Equal(t, locomotion.Stance, s.Phase(locomotion.Left))

	// The root jumps a full metre ahead of the left foot's anchor.
	s.ComputeFootTargets(mgl64.Vec3{0, 0, 1}, 0, mgl64.Vec3{0, 0, 1}, locomotion.Walking, 0.01, flat, up, nil)

	assert.Equal(t, 0.5, s.CyclePhase())
	assert.Equal(t, locomotion.Swing, s.Phase(locomotion.Left))
	assert.Equal(t, locomotion.Stance, s.Phase(locomotion.Right))
	left := s.Foot(locomotion.Left)
	require.NotNil(t, left.SwingStart)
	assert.InDelta(t, 0, left.SwingStart[2], 1e-12)

	right := s.Foot(locomotion.Right)
	require.NotNil(t, right.Planted)
	assert.InDelta(t, 1+0.8*config.DefaultFootIK().PlantAhead, right.Planted[2], 1e-12)
}

func TestTurnInPlaceFreezesFeet(t *testing.T) {
	s := newSystem(t)
	vel := mgl64.Vec3{0, 0, 1}
	pos := mgl64.Vec3{}
	for i := 0; i < 20; i++ {
		pos = pos.Add(vel.Mul(0.01))
		s.ComputeFootTargets(pos, 0, vel, locomotion.Walking, 0.01, flat, up, nil)
	}
	before := s.Feet()
	phase := s.CyclePhase()

	for i := 0; i < 30; i++ {
		facing := float64(i) * 0.05
		s.ComputeFootTargets(pos, facing, mgl64.Vec3{}, locomotion.Turning, 0.01, flat, up, nil)
	}
	during := s.Feet()
	assert.Equal(t, phase, s.CyclePhase())
	for _, side := range locomotion.Sides {
		assert.True(t, during[side].Frozen)
		assert.InDelta(t, before[side].Target[0], during[side].Target[0], 1e-12)
		assert.InDelta(t, before[side].Target[2], during[side].Target[2], 1e-12)
	}

	// Leaving the turn keeps the stance foot exactly where it was frozen.
	stance := locomotion.Left
	if s.Phase(stance) != locomotion.Stance {
		stance = locomotion.Right
	}
	s.ComputeFootTargets(pos.Add(vel.Mul(0.01)), 1.45, vel, locomotion.Walking, 0.01, flat, up, nil)
	after := s.Foot(stance)
	assert.False(t, after.Frozen)
	require.NotNil(t, after.Planted)
	assert.InDelta(t, during[stance].Target[0], after.Target[0], 1e-12)
	assert.InDelta(t, during[stance].Target[2], after.Target[2], 1e-12)
}

func TestPelvisOffsetTracksFootHeightDifference(t *testing.T) {
	s := newSystem(t)
	step := func(x, _ float64) float64 {
		if x > 0 {
			return 0.2
		}
		return 0
	}
	var offset float64
	for i := 0; i < 300; i++ {
		s.ComputeFootTargets(mgl64.Vec3{}, 0, mgl64.Vec3{}, locomotion.Idle, 0.016, step, up, nil)
		offset = s.ComputePelvisOffset()
	}
	assert.InDelta(t, -0.1, offset, 1e-3)

	cliff := func(x, _ float64) float64 {
		if x > 0 {
			return 5
		}
		return 0
	}
	for i := 0; i < 300; i++ {
		s.ComputeFootTargets(mgl64.Vec3{}, 0, mgl64.Vec3{}, locomotion.Idle, 0.016, cliff, up, nil)
		offset = s.ComputePelvisOffset()
	}
	assert.InDelta(t, -config.DefaultFootIK().MaxPelvisDrop, offset, 1e-3)
}

func TestPelvisOffsetIsSmoothed(t *testing.T) {
	s := newSystem(t)
	step := func(x, _ float64) float64 {
		if x > 0 {
			return 0.2
		}
		return 0
	}
	s.ComputeFootTargets(mgl64.Vec3{}, 0, mgl64.Vec3{}, locomotion.Idle, 0.016, step, up, nil)
	first := s.ComputePelvisOffset()
	assert.Less(t, first, 0.0)
	assert.Greater(t, first, -0.1)
}

func TestIKBlendWeight(t *testing.T) {
	s := newSystem(t)
	assert.Equal(t, 1.0, s.IKBlendWeight(locomotion.Grounded))
	assert.Equal(t, 0.0, s.IKBlendWeight(locomotion.Jumping))
	assert.Equal(t, 0.0, s.IKBlendWeight(locomotion.Falling))
	assert.Equal(t, 0.5, s.IKBlendWeight(locomotion.Landing))
}

func TestSolveLegIKDelegates(t *testing.T) {
	s := newSystem(t)
	hip := mgl64.Vec3{0, 0.9, 0}
	target := mgl64.Vec3{0, 0.1, 0.2}
	k := config.DefaultIK()
	assert.Equal(t, ik.Solve(hip, target, 0.3, k.UpperLength, k.LowerLength), s.SolveLegIK(hip, target, 0.3))
}

func TestNonFiniteTerrainKeepsLastHeight(t *testing.T) {
	s := newSystem(t)
	s.ComputeFootTargets(mgl64.Vec3{}, 0, mgl64.Vec3{}, locomotion.Idle, 0.016, func(_, _ float64) float64 { return 0.3 }, up, nil)
	s.ComputeFootTargets(mgl64.Vec3{}, 0, mgl64.Vec3{}, locomotion.Idle, 0.016, func(_, _ float64) float64 { return math.NaN() }, nil, nil)
	assert.InDelta(t, 0.3, s.Foot(locomotion.Left).TerrainHeight, 1e-12)
}
