package rig

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/locomotion/internal/core/locomotion"
	"github.com/zeusync/locomotion/internal/core/locomotion/config"
	"github.com/zeusync/locomotion/internal/core/locomotion/ik"
	"github.com/zeusync/locomotion/internal/core/systems/physics"
)

func newBiped() *Biped {
	k := config.DefaultIK()
	return New(config.DefaultRig(), ik.NewSolver(k.UpperLength, k.LowerLength), config.DefaultFootIK().HipWidth)
}

func TestHipWorldPosition(t *testing.T) {
	b := newBiped()
	cfg := config.DefaultRig()
	w := config.DefaultFootIK().HipWidth

	left := b.HipWorldPosition(locomotion.Left, mgl64.Vec3{1, 0, 2}, 0, -0.1)
	right := b.HipWorldPosition(locomotion.Right, mgl64.Vec3{1, 0, 2}, 0, -0.1)

	assert.InDelta(t, 1+w/2, left[0], 1e-12)
	assert.InDelta(t, 1-w/2, right[0], 1e-12)
	assert.InDelta(t, cfg.HipHeight-0.1, left[1], 1e-12)
	assert.InDelta(t, 2, right[2], 1e-12)
}

func TestApplyLegIKReachesTarget(t *testing.T) {
	b := newBiped()
	b.SetRoot(mgl64.Vec3{}, 0.7)
	hip := b.Hip(locomotion.Left)
	target := hip.Add(physics.Forward(0.7).Mul(0.2)).Sub(physics.Up.Mul(0.7))

	b.ApplyLegIK(locomotion.Left, b.solver.Solve(hip, target, 0.7), 1, 1)

	ankle := b.FootWorldPosition(locomotion.Left)
	assert.InDelta(t, 0, ankle.Sub(target).Len(), 1e-9)
}

func TestApplyLegIKBlends(t *testing.T) {
	b := newBiped()
	r := ik.Result{UpperAngle: 0.4, LowerAngle: 0.8, ReachRatio: 0.9}

	b.ApplyLegIK(locomotion.Right, r, 1, 0.5)
	got := b.Leg(locomotion.Right).Angles
	assert.InDelta(t, 0.2, got.UpperAngle, 1e-12)
	assert.InDelta(t, 0.4, got.LowerAngle, 1e-12)

	b.ApplyLegIK(locomotion.Right, r, 0, 1)
	got = b.Leg(locomotion.Right).Angles
	assert.Equal(t, 0.0, got.UpperAngle, "zero weight returns to rest")
	assert.Equal(t, 0.0, got.LowerAngle)
}

func TestRestPoseLegIsStraight(t *testing.T) {
	b := newBiped()
	leg := b.Leg(locomotion.Left)
	assert.InDelta(t, 0.9, leg.Hip.Sub(leg.Ankle).Len(), 1e-12)
	assert.InDelta(t, 0, leg.Ankle[2]-leg.Hip[2], 1e-12)
}

func TestBoneWorldPositionsCoversMassTable(t *testing.T) {
	b := newBiped()
	b.SetRoot(mgl64.Vec3{3, 1, -2}, math.Pi/2)

	bones := b.BoneWorldPositions()
	require.Len(t, bones, len(config.DefaultSegments()))
	for _, seg := range config.DefaultSegments() {
		p, ok := bones[seg.Name]
		require.True(t, ok, seg.Name)
		assert.True(t, physics.FiniteVec(p), seg.Name)
	}

	assert.Greater(t, bones[config.SegHead][1], bones[config.SegTorso][1])
	assert.Greater(t, bones[config.SegTorso][1], bones[config.SegThighL][1])
	// Facing +X: the character's right is +Z.
	assert.Greater(t, bones[config.SegUpperArmR][2], bones[config.SegUpperArmL][2])
}

func TestPelvisOffsetLowersUpperBody(t *testing.T) {
	b := newBiped()
	before := b.BoneWorldPositions()

	b.ApplyPelvisOffset(-0.1)
	after := b.BoneWorldPositions()

	assert.Equal(t, -0.1, b.PelvisOffset())
	for _, name := range []string{config.SegHead, config.SegTorso, config.SegHandL, config.SegThighR} {
		assert.InDelta(t, before[name][1]-0.1, after[name][1], 1e-12, name)
	}
}
