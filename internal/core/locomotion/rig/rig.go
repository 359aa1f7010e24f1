// Package rig is a minimal reference biped. It turns the character root, the
// pelvis offset and solved leg angles into joint and segment positions, which
// is what the center-of-mass system and telemetry consume.
package rig

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/locomotion/internal/core/locomotion"
	"github.com/zeusync/locomotion/internal/core/locomotion/config"
	"github.com/zeusync/locomotion/internal/core/locomotion/ik"
	"github.com/zeusync/locomotion/internal/core/systems/physics"
)

// handDrop is how far below the wrist the hand's mass sits.
const handDrop = 0.05

// LegPose is one leg's joints in world space plus the angles that produced them.
type LegPose struct {
	Hip    mgl64.Vec3 `json:"hip"`
	Knee   mgl64.Vec3 `json:"knee"`
	Ankle  mgl64.Vec3 `json:"ankle"`
	Angles ik.Result  `json:"angles"`
}

type Biped struct {
	cfg      config.Rig
	solver   ik.Solver
	hipWidth float64

	root         mgl64.Vec3
	facing       float64
	pelvisOffset float64
	legs         [2]ik.Result
}

// New builds a biped standing with straight legs.
func New(cfg config.Rig, solver ik.Solver, hipWidth float64) *Biped {
	return &Biped{cfg: cfg, solver: solver, hipWidth: hipWidth}
}

// SetRoot places the character root (ground level, between the feet).
func (b *Biped) SetRoot(pos mgl64.Vec3, facing float64) {
	b.root = pos
	b.facing = facing
}

func (b *Biped) ApplyPelvisOffset(offset float64) { b.pelvisOffset = offset }

func (b *Biped) PelvisOffset() float64 { return b.pelvisOffset }

// HipWorldPosition is where a leg chain is rooted for a given root pose.
func (b *Biped) HipWorldPosition(side locomotion.Side, pos mgl64.Vec3, facing, pelvisOffset float64) mgl64.Vec3 {
	return pos.
		Add(physics.Up.Mul(b.cfg.HipHeight + pelvisOffset)).
		Add(physics.Right(facing).Mul(side.Sign() * b.hipWidth / 2))
}

// Hip is HipWorldPosition at the current root.
func (b *Biped) Hip(side locomotion.Side) mgl64.Vec3 {
	return b.HipWorldPosition(side, b.root, b.facing, b.pelvisOffset)
}

// ApplyLegIK blends a leg toward a solved pose. weight scales the solution
// against the straight rest pose; blend is the per-call fraction of the
// remaining gap closed, 1 snapping immediately.
func (b *Biped) ApplyLegIK(side locomotion.Side, r ik.Result, weight, blend float64) {
	weight = physics.Clamp(weight, 0, 1)
	blend = physics.Clamp(blend, 0, 1)

	cur := &b.legs[side]
	cur.UpperAngle += (r.UpperAngle*weight - cur.UpperAngle) * blend
	cur.LowerAngle += (r.LowerAngle*weight - cur.LowerAngle) * blend
	cur.ReachRatio = r.ReachRatio
}

func (b *Biped) Leg(side locomotion.Side) LegPose {
	hip := b.Hip(side)
	knee, ankle := b.solver.Forward(hip, b.facing, b.legs[side])
	return LegPose{Hip: hip, Knee: knee, Ankle: ankle, Angles: b.legs[side]}
}

// FootWorldPosition is the posed ankle.
func (b *Biped) FootWorldPosition(side locomotion.Side) mgl64.Vec3 {
	return b.Leg(side).Ankle
}

// BoneWorldPositions returns the mass centroid of every segment, keyed by
// the names used in the mass table.
func (b *Biped) BoneWorldPositions() map[string]mgl64.Vec3 {
	up := physics.Up
	lift := func(h float64) mgl64.Vec3 { return b.root.Add(up.Mul(h + b.pelvisOffset)) }
	right := physics.Right(b.facing)
	fwd := physics.Forward(b.facing)

	bones := map[string]mgl64.Vec3{
		config.SegHead:  lift(b.cfg.HeadHeight),
		config.SegTorso: lift(b.cfg.TorsoHeight),
	}

	arms := [2][3]string{
		{config.SegUpperArmL, config.SegForearmL, config.SegHandL},
		{config.SegUpperArmR, config.SegForearmR, config.SegHandR},
	}
	legs := [2][3]string{
		{config.SegThighL, config.SegShinL, config.SegFootL},
		{config.SegThighR, config.SegShinR, config.SegFootR},
	}

	for _, side := range locomotion.Sides {
		shoulder := lift(b.cfg.ShoulderHeight).Add(right.Mul(side.Sign() * b.cfg.ShoulderWidth / 2))
		elbow := shoulder.Sub(up.Mul(b.cfg.UpperArmLength))
		wrist := elbow.Sub(up.Mul(b.cfg.ForearmLength))
		bones[arms[side][0]] = midpoint(shoulder, elbow)
		bones[arms[side][1]] = midpoint(elbow, wrist)
		bones[arms[side][2]] = wrist.Sub(up.Mul(handDrop))

		leg := b.Leg(side)
		bones[legs[side][0]] = midpoint(leg.Hip, leg.Knee)
		bones[legs[side][1]] = midpoint(leg.Knee, leg.Ankle)
		bones[legs[side][2]] = leg.Ankle.Add(fwd.Mul(b.cfg.FootForward))
	}
	return bones
}

func midpoint(a, b mgl64.Vec3) mgl64.Vec3 { return a.Add(b).Mul(0.5) }
