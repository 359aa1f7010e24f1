// Package ik is the analytic two-bone leg solver. Everything here is a pure
// function of its inputs.
package ik

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/locomotion/internal/core/systems/physics"
)

// ReachEpsilon keeps the clamped reach strictly inside the solvable range so
// the law of cosines never sees a flat triangle.
const ReachEpsilon = 1e-3

// Result holds the joint angles of one solve.
//
// UpperAngle is the thigh's rotation from straight down toward the facing
// direction. LowerAngle is the knee flexion, 0 for a straight leg.
type Result struct {
	UpperAngle float64 `json:"upper_angle"`
	LowerAngle float64 `json:"lower_angle"`
	ReachRatio float64 `json:"reach_ratio"`
}

// Weight fades IK influence from 1 at fadeStart to 0 at full extension.
func (r Result) Weight(fadeStart float64) float64 {
	if r.ReachRatio <= fadeStart || fadeStart >= 1 {
		return 1
	}
	return physics.Clamp((1-r.ReachRatio)/(1-fadeStart), 0, 1)
}

// Solve computes leg angles that place the end of a two-bone chain rooted at
// root on target, bending in the sagittal plane of facing.
func Solve(root, target mgl64.Vec3, facing, upperLen, lowerLen float64) Result {
	maxReach := upperLen + lowerLen
	if maxReach <= 0 || !physics.FiniteVec(root) || !physics.FiniteVec(target) {
		return Result{}
	}

	minReach := math.Abs(upperLen-lowerLen) + ReachEpsilon
	hi := maxReach - ReachEpsilon
	if minReach > hi {
		minReach = hi
	}

	delta := target.Sub(root)
	dist := physics.Clamp(delta.Len(), minReach, hi)

	// Sagittal plane: forward along facing, vertical measured downward.
	fwd := delta.Dot(physics.Forward(facing))
	down := -delta[1]
	toTarget := math.Atan2(fwd, down)

	hipOffset := lawOfCosines(upperLen, dist, lowerLen)
	kneeInterior := lawOfCosines(upperLen, lowerLen, dist)

	return Result{
		UpperAngle: toTarget + hipOffset,
		LowerAngle: math.Max(0, math.Pi-kneeInterior),
		ReachRatio: dist / maxReach,
	}
}

// lawOfCosines returns the angle between sides a and b opposite side c.
func lawOfCosines(a, b, c float64) float64 {
	den := 2 * a * b
	if den < physics.Epsilon {
		return 0
	}
	return math.Acos(physics.Clamp((a*a+b*b-c*c)/den, -1, 1))
}

// Forward places the knee and ankle of a chain posed with r. It is the
// inverse of Solve for reachable targets.
func Forward(root mgl64.Vec3, facing float64, r Result, upperLen, lowerLen float64) (knee, ankle mgl64.Vec3) {
	fwd := physics.Forward(facing)
	knee = root.Add(limbDir(fwd, r.UpperAngle).Mul(upperLen))
	ankle = knee.Add(limbDir(fwd, r.UpperAngle-r.LowerAngle).Mul(lowerLen))
	return knee, ankle
}

func limbDir(fwd mgl64.Vec3, angle float64) mgl64.Vec3 {
	return fwd.Mul(math.Sin(angle)).Sub(physics.Up.Mul(math.Cos(angle)))
}

// Solver binds bone lengths.
type Solver struct {
	UpperLength float64
	LowerLength float64
}

func NewSolver(upperLen, lowerLen float64) Solver {
	return Solver{UpperLength: upperLen, LowerLength: lowerLen}
}

func (s Solver) Solve(root, target mgl64.Vec3, facing float64) Result {
	return Solve(root, target, facing, s.UpperLength, s.LowerLength)
}

func (s Solver) Forward(root mgl64.Vec3, facing float64, r Result) (knee, ankle mgl64.Vec3) {
	return Forward(root, facing, r, s.UpperLength, s.LowerLength)
}

// MaxReach is the chain's full extension.
func (s Solver) MaxReach() float64 { return s.UpperLength + s.LowerLength }
