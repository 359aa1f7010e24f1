package terrain

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/locomotion/internal/core/systems/physics"
)

// Kinematic wraps a provider with simple kinematic resolution: it steps up
// onto ledges no taller than MaxStepHeight, blocks horizontal motion into
// taller ones or into slopes steeper than MaxSlope, and reports grounding
// within SkinWidth. A steep sample within step height counts as a ledge edge
// when the ground StepProbe metres further on is walkable.
type Kinematic struct {
	Ground        physics.GroundProvider
	MaxStepHeight float64
	MaxSlope      float64 // degrees
	SkinWidth     float64
	StepProbe     float64
}

func NewKinematic(ground physics.GroundProvider) *Kinematic {
	return &Kinematic{Ground: ground, MaxStepHeight: 0.3, MaxSlope: 50, SkinWidth: 0.02, StepProbe: 0.1}
}

func (k *Kinematic) ProbeGround(x, z float64) (physics.GroundSample, error) {
	return k.Ground.ProbeGround(x, z)
}

func (k *Kinematic) SupportsCharacterMovement() bool { return k.Ground != nil }

func (k *Kinematic) ComputeCharacterMovement(position, desired mgl64.Vec3, _ physics.CapsuleShape) (physics.MovementResult, error) {
	next := position.Add(desired)
	sample, err := k.Ground.ProbeGround(next[0], next[2])
	if err != nil {
		return physics.MovementResult{}, err
	}

	rise := sample.Height - position[1]
	steep := physics.SlopeDegrees(sample.Normal) > k.MaxSlope
	if steep && rise > 0 && rise <= k.MaxStepHeight {
		landing, ok, err := k.stepLanding(next, desired, position[1])
		if err != nil {
			return physics.MovementResult{}, err
		}
		if ok {
			sample.Normal = landing.Normal
			steep = false
		}
	}
	wasOnGround := position[1]-k.groundAt(position) <= k.SkinWidth
	if rise > k.MaxStepHeight || (steep && rise > 0 && wasOnGround) {
		// Blocked: keep vertical motion only.
		next = mgl64.Vec3{position[0], position[1] + desired[1], position[2]}
		sample, err = k.Ground.ProbeGround(next[0], next[2])
		if err != nil {
			return physics.MovementResult{}, err
		}
	}

	if next[1] < sample.Height {
		next[1] = sample.Height
	}
	return physics.MovementResult{
		Movement:     next.Sub(position),
		Grounded:     next[1]-sample.Height <= k.SkinWidth,
		GroundHeight: sample.Height,
		GroundNormal: sample.Normal,
	}, nil
}

// stepLanding samples the ground just past a ledge edge along the direction
// of travel. ok reports whether that ground is walkable and within step height.
func (k *Kinematic) stepLanding(next, desired mgl64.Vec3, from float64) (physics.GroundSample, bool, error) {
	dir := physics.Horizontal(desired)
	if dir.Len() < 1e-9 || k.StepProbe <= 0 {
		return physics.GroundSample{}, false, nil
	}
	ahead := next.Add(dir.Normalize().Mul(k.StepProbe))
	s, err := k.Ground.ProbeGround(ahead[0], ahead[2])
	if err != nil {
		return physics.GroundSample{}, false, err
	}
	rise := s.Height - from
	ok := physics.SlopeDegrees(s.Normal) <= k.MaxSlope && rise > 0 && rise <= k.MaxStepHeight
	return s, ok, nil
}

func (k *Kinematic) groundAt(p mgl64.Vec3) float64 {
	s, err := k.Ground.ProbeGround(p[0], p[2])
	if err != nil {
		return p[1]
	}
	return s.Height
}
