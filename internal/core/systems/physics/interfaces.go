package physics

import "github.com/go-gl/mathgl/mgl64"

// Collaborator contracts consumed by the locomotion core. Concrete providers
// live in the terrain package; tests supply their own.

// GroundSample is the result of a vertical ground probe.
type GroundSample struct {
	Height float64
	Normal mgl64.Vec3
}

// GroundProvider answers height/normal queries at a world (x, z).
type GroundProvider interface {
	ProbeGround(x, z float64) (GroundSample, error)
}

// CapsuleShape describes the character's collision volume for movers that
// resolve kinematic collision themselves.
type CapsuleShape struct {
	Radius float64
	Height float64
}

// MovementResult is the outcome of a kinematic move.
type MovementResult struct {
	Movement     mgl64.Vec3
	Grounded     bool
	GroundHeight float64
	GroundNormal mgl64.Vec3
}

// CharacterMover is optionally implemented by a GroundProvider whose engine
// resolves grounding, slopes and step-up on its own.
type CharacterMover interface {
	SupportsCharacterMovement() bool
	ComputeCharacterMovement(position, desiredDelta mgl64.Vec3, capsule CapsuleShape) (MovementResult, error)
}

// HeightFunc samples terrain height at (x, z).
type HeightFunc func(x, z float64) float64

// NormalFunc samples the terrain normal at (x, z).
type NormalFunc func(x, z float64) mgl64.Vec3

// Samplers adapts a GroundProvider into the pair of scalar functions used by
// foot placement. Probe errors degrade to a flat ground at fallback height.
func Samplers(p GroundProvider, fallback float64) (HeightFunc, NormalFunc) {
	height := func(x, z float64) float64 {
		s, err := p.ProbeGround(x, z)
		if err != nil || !IsFinite(s.Height) {
			return fallback
		}
		return s.Height
	}
	normal := func(x, z float64) mgl64.Vec3 {
		s, err := p.ProbeGround(x, z)
		if err != nil {
			return Up
		}
		return SafeNormalize(s.Normal, Up)
	}
	return height, normal
}
