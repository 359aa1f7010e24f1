// Package terrain provides ground providers for the controller: an abstract
// base that refuses every query, a flat plane, an analytic height field, and
// a kinematic mover that resolves step-up and walls against any of them.
package terrain

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/locomotion/internal/core/systems/physics"
)

var (
	ErrNotImplemented = errors.New("ground provider: not implemented")
	ErrUnsupported    = errors.New("ground provider: unsupported operation")
)

// Base is the abstract provider. Embed it and override what the engine
// supports; anything left unimplemented fails loudly.
type Base struct{}

func (Base) ProbeGround(_, _ float64) (physics.GroundSample, error) {
	return physics.GroundSample{}, ErrNotImplemented
}

func (Base) SupportsCharacterMovement() bool { return false }

func (Base) ComputeCharacterMovement(_, _ mgl64.Vec3, _ physics.CapsuleShape) (physics.MovementResult, error) {
	return physics.MovementResult{}, ErrUnsupported
}

// Flat is an infinite horizontal plane.
type Flat struct {
	Height float64
}

func (f Flat) ProbeGround(_, _ float64) (physics.GroundSample, error) {
	return physics.GroundSample{Height: f.Height, Normal: physics.Up}, nil
}

// Field is a height field defined by a function. Normals come from central
// differences over Step metres.
type Field struct {
	Height physics.HeightFunc
	Step   float64
}

func NewField(h physics.HeightFunc) *Field {
	return &Field{Height: h, Step: 0.05}
}

func (f *Field) ProbeGround(x, z float64) (physics.GroundSample, error) {
	if f.Height == nil {
		return physics.GroundSample{}, ErrNotImplemented
	}
	return physics.GroundSample{Height: f.Height(x, z), Normal: f.normal(x, z)}, nil
}

func (f *Field) normal(x, z float64) mgl64.Vec3 {
	e := f.Step
	if e <= 0 {
		e = 0.05
	}
	dx := (f.Height(x+e, z) - f.Height(x-e, z)) / (2 * e)
	dz := (f.Height(x, z+e) - f.Height(x, z-e)) / (2 * e)
	return physics.SafeNormalize(mgl64.Vec3{-dx, 1, -dz}, physics.Up)
}

// Slope is an inclined plane rising along +Z by the given angle in degrees.
func Slope(degrees float64) *Field {
	k := math.Tan(mgl64.DegToRad(degrees))
	return NewField(func(_, z float64) float64 { return k * z })
}

// Hills is a gentle sinusoidal landscape.
func Hills(amplitude, wavelength float64) *Field {
	w := 2 * math.Pi / wavelength
	return NewField(func(x, z float64) float64 {
		return amplitude * (math.Sin(x*w) + math.Cos(z*w*0.7)) / 2
	})
}

// Steps is a staircase climbing along +Z.
func Steps(rise, run float64) *Field {
	return NewField(func(_, z float64) float64 {
		if z <= 0 {
			return 0
		}
		return math.Floor(z/run) * rise
	})
}
