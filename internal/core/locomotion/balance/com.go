// Package balance estimates whether the character's mass sits over its feet:
// a support polygon from grounded foot corners and a weighted center of mass
// measured against it.
package balance

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/zeusync/locomotion/internal/core/locomotion/config"
	"github.com/zeusync/locomotion/internal/core/systems/physics"
)

// Level is the qualitative stability classification.
type Level uint8

const (
	Stable Level = iota
	Warning
	Unstable
)

func (l Level) String() string {
	switch l {
	case Stable:
		return "stable"
	case Warning:
		return "warning"
	default:
		return "unstable"
	}
}

func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// CoMState is recomputed on every update.
type CoMState struct {
	Position         mgl64.Vec3 `json:"position"`
	Velocity         mgl64.Vec3 `json:"velocity"`
	GroundProjection mgl64.Vec3 `json:"ground_projection"`
	Margin           float64    `json:"margin"`
	Level            Level      `json:"level"`
	// MassPresent is the sum of mass fractions found in the skeleton.
	MassPresent float64 `json:"mass_present"`
	Segments    int     `json:"segments"`
}

// CenterOfMassSystem keeps only the previous position and smoothed velocity
// between updates.
type CenterOfMassSystem struct {
	cfg      config.Balance
	segments []config.Segment

	prevPos  mgl64.Vec3
	velocity mgl64.Vec3
	seeded   bool
	state    CoMState
}

func NewCenterOfMassSystem(cfg config.Balance) *CenterOfMassSystem {
	segs := make([]config.Segment, len(cfg.Segments))
	copy(segs, cfg.Segments)
	return &CenterOfMassSystem{cfg: cfg, segments: segs}
}

// Reset drops the velocity history; call after teleporting the character.
func (c *CenterOfMassSystem) Reset() {
	c.seeded = false
	c.velocity = mgl64.Vec3{}
	c.prevPos = mgl64.Vec3{}
}

func (c *CenterOfMassSystem) State() CoMState { return c.state }

// Update computes the center of mass from bone world positions. Segments that
// are missing (or non-finite) are skipped and the remaining weights
// renormalized.
func (c *CenterOfMassSystem) Update(bones map[string]mgl64.Vec3, groundHeight float64, support Polygon, dt float64) CoMState {
	xs := make([]float64, 0, len(c.segments))
	ys := make([]float64, 0, len(c.segments))
	zs := make([]float64, 0, len(c.segments))
	ws := make([]float64, 0, len(c.segments))
	for _, seg := range c.segments {
		p, ok := bones[seg.Name]
		if !ok || seg.Fraction <= 0 || !physics.FiniteVec(p) {
			continue
		}
		xs = append(xs, p[0])
		ys = append(ys, p[1])
		zs = append(zs, p[2])
		ws = append(ws, seg.Fraction)
	}

	pos := c.state.Position
	mass := floats.Sum(ws)
	if mass > 0 {
		pos = mgl64.Vec3{stat.Mean(xs, ws), stat.Mean(ys, ws), stat.Mean(zs, ws)}
	}

	switch {
	case !c.seeded:
		c.velocity = mgl64.Vec3{}
		c.seeded = true
	case dt > 0:
		raw := pos.Sub(c.prevPos).Mul(1 / dt)
		c.velocity = c.velocity.Add(raw.Sub(c.velocity).Mul(c.cfg.VelocitySmoothing))
	}
	c.prevPos = pos

	ground := mgl64.Vec3{pos[0], groundHeight, pos[2]}
	margin := c.StabilityMargin(support, physics.XZ(ground))

	c.state = CoMState{
		Position:         pos,
		Velocity:         c.velocity,
		GroundProjection: ground,
		Margin:           margin,
		Level:            c.Classify(margin),
		MassPresent:      mass,
		Segments:         len(ws),
	}
	return c.state
}

// StabilityMargin is the signed distance from p to the support boundary.
// A single-point support uses a radius check and an empty support reports
// NoSupportMargin.
func (c *CenterOfMassSystem) StabilityMargin(support Polygon, p mgl64.Vec2) float64 {
	switch len(support) {
	case 0:
		return c.cfg.NoSupportMargin
	case 1:
		return c.cfg.PointSupportRadius - p.Sub(support[0]).Len()
	case 2:
		return c.cfg.PointSupportRadius - segmentDistance(p, support[0], support[1])
	default:
		return support.SignedDistance(p)
	}
}

func (c *CenterOfMassSystem) Classify(margin float64) Level {
	switch {
	case margin >= c.cfg.StableMargin:
		return Stable
	case margin >= c.cfg.UnstableMargin:
		return Warning
	default:
		return Unstable
	}
}
