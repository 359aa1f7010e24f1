package balance

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/locomotion/internal/core/locomotion/config"
	"github.com/zeusync/locomotion/internal/core/systems/physics"
)

// FootContact describes one foot for support computation.
type FootContact struct {
	Position mgl64.Vec3
	Grounded bool
	Facing   float64
}

// Polygon is a counter-clockwise ring of ground points (x, z). It may be
// empty (no support) or hold a single foot's quad.
type Polygon []mgl64.Vec2

// Area is the shoelace area of the ring.
func (p Polygon) Area() float64 {
	if len(p) < 3 {
		return 0
	}
	sum := 0.0
	for i := range p {
		j := (i + 1) % len(p)
		sum += p[i][0]*p[j][1] - p[j][0]*p[i][1]
	}
	return math.Abs(sum) / 2
}

// Centroid is the vertex average, adequate for the convex rings produced here.
func (p Polygon) Centroid() mgl64.Vec2 {
	if len(p) == 0 {
		return mgl64.Vec2{}
	}
	var c mgl64.Vec2
	for _, v := range p {
		c = c.Add(v)
	}
	return c.Mul(1 / float64(len(p)))
}

// Contains reports whether q lies inside or on the ring.
func (p Polygon) Contains(q mgl64.Vec2) bool {
	if len(p) < 3 {
		return false
	}
	for i := range p {
		if cross(p[i], p[(i+1)%len(p)], q) < 0 {
			return false
		}
	}
	return true
}

// SignedDistance is positive inside the ring and negative outside, measured
// to the nearest edge.
func (p Polygon) SignedDistance(q mgl64.Vec2) float64 {
	best := math.Inf(1)
	for i := range p {
		best = math.Min(best, segmentDistance(q, p[i], p[(i+1)%len(p)]))
	}
	if p.Contains(q) {
		return best
	}
	return -best
}

// SupportPolygonCalculator builds the contact footprint from foot corners.
type SupportPolygonCalculator struct {
	footLength  float64
	footWidth   float64
	toeFraction float64
}

func NewSupportPolygonCalculator(cfg config.Balance) *SupportPolygonCalculator {
	return &SupportPolygonCalculator{
		footLength:  cfg.FootLength,
		footWidth:   cfg.FootWidth,
		toeFraction: cfg.ToeFraction,
	}
}

// Calculate returns the support polygon for the grounded feet: empty with no
// grounded foot, one quad for a single foot, the convex hull for both.
func (c *SupportPolygonCalculator) Calculate(left, right FootContact) Polygon {
	points := make([]mgl64.Vec2, 0, 8)
	feet := 0
	for _, f := range [2]FootContact{left, right} {
		if !f.Grounded {
			continue
		}
		points = append(points, c.FootCorners(f)...)
		feet++
	}
	switch feet {
	case 0:
		return Polygon{}
	case 1:
		return sortAroundCentroid(points)
	default:
		return ConvexHull(points)
	}
}

// FootCorners is the foot rectangle rotated by its facing: front-left,
// front-right, heel-right, heel-left.
func (c *SupportPolygonCalculator) FootCorners(f FootContact) []mgl64.Vec2 {
	fwd := physics.XZ(physics.Forward(f.Facing))
	right := physics.XZ(physics.Right(f.Facing))
	origin := physics.XZ(f.Position)

	toe := fwd.Mul(c.footLength * c.toeFraction)
	heel := fwd.Mul(-c.footLength * (1 - c.toeFraction))
	half := right.Mul(c.footWidth / 2)

	return []mgl64.Vec2{
		origin.Add(toe).Sub(half),
		origin.Add(toe).Add(half),
		origin.Add(heel).Add(half),
		origin.Add(heel).Sub(half),
	}
}

// Area is kept on the calculator for diagnostics callers.
func (c *SupportPolygonCalculator) Area(p Polygon) float64 { return p.Area() }

func sortAroundCentroid(points []mgl64.Vec2) Polygon {
	out := make(Polygon, len(points))
	copy(out, points)
	ctr := out.Centroid()
	sort.Slice(out, func(i, j int) bool {
		return angleAround(ctr, out[i]) < angleAround(ctr, out[j])
	})
	return out
}

func angleAround(c, p mgl64.Vec2) float64 { return math.Atan2(p[1]-c[1], p[0]-c[0]) }

// ConvexHull is a Graham scan: lowest point as pivot, polar-angle sort, then
// pop every point that would make a clockwise or straight turn.
func ConvexHull(points []mgl64.Vec2) Polygon {
	if len(points) < 3 {
		out := make(Polygon, len(points))
		copy(out, points)
		return out
	}

	pts := make([]mgl64.Vec2, len(points))
	copy(pts, points)

	pivot := 0
	for i, p := range pts {
		if p[1] < pts[pivot][1] || (p[1] == pts[pivot][1] && p[0] < pts[pivot][0]) {
			pivot = i
		}
	}
	pts[0], pts[pivot] = pts[pivot], pts[0]
	o := pts[0]

	rest := pts[1:]
	sort.Slice(rest, func(i, j int) bool {
		ai, aj := angleAround(o, rest[i]), angleAround(o, rest[j])
		if ai != aj {
			return ai < aj
		}
		return rest[i].Sub(o).Len() < rest[j].Sub(o).Len()
	})

	hull := make(Polygon, 0, len(pts))
	hull = append(hull, o)
	for _, p := range rest {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull
}

// cross is the z of (a→b) × (a→c); positive for a counter-clockwise turn.
func cross(a, b, c mgl64.Vec2) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func segmentDistance(p, a, b mgl64.Vec2) float64 {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 < physics.Epsilon {
		return p.Sub(a).Len()
	}
	t := physics.Clamp(p.Sub(a).Dot(ab)/l2, 0, 1)
	return p.Sub(a.Add(ab.Mul(t))).Len()
}
