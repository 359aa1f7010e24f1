package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Up is world +Y.
var Up = mgl64.Vec3{0, 1, 0}

// Epsilon guards divisions and normalizations.
const Epsilon = 1e-9

func V3(x, y, z float64) mgl64.Vec3 { return mgl64.Vec3{x, y, z} }

// Horizontal drops the Y component.
func Horizontal(v mgl64.Vec3) mgl64.Vec3 { return mgl64.Vec3{v[0], 0, v[2]} }

// HorizontalLen is the length of v projected on the XZ plane.
func HorizontalLen(v mgl64.Vec3) float64 { return math.Hypot(v[0], v[2]) }

// HorizontalDistance between two points ignoring height.
func HorizontalDistance(a, b mgl64.Vec3) float64 { return math.Hypot(b[0]-a[0], b[2]-a[2]) }

// XZ projects a world point onto the ground plane as (x, z).
func XZ(v mgl64.Vec3) mgl64.Vec2 { return mgl64.Vec2{v[0], v[2]} }

// Forward is the unit heading for a facing angle; facing 0 looks down +Z.
func Forward(facing float64) mgl64.Vec3 {
	return mgl64.Vec3{math.Sin(facing), 0, math.Cos(facing)}
}

// Right is the unit vector to the character's right for a facing angle.
func Right(facing float64) mgl64.Vec3 {
	return mgl64.Vec3{-math.Cos(facing), 0, math.Sin(facing)}
}

// Heading is the facing angle that looks along the horizontal part of dir.
func Heading(dir mgl64.Vec3) float64 { return math.Atan2(dir[0], dir[2]) }

// WrapAngle maps a to [-π, π].
func WrapAngle(a float64) float64 {
	if a >= -math.Pi && a <= math.Pi {
		return a
	}
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// AngleDelta is the shortest signed rotation from `from` to `to`.
func AngleDelta(from, to float64) float64 { return WrapAngle(to - from) }

// Wrap01 maps v to [0, 1).
func Wrap01(v float64) float64 {
	v -= math.Floor(v)
	if v >= 1 {
		return 0
	}
	return v
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func IsFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// FiniteVec reports whether every component of v is finite.
func FiniteVec(v mgl64.Vec3) bool { return IsFinite(v[0]) && IsFinite(v[1]) && IsFinite(v[2]) }

// SafeNormalize returns v normalized, or fallback when v is (near) zero or non-finite.
func SafeNormalize(v, fallback mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < Epsilon || !IsFinite(l) {
		return fallback
	}
	return v.Mul(1 / l)
}

// MoveToward moves current toward target by at most maxDelta, never overshooting.
func MoveToward(current, target mgl64.Vec3, maxDelta float64) mgl64.Vec3 {
	d := target.Sub(current)
	l := d.Len()
	if l <= maxDelta || l < Epsilon {
		return target
	}
	return current.Add(d.Mul(maxDelta / l))
}

// SlopeDegrees is the angle between normal and world up in degrees. Non-finite
// results (zero-length normal) report 0.
func SlopeDegrees(normal mgl64.Vec3) float64 {
	l := normal.Len()
	if l < Epsilon {
		return 0
	}
	a := mgl64.RadToDeg(math.Acos(Clamp(normal[1]/l, -1, 1)))
	if !IsFinite(a) {
		return 0
	}
	return a
}

// ProjectOnPlane removes the component of v along the plane normal. A
// degenerate normal leaves v untouched.
func ProjectOnPlane(v, normal mgl64.Vec3) mgl64.Vec3 {
	l := normal.Len()
	if l < Epsilon || !IsFinite(l) {
		return v
	}
	n := normal.Mul(1 / l)
	return v.Sub(n.Mul(v.Dot(n)))
}
