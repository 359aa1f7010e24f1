package balance

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/locomotion/internal/core/locomotion/config"
)

func newCalculator() *SupportPolygonCalculator {
	return NewSupportPolygonCalculator(config.DefaultBalance())
}

func TestCalculateNoGroundedFeet(t *testing.T) {
	poly := newCalculator().Calculate(
		FootContact{Position: mgl64.Vec3{0.1, 0, 0}},
		FootContact{Position: mgl64.Vec3{-0.1, 0, 0}},
	)
	assert.Empty(t, poly)
	assert.Equal(t, 0.0, poly.Area())
}

func TestCalculateSingleFoot(t *testing.T) {
	cfg := config.DefaultBalance()
	poly := newCalculator().Calculate(
		FootContact{Position: mgl64.Vec3{0.1, 0, 0}, Grounded: true, Facing: 0.4},
		FootContact{Position: mgl64.Vec3{-0.1, 0, 0}},
	)
	require.Len(t, poly, 4)
	assert.InDelta(t, cfg.FootLength*cfg.FootWidth, poly.Area(), 1e-12)
	assert.True(t, poly.Contains(poly.Centroid()))
}

func TestCalculateBothFeetCoversEachFoot(t *testing.T) {
	calc := newCalculator()
	tests := []struct {
		name        string
		left, right FootContact
	}{
		{
			"side by side",
			FootContact{Position: mgl64.Vec3{0.1, 0, 0}, Grounded: true},
			FootContact{Position: mgl64.Vec3{-0.1, 0, 0}, Grounded: true},
		},
		{
			"mid stride, rotated",
			FootContact{Position: mgl64.Vec3{0.1, 0, 0.3}, Grounded: true, Facing: 0.3},
			FootContact{Position: mgl64.Vec3{-0.1, 0, -0.2}, Grounded: true, Facing: -0.2},
		},
		{
			"overlapping",
			FootContact{Position: mgl64.Vec3{0, 0, 0}, Grounded: true},
			FootContact{Position: mgl64.Vec3{0, 0, 0}, Grounded: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			both := calc.Calculate(tt.left, tt.right)
			leftOnly := calc.Calculate(tt.left, FootContact{})
			rightOnly := calc.Calculate(FootContact{}, tt.right)

			assert.GreaterOrEqual(t, both.Area()+1e-12, leftOnly.Area())
			assert.GreaterOrEqual(t, both.Area()+1e-12, rightOnly.Area())
			assert.LessOrEqual(t, len(both), 8)
			for _, p := range append(leftOnly, rightOnly...) {
				assert.GreaterOrEqual(t, both.SignedDistance(p), -1e-9)
			}
		})
	}
}

func TestConvexHullDropsInteriorPoints(t *testing.T) {
	hull := ConvexHull([]mgl64.Vec2{
		{0, 0}, {1, 0}, {1, 1}, {0, 1},
		{0.5, 0.5}, {0.2, 0.7}, {0.5, 0},
	})
	require.Len(t, hull, 4)
	assert.Equal(t, mgl64.Vec2{0, 0}, hull[0])
	assert.InDelta(t, 1.0, hull.Area(), 1e-12)
	for i := range hull {
		assert.Greater(t, cross(hull[i], hull[(i+1)%4], hull[(i+2)%4]), 0.0, "ring must turn counter-clockwise")
	}
}

func TestSignedDistance(t *testing.T) {
	square := Polygon{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	assert.InDelta(t, 0.5, square.SignedDistance(mgl64.Vec2{0.5, 0.5}), 1e-12)
	assert.InDelta(t, 0.1, square.SignedDistance(mgl64.Vec2{0.9, 0.5}), 1e-12)
	assert.InDelta(t, -1.0, square.SignedDistance(mgl64.Vec2{2, 0.5}), 1e-12)
	assert.InDelta(t, -math.Sqrt2, square.SignedDistance(mgl64.Vec2{2, 2}), 1e-12)
}

func TestFootCornersFollowFacing(t *testing.T) {
	cfg := config.DefaultBalance()
	corners := newCalculator().FootCorners(FootContact{Position: mgl64.Vec3{0, 0, 0}, Facing: math.Pi / 2})
	// Facing +X: toes are at +x.
	assert.InDelta(t, cfg.FootLength*cfg.ToeFraction, corners[0][0], 1e-12)
	assert.InDelta(t, -cfg.FootLength*(1-cfg.ToeFraction), corners[2][0], 1e-12)
}
