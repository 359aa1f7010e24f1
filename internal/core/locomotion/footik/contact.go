package footik

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/locomotion/internal/core/locomotion"
)

// contact is a foot's ground relationship. Each variant carries only the
// positions that are valid for it, so a swing foot has no planted position to
// read by accident.
type contact interface {
	phase() locomotion.FootPhase
}

// planted anchors the foot in world space. While standing the anchor follows
// the hip; once moving it stays put until lift-off.
type planted struct {
	at mgl64.Vec3
}

// swinging arcs the foot from start to end.
type swinging struct {
	start mgl64.Vec3
	end   mgl64.Vec3
}

// frozen holds the foot still while the character turns in place.
type frozen struct {
	at mgl64.Vec3
}

func (*planted) phase() locomotion.FootPhase  { return locomotion.Stance }
func (*swinging) phase() locomotion.FootPhase { return locomotion.Swing }
func (*frozen) phase() locomotion.FootPhase   { return locomotion.Stance }

type foot struct {
	side    locomotion.Side
	contact contact

	target        mgl64.Vec3
	terrainHeight float64
	terrainNormal mgl64.Vec3
	swingProgress float64
}

// FootState is a read-only snapshot of one foot.
type FootState struct {
	Side          locomotion.Side      `json:"side"`
	Phase         locomotion.FootPhase `json:"phase"`
	Target        mgl64.Vec3           `json:"target"`
	Planted       *mgl64.Vec3          `json:"planted,omitempty"`
	SwingStart    *mgl64.Vec3          `json:"swing_start,omitempty"`
	SwingEnd      *mgl64.Vec3          `json:"swing_end,omitempty"`
	SwingProgress float64              `json:"swing_progress"`
	Frozen        bool                 `json:"frozen"`
	TerrainHeight float64              `json:"terrain_height"`
	TerrainNormal mgl64.Vec3           `json:"terrain_normal"`
}

func (f *foot) snapshot() FootState {
	s := FootState{
		Side:          f.side,
		Phase:         locomotion.Unplaced,
		Target:        f.target,
		TerrainHeight: f.terrainHeight,
		TerrainNormal: f.terrainNormal,
	}
	switch c := f.contact.(type) {
	case *planted:
		at := c.at
		s.Phase = locomotion.Stance
		s.Planted = &at
	case *frozen:
		at := c.at
		s.Phase = locomotion.Stance
		s.Planted = &at
		s.Frozen = true
	case *swinging:
		start, end := c.start, c.end
		s.Phase = locomotion.Swing
		s.SwingStart = &start
		s.SwingEnd = &end
		s.SwingProgress = f.swingProgress
	}
	return s
}
