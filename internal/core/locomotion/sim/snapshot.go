package sim

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/zeusync/locomotion/internal/core/locomotion/balance"
	"github.com/zeusync/locomotion/internal/core/locomotion/controller"
	"github.com/zeusync/locomotion/internal/core/locomotion/footik"
	"github.com/zeusync/locomotion/internal/core/locomotion/rig"
)

// Snapshot is the read-only per-tick view handed to telemetry.
type Snapshot struct {
	ID   uuid.UUID `json:"id"`
	Tick uint64    `json:"tick"`
	Time float64   `json:"time"`
	View View      `json:"view"`
}

// View is everything in a snapshot that describes the character rather than
// the clock.
type View struct {
	Character    controller.State    `json:"character"`
	Display      string              `json:"display"`
	CyclePhase   float64             `json:"cycle_phase"`
	PelvisOffset float64             `json:"pelvis_offset"`
	Feet         [2]footik.FootState `json:"feet"`
	Legs         [2]rig.LegPose      `json:"legs"`
	CoM          balance.CoMState    `json:"com"`
	Support      balance.Polygon     `json:"support"`
}

type envelope struct {
	ID   uuid.UUID       `json:"id"`
	Tick uint64          `json:"tick"`
	Time float64         `json:"time"`
	View json.RawMessage `json:"view"`
}

// Encoder turns snapshots into JSON frames and drops frames whose view is
// byte-identical to the previous one.
type Encoder struct {
	last   uint64
	seeded bool
}

// Encode returns the frame and whether it differs from the last one sent.
// A skipped frame returns (nil, false, nil).
func (e *Encoder) Encode(s Snapshot) ([]byte, bool, error) {
	view, err := json.Marshal(s.View)
	if err != nil {
		return nil, false, fmt.Errorf("encode view: %w", err)
	}
	digest := xxhash.Sum64(view)
	if e.seeded && digest == e.last {
		return nil, false, nil
	}

	frame, err := json.Marshal(envelope{ID: s.ID, Tick: s.Tick, Time: s.Time, View: view})
	if err != nil {
		return nil, false, fmt.Errorf("encode frame: %w", err)
	}
	e.last, e.seeded = digest, true
	return frame, true, nil
}

// Reset forces the next frame through.
func (e *Encoder) Reset() { e.seeded = false }
