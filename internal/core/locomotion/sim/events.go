package sim

import (
	"github.com/zeusync/locomotion/internal/core/locomotion"
	"github.com/zeusync/locomotion/internal/core/locomotion/balance"
)

// Topic carries every locomotion transition.
const Topic = "locomotion"

const (
	EventModeChanged      = "mode.changed"
	EventGaitChanged      = "gait.changed"
	EventStabilityChanged = "stability.changed"
)

type ModeChange struct {
	From locomotion.MovementMode `json:"from"`
	To   locomotion.MovementMode `json:"to"`
}

type GaitChange struct {
	From locomotion.GaitType `json:"from"`
	To   locomotion.GaitType `json:"to"`
}

type StabilityChange struct {
	From   balance.Level `json:"from"`
	To     balance.Level `json:"to"`
	Margin float64       `json:"margin"`
}
