// Package locomotion holds the vocabulary shared by the controller, foot IK
// and balance packages. Those packages never import each other; the host loop
// threads their outputs through as plain values.
package locomotion

// MovementMode is the controller's vertical state machine.
type MovementMode uint8

const (
	Grounded MovementMode = iota
	Jumping
	Falling
	Landing
)

func (m MovementMode) String() string {
	switch m {
	case Grounded:
		return "grounded"
	case Jumping:
		return "jumping"
	case Falling:
		return "falling"
	case Landing:
		return "landing"
	default:
		return "unknown"
	}
}

// Airborne reports whether the mode has no ground contact.
func (m MovementMode) Airborne() bool { return m == Jumping || m == Falling }

func (m MovementMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// GaitType is derived from horizontal speed each tick.
type GaitType uint8

const (
	Idle GaitType = iota
	Walking
	Running
	Turning
)

func (g GaitType) String() string {
	switch g {
	case Idle:
		return "Idle"
	case Walking:
		return "Walking"
	case Running:
		return "Running"
	case Turning:
		return "Turning"
	default:
		return "Unknown"
	}
}

func (g GaitType) MarshalText() ([]byte, error) { return []byte(g.String()), nil }

// Side selects a leg.
type Side uint8

const (
	Left Side = iota
	Right
)

// Sides lists both legs in evaluation order.
var Sides = [2]Side{Left, Right}

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// Sign is -1 for the left leg and +1 for the right, along the character's right axis.
func (s Side) Sign() float64 {
	if s == Right {
		return 1
	}
	return -1
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// FootPhase is a foot's half of the gait cycle.
type FootPhase uint8

const (
	Stance FootPhase = iota
	Swing
	// Unplaced is a foot that has not been given a target since reset.
	Unplaced
)

func (p FootPhase) String() string {
	switch p {
	case Swing:
		return "swing"
	case Unplaced:
		return "unplaced"
	default:
		return "stance"
	}
}

func (p FootPhase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// PhaseAt classifies a per-foot cycle phase in [0,1).
func PhaseAt(phase float64) FootPhase {
	if phase < 0.5 {
		return Stance
	}
	return Swing
}

// DisplayState is the animation label a presentation layer shows for a
// controller state. Airborne and landing modes win over gait.
func DisplayState(mode MovementMode, gait GaitType) string {
	switch mode {
	case Jumping:
		return "jumping"
	case Falling:
		return "falling"
	case Landing:
		return "landing"
	}
	switch gait {
	case Walking:
		return "walking"
	case Running:
		return "running"
	case Turning:
		return "turning"
	default:
		return "idle"
	}
}
