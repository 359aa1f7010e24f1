package sim

import "errors"

var (
	ErrNoGround    = errors.New("sim: ground provider is required")
	ErrInvalidTick = errors.New("sim: tick interval must be positive")
)
