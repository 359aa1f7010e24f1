// Package config holds the immutable tuning for every locomotion component.
// Values are plain structs passed by value at construction; nothing here is
// read from globals at tick time.
package config

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("invalid locomotion configuration")

// Config aggregates every section.
type Config struct {
	Controller Controller `json:"controller" yaml:"controller"`
	FootIK     FootIK     `json:"foot_ik" yaml:"foot_ik"`
	IK         IK         `json:"ik" yaml:"ik"`
	Rig        Rig        `json:"rig" yaml:"rig"`
	Balance    Balance    `json:"balance" yaml:"balance"`
	Telemetry  Telemetry  `json:"telemetry" yaml:"telemetry"`
}

// Controller tunes movement, grounding hysteresis and the mode machine.
type Controller struct {
	WalkSpeed   float64 `json:"walk_speed" yaml:"walk_speed"`
	RunSpeed    float64 `json:"run_speed" yaml:"run_speed"`
	GroundAccel float64 `json:"ground_accel" yaml:"ground_accel"`
	GroundDecel float64 `json:"ground_decel" yaml:"ground_decel"`
	AirAccel    float64 `json:"air_accel" yaml:"air_accel"`
	AirDecel    float64 `json:"air_decel" yaml:"air_decel"`
	JumpSpeed   float64 `json:"jump_speed" yaml:"jump_speed"`
	Gravity     float64 `json:"gravity" yaml:"gravity"`
	TurnSpeed   float64 `json:"turn_speed" yaml:"turn_speed"` // rad/s

	// Grounding hysteresis: leave is checked while grounded, land while airborne.
	LeaveGroundDistance float64 `json:"leave_ground_distance" yaml:"leave_ground_distance"`
	LandDistance        float64 `json:"land_distance" yaml:"land_distance"`
	GroundEnterTicks    int     `json:"ground_enter_ticks" yaml:"ground_enter_ticks"`
	GroundLeaveTicks    int     `json:"ground_leave_ticks" yaml:"ground_leave_ticks"`

	SnapDistance float64 `json:"snap_distance" yaml:"snap_distance"`
	SnapEase     float64 `json:"snap_ease" yaml:"snap_ease"`

	MaxWalkableSlope   float64 `json:"max_walkable_slope" yaml:"max_walkable_slope"`     // degrees
	MinProjectionSlope float64 `json:"min_projection_slope" yaml:"min_projection_slope"` // degrees

	LandingDuration float64 `json:"landing_duration" yaml:"landing_duration"` // seconds

	IdleSpeedThreshold float64 `json:"idle_speed_threshold" yaml:"idle_speed_threshold"`
	RunSpeedThreshold  float64 `json:"run_speed_threshold" yaml:"run_speed_threshold"`
	TurnInPlaceAngle   float64 `json:"turn_in_place_angle" yaml:"turn_in_place_angle"` // degrees, 0 disables

	WorldHalfExtent float64 `json:"world_half_extent" yaml:"world_half_extent"`

	CapsuleRadius float64 `json:"capsule_radius" yaml:"capsule_radius"`
	CapsuleHeight float64 `json:"capsule_height" yaml:"capsule_height"`
}

// FootIK tunes the gait cycle and foot planting.
type FootIK struct {
	WalkStrideLength float64 `json:"walk_stride_length" yaml:"walk_stride_length"`
	RunStrideLength  float64 `json:"run_stride_length" yaml:"run_stride_length"`
	WalkStrideHeight float64 `json:"walk_stride_height" yaml:"walk_stride_height"`
	RunStrideHeight  float64 `json:"run_stride_height" yaml:"run_stride_height"`

	HipWidth      float64 `json:"hip_width" yaml:"hip_width"`
	AnkleHeight   float64 `json:"ankle_height" yaml:"ankle_height"`
	MoveThreshold float64 `json:"move_threshold" yaml:"move_threshold"`

	// PlantAhead is the fraction of a stride ahead of the hip where a foot lands.
	PlantAhead float64 `json:"plant_ahead" yaml:"plant_ahead"`
	// EarlyStepFactor × stride is how far a planted foot may trail before it is lifted.
	EarlyStepFactor float64 `json:"early_step_factor" yaml:"early_step_factor"`
	// RetargetSpeed caps how fast a swing end target may move, in m/s.
	RetargetSpeed float64 `json:"retarget_speed" yaml:"retarget_speed"`

	PelvisDropFactor float64 `json:"pelvis_drop_factor" yaml:"pelvis_drop_factor"`
	MaxPelvisDrop    float64 `json:"max_pelvis_drop" yaml:"max_pelvis_drop"`
	PelvisSmoothing  float64 `json:"pelvis_smoothing" yaml:"pelvis_smoothing"` // 1/s
}

// IK holds leg bone lengths and blending.
type IK struct {
	UpperLength float64 `json:"upper_length" yaml:"upper_length"`
	LowerLength float64 `json:"lower_length" yaml:"lower_length"`
	FadeStart   float64 `json:"fade_start" yaml:"fade_start"`
	BlendSpeed  float64 `json:"blend_speed" yaml:"blend_speed"`
}

// Rig places the reference biped's joints relative to the character root.
type Rig struct {
	HipHeight      float64 `json:"hip_height" yaml:"hip_height"`
	TorsoHeight    float64 `json:"torso_height" yaml:"torso_height"`
	HeadHeight     float64 `json:"head_height" yaml:"head_height"`
	ShoulderHeight float64 `json:"shoulder_height" yaml:"shoulder_height"`
	ShoulderWidth  float64 `json:"shoulder_width" yaml:"shoulder_width"`
	UpperArmLength float64 `json:"upper_arm_length" yaml:"upper_arm_length"`
	ForearmLength  float64 `json:"forearm_length" yaml:"forearm_length"`
	FootForward    float64 `json:"foot_forward" yaml:"foot_forward"`
}

// Segment is one body part's share of total mass.
type Segment struct {
	Name     string  `json:"name" yaml:"name"`
	Fraction float64 `json:"fraction" yaml:"fraction"`
}

// Balance tunes the support polygon and the stability classifier.
type Balance struct {
	FootLength  float64 `json:"foot_length" yaml:"foot_length"`
	FootWidth   float64 `json:"foot_width" yaml:"foot_width"`
	ToeFraction float64 `json:"toe_fraction" yaml:"toe_fraction"` // share of foot length ahead of the ankle

	StableMargin       float64 `json:"stable_margin" yaml:"stable_margin"`
	UnstableMargin     float64 `json:"unstable_margin" yaml:"unstable_margin"`
	PointSupportRadius float64 `json:"point_support_radius" yaml:"point_support_radius"`
	NoSupportMargin    float64 `json:"no_support_margin" yaml:"no_support_margin"`
	VelocitySmoothing  float64 `json:"velocity_smoothing" yaml:"velocity_smoothing"`

	Segments []Segment `json:"segments" yaml:"segments"`
}

// Telemetry configures the host binary and its read-only sinks.
type Telemetry struct {
	HTTPAddr     string  `json:"http_addr" yaml:"http_addr" env:"LOCOMOTION_HTTP_ADDR"`
	QUICAddr     string  `json:"quic_addr" yaml:"quic_addr" env:"LOCOMOTION_QUIC_ADDR"` // empty disables QUIC
	TickRate     int     `json:"tick_rate" yaml:"tick_rate" env:"LOCOMOTION_TICK_RATE"`
	MaxDeltaTime float64 `json:"max_delta_time" yaml:"max_delta_time" env:"LOCOMOTION_MAX_DT"`
	LogLevel     string  `json:"log_level" yaml:"log_level" env:"LOCOMOTION_LOG_LEVEL"`
}

// Default returns the tuned defaults.
func Default() Config {
	return Config{
		Controller: DefaultController(),
		FootIK:     DefaultFootIK(),
		IK:         DefaultIK(),
		Rig:        DefaultRig(),
		Balance:    DefaultBalance(),
		Telemetry:  DefaultTelemetry(),
	}
}

func DefaultController() Controller {
	return Controller{
		WalkSpeed:           2.0,
		RunSpeed:            5.0,
		GroundAccel:         20,
		GroundDecel:         25,
		AirAccel:            5,
		AirDecel:            2,
		JumpSpeed:           5.5,
		Gravity:             20,
		TurnSpeed:           10,
		LeaveGroundDistance: 0.25,
		LandDistance:        0.05,
		GroundEnterTicks:    2,
		GroundLeaveTicks:    3,
		SnapDistance:        0.3,
		SnapEase:            0.2,
		MaxWalkableSlope:    50,
		MinProjectionSlope:  1,
		LandingDuration:     0.15,
		IdleSpeedThreshold:  0.1,
		RunSpeedThreshold:   3.5,
		TurnInPlaceAngle:    60,
		WorldHalfExtent:     500,
		CapsuleRadius:       0.3,
		CapsuleHeight:       1.8,
	}
}

func DefaultFootIK() FootIK {
	return FootIK{
		WalkStrideLength: 0.8,
		RunStrideLength:  1.4,
		WalkStrideHeight: 0.12,
		RunStrideHeight:  0.2,
		HipWidth:         0.2,
		AnkleHeight:      0.08,
		MoveThreshold:    0.1,
		PlantAhead:       0.15,
		EarlyStepFactor:  0.8,
		RetargetSpeed:    2.5,
		PelvisDropFactor: 0.5,
		MaxPelvisDrop:    0.2,
		PelvisSmoothing:  8,
	}
}

func DefaultIK() IK {
	return IK{
		UpperLength: 0.45,
		LowerLength: 0.45,
		FadeStart:   0.95,
		BlendSpeed:  0.35,
	}
}

func DefaultRig() Rig {
	return Rig{
		HipHeight:      0.88,
		TorsoHeight:    1.2,
		HeadHeight:     1.62,
		ShoulderHeight: 1.42,
		ShoulderWidth:  0.36,
		UpperArmLength: 0.3,
		ForearmLength:  0.26,
		FootForward:    0.06,
	}
}

// Segment names shared by the rig and the center-of-mass table.
const (
	SegHead      = "head"
	SegTorso     = "torso"
	SegUpperArmL = "upperArm_L"
	SegUpperArmR = "upperArm_R"
	SegForearmL  = "forearm_L"
	SegForearmR  = "forearm_R"
	SegHandL     = "hand_L"
	SegHandR     = "hand_R"
	SegThighL    = "thigh_L"
	SegThighR    = "thigh_R"
	SegShinL     = "shin_L"
	SegShinR     = "shin_R"
	SegFootL     = "foot_L"
	SegFootR     = "foot_R"
)

// DefaultSegments is the conventional fourteen-segment mass table.
func DefaultSegments() []Segment {
	return []Segment{
		{SegHead, 0.081},
		{SegTorso, 0.497},
		{SegUpperArmL, 0.028}, {SegUpperArmR, 0.028},
		{SegForearmL, 0.016}, {SegForearmR, 0.016},
		{SegHandL, 0.006}, {SegHandR, 0.006},
		{SegThighL, 0.100}, {SegThighR, 0.100},
		{SegShinL, 0.0465}, {SegShinR, 0.0465},
		{SegFootL, 0.0145}, {SegFootR, 0.0145},
	}
}

func DefaultBalance() Balance {
	return Balance{
		FootLength:         0.26,
		FootWidth:          0.1,
		ToeFraction:        0.75,
		StableMargin:       0.05,
		UnstableMargin:     0.0,
		PointSupportRadius: 0.05,
		NoSupportMargin:    -1.0,
		VelocitySmoothing:  0.3,
		Segments:           DefaultSegments(),
	}
}

func DefaultTelemetry() Telemetry {
	return Telemetry{
		HTTPAddr:     "127.0.0.1:8080",
		TickRate:     60,
		MaxDeltaTime: 0.1,
		LogLevel:     "info",
	}
}

// Validate checks every section and joins all problems into one error.
func (c Config) Validate() error {
	err := errors.Join(
		c.Controller.Validate(),
		c.FootIK.Validate(),
		c.IK.Validate(),
		c.Balance.Validate(),
		c.Telemetry.Validate(),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c Controller) Validate() error {
	var errs []error
	positive(&errs, "controller.walk_speed", c.WalkSpeed)
	positive(&errs, "controller.run_speed", c.RunSpeed)
	positive(&errs, "controller.ground_accel", c.GroundAccel)
	positive(&errs, "controller.ground_decel", c.GroundDecel)
	positive(&errs, "controller.turn_speed", c.TurnSpeed)
	nonNegative(&errs, "controller.gravity", c.Gravity)
	nonNegative(&errs, "controller.air_accel", c.AirAccel)
	nonNegative(&errs, "controller.air_decel", c.AirDecel)
	nonNegative(&errs, "controller.land_distance", c.LandDistance)
	if c.LeaveGroundDistance < c.LandDistance {
		errs = append(errs, fmt.Errorf("controller.leave_ground_distance (%v) must be >= land_distance (%v)", c.LeaveGroundDistance, c.LandDistance))
	}
	if c.GroundEnterTicks < 1 || c.GroundLeaveTicks < 1 {
		errs = append(errs, errors.New("controller.ground_enter_ticks and ground_leave_ticks must be >= 1"))
	}
	if c.SnapEase <= 0 || c.SnapEase > 1 {
		errs = append(errs, fmt.Errorf("controller.snap_ease must be in (0,1], got %v", c.SnapEase))
	}
	if c.RunSpeedThreshold <= c.IdleSpeedThreshold {
		errs = append(errs, errors.New("controller.run_speed_threshold must exceed idle_speed_threshold"))
	}
	positive(&errs, "controller.world_half_extent", c.WorldHalfExtent)
	return errors.Join(errs...)
}

func (f FootIK) Validate() error {
	var errs []error
	positive(&errs, "foot_ik.walk_stride_length", f.WalkStrideLength)
	positive(&errs, "foot_ik.run_stride_length", f.RunStrideLength)
	nonNegative(&errs, "foot_ik.walk_stride_height", f.WalkStrideHeight)
	nonNegative(&errs, "foot_ik.run_stride_height", f.RunStrideHeight)
	nonNegative(&errs, "foot_ik.move_threshold", f.MoveThreshold)
	positive(&errs, "foot_ik.early_step_factor", f.EarlyStepFactor)
	positive(&errs, "foot_ik.retarget_speed", f.RetargetSpeed)
	nonNegative(&errs, "foot_ik.max_pelvis_drop", f.MaxPelvisDrop)
	return errors.Join(errs...)
}

func (k IK) Validate() error {
	var errs []error
	positive(&errs, "ik.upper_length", k.UpperLength)
	positive(&errs, "ik.lower_length", k.LowerLength)
	if k.FadeStart <= 0 || k.FadeStart > 1 {
		errs = append(errs, fmt.Errorf("ik.fade_start must be in (0,1], got %v", k.FadeStart))
	}
	return errors.Join(errs...)
}

func (b Balance) Validate() error {
	var errs []error
	positive(&errs, "balance.foot_length", b.FootLength)
	positive(&errs, "balance.foot_width", b.FootWidth)
	if b.ToeFraction < 0 || b.ToeFraction > 1 {
		errs = append(errs, fmt.Errorf("balance.toe_fraction must be in [0,1], got %v", b.ToeFraction))
	}
	if b.StableMargin < b.UnstableMargin {
		errs = append(errs, errors.New("balance.stable_margin must be >= unstable_margin"))
	}
	if b.VelocitySmoothing <= 0 || b.VelocitySmoothing > 1 {
		errs = append(errs, fmt.Errorf("balance.velocity_smoothing must be in (0,1], got %v", b.VelocitySmoothing))
	}
	if len(b.Segments) == 0 {
		errs = append(errs, errors.New("balance.segments must not be empty"))
	}
	for _, s := range b.Segments {
		if s.Name == "" || s.Fraction < 0 {
			errs = append(errs, fmt.Errorf("balance.segments: invalid segment %q (%v)", s.Name, s.Fraction))
		}
	}
	return errors.Join(errs...)
}

func (t Telemetry) Validate() error {
	var errs []error
	if t.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("telemetry.tick_rate must be > 0, got %d", t.TickRate))
	}
	positive(&errs, "telemetry.max_delta_time", t.MaxDeltaTime)
	return errors.Join(errs...)
}

func positive(errs *[]error, name string, v float64) {
	if !(v > 0) {
		*errs = append(*errs, fmt.Errorf("%s must be > 0, got %v", name, v))
	}
}

func nonNegative(errs *[]error, name string, v float64) {
	if !(v >= 0) {
		*errs = append(*errs, fmt.Errorf("%s must be >= 0, got %v", name, v))
	}
}
