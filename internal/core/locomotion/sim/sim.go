// Package sim is the host loop. It owns one instance of every locomotion
// component and threads their outputs through each other in a fixed order
// once per tick: controller, foot targets, leg IK, rig, support polygon,
// center of mass, then telemetry.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/zeusync/locomotion/internal/core/events/bus"
	"github.com/zeusync/locomotion/internal/core/locomotion"
	"github.com/zeusync/locomotion/internal/core/locomotion/balance"
	"github.com/zeusync/locomotion/internal/core/locomotion/config"
	"github.com/zeusync/locomotion/internal/core/locomotion/controller"
	"github.com/zeusync/locomotion/internal/core/locomotion/footik"
	"github.com/zeusync/locomotion/internal/core/locomotion/ik"
	"github.com/zeusync/locomotion/internal/core/locomotion/rig"
	"github.com/zeusync/locomotion/internal/core/observability/log"
	"github.com/zeusync/locomotion/internal/core/systems/physics"
)

// Sink receives encoded telemetry frames. Broadcast must not block the tick.
type Sink interface {
	Broadcast(frame []byte)
}

type Simulation struct {
	id     uuid.UUID
	cfg    config.Config
	logger log.Log
	bus    bus.EventBus
	sinks  []Sink

	heightFn physics.HeightFunc
	normalFn physics.NormalFunc

	controller *controller.Controller
	footIK     *footik.System
	rig        *rig.Biped
	support    *balance.SupportPolygonCalculator
	com        *balance.CenterOfMassSystem
	encoder    Encoder

	tick    uint64
	elapsed float64

	mu   sync.RWMutex
	last Snapshot
}

type Option func(*options)

type options struct {
	id     uuid.UUID
	logger log.Log
	bus    bus.EventBus
	sinks  []Sink
	spawn  mgl64.Vec3
	facing float64
}

func WithID(id uuid.UUID) Option       { return func(o *options) { o.id = id } }
func WithLogger(l log.Log) Option      { return func(o *options) { o.logger = l } }
func WithBus(b bus.EventBus) Option    { return func(o *options) { o.bus = b } }
func WithSinks(sinks ...Sink) Option   { return func(o *options) { o.sinks = append(o.sinks, sinks...) } }
func WithFacing(facing float64) Option { return func(o *options) { o.facing = facing } }

func WithSpawn(p mgl64.Vec3) Option { return func(o *options) { o.spawn = p } }

// New wires a simulation for one character on ground.
func New(cfg config.Config, ground physics.GroundProvider, opts ...Option) (*Simulation, error) {
	if ground == nil {
		return nil, ErrNoGround
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{id: uuid.New(), logger: log.Provide()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.bus == nil {
		o.bus = bus.New()
	}
	if err := o.bus.CreateTopic(Topic); err != nil {
		return nil, fmt.Errorf("create topic: %w", err)
	}

	logger := o.logger.With(log.Stringer("character", o.id))
	solver := ik.NewSolver(cfg.IK.UpperLength, cfg.IK.LowerLength)
	height, normal := physics.Samplers(ground, o.spawn[1])

	s := &Simulation{
		id:       o.id,
		cfg:      cfg,
		logger:   logger,
		bus:      o.bus,
		sinks:    o.sinks,
		heightFn: height,
		normalFn: normal,
		controller: controller.New(cfg.Controller, ground,
			controller.WithLogger(logger),
			controller.WithPosition(o.spawn),
			controller.WithFacing(o.facing)),
		footIK:  footik.New(cfg.FootIK, solver, footik.WithLogger(logger)),
		rig:     rig.New(cfg.Rig, solver, cfg.FootIK.HipWidth),
		support: balance.NewSupportPolygonCalculator(cfg.Balance),
		com:     balance.NewCenterOfMassSystem(cfg.Balance),
	}
	s.rig.SetRoot(o.spawn, s.controller.State().Facing)
	s.last = Snapshot{ID: s.id, View: View{Character: s.controller.State()}}
	return s, nil
}

func (s *Simulation) ID() uuid.UUID { return s.id }

// AddSink attaches a telemetry sink. Call it before Run.
func (s *Simulation) AddSink(sink Sink) { s.sinks = append(s.sinks, sink) }

func (s *Simulation) Bus() bus.EventBus { return s.bus }

// Latest is the most recent snapshot. It is safe to call from any goroutine.
func (s *Simulation) Latest() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Step advances every component by dt.
func (s *Simulation) Step(in controller.Input, dt float64) (Snapshot, error) {
	prev := s.Latest().View

	cs, err := s.controller.Update(in, dt)
	if err != nil {
		return s.Latest(), fmt.Errorf("controller update: %w", err)
	}

	var intent *mgl64.Vec3
	if cs.DesiredVelocity != (mgl64.Vec3{}) {
		d := cs.DesiredVelocity
		intent = &d
	}
	targets := s.footIK.ComputeFootTargets(cs.Position, cs.Facing, cs.Velocity, cs.Gait, dt, s.heightFn, s.normalFn, intent)

	s.rig.SetRoot(cs.Position, cs.Facing)
	s.rig.ApplyPelvisOffset(s.footIK.ComputePelvisOffset())

	weight := s.footIK.IKBlendWeight(cs.Mode)
	for _, side := range locomotion.Sides {
		r := s.footIK.SolveLegIK(s.rig.Hip(side), targets[side], cs.Facing)
		s.rig.ApplyLegIK(side, r, weight*r.Weight(s.cfg.IK.FadeStart), s.cfg.IK.BlendSpeed)
	}

	feet := s.footIK.Feet()
	var contacts [2]balance.FootContact
	for _, side := range locomotion.Sides {
		contacts[side] = balance.FootContact{
			Position: s.rig.FootWorldPosition(side),
			Grounded: cs.Grounded && feet[side].Phase == locomotion.Stance,
			Facing:   cs.Facing,
		}
	}
	poly := s.support.Calculate(contacts[locomotion.Left], contacts[locomotion.Right])
	com := s.com.Update(s.rig.BoneWorldPositions(), cs.GroundHeight, poly, dt)

	s.tick++
	s.elapsed += dt
	snap := Snapshot{
		ID:   s.id,
		Tick: s.tick,
		Time: s.elapsed,
		View: View{
			Character:    cs,
			Display:      locomotion.DisplayState(cs.Mode, cs.Gait),
			CyclePhase:   s.footIK.CyclePhase(),
			PelvisOffset: s.rig.PelvisOffset(),
			Feet:         feet,
			Legs:         [2]rig.LegPose{s.rig.Leg(locomotion.Left), s.rig.Leg(locomotion.Right)},
			CoM:          com,
			Support:      poly,
		},
	}

	s.mu.Lock()
	s.last = snap
	s.mu.Unlock()

	s.publishTransitions(prev, snap)
	s.broadcast(snap)
	return snap, nil
}

func (s *Simulation) publishTransitions(prev View, snap Snapshot) {
	cur := snap.View
	var events []bus.Event
	if prev.Character.Mode != cur.Character.Mode {
		events = append(events, bus.NewEvent(EventModeChanged, s.id.String(), snap.Tick,
			ModeChange{From: prev.Character.Mode, To: cur.Character.Mode}))
	}
	if prev.Character.Gait != cur.Character.Gait {
		events = append(events, bus.NewEvent(EventGaitChanged, s.id.String(), snap.Tick,
			GaitChange{From: prev.Character.Gait, To: cur.Character.Gait}))
	}
	if prev.CoM.Level != cur.CoM.Level {
		events = append(events, bus.NewEvent(EventStabilityChanged, s.id.String(), snap.Tick,
			StabilityChange{From: prev.CoM.Level, To: cur.CoM.Level, Margin: cur.CoM.Margin}))
	}
	for _, e := range events {
		if err := s.bus.PublishToTopic(Topic, e); err != nil {
			s.logger.Warn("publish transition", log.String("type", e.Type()), log.Error(err))
		}
	}
}

func (s *Simulation) broadcast(snap Snapshot) {
	if len(s.sinks) == 0 {
		return
	}
	frame, changed, err := s.encoder.Encode(snap)
	if err != nil {
		s.logger.Warn("encode telemetry frame", log.Uint64("tick", snap.Tick), log.Error(err))
		return
	}
	if !changed {
		return
	}
	for _, sink := range s.sinks {
		sink.Broadcast(frame)
	}
}

// ClampDelta bounds a wall-clock delta to (0, max].
func ClampDelta(dt, limit float64) float64 {
	if dt <= 0 || !physics.IsFinite(dt) {
		return 0
	}
	if limit > 0 && dt > limit {
		return limit
	}
	return dt
}

// Run steps the simulation at a fixed rate until ctx is done, using the most
// recent input received on inputs. A jump press seen anywhere between two
// ticks is kept so short taps are not lost.
func (s *Simulation) Run(ctx context.Context, inputs <-chan controller.Input, tick time.Duration) error {
	if tick <= 0 {
		return ErrInvalidTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	s.logger.Info("simulation started", log.Duration("tick", tick))
	defer s.logger.Info("simulation stopped", log.Uint64("ticks", s.tick))

	var latest controller.Input
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			var in controller.Input
			latest, in = drain(inputs, latest)
			dt := ClampDelta(now.Sub(last).Seconds(), s.cfg.Telemetry.MaxDeltaTime)
			last = now
			if _, err := s.Step(in, dt); err != nil {
				return err
			}
		}
	}
}

// drain reads every pending input. It returns the latest input to carry into
// later ticks and the input for this tick, which also reports a jump if any
// drained input pressed it.
func drain(inputs <-chan controller.Input, latest controller.Input) (controller.Input, controller.Input) {
	jump := false
	for {
		select {
		case in, ok := <-inputs:
			if ok {
				jump = jump || in.Jump
				latest = in
				continue
			}
		default:
		}
		in := latest
		in.Jump = in.Jump || jump
		return latest, in
	}
}
