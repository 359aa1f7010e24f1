package sim

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/locomotion/internal/core/events/bus"
	"github.com/zeusync/locomotion/internal/core/locomotion"
	"github.com/zeusync/locomotion/internal/core/locomotion/balance"
	"github.com/zeusync/locomotion/internal/core/locomotion/config"
	"github.com/zeusync/locomotion/internal/core/locomotion/controller"
	"github.com/zeusync/locomotion/internal/core/locomotion/terrain"
	"github.com/zeusync/locomotion/internal/core/observability/log"
	"github.com/zeusync/locomotion/internal/core/systems/physics"
)

type recordingSink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (r *recordingSink) Broadcast(frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

type recorder struct {
	events []bus.Event
}

func (r *recorder) handle(e bus.Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) ofType(typ string) []bus.Event {
	var out []bus.Event
	for _, e := range r.events {
		if e.Type() == typ {
			out = append(out, e)
		}
	}
	return out
}

func newSim(t *testing.T, ground physics.GroundProvider, opts ...Option) (*Simulation, *recorder) {
	t.Helper()
	b := bus.New()
	rec := &recorder{}
	_, err := b.SubscribeTopic(Topic, bus.Wildcard, rec.handle)
	require.NoError(t, err)

	opts = append([]Option{WithLogger(log.NewNop()), WithBus(b)}, opts...)
	s, err := New(config.Default(), ground, opts...)
	require.NoError(t, err)
	return s, rec
}

func stepN(t *testing.T, s *Simulation, in controller.Input, n int, dt float64) Snapshot {
	t.Helper()
	var snap Snapshot
	var err error
	for range n {
		snap, err = s.Step(in, dt)
		require.NoError(t, err)
	}
	return snap
}

func TestStandingIsStable(t *testing.T) {
	s, rec := newSim(t, terrain.Flat{})

	snap := stepN(t, s, controller.Input{}, 120, 1.0/60)

	v := snap.View
	assert.Equal(t, uint64(120), snap.Tick)
	assert.InDelta(t, 2.0, snap.Time, 1e-9)
	assert.True(t, v.Character.Grounded)
	assert.Equal(t, "idle", v.Display)
	for _, f := range v.Feet {
		assert.Equal(t, locomotion.Stance, f.Phase)
	}
	assert.NotEmpty(t, v.Support)
	assert.Greater(t, v.Support.Area(), 0.0)
	assert.Equal(t, balance.Stable, v.CoM.Level)
	assert.Greater(t, v.CoM.Margin, 0.0)
	assert.Empty(t, rec.ofType(EventModeChanged))

	// Ankles settle onto the foot targets.
	for _, side := range locomotion.Sides {
		assert.InDelta(t, 0, v.Legs[side].Ankle.Sub(v.Feet[side].Target).Len(), 1e-3)
	}
}

func TestJumpDropsSupport(t *testing.T) {
	cfg := config.DefaultBalance()
	s, rec := newSim(t, terrain.Flat{})
	stepN(t, s, controller.Input{}, 10, 1.0/60)

	snap, err := s.Step(controller.Input{Jump: true}, 1.0/60)
	require.NoError(t, err)

	assert.Equal(t, locomotion.Jumping, snap.View.Character.Mode)
	assert.Equal(t, "jumping", snap.View.Display)
	assert.Empty(t, snap.View.Support)
	assert.Equal(t, cfg.NoSupportMargin, snap.View.CoM.Margin)
	assert.Equal(t, balance.Unstable, snap.View.CoM.Level)

	modes := rec.ofType(EventModeChanged)
	require.Len(t, modes, 1)
	assert.Equal(t, ModeChange{From: locomotion.Grounded, To: locomotion.Jumping}, modes[0].Data())
	assert.Equal(t, snap.Tick, modes[0].Tick())
	assert.Equal(t, s.ID().String(), modes[0].Source())
	require.NotEmpty(t, rec.ofType(EventStabilityChanged))

	// Ride the jump out and land.
	snap = stepN(t, s, controller.Input{}, 120, 1.0/60)
	assert.Equal(t, locomotion.Grounded, snap.View.Character.Mode)
	var seen []locomotion.MovementMode
	for _, e := range rec.ofType(EventModeChanged) {
		seen = append(seen, e.Data().(ModeChange).To)
	}
	assert.Equal(t, []locomotion.MovementMode{
		locomotion.Jumping, locomotion.Falling, locomotion.Landing, locomotion.Grounded,
	}, seen)
}

func TestWalkingAdvancesGait(t *testing.T) {
	s, rec := newSim(t, terrain.Hills(0.1, 6))
	forward := controller.Input{Move: mgl64.Vec2{0, 1}, CameraYaw: 0.3}

	snap := stepN(t, s, forward, 180, 1.0/60)

	v := snap.View
	assert.Equal(t, locomotion.Walking, v.Character.Gait)
	assert.True(t, v.Character.Grounded)
	assert.Greater(t, v.Character.Position.Sub(mgl64.Vec3{}).Len(), 3.0)
	assert.NotEqual(t, v.Feet[0].Phase, v.Feet[1].Phase, "feet alternate")

	gaits := rec.ofType(EventGaitChanged)
	require.NotEmpty(t, gaits)
	assert.Equal(t, locomotion.Walking, gaits[len(gaits)-1].Data().(GaitChange).To)
}

func TestStepPropagatesProviderErrors(t *testing.T) {
	s, _ := newSim(t, terrain.Base{})

	_, err := s.Step(controller.Input{}, 1.0/60)
	assert.ErrorIs(t, err, terrain.ErrNotImplemented)
	assert.Equal(t, uint64(0), s.Latest().Tick)
}

func TestNewValidates(t *testing.T) {
	_, err := New(config.Default(), nil)
	assert.ErrorIs(t, err, ErrNoGround)

	cfg := config.Default()
	cfg.IK.UpperLength = 0
	_, err = New(cfg, terrain.Flat{})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestSinksReceiveChangedFrames(t *testing.T) {
	sink := &recordingSink{}
	id := uuid.New()
	s, _ := newSim(t, terrain.Flat{}, WithSinks(sink), WithID(id), WithSpawn(mgl64.Vec3{1, 0, 2}))

	_, err := s.Step(controller.Input{Move: mgl64.Vec2{1, 0}}, 1.0/60)
	require.NoError(t, err)
	require.Equal(t, 1, sink.count())

	var frame map[string]any
	require.NoError(t, json.Unmarshal(sink.frames[0], &frame))
	assert.Equal(t, id.String(), frame["id"])
	assert.EqualValues(t, 1, frame["tick"])
	view := frame["view"].(map[string]any)
	character := view["character"].(map[string]any)
	assert.Equal(t, "grounded", character["mode"])
	assert.Equal(t, "Walking", character["gait"])
}

func TestEncoderSkipsUnchangedViews(t *testing.T) {
	var enc Encoder
	snap := Snapshot{ID: uuid.New(), Tick: 1, View: View{Display: "idle"}}

	frame, changed, err := enc.Encode(snap)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NotEmpty(t, frame)

	snap.Tick = 2
	frame, changed, err = enc.Encode(snap)
	require.NoError(t, err)
	assert.False(t, changed, "only the clock moved")
	assert.Nil(t, frame)

	snap.View.Display = "walking"
	_, changed, err = enc.Encode(snap)
	require.NoError(t, err)
	assert.True(t, changed)

	enc.Reset()
	_, changed, err = enc.Encode(snap)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestClampDelta(t *testing.T) {
	assert.Equal(t, 0.016, ClampDelta(0.016, 0.1))
	assert.Equal(t, 0.1, ClampDelta(2, 0.1))
	assert.Equal(t, 0.0, ClampDelta(-1, 0.1))
	assert.Equal(t, 2.0, ClampDelta(2, 0))
}

func TestDrainKeepsJumpTaps(t *testing.T) {
	inputs := make(chan controller.Input, 3)
	inputs <- controller.Input{Jump: true}
	inputs <- controller.Input{Move: mgl64.Vec2{0, 1}}

	latest, in := drain(inputs, controller.Input{})
	assert.True(t, in.Jump)
	assert.False(t, latest.Jump)
	assert.Equal(t, mgl64.Vec2{0, 1}, in.Move)

	latest, in = drain(inputs, latest)
	assert.False(t, in.Jump, "a tap fires for one tick only")
	assert.Equal(t, mgl64.Vec2{0, 1}, latest.Move)
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _ := newSim(t, terrain.Flat{})
	inputs := make(chan controller.Input, 1)
	inputs <- controller.Input{Move: mgl64.Vec2{0, 1}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, inputs, time.Millisecond) }()

	require.Eventually(t, func() bool { return s.Latest().Tick >= 5 }, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
	assert.Greater(t, physics.HorizontalLen(s.Latest().View.Character.Velocity), 0.0)
}

func TestRunRejectsBadTick(t *testing.T) {
	s, _ := newSim(t, terrain.Flat{})
	assert.ErrorIs(t, s.Run(context.Background(), nil, 0), ErrInvalidTick)
}
