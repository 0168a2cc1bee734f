// Package channel wraps playback control so that no engine failure escapes a tick.
// Every operation is best-effort: failures are logged and degrade to a no-op.
package channel

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/vehiclesfx/extension/internal/audio"
)

// Attenuation distances applied to every channel so loops and one-shots fall off alike.
const (
	MinDistance = 1.0
	MaxDistance = 300.0
)

const instrumentationName = "github.com/vehiclesfx/extension/internal/channel"

var (
	kindLoop    = metric.WithAttributes(attribute.String("kind", "loop"))
	kindOneShot = metric.WithAttributes(attribute.String("kind", "oneshot"))
)

// Ops starts, stops and updates channels on an engine.
type Ops struct {
	engine audio.Engine
	log    zerolog.Logger
	// frame is sampled; used for calls made every tick.
	frame zerolog.Logger

	muted atomic.Bool

	started metric.Int64Counter
	failed  metric.Int64Counter
}

// New creates Ops over engine. frame receives per-tick failures.
func New(engine audio.Engine, log, frame zerolog.Logger) *Ops {
	o := &Ops{
		engine: engine,
		log:    log.With().Str("component", "channel").Logger(),
		frame:  frame.With().Str("component", "channel").Logger(),
	}

	m := otel.Meter(instrumentationName)
	var err error
	if o.started, err = m.Int64Counter("vsfx.channels.started",
		metric.WithDescription("Channels started")); err != nil {
		o.log.Warn().Err(err).Msg("Metric unavailable")
	}
	if o.failed, err = m.Int64Counter("vsfx.channels.failed",
		metric.WithDescription("Channel starts that failed or were refused")); err != nil {
		o.log.Warn().Err(err).Msg("Metric unavailable")
	}
	return o
}

// SetMuted sets the global pause state. While muted no channel may start.
func (o *Ops) SetMuted(muted bool) { o.muted.Store(muted) }

// Muted reports the global pause state.
func (o *Ops) Muted() bool { return o.muted.Load() }

// StartLoop starts a looping sound at the given transform. Returns nil when
// the start is refused or fails.
func (o *Ops) StartLoop(s audio.Sound, pos, vel audio.Vec3, volume, pitch float64) audio.Channel {
	return o.start(s, pos, vel, volume, pitch, kindLoop)
}

// StartOneShot plays a sound once. Returns nil when the start is refused or fails.
func (o *Ops) StartOneShot(s audio.Sound, pos, vel audio.Vec3, pitch, volume float64) audio.Channel {
	return o.start(s, pos, vel, volume, pitch, kindOneShot)
}

func (o *Ops) start(s audio.Sound, pos, vel audio.Vec3, volume, pitch float64, kind metric.MeasurementOption) audio.Channel {
	ctx := context.Background()
	if s == nil {
		return nil
	}
	if o.Muted() {
		o.frame.Debug().Str("asset", s.Name()).Msg("Start refused while paused")
		o.count(ctx, o.failed, kind)
		return nil
	}
	if o.engine == nil {
		o.log.Error().Err(audio.ErrNoEngine).Str("asset", s.Name()).Msg("Start failed")
		o.count(ctx, o.failed, kind)
		return nil
	}

	ch, err := o.engine.Play(s, true)
	if err != nil || ch == nil {
		o.log.Error().Err(err).Str("asset", s.Name()).Msg("playSound failed")
		o.count(ctx, o.failed, kind)
		return nil
	}

	o.check(ch.Set3DAttributes(pos, vel), s, "set3DAttributes")
	o.check(ch.Set3DMinMaxDistance(MinDistance, MaxDistance), s, "set3DMinMaxDistance")
	o.check(ch.SetVolume(volume), s, "setVolume")
	o.check(ch.SetPitch(pitch), s, "setPitch")

	if err := ch.SetPaused(false); err != nil {
		o.log.Error().Err(err).Str("asset", s.Name()).Msg("Unpause failed, dropping channel")
		_ = ch.Stop()
		o.count(ctx, o.failed, kind)
		return nil
	}

	o.count(ctx, o.started, kind)
	return ch
}

func (o *Ops) count(ctx context.Context, c metric.Int64Counter, kind metric.MeasurementOption) {
	if c != nil {
		c.Add(ctx, 1, kind)
	}
}

func (o *Ops) check(err error, s audio.Sound, op string) {
	if err != nil {
		o.log.Warn().Err(err).Str("asset", s.Name()).Str("op", op).Msg("Channel setup call failed")
	}
}

// Stop stops ch. A nil channel is a no-op.
func (o *Ops) Stop(ch audio.Channel) {
	if ch == nil {
		return
	}
	if err := ch.Stop(); err != nil {
		o.frame.Debug().Err(err).Msg("Stop failed")
	}
}

// SetVolume pushes a volume onto ch.
func (o *Ops) SetVolume(ch audio.Channel, v float64) {
	if ch == nil {
		return
	}
	if err := ch.SetVolume(v); err != nil {
		o.frame.Warn().Err(err).Float64("volume", v).Msg("setVolume failed")
	}
}

// SetPitch pushes a pitch onto ch.
func (o *Ops) SetPitch(ch audio.Channel, p float64) {
	if ch == nil {
		return
	}
	if err := ch.SetPitch(p); err != nil {
		o.frame.Warn().Err(err).Float64("pitch", p).Msg("setPitch failed")
	}
}

// Place pushes position and velocity onto ch.
func (o *Ops) Place(ch audio.Channel, pos, vel audio.Vec3) {
	if ch == nil {
		return
	}
	if err := ch.Set3DAttributes(pos, vel); err != nil {
		o.frame.Warn().Err(err).Msg("set3DAttributes failed")
	}
}

// Volume reads the engine-side volume of ch. ok is false when it cannot be read.
func (o *Ops) Volume(ch audio.Channel) (v float64, ok bool) {
	if ch == nil {
		return 0, false
	}
	v, err := ch.Volume()
	if err != nil {
		o.frame.Debug().Err(err).Msg("getVolume failed")
		return 0, false
	}
	return v, true
}

// IsPlaying reports whether ch is still playing. Errors count as not playing.
func (o *Ops) IsPlaying(ch audio.Channel) bool {
	if ch == nil {
		return false
	}
	playing, err := ch.IsPlaying()
	if err != nil {
		o.frame.Debug().Err(err).Msg("isPlaying failed")
		return false
	}
	return playing
}

// SetListener places the ear. Failures are logged.
func (o *Ops) SetListener(l audio.Listener) {
	if o.engine == nil {
		return
	}
	if err := o.engine.SetListener(l); err != nil {
		o.frame.Warn().Err(err).Msg("set3DListenerAttributes failed")
	}
}

// Commit runs the engine's per-tick update.
func (o *Ops) Commit() {
	if o.engine == nil {
		return
	}
	if err := o.engine.Update(); err != nil {
		o.frame.Warn().Err(err).Msg("Engine update failed")
	}
}
