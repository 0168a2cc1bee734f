package sfx

import (
	"math"
	"time"

	"github.com/vehiclesfx/extension/internal/cache"
	"github.com/vehiclesfx/extension/internal/host"
)

// updateWind drives the wind layer: a speed-scaled target reached through a
// time-based fade-in and a per-second rate cap.
func (c *Controller) updateWind(inst *Instance, st host.VehicleState, speed float64, accel bool, dt float64, now time.Duration) {
	s := inst.bank.Sound(cache.AssetWind)
	if s == nil {
		return
	}
	t := c.tuning

	boost := windDecelScale
	if accel {
		boost = 1
	}
	inst.windTarget = t.WindMaxVolume * windSpeedFactor(speed, t.WindSpeedScale) * boost

	if inst.wind == nil && inst.windTarget > windSilent {
		inst.wind = c.ops.StartLoop(s, st.Position, st.Velocity, 0, 1)
		if inst.wind != nil {
			inst.windStart = stampAt(now)
		}
	}
	if inst.wind != nil && !inst.windStart.ok && inst.windCurrent <= windSilent {
		inst.windStart = stampAt(now)
	}

	fade := 1.0
	if inst.windStart.ok && t.WindFade > 0 {
		fade = clamp(float64(inst.windStart.since(now))/float64(t.WindFade), 0, 1)
	}
	want := inst.windTarget * fade

	maxDelta := t.MaxWindRatePerSec * max(dt, 0)
	inst.windCurrent += clamp(want-inst.windCurrent, -maxDelta, maxDelta)

	c.frame.Trace().
		Int("model", inst.Model).
		Float64("speed", speed).
		Float64("target", inst.windTarget).
		Float64("fade", fade).
		Float64("want", want).
		Float64("cur", inst.windCurrent).
		Bool("accel", accel).
		Bool("channel", inst.wind != nil).
		Msg("Wind")

	if inst.wind == nil {
		return
	}
	c.ops.SetVolume(inst.wind, inst.windCurrent)
	c.ops.Place(inst.wind, st.Position, st.Velocity)

	if inst.windCurrent < t.WindStopThreshold && !accel && speed < windStopSpeed {
		c.ops.Stop(inst.wind)
		inst.wind = nil
		inst.windCurrent = 0
		inst.windTarget = 0
		inst.windStart = stamp{}
	}
}

// windSpeedFactor maps speed onto [0,1]. A non-positive scale gives no wind.
func windSpeedFactor(speed, scale float64) float64 {
	if scale <= 0 || math.IsNaN(speed) {
		return 0
	}
	return clamp(speed/scale, 0, 1)
}
