package sfx

import (
	"time"

	"github.com/vehiclesfx/extension/internal/cache"
	"github.com/vehiclesfx/extension/internal/config"
	"github.com/vehiclesfx/extension/internal/host"
)

// update runs one tick of the per-vehicle state machine.
func (c *Controller) update(inst *Instance, f host.Frame) {
	st, err := c.tele.State(inst.Vehicle)
	if err != nil {
		c.frame.Warn().Err(err).Uint64("vehicle", uint64(inst.Vehicle)).Msg("State read failed")
		c.silence(inst)
		return
	}
	if !st.Valid() {
		if inst.loopMode != LoopNone || len(inst.channels()) > 0 {
			c.log.Debug().Uint64("vehicle", uint64(inst.Vehicle)).Int("model", st.ModelID).
				Bool("drivable", st.Drivable).Bool("wrecked", st.Wrecked).
				Bool("drowning", st.Drowning).Float64("health", st.Health).
				Msg("Vehicle not valid for audio, silencing")
		}
		c.silence(inst)
		return
	}
	inst.Model = st.ModelID
	now := f.Now

	accel := c.sampleIntent(inst, st, f)

	gear := st.Gear
	speed, gearMax := c.drivetrain(inst, gear)

	c.attachBank(inst, st.ModelID)

	prevGear := inst.lastGear
	if !inst.gearSeen {
		inst.lastGear, prevGear = gear, gear
		inst.gearSeen = true
	}
	if gear != inst.lastGear {
		c.changeGear(inst, st, gear, now)
	}

	ratio := 0.0
	if gearMax > 0.0001 {
		ratio = clamp(speed/gearMax, 0, 1)
	}
	c.backfire(inst, st, speed, ratio, now)
	inst.lastSpeed = speed

	want := LoopIdle
	if speed > idleSpeedThreshold || accel ||
		(inst.lastRelease.within(now, gearLoopGrace) && speed > gearLoopGraceSpeed) {
		want = LoopGear
	}

	if gear == 1 && prevGear == 1 && accel && !inst.drop.pending() {
		inst.drop = shiftTransient{amount: c.tuning.BaseStartDrop, start: now}
		c.frame.Debug().Int("model", inst.Model).Float64("drop", inst.drop.amount).Msg("First gear drop applied")
	}

	c.ensureLoop(inst, st, want, gear)

	if inst.loop != nil {
		c.smooth(inst, gear, ratio, accel, f.Dt, now)
	}

	c.updateWind(inst, st, speed, accel, f.Dt, now)

	c.heal(inst, st)
}

// silence stops every channel of an invalid vehicle.
func (c *Controller) silence(inst *Instance) {
	c.stopAll(inst)
	inst.loopMode = LoopNone
	inst.windCurrent = 0
	inst.windTarget = 0
	inst.windStart = stamp{}
}

func (c *Controller) stopAll(inst *Instance) {
	c.ops.Stop(inst.loop)
	c.ops.Stop(inst.wind)
	c.ops.Stop(inst.attack)
	c.ops.Stop(inst.shift)
	inst.loop, inst.wind, inst.attack, inst.shift = nil, nil, nil, nil
}

// sampleIntent derives acceleration intent and records the release edge.
func (c *Controller) sampleIntent(inst *Instance, st host.VehicleState, f host.Frame) bool {
	accel := st.GasPedal > gasPedalThreshold
	if f.HasPlayer && f.Player == inst.Vehicle && f.PadAccelerate > padAccelThreshold {
		accel = true
	}

	switch {
	case accel && !inst.accelerating:
		c.frame.Debug().Int("model", inst.Model).Msg("Accel started")
	case !accel && inst.accelerating:
		inst.lastRelease = stampAt(f.Now)
		c.frame.Debug().Int("model", inst.Model).Dur("at", f.Now).Msg("Accel released")
	}
	inst.accelerating = accel

	if accel {
		inst.engineMode = EngineAccel
	} else {
		inst.engineMode = EngineDecel
	}
	return accel
}

// drivetrain reads the speed proxy and the current gear's top speed.
// Failures fall back to a stationary reading.
func (c *Controller) drivetrain(inst *Instance, gear int) (speed, gearMax float64) {
	speed, err := c.tele.SpeedProxy(inst.Vehicle)
	if err != nil {
		c.frame.Debug().Err(err).Uint64("vehicle", uint64(inst.Vehicle)).Msg("Speed read failed")
		return 0, 1
	}
	gearMax, err = c.tele.PerGearMaxProxy(inst.Vehicle, max(1, gear))
	if err != nil {
		c.frame.Debug().Err(err).Uint64("vehicle", uint64(inst.Vehicle)).Msg("Gear max read failed")
		return 0, 1
	}
	if gearMax <= 0.0001 {
		gearMax = 1
	}
	return speed, gearMax
}

// attachBank fetches the model's bank until one exists, muting the game's
// own engine audio the first time it does.
func (c *Controller) attachBank(inst *Instance, model int) {
	if inst.bank != nil {
		return
	}
	inst.bank = c.banks.Get(model)
	if inst.bank == nil || inst.builtinMuted {
		return
	}
	inst.builtinMuted = true
	if err := c.tele.MuteBuiltinAudio(inst.Vehicle); err != nil {
		c.log.Warn().Err(err).Int("model", model).Msg("Failed to mute built-in vehicle audio")
		return
	}
	c.log.Info().Int("model", model).Uint64("vehicle", uint64(inst.Vehicle)).Msg("Built-in vehicle audio muted")
}

func (c *Controller) changeGear(inst *Instance, st host.VehicleState, gear int, now time.Duration) {
	old := inst.lastGear
	if gear > old {
		c.overlay(inst, st, cache.AssetShiftUp, &inst.cooldowns.shiftUp, cooldownShift, now)
	} else {
		c.overlay(inst, st, cache.AssetShiftDn, &inst.cooldowns.shiftDn, cooldownShift, now)
	}

	g := config.GearIndex(gear)
	drop := c.tuning.BaseShiftDrop * (1 + gearFactor(g)*c.tuning.ExtraDropPerGear)
	inst.drop = shiftTransient{amount: drop, start: now}

	start := c.tuning.StartPitchFor(gear)
	inst.pitch = start + shiftRebase*(inst.pitch-start)
	inst.lastGear = gear

	c.log.Debug().Int("model", inst.Model).Int("old", old).Int("new", gear).
		Float64("drop", drop).Float64("pitch", inst.pitch).Msg("Gear change")
}

// overlay plays a one-shot if the cooldown allows it. The cooldown restarts
// whenever the asset exists, even if the engine refused the start.
func (c *Controller) overlay(inst *Instance, st host.VehicleState, name string, last *stamp, cooldown time.Duration, now time.Duration) bool {
	if inst.bank == nil || last.within(now, cooldown) {
		return false
	}
	s := inst.bank.Sound(name)
	if s == nil {
		return false
	}
	ch := c.ops.StartOneShot(s, st.Position, st.Velocity, 1, 1)
	*last = stampAt(now)
	if ch == nil {
		return false
	}
	if name == cache.AssetShiftUp || name == cache.AssetShiftDn {
		inst.shift = ch
	} else {
		inst.attack = ch
	}
	c.frame.Debug().Str("asset", name).Int("model", inst.Model).Msg("One-shot played")
	return true
}

// ensureLoop makes the loop channel match want, starting it at the gear's
// start pitch.
func (c *Controller) ensureLoop(inst *Instance, st host.VehicleState, want LoopMode, gear int) {
	if inst.bank == nil {
		return
	}
	if inst.loopMode == want && inst.loop != nil {
		return
	}

	c.ops.Stop(inst.loop)
	inst.loop = nil

	s := inst.bank.Sound(want.asset())
	if s == nil {
		if inst.loopMode != LoopNone {
			c.log.Warn().Str("asset", want.asset()).Int("model", inst.Model).Msg("Loop asset missing")
		}
		inst.loopMode = LoopNone
		return
	}

	start := c.tuning.StartPitchFor(gear)
	inst.loop = c.ops.StartLoop(s, st.Position, st.Velocity, inst.volume, start)
	if inst.loop == nil {
		inst.loopMode = LoopNone
		c.frame.Info().Str("asset", want.asset()).Int("model", inst.Model).Msg("Loop not started")
		return
	}
	inst.pitch = start
	inst.displayPitch = start
	inst.loopMode = want
	c.log.Debug().Str("asset", want.asset()).Int("model", inst.Model).
		Int("gear", config.GearIndex(gear)).Float64("pitch", start).Msg("Loop started")
}

// smooth moves pitch and volume toward their targets and pushes them to the loop.
func (c *Controller) smooth(inst *Instance, gear int, ratio float64, accel bool, dt float64, now time.Duration) {
	t := c.tuning
	g := config.GearIndex(gear)
	start := t.StartPitchFor(gear)

	gearScale := 1 + gearFactor(g)*(t.PitchAmplifyMax-1)
	sweep := ratio * (t.TargetPitch - start) * gearScale

	accelTarget := clamp(start+sweep, start, t.MaxPitch())
	decelTarget := clamp(start+sweep*t.DecelFactor, start, accelTarget)
	decelTarget = max(decelTarget, t.MinPitch)

	baseAlpha := clamp(max(dt, 0)*t.PitchSmoothing, 0, 1)
	target, alpha := decelTarget, baseAlpha*t.DecelSpeedMult
	if accel {
		target, alpha = accelTarget, baseAlpha*t.AccelSpeedMult
	}

	inst.pitch += (target - inst.pitch) * alpha
	inst.pitch = clamp(inst.pitch, t.MinPitch, t.MaxPitch())

	inst.displayPitch = inst.pitch + inst.drop.sample(now, t.ShiftDropDur)
	c.ops.SetPitch(inst.loop, inst.displayPitch)

	desired := baseVolume + ratio*volumeRange
	inst.volume += (desired - inst.volume) * baseAlpha
	c.ops.SetVolume(inst.loop, inst.volume)
}

// heal pushes the loop transform and restarts a loop the engine dropped.
func (c *Controller) heal(inst *Instance, st host.VehicleState) {
	if inst.loop == nil {
		return
	}
	c.ops.Place(inst.loop, st.Position, st.Velocity)
	if c.ops.IsPlaying(inst.loop) {
		return
	}

	c.log.Info().Int("model", inst.Model).Stringer("mode", inst.loopMode).Msg("Loop died, restarting")
	c.ops.Stop(inst.loop)
	inst.loop = nil
	if c.ops.Muted() {
		return
	}
	if s := inst.bank.Sound(inst.loopMode.asset()); s != nil {
		inst.loop = c.ops.StartLoop(s, st.Position, st.Velocity, inst.volume, inst.pitch)
	}
}
