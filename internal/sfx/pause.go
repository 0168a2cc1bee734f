package sfx

import (
	"time"

	"github.com/vehiclesfx/extension/internal/audio"
)

// muteReasons are the independent sources that silence all vehicle audio.
type muteReasons struct {
	userPaused bool
	menuOpen   bool
	pauseAll   bool
}

func (r muteReasons) any() bool {
	return r.userPaused || r.menuOpen || r.pauseAll
}

// applyMute acts on a change of the aggregate mute state. Caller holds c.mu.
func (c *Controller) applyMute(now time.Duration) {
	muted := c.reasons.any()
	if muted == c.muted {
		return
	}
	if muted {
		c.log.Info().Bool("paused", c.reasons.userPaused).Bool("menu", c.reasons.menuOpen).
			Bool("pauseAll", c.reasons.pauseAll).Msg("Muting vehicle audio")
		c.ops.SetMuted(true)
		c.setPausedVolumes(true, now)
	} else {
		c.log.Info().Msg("Restoring vehicle audio")
		c.ops.SetMuted(false)
		c.setPausedVolumes(false, now)
	}
	c.muted = muted
}

// setPausedVolumes mutes every channel of every instance, remembering its
// volume, or restores it. Channels are never stopped here. On resume the
// wind layer is not restored directly: it restarts its fade-in from zero
// toward the stored level.
func (c *Controller) setPausedVolumes(paused bool, now time.Duration) {
	c.table.each(func(_ Handle, inst *Instance) {
		if paused {
			inst.stored.loop = c.muteChannel(inst.loop, inst.volume)
			inst.stored.wind = c.muteChannel(inst.wind, inst.windCurrent)
			inst.stored.attack = c.muteChannel(inst.attack, 1)
			inst.stored.shift = c.muteChannel(inst.shift, 1)
			return
		}

		if inst.loop != nil {
			c.ops.SetVolume(inst.loop, positiveOr(inst.stored.loop, inst.volume))
		}
		if inst.wind != nil {
			inst.windTarget = positiveOr(inst.stored.wind, inst.windCurrent)
			inst.windCurrent = 0
			inst.windStart = stampAt(now)
			c.ops.SetVolume(inst.wind, 0)
		}
		if inst.attack != nil {
			c.ops.SetVolume(inst.attack, positiveOr(inst.stored.attack, 1))
		}
		if inst.shift != nil {
			c.ops.SetVolume(inst.shift, positiveOr(inst.stored.shift, 1))
		}
	})
}

// muteChannel zeroes ch and returns the volume it had, or fallback when the
// engine cannot report it. A nil channel keeps nothing.
func (c *Controller) muteChannel(ch audio.Channel, fallback float64) float64 {
	if ch == nil {
		return 0
	}
	v, ok := c.ops.Volume(ch)
	if !ok {
		v = fallback
	}
	c.ops.SetVolume(ch, 0)
	return v
}

func positiveOr(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}
