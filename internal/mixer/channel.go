package mixer

import (
	"github.com/vehiclesfx/extension/internal/audio"
)

// channel is one playback of a sound. Fields are guarded by eng.mu.
type channel struct {
	eng *Engine
	snd *sound

	// cursor is the read position in source frames.
	cursor float64
	volume float64
	pitch  float64
	paused bool

	position audio.Vec3
	velocity audio.Vec3
	min, max float64

	stopped bool
	// done is set when a one-shot reaches its end.
	done bool
}

// audible reports whether Render mixes the channel. Caller holds eng.mu.
func (c *channel) audible() bool {
	return !c.stopped && !c.done && !c.paused && !c.snd.released
}

// with runs fn under the engine lock unless the channel is gone.
func (c *channel) with(fn func()) error {
	c.eng.mu.Lock()
	defer c.eng.mu.Unlock()
	if c.stopped || c.done || c.snd.released {
		return audio.ErrInvalidHandle
	}
	fn()
	return nil
}

func (c *channel) SetVolume(v float64) error {
	return c.with(func() { c.volume = max(v, 0) })
}

func (c *channel) Volume() (float64, error) {
	var v float64
	err := c.with(func() { v = c.volume })
	return v, err
}

func (c *channel) SetPitch(p float64) error {
	return c.with(func() { c.pitch = max(p, 0) })
}

func (c *channel) Set3DAttributes(pos, vel audio.Vec3) error {
	return c.with(func() { c.position, c.velocity = pos, vel })
}

func (c *channel) Set3DMinMaxDistance(minDist, maxDist float64) error {
	if minDist <= 0 || maxDist < minDist {
		return audio.Failed("set3DMinMaxDistance", 31)
	}
	return c.with(func() { c.min, c.max = minDist, maxDist })
}

func (c *channel) SetPaused(paused bool) error {
	return c.with(func() { c.paused = paused })
}

// IsPlaying is false once the channel was stopped or a one-shot finished.
// Paused channels count as playing.
func (c *channel) IsPlaying() (bool, error) {
	c.eng.mu.Lock()
	defer c.eng.mu.Unlock()
	if c.stopped {
		return false, audio.ErrInvalidHandle
	}
	return !c.done && !c.snd.released, nil
}

func (c *channel) Stop() error {
	c.eng.mu.Lock()
	defer c.eng.mu.Unlock()
	if c.stopped {
		return audio.ErrInvalidHandle
	}
	c.stopped = true
	return nil
}
