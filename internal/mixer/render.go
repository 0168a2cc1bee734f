package mixer

import (
	"math"

	"github.com/vehiclesfx/extension/internal/audio"
)

// centerGain is the equal-power gain of a centered source.
const centerGain = math.Sqrt2 / 2

// Render mixes every audible channel into dst as interleaved stereo frames,
// overwriting its contents. A trailing odd sample is zeroed.
func (e *Engine) Render(dst []float32) {
	clear(dst)
	frames := len(dst) / 2

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || frames == 0 {
		return
	}

	for _, ch := range e.channels {
		if !ch.audible() || len(ch.snd.pcm) == 0 {
			continue
		}
		left, right := e.gains(ch)
		left *= ch.volume
		right *= ch.volume
		ch.mix(dst[:frames*2], float64(ch.snd.rate)/float64(e.sampleRate), float32(left), float32(right))
	}

	for i, s := range dst {
		dst[i] = saturate(s)
	}
}

// gains returns the left and right gain for ch. Caller holds e.mu.
func (e *Engine) gains(ch *channel) (left, right float64) {
	if !ch.snd.mode.Positional() {
		return centerGain, centerGain
	}

	rel := ch.position.Sub(e.listener.Position)
	dist := rel.Len()
	att := 1.0
	if dist > ch.min {
		att = ch.min / min(dist, ch.max)
	}

	pan := 0.0
	if dist > 1e-6 {
		rightAxis := e.listener.Forward.Cross(e.listener.Up).Normalize()
		pan = max(-1, min(1, rel.Normalize().Dot(rightAxis)))
	}
	angle := (pan + 1) * math.Pi / 4
	return att * math.Cos(angle), att * math.Sin(angle)
}

// mix adds the channel into dst, advancing its cursor by step source frames
// per output frame with linear interpolation. Caller holds eng.mu.
func (c *channel) mix(dst []float32, rate float64, left, right float32) {
	pcm := c.snd.pcm
	n := float64(len(pcm))
	step := c.pitch * rate
	loop := c.snd.mode.Looping()

	for i := 0; i < len(dst); i += 2 {
		idx := int(c.cursor)
		frac := float32(c.cursor - float64(idx))
		next := idx + 1
		if next >= len(pcm) {
			if loop {
				next = 0
			} else {
				next = idx
			}
		}
		s := pcm[idx] + (pcm[next]-pcm[idx])*frac
		dst[i] += s * left
		dst[i+1] += s * right

		c.cursor += step
		if c.cursor >= n {
			if !loop {
				c.done = true
				return
			}
			c.cursor = math.Mod(c.cursor, n)
		}
	}
}

// saturate soft-clips s into (-1, 1).
func saturate(s float32) float32 {
	return float32(math.Tanh(float64(s)))
}

var _ audio.Engine = (*Engine)(nil)
