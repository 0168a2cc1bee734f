// Package audiotest provides a recording in-memory audio.Engine for tests.
package audiotest

import (
	"sync"
	"time"

	"github.com/vehiclesfx/extension/internal/audio"
)

// Engine records every sound and channel it hands out.
type Engine struct {
	mu sync.Mutex

	Sounds   []*Sound
	Channels []*Channel
	Listener audio.Listener
	Updates  int
	Closed   bool

	// FailCreate makes CreateSound fail for the given logical names.
	FailCreate map[string]bool
	// Refuse3D makes CreateSound fail whenever Mode3D is requested.
	Refuse3D bool
	// FailPlay makes every Play call fail.
	FailPlay bool
}

func New() *Engine {
	return &Engine{FailCreate: map[string]bool{}}
}

func (e *Engine) CreateSound(path, name string, mode audio.Mode) (audio.Sound, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Closed {
		return nil, audio.ErrNoEngine
	}
	if e.FailCreate[name] {
		return nil, audio.Failed("createSound", 18)
	}
	if e.Refuse3D && mode.Has(audio.Mode3D) {
		return nil, audio.Failed("createSound", 25)
	}
	s := &Sound{Path: path, name: name, mode: mode}
	e.Sounds = append(e.Sounds, s)
	return s, nil
}

func (e *Engine) Play(s audio.Sound, paused bool) (audio.Channel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Closed {
		return nil, audio.ErrNoEngine
	}
	if e.FailPlay {
		return nil, audio.Failed("playSound", 30)
	}
	snd, ok := s.(*Sound)
	if !ok || snd.Released {
		return nil, audio.ErrInvalidHandle
	}
	c := &Channel{Sound: snd, Vol: 1, Pitch: 1, Paused: paused, playing: true}
	e.Channels = append(e.Channels, c)
	return c, nil
}

func (e *Engine) SetListener(l audio.Listener) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Listener = l
	return nil
}

func (e *Engine) Update() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Updates++
	return nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Closed = true
	return nil
}

// Live returns the channels that were not stopped, in creation order.
func (e *Engine) Live() []*Channel {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*Channel
	for _, c := range e.Channels {
		if !c.Stopped {
			out = append(out, c)
		}
	}
	return out
}

// ByName returns every channel ever started for the named sound.
func (e *Engine) ByName(name string) []*Channel {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*Channel
	for _, c := range e.Channels {
		if c.Sound.name == name {
			out = append(out, c)
		}
	}
	return out
}

// LiveByName returns the not-stopped channels for the named sound.
func (e *Engine) LiveByName(name string) []*Channel {
	var out []*Channel
	for _, c := range e.ByName(name) {
		if !c.Stopped {
			out = append(out, c)
		}
	}
	return out
}

// Sound is a fake loaded sample.
type Sound struct {
	Path     string
	Released bool

	name string
	mode audio.Mode
}

func (s *Sound) Name() string     { return s.name }
func (s *Sound) Mode() audio.Mode { return s.mode }

func (s *Sound) SetMode(m audio.Mode) error {
	if s.Released {
		return audio.ErrInvalidHandle
	}
	s.mode = m
	return nil
}

func (s *Sound) Length() (time.Duration, error) { return time.Second, nil }

func (s *Sound) Release() error {
	if s.Released {
		return audio.ErrInvalidHandle
	}
	s.Released = true
	return nil
}

// Channel is a fake playback that keeps every parameter it was given.
type Channel struct {
	Sound    *Sound
	Vol      float64
	Pitch    float64
	Position audio.Vec3
	Velocity audio.Vec3
	Min, Max float64
	Paused   bool
	Stopped  bool

	// Volumes is every value passed to SetVolume, in order.
	Volumes []float64
	// Pitches is every value passed to SetPitch, in order.
	Pitches []float64

	// FailVolumeRead makes Volume report an error.
	FailVolumeRead bool

	playing bool
}

// Interrupt simulates the engine dropping the channel on its own.
func (c *Channel) Interrupt() { c.playing = false }

func (c *Channel) SetVolume(v float64) error {
	if c.Stopped {
		return audio.ErrInvalidHandle
	}
	c.Vol = v
	c.Volumes = append(c.Volumes, v)
	return nil
}

func (c *Channel) Volume() (float64, error) {
	if c.Stopped || c.FailVolumeRead {
		return 0, audio.ErrInvalidHandle
	}
	return c.Vol, nil
}

func (c *Channel) SetPitch(p float64) error {
	if c.Stopped {
		return audio.ErrInvalidHandle
	}
	c.Pitch = p
	c.Pitches = append(c.Pitches, p)
	return nil
}

func (c *Channel) Set3DAttributes(pos, vel audio.Vec3) error {
	if c.Stopped {
		return audio.ErrInvalidHandle
	}
	c.Position, c.Velocity = pos, vel
	return nil
}

func (c *Channel) Set3DMinMaxDistance(min, max float64) error {
	if c.Stopped {
		return audio.ErrInvalidHandle
	}
	c.Min, c.Max = min, max
	return nil
}

func (c *Channel) SetPaused(paused bool) error {
	if c.Stopped {
		return audio.ErrInvalidHandle
	}
	c.Paused = paused
	return nil
}

func (c *Channel) IsPlaying() (bool, error) {
	if c.Stopped {
		return false, audio.ErrInvalidHandle
	}
	return c.playing, nil
}

func (c *Channel) Stop() error {
	if c.Stopped {
		return audio.ErrInvalidHandle
	}
	c.Stopped = true
	c.playing = false
	return nil
}
