// Package audio defines the narrow audio-engine contract the controller drives.
// The host engine (or the software mixer) implements it; every call is
// synchronous and fallible.
package audio

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Mode is a bit set describing how a sound is created and played.
type Mode uint32

const (
	ModeDefault Mode = 0
	// Mode3D makes playback positional (distance attenuation and panning).
	Mode3D Mode = 1 << iota
	// Mode2D plays the sound non-attenuated regardless of position.
	Mode2D
	// ModeLoop loops the sample forever.
	ModeLoop
	// ModeLoopOff plays the sample once.
	ModeLoopOff
	// ModeCreateSample decodes the whole file into memory at load time.
	ModeCreateSample
)

// Has reports whether all bits of f are set in m.
func (m Mode) Has(f Mode) bool { return m&f == f }

// Looping reports whether m requests a looping sound.
func (m Mode) Looping() bool { return m.Has(ModeLoop) && !m.Has(ModeLoopOff) }

// Positional reports whether m requests 3D playback.
func (m Mode) Positional() bool { return m.Has(Mode3D) && !m.Has(Mode2D) }

// Vec3 is a position or velocity in world units.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) Len() float64 { return math.Sqrt(v.Dot(v)) }

// Normalize returns v scaled to unit length, or the zero vector.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < 1e-9 {
		return Vec3{}
	}
	return Vec3{v.X / l, v.Y / l, v.Z / l}
}

// Listener places the ear for 3D panning.
type Listener struct {
	Position Vec3
	Velocity Vec3
	Forward  Vec3
	Up       Vec3
}

// Sound is a loaded sample owned by whoever created it.
type Sound interface {
	// Name is the logical asset name (idle, engine, wind...).
	Name() string
	Mode() Mode
	SetMode(m Mode) error
	Length() (time.Duration, error)
	Release() error
}

// Channel is one playback of a Sound.
type Channel interface {
	SetVolume(v float64) error
	Volume() (float64, error)
	SetPitch(p float64) error
	Set3DAttributes(pos, vel Vec3) error
	Set3DMinMaxDistance(min, max float64) error
	SetPaused(paused bool) error
	IsPlaying() (bool, error)
	Stop() error
}

// Engine creates sounds and channels and commits the mix once per tick.
type Engine interface {
	CreateSound(path, name string, mode Mode) (Sound, error)
	Play(s Sound, paused bool) (Channel, error)
	SetListener(l Listener) error
	Update() error
	Close() error
}

var (
	// ErrNoEngine is returned when an operation needs an engine that is not initialized.
	ErrNoEngine = errors.New("audio engine not initialized")
	// ErrInvalidHandle is returned for calls on a released sound or finished channel.
	ErrInvalidHandle = errors.New("invalid handle")
)

// EngineError carries the failure code an engine call returned.
type EngineError struct {
	Op   string
	Code int
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s failed r=%d", e.Op, e.Code)
}

// Failed builds an *EngineError, or nil for code 0.
func Failed(op string, code int) error {
	if code == 0 {
		return nil
	}
	return &EngineError{Op: op, Code: code}
}
