// Package host describes what the controller reads from the game each tick.
package host

import (
	"time"

	"github.com/vehiclesfx/extension/internal/audio"
)

// VehicleID identifies a vehicle for as long as the host keeps it in its pool.
// The host may recycle an id after the vehicle is destroyed; Alive is the only
// way to know whether it still refers to the same vehicle.
type VehicleID uint64

// VehicleState is a per-tick snapshot of one vehicle.
type VehicleState struct {
	ModelID   int
	Position  audio.Vec3
	Velocity  audio.Vec3
	Gear      int
	GasPedal  float64
	Health    float64
	WheelSpin float64
	Drivable  bool
	Wrecked   bool
	Drowning  bool
}

// Valid reports whether the vehicle should be producing engine audio.
func (s VehicleState) Valid() bool {
	return s.Drivable && !s.Wrecked && !s.Drowning && s.Health > 0
}

// Telemetry is the narrow read interface onto the host's vehicle pool.
type Telemetry interface {
	// Alive reports whether id still refers to a vehicle in the pool.
	Alive(id VehicleID) bool
	State(id VehicleID) (VehicleState, error)
	// SpeedProxy returns the drivetrain speed figure used for load ratio and wind.
	SpeedProxy(id VehicleID) (float64, error)
	// PerGearMaxProxy returns the top speed figure of the given gear.
	PerGearMaxProxy(id VehicleID, gear int) (float64, error)
	// MuteBuiltinAudio silences the game's own engine and road noise for id.
	MuteBuiltinAudio(id VehicleID) error
}

// Camera is the listener transform for the tick.
type Camera struct {
	Position audio.Vec3
	Forward  audio.Vec3
	Up       audio.Vec3
}

// Frame is everything global the controller needs for one tick.
type Frame struct {
	// Now is the game clock.
	Now time.Duration
	// Dt is the tick length in seconds.
	Dt     float64
	Paused bool

	Player    VehicleID
	HasPlayer bool
	// PadAccelerate is the local pad's accelerate axis (0..255).
	PadAccelerate float64

	Camera Camera
}
