// Package sim drives the controller from a scripted drive and renders the
// result through the software mixer.
package sim

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vehiclesfx/extension/internal/audio"
	"github.com/vehiclesfx/extension/internal/host"
)

// PlayerID is the vehicle id the scenario drives.
const PlayerID host.VehicleID = 1

// Segment is one stretch of the drive. Speed ramps linearly from SpeedFrom to
// SpeedTo over Duration.
type Segment struct {
	Duration  time.Duration `yaml:"duration"`
	Gear      int           `yaml:"gear"`
	Throttle  float64       `yaml:"throttle"`
	SpeedFrom float64       `yaml:"speedFrom"`
	SpeedTo   float64       `yaml:"speedTo"`
	GearMax   float64       `yaml:"gearMax"`
	WheelSpin float64       `yaml:"wheelSpin"`
	Paused    bool          `yaml:"paused"`
	Menu      bool          `yaml:"menu"`
	Wrecked   bool          `yaml:"wrecked"`
	// Destroy removes the vehicle from the pool for the segment.
	Destroy bool `yaml:"destroy"`
}

// Scenario is a scripted drive of a single vehicle model.
type Scenario struct {
	Model      int       `yaml:"model"`
	TickRate   int       `yaml:"tickRate"`
	SampleRate int       `yaml:"sampleRate"`
	Segments   []Segment `yaml:"segments"`
}

// Parse decodes a YAML scenario and fills defaults.
func Parse(r io.Reader) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if sc.TickRate == 0 {
		sc.TickRate = 60
	}
	if sc.SampleRate == 0 {
		sc.SampleRate = 44100
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Validate checks the scenario can be driven.
func (sc *Scenario) Validate() error {
	var errs []error
	if sc.TickRate <= 0 || sc.TickRate > 1000 {
		errs = append(errs, fmt.Errorf("tickRate %d out of range", sc.TickRate))
	}
	if sc.SampleRate < sc.TickRate {
		errs = append(errs, fmt.Errorf("sampleRate %d below tickRate", sc.SampleRate))
	}
	if len(sc.Segments) == 0 {
		errs = append(errs, errors.New("no segments"))
	}
	for i, seg := range sc.Segments {
		if seg.Duration <= 0 {
			errs = append(errs, fmt.Errorf("segment %d: duration must be positive", i))
		}
		if seg.Throttle < 0 || seg.Throttle > 1 {
			errs = append(errs, fmt.Errorf("segment %d: throttle %v outside 0..1", i, seg.Throttle))
		}
	}
	return errors.Join(errs...)
}

// Duration is the total length of the drive.
func (sc *Scenario) Duration() time.Duration {
	var d time.Duration
	for _, seg := range sc.Segments {
		d += seg.Duration
	}
	return d
}

// Ticks is the number of controller ticks covering the drive.
func (sc *Scenario) Ticks() int {
	return int(sc.Duration() * time.Duration(sc.TickRate) / time.Second)
}

// Drive plays a scenario as the host: it is the telemetry provider for the
// scripted vehicle and builds the frame for each tick. Not safe for
// concurrent use.
type Drive struct {
	sc *Scenario

	now      time.Duration
	seg      Segment
	speed    float64
	position audio.Vec3
	muted    int
}

// NewDrive positions the drive at its start.
func NewDrive(sc *Scenario) *Drive {
	d := &Drive{sc: sc}
	d.seek(0)
	return d
}

// Frame advances the drive to tick i and returns the frame for it.
func (d *Drive) Frame(i int) host.Frame {
	dt := 1 / float64(d.sc.TickRate)
	now := time.Duration(i) * time.Second / time.Duration(d.sc.TickRate)
	d.seek(now)
	d.position.Y += d.speed * dt

	f := host.Frame{
		Now:       now,
		Dt:        dt,
		Paused:    d.seg.Paused,
		Player:    PlayerID,
		HasPlayer: !d.seg.Destroy,
		Camera: host.Camera{
			Position: d.position.Sub(audio.Vec3{Y: 6, Z: -2}),
			Forward:  audio.Vec3{Y: 1},
			Up:       audio.Vec3{Z: 1},
		},
	}
	if f.HasPlayer {
		f.PadAccelerate = d.seg.Throttle * 255
	}
	return f
}

// Menu reports whether the current segment shows a menu.
func (d *Drive) Menu() bool { return d.seg.Menu }

// seek selects the segment covering now and the interpolated speed.
func (d *Drive) seek(now time.Duration) {
	d.now = now
	start := time.Duration(0)
	for _, seg := range d.sc.Segments {
		if now < start+seg.Duration {
			t := float64(now-start) / float64(seg.Duration)
			d.seg = seg
			d.speed = seg.SpeedFrom + (seg.SpeedTo-seg.SpeedFrom)*t
			return
		}
		start += seg.Duration
	}
	last := d.sc.Segments[len(d.sc.Segments)-1]
	d.seg = last
	d.speed = last.SpeedTo
}

// Muted is how many times built-in audio was muted.
func (d *Drive) Muted() int { return d.muted }

func (d *Drive) Alive(id host.VehicleID) bool {
	return id == PlayerID && !d.seg.Destroy
}

func (d *Drive) State(id host.VehicleID) (host.VehicleState, error) {
	if !d.Alive(id) {
		return host.VehicleState{}, fmt.Errorf("vehicle %d not in pool", id)
	}
	health := 1000.0
	if d.seg.Wrecked {
		health = 0
	}
	return host.VehicleState{
		ModelID:   d.sc.Model,
		Position:  d.position,
		Velocity:  audio.Vec3{Y: d.speed},
		Gear:      d.seg.Gear,
		GasPedal:  d.seg.Throttle,
		Health:    health,
		WheelSpin: d.seg.WheelSpin,
		Drivable:  true,
		Wrecked:   d.seg.Wrecked,
	}, nil
}

func (d *Drive) SpeedProxy(id host.VehicleID) (float64, error) {
	if !d.Alive(id) {
		return 0, fmt.Errorf("vehicle %d not in pool", id)
	}
	return d.speed, nil
}

func (d *Drive) PerGearMaxProxy(id host.VehicleID, _ int) (float64, error) {
	if !d.Alive(id) {
		return 0, fmt.Errorf("vehicle %d not in pool", id)
	}
	return d.seg.GearMax, nil
}

func (d *Drive) MuteBuiltinAudio(id host.VehicleID) error {
	if !d.Alive(id) {
		return fmt.Errorf("vehicle %d not in pool", id)
	}
	d.muted++
	return nil
}

var _ host.Telemetry = (*Drive)(nil)
