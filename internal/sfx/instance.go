package sfx

import (
	"time"

	"github.com/vehiclesfx/extension/internal/audio"
	"github.com/vehiclesfx/extension/internal/cache"
	"github.com/vehiclesfx/extension/internal/host"
)

// LoopMode is which engine loop an instance is playing.
type LoopMode uint8

const (
	LoopNone LoopMode = iota
	LoopIdle
	LoopGear
)

func (m LoopMode) String() string {
	switch m {
	case LoopIdle:
		return "idle"
	case LoopGear:
		return "gear"
	default:
		return "none"
	}
}

// asset is the bank entry backing the loop.
func (m LoopMode) asset() string {
	switch m {
	case LoopIdle:
		return cache.AssetIdle
	case LoopGear:
		return cache.AssetEngine
	default:
		return ""
	}
}

// EngineMode is the smoothing regime chosen from acceleration intent.
type EngineMode uint8

const (
	EngineNone EngineMode = iota
	EngineAccel
	EngineDecel
)

func (m EngineMode) String() string {
	switch m {
	case EngineAccel:
		return "accel"
	case EngineDecel:
		return "decel"
	default:
		return "none"
	}
}

// stamp is an optional point on the game clock.
type stamp struct {
	at time.Duration
	ok bool
}

func stampAt(now time.Duration) stamp { return stamp{at: now, ok: true} }

// since is the time elapsed from the stamp, never negative.
func (s stamp) since(now time.Duration) time.Duration {
	return max(now-s.at, 0)
}

// within reports whether the stamp is set and less than d old.
func (s stamp) within(now, d time.Duration) bool {
	return s.ok && s.since(now) < d
}

// shiftTransient is the pitch offset applied after a gear change. It is
// pending while amount is non-zero.
type shiftTransient struct {
	amount float64
	start  time.Duration
}

func (s shiftTransient) pending() bool { return s.amount != 0 }

// sample returns the ease-out offset at now and clears the transient once
// dur has elapsed.
func (s *shiftTransient) sample(now, dur time.Duration) float64 {
	if !s.pending() {
		return 0
	}
	t := 1.0
	if dur > 0 {
		t = min(1, float64(max(now-s.start, 0))/float64(dur))
	}
	decay := (1 - t) * (1 - t)
	off := s.amount * decay
	if t >= 1 {
		*s = shiftTransient{}
	}
	return off
}

type storedVolumes struct {
	loop, wind, attack, shift float64
}

type cooldowns struct {
	shiftUp, shiftDn, backfire stamp
}

// Instance is the audio state of one tracked vehicle.
type Instance struct {
	Vehicle host.VehicleID
	Model   int

	bank         *cache.Bank
	builtinMuted bool

	loop   audio.Channel
	wind   audio.Channel
	attack audio.Channel
	shift  audio.Channel

	loopMode   LoopMode
	engineMode EngineMode

	pitch        float64
	displayPitch float64
	volume       float64

	windCurrent float64
	windTarget  float64
	windStart   stamp

	stored storedVolumes
	drop   shiftTransient

	lastGear     int
	gearSeen     bool
	accelerating bool
	lastRelease  stamp
	cooldowns    cooldowns
	lastSpeed    float64

	roller Roller
}

func newInstance(id host.VehicleID, model int, r Roller) *Instance {
	return &Instance{
		Vehicle:      id,
		Model:        model,
		pitch:        initialPitch,
		displayPitch: initialPitch,
		volume:       baseVolume,
		roller:       r,
	}
}

// channels returns every channel slot that holds a playback.
func (inst *Instance) channels() []audio.Channel {
	out := make([]audio.Channel, 0, 4)
	for _, ch := range []audio.Channel{inst.loop, inst.wind, inst.attack, inst.shift} {
		if ch != nil {
			out = append(out, ch)
		}
	}
	return out
}

// State is a read-only view of an instance.
type State struct {
	Vehicle      host.VehicleID
	Model        int
	Loop         LoopMode
	Engine       EngineMode
	Pitch        float64
	DisplayPitch float64
	Volume       float64
	WindCurrent  float64
	WindTarget   float64
	ShiftDrop    float64
	Gear         int
	HasBank      bool
	Channels     int
}

func (inst *Instance) state() State {
	return State{
		Vehicle:      inst.Vehicle,
		Model:        inst.Model,
		Loop:         inst.loopMode,
		Engine:       inst.engineMode,
		Pitch:        inst.pitch,
		DisplayPitch: inst.displayPitch,
		Volume:       inst.volume,
		WindCurrent:  inst.windCurrent,
		WindTarget:   inst.windTarget,
		ShiftDrop:    inst.drop.amount,
		Gear:         inst.lastGear,
		HasBank:      inst.bank != nil,
		Channels:     len(inst.channels()),
	}
}
