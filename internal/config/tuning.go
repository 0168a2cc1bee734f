package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cast"
)

// ErrTuningNotFound is returned by LoadTuning when the tuning file does not exist.
var ErrTuningNotFound = errors.New("tuning file not found")

// Gears is the number of gears with their own start pitch.
const Gears = 5

// Tuning is the immutable set of sound-shaping parameters read once at init.
type Tuning struct {
	StartPitch [Gears]float64

	TargetPitch     float64
	PitchSmoothing  float64
	PitchAmplifyMax float64
	MaxOvershoot    float64
	DecelFactor     float64
	AccelSpeedMult  float64
	DecelSpeedMult  float64
	MinPitch        float64

	BaseStartDrop    float64
	BaseShiftDrop    float64
	ExtraDropPerGear float64
	ShiftDropDur     time.Duration

	WindMaxVolume     float64
	WindSpeedScale    float64
	WindFade          time.Duration
	MaxWindRatePerSec float64
	WindStopThreshold float64
}

// DefaultTuning returns the compiled-in parameter set.
func DefaultTuning() Tuning {
	return Tuning{
		StartPitch: [Gears]float64{0.80, 0.84, 0.88, 0.92, 0.96},

		TargetPitch:     1.0,
		PitchSmoothing:  5.5,
		PitchAmplifyMax: 1.01,
		MaxOvershoot:    1.08,
		DecelFactor:     0.8,
		AccelSpeedMult:  1.2,
		DecelSpeedMult:  1.8,
		MinPitch:        0.5,

		BaseStartDrop:    -0.06,
		BaseShiftDrop:    -0.1,
		ExtraDropPerGear: 0.6,
		ShiftDropDur:     1000 * time.Millisecond,

		WindMaxVolume:     0.75,
		WindSpeedScale:    60,
		WindFade:          2500 * time.Millisecond,
		MaxWindRatePerSec: 0.25,
		WindStopThreshold: 0.1,
	}
}

// StartPitchFor returns the start pitch of gear, clamped to gears 1..5.
// Reverse and neutral use first gear.
func (t Tuning) StartPitchFor(gear int) float64 {
	return t.StartPitch[GearIndex(gear)-1]
}

// MaxPitch is the upper bound of the smoothed pitch.
func (t Tuning) MaxPitch() float64 {
	return t.TargetPitch + t.MaxOvershoot
}

// GearIndex maps a host gear number onto 1..5.
func GearIndex(gear int) int {
	if gear <= 0 {
		return 1
	}
	return min(gear, Gears)
}

type tuningKey struct {
	name string
	set  func(t *Tuning, v string) error
}

func floatKey(name string, field func(t *Tuning) *float64) tuningKey {
	return tuningKey{name: name, set: func(t *Tuning, v string) error {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return err
		}
		*field(t) = f
		return nil
	}}
}

// positiveKey is a floatKey that rejects values <= 0.
func positiveKey(name string, field func(t *Tuning) *float64) tuningKey {
	return tuningKey{name: name, set: func(t *Tuning, v string) error {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return err
		}
		if f <= 0 {
			return fmt.Errorf("value must be positive, got %v", f)
		}
		*field(t) = f
		return nil
	}}
}

func millisKey(name string, field func(t *Tuning) *time.Duration) tuningKey {
	return tuningKey{name: name, set: func(t *Tuning, v string) error {
		ms, err := cast.ToIntE(v)
		if err != nil {
			return err
		}
		if ms <= 0 {
			return fmt.Errorf("duration must be positive, got %d", ms)
		}
		*field(t) = time.Duration(ms) * time.Millisecond
		return nil
	}}
}

var tuningKeys = func() map[string]tuningKey {
	keys := []tuningKey{
		floatKey("TargetPitch", func(t *Tuning) *float64 { return &t.TargetPitch }),
		floatKey("PitchSmoothing", func(t *Tuning) *float64 { return &t.PitchSmoothing }),
		floatKey("PitchAmplifyMax", func(t *Tuning) *float64 { return &t.PitchAmplifyMax }),
		floatKey("MaxOvershoot", func(t *Tuning) *float64 { return &t.MaxOvershoot }),
		floatKey("DecelFactor", func(t *Tuning) *float64 { return &t.DecelFactor }),
		floatKey("AccelSpeedMult", func(t *Tuning) *float64 { return &t.AccelSpeedMult }),
		floatKey("DecelSpeedMult", func(t *Tuning) *float64 { return &t.DecelSpeedMult }),
		floatKey("MinPitch", func(t *Tuning) *float64 { return &t.MinPitch }),
		floatKey("BaseStartDrop", func(t *Tuning) *float64 { return &t.BaseStartDrop }),
		floatKey("BaseShiftDrop", func(t *Tuning) *float64 { return &t.BaseShiftDrop }),
		floatKey("ExtraDropPerGear", func(t *Tuning) *float64 { return &t.ExtraDropPerGear }),
		millisKey("ShiftDropDurationMs", func(t *Tuning) *time.Duration { return &t.ShiftDropDur }),
		floatKey("WindMaxVolume", func(t *Tuning) *float64 { return &t.WindMaxVolume }),
		positiveKey("WindSpeedScale", func(t *Tuning) *float64 { return &t.WindSpeedScale }),
		millisKey("WindFadeMs", func(t *Tuning) *time.Duration { return &t.WindFade }),
		floatKey("MaxWindRatePerSec", func(t *Tuning) *float64 { return &t.MaxWindRatePerSec }),
		floatKey("WindStopThreshold", func(t *Tuning) *float64 { return &t.WindStopThreshold }),
	}
	for g := 1; g <= Gears; g++ {
		idx := g - 1
		keys = append(keys, floatKey(fmt.Sprintf("StartPitchGear%d", g),
			func(t *Tuning) *float64 { return &t.StartPitch[idx] }))
	}

	m := make(map[string]tuningKey, len(keys))
	for _, k := range keys {
		m[strings.ToLower(k.name)] = k
	}
	return m
}()

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseTuning reads key=value lines from r on top of the defaults.
// Comments (; or #), [section] headers, blank and unknown lines are ignored.
// A value that does not parse is logged and the default kept.
func ParseTuning(r io.Reader, log zerolog.Logger) Tuning {
	t := DefaultTuning()

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		line := sc.Bytes()
		if lineNo == 0 {
			line = bytes.TrimPrefix(line, utf8BOM)
		}
		lineNo++

		s := strings.TrimSpace(string(line))
		if s == "" || s[0] == ';' || s[0] == '#' || s[0] == '[' {
			continue
		}
		key, value, ok := strings.Cut(s, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}

		k, known := tuningKeys[key]
		if !known {
			log.Debug().Int("line", lineNo).Str("key", key).Msg("Unknown tuning key ignored")
			continue
		}
		if err := k.set(&t, value); err != nil {
			log.Warn().Err(err).Int("line", lineNo).Str("key", k.name).Str("value", value).
				Msg("Failed parsing tuning value, keeping default")
		}
	}
	if err := sc.Err(); err != nil {
		log.Warn().Err(err).Msg("Tuning read stopped early")
	}
	return t
}

// LoadTuning reads the tuning file at path. The returned value is always
// usable: a missing file yields the defaults together with ErrTuningNotFound.
func LoadTuning(path string, log zerolog.Logger) (Tuning, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultTuning(), fmt.Errorf("%w: %s", ErrTuningNotFound, path)
		}
		return DefaultTuning(), fmt.Errorf("open tuning file: %w", err)
	}
	defer f.Close()

	t := ParseTuning(f, log)
	log.Info().EmbedObject(t).Msg("Tuning loaded")
	return t, nil
}

// MarshalZerologObject logs every resolved parameter.
func (t Tuning) MarshalZerologObject(e *zerolog.Event) {
	for i, p := range t.StartPitch {
		e.Float64(fmt.Sprintf("startPitchGear%d", i+1), p)
	}
	e.Float64("targetPitch", t.TargetPitch).
		Float64("pitchSmoothing", t.PitchSmoothing).
		Float64("pitchAmplifyMax", t.PitchAmplifyMax).
		Float64("maxOvershoot", t.MaxOvershoot).
		Float64("decelFactor", t.DecelFactor).
		Float64("accelSpeedMult", t.AccelSpeedMult).
		Float64("decelSpeedMult", t.DecelSpeedMult).
		Float64("minPitch", t.MinPitch).
		Float64("baseStartDrop", t.BaseStartDrop).
		Float64("baseShiftDrop", t.BaseShiftDrop).
		Float64("extraDropPerGear", t.ExtraDropPerGear).
		Dur("shiftDropDuration", t.ShiftDropDur).
		Float64("windMaxVolume", t.WindMaxVolume).
		Float64("windSpeedScale", t.WindSpeedScale).
		Dur("windFade", t.WindFade).
		Float64("maxWindRatePerSec", t.MaxWindRatePerSec).
		Float64("windStopThreshold", t.WindStopThreshold)
}
