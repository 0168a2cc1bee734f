package cache

import (
	"slices"

	"github.com/vehiclesfx/extension/internal/audio"
)

// Logical asset names. The file on disk is the name plus ".wav".
const (
	AssetIdle     = "idle"
	AssetEngine   = "engine"
	AssetWind     = "wind"
	AssetShiftUp  = "shiftup"
	AssetShiftDn  = "shiftdn"
	AssetBackfire = "backfire"
)

// AssetNames lists every recognized asset in probe order.
var AssetNames = []string{AssetIdle, AssetEngine, AssetWind, AssetShiftUp, AssetShiftDn, AssetBackfire}

// Looping reports whether the named asset is a loop rather than a one-shot.
func Looping(name string) bool {
	switch name {
	case AssetIdle, AssetEngine, AssetWind:
		return true
	}
	return false
}

// Bank is the set of sounds loaded for one vehicle model. A nil *Bank is a
// valid empty bank.
type Bank struct {
	Model  int
	sounds map[string]audio.Sound
}

func newBank(model int) *Bank {
	return &Bank{Model: model, sounds: make(map[string]audio.Sound, len(AssetNames))}
}

// Sound returns the named asset or nil.
func (b *Bank) Sound(name string) audio.Sound {
	if b == nil {
		return nil
	}
	return b.sounds[name]
}

// Has reports whether the named asset was loaded.
func (b *Bank) Has(name string) bool {
	return b.Sound(name) != nil
}

// Names returns the loaded asset names, sorted.
func (b *Bank) Names() []string {
	if b == nil {
		return nil
	}
	names := make([]string, 0, len(b.sounds))
	for n := range b.sounds {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Len is the number of loaded assets.
func (b *Bank) Len() int {
	if b == nil {
		return 0
	}
	return len(b.sounds)
}
