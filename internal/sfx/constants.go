package sfx

import "time"

// Input thresholds.
const (
	idleSpeedThreshold = 0.01
	padAccelThreshold  = 10
	gasPedalThreshold  = 0.05
)

// One-shot cooldowns.
const (
	cooldownShift     = 200 * time.Millisecond
	cooldownBackfire  = 600 * time.Millisecond
	cooldownWheelspin = cooldownBackfire / 2
)

// Backfire heuristic.
const (
	backfireDeltaThreshold = -3.0
	backfireRatioThreshold = 0.35
	recentReleaseWindow    = 800 * time.Millisecond
	recentReleaseRatio     = 0.20
	wheelspinThreshold     = 0.6

	chanceWheelspin = 80
	chanceHeavy     = 70
	chanceRelease   = 30
)

// Loop selection and smoothing.
const (
	gearLoopGrace      = 1500 * time.Millisecond
	gearLoopGraceSpeed = 0.5

	// shiftRebase is how much of the old pitch survives a gear change.
	shiftRebase = 0.15

	baseVolume  = 0.45
	volumeRange = 0.55

	initialPitch = 1.0
)

// Wind layer.
const (
	windDecelScale = 0.6
	windStopSpeed  = 0.5
	windSilent     = 0.0001
)

// gearFactor maps gear index 1..5 onto 0..1.
func gearFactor(gIdx int) float64 {
	return float64(gIdx-1) / 4
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
