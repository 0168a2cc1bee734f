package sfx

import (
	"context"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/vehiclesfx/extension/internal/cache"
	"github.com/vehiclesfx/extension/internal/host"
)

// Roller yields percentile rolls in [0, 100).
type Roller interface {
	Roll() int
}

// RollerFunc adapts a function to Roller.
type RollerFunc func() int

func (f RollerFunc) Roll() int { return f() }

type pcgRoller struct {
	r *rand.Rand
}

func (p pcgRoller) Roll() int { return p.r.IntN(100) }

// NewRoller returns the default per-instance generator, seeded from the
// vehicle and the moment it started being tracked.
func NewRoller(id host.VehicleID, now time.Duration) Roller {
	return pcgRoller{r: rand.New(rand.NewPCG(uint64(id), uint64(now)))}
}

type backfireKind uint8

const (
	backfireNone backfireKind = iota
	backfireRelease
	backfireHeavy
	backfireWheelspin
)

func (k backfireKind) String() string {
	switch k {
	case backfireWheelspin:
		return "wheelspin"
	case backfireHeavy:
		return "heavy"
	case backfireRelease:
		return "release"
	default:
		return "none"
	}
}

func (k backfireKind) chance() int {
	switch k {
	case backfireWheelspin:
		return chanceWheelspin
	case backfireHeavy:
		return chanceHeavy
	case backfireRelease:
		return chanceRelease
	default:
		return 0
	}
}

func (k backfireKind) cooldown() time.Duration {
	if k == backfireWheelspin {
		return cooldownWheelspin
	}
	return cooldownBackfire
}

// classifyBackfire picks the single backfire trigger for the frame by
// priority wheelspin > heavy drop > recent release.
func classifyBackfire(wheelSpin, delta, ratio float64, lastRelease stamp, now time.Duration) backfireKind {
	switch {
	case wheelSpin > wheelspinThreshold:
		return backfireWheelspin
	case delta < backfireDeltaThreshold && ratio > backfireRatioThreshold:
		return backfireHeavy
	case lastRelease.within(now, recentReleaseWindow) && ratio > recentReleaseRatio:
		return backfireRelease
	default:
		return backfireNone
	}
}

// backfire rolls for a backfire one-shot when the frame qualifies.
func (c *Controller) backfire(inst *Instance, st host.VehicleState, speed, ratio float64, now time.Duration) {
	delta := speed - inst.lastSpeed
	kind := classifyBackfire(st.WheelSpin, delta, ratio, inst.lastRelease, now)
	if kind == backfireNone || inst.bank == nil {
		return
	}
	if !inst.bank.Has(cache.AssetBackfire) {
		c.frame.Debug().Uint64("vehicle", uint64(inst.Vehicle)).Int("model", inst.Model).
			Str("folder", c.banks.Root()).Msg("Backfire asset missing")
		return
	}

	roll := inst.roller.Roll()
	chance := kind.chance()
	c.frame.Debug().
		Int("model", inst.Model).
		Float64("prev", inst.lastSpeed).
		Float64("cur", speed).
		Float64("delta", delta).
		Float64("ratio", ratio).
		Float64("wheelspin", st.WheelSpin).
		Stringer("kind", kind).
		Int("roll", roll).
		Int("chance", chance).
		Msg("Backfire check")

	if roll >= chance {
		return
	}
	if c.overlay(inst, st, cache.AssetBackfire, &inst.cooldowns.backfire, kind.cooldown(), now) {
		c.backfires.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind.String())))
	}
}
