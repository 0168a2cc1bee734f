// Package sfx is the per-vehicle engine sound controller: instance tracking,
// the per-tick updater, the backfire heuristic and global pause handling.
package sfx

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/vehiclesfx/extension/internal/audio"
	"github.com/vehiclesfx/extension/internal/cache"
	"github.com/vehiclesfx/extension/internal/channel"
	"github.com/vehiclesfx/extension/internal/config"
	"github.com/vehiclesfx/extension/internal/host"
)

const instrumentationName = "github.com/vehiclesfx/extension/internal/sfx"

// Option configures a Controller.
type Option func(*Controller)

// WithRollers replaces the backfire generator used for new instances.
func WithRollers(f func(id host.VehicleID, now time.Duration) Roller) Option {
	return func(c *Controller) {
		c.newRoller = f
	}
}

// WithFrameLogger sets the sampled logger used for per-tick diagnostics.
func WithFrameLogger(l zerolog.Logger) Option {
	return func(c *Controller) {
		c.frame = l
	}
}

// Controller tracks vehicles and drives their audio once per tick. All
// methods are safe to call from different host call sites.
type Controller struct {
	mu sync.Mutex

	tuning config.Tuning
	tele   host.Telemetry
	banks  *cache.BankCache
	ops    *channel.Ops

	log   zerolog.Logger
	frame zerolog.Logger

	table     *table
	newRoller func(id host.VehicleID, now time.Duration) Roller

	reasons muteReasons
	muted   bool
	lastNow time.Duration

	backfires metric.Int64Counter
}

// NewController wires the controller. Tuning is copied and never changes afterwards.
func NewController(t config.Tuning, tele host.Telemetry, banks *cache.BankCache, ops *channel.Ops, log zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		tuning:    t,
		tele:      tele,
		banks:     banks,
		ops:       ops,
		log:       log.With().Str("component", "sfx").Logger(),
		frame:     log,
		table:     newTable(),
		newRoller: NewRoller,
	}
	for _, opt := range opts {
		opt(c)
	}

	var err error
	c.backfires, err = otel.Meter(instrumentationName).Int64Counter("vsfx.backfires",
		metric.WithDescription("Backfire one-shots played"))
	if err != nil {
		c.log.Warn().Err(err).Msg("Metric unavailable")
		c.backfires = noop.Int64Counter{}
	}
	return c
}

// Tick runs one simulation tick: pause transitions, listener placement,
// pruning of vanished vehicles, tracking of the player's vehicle, instance
// updates and the engine commit. While muted, instances are pruned but not
// updated.
func (c *Controller) Tick(f host.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastNow = f.Now
	c.reasons.userPaused = f.Paused
	if !f.Paused {
		c.reasons.pauseAll = false
	}
	c.applyMute(f.Now)

	c.ops.SetListener(audio.Listener{
		Position: f.Camera.Position,
		Forward:  f.Camera.Forward,
		Up:       f.Camera.Up,
	})

	c.prune()

	if f.HasPlayer && c.tele.Alive(f.Player) {
		c.track(f.Player, f.Now)
	}

	if !c.muted {
		c.table.each(func(_ Handle, inst *Instance) {
			c.update(inst, f)
		})
	}

	c.ops.Commit()
}

// prune stops and forgets instances whose vehicle left the pool. Caller holds c.mu.
func (c *Controller) prune() {
	var gone []Handle
	c.table.each(func(h Handle, inst *Instance) {
		if c.tele.Alive(inst.Vehicle) {
			return
		}
		c.log.Info().Uint64("vehicle", uint64(inst.Vehicle)).Int("model", inst.Model).
			Msg("Vehicle gone, stopping channels")
		c.stopAll(inst)
		gone = append(gone, h)
	})
	for _, h := range gone {
		c.table.remove(h)
	}
}

// track makes sure id has an instance. Caller holds c.mu.
func (c *Controller) track(id host.VehicleID, now time.Duration) *Instance {
	if inst, _, ok := c.table.lookup(id); ok {
		return inst
	}
	model := 0
	if st, err := c.tele.State(id); err == nil {
		model = st.ModelID
	}
	inst := newInstance(id, model, c.newRoller(id, now))
	c.table.insert(inst)
	c.log.Info().Uint64("vehicle", uint64(id)).Int("model", model).Msg("Created audio instance")
	return inst
}

// Track starts tracking a vehicle that is not the player's.
func (c *Controller) Track(id host.VehicleID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tele.Alive(id) {
		c.track(id, c.lastNow)
	}
}

// SetMenuOpen mutes while a menu page is shown and restores when it closes.
func (c *Controller) SetMenuOpen(open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reasons.menuOpen = open
	c.applyMute(c.lastNow)
}

// PauseAllSounds mutes until the next tick that is not paused.
func (c *Controller) PauseAllSounds() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reasons.pauseAll = true
	c.applyMute(c.lastNow)
}

// Muted reports whether vehicle audio is currently muted.
func (c *Controller) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// Shutdown stops every channel, forgets every instance and releases all
// loaded sounds.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.table.each(func(_ Handle, inst *Instance) {
		c.stopAll(inst)
	})
	n := c.table.len()
	c.table.clear()
	c.banks.ReleaseAll()
	c.log.Info().Int("instances", n).Msg("Controller shut down")
}

// Inspect returns the state of the instance tracking id.
func (c *Controller) Inspect(id host.VehicleID) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inst, _, ok := c.table.lookup(id)
	if !ok {
		return State{}, false
	}
	return inst.state(), true
}

// Snapshot summarizes the controller for monitoring.
type Snapshot struct {
	Instances    int  `json:"instances"`
	LiveChannels int  `json:"liveChannels"`
	Banks        int  `json:"banks"`
	Muted        bool `json:"muted"`
}

// Snapshot returns current counts.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{Instances: c.table.len(), Muted: c.muted}
	c.table.each(func(_ Handle, inst *Instance) {
		s.LiveChannels += len(inst.channels())
	})
	s.Banks = c.banks.Loaded()
	return s
}
