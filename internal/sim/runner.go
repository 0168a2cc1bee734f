package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vehiclesfx/extension/internal/cache"
	"github.com/vehiclesfx/extension/internal/channel"
	"github.com/vehiclesfx/extension/internal/config"
	"github.com/vehiclesfx/extension/internal/mixer"
	"github.com/vehiclesfx/extension/internal/sfx"
)

// Options configures a Runner.
type Options struct {
	AssetsDir string
	Tuning    config.Tuning
	Log       zerolog.Logger
	// Frame receives per-tick diagnostics; usually a sampled logger.
	Frame zerolog.Logger
}

// Stats summarizes a finished run.
type Stats struct {
	Ticks        int
	Frames       int
	PeakChannels int
	Duration     time.Duration
}

// Runner ticks a controller through a scenario and renders each tick's audio.
type Runner struct {
	sc    *Scenario
	drive *Drive
	mix   *mixer.Engine
	ctrl  *sfx.Controller
	sink  Sink
	log   zerolog.Logger
}

// NewRunner wires a controller over the software mixer with the scenario as host.
func NewRunner(sc *Scenario, sink Sink, opts Options) *Runner {
	log := opts.Log.With().Str("component", "sim").Logger()
	mix := mixer.New(sc.SampleRate, opts.Log)
	banks := cache.NewBankCache(mix, opts.AssetsDir, opts.Log)
	ops := channel.New(mix, opts.Log, opts.Frame)
	drive := NewDrive(sc)

	return &Runner{
		sc:    sc,
		drive: drive,
		mix:   mix,
		ctrl:  sfx.NewController(opts.Tuning, drive, banks, ops, opts.Log, sfx.WithFrameLogger(opts.Frame)),
		sink:  sink,
		log:   log,
	}
}

// Controller exposes the driven controller.
func (r *Runner) Controller() *sfx.Controller { return r.ctrl }

// Drive exposes the scripted host.
func (r *Runner) Drive() *Drive { return r.drive }

// Run drives the whole scenario. The controller is shut down and the mixer
// closed when Run returns; the sink is left to the caller.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	defer r.shutdown()

	var st Stats
	ticks := r.sc.Ticks()
	buf := make([]float32, 0, 2*(r.sc.SampleRate/r.sc.TickRate+1))
	menu := false

	r.log.Info().Int("model", r.sc.Model).Int("ticks", ticks).Int("tickRate", r.sc.TickRate).
		Int("sampleRate", r.sc.SampleRate).Msg("Simulation started")

	for i := range ticks {
		if err := ctx.Err(); err != nil {
			return st, err
		}

		f := r.drive.Frame(i)
		if m := r.drive.Menu(); m != menu {
			r.ctrl.SetMenuOpen(m)
			menu = m
		}
		r.ctrl.Tick(f)

		n := r.framesAt(i+1) - r.framesAt(i)
		buf = buf[:2*n]
		r.mix.Render(buf)
		if err := r.sink.Write(ctx, buf); err != nil {
			return st, fmt.Errorf("tick %d: %w", i, err)
		}

		st.Ticks++
		st.Frames += n
		st.Duration = f.Now
		st.PeakChannels = max(st.PeakChannels, r.mix.Active())
	}

	r.log.Info().Int("ticks", st.Ticks).Int("frames", st.Frames).Int("peakChannels", st.PeakChannels).
		Msg("Simulation finished")
	return st, nil
}

// framesAt is the output frame count at the start of tick i.
func (r *Runner) framesAt(i int) int {
	return int(int64(i) * int64(r.sc.SampleRate) / int64(r.sc.TickRate))
}

func (r *Runner) shutdown() {
	r.ctrl.Shutdown()
	if err := r.mix.Close(); err != nil {
		r.log.Warn().Err(err).Msg("Mixer close failed")
	}
}
