package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vehiclesfx/extension/internal/cache"
	"github.com/vehiclesfx/extension/internal/config"
	"github.com/vehiclesfx/extension/internal/logging"
	"github.com/vehiclesfx/extension/internal/mixer"
	"github.com/vehiclesfx/extension/internal/sim"
)

type cliOptions struct {
	logLevel string

	scenario string
	assets   string
	tuning   string
	out      string
	play     bool
	buffer   time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:          "vehicle_sfx",
		Short:        "Procedural vehicle engine audio",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&opts.assets, "assets", "vsfx", "Folder holding one asset folder per vehicle model")

	rootCmd.AddCommand(
		simulateCommand(opts),
		probeCommand(opts),
		versionCommand(),
	)
	return rootCmd
}

// cliLogger logs to stderr; the frame logger is sampled like the plugin's.
func cliLogger(level string) *logging.Manager {
	return logging.Setup(nil, os.Stderr, config.LoggingConfig{Level: level})
}

func simulateCommand(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Render a scripted drive",
		Long: `Drive the engine audio controller through a YAML scenario and render the
result with the software mixer, either to a WAV file or to the sound card.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulate(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.scenario, "scenario", "s", "", "Scenario YAML file")
	cmd.Flags().StringVarP(&opts.tuning, "tuning", "t", "", "Tuning key=value file (defaults when empty)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write 16-bit stereo WAV to this path")
	cmd.Flags().BoolVarP(&opts.play, "play", "p", false, "Play through the default audio device")
	cmd.Flags().DurationVar(&opts.buffer, "buffer", 200*time.Millisecond, "Audio queued ahead of the device when playing")
	_ = cmd.MarkFlagRequired("scenario")
	cmd.MarkFlagsOneRequired("out", "play")
	cmd.MarkFlagsMutuallyExclusive("out", "play")

	return cmd
}

func runSimulate(cmd *cobra.Command, opts *cliOptions) error {
	logs := cliLogger(opts.logLevel)
	log := logs.Logger

	sc, err := sim.Load(opts.scenario)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}

	tuning := config.DefaultTuning()
	if opts.tuning != "" {
		if tuning, err = config.LoadTuning(opts.tuning, log); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	sink, closeSink, err := openSink(opts, sc.SampleRate)
	if err != nil {
		return err
	}

	runner := sim.NewRunner(sc, sink, sim.Options{
		AssetsDir: opts.assets,
		Tuning:    tuning,
		Log:       log,
		Frame:     logs.Frame,
	})
	st, runErr := runner.Run(ctx)
	closeErr := closeSink()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if closeErr != nil {
		return closeErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "rendered %s (%d ticks, %d frames, peak %d channels)\n",
		st.Duration.Round(time.Millisecond), st.Ticks, st.Frames, st.PeakChannels)
	if opts.out != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", opts.out)
	}
	return nil
}

// openSink opens the output selected by opts. The returned func closes it.
func openSink(opts *cliOptions, sampleRate int) (sim.Sink, func() error, error) {
	if opts.play {
		p, err := sim.NewPlayerSink(sampleRate, opts.buffer)
		if err != nil {
			return nil, nil, fmt.Errorf("open audio device: %w", err)
		}
		return p, p.Close, nil
	}

	f, err := os.Create(opts.out)
	if err != nil {
		return nil, nil, err
	}
	w := sim.NewWAVSink(f, sampleRate)
	return w, func() error {
		return errors.Join(w.Close(), f.Close())
	}, nil
}

func probeCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <model>...",
		Short: "List the sound assets found for vehicle models",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			models := make([]int, 0, len(args))
			for _, a := range args {
				m, err := strconv.Atoi(a)
				if err != nil {
					return fmt.Errorf("model %q: %w", a, err)
				}
				models = append(models, m)
			}
			return probe(cmd, opts.assets, models, cliLogger(opts.logLevel).Logger)
		},
	}
}

func probe(cmd *cobra.Command, assets string, models []int, log zerolog.Logger) error {
	mix := mixer.New(mixer.DefaultSampleRate, log)
	defer mix.Close()
	banks := cache.NewBankCache(mix, assets, log)
	defer banks.ReleaseAll()

	out := cmd.OutOrStdout()
	for _, m := range models {
		b := banks.Get(m)
		if b == nil {
			fmt.Fprintf(out, "%d: no assets\n", m)
			continue
		}
		parts := make([]string, 0, b.Len())
		for _, name := range b.Names() {
			length, err := b.Sound(name).Length()
			if err != nil {
				parts = append(parts, name)
				continue
			}
			parts = append(parts, fmt.Sprintf("%s(%s)", name, length.Round(time.Millisecond)))
		}
		fmt.Fprintf(out, "%d: %s\n", m, strings.Join(parts, " "))
	}
	return nil
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", ExtensionName, CurrentExtensionVersion, BuildDate)
		},
	}
}
