package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vehiclesfx/extension/internal/audio"
	"github.com/vehiclesfx/extension/internal/cache"
	"github.com/vehiclesfx/extension/internal/channel"
	"github.com/vehiclesfx/extension/internal/config"
	"github.com/vehiclesfx/extension/internal/host"
	"github.com/vehiclesfx/extension/internal/logging"
	"github.com/vehiclesfx/extension/internal/monitor"
	intOtel "github.com/vehiclesfx/extension/internal/otel"
	"github.com/vehiclesfx/extension/internal/sfx"
)

// TestToneFile is played once at init when present in the assets folder.
const TestToneFile = "test.wav"

const statusInterval = 5 * time.Second

var errNotStarted = errors.New("plugin not initialized")

// plugin is everything the game-side hooks drive between :INIT: and
// :SHUTDOWN:.
type plugin struct {
	mu sync.Mutex

	dir     string
	logFile *os.File
	logs    *logging.Manager
	log     zerolog.Logger

	metricsFile *os.File
	provider    *intOtel.Provider

	engine  audio.Engine
	ctrl    *sfx.Controller
	monitor *monitor.Service
	tone    audio.Sound
}

// start loads settings from dir and builds the controller over engine and tele.
func (p *plugin) start(dir string, engine audio.Engine, tele host.Telemetry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl != nil {
		return errors.New("plugin already initialized")
	}
	p.dir = dir

	cfgErr := config.Load(dir)
	logCfg := config.GetLoggingConfig()

	logPath := logging.LogFilePath(dir, logCfg.File)
	var logFile io.Writer
	f, logErr := logging.OpenLogFile(logPath)
	if logErr == nil {
		p.logFile = f
		logFile = f
	}
	p.logs = logging.Setup(logFile, nil, logCfg)
	p.log = p.logs.Logger
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", ExtensionName, logErr)
	}
	if cfgErr != nil {
		p.log.Warn().Err(cfgErr).Msg("Failed to load config, using defaults")
	} else {
		p.log.Info().Str("dir", dir).Msg("Loaded config")
	}

	p.startMetrics()

	paths := config.GetPathsConfig()
	tuningPath := filepath.Join(dir, paths.TuningFile)
	tuning, err := config.LoadTuning(tuningPath, p.log)
	if err != nil {
		p.log.Warn().Err(err).EmbedObject(tuning).Msg("Using default tuning")
	}

	assets := filepath.Join(dir, paths.AssetsDir)
	banks := cache.NewBankCache(engine, assets, p.log)
	ops := channel.New(engine, p.log, p.logs.Frame)
	p.engine = engine
	p.ctrl = sfx.NewController(tuning, tele, banks, ops, p.log, sfx.WithFrameLogger(p.logs.Frame))

	p.tone = playTestTone(engine, filepath.Join(assets, TestToneFile), p.log)

	p.monitor = monitor.NewService(monitor.Dependencies{
		Source:       p.ctrl,
		Meter:        p.provider.Meter(instrumentationName),
		Log:          p.log,
		PluginFolder: dir,
	})
	if err := p.monitor.Register(); err != nil {
		p.log.Warn().Err(err).Msg("Monitor gauges unavailable")
	}
	if p.provider.Enabled() {
		if err := p.monitor.Start(statusInterval); err != nil {
			p.log.Warn().Err(err).Msg("Status monitor not started")
		}
	}

	p.log.Info().Str("version", CurrentExtensionVersion).Str("build", BuildDate).
		Str("assets", assets).Msg("Vehicle audio initialized")
	return nil
}

// startMetrics installs the metrics provider when enabled. Caller holds p.mu.
func (p *plugin) startMetrics() {
	cfg := config.GetMetricsConfig()
	disabled, _ := intOtel.New(intOtel.Config{})
	p.provider = disabled
	if !cfg.Enabled {
		return
	}

	path := logging.LogFilePath(p.dir, cfg.File)
	f, err := os.Create(path)
	if err != nil {
		p.log.Error().Err(err).Str("path", path).Msg("Failed to create metrics file")
		return
	}
	provider, err := intOtel.New(intOtel.Config{
		Enabled:     true,
		ServiceName: ExtensionName,
		Version:     CurrentExtensionVersion,
		Interval:    cfg.Interval,
		Writer:      f,
	})
	if err != nil {
		f.Close()
		p.log.Error().Err(err).Msg("Failed to initialize metrics provider")
		return
	}
	p.metricsFile = f
	p.provider = provider
	p.log.Info().Str("file", path).Dur("interval", cfg.Interval).Msg("Metrics export enabled")
}

// playTestTone plays path once as a plain 2D one-shot if it exists.
func playTestTone(engine audio.Engine, path string, log zerolog.Logger) audio.Sound {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	s, err := engine.CreateSound(path, "test", audio.Mode2D|audio.ModeLoopOff|audio.ModeCreateSample)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Test tone not loaded")
		return nil
	}
	ch, err := engine.Play(s, false)
	if err != nil {
		log.Warn().Err(err).Msg("Test tone not played")
		return s
	}
	if err := ch.SetVolume(1); err != nil {
		log.Debug().Err(err).Msg("Test tone volume not set")
	}
	log.Info().Str("path", path).Msg("Test tone played")
	return s
}

func (p *plugin) controller() (*sfx.Controller, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl == nil {
		return nil, errNotStarted
	}
	return p.ctrl, nil
}

func (p *plugin) process(f host.Frame) error {
	ctrl, err := p.controller()
	if err != nil {
		return err
	}
	ctrl.Tick(f)
	return nil
}

func (p *plugin) pauseAll() error {
	ctrl, err := p.controller()
	if err != nil {
		return err
	}
	ctrl.PauseAllSounds()
	return nil
}

// menu mutes vehicle audio while a frontend page other than 0 is shown.
func (p *plugin) menu(page int) error {
	ctrl, err := p.controller()
	if err != nil {
		return err
	}
	ctrl.SetMenuOpen(page != 0)
	return nil
}

// shutdown releases everything start acquired. It is safe to call twice.
func (p *plugin) shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl == nil {
		return nil
	}

	p.monitor.Stop()
	p.ctrl.Shutdown()
	if p.tone != nil {
		if err := p.tone.Release(); err != nil {
			p.log.Debug().Err(err).Msg("Test tone release failed")
		}
	}

	var errs []error
	if err := p.engine.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close engine: %w", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.provider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
	}
	if p.metricsFile != nil {
		p.metricsFile.Close()
	}

	err := errors.Join(errs...)
	if err != nil {
		p.log.Warn().Err(err).Msg("Shutdown incomplete")
	}
	p.log.Info().Msg("Vehicle audio shut down")

	if cerr := p.logs.Close(); cerr != nil {
		p.log.Debug().Err(cerr).Msg("Graylog writer close failed")
	}
	if p.logFile != nil {
		p.logFile.Close()
	}

	p.ctrl, p.monitor, p.engine, p.tone = nil, nil, nil, nil
	p.provider, p.metricsFile = nil, nil
	p.logs, p.logFile = nil, nil
	p.log = zerolog.Nop()
	return err
}
