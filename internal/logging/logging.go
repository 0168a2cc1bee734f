package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"

	"github.com/vehiclesfx/extension/internal/config"
)

// LogFilePath builds the diagnostic log path inside the plugin folder.
func LogFilePath(pluginDir, fileName string) string {
	if fileName == "" {
		fileName = "VehicleSFX_log.txt"
	}
	if filepath.IsAbs(fileName) {
		return fileName
	}
	return filepath.Join(pluginDir, fileName)
}

// OpenLogFile truncates the diagnostic log and writes the first line.
func OpenLogFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%s Log started\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		f.Close()
		return nil, fmt.Errorf("write log header: %w", err)
	}
	return f, nil
}

// ParseLevel converts a string log level to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Manager owns the loggers and the sinks behind them.
type Manager struct {
	Logger zerolog.Logger
	// Frame is sampled for per-tick diagnostics.
	Frame zerolog.Logger

	gelf *gelf.Writer
}

// Setup builds the loggers. file and console may be nil.
// A GELF writer is added when enabled; failing to reach it is logged, not fatal.
func Setup(file, console io.Writer, cfg config.LoggingConfig) *Manager {
	m := &Manager{}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	var writers []io.Writer
	if console != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        console,
			TimeFormat: time.RFC3339,
		})
	}
	if file != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        file,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
	}

	var gelfErr error
	if cfg.GraylogEnabled {
		m.gelf, gelfErr = gelf.NewWriter(cfg.GraylogAddress)
		if gelfErr == nil {
			m.gelf.Facility = "vehicle_sfx"
			writers = append(writers, m.gelf)
		}
	}

	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	m.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	m.Frame = FrameLogger(m.Logger, cfg)

	if gelfErr != nil {
		m.Logger.Warn().Err(gelfErr).Str("address", cfg.GraylogAddress).Msg("Failed to set up Graylog writer")
	}
	m.Logger.Info().Str("loglevel", zerolog.GlobalLevel().String()).Msg("Logging set up")
	return m
}

// FrameLogger wraps l in a burst sampler so per-tick lines cannot flood the log.
func FrameLogger(l zerolog.Logger, cfg config.LoggingConfig) zerolog.Logger {
	burst := cfg.FrameLogBurst
	if burst == 0 {
		burst = 5
	}
	period := cfg.FrameLogPeriod
	if period <= 0 {
		period = 10 * time.Second
	}
	every := cfg.FrameLogEvery
	if every == 0 {
		every = 100
	}
	return l.With().Bool("sampled", true).Logger().Sample(&zerolog.BurstSampler{
		Burst:       burst,
		Period:      period,
		NextSampler: &zerolog.BasicSampler{N: every},
	})
}

// Close closes the GELF connection, if any.
func (m *Manager) Close() error {
	if m.gelf == nil {
		return nil
	}
	err := m.gelf.Close()
	m.gelf = nil
	return err
}
