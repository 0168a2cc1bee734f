// Package monitor publishes controller counts as observable gauges and,
// optionally, as a status file next to the plugin.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/vehiclesfx/extension/internal/sfx"
)

const instrumentationName = "github.com/vehiclesfx/extension/internal/monitor"

// StatusFile is written into the plugin folder while the monitor runs.
const StatusFile = "VehicleSFX_status.txt"

// Source reports the current controller counts.
type Source interface {
	Snapshot() sfx.Snapshot
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Source Source
	// Meter defaults to the global otel meter.
	Meter        metric.Meter
	Log          zerolog.Logger
	PluginFolder string
}

// Service manages status monitoring
type Service struct {
	deps Dependencies

	mu           sync.RWMutex
	isRunning    bool
	stopChan     chan struct{}
	done         chan struct{}
	registration metric.Registration
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Meter == nil {
		deps.Meter = otel.Meter(instrumentationName)
	}
	return &Service{deps: deps}
}

// Register creates the vsfx.instances, vsfx.channels.live and
// vsfx.banks.loaded gauges, observed from one snapshot per collection.
func (s *Service) Register() error {
	m := s.deps.Meter
	instances, err := m.Int64ObservableGauge("vsfx.instances",
		metric.WithDescription("Tracked vehicle audio instances"))
	if err != nil {
		return fmt.Errorf("instances gauge: %w", err)
	}
	live, err := m.Int64ObservableGauge("vsfx.channels.live",
		metric.WithDescription("Channels held by instances"))
	if err != nil {
		return fmt.Errorf("channels gauge: %w", err)
	}
	banks, err := m.Int64ObservableGauge("vsfx.banks.loaded",
		metric.WithDescription("Vehicle models with a loaded sound bank"))
	if err != nil {
		return fmt.Errorf("banks gauge: %w", err)
	}

	reg, err := m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		snap := s.deps.Source.Snapshot()
		o.ObserveInt64(instances, int64(snap.Instances))
		o.ObserveInt64(live, int64(snap.LiveChannels))
		o.ObserveInt64(banks, int64(snap.Banks))
		return nil
	}, instances, live, banks)
	if err != nil {
		return fmt.Errorf("register callback: %w", err)
	}

	s.mu.Lock()
	s.registration = reg
	s.mu.Unlock()
	return nil
}

// GetStatus returns the current snapshot and its rendering for the status file.
func (s *Service) GetStatus() (output []string, snap sfx.Snapshot) {
	snap = s.deps.Source.Snapshot()
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		raw = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
	}
	output = append(output, time.Now().UTC().Format(time.RFC3339), string(raw))
	return output, snap
}

// IsRunning returns whether the status writer is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Start writes the status file every interval until Stop.
func (s *Service) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid status interval %v", interval)
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	path := filepath.Join(s.deps.PluginFolder, StatusFile)
	statusFile, err := os.Create(path)
	if err != nil {
		s.deps.Log.Error().Err(err).Str("path", path).Msg("Error creating status file")
	}

	go func() {
		defer close(done)
		defer func() {
			if statusFile != nil {
				statusFile.Close()
			}
		}()

		s.deps.Log.Debug().Dur("interval", interval).Msg("Starting status monitor")
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				lines, _ := s.GetStatus()
				if statusFile == nil {
					continue
				}
				if err := rewrite(statusFile, lines); err != nil {
					s.deps.Log.Warn().Err(err).Msg("Error writing status file")
				}
			}
		}
	}()

	return nil
}

func rewrite(f *os.File, lines []string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := f.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops the status writer and unregisters the gauges.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.registration != nil {
		if err := s.registration.Unregister(); err != nil {
			s.deps.Log.Warn().Err(err).Msg("Gauge unregister failed")
		}
		s.registration = nil
	}
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
}
