package monitor

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/goleak"

	"github.com/vehiclesfx/extension/internal/sfx"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixedSource struct {
	snap  sfx.Snapshot
	calls atomic.Int32
}

func (f *fixedSource) Snapshot() sfx.Snapshot {
	f.calls.Add(1)
	return f.snap
}

func gauges(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			g, ok := m.Data.(metricdata.Gauge[int64])
			if !ok || len(g.DataPoints) == 0 {
				continue
			}
			out[m.Name] = g.DataPoints[0].Value
		}
	}
	return out
}

func TestRegister_ObservesSnapshot(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	src := &fixedSource{snap: sfx.Snapshot{Instances: 3, LiveChannels: 7, Banks: 2}}
	s := NewService(Dependencies{Source: src, Meter: mp.Meter("test"), Log: zerolog.Nop()})
	require.NoError(t, s.Register())

	got := gauges(t, reader)
	assert.Equal(t, map[string]int64{
		"vsfx.instances":     3,
		"vsfx.channels.live": 7,
		"vsfx.banks.loaded":  2,
	}, got)
	assert.Equal(t, int32(1), src.calls.Load(), "one snapshot per collection")

	s.Stop()
	assert.Empty(t, gauges(t, reader), "gauges stop reporting once unregistered")
}

func TestGetStatus(t *testing.T) {
	src := &fixedSource{snap: sfx.Snapshot{Instances: 1, LiveChannels: 2, Muted: true}}
	s := NewService(Dependencies{Source: src, Log: zerolog.Nop()})

	lines, snap := s.GetStatus()
	assert.Equal(t, src.snap, snap)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], `"liveChannels": 2`)
	assert.Contains(t, lines[1], `"muted": true`)
}

func TestStartStop_WritesStatusFile(t *testing.T) {
	dir := t.TempDir()
	src := &fixedSource{snap: sfx.Snapshot{Instances: 4}}
	s := NewService(Dependencies{Source: src, Log: zerolog.Nop(), PluginFolder: dir})

	require.NoError(t, s.Start(5*time.Millisecond))
	assert.True(t, s.IsRunning())
	require.NoError(t, s.Start(5*time.Millisecond), "second start is a no-op")

	path := filepath.Join(dir, StatusFile)
	require.Eventually(t, func() bool {
		b, err := os.ReadFile(path)
		return err == nil && len(b) > 0
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"instances": 4`)
}

func TestStart_RejectsBadInterval(t *testing.T) {
	s := NewService(Dependencies{Source: &fixedSource{}, Log: zerolog.Nop()})
	assert.Error(t, s.Start(0))
	assert.False(t, s.IsRunning())
}
