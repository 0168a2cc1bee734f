package hostabi

import (
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vehiclesfx/extension/internal/dispatcher"
	"github.com/vehiclesfx/extension/internal/host"
	"github.com/vehiclesfx/extension/internal/logging"
)

func TestFormatResponse(t *testing.T) {
	tests := []struct {
		name     string
		result   any
		err      error
		expected string
	}{
		{"version pair", []string{"0.3.0", "2026-10-01"}, nil, `["ok", ["0.3.0","2026-10-01"]]`},
		{"string", "ok", nil, `["ok", "ok"]`},
		{"nil result", nil, nil, `["ok"]`},
		{"int array", []int{1, 2, 3}, nil, `["ok", [1,2,3]]`},
		{"map", map[string]int{"instances": 4}, nil, `["ok", {"instances":4}]`},
		{"error", nil, errors.New("no handler registered"), `["error", "no handler registered"]`},
		{"error with quotes", nil, errors.New(`bad "x"`), `["error", "bad \"x\""]`},
		{"unencodable", func() {}, nil, `["ok", "`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatResponse(tt.result, tt.err)
			if tt.name == "unencodable" {
				assert.True(t, strings.HasPrefix(got, tt.expected))
				return
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func withDispatcher(t *testing.T) *dispatcher.Dispatcher {
	t.Helper()
	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)

	prev := Config
	t.Cleanup(func() { Config = prev })
	SetDispatcher(d)
	return d
}

func TestRoute(t *testing.T) {
	d := withDispatcher(t)

	var got host.Frame
	d.Register(CmdProcess, func(e dispatcher.Event) (any, error) {
		got = e.Payload.(host.Frame)
		assert.False(t, e.Timestamp.IsZero())
		return nil, nil
	})

	_, err := route(dispatcher.Event{Command: CmdProcess, Payload: host.Frame{Dt: 0.016, Player: 7}})
	require.NoError(t, err)
	assert.Equal(t, host.VehicleID(7), got.Player)
	assert.InDelta(t, 0.016, got.Dt, 1e-12)
}

func TestRoute_NoHandler(t *testing.T) {
	withDispatcher(t)

	_, err := route(dispatcher.Event{Command: CmdMenu})
	assert.ErrorIs(t, err, ErrNoHandler)

	SetDispatcher(nil)
	_, err = route(dispatcher.Event{Command: CmdMenu})
	assert.ErrorIs(t, err, ErrNoHandler)
}

func TestRoute_PanicIsAnError(t *testing.T) {
	d := withDispatcher(t)
	d.Register(CmdShutdown, func(dispatcher.Event) (any, error) {
		panic("boom")
	})

	assert.NotPanics(t, func() {
		_, err := route(dispatcher.Event{Command: CmdShutdown})
		assert.ErrorContains(t, err, "boom")
	})
}

func TestHook_LogsFailure(t *testing.T) {
	d := withDispatcher(t)
	d.Register(CmdPauseAll, func(dispatcher.Event) (any, error) {
		return nil, errors.New("engine gone")
	})

	var buf strings.Builder
	hook(zerolog.New(&buf), dispatcher.Event{Command: CmdPauseAll})
	assert.Contains(t, buf.String(), "engine gone")
	assert.Contains(t, buf.String(), CmdPauseAll)
}

func TestConfigInit(t *testing.T) {
	prev := Config
	t.Cleanup(func() { Config = prev })

	SetVersion("1.2.3")
	Config.Init()
	assert.Equal(t, "No version set", Config.version)
	assert.Nil(t, GetDispatcher())
}
