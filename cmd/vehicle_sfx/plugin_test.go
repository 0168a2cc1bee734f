package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/vehiclesfx/extension/internal/audio/audiotest"
	"github.com/vehiclesfx/extension/internal/config"
	"github.com/vehiclesfx/extension/internal/dispatcher"
	"github.com/vehiclesfx/extension/internal/host"
	"github.com/vehiclesfx/extension/internal/logging"
	"github.com/vehiclesfx/extension/internal/monitor"
	"github.com/vehiclesfx/extension/internal/sim"
	"github.com/vehiclesfx/extension/pkg/hostabi"
)

const idleDrive = `
model: 411
tickRate: 50
segments:
  - duration: 1s
    gear: 1
`

// pluginDir lays out a plugin folder with an idle asset for model 411 and,
// optionally, a settings file.
func pluginDir(t *testing.T, settings string) string {
	t.Helper()
	t.Cleanup(viper.Reset)
	level := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(level) })

	dir := t.TempDir()
	model := filepath.Join(dir, "vsfx", "411")
	require.NoError(t, os.MkdirAll(model, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(model, "idle.wav"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vsfx", TestToneFile), nil, 0644))
	if settings != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(settings), 0644))
	}
	return dir
}

func drive(t *testing.T) *sim.Drive {
	t.Helper()
	sc, err := sim.Parse(strings.NewReader(idleDrive))
	require.NoError(t, err)
	return sim.NewDrive(sc)
}

func TestPlugin_Lifecycle(t *testing.T) {
	dir := pluginDir(t, "")
	eng := audiotest.New()
	d := drive(t)
	p := &plugin{}

	assert.ErrorIs(t, p.process(host.Frame{}), errNotStarted)

	require.NoError(t, p.start(dir, eng, d))
	assert.Error(t, p.start(dir, eng, d), "second init is refused")

	assert.Len(t, eng.ByName("test"), 1, "test tone played at init")

	for i := range 5 {
		require.NoError(t, p.process(d.Frame(i)))
	}
	assert.Len(t, eng.LiveByName("idle"), 1)
	assert.Equal(t, 1, d.Muted())

	require.NoError(t, p.menu(2))
	ctrl, err := p.controller()
	require.NoError(t, err)
	assert.True(t, ctrl.Muted())
	require.NoError(t, p.menu(0))
	assert.False(t, ctrl.Muted())

	require.NoError(t, p.pauseAll())
	assert.True(t, ctrl.Muted())

	require.NoError(t, p.shutdown())
	assert.True(t, eng.Closed)
	assert.Empty(t, eng.LiveByName("idle"))
	assert.NoError(t, p.shutdown(), "second shutdown is a no-op")
	assert.ErrorIs(t, p.menu(0), errNotStarted)

	raw, err := os.ReadFile(filepath.Join(dir, "VehicleSFX_log.txt"))
	require.NoError(t, err)
	assert.Contains(t, strings.SplitN(string(raw), "\n", 2)[0], "Log started")
	assert.Contains(t, string(raw), "Vehicle audio initialized")
	assert.Contains(t, string(raw), "Vehicle audio shut down")

	_, err = os.Stat(filepath.Join(dir, monitor.StatusFile))
	assert.ErrorIs(t, err, os.ErrNotExist, "status file only with metrics enabled")
}

func TestPlugin_MetricsExport(t *testing.T) {
	prev := otel.GetMeterProvider()
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	dir := pluginDir(t, `{"metrics": {"enabled": true, "interval": "1h"}}`)
	eng := audiotest.New()
	d := drive(t)
	p := &plugin{}

	require.NoError(t, p.start(dir, eng, d))
	require.NoError(t, p.process(d.Frame(0)))
	_, err := os.Stat(filepath.Join(dir, monitor.StatusFile))
	assert.NoError(t, err)
	require.NoError(t, p.shutdown())

	raw, err := os.ReadFile(filepath.Join(dir, "VehicleSFX_metrics.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "vsfx.channels.started")
	assert.Contains(t, string(raw), ExtensionName)
}

func TestLifecycleHandlers(t *testing.T) {
	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	p := &plugin{}
	registerLifecycleHandlers(d, p)

	for _, cmd := range []string{
		hostabi.CmdInit, hostabi.CmdProcess, hostabi.CmdPauseAll,
		hostabi.CmdMenu, hostabi.CmdShutdown, hostabi.CmdVersion,
	} {
		assert.True(t, d.HasHandler(cmd), cmd)
	}

	got, err := d.Dispatch(dispatcher.Event{Command: hostabi.CmdVersion})
	require.NoError(t, err)
	assert.Equal(t, []string{CurrentExtensionVersion, BuildDate}, got)

	_, err = d.Dispatch(dispatcher.Event{Command: hostabi.CmdInit, Payload: "nope"})
	assert.Error(t, err)
	_, err = d.Dispatch(dispatcher.Event{Command: hostabi.CmdProcess, Payload: 12})
	assert.Error(t, err)
	_, err = d.Dispatch(dispatcher.Event{Command: hostabi.CmdMenu, Args: []string{"x"}})
	assert.Error(t, err)
	_, err = d.Dispatch(dispatcher.Event{Command: hostabi.CmdMenu})
	assert.Error(t, err)

	_, err = d.Dispatch(dispatcher.Event{Command: hostabi.CmdProcess, Payload: host.Frame{}})
	assert.ErrorIs(t, err, errNotStarted)
	_, err = d.Dispatch(dispatcher.Event{Command: hostabi.CmdShutdown})
	assert.NoError(t, err, "shutdown before init is harmless")
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out strings.Builder
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, ExtensionName+" "+CurrentExtensionVersion+" ("+BuildDate+")\n", out.String())
}

func TestSimulateCommand_RequiresOutput(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&strings.Builder{})
	cmd.SetErr(&strings.Builder{})
	cmd.SetArgs([]string{"simulate", "--scenario", "drive.yaml"})
	assert.Error(t, cmd.Execute())
}

func TestProbeCommand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "411"), 0755))

	cmd := newRootCmd()
	var out strings.Builder
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"probe", "--assets", dir, "--log-level", "error", "411", "412"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "411: \n412: no assets\n", out.String())

	cmd = newRootCmd()
	cmd.SetOut(&strings.Builder{})
	cmd.SetErr(&strings.Builder{})
	cmd.SetArgs([]string{"probe", "--assets", dir, "banshee"})
	assert.Error(t, cmd.Execute())
}
