package main

/*
#include <stdlib.h>
*/
import "C" // required for -buildmode=c-shared

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/vehiclesfx/extension/internal/dispatcher"
	"github.com/vehiclesfx/extension/internal/host"
	"github.com/vehiclesfx/extension/internal/logging"
	"github.com/vehiclesfx/extension/pkg/hostabi"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentExtensionVersion string = "0.1.0"
	BuildDate               string = "unknown"

	ExtensionName string = "VehicleSFX"
)

const instrumentationName = "github.com/vehiclesfx/extension/cmd/vehicle_sfx"

var (
	vsfx            = &plugin{}
	eventDispatcher *dispatcher.Dispatcher
)

// init only wires the hooks. Settings, logs and assets are loaded when the
// host calls VSFXInit, so running the CLI touches none of them.
func init() {
	if err := setupHostABI(zerolog.Nop()); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", ExtensionName, err)
	}
}

// setupHostABI creates a dispatcher logging to log and installs it.
func setupHostABI(log zerolog.Logger) error {
	hostabi.SetVersion(CurrentExtensionVersion)

	d, err := dispatcher.New(logging.NewDispatcherLogger(log))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	registerLifecycleHandlers(d, vsfx)
	hostabi.SetDispatcher(d)
	eventDispatcher = d
	return nil
}

func registerLifecycleHandlers(d *dispatcher.Dispatcher, p *plugin) {
	d.Register(hostabi.CmdInit, func(e dispatcher.Event) (any, error) {
		payload, ok := e.Payload.(hostabi.InitPayload)
		if !ok || payload.Host == nil {
			return nil, fmt.Errorf("unexpected init payload %T", e.Payload)
		}
		if err := p.start(hostabi.PluginDir(), payload.Host, payload.Host); err != nil {
			return nil, err
		}

		// The early dispatcher logs nowhere; replace it now logging is up.
		p.mu.Lock()
		log, frame := p.log, p.logs.Frame
		p.mu.Unlock()
		hostabi.SetLoggers(log, frame)
		if err := setupHostABI(log); err != nil {
			log.Error().Err(err).Msg("Dispatcher not replaced")
		}
		return "ok", nil
	}, dispatcher.Logged())

	d.Register(hostabi.CmdProcess, func(e dispatcher.Event) (any, error) {
		f, ok := e.Payload.(host.Frame)
		if !ok {
			return nil, fmt.Errorf("unexpected frame payload %T", e.Payload)
		}
		return nil, p.process(f)
	})

	d.Register(hostabi.CmdPauseAll, func(dispatcher.Event) (any, error) {
		return nil, p.pauseAll()
	}, dispatcher.Logged())

	d.Register(hostabi.CmdMenu, func(e dispatcher.Event) (any, error) {
		if len(e.Args) == 0 {
			return nil, fmt.Errorf("%s: missing page", hostabi.CmdMenu)
		}
		page, err := strconv.Atoi(e.Args[0])
		if err != nil {
			return nil, fmt.Errorf("%s: bad page: %w", hostabi.CmdMenu, err)
		}
		return nil, p.menu(page)
	})

	d.Register(hostabi.CmdShutdown, func(dispatcher.Event) (any, error) {
		return "ok", p.shutdown()
	}, dispatcher.Logged())

	d.Register(hostabi.CmdVersion, func(dispatcher.Event) (any, error) {
		return []string{CurrentExtensionVersion, BuildDate}, nil
	})
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
