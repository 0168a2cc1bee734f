package hostabi

import (
	"github.com/rs/zerolog"

	"github.com/vehiclesfx/extension/internal/dispatcher"
)

// Hook commands routed through the dispatcher.
const (
	CmdInit     = ":INIT:"
	CmdProcess  = ":PROCESS:"
	CmdPauseAll = ":PAUSE:ALL:"
	CmdMenu     = ":MENU:"
	CmdShutdown = ":SHUTDOWN:"
	CmdVersion  = ":VERSION:"
)

// InitPayload is the payload of the :INIT: event.
type InitPayload struct {
	Host *Host
}

// configStruct is the central configuration used by the exported hooks.
type configStruct struct {
	// version is returned by VSFXVersion until a :VERSION: handler exists.
	version string

	dispatcher *dispatcher.Dispatcher

	log   zerolog.Logger
	frame zerolog.Logger
}

// Init resets the config to its load-time state.
func (c *configStruct) Init() {
	c.version = "No version set"
	c.dispatcher = nil
	c.log = zerolog.Nop()
	c.frame = zerolog.Nop()
}

// SetVersion sets the fallback version string.
func SetVersion(version string) {
	Config.version = version
}

// SetDispatcher sets the event dispatcher for handling hooks.
func SetDispatcher(d *dispatcher.Dispatcher) {
	Config.dispatcher = d
}

// GetDispatcher returns the configured dispatcher, or nil if not set.
func GetDispatcher() *dispatcher.Dispatcher {
	return Config.dispatcher
}

// SetLoggers sets where hook failures are reported. frame is used for the
// per-tick hook.
func SetLoggers(log, frame zerolog.Logger) {
	Config.log = log.With().Str("component", "hostabi").Logger()
	Config.frame = frame.With().Str("component", "hostabi").Logger()
}
