package hostabi

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vehiclesfx/extension/internal/dispatcher"
)

// ErrNoHandler is returned for a hook nothing was registered for.
var ErrNoHandler = errors.New("no handler registered")

// Config defines how hook calls are handled.
var Config configStruct

func init() {
	Config.Init()
}

// route dispatches a hook. A panic anywhere on the way is turned into an error
// so it never unwinds into the host.
func route(e dispatcher.Event) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("hook %s panicked: %v", e.Command, r)
		}
	}()

	d := Config.dispatcher
	if d == nil || !d.HasHandler(e.Command) {
		return nil, fmt.Errorf("%s: %w", e.Command, ErrNoHandler)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return d.Dispatch(e)
}

// hook routes e and logs a failure on log. The result is discarded.
func hook(log zerolog.Logger, e dispatcher.Event) {
	if _, err := route(e); err != nil {
		log.Error().Err(err).Str("command", e.Command).Msg("Hook failed")
	}
}

// formatResponse renders a hook result for a string reply to the host.
func formatResponse(result any, err error) string {
	if err != nil {
		return fmt.Sprintf(`["error", %q]`, err.Error())
	}
	if result == nil {
		return `["ok"]`
	}
	b, mErr := json.Marshal(result)
	if mErr != nil {
		return fmt.Sprintf(`["ok", "%v"]`, result)
	}
	return fmt.Sprintf(`["ok", %s]`, b)
}
