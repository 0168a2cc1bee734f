package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Event is one lifecycle hook call from the host game.
type Event struct {
	Command   string
	Args      []string
	Payload   any
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	logged bool
}

// Logged adds debug logging to the handler. Leave it off for per-tick hooks.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes hook calls to registered handlers. Handlers run
// synchronously on the caller's thread; a panicking handler is reported as
// an error instead of unwinding into the host.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	logger   Logger

	processed metric.Int64Counter
	failed    metric.Int64Counter
	duration  metric.Float64Histogram
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}

	m := meter()

	var err error

	d.processed, err = m.Int64Counter(
		"vsfx.hooks.processed",
		metric.WithDescription("Total hook calls handled"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"vsfx.hooks.failed",
		metric.WithDescription("Total hook calls that returned an error or panicked"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	d.duration, err = m.Float64Histogram(
		"vsfx.hooks.duration",
		metric.WithDescription("Hook handling time"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command with optional configuration.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	d.mu.Lock()
	d.handlers[command] = handler
	d.mu.Unlock()
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (result any, err error) {
	d.mu.RLock()
	h, ok := d.handlers[e.Command]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}

	start := time.Now()
	cmdAttr := metric.WithAttributes(attribute.String("command", e.Command))
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("handler %s panicked: %v", e.Command, r)
			d.logger.Error("handler panicked", "command", e.Command, "panic", fmt.Sprint(r))
		}
		ctx := context.Background()
		d.processed.Add(ctx, 1, cmdAttr)
		d.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, cmdAttr)
		if err != nil {
			d.failed.Add(ctx, 1, cmdAttr)
		}
	}()

	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[command]
	return ok
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "args", len(e.Args))

		result, err := h(e)

		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
