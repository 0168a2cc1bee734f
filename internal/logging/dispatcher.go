package logging

import (
	"fmt"

	"github.com/rs/zerolog"
)

// HookComponent tags every entry written by the hook dispatcher.
const HookComponent = "hooks"

// DispatcherLogger writes the hook dispatcher's registration, handling and
// failure entries into the plugin log.
type DispatcherLogger struct {
	logger zerolog.Logger
}

// NewDispatcherLogger returns a dispatcher logger writing to logger with
// component=hooks.
func NewDispatcherLogger(logger zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{logger: logger.With().Str("component", HookComponent).Logger()}
}

func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	l.write(l.logger.Debug(), msg, keysAndValues)
}

func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	l.write(l.logger.Info(), msg, keysAndValues)
}

// Error is used for failed hooks; handler errors arrive as an "error" pair.
func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	l.write(l.logger.Error(), msg, keysAndValues)
}

func (l *DispatcherLogger) write(e *zerolog.Event, msg string, kv []any) {
	if e == nil {
		return
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		if err, isErr := kv[i+1].(error); isErr {
			e = e.AnErr(key, err)
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}
