package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output: %s", buf.String())
	return entry
}

func TestDispatcherLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(dl *DispatcherLogger)
		level string
		msg   string
		want  map[string]any
	}{
		{
			name:  "debug",
			log:   func(dl *DispatcherLogger) { dl.Debug("hook handled", "command", ":PROCESS:", "n", 42) },
			level: "debug",
			msg:   "hook handled",
			want:  map[string]any{"command": ":PROCESS:", "n": float64(42)},
		},
		{
			name:  "info",
			log:   func(dl *DispatcherLogger) { dl.Info("registered", "command", ":INIT:") },
			level: "info",
			msg:   "registered",
			want:  map[string]any{"command": ":INIT:"},
		},
		{
			name:  "error",
			log:   func(dl *DispatcherLogger) { dl.Error("hook failed", "code", 500, "reason", "engine") },
			level: "error",
			msg:   "hook failed",
			want:  map[string]any{"code": float64(500), "reason": "engine"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.TraceLevel))

			tt.log(dl)

			entry := decodeLine(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, tt.msg, entry["message"])
			assert.Equal(t, HookComponent, entry["component"])
			for k, v := range tt.want {
				assert.Equal(t, v, entry[k], "field %s", k)
			}
		})
	}
}

func TestDispatcherLogger_OddKeyValues(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Info("simple message", "dangling")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "simple message", entry["message"])
	assert.NotContains(t, entry, "dangling")
}

func TestDispatcherLogger_ErrorsAndOddKeys(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Error("event failed", "command", ":MENU:", "error", errors.New("bad page"), 7, "seven")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "bad page", entry["error"])
	assert.Equal(t, ":MENU:", entry["command"])
	assert.Equal(t, "seven", entry["7"])
}

func TestDispatcherLogger_ImplementsInterface(t *testing.T) {
	var _ interface {
		Debug(msg string, keysAndValues ...any)
		Info(msg string, keysAndValues ...any)
		Error(msg string, keysAndValues ...any)
	} = NewDispatcherLogger(zerolog.Nop())
}
