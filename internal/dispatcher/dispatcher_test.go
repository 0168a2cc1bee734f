package dispatcher

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func (l *testLogger) hasPrefix(prefix string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, msg := range l.messages {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	called := false
	d.Register(":PROCESS:", func(e Event) (any, error) {
		called = true
		return "result", nil
	})

	result, err := d.Dispatch(Event{Command: ":PROCESS:", Args: []string{"arg1"}})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
	if result != "result" {
		t.Errorf("expected 'result', got %v", result)
	}
}

func TestDispatcher_PayloadPassedThrough(t *testing.T) {
	d, _ := newTestDispatcher(t)

	type frame struct{ dt float64 }
	var got any
	d.Register(":PROCESS:", func(e Event) (any, error) {
		got = e.Payload
		return nil, nil
	})

	if _, err := d.Dispatch(Event{Command: ":PROCESS:", Payload: frame{dt: 0.016}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f, ok := got.(frame); !ok || f.dt != 0.016 {
		t.Errorf("expected payload frame{0.016}, got %#v", got)
	}
}

func TestDispatcher_RunsOnCallerGoroutine(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var n atomic.Int32
	d.Register(":MENU:", func(e Event) (any, error) {
		n.Add(1)
		return nil, nil
	})

	for range 10 {
		d.Dispatch(Event{Command: ":MENU:"})
	}

	if n.Load() != 10 {
		t.Errorf("expected 10 synchronous calls, got %d", n.Load())
	}
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: ":UNKNOWN:"})

	if err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestDispatcher_PanicBecomesError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":SHUTDOWN:", func(e Event) (any, error) {
		panic("engine gone")
	})

	result, err := d.Dispatch(Event{Command: ":SHUTDOWN:"})

	if err == nil || !strings.Contains(err.Error(), "engine gone") {
		t.Errorf("expected panic converted to error, got %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result, got %v", result)
	}
	if !logger.hasPrefix("ERROR: handler panicked") {
		t.Error("expected panic to be logged")
	}
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":INIT:", func(e Event) (any, error) {
		return "ok", nil
	}, Logged())

	d.Dispatch(Event{Command: ":INIT:", Args: []string{"a", "b"}})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected at least 2 log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":ERROR:", func(e Event) (any, error) {
		return nil, fmt.Errorf("test error")
	}, Logged())

	d.Dispatch(Event{Command: ":ERROR:"})

	if !logger.hasPrefix("ERROR") {
		t.Error("expected error log message")
	}
}

func TestDispatcher_UnloggedHandlerIsQuiet(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":PROCESS:", func(e Event) (any, error) { return nil, nil })
	d.Dispatch(Event{Command: ":PROCESS:"})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.messages) != 0 {
		t.Errorf("expected no log messages, got %v", logger.messages)
	}
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(":EXISTS:", func(e Event) (any, error) { return nil, nil })

	if !d.HasHandler(":EXISTS:") {
		t.Error("expected handler to exist")
	}

	if d.HasHandler(":NOT_EXISTS:") {
		t.Error("expected handler to not exist")
	}
}

func TestDispatcher_ConcurrentRegisterAndDispatch(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.Register(":PROCESS:", func(e Event) (any, error) { return nil, nil })

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			d.Register(fmt.Sprintf(":X%d:", i), func(e Event) (any, error) { return nil, nil })
		}()
		go func() {
			defer wg.Done()
			d.Dispatch(Event{Command: ":PROCESS:"})
		}()
	}
	wg.Wait()

	for i := range 8 {
		if !d.HasHandler(fmt.Sprintf(":X%d:", i)) {
			t.Errorf("handler :X%d: missing", i)
		}
	}
}
