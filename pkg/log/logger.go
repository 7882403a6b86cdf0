package log

import "sync"

// Logger receives protocol trace events.
// Pass nil or NoopLogger to disable tracing.
type Logger interface {
	// Log records a protocol event. Implementations must be thread-safe
	// and must not block; sessions call Log while holding their lock.
	Log(event Event)
}

// NoopLogger discards all events.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// MemoryLogger keeps events in memory. It is intended for tests and for
// short interactive captures.
type MemoryLogger struct {
	mu     sync.Mutex
	events []Event
}

// Log appends the event.
func (m *MemoryLogger) Log(event Event) {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (m *MemoryLogger) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Matching returns the recorded events accepted by filter.
func (m *MemoryLogger) Matching(filter Filter) []Event {
	var out []Event
	for _, e := range m.Events() {
		if filter.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// Compile-time interface satisfaction checks.
var (
	_ Logger = NoopLogger{}
	_ Logger = (*MemoryLogger)(nil)
)
