package alerting

import (
	"context"
	"strings"
	"sync"
)

// MockAlert is one alert captured by MockAlerter.
type MockAlert struct {
	Severity Severity
	Message  string
	Fields   []any
}

// Field returns the value following key in the alert's key/value fields.
func (a MockAlert) Field(key string) (any, bool) {
	for i := 0; i+1 < len(a.Fields); i += 2 {
		if k, ok := a.Fields[i].(string); ok && k == key {
			return a.Fields[i+1], true
		}
	}
	return nil, false
}

// MockAlerter records alerts in memory. It can be told to fail.
type MockAlerter struct {
	mu     sync.Mutex
	alerts []MockAlert
	err    error
}

// NewMockAlerter creates an empty recorder.
func NewMockAlerter() *MockAlerter {
	return &MockAlerter{}
}

func (m *MockAlerter) Name() string { return "mock" }

// FailWith makes every following Alert return err after recording it.
// A nil err restores success.
func (m *MockAlerter) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Alert records the alert.
func (m *MockAlerter) Alert(_ context.Context, severity Severity, message string, fields ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, MockAlert{Severity: severity, Message: message, Fields: fields})
	return m.err
}

// Alerts returns a copy of the recorded alerts.
func (m *MockAlerter) Alerts() []MockAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockAlert(nil), m.alerts...)
}

func (m *MockAlerter) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = nil
}

func (m *MockAlerter) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

func (m *MockAlerter) any(match func(MockAlert) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if match(a) {
			return true
		}
	}
	return false
}

func (m *MockAlerter) HasAlertWithSeverity(severity Severity) bool {
	return m.any(func(a MockAlert) bool { return a.Severity == severity })
}

// HasAlertContaining reports whether a recorded message contains substr.
func (m *MockAlerter) HasAlertContaining(substr string) bool {
	return m.any(func(a MockAlert) bool { return strings.Contains(a.Message, substr) })
}

// HasField reports whether any alert carries key with the given value.
func (m *MockAlerter) HasField(key string, value any) bool {
	return m.any(func(a MockAlert) bool {
		v, ok := a.Field(key)
		return ok && v == value
	})
}

// LastAlert returns the most recent alert, or nil.
func (m *MockAlerter) LastAlert() *MockAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.alerts) == 0 {
		return nil
	}
	last := m.alerts[len(m.alerts)-1]
	return &last
}
