package mocks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/timkado/api/account-cache-service/internal/domain"
)

// MockLogger implements domain.Logger and records every entry for assertions.
type MockLogger struct {
	entries *[]LogEntry
	mu      *sync.RWMutex
	fields  []any

	// Metrics
	InfoCount  *int64
	WarnCount  *int64
	ErrorCount *int64
	DebugCount *int64
}

// LogEntry is a single recorded log call.
type LogEntry struct {
	Level     string
	Message   string
	Fields    map[string]any
	Timestamp time.Time
}

// NewMockLogger creates a new mock logger
func NewMockLogger() *MockLogger {
	entries := make([]LogEntry, 0)
	return &MockLogger{
		entries:    &entries,
		mu:         &sync.RWMutex{},
		InfoCount:  new(int64),
		WarnCount:  new(int64),
		ErrorCount: new(int64),
		DebugCount: new(int64),
	}
}

// Info implements domain.Logger
func (m *MockLogger) Info(ctx context.Context, msg string, fields ...any) {
	atomic.AddInt64(m.InfoCount, 1)
	m.addLogEntry("INFO", msg, fields...)
}

// Warn implements domain.Logger
func (m *MockLogger) Warn(ctx context.Context, msg string, fields ...any) {
	atomic.AddInt64(m.WarnCount, 1)
	m.addLogEntry("WARN", msg, fields...)
}

// Error implements domain.Logger
func (m *MockLogger) Error(ctx context.Context, msg string, fields ...any) {
	atomic.AddInt64(m.ErrorCount, 1)
	m.addLogEntry("ERROR", msg, fields...)
}

// Debug implements domain.Logger
func (m *MockLogger) Debug(ctx context.Context, msg string, fields ...any) {
	atomic.AddInt64(m.DebugCount, 1)
	m.addLogEntry("DEBUG", msg, fields...)
}

// Fatal implements domain.Logger. It records the entry but does not exit.
func (m *MockLogger) Fatal(ctx context.Context, msg string, fields ...any) {
	atomic.AddInt64(m.ErrorCount, 1)
	m.addLogEntry("FATAL", msg, fields...)
}

// With implements domain.Logger. Child loggers share the parent's entries and counters.
func (m *MockLogger) With(fields ...any) domain.Logger {
	child := *m
	child.fields = append(append([]any{}, m.fields...), fields...)
	return &child
}

// Entries returns the recorded entries at the given level, or all entries if level is empty.
func (m *MockLogger) Entries(level string) []LogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]LogEntry, 0, len(*m.entries))
	for _, e := range *m.entries {
		if level == "" || e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Warnings returns the number of Warn calls.
func (m *MockLogger) Warnings() int64 {
	return atomic.LoadInt64(m.WarnCount)
}

func (m *MockLogger) addLogEntry(level, msg string, fields ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := append(append([]any{}, m.fields...), fields...)
	fieldMap := make(map[string]any, len(all)/2)
	for i := 0; i+1 < len(all); i += 2 {
		if key, ok := all[i].(string); ok {
			fieldMap[key] = all[i+1]
		}
	}

	*m.entries = append(*m.entries, LogEntry{
		Level:     level,
		Message:   msg,
		Fields:    fieldMap,
		Timestamp: time.Now(),
	})
}
