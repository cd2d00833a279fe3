package tracelenstest

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tracelens "github.com/tracelens/tracelens-go"
)

// Compile-time interface assertions to catch drift between the mocks and
// the interfaces they implement.
var (
	_ tracelens.Metrics          = (*MockMetrics)(nil)
	_ tracelens.StructuredLogger = (*CaptureLogger)(nil)
)

// MockMetrics records metrics operations for later verification.
type MockMetrics struct {
	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]float64
	timings  map[string][]time.Duration
}

// NewMockMetrics creates a new mock metrics collector.
func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
		timings:  make(map[string][]time.Duration),
	}
}

// IncrementCounter implements tracelens.Metrics.
func (m *MockMetrics) IncrementCounter(name string, value int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += value
}

// RecordDuration implements tracelens.Metrics.
func (m *MockMetrics) RecordDuration(name string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timings[name] = append(m.timings[name], duration)
}

// SetGauge implements tracelens.Metrics.
func (m *MockMetrics) SetGauge(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = value
}

// Counter returns the accumulated value of a counter.
func (m *MockMetrics) Counter(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

// Gauge returns the last value set on a gauge.
func (m *MockMetrics) Gauge(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gauges[name]
}

// Timings returns all recorded durations for a metric.
func (m *MockMetrics) Timings(name string) []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration{}, m.timings[name]...)
}

// CaptureLogger records structured log lines for assertions.
type CaptureLogger struct {
	mu    sync.Mutex
	lines []LogLine
}

// LogLine is one captured log call.
type LogLine struct {
	Level   string
	Message string
	Args    []any
}

// String renders the line in a grep-friendly form.
func (l LogLine) String() string {
	parts := make([]string, 0, len(l.Args)/2)
	for i := 0; i+1 < len(l.Args); i += 2 {
		parts = append(parts, fmt.Sprintf("%v=%v", l.Args[i], l.Args[i+1]))
	}
	return fmt.Sprintf("[%s] %s %s", l.Level, l.Message, strings.Join(parts, " "))
}

// NewCaptureLogger creates a new capturing logger.
func NewCaptureLogger() *CaptureLogger {
	return &CaptureLogger{}
}

func (c *CaptureLogger) record(level, msg string, args []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, LogLine{Level: level, Message: msg, Args: args})
}

// Debug implements tracelens.StructuredLogger.
func (c *CaptureLogger) Debug(msg string, args ...any) { c.record("DEBUG", msg, args) }

// Info implements tracelens.StructuredLogger.
func (c *CaptureLogger) Info(msg string, args ...any) { c.record("INFO", msg, args) }

// Warn implements tracelens.StructuredLogger.
func (c *CaptureLogger) Warn(msg string, args ...any) { c.record("WARN", msg, args) }

// Error implements tracelens.StructuredLogger.
func (c *CaptureLogger) Error(msg string, args ...any) { c.record("ERROR", msg, args) }

// Lines returns all captured lines.
func (c *CaptureLogger) Lines() []LogLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LogLine{}, c.lines...)
}

// Contains reports whether any captured message contains the substring.
func (c *CaptureLogger) Contains(substr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, line := range c.lines {
		if strings.Contains(line.Message, substr) {
			return true
		}
	}
	return false
}
