package tracelenstest

import (
	"testing"
	"time"
)

func TestMockMetrics(t *testing.T) {
	m := NewMockMetrics()
	m.IncrementCounter("events", 1)
	m.IncrementCounter("events", 2)
	m.SetGauge("depth", 4.5)
	m.SetGauge("depth", 2.5)
	m.RecordDuration("flush", 10*time.Millisecond)
	m.RecordDuration("flush", 20*time.Millisecond)

	if got := m.Counter("events"); got != 3 {
		t.Errorf("Counter = %d, want 3", got)
	}
	if got := m.Gauge("depth"); got != 2.5 {
		t.Errorf("Gauge = %v, want 2.5", got)
	}
	if got := m.Timings("flush"); len(got) != 2 {
		t.Errorf("Timings = %v, want 2 entries", got)
	}
}

func TestCaptureLogger(t *testing.T) {
	l := NewCaptureLogger()
	l.Warn("usage total disagrees", "total", 25)
	l.Info("flushed", "count", 3)

	if !l.Contains("usage total disagrees") {
		t.Error("Contains missed a recorded message")
	}
	if l.Contains("never logged") {
		t.Error("Contains matched a message never logged")
	}
	lines := l.Lines()
	if len(lines) != 2 {
		t.Fatalf("Lines = %d, want 2", len(lines))
	}
	if lines[0].Level != "WARN" {
		t.Errorf("level = %q, want WARN", lines[0].Level)
	}
}
