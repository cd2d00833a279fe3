package tracelens

import (
	"log/slog"
	"time"
)

// StructuredLogger provides leveled, structured logging for the SDK. It is
// compatible with log/slog and adaptable to other structured loggers.
type StructuredLogger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, args ...any)
	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, args ...any)
	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, args ...any)
	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, args ...any)
}

// NewSlogAdapter adapts a *slog.Logger to the StructuredLogger interface.
//
//	client, _ := tracelens.New(pk, sk,
//	    tracelens.WithLogger(tracelens.NewSlogAdapter(slog.Default())),
//	)
func NewSlogAdapter(logger *slog.Logger) StructuredLogger {
	return &slogAdapter{logger: logger}
}

type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.logger.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }

var _ StructuredLogger = (*slogAdapter)(nil)

// nopLogger discards all messages. Used when no logger is configured.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

var _ StructuredLogger = nopLogger{}

// Metrics is an optional interface for SDK telemetry. A Prometheus-backed
// implementation lives with the demo server; the SDK itself stays
// agnostic of the metrics backend.
type Metrics interface {
	// IncrementCounter increments a counter metric.
	IncrementCounter(name string, value int64)
	// RecordDuration records a duration metric.
	RecordDuration(name string, duration time.Duration)
	// SetGauge sets a gauge metric.
	SetGauge(name string, value float64)
}
