package server

import (
	"go.uber.org/zap"

	tracelens "github.com/tracelens/tracelens-go"
)

// zapAdapter bridges the server's zap logger onto the SDK's
// StructuredLogger interface so SDK diagnostics land in the same stream
// as request logs.
type zapAdapter struct {
	log *zap.SugaredLogger
}

// NewZapAdapter adapts a *zap.Logger to tracelens.StructuredLogger.
func NewZapAdapter(log *zap.Logger) tracelens.StructuredLogger {
	return &zapAdapter{log: log.Sugar()}
}

func (a *zapAdapter) Debug(msg string, args ...any) { a.log.Debugw(msg, args...) }
func (a *zapAdapter) Info(msg string, args ...any)  { a.log.Infow(msg, args...) }
func (a *zapAdapter) Warn(msg string, args ...any)  { a.log.Warnw(msg, args...) }
func (a *zapAdapter) Error(msg string, args ...any) { a.log.Errorw(msg, args...) }

var _ tracelens.StructuredLogger = (*zapAdapter)(nil)
