// Package stvlog is a small zap-backed logging facade, trimmed down from
// the teacher's log/noop.go and log/nolog.go to the handful of methods the
// engine, margin search, and Monte Carlo harness actually call.
package stvlog

import "go.uber.org/zap"

// Logger is the interface the engine and batch harnesses log through.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	With(fields ...zap.Field) Logger
}

type zapLogger struct {
	z *zap.Logger
}

// New wraps an existing *zap.Logger.
func New(z *zap.Logger) Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &zapLogger{z: z}
}

// NewNop returns a Logger that discards everything, the default for
// library callers that don't want engine tracing.
func NewNop() Logger { return &zapLogger{z: zap.NewNop()} }

func (l *zapLogger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...zap.Field)  { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...zap.Field)  { l.z.Warn(msg, fields...) }
func (l *zapLogger) With(fields ...zap.Field) Logger {
	return &zapLogger{z: l.z.With(fields...)}
}
