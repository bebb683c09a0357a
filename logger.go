package joingroup

import (
	"log/slog"
	"sync"
)

// Logger is the structured logging capability the block's internal jobs
// use for diagnostics. It matches the slog.Logger method shape so the
// default adapter needs no translation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// slogLogger adapts *slog.Logger to Logger.
type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

// NewSlogLogger adapts l to Logger. A nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return slogLogger{l: l}
}

var (
	defaultLoggerOnce sync.Once
	defaultLoggerVal  Logger
)

func defaultLogger() Logger {
	defaultLoggerOnce.Do(func() {
		defaultLoggerVal = NewSlogLogger(nil)
	})
	return defaultLoggerVal
}
