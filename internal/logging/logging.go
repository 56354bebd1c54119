package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a structured logger backed by zap. Arguments after the message
// are alternating keys and values.
type Logger struct {
	s *zap.SugaredLogger
}

// NewLogger creates a new Logger. A "json" format selects zap's production
// encoder; anything else produces human-readable console output.
func NewLogger(level, format string) *Logger {
	lvl := zapcore.InfoLevel
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	}

	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewExample()
	}
	return &Logger{s: l.Sugar()}
}

// FromZap wraps an existing zap logger.
func FromZap(l *zap.Logger) *Logger {
	return &Logger{s: l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }

// Info logs an informational message.
func (l *Logger) Info(msg string, args ...any) { l.s.Infow(msg, args...) }

// Warn logs a warning.
func (l *Logger) Warn(msg string, args ...any) { l.s.Warnw(msg, args...) }

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }

// With returns a child logger that always carries the given fields.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{s: l.s.With(args...)}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.s.Sync()
}
