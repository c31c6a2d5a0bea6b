package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type zapLogger struct {
	log *zap.Logger
}

// NewZap adapts a zap logger. A nil logger yields a no-op zap logger.
func NewZap(log *zap.Logger) Logger {
	if log == nil {
		log = zap.NewNop()
	}

	return &zapLogger{log: log}
}

// BuildZap constructs a zap logger for the given level and format
// ("json" or "console").
func BuildZap(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("logging: parse level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if strings.EqualFold(format, "console") {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}

	return cfg.Build()
}

func (l *zapLogger) Debug(msg string, fields ...Field) {
	l.log.Debug(msg, zapFields(fields)...)
}

func (l *zapLogger) Info(msg string, fields ...Field) {
	l.log.Info(msg, zapFields(fields)...)
}

func (l *zapLogger) Warn(msg string, fields ...Field) {
	l.log.Warn(msg, zapFields(fields)...)
}

func (l *zapLogger) Error(msg string, fields ...Field) {
	l.log.Error(msg, zapFields(fields)...)
}

func zapFields(fields []Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}

	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}

	return out
}
