// Package logging defines the small structured logger surface used across
// statuscard. Library packages depend on Logger only; backends live in
// zap.go and zerolog.go.
package logging

type Field struct {
	Key   string
	Value any
}

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}

func (NopLogger) Info(string, ...Field) {}

func (NopLogger) Warn(string, ...Field) {}

func (NopLogger) Error(string, ...Field) {}

func With(logger Logger) Logger {
	if logger == nil {
		return NopLogger{}
	}

	return logger
}

// WithFields returns a Logger that prepends fields to every entry.
func WithFields(logger Logger, fields ...Field) Logger {
	logger = With(logger)
	if len(fields) == 0 {
		return logger
	}

	return &fieldLogger{next: logger, fields: append([]Field(nil), fields...)}
}

func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

type fieldLogger struct {
	next   Logger
	fields []Field
}

func (l *fieldLogger) Debug(msg string, fields ...Field) {
	l.next.Debug(msg, l.merge(fields)...)
}

func (l *fieldLogger) Info(msg string, fields ...Field) {
	l.next.Info(msg, l.merge(fields)...)
}

func (l *fieldLogger) Warn(msg string, fields ...Field) {
	l.next.Warn(msg, l.merge(fields)...)
}

func (l *fieldLogger) Error(msg string, fields ...Field) {
	l.next.Error(msg, l.merge(fields)...)
}

func (l *fieldLogger) merge(fields []Field) []Field {
	out := make([]Field, 0, len(l.fields)+len(fields))
	out = append(out, l.fields...)
	return append(out, fields...)
}
