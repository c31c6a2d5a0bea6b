package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type zerologLogger struct {
	log zerolog.Logger
}

func NewZerolog(log zerolog.Logger) Logger {
	return &zerologLogger{log: log}
}

// BuildZerolog returns a timestamped JSON zerolog logger writing to out
// (stderr when nil).
func BuildZerolog(level string, out io.Writer) (zerolog.Logger, error) {
	if out == nil {
		out = os.Stderr
	}

	lvl := zerolog.InfoLevel
	if strings.TrimSpace(level) != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
		if err != nil {
			return zerolog.Nop(), err
		}

		lvl = parsed
	}

	zerolog.TimeFieldFormat = time.RFC3339

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

func (l *zerologLogger) Debug(msg string, fields ...Field) {
	withFields(l.log.Debug(), fields).Msg(msg)
}

func (l *zerologLogger) Info(msg string, fields ...Field) {
	withFields(l.log.Info(), fields).Msg(msg)
}

func (l *zerologLogger) Warn(msg string, fields ...Field) {
	withFields(l.log.Warn(), fields).Msg(msg)
}

func (l *zerologLogger) Error(msg string, fields ...Field) {
	withFields(l.log.Error(), fields).Msg(msg)
}

func withFields(evt *zerolog.Event, fields []Field) *zerolog.Event {
	for _, f := range fields {
		evt = evt.Interface(f.Key, f.Value)
	}

	return evt
}
