package logging

import (
	"io"

	"github.com/fyh275905/sofa-sub006/core"
	"github.com/sirupsen/logrus"
)

// Logrus adapts a logrus logger to core.Logger.
type Logrus struct {
	entry *logrus.Entry
}

var _ core.Logger = (*Logrus)(nil)

// NewLogrus wraps an existing logrus logger.
func NewLogrus(l *logrus.Logger) *Logrus {
	return &Logrus{entry: logrus.NewEntry(l)}
}

func newLogrus(w io.Writer, level Level, json bool) *Logrus {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrusLevel(level))
	if json {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}
	return NewLogrus(l)
}

// With returns a logger that adds fields to every entry.
func (l *Logrus) With(fields ...core.Field) *Logrus {
	return &Logrus{entry: l.entry.WithFields(logrusFields(fields))}
}

func (l *Logrus) Debug(msg string, fields ...core.Field) {
	l.entry.WithFields(logrusFields(fields)).Debug(msg)
}

func (l *Logrus) Info(msg string, fields ...core.Field) {
	l.entry.WithFields(logrusFields(fields)).Info(msg)
}

func (l *Logrus) Warn(msg string, fields ...core.Field) {
	l.entry.WithFields(logrusFields(fields)).Warn(msg)
}

func (l *Logrus) Error(msg string, fields ...core.Field) {
	l.entry.WithFields(logrusFields(fields)).Error(msg)
}

func logrusFields(fields []core.Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			out[f.Key] = err.Error()
			continue
		}
		out[f.Key] = f.Value
	}
	return out
}

func logrusLevel(level Level) logrus.Level {
	switch level {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
