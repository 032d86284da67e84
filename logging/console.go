package logging

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/fyh275905/sofa-sub006/core"
)

// Console adapts charmbracelet/log to core.Logger for colorful, human-readable
// terminal output.
type Console struct {
	logger *log.Logger
}

var _ core.Logger = (*Console)(nil)

// NewConsole wraps an existing charmbracelet logger.
// This is useful for testing or when you want to redirect output.
func NewConsole(logger *log.Logger) *Console {
	return &Console{logger: logger}
}

func newConsole(w io.Writer, level Level, prefix string, timestamp bool) *Console {
	return NewConsole(log.NewWithOptions(w, log.Options{
		Level:           consoleLevel(level),
		Formatter:       log.TextFormatter,
		ReportTimestamp: timestamp,
		Prefix:          prefix,
	}))
}

func (c *Console) Debug(msg string, fields ...core.Field) {
	c.logger.Debug(msg, keyvals(fields)...)
}

func (c *Console) Info(msg string, fields ...core.Field) {
	c.logger.Info(msg, keyvals(fields)...)
}

func (c *Console) Warn(msg string, fields ...core.Field) {
	c.logger.Warn(msg, keyvals(fields)...)
}

func (c *Console) Error(msg string, fields ...core.Field) {
	c.logger.Error(msg, keyvals(fields)...)
}

func keyvals(fields []core.Field) []any {
	if len(fields) == 0 {
		return nil
	}
	kv := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		kv = append(kv, f.Key, f.Value)
	}
	return kv
}

func consoleLevel(level Level) log.Level {
	switch level {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
