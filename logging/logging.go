// Package logging provides core.Logger implementations backed by logrus for
// machine-readable output and by charmbracelet/log for console output.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fyh275905/sofa-sub006/core"
)

// Supported output formats.
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options selects the backend and verbosity of a logger.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Format is text or json (logrus) or console (charmbracelet/log). Empty means console.
	Format string
	// Prefix is prepended to console lines.
	Prefix string
	// Timestamp enables timestamps on console lines. logrus output always has them.
	Timestamp bool
}

// New builds a core.Logger writing to w (os.Stderr when nil).
func New(opts Options, w io.Writer) (core.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(opts.Format) {
	case FormatText, FormatJSON:
		return newLogrus(w, level, strings.ToLower(opts.Format) == FormatJSON), nil
	case "", FormatConsole:
		return newConsole(w, level, opts.Prefix, opts.Timestamp), nil
	default:
		return nil, fmt.Errorf("logging: unknown format %q", opts.Format)
	}
}

// Level is the backend-neutral severity used to configure both adapters.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func parseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("logging: unknown level %q", s)
	}
}
