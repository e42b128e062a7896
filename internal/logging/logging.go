// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options control logger construction.
type Options struct {
	// Level is the zerolog level name (trace, debug, info, warn, error).
	// Unknown names fall back to info.
	Level string

	// JSON emits machine-readable JSON lines instead of the human console
	// format. Typically enabled when running under a supervisor.
	JSON bool

	// Out overrides the destination, which defaults to stderr. Used by
	// tests to capture output.
	Out io.Writer
}

// New builds a logger from the given options.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	if !opts.JSON {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(out).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info for
// anything unrecognized.
func ParseLevel(name string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
