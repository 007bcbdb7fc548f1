// Package logging provides structured logging for the runtime using
// zerolog, generalizing a component-scoped logger pattern into a
// constructor-based factory: no module-level singleton logger, callers are
// handed a Logger and clone it with scoped fields via With.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level re-exports zerolog's level type for callers that don't want to
// import zerolog directly.
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config configures a Logger built by New.
type Config struct {
	Level      Level
	Output     io.Writer
	Pretty     bool
	TimeFormat string
}

// DefaultConfig returns the standard production configuration: info level,
// JSON lines to stderr.
func DefaultConfig() Config {
	return Config{
		Level:      InfoLevel,
		Output:     os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

// New builds a root zerolog.Logger from cfg. The Runtime (C9) constructs one
// of these at startup and hands scoped children (via With) to each
// component, rather than relying on a package-global logger.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: cfg.TimeFormat}
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat
	return zerolog.New(out).Level(cfg.Level).With().Timestamp().Logger()
}

// Noop returns a Logger that discards everything, for tests and components
// that were not given an explicit logger.
func Noop() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// WithAgent returns a child logger scoped to the given agent, generalizing
// the "withContext clone" pattern named in DESIGN NOTES §9.
func WithAgent(l zerolog.Logger, agentID string) zerolog.Logger {
	return l.With().Str("agentId", agentID).Logger()
}

// WithSession returns a child logger scoped to the given session.
func WithSession(l zerolog.Logger, sessionID string) zerolog.Logger {
	return l.With().Str("sessionId", sessionID).Logger()
}

// WithContainer returns a child logger scoped to the given container.
func WithContainer(l zerolog.Logger, containerID string) zerolog.Logger {
	return l.With().Str("containerId", containerID).Logger()
}
