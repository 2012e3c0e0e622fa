// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

// Package logging provides centralized zerolog-based logging for VTX Link.
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("addr", addr).Msg("HTTP server listening")
//	logging.Err(err).Msg("Failed to create output root")
//
//	// Per-component loggers carry a "component" field.
//	log := logging.WithComponent("resource-monitor")
//
//	// Stream supervisors log with both component and stream fields.
//	log := logging.ForStream("front_gate")
//
//	// Request-scoped logging picks up request_id, correlation_id and stream.
//	logging.Ctx(ctx).Info().Msg("Activation requested")
//
// Always terminate log chains with .Msg() or .Send(); an unterminated event
// is never written.
//
// Libraries that log through log/slog (the suture event hook) are bridged to
// the same output with NewSlogLogger.
package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level: trace, debug, info, warn, error, fatal, panic.
	// Default: info
	Level string

	// Format is the output format: json or console.
	// Default: json
	Format string

	// Caller includes caller file and line number in logs.
	Caller bool

	// Timestamp enables timestamps in log output.
	Timestamp bool

	// Output is the writer for log output.
	// Default: os.Stderr
	Output io.Writer
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Timestamp: true,
		Output:    os.Stderr,
	}
}

// current is swapped whole on Init so concurrent log calls never see a
// half-configured logger.
var current atomic.Pointer[zerolog.Logger]

//nolint:gochecknoinits // logging must work before main calls Init
func init() {
	Init(DefaultConfig())
}

// Init replaces the global logger. It may be called more than once.
//
// The level applies to the global logger only; loggers built with New
// elsewhere are unaffected.
func Init(cfg Config) {
	l := New(cfg)
	current.Store(&l)
}

// New builds a logger from cfg without installing it.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	c := zerolog.New(out).Level(parseLevel(cfg.Level)).With()
	if cfg.Timestamp {
		c = c.Timestamp()
	}
	if cfg.Caller {
		c = c.Caller()
	}
	return c.Logger()
}

// parseLevel maps a configured level name to zerolog. Unknown or empty
// names fall back to info.
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	if level == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	return *current.Load()
}

// SetLogger installs l as the global logger.
//
//nolint:gocritic // zerolog.Logger is passed by value throughout zerolog
func SetLogger(l zerolog.Logger) {
	current.Store(&l)
}

// Debug starts a new message with debug level.
func Debug() *zerolog.Event { return current.Load().Debug() }

// Info starts a new message with info level.
func Info() *zerolog.Event { return current.Load().Info() }

// Warn starts a new message with warning level.
func Warn() *zerolog.Event { return current.Load().Warn() }

// Error starts a new message with error level.
func Error() *zerolog.Event { return current.Load().Error() }

// Fatal starts a new message with fatal level. os.Exit(1) is called once
// the message is written.
func Fatal() *zerolog.Event { return current.Load().Fatal() }

// Err starts an error-level message carrying err. A nil err downgrades the
// event to info level.
func Err(err error) *zerolog.Event { return current.Load().Err(err) }

// WithComponent returns a child of the global logger with a component field.
//
//	log := logging.WithComponent("admission")
//	log.Warn().Uint64("available", avail).Msg("Admission denied")
func WithComponent(component string) zerolog.Logger {
	return current.Load().With().Str("component", component).Logger()
}

// ForStream returns the logger a stream supervisor writes its transitions to.
func ForStream(name string) zerolog.Logger {
	return current.Load().With().Str("component", "stream").Str("stream", name).Logger()
}

// NewTestLogger creates a JSON logger that writes to w, for capturing output in tests.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
