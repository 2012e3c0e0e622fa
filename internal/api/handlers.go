// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package api

import (
	"context"
	"time"

	"github.com/tomtom215/vtxlink/internal/resource"
	"github.com/tomtom215/vtxlink/internal/stream"
	ws "github.com/tomtom215/vtxlink/internal/websocket"
)

// StreamRegistry is the part of *stream.Registry the handlers use.
type StreamRegistry interface {
	RequestActivation(ctx context.Context, name string) (stream.Status, error)
	RequestStart(ctx context.Context, name string) (stream.Status, error)
	RequestStop(ctx context.Context, name string) (stream.Status, error)
	RequestReset(ctx context.Context, name string) (stream.Status, error)
	Touch(name string) error
	Status(name string) (stream.Status, error)
	SnapshotAll() []stream.Status
	History(limit int) []stream.Transition
}

// FileResolver maps a stream and media file name to a path on disk.
// Satisfied by *output.Manager.
type FileResolver interface {
	ResolveFile(name, file string) (string, error)
}

// MemorySource publishes the latest host memory sample.
// Satisfied by *resource.Monitor.
type MemorySource interface {
	Snapshot() (resource.Snapshot, bool)
}

// AdmissionView exposes the admission gate for the system view.
// Satisfied by *resource.Gate.
type AdmissionView interface {
	Check() (resource.Decision, bool)
	Config() resource.GateConfig
}

// HandlerConfig holds the HTTP-level timings.
type HandlerConfig struct {
	// ManifestWait bounds how long a manifest request waits for a starting
	// relay to write its first playlist. Zero disables waiting.
	ManifestWait time.Duration
	// ManifestPollInterval is how often the playlist is looked for.
	ManifestPollInterval time.Duration
	// RetryAfter is sent on 503 responses without a better estimate.
	RetryAfter time.Duration
	// MaxEvents caps the events endpoint limit.
	MaxEvents int
}

// Defaults used for zero HandlerConfig fields.
const (
	DefaultManifestPollInterval = 200 * time.Millisecond
	DefaultRetryAfter           = 2 * time.Second
	DefaultMaxEvents            = 1024
)

func (c HandlerConfig) withDefaults() HandlerConfig {
	if c.ManifestPollInterval <= 0 {
		c.ManifestPollInterval = DefaultManifestPollInterval
	}
	if c.RetryAfter <= 0 {
		c.RetryAfter = DefaultRetryAfter
	}
	if c.MaxEvents <= 0 {
		c.MaxEvents = DefaultMaxEvents
	}
	return c
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_hls.go: playlist and segment serving, the on-demand trigger
//   - handlers_streams.go: stream status and lifecycle commands
//   - handlers_system.go: host status, transition history, health
//   - handlers_ws.go: dashboard websocket
type Handler struct {
	registry  StreamRegistry
	files     FileResolver
	memory    MemorySource
	admission AdmissionView
	wsHub     *ws.Hub
	config    HandlerConfig
	startTime time.Time

	allowOrigin func(origin string) bool
}

// NewHandler creates the handler set. memory, admission and hub may be nil;
// the endpoints depending on them then report the data as unavailable.
func NewHandler(cfg HandlerConfig, registry StreamRegistry, files FileResolver, memory MemorySource, admission AdmissionView, hub *ws.Hub) *Handler {
	return &Handler{
		registry:    registry,
		files:       files,
		memory:      memory,
		admission:   admission,
		wsHub:       hub,
		config:      cfg.withDefaults(),
		startTime:   time.Now(),
		allowOrigin: func(string) bool { return true },
	}
}
