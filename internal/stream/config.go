// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package stream

import (
	"context"
	"time"

	"github.com/tomtom215/vtxlink/internal/backoff"
	"github.com/tomtom215/vtxlink/internal/clock"
	"github.com/tomtom215/vtxlink/internal/process"
	"github.com/tomtom215/vtxlink/internal/resource"
)

// Config is the immutable definition of one stream.
type Config struct {
	Name      string
	Source    string
	AutoStart bool

	// IdleTimeout stops a running relay after this long without client
	// activity. Zero disables idle reclamation.
	IdleTimeout time.Duration

	// OutputArgs are appended after the source; see process.BuildArgs.
	OutputArgs []string

	Retry backoff.Policy

	// StabilityWindow overrides Options.StabilityWindow when positive.
	StabilityWindow time.Duration
}

// Options are the host-wide lifecycle settings shared by all streams.
type Options struct {
	// Executable is the relay binary, usually ffmpeg.
	Executable string

	// GlobalArgs precede "-i <source>" on every relay command line.
	GlobalArgs []string

	// SpawnTimeout bounds how long a started relay may take to write its
	// first output file.
	SpawnTimeout time.Duration

	// OutputCheckInterval is how often the output directory is checked while
	// starting.
	OutputCheckInterval time.Duration

	// StopGracePeriod is how long a relay may take to exit after a graceful
	// stop before it is killed.
	StopGracePeriod time.Duration

	// StabilityWindow is how long a run must stay healthy for its attempt
	// counter to reset.
	StabilityWindow time.Duration

	// AdmissionRetryInterval is how often an auto-start stream that was
	// denied admission is retried.
	AdmissionRetryInterval time.Duration

	// CommandTimeout bounds how long a registry call waits for a
	// supervisor to answer.
	CommandTimeout time.Duration

	// HistorySize is the capacity of the transition ring.
	HistorySize int
}

// Default lifecycle settings.
const (
	DefaultExecutable             = "ffmpeg"
	DefaultSpawnTimeout           = 20 * time.Second
	DefaultOutputCheckInterval    = 200 * time.Millisecond
	DefaultStopGracePeriod        = 5 * time.Second
	DefaultStabilityWindow        = 60 * time.Second
	DefaultAdmissionRetryInterval = time.Second
	DefaultCommandTimeout         = 10 * time.Second
	DefaultHistorySize            = 256
)

// DefaultGlobalArgs are placed before the input on every relay.
var DefaultGlobalArgs = []string{"-hide_banner", "-y"}

// WithDefaults returns o with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	if o.Executable == "" {
		o.Executable = DefaultExecutable
	}
	if o.GlobalArgs == nil {
		o.GlobalArgs = append([]string(nil), DefaultGlobalArgs...)
	}
	if o.SpawnTimeout <= 0 {
		o.SpawnTimeout = DefaultSpawnTimeout
	}
	if o.OutputCheckInterval <= 0 {
		o.OutputCheckInterval = DefaultOutputCheckInterval
	}
	if o.StopGracePeriod <= 0 {
		o.StopGracePeriod = DefaultStopGracePeriod
	}
	if o.StabilityWindow <= 0 {
		o.StabilityWindow = DefaultStabilityWindow
	}
	if o.AdmissionRetryInterval <= 0 {
		o.AdmissionRetryInterval = DefaultAdmissionRetryInterval
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = DefaultCommandTimeout
	}
	if o.HistorySize <= 0 {
		o.HistorySize = DefaultHistorySize
	}
	return o
}

// Admitter is the admission gate consulted before every spawn.
type Admitter interface {
	Admit() (*resource.Reservation, error)
}

// Workspace manages a stream's output directory.
type Workspace interface {
	Prepare(name string) (string, error)
	Purge(name string) error
	HasArtifacts(name string) (bool, error)
}

// Deps are the collaborators of a stream supervisor.
type Deps struct {
	Runner   process.Runner
	Gate     Admitter
	Output   Workspace
	Clock    clock.Clock
	Observer Observer
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Gate == nil {
		d.Gate = openGate{}
	}
	return d
}

// openGate admits everything; used when no gate is configured.
type openGate struct{}

func (openGate) Admit() (*resource.Reservation, error) { return nil, nil }

// Observer receives every state transition. Implementations must not block.
type Observer interface {
	OnTransition(Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Transition)

func (f ObserverFunc) OnTransition(t Transition) { f(t) }

// commandContext applies the configured command timeout to ctx.
func (o Options) commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.CommandTimeout)
}
