// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/vtxlink/internal/metrics"
)

// Registry holds every configured stream supervisor and routes requests to
// them by name. The set of streams is fixed at construction.
type Registry struct {
	order   []*Supervisor
	byName  map[string]*Supervisor
	history *History
	opts    Options
}

// NewRegistry creates one supervisor per config, in config order. Every
// transition is recorded in the history ring and forwarded to
// deps.Observer when set.
func NewRegistry(cfgs []Config, opts Options, deps Deps) (*Registry, error) {
	opts = opts.WithDefaults()

	r := &Registry{
		order:   make([]*Supervisor, 0, len(cfgs)),
		byName:  make(map[string]*Supervisor, len(cfgs)),
		history: NewHistory(opts.HistorySize),
		opts:    opts,
	}

	external := deps.Observer
	deps.Observer = ObserverFunc(func(t Transition) {
		r.history.OnTransition(t)
		if external != nil {
			external.OnTransition(t)
		}
	})

	for _, cfg := range cfgs {
		if cfg.Name == "" {
			return nil, errors.New("stream name must not be empty")
		}
		if _, dup := r.byName[cfg.Name]; dup {
			return nil, fmt.Errorf("duplicate stream name %q", cfg.Name)
		}
		s := NewSupervisor(cfg, opts, deps)
		r.order = append(r.order, s)
		r.byName[cfg.Name] = s
	}
	return r, nil
}

// Supervisors returns the supervisors in config order, for registration on
// the supervisor tree.
func (r *Registry) Supervisors() []*Supervisor {
	out := make([]*Supervisor, len(r.order))
	copy(out, r.order)
	return out
}

// Names returns the stream names in config order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	for i, s := range r.order {
		names[i] = s.Name()
	}
	return names
}

// Lookup returns the supervisor for name.
func (r *Registry) Lookup(name string) (*Supervisor, error) {
	s, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStream, name)
	}
	return s, nil
}

// RequestActivation is the on-demand trigger invoked for every manifest or
// segment request.
func (r *Registry) RequestActivation(ctx context.Context, name string) (Status, error) {
	s, err := r.Lookup(name)
	if err != nil {
		return Status{}, err
	}
	ctx, cancel := r.opts.commandContext(ctx)
	defer cancel()

	st, err := s.RequestActivation(ctx)
	metrics.RecordActivation(name, activationResult(err))
	return st, err
}

func activationResult(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, ErrResourceExhausted):
		return "exhausted"
	case errors.Is(err, ErrStreamDisabled):
		return "disabled"
	default:
		return "not_ready"
	}
}

// RequestStart starts a stream, skipping any pending backoff wait.
func (r *Registry) RequestStart(ctx context.Context, name string) (Status, error) {
	return r.dispatch(ctx, name, (*Supervisor).RequestStart)
}

// RequestStop stops a stream gracefully.
func (r *Registry) RequestStop(ctx context.Context, name string) (Status, error) {
	return r.dispatch(ctx, name, (*Supervisor).RequestStop)
}

// RequestReset clears a Disabled or CrashedBackoff stream back to Idle.
func (r *Registry) RequestReset(ctx context.Context, name string) (Status, error) {
	return r.dispatch(ctx, name, (*Supervisor).RequestReset)
}

func (r *Registry) dispatch(ctx context.Context, name string, fn func(*Supervisor, context.Context) (Status, error)) (Status, error) {
	s, err := r.Lookup(name)
	if err != nil {
		return Status{}, err
	}
	ctx, cancel := r.opts.commandContext(ctx)
	defer cancel()
	return fn(s, ctx)
}

// Touch refreshes a stream's client activity timestamp.
func (r *Registry) Touch(name string) error {
	s, err := r.Lookup(name)
	if err != nil {
		return err
	}
	s.Touch()
	return nil
}

// Status returns the status of one stream.
func (r *Registry) Status(name string) (Status, error) {
	s, err := r.Lookup(name)
	if err != nil {
		return Status{}, err
	}
	return s.Status(), nil
}

// SnapshotAll returns the status of every stream in config order.
func (r *Registry) SnapshotAll() []Status {
	out := make([]Status, len(r.order))
	for i, s := range r.order {
		out[i] = s.Status()
	}
	return out
}

// History returns up to limit of the most recent transitions, oldest first.
func (r *Registry) History(limit int) []Transition {
	return r.history.Recent(limit)
}
