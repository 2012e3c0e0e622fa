// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package resource

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/vtxlink/internal/logging"
	"github.com/tomtom215/vtxlink/internal/metrics"
)

// ErrExhausted is returned when starting another relay would push available
// memory below the safety margin. It is transient: callers retry later.
var ErrExhausted = errors.New("resource exhausted")

// SnapshotSource provides the latest published snapshot.
type SnapshotSource interface {
	Snapshot() (Snapshot, bool)
}

// GateConfig holds the admission thresholds in bytes.
type GateConfig struct {
	// PerStreamReserve is the worst-case footprint of one relay process.
	PerStreamReserve uint64

	// SafetyMargin is the memory floor kept for the OS and the supervisor.
	SafetyMargin uint64
}

// Gate decides whether a new relay process may be spawned.
//
// The decision reads only the published snapshot; it never samples. Admitted
// starts hold a Reservation until their footprint shows up in a later sample
// (or the start fails), so concurrent admissions against the same stale
// snapshot cannot oversubscribe memory. A settled reservation is dropped the
// first time the gate sees a snapshot sampled after Settle.
type Gate struct {
	source SnapshotSource
	cfg    GateConfig
	logger zerolog.Logger

	mu       sync.Mutex
	held     uint64
	settling []*Reservation
}

// NewGate creates an admission gate reading snapshots from source.
func NewGate(source SnapshotSource, cfg GateConfig) *Gate {
	return &Gate{
		source: source,
		cfg:    cfg,
		logger: logging.WithComponent("admission"),
	}
}

// Decision describes one admission check for diagnostics.
type Decision struct {
	Available uint64
	Pending   uint64
	Required  uint64
}

// Admit reserves capacity for one relay start. It returns an error wrapping
// ErrExhausted when
//
//	available - (pending+1)*reserve < margin
//
// The caller must Settle the reservation once the relay is confirmed running,
// or Release it if the start fails or is abandoned.
//
// With no snapshot published yet the gate admits and logs a warning.
func (g *Gate) Admit() (*Reservation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	snap, ok := g.source.Snapshot()
	if !ok {
		metrics.RecordAdmission("no_snapshot")
		g.logger.Warn().Msg("No memory snapshot available yet, admitting start")
		return g.reserveLocked(), nil
	}

	g.pruneLocked(snap)
	d := g.decide(snap.AvailableMemoryBytes)
	if d.Available < d.Required {
		metrics.RecordAdmission("denied")
		return nil, fmt.Errorf("%w: %d bytes available, %d required (%d pending starts)",
			ErrExhausted, d.Available, d.Required, d.Pending)
	}

	metrics.RecordAdmission("granted")
	return g.reserveLocked(), nil
}

// decide computes the requirement in the additive form so unsigned values
// never underflow.
func (g *Gate) decide(available uint64) Decision {
	pending := g.pendingLocked()
	return Decision{
		Available: available,
		Pending:   pending,
		Required:  (pending+1)*g.cfg.PerStreamReserve + g.cfg.SafetyMargin,
	}
}

func (g *Gate) pendingLocked() uint64 {
	return g.held + uint64(len(g.settling))
}

// pruneLocked drops settled reservations whose relay is already part of snap.
func (g *Gate) pruneLocked(snap Snapshot) {
	kept := g.settling[:0]
	for _, r := range g.settling {
		if snap.SampledAt.After(r.settledAt) {
			r.state = reservationReleased
			continue
		}
		kept = append(kept, r)
	}
	for i := len(kept); i < len(g.settling); i++ {
		g.settling[i] = nil
	}
	g.settling = kept
	g.updateMetricLocked()
}

// Check reports what Admit would decide without reserving anything.
func (g *Gate) Check() (Decision, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	snap, ok := g.source.Snapshot()
	if !ok {
		return Decision{Pending: g.pendingLocked()}, true
	}
	g.pruneLocked(snap)
	d := g.decide(snap.AvailableMemoryBytes)
	return d, d.Available >= d.Required
}

// Pending returns the number of outstanding reservations, settled ones
// included until a newer snapshot accounts for them.
func (g *Gate) Pending() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if snap, ok := g.source.Snapshot(); ok {
		g.pruneLocked(snap)
	}
	return g.pendingLocked()
}

// Config returns the gate thresholds.
func (g *Gate) Config() GateConfig {
	return g.cfg
}

func (g *Gate) reserveLocked() *Reservation {
	g.held++
	g.updateMetricLocked()
	return &Reservation{gate: g}
}

func (g *Gate) updateMetricLocked() {
	metrics.AdmissionPending.Set(float64(g.pendingLocked()))
}

func (g *Gate) settle(r *Reservation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r.state != reservationHeld {
		return
	}
	g.held--
	r.state = reservationSettling
	r.settledAt = time.Now()
	g.settling = append(g.settling, r)
	g.updateMetricLocked()
}

func (g *Gate) release(r *Reservation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch r.state {
	case reservationHeld:
		g.held--
	case reservationSettling:
		for i, other := range g.settling {
			if other == r {
				g.settling = append(g.settling[:i], g.settling[i+1:]...)
				break
			}
		}
	default:
		return
	}
	r.state = reservationReleased
	g.updateMetricLocked()
}

type reservationState int

const (
	reservationHeld reservationState = iota
	reservationSettling
	reservationReleased
)

// Reservation is capacity held by one admitted start. Its state is guarded
// by the gate's mutex.
type Reservation struct {
	gate      *Gate
	state     reservationState
	settledAt time.Time
}

// Settle marks the relay as running. The capacity stays counted until the
// gate sees a snapshot sampled after this call. Safe on a nil reservation.
func (r *Reservation) Settle() {
	if r == nil || r.gate == nil {
		return
	}
	r.gate.settle(r)
}

// Release returns the reserved capacity at once. It is safe to call more
// than once and on a nil reservation.
func (r *Reservation) Release() {
	if r == nil || r.gate == nil {
		return
	}
	r.gate.release(r)
}
