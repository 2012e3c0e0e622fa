// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package resource

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/vtxlink/internal/logging"
	"github.com/tomtom215/vtxlink/internal/metrics"
)

// DefaultSampleInterval is how often the host is sampled when no interval is configured.
const DefaultSampleInterval = 2 * time.Second

// Monitor is the single writer of the shared memory snapshot.
//
// It implements suture.Service so the supervisor tree restarts it if it
// panics. A failed sample keeps the previous snapshot published.
type Monitor struct {
	sampler  Sampler
	interval time.Duration
	current  atomic.Pointer[Snapshot]
	logger   zerolog.Logger

	// onSample, when set, is called after every successful publish.
	onSample func(Snapshot)
}

// NewMonitor creates a monitor sampling with sampler every interval.
func NewMonitor(sampler Sampler, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Monitor{
		sampler:  sampler,
		interval: interval,
		logger:   logging.WithComponent("resource-monitor"),
	}
}

// OnSample registers fn to be invoked after every published snapshot.
// It must be called before Serve.
func (m *Monitor) OnSample(fn func(Snapshot)) {
	m.onSample = fn
}

// Snapshot returns the latest published snapshot. ok is false until the
// first successful sample.
func (m *Monitor) Snapshot() (snap Snapshot, ok bool) {
	p := m.current.Load()
	if p == nil {
		return Snapshot{}, false
	}
	return *p, true
}

// Interval returns the sampling interval.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Sample takes one sample and publishes it on success.
func (m *Monitor) Sample(ctx context.Context) error {
	start := time.Now()
	snap, err := m.sampler.Sample(ctx)
	if err != nil {
		metrics.RecordMemorySample(0, 0, 0, time.Since(start), err)
		return err
	}
	metrics.RecordMemorySample(snap.TotalMemoryBytes, snap.AvailableMemoryBytes, snap.ProcessRSSBytes, time.Since(start), nil)

	m.publish(snap)
	return nil
}

// Publish stores snap as the current snapshot. It exists for callers that
// obtain samples out of band, such as tests and one-shot CLIs.
func (m *Monitor) Publish(snap Snapshot) {
	m.publish(snap)
}

func (m *Monitor) publish(snap Snapshot) {
	m.current.Store(&snap)
	if m.onSample != nil {
		m.onSample(snap)
	}
}

// Serve implements suture.Service. It samples immediately, then on every
// interval tick until ctx is canceled.
func (m *Monitor) Serve(ctx context.Context) error {
	m.logger.Info().Dur("interval", m.interval).Msg("Resource monitor started")

	if err := m.Sample(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("Initial memory sample failed")
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Resource monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := m.Sample(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				m.logger.Warn().Err(err).Msg("Memory sample failed, keeping previous snapshot")
			}
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (m *Monitor) String() string {
	return "resource-monitor"
}
