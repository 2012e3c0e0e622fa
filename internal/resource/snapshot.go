// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

// Package resource tracks host memory pressure and gates process spawns on it.
//
// A single Monitor samples the host on a fixed interval and publishes an
// immutable Snapshot through an atomic pointer. Any number of readers (the
// admission Gate, the status API) load the latest snapshot without locking
// and without ever blocking the sampler. Readers tolerate staleness: a
// snapshot may be up to one sampling interval old.
package resource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// Snapshot is one immutable sample of host and supervisor memory.
type Snapshot struct {
	TotalMemoryBytes     uint64    `json:"total_memory_bytes"`
	AvailableMemoryBytes uint64    `json:"available_memory_bytes"`
	ProcessRSSBytes      uint64    `json:"process_rss_bytes"`
	Load1                float64   `json:"load_1"`
	SampledAt            time.Time `json:"sampled_at"`
}

// Age returns how old the snapshot is relative to now.
func (s Snapshot) Age(now time.Time) time.Duration {
	if s.SampledAt.IsZero() {
		return 0
	}
	return now.Sub(s.SampledAt)
}

// Sampler takes one memory sample. Implementations may perform I/O.
type Sampler interface {
	Sample(ctx context.Context) (Snapshot, error)
}

// HostSampler samples the local host with gopsutil.
//
// ProcessRSSBytes is the resident set size of the supervisor process plus
// its direct children (the relay processes it spawned).
type HostSampler struct {
	pid int32
}

// NewHostSampler returns a sampler for the current process.
func NewHostSampler() *HostSampler {
	return &HostSampler{pid: int32(os.Getpid())} //nolint:gosec // pids fit in int32
}

// Sample implements Sampler.
func (h *HostSampler) Sample(ctx context.Context) (Snapshot, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read virtual memory: %w", err)
	}

	snap := Snapshot{
		TotalMemoryBytes:     vm.Total,
		AvailableMemoryBytes: vm.Available,
		SampledAt:            time.Now(),
	}

	rss, err := h.processTreeRSS(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap.ProcessRSSBytes = rss

	// Load average is informational only; unsupported platforms report zero.
	if avg, err := load.AvgWithContext(ctx); err == nil {
		snap.Load1 = avg.Load1
	}

	return snap, nil
}

func (h *HostSampler) processTreeRSS(ctx context.Context) (uint64, error) {
	self, err := process.NewProcessWithContext(ctx, h.pid)
	if err != nil {
		return 0, fmt.Errorf("open self process: %w", err)
	}

	info, err := self.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("read self rss: %w", err)
	}
	total := info.RSS

	children, err := self.ChildrenWithContext(ctx)
	if err != nil && !errors.Is(err, process.ErrorNoChildren) {
		return 0, fmt.Errorf("list child processes: %w", err)
	}
	for _, child := range children {
		// Children may exit between listing and reading.
		if ci, err := child.MemoryInfoWithContext(ctx); err == nil {
			total += ci.RSS
		}
	}
	return total, nil
}
