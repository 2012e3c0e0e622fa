// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package models

import "time"

// SystemStatus is the host view rendered at the top of the dashboard.
type SystemStatus struct {
	Hostname      string  `json:"hostname"`
	UptimeSeconds float64 `json:"uptime_seconds"`

	// Memory is nil until the first successful sample.
	Memory    *MemoryStatus   `json:"memory,omitempty"`
	Admission AdmissionStatus `json:"admission"`
	Streams   StreamCounts    `json:"streams"`
	Clients   int             `json:"websocket_clients"`
}

// MemoryStatus is the latest host memory sample.
type MemoryStatus struct {
	TotalBytes      uint64    `json:"total_bytes"`
	AvailableBytes  uint64    `json:"available_bytes"`
	SupervisorRSS   uint64    `json:"supervisor_rss_bytes"`
	Load1           float64   `json:"load_1"`
	SampledAt       time.Time `json:"sampled_at"`
	SnapshotAgeSecs float64   `json:"snapshot_age_seconds"`
}

// AdmissionStatus reports the gate thresholds and whether a start would
// currently be admitted.
type AdmissionStatus struct {
	PerStreamReserveBytes uint64 `json:"per_stream_reserve_bytes"`
	SafetyMarginBytes     uint64 `json:"safety_margin_bytes"`
	PendingStarts         uint64 `json:"pending_starts"`
	RequiredBytes         uint64 `json:"required_bytes"`
	WouldAdmit            bool   `json:"would_admit"`
}

// StreamCounts is the number of streams per lifecycle state.
type StreamCounts struct {
	Total  int            `json:"total"`
	States map[string]int `json:"states"`
}
