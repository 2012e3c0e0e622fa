// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package stream

import "time"

// Status is a point-in-time view of one stream, safe to share.
type Status struct {
	Name      string `json:"name"`
	Source    string `json:"source"`
	State     State  `json:"state"`
	AutoStart bool   `json:"auto_start"`

	Attempt     int        `json:"attempt"`
	MaxAttempts int        `json:"max_attempts"`
	RetryAt     *time.Time `json:"retry_at,omitempty"`

	PID       int        `json:"pid,omitempty"`
	RunID     string     `json:"run_id,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`

	UptimeSeconds      float64 `json:"uptime_seconds"`
	IdleSeconds        float64 `json:"idle_seconds"`
	IdleTimeoutSeconds float64 `json:"idle_timeout_seconds"`

	LastActivity   *time.Time `json:"last_activity,omitempty"`
	LastTransition time.Time  `json:"last_transition"`
	LastExitReason string     `json:"last_exit_reason,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

// Transition records one state change.
type Transition struct {
	Stream  string     `json:"stream"`
	From    State      `json:"from"`
	To      State      `json:"to"`
	Attempt int        `json:"attempt"`
	Reason  string     `json:"reason"`
	RetryAt *time.Time `json:"retry_at,omitempty"`
	At      time.Time  `json:"at"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
