// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

/*
Package stream implements the per-stream lifecycle engine.

Each configured stream is owned by one Supervisor, a suture.Service whose
Serve loop is the only code that mutates the stream's lifecycle state. The
loop waits on four things at once: an external command, the relay process
exiting, a single state-dependent timer, and cancellation.

# States

	Idle ──activation──▶ Starting ──output observed──▶ Running
	 ▲                      │                            │
	 │                      │ spawn error / timeout      │ crash
	 │                      ▼                            ▼
	 │                CrashedBackoff ◀───────────────────┘
	 │                      │ attempts exhausted
	 │ stop completed       ▼
	Stopping           Disabled ──reset──▶ Idle

Admission denial never changes state. An exit observed while Stopping is a
clean stop regardless of exit code; an exit while Running is always a crash.
A run that stays healthy for the stability window clears the attempt counter.

# Registry

Registry holds the supervisors in configuration order and routes
activation, start, stop and reset by name. It keeps a bounded ring of recent
transitions for the dashboard.
*/
package stream
