// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package api

import (
	"net/http"
	"os"
	"time"

	"github.com/tomtom215/vtxlink/internal/models"
	"github.com/tomtom215/vtxlink/internal/stream"
)

// SystemStatus returns host memory, admission headroom and stream counts.
func (h *Handler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	hostname, _ := os.Hostname()

	status := models.SystemStatus{
		Hostname:      hostname,
		UptimeSeconds: now.Sub(h.startTime).Seconds(),
		Streams:       countStates(h.registry.SnapshotAll()),
	}

	if h.memory != nil {
		if snap, ok := h.memory.Snapshot(); ok {
			status.Memory = &models.MemoryStatus{
				TotalBytes:      snap.TotalMemoryBytes,
				AvailableBytes:  snap.AvailableMemoryBytes,
				SupervisorRSS:   snap.ProcessRSSBytes,
				Load1:           snap.Load1,
				SampledAt:       snap.SampledAt,
				SnapshotAgeSecs: snap.Age(now).Seconds(),
			}
		}
	}

	if h.admission != nil {
		cfg := h.admission.Config()
		decision, admit := h.admission.Check()
		status.Admission = models.AdmissionStatus{
			PerStreamReserveBytes: cfg.PerStreamReserve,
			SafetyMarginBytes:     cfg.SafetyMargin,
			PendingStarts:         decision.Pending,
			RequiredBytes:         decision.Required,
			WouldAdmit:            admit,
		}
	}

	if h.wsHub != nil {
		status.Clients = h.wsHub.GetClientCount()
	}

	respondData(w, r, status)
}

func countStates(statuses []stream.Status) models.StreamCounts {
	counts := models.StreamCounts{Total: len(statuses), States: make(map[string]int)}
	for _, st := range statuses {
		counts.States[st.State.String()]++
	}
	return counts
}

// EventsRequest holds the validated query of GET /api/v1/events.
type EventsRequest struct {
	Limit  int    `json:"limit" validate:"gte=0"`
	Stream string `json:"stream" validate:"omitempty,max=128"`
}

// Events returns recent state transitions, oldest first. limit=0 (the
// default) returns the whole history ring; stream filters by name.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	limit, ok := getIntParam(r, "limit", 0)
	if !ok {
		respondError(w, r, http.StatusBadRequest, models.CodeValidation, "limit must be an integer", nil)
		return
	}

	req := EventsRequest{Limit: limit, Stream: r.URL.Query().Get("stream")}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr, nil)
		return
	}
	if req.Limit > h.config.MaxEvents {
		req.Limit = h.config.MaxEvents
	}

	var events []stream.Transition
	if req.Stream == "" {
		events = h.registry.History(req.Limit)
	} else {
		if _, err := h.registry.Status(req.Stream); err != nil {
			respondStreamError(w, r, err, nil, h.config.RetryAfter)
			return
		}
		events = filterStream(h.registry.History(0), req.Stream, req.Limit)
	}
	if events == nil {
		events = []stream.Transition{}
	}
	respondList(w, r, events, len(events))
}

// filterStream keeps the last limit transitions of name, preserving order.
func filterStream(all []stream.Transition, name string, limit int) []stream.Transition {
	out := make([]stream.Transition, 0, len(all))
	for _, t := range all {
		if t.Stream == name {
			out = append(out, t)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// HealthLive reports that the process is serving HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady reports ready once a host memory sample exists.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.memory != nil {
		if _, ok := h.memory.Snapshot(); !ok {
			w.Header().Set("Retry-After", "1")
			respondError(w, r, http.StatusServiceUnavailable, models.CodeUnavailable, "no memory sample yet", nil)
			return
		}
	}
	respondData(w, r, map[string]interface{}{"ready": true})
}
