// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/vtxlink/internal/logging"
	"github.com/tomtom215/vtxlink/internal/stream"
)

// ListStreams returns every stream's status in configuration order.
func (h *Handler) ListStreams(w http.ResponseWriter, r *http.Request) {
	statuses := h.registry.SnapshotAll()
	respondList(w, r, statuses, len(statuses))
}

// GetStream returns one stream's status.
func (h *Handler) GetStream(w http.ResponseWriter, r *http.Request) {
	st, err := h.registry.Status(chi.URLParam(r, "name"))
	if err != nil {
		respondStreamError(w, r, err, nil, h.config.RetryAfter)
		return
	}
	respondData(w, r, st)
}

// StartStream starts a stream now, skipping any pending backoff wait.
// Starting a live stream is a no-op.
func (h *Handler) StartStream(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "start", h.registry.RequestStart)
}

// StopStream stops a stream gracefully. Stopping an idle stream is a no-op.
func (h *Handler) StopStream(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "stop", h.registry.RequestStop)
}

// ResetStream clears a disabled or backing-off stream back to idle.
func (h *Handler) ResetStream(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "reset", h.registry.RequestReset)
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, string) (stream.Status, error)) {
	name := chi.URLParam(r, "name")
	ctx := logging.ContextWithStream(r.Context(), sanitizeLogValue(name))

	st, err := fn(ctx, name)
	if err != nil {
		respondStreamError(w, r, err, &st, h.config.RetryAfter)
		return
	}

	logging.Ctx(ctx).Info().
		Str("command", op).
		Str("state", st.State.String()).
		Msg("Stream command accepted")
	respondData(w, r, st)
}
