// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package api

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/vtxlink/internal/logging"
	"github.com/tomtom215/vtxlink/internal/models"
	"github.com/tomtom215/vtxlink/internal/output"
	"github.com/tomtom215/vtxlink/internal/stream"
)

// ServeHLS serves GET /hls/{stream}/{file}.
//
// A playlist request is the on-demand trigger: it activates the stream and,
// if the relay is still starting, waits up to ManifestWait for the first
// playlist to be written. A segment request only refreshes the activity
// timestamp of a live stream; for a stream that is not live it activates it
// as well, so a player resuming after an idle stop brings the relay back.
func (h *Handler) ServeHLS(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "stream")
	file := chi.URLParam(r, "file")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if err := output.ValidateFileName(file); err != nil {
		respondStreamError(w, r, err, nil, h.config.RetryAfter)
		return
	}

	st, err := h.registry.Status(name)
	if err != nil {
		respondStreamError(w, r, err, nil, h.config.RetryAfter)
		return
	}

	ctx := logging.ContextWithStream(r.Context(), name)
	manifest := output.IsManifest(file)
	live := st.State == stream.StateStarting || st.State == stream.StateRunning
	if manifest || !live {
		st, err = h.registry.RequestActivation(ctx, name)
		if err != nil {
			respondStreamError(w, r, err, &st, h.config.RetryAfter)
			return
		}
	} else if err := h.registry.Touch(name); err != nil {
		respondStreamError(w, r, err, nil, h.config.RetryAfter)
		return
	}

	path, err := h.files.ResolveFile(name, file)
	if err != nil {
		respondStreamError(w, r, err, &st, h.config.RetryAfter)
		return
	}

	if manifest && !h.waitForFile(ctx, name, path) {
		st, _ = h.registry.Status(name)
		cause := stream.ErrNotReady
		if st.State == stream.StateDisabled {
			cause = stream.ErrStreamDisabled
		}
		respondStreamError(w, r, fmt.Errorf("%w: playlist not written yet", cause), &st, h.config.RetryAfter)
		return
	}

	h.serveFile(w, r, path, file, manifest)
}

// waitForFile polls for a non-empty file until it appears, the wait budget
// runs out, the request is canceled, or the stream leaves its live states.
func (h *Handler) waitForFile(ctx context.Context, name, path string) bool {
	if fileReady(path) {
		return true
	}
	if h.config.ManifestWait <= 0 {
		return false
	}

	logging.Ctx(ctx).Debug().Dur("max_wait", h.config.ManifestWait).Msg("Waiting for HLS playlist")

	deadline := time.NewTimer(h.config.ManifestWait)
	defer deadline.Stop()
	ticker := time.NewTicker(h.config.ManifestPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return fileReady(path)
		case <-ticker.C:
			if fileReady(path) {
				return true
			}
			if st, err := h.registry.Status(name); err != nil || !st.State.Active() {
				return false
			}
		}
	}
}

func fileReady(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, path, file string, manifest bool) {
	f, err := os.Open(path) //nolint:gosec // path is resolved inside the stream directory
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			respondError(w, r, http.StatusNotFound, models.CodeNotFound, "file not found", nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, models.CodeInternal, "failed to open media file", err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		respondError(w, r, http.StatusNotFound, models.CodeNotFound, "file not found", err)
		return
	}

	w.Header().Set("Content-Type", output.ContentType(file))
	if manifest {
		// Live playlists are rewritten every segment.
		w.Header().Set("Cache-Control", "no-cache")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=60")
	}
	http.ServeContent(w, r, file, info.ModTime(), f)
}
