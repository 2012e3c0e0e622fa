// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/vtxlink/internal/models"
	"github.com/tomtom215/vtxlink/internal/output"
	"github.com/tomtom215/vtxlink/internal/stream"
)

// errorMapping is the HTTP rendering of one stream error.
type errorMapping struct {
	status  int
	code    string
	message string
	retry   bool
}

func mapStreamError(err error) errorMapping {
	switch {
	case errors.Is(err, stream.ErrUnknownStream):
		return errorMapping{http.StatusNotFound, models.CodeStreamNotFound, "stream not found", false}
	case errors.Is(err, output.ErrInvalidFileName):
		return errorMapping{http.StatusBadRequest, models.CodeInvalidFileName, "invalid media file name", false}
	case errors.Is(err, stream.ErrResourceExhausted):
		return errorMapping{http.StatusServiceUnavailable, models.CodeResourceExhausted, "not enough memory to start the stream", true}
	case errors.Is(err, stream.ErrStreamDisabled):
		return errorMapping{http.StatusConflict, models.CodeStreamDisabled, "stream is disabled after repeated failures; reset it to retry", false}
	case errors.Is(err, stream.ErrNotReady), errors.Is(err, stream.ErrInvalidStreamName):
		return errorMapping{http.StatusServiceUnavailable, models.CodeNotReady, "stream is not ready", true}
	default:
		return errorMapping{http.StatusInternalServerError, models.CodeInternal, "internal error", false}
	}
}

// respondStreamError renders err with the status in st, if any, attached as
// details. Retryable errors carry Retry-After: the time until the stream's
// next retry when it is backing off, otherwise fallback.
func respondStreamError(w http.ResponseWriter, r *http.Request, err error, st *stream.Status, fallback time.Duration) {
	m := mapStreamError(err)

	apiErr := &models.APIError{Code: m.code, Message: m.message}
	if st != nil && st.Name != "" {
		apiErr.Details = map[string]interface{}{
			"stream":  st.Name,
			"state":   st.State.String(),
			"attempt": st.Attempt,
		}
		if st.LastExitReason != "" {
			apiErr.Details["last_exit_reason"] = st.LastExitReason
		}
	}

	if m.retry {
		wait := fallback
		if st != nil && st.RetryAt != nil {
			if until := time.Until(*st.RetryAt); until > 0 {
				wait = until
			}
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
	}

	// Expected outcomes are not logged as errors.
	var logged error
	if m.status == http.StatusInternalServerError {
		logged = err
	}
	respondAPIError(w, r, m.status, apiErr, logged)
}
