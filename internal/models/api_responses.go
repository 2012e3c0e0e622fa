// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package models

import (
	"time"
)

// Response status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error codes returned in APIError.Code.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeStreamNotFound    = "STREAM_NOT_FOUND"
	CodeResourceExhausted = "RESOURCE_EXHAUSTED"
	CodeNotReady          = "STREAM_NOT_READY"
	CodeStreamDisabled    = "STREAM_DISABLED"
	CodeInvalidFileName   = "INVALID_FILE_NAME"
	CodeRateLimited       = "RATE_LIMIT_EXCEEDED"
	CodeUnavailable       = "SERVICE_UNAVAILABLE"
	CodeInternal          = "INTERNAL_ERROR"
)

// APIResponse is the envelope of every JSON response from the management API.
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": [{"name": "gate-cam", "state": "running", ...}],
//	  "metadata": {"timestamp": "2026-10-14T12:00:00Z", "request_id": "..."}
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "data": null,
//	  "metadata": {"timestamp": "2026-10-14T12:00:00Z"},
//	  "error": {"code": "RESOURCE_EXHAUSTED", "message": "..."}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata accompanies every response.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	Count     *int      `json:"count,omitempty"`
}

// APIError carries a machine-readable code and a human-readable message.
// Details holds per-field validation failures or retry hints.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
