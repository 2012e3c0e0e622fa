// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package stream

import (
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/vtxlink/internal/output"
	"github.com/tomtom215/vtxlink/internal/process"
	"github.com/tomtom215/vtxlink/internal/resource"
)

var (
	// ErrUnknownStream is returned for names with no configured stream.
	ErrUnknownStream = errors.New("unknown stream")

	// ErrResourceExhausted is returned when the admission gate denies a
	// start. It is transient and never changes stream state.
	ErrResourceExhausted = resource.ErrExhausted

	// ErrInvalidStreamName is reported when a stream name cannot be used as
	// an output directory. It folds into the backoff path.
	ErrInvalidStreamName = output.ErrInvalidStreamName

	// ErrStreamDisabled is returned for streams that exhausted their retry
	// budget and wait for a reset.
	ErrStreamDisabled = errors.New("stream disabled")

	// ErrNotReady is returned when a stream cannot serve yet: it is backing
	// off, stopping, or its supervisor is not accepting commands.
	ErrNotReady = errors.New("stream not ready")

	errHandleLive = errors.New("relay process already live")
)

// TimeoutError reports a relay that produced no output within the spawn
// timeout.
type TimeoutError struct {
	Stream string
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("stream %s produced no output within %s", e.Stream, e.After)
}

// failureKind labels a start failure for metrics and status.
func failureKind(err error) string {
	var timeout *TimeoutError
	var fsErr *output.FilesystemError
	switch {
	case errors.As(err, &timeout):
		return "timeout"
	case errors.Is(err, ErrInvalidStreamName):
		return "invalid_name"
	case errors.As(err, &fsErr):
		return "filesystem"
	}
	if kind, ok := process.IsSpawnError(err); ok {
		return string(kind)
	}
	return "other"
}
