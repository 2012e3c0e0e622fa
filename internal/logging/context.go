// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey int

const (
	correlationIDKey contextKey = iota
	requestIDKey
	streamKey
	loggerKey
)

// ctxFields lists the context values Ctx copies onto the logger, in output order.
var ctxFields = []struct {
	key  contextKey
	name string
}{
	{correlationIDKey, "correlation_id"},
	{requestIDKey, "request_id"},
	{streamKey, "stream"},
}

// GenerateCorrelationID returns the first 8 characters of a new UUID.
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// GenerateRequestID returns a new UUID.
func GenerateRequestID() string {
	return uuid.New().String()
}

func stringValue(ctx context.Context, key contextKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}

// ContextWithCorrelationID returns a new context with the given correlation ID.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext returns the correlation ID, or "" if none is set.
func CorrelationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, correlationIDKey)
}

// ContextWithRequestID returns a new context with the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID, or "" if none is set.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// ContextWithStream tags ctx with the stream a request is about.
func ContextWithStream(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, streamKey, name)
}

// StreamFromContext returns the stream tag, or "" if none is set.
func StreamFromContext(ctx context.Context) string {
	return stringValue(ctx, streamKey)
}

// ContextWithLogger stores a logger in the context.
//
//nolint:gocritic // zerolog.Logger is passed by value throughout zerolog
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext returns the logger stored in ctx, or the global logger.
func LoggerFromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		return logger
	}
	return Logger()
}

// Ctx returns a logger carrying whichever of correlation_id, request_id and
// stream are set on ctx.
//
//	logging.Ctx(ctx).Info().Msg("Stream command accepted")
//	// {"level":"info","correlation_id":"abc12345","request_id":"uuid","stream":"cam1",...}
func Ctx(ctx context.Context) *zerolog.Logger {
	logger := LoggerFromContext(ctx)
	c := logger.With()
	for _, f := range ctxFields {
		if v := stringValue(ctx, f.key); v != "" {
			c = c.Str(f.name, v)
		}
	}
	l := c.Logger()
	return &l
}
