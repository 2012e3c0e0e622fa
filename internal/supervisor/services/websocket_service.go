// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package services

import (
	"context"

	"github.com/tomtom215/vtxlink/internal/logging"
)

// ContextHub is satisfied by *websocket.Hub. Declared here so this package
// does not import the websocket package.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
	GetClientCount() int
}

// WebSocketHubService runs the dashboard event hub under suture.
type WebSocketHubService struct {
	hub  ContextHub
	name string
}

// NewWebSocketHubService wraps hub.
func NewWebSocketHubService(hub ContextHub) *WebSocketHubService {
	return &WebSocketHubService{
		hub:  hub,
		name: "websocket-hub",
	}
}

// Serve implements suture.Service. A hub that stops while ctx is still live
// (it should not) is reported so suture restarts it.
func (w *WebSocketHubService) Serve(ctx context.Context) error {
	err := w.hub.RunWithContext(ctx)
	if ctx.Err() == nil {
		logger := logging.WithComponent(w.name)
		logger.Warn().Err(err).
			Int("clients", w.hub.GetClientCount()).
			Msg("websocket hub exited unexpectedly")
	}
	return err
}

// String implements fmt.Stringer for suture logs.
func (w *WebSocketHubService) String() string {
	return w.name
}
