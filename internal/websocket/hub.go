// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/vtxlink/internal/logging"
	"github.com/tomtom215/vtxlink/internal/metrics"
	"github.com/tomtom215/vtxlink/internal/stream"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for WebSocket communication
const (
	MessageTypeTransition = "stream_transition"
	MessageTypeSnapshot   = "stream_snapshot"
	MessageTypePing       = "ping"
	MessageTypePong       = "pong"
)

// broadcastBuffer bounds queued broadcasts; transitions beyond it are dropped.
const broadcastBuffer = 256

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SnapshotFunc returns the data sent to a client right after it connects.
type SnapshotFunc func() interface{}

// Hub fans stream transitions out to connected dashboard clients.
//
// Publishing never blocks: OnTransition is called from stream supervisor
// goroutines and a full queue drops the message rather than stall a state
// machine. A client whose send buffer is full is disconnected.
type Hub struct {
	clients   map[*Client]bool
	broadcast chan Message
	snapshot  SnapshotFunc
	mu        sync.RWMutex
	logger    zerolog.Logger
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan Message, broadcastBuffer),
		clients:   make(map[*Client]bool),
		logger:    logging.WithComponent("websocket-hub"),
	}
}

// SetSnapshotFunc sets the provider of the initial message for new clients.
// It must be called before the hub accepts clients.
func (h *Hub) SetSnapshotFunc(fn SnapshotFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshot = fn
}

// Register adds a client and queues the current snapshot for it.
func (h *Hub) Register(c *Client) {
	h.mu.RLock()
	snapshot := h.snapshot
	h.mu.RUnlock()

	var first *Message
	if snapshot != nil {
		first = &Message{Type: MessageTypeSnapshot, Data: snapshot()}
	}

	h.mu.Lock()
	h.clients[c] = true
	metrics.WSConnections.Inc()
	if first != nil {
		select {
		case c.send <- *first:
		default:
		}
	}
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info().Uint64("client_id", c.id).Int("total_clients", total).Msg("websocket client connected")
}

// sendTo queues a message for one client if it is still registered.
func (h *Hub) sendTo(c *Client, msg Message) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Unregister removes a client and closes its send channel. Unknown or
// already removed clients are ignored.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	removed := h.removeLocked(c)
	total := len(h.clients)
	h.mu.Unlock()

	if removed {
		h.logger.Info().Uint64("client_id", c.id).Int("total_clients", total).Msg("websocket client disconnected")
	}
}

// removeLocked must be called with mu held.
func (h *Hub) removeLocked(c *Client) bool {
	if !h.clients[c] {
		return false
	}
	delete(h.clients, c)
	close(c.send)
	metrics.WSConnections.Dec()
	return true
}

// RunWithContext delivers queued broadcasts until ctx is canceled, then
// disconnects every client and returns ctx.Err().
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Shutdown takes priority over pending broadcasts.
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// shutdown closes all clients and logs the reason. ctx.Err() is expected
// here and is not logged as an error.
func (h *Hub) shutdown(ctx context.Context) {
	closed := h.closeAllClients()
	h.logger.Info().
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", closed).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// sortedClientsLocked returns clients in connection order; must be called with mu held.
func (h *Hub) sortedClientsLocked() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToClients sends a message to every client in connection order.
// Clients that cannot keep up are disconnected.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClientsLocked() {
		select {
		case client.send <- message:
		default:
			h.removeLocked(client)
			metrics.WSErrors.WithLabelValues("slow_client").Inc()
			h.logger.Warn().Uint64("client_id", client.id).Msg("websocket client too slow, disconnected")
		}
	}
}

// closeAllClients disconnects every client and returns how many there were.
func (h *Hub) closeAllClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.sortedClientsLocked()
	for _, client := range clients {
		h.removeLocked(client)
	}
	return len(clients)
}

// Broadcast queues a message for every connected client.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		metrics.WSErrors.WithLabelValues("broadcast_dropped").Inc()
		h.logger.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping message")
	}
}

// OnTransition publishes a stream state change. It implements stream.Observer.
func (h *Hub) OnTransition(t stream.Transition) {
	h.Broadcast(MessageTypeTransition, t)
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
