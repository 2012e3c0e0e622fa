// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/vtxlink/internal/stream"
	ws "github.com/tomtom215/vtxlink/internal/websocket"
)

func newWSServer(t *testing.T, origins []string) (*httptest.Server, *ws.Hub, *fakeRegistry) {
	t.Helper()

	env := newTestEnv(t, fastWait(), nil, "gate-cam")
	hub := ws.NewHub()
	hub.SetSnapshotFunc(func() interface{} { return env.registry.SnapshotAll() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()

	mw := DefaultChiMiddlewareConfig()
	mw.CORSAllowedOrigins = origins
	h := NewHandler(fastWait(), env.registry, env.output, env.memory, env.gate, hub)
	srv := httptest.NewServer(NewRouter(h, NewChiMiddleware(mw)).SetupChi())

	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return srv, hub, env.registry
}

func dialWS(srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/ws", header)
}

func TestWebSocket_SnapshotThenTransitions(t *testing.T) {
	srv, hub, _ := newWSServer(t, []string{"http://dashboard.local"})

	conn, resp, err := dialWS(srv, "http://dashboard.local")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer resp.Body.Close()
	defer conn.Close()

	type message struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	read := func() message {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}

	first := read()
	if first.Type != ws.MessageTypeSnapshot {
		t.Fatalf("first message = %q", first.Type)
	}
	var statuses []stream.Status
	if err := json.Unmarshal(first.Data, &statuses); err != nil || len(statuses) != 1 {
		t.Fatalf("snapshot = %s (%v)", first.Data, err)
	}

	hub.OnTransition(stream.Transition{Stream: "gate-cam", From: stream.StateIdle, To: stream.StateStarting, Reason: "activation", At: time.Now()})
	if msg := read(); msg.Type != ws.MessageTypeTransition {
		t.Errorf("message = %q, want transition", msg.Type)
	}
}

func TestWebSocket_OriginCheck(t *testing.T) {
	srv, _, _ := newWSServer(t, []string{"http://dashboard.local"})

	_, resp, err := dialWS(srv, "http://evil.example")
	if err == nil {
		t.Fatal("disallowed origin should be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
	if resp != nil {
		resp.Body.Close()
	}

	conn, resp, err := dialWS(srv, "")
	if err != nil {
		t.Fatalf("request without Origin should be accepted: %v", err)
	}
	resp.Body.Close()
	conn.Close()
}

func TestWebSocket_NoHub(t *testing.T) {
	env := newTestEnv(t, fastWait(), nil, "gate-cam")
	rec := env.do(t, http.MethodGet, "/api/v1/ws")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
