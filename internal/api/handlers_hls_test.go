// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vtxlink/internal/models"
	"github.com/tomtom215/vtxlink/internal/stream"
)

func TestServeHLS_ManifestActivatesAndWaits(t *testing.T) {
	env := newTestEnv(t, fastWait(), nil, "gate-cam")
	env.registry.onActivate = func(name string) {
		go func() {
			time.Sleep(30 * time.Millisecond)
			env.writeMedia(t, name, "index.m3u8", "#EXTM3U\n")
			env.registry.setState(name, stream.StateRunning)
		}()
	}

	rec := env.do(t, http.MethodGet, "/hls/gate-cam/index.m3u8")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "#EXTM3U\n" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/vnd.apple.mpegurl" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", got)
	}
	if n := env.registry.activationCount("gate-cam"); n != 1 {
		t.Errorf("activations = %d, want 1", n)
	}
}

func TestServeHLS_ManifestOfRunningStreamServedImmediately(t *testing.T) {
	env := newTestEnv(t, HandlerConfig{ManifestWait: time.Hour}, nil, "gate-cam")
	env.registry.setState("gate-cam", stream.StateRunning)
	env.writeMedia(t, "gate-cam", "index.m3u8", "#EXTM3U\n")

	start := time.Now()
	rec := env.do(t, http.MethodGet, "/hls/gate-cam/index.m3u8")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if time.Since(start) > time.Second {
		t.Error("ready playlist should not wait")
	}
	if n := env.registry.activationCount("gate-cam"); n != 1 {
		t.Errorf("playlist requests always go through activation, got %d", n)
	}
}

func TestServeHLS_ManifestTimeout(t *testing.T) {
	cfg := HandlerConfig{ManifestWait: 50 * time.Millisecond, ManifestPollInterval: 5 * time.Millisecond}
	env := newTestEnv(t, cfg, nil, "gate-cam")

	start := time.Now()
	rec := env.do(t, http.MethodGet, "/hls/gate-cam/index.m3u8")
	elapsed := time.Since(start)

	envl := expectError(t, rec, http.StatusServiceUnavailable, models.CodeNotReady)
	if rec.Header().Get("Retry-After") != strconv.Itoa(int(DefaultRetryAfter/time.Second)) {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	if envl.Error.Details["state"] != "starting" {
		t.Errorf("details = %v", envl.Error.Details)
	}
	if elapsed < 50*time.Millisecond {
		t.Errorf("returned after %v, before the manifest wait elapsed", elapsed)
	}
}

func TestServeHLS_ManifestWaitEndsWhenRelayFails(t *testing.T) {
	env := newTestEnv(t, HandlerConfig{ManifestWait: 5 * time.Second, ManifestPollInterval: 5 * time.Millisecond}, nil, "gate-cam")
	retryAt := time.Now().Add(10 * time.Second)
	env.registry.onActivate = func(name string) {
		go func() {
			time.Sleep(20 * time.Millisecond)
			env.registry.update(name, func(st *stream.Status) {
				st.State = stream.StateCrashedBackoff
				st.Attempt = 1
				st.RetryAt = &retryAt
				st.LastExitReason = "exit code 1: Connection refused"
			})
		}()
	}

	start := time.Now()
	rec := env.do(t, http.MethodGet, "/hls/gate-cam/index.m3u8")
	if time.Since(start) > 2*time.Second {
		t.Error("wait should end as soon as the stream leaves its live states")
	}

	envl := expectError(t, rec, http.StatusServiceUnavailable, models.CodeNotReady)
	if got := rec.Header().Get("Retry-After"); got != "10" && got != "9" {
		t.Errorf("Retry-After = %q, want the time until the next retry", got)
	}
	if envl.Error.Details["last_exit_reason"] != "exit code 1: Connection refused" {
		t.Errorf("details = %v", envl.Error.Details)
	}
}

func TestServeHLS_ManifestOfDisabledStreamAfterWait(t *testing.T) {
	env := newTestEnv(t, fastWait(), nil, "gate-cam")
	env.registry.onActivate = func(name string) {
		env.registry.setState(name, stream.StateDisabled)
	}

	rec := env.do(t, http.MethodGet, "/hls/gate-cam/index.m3u8")
	expectError(t, rec, http.StatusConflict, models.CodeStreamDisabled)
}

func TestServeHLS_ActivationErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		code       string
		retryAfter bool
	}{
		{"exhausted", fmt.Errorf("%w: 1 MB available", stream.ErrResourceExhausted), http.StatusServiceUnavailable, models.CodeResourceExhausted, true},
		{"disabled", stream.ErrStreamDisabled, http.StatusConflict, models.CodeStreamDisabled, false},
		{"stopping", fmt.Errorf("%w: stopping", stream.ErrNotReady), http.StatusServiceUnavailable, models.CodeNotReady, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, fastWait(), nil, "gate-cam")
			env.registry.activateErr["gate-cam"] = tt.err

			rec := env.do(t, http.MethodGet, "/hls/gate-cam/index.m3u8")
			expectError(t, rec, tt.status, tt.code)
			if got := rec.Header().Get("Retry-After") != ""; got != tt.retryAfter {
				t.Errorf("Retry-After present = %v, want %v", got, tt.retryAfter)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
				t.Errorf("errors must be readable by players, ACAO = %q", got)
			}
		})
	}
}

func TestServeHLS_SegmentTouchesLiveStream(t *testing.T) {
	env := newTestEnv(t, fastWait(), nil, "gate-cam")
	env.registry.setState("gate-cam", stream.StateRunning)
	env.writeMedia(t, "gate-cam", "seg42.ts", "segment-bytes")

	rec := env.do(t, http.MethodGet, "/hls/gate-cam/seg42.ts")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "video/mp2t" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.String() != "segment-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if env.registry.touchCount("gate-cam") != 1 {
		t.Error("segment request should refresh activity")
	}
	if env.registry.activationCount("gate-cam") != 0 {
		t.Error("segment of a live stream should not go through activation")
	}
}

func TestServeHLS_SegmentOfIdleStreamActivates(t *testing.T) {
	env := newTestEnv(t, fastWait(), nil, "gate-cam")

	rec := env.do(t, http.MethodGet, "/hls/gate-cam/seg1.ts")

	expectError(t, rec, http.StatusNotFound, models.CodeNotFound)
	if env.registry.activationCount("gate-cam") != 1 {
		t.Error("segment request for an idle stream should activate it")
	}
}

func TestServeHLS_Rejections(t *testing.T) {
	env := newTestEnv(t, fastWait(), nil, "gate-cam")

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"unknown stream", "/hls/nope/index.m3u8", http.StatusNotFound, models.CodeStreamNotFound},
		{"unsupported extension", "/hls/gate-cam/config.yaml", http.StatusBadRequest, models.CodeInvalidFileName},
		{"hidden file", "/hls/gate-cam/.index.m3u8", http.StatusBadRequest, models.CodeInvalidFileName},
		{"encoded traversal", "/hls/gate-cam/..%2F..%2Fetc.ts", http.StatusBadRequest, models.CodeInvalidFileName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.target)
			expectError(t, rec, tt.status, tt.code)
		})
	}

	if env.registry.activationCount("gate-cam") != 0 {
		t.Error("rejected requests must not activate the stream")
	}
}

func TestServeHLS_CORSPreflight(t *testing.T) {
	env := newTestEnv(t, fastWait(), nil, "gate-cam")

	req := newRequest(http.MethodOptions, "/hls/gate-cam/index.m3u8")
	req.Header.Set("Origin", "http://player.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := serve(env, req)

	if rec.Code != http.StatusOK && rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if env.registry.activationCount("gate-cam") != 0 {
		t.Error("preflight must not activate the stream")
	}
}

func TestRespondJSON_RequestIDInMetadata(t *testing.T) {
	env := newTestEnv(t, fastWait(), nil, "gate-cam")

	req := newRequest(http.MethodGet, "/hls/nope/index.m3u8")
	req.Header.Set("X-Request-ID", "trace-123")
	rec := serve(env, req)

	var env2 struct {
		Metadata models.Metadata `json:"metadata"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env2); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env2.Metadata.RequestID != "trace-123" {
		t.Errorf("metadata.request_id = %q", env2.Metadata.RequestID)
	}
	if rec.Header().Get("X-Request-ID") != "trace-123" {
		t.Errorf("X-Request-ID header = %q", rec.Header().Get("X-Request-ID"))
	}
}
