// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vtxlink/internal/models"
	"github.com/tomtom215/vtxlink/internal/output"
	"github.com/tomtom215/vtxlink/internal/resource"
	"github.com/tomtom215/vtxlink/internal/stream"
)

// fakeRegistry is an in-memory StreamRegistry.
type fakeRegistry struct {
	mu          sync.Mutex
	order       []string
	statuses    map[string]stream.Status
	activateErr map[string]error
	commandErr  error
	onActivate  func(name string)
	history     []stream.Transition

	activations map[string]int
	touches     map[string]int
	commands    []string
}

func newFakeRegistry(names ...string) *fakeRegistry {
	r := &fakeRegistry{
		statuses:    make(map[string]stream.Status),
		activateErr: make(map[string]error),
		activations: make(map[string]int),
		touches:     make(map[string]int),
	}
	for _, n := range names {
		r.order = append(r.order, n)
		r.statuses[n] = stream.Status{Name: n, Source: "rtsp://10.0.0.5/" + n, State: stream.StateIdle, MaxAttempts: 10}
	}
	return r
}

func (r *fakeRegistry) setState(name string, st stream.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.statuses[name]
	s.State = st
	r.statuses[name] = s
}

func (r *fakeRegistry) update(name string, fn func(*stream.Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.statuses[name]
	fn(&s)
	r.statuses[name] = s
}

func (r *fakeRegistry) lookup(name string) (stream.Status, error) {
	st, ok := r.statuses[name]
	if !ok {
		return stream.Status{}, fmt.Errorf("%w: %q", stream.ErrUnknownStream, name)
	}
	return st, nil
}

func (r *fakeRegistry) RequestActivation(_ context.Context, name string) (stream.Status, error) {
	r.mu.Lock()
	st, err := r.lookup(name)
	if err != nil {
		r.mu.Unlock()
		return st, err
	}
	r.activations[name]++
	if err := r.activateErr[name]; err != nil {
		r.mu.Unlock()
		return st, err
	}
	if st.State != stream.StateRunning {
		st.State = stream.StateStarting
		r.statuses[name] = st
	}
	hook := r.onActivate
	r.mu.Unlock()

	if hook != nil {
		hook(name)
	}
	return st, nil
}

func (r *fakeRegistry) command(op, name string, to stream.State) (stream.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, err := r.lookup(name)
	if err != nil {
		return st, err
	}
	r.commands = append(r.commands, op+":"+name)
	if r.commandErr != nil {
		return st, r.commandErr
	}
	st.State = to
	r.statuses[name] = st
	return st, nil
}

func (r *fakeRegistry) RequestStart(_ context.Context, name string) (stream.Status, error) {
	return r.command("start", name, stream.StateStarting)
}

func (r *fakeRegistry) RequestStop(_ context.Context, name string) (stream.Status, error) {
	return r.command("stop", name, stream.StateStopping)
}

func (r *fakeRegistry) RequestReset(_ context.Context, name string) (stream.Status, error) {
	return r.command("reset", name, stream.StateIdle)
}

func (r *fakeRegistry) Touch(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.lookup(name); err != nil {
		return err
	}
	r.touches[name]++
	return nil
}

func (r *fakeRegistry) Status(name string) (stream.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(name)
}

func (r *fakeRegistry) SnapshotAll() []stream.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]stream.Status, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.statuses[n])
	}
	return out
}

func (r *fakeRegistry) History(limit int) []stream.Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]stream.Transition(nil), r.history...)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func (r *fakeRegistry) activationCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activations[name]
}

func (r *fakeRegistry) touchCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.touches[name]
}

// memorySource is a settable MemorySource.
type memorySource struct {
	snap atomic.Pointer[resource.Snapshot]
}

func (m *memorySource) set(s resource.Snapshot) { m.snap.Store(&s) }

func (m *memorySource) Snapshot() (resource.Snapshot, bool) {
	s := m.snap.Load()
	if s == nil {
		return resource.Snapshot{}, false
	}
	return *s, true
}

type testEnv struct {
	registry *fakeRegistry
	output   *output.Manager
	memory   *memorySource
	gate     *resource.Gate
	handler  *Handler
	router   http.Handler
}

func newTestEnv(t *testing.T, cfg HandlerConfig, mwCfg *ChiMiddlewareConfig, names ...string) *testEnv {
	t.Helper()

	out, err := output.NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := out.EnsureRoot(); err != nil {
		t.Fatalf("EnsureRoot: %v", err)
	}

	reg := newFakeRegistry(names...)
	mem := &memorySource{}
	gate := resource.NewGate(mem, resource.GateConfig{PerStreamReserve: 30 << 20, SafetyMargin: 5 << 20})

	h := NewHandler(cfg, reg, out, mem, gate, nil)
	router := NewRouter(h, NewChiMiddleware(mwCfg)).SetupChi()
	return &testEnv{registry: reg, output: out, memory: mem, gate: gate, handler: h, router: router}
}

// writeMedia creates a media file in the stream's output directory.
func (e *testEnv) writeMedia(t *testing.T, name, file, body string) {
	t.Helper()
	dir, err := e.output.Resolve(name)
	if err != nil {
		t.Fatalf("Resolve(%q): %v", name, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, file), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", file, err)
	}
}

func (e *testEnv) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

type envelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) envelope {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Status != models.StatusError || env.Error == nil {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
	if env.Error.Code != code {
		t.Errorf("error code = %q, want %q", env.Error.Code, code)
	}
	return env
}

func fastWait() HandlerConfig {
	return HandlerConfig{ManifestWait: time.Second, ManifestPollInterval: 5 * time.Millisecond}
}

func newRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

func serve(e *testEnv, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}
