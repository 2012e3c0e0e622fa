// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package stream

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/vtxlink/internal/backoff"
	"github.com/tomtom215/vtxlink/internal/output"
	"github.com/tomtom215/vtxlink/internal/process"
	"github.com/tomtom215/vtxlink/internal/resource"
)

const mb = 1 << 20

// behavior controls what a fake relay does once spawned.
type behavior int

const (
	// healthy writes a manifest and exits when asked to stop.
	healthy behavior = iota
	// exitEarly exits with code 1 right after spawning.
	exitEarly
	// silent runs but never writes output.
	silent
	// ignoreStop writes output but only exits on kill.
	ignoreStop
	// notFound fails to spawn.
	notFound
	// slowStop writes output and exits shortly after a stop signal.
	slowStop
)

type fakeRunner struct {
	mu         sync.Mutex
	plan       []behavior
	fallback   behavior
	handles    []*fakeHandle
	spawns     int
	staleSeen  int
	violations int
	live       atomic.Int32
}

func newFakeRunner(fallback behavior, plan ...behavior) *fakeRunner {
	return &fakeRunner{fallback: fallback, plan: plan}
}

func (r *fakeRunner) setFallback(b behavior) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = b
}

func (r *fakeRunner) Spawn(_ context.Context, spec process.Spec) (process.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.live.Load() > 0 {
		r.violations++
	}

	b := r.fallback
	if len(r.plan) > 0 {
		b = r.plan[0]
		r.plan = r.plan[1:]
	}
	if b == notFound {
		return nil, &process.SpawnError{Kind: process.KindNotFound, Err: errors.New("exec: \"ffmpeg\": executable file not found in $PATH")}
	}

	if entries, err := os.ReadDir(spec.Dir); err == nil && len(entries) > 0 {
		r.staleSeen++
	}

	r.spawns++
	h := &fakeHandle{
		pid:      1000 + r.spawns,
		behavior: b,
		done:     make(chan struct{}),
		runner:   r,
		spec:     spec,
	}
	r.handles = append(r.handles, h)
	r.live.Add(1)

	switch b {
	case healthy, ignoreStop, slowStop:
		_ = os.WriteFile(filepath.Join(spec.Dir, "index.m3u8"), []byte("#EXTM3U\n"), 0o644)
	case exitEarly:
		go h.exit(process.ExitInfo{Code: 1, StderrTail: "Connection refused"})
	}
	return h, nil
}

func (r *fakeRunner) spawnCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.spawns
}

func (r *fakeRunner) lastHandle() *fakeHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.handles) == 0 {
		return nil
	}
	return r.handles[len(r.handles)-1]
}

func (r *fakeRunner) handle(i int) *fakeHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[i]
}

func (r *fakeRunner) staleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.staleSeen
}

func (r *fakeRunner) violationCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.violations
}

type fakeHandle struct {
	pid      int
	behavior behavior
	done     chan struct{}
	once     sync.Once
	info     process.ExitInfo
	runner   *fakeRunner
	spec     process.Spec
	stops    atomic.Int32
	kills    atomic.Int32
}

func (h *fakeHandle) exit(info process.ExitInfo) {
	h.once.Do(func() {
		info.ExitedAt = time.Now()
		h.info = info
		h.runner.live.Add(-1)
		close(h.done)
	})
}

// crash simulates the relay dying on its own.
func (h *fakeHandle) crash(code int) {
	h.exit(process.ExitInfo{Code: code, StderrTail: "Conversion failed!"})
}

func (h *fakeHandle) PID() int { return h.pid }

func (h *fakeHandle) SignalStop() error {
	h.stops.Add(1)
	switch h.behavior {
	case ignoreStop:
	case slowStop:
		go func() {
			time.Sleep(60 * time.Millisecond)
			h.exit(process.ExitInfo{Code: 255})
		}()
	default:
		// Exit code is irrelevant while stopping.
		go h.exit(process.ExitInfo{Code: 255})
	}
	return nil
}

func (h *fakeHandle) ForceKill() error {
	h.kills.Add(1)
	go h.exit(process.ExitInfo{Code: -1, Signal: "killed"})
	return nil
}

func (h *fakeHandle) Done() <-chan struct{} { return h.done }

func (h *fakeHandle) ExitInfo() process.ExitInfo {
	select {
	case <-h.done:
		return h.info
	default:
		return process.ExitInfo{Code: -1}
	}
}

// memorySource is a settable snapshot source for the admission gate.
type memorySource struct {
	available atomic.Uint64
}

func (m *memorySource) Snapshot() (resource.Snapshot, bool) {
	return resource.Snapshot{AvailableMemoryBytes: m.available.Load(), SampledAt: time.Now()}, true
}

type harness struct {
	t        *testing.T
	runner   *fakeRunner
	memory   *memorySource
	gate     *resource.Gate
	output   *output.Manager
	registry *Registry
	cancel   context.CancelFunc
	done     []chan error
}

func testOptions() Options {
	return Options{
		Executable:             "ffmpeg",
		SpawnTimeout:           300 * time.Millisecond,
		OutputCheckInterval:    5 * time.Millisecond,
		StopGracePeriod:        150 * time.Millisecond,
		StabilityWindow:        time.Hour,
		AdmissionRetryInterval: 20 * time.Millisecond,
		CommandTimeout:         2 * time.Second,
		HistorySize:            64,
	}
}

func testConfig(name string) Config {
	return Config{
		Name:       name,
		Source:     "rtsp://10.0.0.5/" + name,
		OutputArgs: []string{"-f", "hls", "{output_dir}/index.m3u8"},
		Retry: backoff.Policy{
			MaxAttempts:    5,
			InitialBackoff: 50 * time.Millisecond,
			MaxBackoff:     200 * time.Millisecond,
		},
	}
}

func newHarness(t *testing.T, runner *fakeRunner, opts Options, cfgs ...Config) *harness {
	t.Helper()

	out, err := output.NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	mem := &memorySource{}
	mem.available.Store(64 * mb)
	gate := resource.NewGate(mem, resource.GateConfig{PerStreamReserve: 8 * mb, SafetyMargin: 10 * mb})

	reg, err := NewRegistry(cfgs, opts, Deps{Runner: runner, Gate: gate, Output: out})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	h := &harness{t: t, runner: runner, memory: mem, gate: gate, output: out, registry: reg}
	h.start()
	t.Cleanup(h.stop)
	return h
}

func (h *harness) start() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	for _, s := range h.registry.Supervisors() {
		done := make(chan error, 1)
		h.done = append(h.done, done)
		go func(s *Supervisor) { done <- s.Serve(ctx) }(s)
	}
}

func (h *harness) stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	h.cancel = nil
	for _, done := range h.done {
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			h.t.Error("supervisor did not stop")
		}
	}
}

func (h *harness) status(name string) Status {
	h.t.Helper()
	st, err := h.registry.Status(name)
	if err != nil {
		h.t.Fatalf("Status(%q): %v", name, err)
	}
	return st
}

func (h *harness) waitState(name string, want State) Status {
	h.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if st := h.status(name); st.State == want {
			return st
		}
		time.Sleep(2 * time.Millisecond)
	}
	st := h.status(name)
	h.t.Fatalf("stream %q state = %s, want %s (last error %q)", name, st.State, want, st.LastError)
	return st
}

// states returns the To states recorded for name, in order.
func (h *harness) states(name string) []State {
	var out []State
	for _, tr := range h.registry.History(0) {
		if tr.Stream == name {
			out = append(out, tr.To)
		}
	}
	return out
}

func (h *harness) transitions(name string) []Transition {
	var out []Transition
	for _, tr := range h.registry.History(0) {
		if tr.Stream == name {
			out = append(out, tr)
		}
	}
	return out
}
