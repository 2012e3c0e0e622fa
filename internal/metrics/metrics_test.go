// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordTransition(t *testing.T) {
	RecordTransition("metrics-cam", "idle", "starting")

	if got := testutil.ToFloat64(StreamState.WithLabelValues("metrics-cam", "starting")); got != 1 {
		t.Errorf("starting gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(StreamState.WithLabelValues("metrics-cam", "idle")); got != 0 {
		t.Errorf("idle gauge = %v, want 0", got)
	}

	RecordTransition("metrics-cam", "starting", "running")
	if got := testutil.ToFloat64(StreamState.WithLabelValues("metrics-cam", "starting")); got != 0 {
		t.Errorf("starting gauge after running = %v, want 0", got)
	}
	if got := testutil.ToFloat64(StreamTransitions.WithLabelValues("metrics-cam", "starting", "running")); got != 1 {
		t.Errorf("transition counter = %v, want 1", got)
	}
}

func TestRecordTransitionSelfLoop(t *testing.T) {
	RecordTransition("metrics-loop", "crashed_backoff", "crashed_backoff")
	if got := testutil.ToFloat64(StreamState.WithLabelValues("metrics-loop", "crashed_backoff")); got != 1 {
		t.Errorf("self-loop must keep the state gauge at 1, got %v", got)
	}
}

func TestRecordSpawn(t *testing.T) {
	tests := []struct {
		name   string
		result string
		label  string
	}{
		{name: "success", result: "", label: "ok"},
		{name: "missing executable", result: "not_found", label: "not_found"},
		{name: "timeout", result: "timeout", label: "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(StreamSpawns.WithLabelValues("metrics-spawn", tt.label))
			RecordSpawn("metrics-spawn", tt.result)
			after := testutil.ToFloat64(StreamSpawns.WithLabelValues("metrics-spawn", tt.label))
			if after-before != 1 {
				t.Errorf("counter delta = %v, want 1", after-before)
			}
		})
	}
}

func TestRecordMemorySample(t *testing.T) {
	t.Run("success updates gauges", func(t *testing.T) {
		RecordMemorySample(64<<20, 20<<20, 6<<20, time.Millisecond, nil)
		if got := testutil.ToFloat64(HostMemoryAvailable); got != float64(20<<20) {
			t.Errorf("available = %v", got)
		}
		if got := testutil.ToFloat64(SupervisorRSS); got != float64(6<<20) {
			t.Errorf("rss = %v", got)
		}
	})

	t.Run("error keeps previous gauges", func(t *testing.T) {
		before := testutil.ToFloat64(MemorySampleErrors)
		RecordMemorySample(0, 0, 0, time.Millisecond, errors.New("proc unavailable"))
		if got := testutil.ToFloat64(MemorySampleErrors); got-before != 1 {
			t.Errorf("error counter delta = %v, want 1", got-before)
		}
		if got := testutil.ToFloat64(HostMemoryAvailable); got != float64(20<<20) {
			t.Errorf("available changed on error: %v", got)
		}
	})
}

func TestRecordAdmission(t *testing.T) {
	before := testutil.ToFloat64(AdmissionDecisions.WithLabelValues("denied"))
	RecordAdmission("denied")
	if got := testutil.ToFloat64(AdmissionDecisions.WithLabelValues("denied")); got-before != 1 {
		t.Errorf("denied delta = %v, want 1", got-before)
	}
}

func TestTrackActiveRequestConcurrent(t *testing.T) {
	start := testutil.ToFloat64(APIActiveRequests)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			TrackActiveRequest(true)
			TrackActiveRequest(false)
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(APIActiveRequests); got != start {
		t.Errorf("active requests = %v, want %v", got, start)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	RecordAPIRequest("GET", "/api/v1/streams", "200", 3*time.Millisecond)
	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/streams", "200")); got < 1 {
		t.Errorf("request counter = %v, want >= 1", got)
	}
}
