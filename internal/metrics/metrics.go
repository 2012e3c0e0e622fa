// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Stream lifecycle (state, transitions, spawns, crashes)
// - Admission control decisions
// - Host memory samples
// - API and HLS endpoint latency
// - WebSocket connections

var (
	// Stream Lifecycle Metrics
	StreamState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vtx_stream_state",
			Help: "Current stream state (1 for the active state, 0 otherwise)",
		},
		[]string{"stream", "state"},
	)

	StreamTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vtx_stream_transitions_total",
			Help: "Total number of stream state transitions",
		},
		[]string{"stream", "from", "to"},
	)

	StreamSpawns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vtx_stream_spawns_total",
			Help: "Total number of relay process spawn attempts",
		},
		[]string{"stream", "result"}, // "ok", "not_found", "permission", "exited_early", "timeout", "filesystem", "other"
	)

	StreamCrashes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vtx_stream_crashes_total",
			Help: "Total number of unexpected relay process exits while running",
		},
		[]string{"stream"},
	)

	StreamAttempts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vtx_stream_attempt_count",
			Help: "Current consecutive failed start count per stream",
		},
		[]string{"stream"},
	)

	StreamActivations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vtx_stream_activations_total",
			Help: "Total number of on-demand activation requests",
		},
		[]string{"stream", "result"}, // "accepted", "exhausted", "not_ready", "disabled"
	)

	// Admission Control Metrics
	AdmissionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vtx_admission_decisions_total",
			Help: "Total number of admission gate decisions",
		},
		[]string{"result"}, // "granted", "denied", "no_snapshot"
	)

	AdmissionPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vtx_admission_pending_reservations",
			Help: "Number of admitted starts whose footprint is not yet reflected in a memory sample",
		},
	)

	// Host Memory Metrics
	HostMemoryTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vtx_host_memory_total_bytes",
			Help: "Total host memory in bytes",
		},
	)

	HostMemoryAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vtx_host_memory_available_bytes",
			Help: "Available host memory in bytes at the last sample",
		},
	)

	SupervisorRSS = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vtx_supervisor_rss_bytes",
			Help: "Resident set size of the supervisor and its relay processes",
		},
	)

	MemorySampleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vtx_memory_sample_duration_seconds",
			Help:    "Duration of host memory samples",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	MemorySampleErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vtx_memory_sample_errors_total",
			Help: "Total number of failed host memory samples",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vtx_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vtx_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}, // manifest waits can take seconds
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vtx_api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vtx_api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vtx_websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vtx_websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vtx_websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vtx_websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)
)

// SetStreamState marks state as the current state of stream without
// touching any other state label.
func SetStreamState(stream, state string) {
	StreamState.WithLabelValues(stream, state).Set(1)
}

// RecordTransition records a state transition and moves the state gauge.
func RecordTransition(stream, from, to string) {
	StreamTransitions.WithLabelValues(stream, from, to).Inc()
	if from != to {
		StreamState.WithLabelValues(stream, from).Set(0)
	}
	StreamState.WithLabelValues(stream, to).Set(1)
}

// RecordAttempt records the current attempt counter of a stream.
func RecordAttempt(stream string, attempt int) {
	StreamAttempts.WithLabelValues(stream).Set(float64(attempt))
}

// RecordSpawn records a spawn attempt outcome. An empty result means success.
func RecordSpawn(stream, result string) {
	if result == "" {
		result = "ok"
	}
	StreamSpawns.WithLabelValues(stream, result).Inc()
}

// RecordCrash records an unexpected exit of a running relay.
func RecordCrash(stream string) {
	StreamCrashes.WithLabelValues(stream).Inc()
}

// RecordActivation records the outcome of an on-demand activation request.
func RecordActivation(stream, result string) {
	StreamActivations.WithLabelValues(stream, result).Inc()
}

// RecordAdmission records one admission gate decision.
func RecordAdmission(result string) {
	AdmissionDecisions.WithLabelValues(result).Inc()
}

// RecordMemorySample records the result of one host memory sample.
func RecordMemorySample(total, available, rss uint64, duration time.Duration, err error) {
	MemorySampleDuration.Observe(duration.Seconds())
	if err != nil {
		MemorySampleErrors.Inc()
		return
	}
	HostMemoryTotal.Set(float64(total))
	HostMemoryAvailable.Set(float64(available))
	SupervisorRSS.Set(float64(rss))
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
