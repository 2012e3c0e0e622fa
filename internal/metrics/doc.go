// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered on the default registry through promauto and are
exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8080/metrics

# Available Metrics

Stream Lifecycle:
  - vtx_stream_state: 1 for the current state of each stream (gauge)
    Labels: stream, state
  - vtx_stream_transitions_total: State transitions (counter)
    Labels: stream, from, to
  - vtx_stream_spawns_total: Spawn attempts by outcome (counter)
    Labels: stream, result
  - vtx_stream_crashes_total: Unexpected exits while running (counter)
  - vtx_stream_attempt_count: Consecutive failed starts (gauge)
  - vtx_stream_activations_total: On-demand activation requests (counter)

Admission Control:
  - vtx_admission_decisions_total: Gate decisions (counter)
    Labels: result (granted, denied, no_snapshot)
  - vtx_admission_pending_reservations: Admitted starts not yet sampled (gauge)

Host Memory:
  - vtx_host_memory_total_bytes, vtx_host_memory_available_bytes (gauge)
  - vtx_supervisor_rss_bytes: Supervisor plus relay children RSS (gauge)
  - vtx_memory_sample_duration_seconds (histogram)
  - vtx_memory_sample_errors_total (counter)

API:
  - vtx_api_requests_total, vtx_api_request_duration_seconds
  - vtx_api_active_requests, vtx_api_rate_limit_hits_total

WebSocket:
  - vtx_websocket_connections, vtx_websocket_messages_sent_total,
    vtx_websocket_messages_received_total, vtx_websocket_errors_total

# Thread Safety

All metric operations are thread-safe and can be called from any goroutine.
*/
package metrics
