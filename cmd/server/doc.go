// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

/*
Package main is the entry point for the VTX Link server.

VTX Link turns a fixed set of configured video sources into on-demand HLS
streams on small edge hosts. Each stream is backed by one external relay
process (ffmpeg) that is started when a client first asks for the stream,
stopped after a period without viewers, and restarted with exponential
backoff when it crashes. A shared memory admission gate keeps the host from
starting more relays than it can hold.

# Application Architecture

Every long-running component is a Suture v4 service:

	RootSupervisor ("vtx-link")
	├── CoreSupervisor ("core-layer")
	│   ├── resource-monitor (host memory sampling)
	│   └── websocket-hub (transition feed)
	├── StreamSupervisor ("stream-layer")
	│   └── stream:<name> (one per configured stream)
	└── APISupervisor ("api-layer")
	    └── http-server (HLS delivery, management API, /metrics)

Component initialization order:

 1. Configuration: Koanf v2 with defaults, YAML file and environment
 2. Logging: zerolog with JSON/console output modes
 3. Resource monitor and admission gate
 4. Output manager (HLS root created if missing)
 5. WebSocket hub and stream registry
 6. Chi router and HTTP server
 7. Supervisor tree

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest priority wins):

	Priority: Environment variables > Config file > Defaults

The config file is looked up at CONFIG_PATH, then vtx-link.yaml, config.yaml,
config.yml and /etc/vtx-link/config.yaml. Streams can only be declared in
the file. Common environment variables:

	HTTP_PORT=8080                 # listen port
	HLS_ROOT=/dev/shm/vtx-hls      # output area, tmpfs recommended
	FFMPEG_BINARY=ffmpeg           # relay executable
	PER_STREAM_RESERVE_MB=30       # memory reserved per starting relay
	SAFETY_MARGIN_MB=5             # memory never handed to relays
	LOG_LEVEL=info                 # trace, debug, info, warn, error
	LOG_FORMAT=json                # json or console

A .env file in the working directory is read first; variables already set
in the environment take precedence over it.

# Signal Handling

SIGINT and SIGTERM cancel the root context. Streams stop their relays
gracefully (stop signal, then kill after the grace period), the HTTP server
drains, and services still running after the shutdown timeout are logged by
name.

# Usage

	vtx-link                       # uses ./vtx-link.yaml when present
	CONFIG_PATH=/etc/vtx.yaml vtx-link
*/
package main
