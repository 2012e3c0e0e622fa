// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

/*
Package config loads and validates VTX Link configuration.

# Configuration Sources

Sources are layered with koanf, later layers overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. A YAML file: $CONFIG_PATH, else the first of vtx-link.yaml, config.yaml,
    config.yml, /etc/vtx-link/config.yaml
 3. Environment variables listed in envMappings (HTTP_PORT, HLS_ROOT,
    PER_STREAM_RESERVE_MB, LOG_LEVEL, ...)

A .env file in the working directory is read into the environment before
layer 3. Streams can only be defined in the YAML file.

# Example

	server:
	  port: 8080
	  ffmpeg_binary: /usr/bin/ffmpeg
	  hls_root: /dev/shm/vtx-hls
	resources:
	  per_stream_reserve_mb: 30
	  safety_margin_mb: 5
	streams:
	  - name: gate-cam
	    source: rtsp://192.168.1.20:554/stream1
	    idle_timeout: 30
	    output_args: [-c, copy, -f, hls, -hls_time, "2", -hls_flags, delete_segments, "{output_dir}/index.m3u8"]
	    retry:
	      max_attempts: 5
	      initial_backoff_sec: 2
	      max_backoff_sec: 30

Each stream entry is decoded over its own defaults (retry 10 attempts, 2s
initial, 60s cap), so omitted retry fields keep their defaults.

# Conversions

Config.StreamConfigs, Config.StreamOptions, Config.GateConfig and
Config.TreeConfig translate the loaded file into the types the stream,
resource and supervisor packages consume.
*/
package config
