// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

/*
Package api is the HTTP surface of VTX Link, built on chi.

# HLS

GET /hls/{stream}/{file} serves the relay output. Requesting a playlist
(.m3u8) is what starts a stream on demand:

	player            api                       registry
	  | GET index.m3u8  |                          |
	  |---------------->| RequestActivation(name) |
	  |                 |------------------------->| Idle -> Starting
	  |                 | poll for index.m3u8      |
	  |                 | (ManifestWait)           |
	  |<----------------| 200 playlist             |
	  | GET seg0.ts     | Touch(name)              |
	  |---------------->|------------------------->|

Segment requests refresh the stream's activity timestamp so idle
reclamation leaves a watched stream alone. Every HLS response carries
Access-Control-Allow-Origin: *.

# Management

Under /api/v1, rate limited per client IP (go-chi/httprate) and gzip
compressed:

	GET  /streams                   ordered status snapshot
	GET  /streams/{name}
	POST /streams/{name}/start      skip a pending backoff wait
	POST /streams/{name}/stop       graceful stop
	POST /streams/{name}/reset      clear disabled / backoff
	GET  /system                    host memory and admission headroom
	GET  /events?limit=N&stream=S   transition history ring

Plus /api/v1/health/live, /api/v1/health/ready, the /api/v1/ws dashboard
feed, /metrics and the embedded dashboard at /.

# Errors

All JSON responses use models.APIResponse. Stream errors map to:

	stream.ErrUnknownStream       404 STREAM_NOT_FOUND
	output.ErrInvalidFileName     400 INVALID_FILE_NAME
	stream.ErrStreamDisabled      409 STREAM_DISABLED
	stream.ErrResourceExhausted   503 RESOURCE_EXHAUSTED  + Retry-After
	stream.ErrNotReady            503 STREAM_NOT_READY    + Retry-After

Retry-After is the time until the stream's next retry when it is backing
off, otherwise HandlerConfig.RetryAfter.
*/
package api
