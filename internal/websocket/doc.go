// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

/*
Package websocket pushes live stream state to dashboard clients.

The Hub implements stream.Observer: every state transition of every stream
is broadcast as a "stream_transition" message. A client receives one
"stream_snapshot" message (the ordered status of all streams) right after
connecting, then transitions as they happen:

	{"type":"stream_transition","data":{"stream":"gate-cam","from":"starting","to":"running","attempt":0,"reason":"manifest ready","at":"..."}}

Clients may send {"type":"ping"} and receive {"type":"pong"}.

Each client runs a read goroutine and a write goroutine. The hub itself runs
under the supervisor tree through services.WebSocketHubService and
disconnects every client when it stops.
*/
package websocket
