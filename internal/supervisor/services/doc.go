// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

/*
Package services adapts components whose lifecycle is not already a
suture.Service.

# HTTPServerService

Wraps anything with Serve(net.Listener) and Shutdown(ctx), normally an
*http.Server. The listener is opened inside Serve:

	server := &http.Server{Handler: router, ReadTimeout: 15 * time.Second}
	svc := services.NewHTTPServerService(server, cfg.Server.Addr(), cfg.Server.ShutdownTimeout)
	tree.AddAPIService(svc)

	<-svc.Ready()
	log.Info().Str("addr", svc.Addr().String()).Msg("api up")

A port that is already bound makes Serve fail, and suture retries it with
backoff. On cancellation the server gets ShutdownTimeout to drain in-flight
requests (including clients long-polling for a manifest) and Serve returns
ctx.Err().

# WebSocketHubService

Runs websocket.Hub.RunWithContext. The hub closes every dashboard client
when its context is canceled.

Stream supervisors and the resource monitor implement suture.Service
themselves and are added to the tree directly.
*/
package services
