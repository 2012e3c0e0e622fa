// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

/*
Package supervisor runs every long-lived VTX Link service under a suture v4 tree.

	RootSupervisor ("vtx-link")
	├── CoreSupervisor ("core-layer")
	│   ├── ResourceMonitorService
	│   └── WebSocketHubService
	├── StreamSupervisor ("stream-layer")
	│   ├── stream:<name> (one per configured stream)
	│   └── ...
	└── APISupervisor ("api-layer")
	    └── http-server

Suture restarts a service whose Serve returns or panics, with exponential
backoff once FailureThreshold is exceeded. Note that this is unrelated to a
stream's own crash recovery: a relay process exiting is handled inside the
stream's state machine, and Serve only returns when the context is canceled.

Events (service panics, restarts, backoff) are logged through sutureslog and
the logging package's slog bridge:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), cfg.TreeConfig())
	tree.AddCoreService(monitor)
	tree.AddCoreService(services.NewWebSocketHubService(hub))
	for _, s := range registry.Supervisors() {
	    tree.AddStreamService(s)
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.Addr(), cfg.Server.ShutdownTimeout))
	err = tree.Serve(ctx)

On cancellation each layer stops its services and waits up to
ShutdownTimeout for each; a stream service stops its relay gracefully,
escalates to a kill after the stop grace period and purges its output
before returning.
*/
package supervisor
