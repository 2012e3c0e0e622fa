// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/vtxlink/internal/api"
	"github.com/tomtom215/vtxlink/internal/config"
	"github.com/tomtom215/vtxlink/internal/logging"
	"github.com/tomtom215/vtxlink/internal/output"
	"github.com/tomtom215/vtxlink/internal/process"
	"github.com/tomtom215/vtxlink/internal/resource"
	"github.com/tomtom215/vtxlink/internal/stream"
	"github.com/tomtom215/vtxlink/internal/supervisor"
	"github.com/tomtom215/vtxlink/internal/supervisor/services"
	"github.com/tomtom215/vtxlink/internal/websocket"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stdout,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("hls_root", cfg.Server.HLSRoot).
		Str("ffmpeg", cfg.Server.FFmpegBinary).
		Int("streams", len(cfg.Streams)).
		Msg("Starting VTX Link")

	tree, err := build(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, stopping streams...")
		err = <-errCh
	case err = <-errCh:
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	// A service that outlived the shutdown timeout may leave a relay behind.
	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	logging.Info().Msg("VTX Link stopped")
}

// build wires every component and registers the long-running ones on the
// supervisor tree. Nothing is started until the tree is served.
func build(cfg *config.Config) (*supervisor.SupervisorTree, error) {
	monitor := resource.NewMonitor(resource.NewHostSampler(), cfg.Resources.SampleInterval)
	gate := resource.NewGate(monitor, cfg.GateConfig())

	outputs, err := output.NewManager(cfg.Server.HLSRoot, nil)
	if err != nil {
		return nil, err
	}
	if err := outputs.EnsureRoot(); err != nil {
		return nil, err
	}

	hub := websocket.NewHub()
	registry, err := stream.NewRegistry(cfg.StreamConfigs(), cfg.StreamOptions(), stream.Deps{
		Runner:   process.NewExecRunner(),
		Gate:     gate,
		Output:   outputs,
		Observer: hub,
	})
	if err != nil {
		return nil, err
	}
	hub.SetSnapshotFunc(func() interface{} { return registry.SnapshotAll() })

	handler := api.NewHandler(api.HandlerConfig{
		ManifestWait:         cfg.Server.ManifestWait,
		ManifestPollInterval: cfg.Server.ManifestPollInterval,
	}, registry, outputs, monitor, gate, hub)

	mwCfg := api.DefaultChiMiddlewareConfig()
	if len(cfg.API.CORSOrigins) > 0 {
		mwCfg.CORSAllowedOrigins = cfg.API.CORSOrigins
	}
	mwCfg.RateLimitRequests = cfg.API.RateLimitReqs
	mwCfg.RateLimitWindow = cfg.API.RateLimitWindow
	mwCfg.RateLimitDisabled = cfg.API.RateLimitDisabled

	router := api.NewRouter(handler, api.NewChiMiddleware(mwCfg))
	server := &http.Server{
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), cfg.TreeConfig())
	if err != nil {
		return nil, err
	}

	tree.AddCoreService(monitor)
	tree.AddCoreService(services.NewWebSocketHubService(hub))
	for _, s := range registry.Supervisors() {
		tree.AddStreamService(s)
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.Addr(), cfg.Server.ShutdownTimeout))

	return tree, nil
}
