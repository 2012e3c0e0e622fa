// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package api

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/vtxlink/internal/middleware"
	"github.com/tomtom215/vtxlink/internal/models"
)

//go:embed static/index.html
var dashboardHTML []byte

// Router binds handlers to routes.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. The websocket origin check follows the CORS
// origins of mw.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	handler.allowOrigin = mw.AllowsOrigin
	return &Router{handler: handler, chiMiddleware: mw}
}

// SetupChi builds the route tree.
//
//	GET  /                          dashboard
//	GET  /hls/{stream}/{file}       playlists and segments (on-demand trigger)
//	GET  /metrics                   prometheus
//	GET  /api/v1/health/live|ready
//	GET  /api/v1/ws                 transition feed
//	GET  /api/v1/streams[/{name}]
//	POST /api/v1/streams/{name}/start|stop|reset
//	GET  /api/v1/system
//	GET  /api/v1/events?limit=&stream=
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()
	h := router.handler

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog)
	r.Use(router.chiMiddleware.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, models.CodeNotFound, "not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	r.Get("/", serveDashboard)
	r.Get("/hls/{stream}/{file}", h.ServeHLS)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health/live", h.HealthLive)
		r.Get("/health/ready", h.HealthReady)
		r.Get("/ws", h.WebSocket)

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit("api_v1"))
			r.Use(chimiddleware.Compress(5, "application/json"))

			r.Get("/streams", h.ListStreams)
			r.Route("/streams/{name}", func(r chi.Router) {
				r.Get("/", h.GetStream)
				r.Post("/start", h.StartStream)
				r.Post("/stop", h.StopStream)
				r.Post("/reset", h.ResetStream)
			})
			r.Get("/system", h.SystemStatus)
			r.Get("/events", h.Events)
		})
	})

	return r
}

func serveDashboard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(dashboardHTML)
}
