// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

/*
Package middleware holds the HTTP middleware shared by every route.

  - RequestID: request and correlation IDs in the logging context, echoed in
    the X-Request-ID response header
  - PrometheusMetrics: vtx_api_* request metrics labelled by chi route pattern
  - AccessLog: one structured log line per request

All are plain func(http.Handler) http.Handler and are mounted with r.Use:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog)

CORS and rate limiting come from go-chi/cors and go-chi/httprate and are
configured in the api package.
*/
package middleware
