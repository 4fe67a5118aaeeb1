// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

/*
Package middleware provides the chi-compatible HTTP middleware shared by the
relay's routes.

  - RequestID: X-Request-ID propagation into the logging context
  - PrometheusMetrics: request counters and latency histograms keyed by route pattern
  - Compression: gzip for JSON responses, never for WebSocket upgrades

All middleware has the func(http.Handler) http.Handler shape so it can be
passed straight to chi's r.Use:

	r.Use(middleware.RequestID)
	r.With(middleware.Compression).Get("/mapa", h.Places)
*/
package middleware
