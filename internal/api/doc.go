// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

/*
Package api provides the HTTP layer for the shared map.

Routes:

	GET /mapa          flat JSON array of places, insertion order
	GET /ws            websocket upgrade for the real-time marker channel
	GET /health        health summary (models.HealthStatus)
	GET /health/live   liveness probe
	GET /health/ready  readiness probe (503 when the store is unreachable)
	GET /metrics       Prometheus metrics

Middleware stack (all routes): request id with logging context, RealIP,
Recoverer, CORS (go-chi/cors). /mapa additionally gets security headers,
Prometheus request metrics, gzip compression and an httprate limit keyed by
client IP.

/mapa answers with a bare array rather than the models.APIResponse envelope
used by the health endpoints, since map clients consume it directly:

	[{"id":"2026-01-02T10:00:00.000Z","nombre":"Nuevo Lugar","lat":40.4,"lng":-3.7}]
*/
package api
