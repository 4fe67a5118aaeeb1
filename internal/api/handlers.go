// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/mapasync/internal/logging"
	"github.com/tomtom215/mapasync/internal/models"
	ws "github.com/tomtom215/mapasync/internal/websocket"
)

// PlaceLister reads the server-side place mirror.
type PlaceLister interface {
	Places(ctx context.Context) ([]models.Place, error)
	Count(ctx context.Context) (int, error)
}

// Hub accepts upgraded websocket connections.
type Hub interface {
	Attach(conn *websocket.Conn) (*ws.Client, error)
	GetClientCount() int
}

// BusStatus reports event bus state for health checks.
type BusStatus interface {
	Backend() string
	BreakerState() string
}

// HandlerOptions carries build and backend details shown by /health.
type HandlerOptions struct {
	Version      string
	StoreBackend string
	Bus          BusStatus
}

// Handler serves the map endpoints.
type Handler struct {
	places    PlaceLister
	hub       Hub
	opts      HandlerOptions
	origins   func(origin string) bool
	startTime time.Time
}

// NewHandler creates a handler. hub may be nil, in which case /ws answers 503.
func NewHandler(places PlaceLister, hub Hub, opts HandlerOptions) *Handler {
	return &Handler{
		places:    places,
		hub:       hub,
		opts:      opts,
		origins:   func(string) bool { return true },
		startTime: time.Now(),
	}
}

// Places handles GET /mapa.
func (h *Handler) Places(w http.ResponseWriter, r *http.Request) {
	list, err := h.places.Places(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to list places", err)
		return
	}
	if list == nil {
		list = []models.Place{}
	}

	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, r, http.StatusOK, list)
	logging.Ctx(r.Context()).Debug().Int("places", len(list)).Msg("places listed")
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if h.origins(origin) {
		return true
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket handles GET /ws.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "WebSocket service unavailable", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	if _, err := h.hub.Attach(conn); err != nil {
		logging.Warn().Err(err).Msg("WebSocket connection rejected")
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "shutting down"))
		_ = conn.Close()
	}
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.places.Count(r.Context())
	status := "healthy"
	if err != nil {
		status = "degraded"
	}
	if h.opts.Bus != nil && h.opts.Bus.BreakerState() == "open" {
		status = "degraded"
	}

	health := models.HealthStatus{
		Status:        status,
		Version:       h.opts.Version,
		Places:        count,
		StoreBackend:  h.opts.StoreBackend,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}
	if h.hub != nil {
		health.Clients = h.hub.GetClientCount()
	}
	if h.opts.Bus != nil {
		health.BusBackend = h.opts.Bus.Backend()
	}

	respondSuccess(w, http.StatusOK, health)
}

// HealthLive reports that the process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady reports 200 only when the store answers and the hub exists.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	_, err := h.places.Count(r.Context())
	storeOK := err == nil
	hubOK := h.hub != nil
	ready := storeOK && hubOK

	statusCode := http.StatusOK
	status := "ready"
	if !ready {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	respondJSON(w, statusCode, &models.APIResponse{
		Status: status,
		Data: map[string]interface{}{
			"store_available": storeOK,
			"hub_available":   hubOK,
			"ready_to_serve":  ready,
			"uptime":          time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}
