// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/mapasync/internal/logging"
	"github.com/tomtom215/mapasync/internal/metrics"
	"github.com/tomtom215/mapasync/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// broadcastQueueSize bounds events waiting for the hub loop.
const broadcastQueueSize = 256

// InboundHandler receives marker events read from a client connection.
// It is called from the client's read goroutine.
type InboundHandler interface {
	HandleInbound(ctx context.Context, clientID string, ev models.Event)
}

// InboundHandlerFunc adapts a function to InboundHandler.
type InboundHandlerFunc func(ctx context.Context, clientID string, ev models.Event)

// HandleInbound calls f.
func (f InboundHandlerFunc) HandleInbound(ctx context.Context, clientID string, ev models.Event) {
	f(ctx, clientID, ev)
}

// outbound is a queued broadcast.
type outbound struct {
	payload []byte
	typ     string
	exclude string
}

// Hub maintains the set of active clients and broadcasts events to them.
type Hub struct {
	opts Options

	mu      sync.RWMutex
	clients map[*Client]bool
	closed  bool

	broadcast chan outbound

	handlerMu sync.RWMutex
	inbound   InboundHandler
}

// NewHub creates a hub. Call RunWithContext to start delivering broadcasts.
func NewHub(opts Options) *Hub {
	return &Hub{
		opts:      opts.withDefaults(),
		clients:   make(map[*Client]bool),
		broadcast: make(chan outbound, broadcastQueueSize),
	}
}

// Options returns the effective hub options.
func (h *Hub) Options() Options {
	return h.opts
}

// SetInboundHandler installs the receiver for client marker events.
func (h *Hub) SetInboundHandler(handler InboundHandler) {
	h.handlerMu.Lock()
	h.inbound = handler
	h.handlerMu.Unlock()
}

func (h *Hub) inboundHandler() InboundHandler {
	h.handlerMu.RLock()
	defer h.handlerMu.RUnlock()
	return h.inbound
}

// register adds a client. It reports false once the hub has shut down.
func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = true
	metrics.WSConnections.Inc()
	logging.Info().Str("conn_id", c.id).Int("total_clients", len(h.clients)).Msg("websocket client connected")
	return true
}

// unregister removes a client and closes its send queue. Safe to call twice.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.removeLocked(c) {
		logging.Info().Str("conn_id", c.id).Int("total_clients", len(h.clients)).Msg("websocket client disconnected")
	}
}

func (h *Hub) removeLocked(c *Client) bool {
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	close(c.send)
	metrics.WSConnections.Dec()
	return true
}

// RunWithContext delivers queued broadcasts until ctx is done, then closes
// every client. Designed for suture supervision; a restarted hub accepts
// new clients again.
//
// Shutdown is checked before each broadcast so a cancelled hub stops
// promptly even with a full queue.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.mu.Lock()
	h.closed = false
	h.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case msg := <-h.broadcast:
			h.broadcastToClients(msg)
		}
	}
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// sortedClientsLocked returns clients in connection order.
func (h *Hub) sortedClientsLocked() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].seq < clients[j].seq
	})
	return clients
}

// broadcastToClients delivers msg in connection order. Clients with a full
// send queue are dropped.
func (h *Hub) broadcastToClients(msg outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	var toRemove []*Client

	for _, client := range h.sortedClientsLocked() {
		if client.id == msg.exclude && !h.opts.Echo {
			continue
		}
		select {
		case client.send <- msg.payload:
			delivered++
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		metrics.RecordEventDropped("slow_client")
		logging.Warn().Str("conn_id", client.id).Msg("websocket client send queue full, disconnecting")
		h.removeLocked(client)
	}

	metrics.RecordEventBroadcast(msg.typ, delivered)
}

func (h *Hub) closeAllClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	clients := h.sortedClientsLocked()
	for _, client := range clients {
		h.removeLocked(client)
	}
	return len(clients)
}

// Broadcast queues ev for every client except the one with id exclude
// (pass "" to reach everyone). It reports false if the event was dropped
// because it could not be encoded or the queue is full.
func (h *Hub) Broadcast(ev models.Event, exclude string) bool {
	payload, err := ev.Marshal()
	if err != nil {
		logging.Warn().Err(err).Str("event_type", ev.Type).Msg("failed to encode broadcast event")
		metrics.RecordEventDropped("invalid")
		return false
	}

	select {
	case h.broadcast <- outbound{payload: payload, typ: ev.Type, exclude: exclude}:
		return true
	default:
		logging.Warn().Str("event_type", ev.Type).Msg("broadcast channel full, dropping event")
		metrics.RecordEventDropped("queue_full")
		return false
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// dispatch routes a frame read from c.
func (h *Hub) dispatch(c *Client, ev models.Event) {
	switch {
	case ev.Type == models.EventPing:
		c.queue(models.Event{Type: models.EventPong})
	case models.IsMarkerEvent(ev.Type):
		metrics.RecordEventReceived(ev.Type)
		if handler := h.inboundHandler(); handler != nil {
			handler.HandleInbound(c.ctx, c.id, ev)
		}
	default:
		metrics.RecordEventDropped("unknown_type")
		c.logger.Debug().Str("event_type", ev.Type).Msg("ignoring unknown event type")
	}
}
