// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package websocket

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/mapasync/internal/logging"
	"github.com/tomtom215/mapasync/internal/metrics"
	"github.com/tomtom215/mapasync/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ErrHubClosed is returned by Attach after the hub has shut down.
var ErrHubClosed = errors.New("websocket hub is closed")

// clientSeq orders clients by connection time for broadcast.
var clientSeq atomic.Uint64

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	id      string
	seq     uint64
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(logging.ContextWithConnID(context.Background(), id))

	c := &Client{
		id:     id,
		seq:    clientSeq.Add(1),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, hub.opts.SendBuffer),
		ctx:    ctx,
		cancel: cancel,
		logger: logging.With().Str("component", "websocket-client").Str("conn_id", id).Logger(),
	}
	if hub.opts.InboundRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(hub.opts.InboundRate), hub.opts.InboundBurst)
	}
	return c
}

// Attach registers an upgraded connection with the hub and starts its pumps.
func (h *Hub) Attach(conn *websocket.Conn) (*Client, error) {
	c := newClient(h, conn)
	if !h.register(c) {
		c.cancel()
		return nil, ErrHubClosed
	}
	c.Start()
	return c, nil
}

// ID returns the server-assigned connection id.
func (c *Client) ID() string {
	return c.id
}

// queue sends ev to this client only, dropping it if the queue is full.
func (c *Client) queue(ev models.Event) {
	payload, err := ev.Marshal()
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *Client) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

// readPump pumps frames from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.opts.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				metrics.WSErrors.WithLabelValues("read").Inc()
				c.logger.Warn().Err(err).Msg("unexpected websocket close error")
			}
			return
		}
		metrics.WSMessagesReceived.Inc()

		if msgType != websocket.TextMessage {
			metrics.RecordEventDropped("invalid")
			continue
		}
		if !c.allow() {
			metrics.RecordEventDropped("rate_limited")
			continue
		}

		ev, err := models.UnmarshalEvent(data)
		if err != nil || ev.Type == "" {
			metrics.RecordEventDropped("invalid")
			c.logger.Debug().Err(err).Msg("dropping malformed frame")
			continue
		}
		c.hub.dispatch(c, ev)
	}
}

// writePump pumps queued frames from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				metrics.WSErrors.WithLabelValues("write").Inc()
				c.logger.Debug().Err(err).Msg("failed to write message")
				return
			}
			metrics.WSMessagesSent.Inc()

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
