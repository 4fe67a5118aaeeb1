// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/mapasync/internal/logging"
	"github.com/tomtom215/mapasync/internal/models"
)

const (
	// DefaultListenBuffer is the capacity of each Listen channel.
	DefaultListenBuffer = 64

	writeWait        = 10 * time.Second
	handshakeTimeout = 10 * time.Second
)

// ErrChannelClosed is returned by Emit once the channel has stopped.
var ErrChannelClosed = errors.New("realtime channel closed")

// Dispatcher receives every inbound event after the listeners.
type Dispatcher interface {
	Dispatch(ev models.Event)
}

// ChannelOptions configures Dial.
type ChannelOptions struct {
	// Origin tags emitted events. Generated when empty.
	Origin string
	// ListenBuffer is the capacity of each Listen channel.
	ListenBuffer int
	// Header is sent with the websocket handshake.
	Header http.Header
}

// Channel is a websocket connection to the relay's /ws endpoint.
type Channel struct {
	conn   *websocket.Conn
	origin string
	buffer int
	logger zerolog.Logger

	writeMu sync.Mutex

	mu        sync.Mutex
	listeners map[string][]chan models.Event
	closed    bool
}

// Dial opens the real-time channel of the relay at server, which may be an
// http(s) base URL or a ws(s) URL without the /ws suffix.
func Dial(ctx context.Context, server string, opts ChannelOptions) (*Channel, error) {
	endpoint, err := websocketURL(server)
	if err != nil {
		return nil, err
	}
	if opts.Origin == "" {
		opts.Origin = uuid.NewString()
	}
	if opts.ListenBuffer <= 0 {
		opts.ListenBuffer = DefaultListenBuffer
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, endpoint, opts.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", endpoint, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	logger := logging.WithComponent("realtime").With().Str("origin", opts.Origin).Logger()
	logger.Debug().Str("url", endpoint).Msg("channel connected")

	return &Channel{
		conn:      conn,
		origin:    opts.Origin,
		buffer:    opts.ListenBuffer,
		logger:    logger,
		listeners: make(map[string][]chan models.Event),
	}, nil
}

// Origin returns the tag stamped on events that carry none.
func (c *Channel) Origin() string {
	return c.origin
}

// Emit sends ev as a text frame. Events without an origin get the channel's.
func (c *Channel) Emit(ctx context.Context, ev models.Event) error {
	if c.isClosed() {
		return ErrChannelClosed
	}
	if ev.Origin == "" {
		ev.Origin = c.origin
	}
	payload, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Type, err)
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		if c.isClosed() {
			return ErrChannelClosed
		}
		return fmt.Errorf("send %s: %w", ev.Type, err)
	}
	return nil
}

// Listen returns a channel receiving every inbound event of eventType. The
// channel is closed when Run returns. Events are dropped with a warning when
// it is full.
func (c *Channel) Listen(eventType string) <-chan models.Event {
	ch := make(chan models.Event, c.buffer)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch
	}
	c.listeners[eventType] = append(c.listeners[eventType], ch)
	return ch
}

// Run reads frames until ctx is done or the connection fails, delivering
// each event to the listeners of its type and then to dispatcher, which may
// be nil. It returns nil when stopped by ctx or Close.
func (c *Channel) Run(ctx context.Context, dispatcher Dispatcher) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.closeConn(websocket.CloseNormalClosure)
		case <-stop:
		}
	}()
	defer c.shutdown()

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || c.isClosed() {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info().Err(err).Msg("relay closed the channel")
				return fmt.Errorf("%w: %w", ErrChannelClosed, err)
			}
			return fmt.Errorf("read: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}

		ev, err := models.UnmarshalEvent(data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("dropping undecodable frame")
			continue
		}
		c.deliver(ev)
		if dispatcher != nil {
			dispatcher.Dispatch(ev)
		}
	}
}

// Close sends a close frame and releases the connection. Run returns shortly
// after.
func (c *Channel) Close() error {
	c.closeConn(websocket.CloseNormalClosure)
	return nil
}

func (c *Channel) deliver(ev models.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ch := range c.listeners[ev.Type] {
		select {
		case ch <- ev:
		default:
			c.logger.Warn().Str("event_type", ev.Type).Msg("listener full, dropping event")
		}
	}
}

func (c *Channel) closeConn(code int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""))
	c.writeMu.Unlock()
	_ = c.conn.Close()
}

// shutdown marks the channel closed and closes every listener.
func (c *Channel) shutdown() {
	c.mu.Lock()
	alreadyClosed := c.closed
	c.closed = true
	for typ, chans := range c.listeners {
		for _, ch := range chans {
			close(ch)
		}
		delete(c.listeners, typ)
	}
	c.mu.Unlock()

	if !alreadyClosed {
		_ = c.conn.Close()
	}
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
