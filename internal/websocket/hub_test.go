// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package websocket

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/mapasync/internal/logging"
	"github.com/tomtom215/mapasync/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// setupHub creates and starts a hub that stops when the test ends.
func setupHub(t *testing.T, opts Options) *Hub {
	t.Helper()
	hub := NewHub(opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

// createTestClient creates a connectionless client registered with hub.
func createTestClient(t *testing.T, hub *Hub, id string, buffer int) *Client {
	t.Helper()
	c := &Client{
		id:     id,
		seq:    clientSeq.Add(1),
		hub:    hub,
		send:   make(chan []byte, buffer),
		ctx:    context.Background(),
		cancel: func() {},
		logger: logging.Logger(),
	}
	if !hub.register(c) {
		t.Fatalf("register %s: hub closed", id)
	}
	return c
}

func createTestEvent(t *testing.T, id string) models.Event {
	t.Helper()
	ev, err := models.NewMarkerEvent(models.Place{ID: id, Nombre: "Nuevo Lugar", Lat: 1, Lng: 2})
	if err != nil {
		t.Fatalf("NewMarkerEvent: %v", err)
	}
	return ev
}

// receive waits for one frame on c.
func receive(t *testing.T, c *Client) models.Event {
	t.Helper()
	select {
	case payload, ok := <-c.send:
		if !ok {
			t.Fatalf("client %s: send channel closed", c.id)
		}
		ev, err := models.UnmarshalEvent(payload)
		if err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatalf("client %s: no frame received", c.id)
	}
	return models.Event{}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case payload := <-c.send:
		t.Fatalf("client %s: unexpected frame %s", c.id, payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(Options{})

	checks := []struct {
		name   string
		check  bool
		errMsg string
	}{
		{"clients map", hub.clients != nil, "clients map not initialized"},
		{"broadcast channel", hub.broadcast != nil, "broadcast channel not initialized"},
		{"empty clients", len(hub.clients) == 0, "clients map should be empty"},
		{"send buffer default", hub.Options().SendBuffer == DefaultSendBuffer, "send buffer default not applied"},
		{"max message default", hub.Options().MaxMessageSize == DefaultMaxMessageSize, "max message default not applied"},
		{"echo off", !hub.Options().Echo, "echo should default to off"},
	}

	for _, c := range checks {
		if !c.check {
			t.Error(c.errMsg)
		}
	}
}

func TestHub_GetClientCount(t *testing.T) {
	hub := NewHub(Options{})

	if hub.GetClientCount() != 0 {
		t.Errorf("Expected 0 clients initially, got %d", hub.GetClientCount())
	}

	for i := 0; i < 5; i++ {
		createTestClient(t, hub, string(rune('a'+i)), 4)
	}

	if hub.GetClientCount() != 5 {
		t.Errorf("Expected 5 clients, got %d", hub.GetClientCount())
	}
}

func TestHub_UnregisterTwice(t *testing.T) {
	hub := NewHub(Options{})
	client := createTestClient(t, hub, "a", 1)

	hub.unregister(client)
	hub.unregister(client)

	if hub.GetClientCount() != 0 {
		t.Errorf("Expected 0 clients, got %d", hub.GetClientCount())
	}
	if _, ok := <-client.send; ok {
		t.Error("send channel should be closed")
	}
}

func TestHub_BroadcastExcludesSender(t *testing.T) {
	hub := setupHub(t, Options{})
	sender := createTestClient(t, hub, "sender", 4)
	other := createTestClient(t, hub, "other", 4)

	if !hub.Broadcast(createTestEvent(t, "p1"), sender.id) {
		t.Fatal("Broadcast returned false")
	}

	got := receive(t, other)
	if got.Type != models.EventMarkerNew {
		t.Errorf("type = %q, want %q", got.Type, models.EventMarkerNew)
	}
	place, err := got.DecodePlace()
	if err != nil || place.ID != "p1" {
		t.Errorf("place = %+v, err = %v", place, err)
	}
	expectNothing(t, sender)
}

func TestHub_BroadcastEcho(t *testing.T) {
	hub := setupHub(t, Options{Echo: true})
	sender := createTestClient(t, hub, "sender", 4)

	hub.Broadcast(createTestEvent(t, "p1"), sender.id)

	if got := receive(t, sender); got.Type != models.EventMarkerNew {
		t.Errorf("type = %q, want %q", got.Type, models.EventMarkerNew)
	}
}

func TestHub_BroadcastToEveryone(t *testing.T) {
	hub := setupHub(t, Options{})
	clients := []*Client{
		createTestClient(t, hub, "a", 4),
		createTestClient(t, hub, "b", 4),
		createTestClient(t, hub, "c", 4),
	}

	hub.Broadcast(createTestEvent(t, "p1"), "")

	for _, c := range clients {
		receive(t, c)
	}
}

func TestHub_BroadcastPreservesOrder(t *testing.T) {
	hub := setupHub(t, Options{})
	client := createTestClient(t, hub, "a", 16)

	ids := []string{"p1", "p2", "p3", "p4", "p5"}
	for _, id := range ids {
		hub.Broadcast(createTestEvent(t, id), "")
	}

	for _, want := range ids {
		place, err := receive(t, client).DecodePlace()
		if err != nil {
			t.Fatalf("DecodePlace: %v", err)
		}
		if place.ID != want {
			t.Errorf("got %q, want %q", place.ID, want)
		}
	}
}

func TestHub_BroadcastToFullClient(t *testing.T) {
	hub := setupHub(t, Options{})
	slow := createTestClient(t, hub, "slow", 1)
	fast := createTestClient(t, hub, "fast", 4)

	slow.send <- []byte(`{"type":"filler"}`)

	hub.Broadcast(createTestEvent(t, "p1"), "")
	receive(t, fast)

	var clientCount int
	for i := 0; i < 10; i++ {
		clientCount = hub.GetClientCount()
		if clientCount == 1 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if clientCount != 1 {
		t.Errorf("Expected slow client to be dropped, got %d clients", clientCount)
	}
}

func TestHub_ConcurrentOperations(t *testing.T) {
	hub := setupHub(t, Options{SendBuffer: 1024})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := createTestClient(t, hub, string(rune('a'+i)), 1024)
			for j := 0; j < 10; j++ {
				hub.Broadcast(createTestEvent(t, "p"), c.id)
			}
			hub.unregister(c)
		}(i)
	}
	wg.Wait()

	if hub.GetClientCount() != 0 {
		t.Errorf("Expected 0 clients, got %d", hub.GetClientCount())
	}
}

func TestHub_BroadcastQueueFull(t *testing.T) {
	// hub not running, so nothing drains the queue
	hub := NewHub(Options{})
	for i := 0; i < broadcastQueueSize; i++ {
		if !hub.Broadcast(createTestEvent(t, "p"), "") {
			t.Fatalf("Broadcast %d dropped early", i)
		}
	}
	if hub.Broadcast(createTestEvent(t, "p"), "") {
		t.Error("Broadcast should report false when the queue is full")
	}
}

func TestHub_DispatchRoutesMarkerEvents(t *testing.T) {
	hub := NewHub(Options{})
	client := createTestClient(t, hub, "c1", 4)

	var gotID string
	var gotType string
	hub.SetInboundHandler(InboundHandlerFunc(func(_ context.Context, clientID string, ev models.Event) {
		gotID = clientID
		gotType = ev.Type
	}))

	hub.dispatch(client, createTestEvent(t, "p1"))
	if gotID != "c1" || gotType != models.EventMarkerNew {
		t.Errorf("handler got (%q, %q)", gotID, gotType)
	}

	gotType = ""
	hub.dispatch(client, models.Event{Type: "chat"})
	if gotType != "" {
		t.Errorf("unknown type reached handler: %q", gotType)
	}
}

func TestHub_DispatchPing(t *testing.T) {
	hub := NewHub(Options{})
	client := createTestClient(t, hub, "c1", 4)

	hub.dispatch(client, models.Event{Type: models.EventPing})

	if got := receive(t, client); got.Type != models.EventPong {
		t.Errorf("type = %q, want %q", got.Type, models.EventPong)
	}
}

func TestHub_RunWithContext(t *testing.T) {
	t.Run("shuts down on context cancellation", func(t *testing.T) {
		hub := NewHub(Options{})
		client := createTestClient(t, hub, "a", 1)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- hub.RunWithContext(ctx) }()

		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("err = %v, want context.Canceled", err)
			}
		case <-time.After(time.Second):
			t.Fatal("hub did not stop")
		}

		if hub.GetClientCount() != 0 {
			t.Errorf("Expected clients closed on shutdown, got %d", hub.GetClientCount())
		}
		if _, ok := <-client.send; ok {
			t.Error("client send channel should be closed")
		}
	})

	t.Run("rejects clients after shutdown", func(t *testing.T) {
		hub := NewHub(Options{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_ = hub.RunWithContext(ctx)

		if hub.register(&Client{id: "late", hub: hub, send: make(chan []byte, 1)}) {
			t.Error("register should fail after shutdown")
		}
	})

	t.Run("deadline exceeded", func(t *testing.T) {
		hub := NewHub(Options{})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		if err := hub.RunWithContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("err = %v, want context.DeadlineExceeded", err)
		}
	})
}

func TestGetShutdownReason(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	deadline, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()

	tests := []struct {
		name string
		ctx  context.Context
		want ShutdownReason
	}{
		{"canceled", canceled, ShutdownReasonContextCanceled},
		{"deadline", deadline, ShutdownReasonContextDeadline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getShutdownReason(tt.ctx); got != tt.want {
				t.Errorf("getShutdownReason() = %q, want %q", got, tt.want)
			}
		})
	}
}
