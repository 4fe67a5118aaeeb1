// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/mapasync/internal/mapview"
	"github.com/tomtom215/mapasync/internal/models"
	ws "github.com/tomtom215/mapasync/internal/websocket"
)

// setupRelay starts a hub that rebroadcasts inbound events to every other
// connection, behind an httptest server. stop shuts the hub down.
func setupRelay(t *testing.T) (server *httptest.Server, hub *ws.Hub, stop func()) {
	t.Helper()

	hub = ws.NewHub(ws.Options{})
	hub.SetInboundHandler(ws.InboundHandlerFunc(func(_ context.Context, clientID string, ev models.Event) {
		hub.Broadcast(ev, clientID)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()

	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if _, err := hub.Attach(conn); err != nil {
			_ = conn.Close()
		}
	}))

	stop = func() {
		cancel()
		<-done
	}
	t.Cleanup(func() {
		server.Close()
		stop()
	})
	return server, hub, stop
}

func dial(t *testing.T, server *httptest.Server, origin string) *Channel {
	t.Helper()
	ch, err := Dial(context.Background(), server.URL, ChannelOptions{Origin: origin})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

// runChannel runs ch until the test ends and returns Run's result channel.
func runChannel(t *testing.T, ch *Channel, d Dispatcher) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- ch.Run(ctx, d) }()
	t.Cleanup(cancel)
	return cancel, result
}

func waitForClients(t *testing.T, hub *ws.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.GetClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receive(t *testing.T, ch <-chan models.Event) models.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("listener closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return models.Event{}
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []models.Event
}

func (d *recordingDispatcher) Dispatch(ev models.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

func TestChannel_EmitReachesOtherConnection(t *testing.T) {
	server, hub, _ := setupRelay(t)
	sender := dial(t, server, "sender")
	receiver := dial(t, server, "receiver")
	waitForClients(t, hub, 2)

	news := receiver.Listen(models.EventMarkerNew)
	moves := receiver.Listen(models.EventMarkerMove)
	dispatcher := &recordingDispatcher{}
	runChannel(t, receiver, dispatcher)
	runChannel(t, sender, nil)

	ev, err := models.NewMarkerEvent(models.Place{ID: "a", Nombre: "A", Lat: 1, Lng: 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := sender.Emit(context.Background(), ev); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	got := receive(t, news)
	if got.Type != models.EventMarkerNew || got.Origin != "sender" {
		t.Errorf("event = %+v", got)
	}
	if place, _ := got.DecodePlace(); place.ID != "a" {
		t.Errorf("place = %+v", place)
	}

	select {
	case ev := <-moves:
		t.Errorf("move listener received %+v", ev)
	default:
	}

	deadline := time.Now().Add(time.Second)
	for dispatcher.count() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if dispatcher.count() != 1 {
		t.Errorf("dispatcher saw %d events, want 1", dispatcher.count())
	}
}

func TestChannel_EmitKeepsExplicitOrigin(t *testing.T) {
	server, hub, _ := setupRelay(t)
	sender := dial(t, server, "channel-origin")
	receiver := dial(t, server, "")
	waitForClients(t, hub, 2)

	deletes := receiver.Listen(models.EventMarkerDelete)
	runChannel(t, receiver, nil)

	ev, _ := models.DeleteMarkerEvent("a")
	ev.Origin = "controller-origin"
	if err := sender.Emit(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	if got := receive(t, deletes); got.Origin != "controller-origin" {
		t.Errorf("Origin = %q, want controller-origin", got.Origin)
	}
}

func TestChannel_RunStopsOnContext(t *testing.T) {
	server, hub, _ := setupRelay(t)
	ch := dial(t, server, "")
	waitForClients(t, hub, 1)

	listener := ch.Listen(models.EventMarkerNew)
	cancel, result := runChannel(t, ch, nil)
	cancel()

	select {
	case err := <-result:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	if _, ok := <-listener; ok {
		t.Error("listener should be closed")
	}
	if err := ch.Emit(context.Background(), models.Event{Type: models.EventPing}); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("Emit after stop = %v, want ErrChannelClosed", err)
	}
	if _, ok := <-ch.Listen(models.EventMarkerMove); ok {
		t.Error("Listen after stop should return a closed channel")
	}
	waitForClients(t, hub, 0)
}

func TestChannel_RelayShutdown(t *testing.T) {
	server, hub, stop := setupRelay(t)
	ch := dial(t, server, "")
	waitForClients(t, hub, 1)
	_, result := runChannel(t, ch, nil)

	stop()

	select {
	case err := <-result:
		if !errors.Is(err, ErrChannelClosed) {
			t.Errorf("Run = %v, want ErrChannelClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestDial_Errors(t *testing.T) {
	if _, err := Dial(context.Background(), "ftp://host", ChannelOptions{}); err == nil {
		t.Error("expected scheme error")
	}

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()
	if _, err := Dial(context.Background(), server.URL, ChannelOptions{}); err == nil {
		t.Error("expected handshake error")
	}
}

func TestControllers_StayInSync(t *testing.T) {
	server, hub, _ := setupRelay(t)

	newController := func(name string) *mapview.Controller {
		ch := dial(t, server, "")
		ctrl := mapview.NewController(
			&staticSource{},
			ch,
			mapview.Config{Origin: name},
		)
		if err := ctrl.Load(context.Background()); err != nil {
			t.Fatal(err)
		}
		runChannel(t, ch, ctrl)
		return ctrl
	}
	alice := newController("alice")
	bob := newController("bob")
	waitForClients(t, hub, 2)

	place, err := alice.ClickMap(context.Background(), models.LatLng{Lat: 40.4, Lng: -3.7})
	if err != nil {
		t.Fatalf("ClickMap: %v", err)
	}
	eventually(t, func() bool { _, ok := bob.Marker(place.ID); return ok })

	if err := bob.DragMarker(context.Background(), place.ID, models.LatLng{Lat: 41, Lng: 2}); err != nil {
		t.Fatalf("DragMarker: %v", err)
	}
	eventually(t, func() bool {
		m, _ := alice.Marker(place.ID)
		return m.Marker.Position == models.LatLng{Lat: 41, Lng: 2}
	})

	if err := alice.DoubleClickMarker(context.Background(), place.ID); err != nil {
		t.Fatalf("DoubleClickMarker: %v", err)
	}
	eventually(t, func() bool { return bob.Len() == 0 })
	if alice.Len() != 0 {
		t.Errorf("alice Len = %d, want 0", alice.Len())
	}
}

type staticSource struct {
	places []models.Place
}

func (s *staticSource) Places(context.Context) ([]models.Place, error) {
	return s.places, nil
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
