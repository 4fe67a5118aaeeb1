// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package mapview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/mapasync/internal/logging"
	"github.com/tomtom215/mapasync/internal/models"
)

var (
	// ErrNotRendered is returned by gestures before Load has succeeded.
	ErrNotRendered = errors.New("map not rendered")

	// ErrAlreadyLoaded is returned by a second Load.
	ErrAlreadyLoaded = errors.New("map already loaded")

	// ErrUnknownMarker is returned by gestures on an id with no marker.
	ErrUnknownMarker = errors.New("unknown marker")
)

// PlaceSource fetches the initial place list.
type PlaceSource interface {
	Places(ctx context.Context) ([]models.Place, error)
}

// Emitter broadcasts a marker event on the real-time channel.
type Emitter interface {
	Emit(ctx context.Context, ev models.Event) error
}

// Config configures a Controller. Zero values take the package defaults.
type Config struct {
	// Origin tags emitted events. A random id is used when empty.
	Origin string

	Center  models.LatLng
	Zoom    int
	MapType string

	// Now is the clock used for new place ids.
	Now func() time.Time
}

type loadState int

const (
	stateIdle loadState = iota
	stateLoading
	stateRendered
)

// Controller reconciles local gestures and remote events into one marker set.
// It is safe for concurrent use; emits happen outside the lock.
type Controller struct {
	source  PlaceSource
	emitter Emitter
	cfg     Config
	logger  zerolog.Logger

	mu      sync.Mutex
	state   loadState
	mapView Map
	records map[string]*record
	order   []string
	rev     uint64

	// pendingDeletes holds, per id whose local delete is still being
	// broadcast, the revision of the last removal seen for it.
	pendingDeletes map[string]uint64
}

// NewController creates a controller. Nothing is fetched until Load.
func NewController(source PlaceSource, emitter Emitter, cfg Config) *Controller {
	if cfg.Origin == "" {
		cfg.Origin = uuid.NewString()
	}
	if cfg.Center == (models.LatLng{}) {
		cfg.Center = DefaultCenter
	}
	if cfg.Zoom == 0 {
		cfg.Zoom = DefaultZoom
	}
	if cfg.MapType == "" {
		cfg.MapType = DefaultMapType
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Controller{
		source:  source,
		emitter: emitter,
		cfg:     cfg,
		logger:  logging.WithComponent("mapview").With().Str("origin", cfg.Origin).Logger(),
		records: make(map[string]*record),

		pendingDeletes: make(map[string]uint64),
	}
}

// Origin returns the tag stamped on emitted events.
func (c *Controller) Origin() string {
	return c.cfg.Origin
}

// Load fetches the place list once and renders the map with one marker and
// popup per place. On failure the map stays unrendered and the error is
// returned; Load may then be called again.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.state != stateIdle {
		c.mu.Unlock()
		return ErrAlreadyLoaded
	}
	c.state = stateLoading
	c.mu.Unlock()

	list, err := c.source.Places(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = stateIdle
		c.mu.Unlock()
		c.logger.Error().Err(err).Msg("failed to load places, map not rendered")
		return fmt.Errorf("load places: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.mapView = Map{Center: c.cfg.Center, Zoom: c.cfg.Zoom, MapType: c.cfg.MapType}
	for _, p := range list {
		c.upsertLocked(p)
	}
	c.state = stateRendered

	c.logger.Info().Int("places", len(list)).Int("markers", len(c.order)).Msg("map rendered")
	return nil
}

// ClickMap adds a place at pos, renders it and broadcasts marcador-nuevo.
// If the broadcast fails the marker is removed again.
func (c *Controller) ClickMap(ctx context.Context, pos models.LatLng) (models.Place, error) {
	place := models.NewPlaceAt(pos, c.cfg.Now())

	c.mu.Lock()
	if c.state != stateRendered {
		c.mu.Unlock()
		return models.Place{}, ErrNotRendered
	}
	var prev *record
	if existing, ok := c.records[place.ID]; ok {
		snapshot := *existing
		prev = &snapshot
	}
	rev := c.upsertLocked(place)
	c.mu.Unlock()

	ev, err := models.NewMarkerEvent(place)
	if err == nil {
		err = c.emit(ctx, ev)
	}
	if err != nil {
		c.mu.Lock()
		if rec, ok := c.records[place.ID]; ok && rec.rev == rev {
			if prev != nil {
				*rec = *prev
			} else {
				c.removeLocked(place.ID)
			}
		}
		c.mu.Unlock()
		c.logger.Warn().Err(err).Str("place_id", place.ID).Msg("add rolled back")
		return models.Place{}, fmt.Errorf("broadcast new marker %s: %w", place.ID, err)
	}

	return place, nil
}

// DragMarker records that marker id was dragged to pos and broadcasts
// marcador-mover. If the broadcast fails the previous position is restored.
func (c *Controller) DragMarker(ctx context.Context, id string, pos models.LatLng) error {
	c.mu.Lock()
	if c.state != stateRendered {
		c.mu.Unlock()
		return ErrNotRendered
	}
	rec, ok := c.records[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownMarker, id)
	}
	prevPos := rec.marker.Position
	rev := c.nextRevLocked()
	rec.moveTo(pos, rev)
	place := rec.place
	c.mu.Unlock()

	ev, err := models.MoveMarkerEvent(place)
	if err == nil {
		err = c.emit(ctx, ev)
	}
	if err != nil {
		c.mu.Lock()
		if rec, ok := c.records[id]; ok && rec.rev == rev {
			rec.moveTo(prevPos, c.nextRevLocked())
		}
		c.mu.Unlock()
		c.logger.Warn().Err(err).Str("place_id", id).Msg("move rolled back")
		return fmt.Errorf("broadcast move %s: %w", id, err)
	}
	return nil
}

// DoubleClickMarker removes marker id with its popup and broadcasts
// marcador-borrar. If the broadcast fails the record is put back at its
// original position in insertion order, unless the id has reappeared or a
// peer deleted it in the meantime.
func (c *Controller) DoubleClickMarker(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.state != stateRendered {
		c.mu.Unlock()
		return ErrNotRendered
	}
	rec, ok := c.records[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownMarker, id)
	}
	removed := *rec
	index := c.removeLocked(id)
	tombstone := c.nextRevLocked()
	c.pendingDeletes[id] = tombstone
	c.mu.Unlock()

	ev, err := models.DeleteMarkerEvent(id)
	if err == nil {
		err = c.emit(ctx, ev)
	}

	c.mu.Lock()
	peerDeleted := c.pendingDeletes[id] != tombstone
	delete(c.pendingDeletes, id)
	if err != nil {
		if _, exists := c.records[id]; !exists && !peerDeleted {
			removed.popup.Open = false
			removed.rev = c.nextRevLocked()
			c.insertAtLocked(index, &removed)
		}
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Str("place_id", id).Msg("delete rolled back")
		return fmt.Errorf("broadcast delete %s: %w", id, err)
	}
	return nil
}

// ClickMarker closes every popup and opens the popup of marker id. Popup
// state is local and never broadcast.
func (c *Controller) ClickMarker(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMarker, id)
	}
	for _, other := range c.records {
		other.popup.Open = false
	}
	rec.popup.Open = true
	return nil
}

// HandleNew applies a remote marcador-nuevo. An unknown id appends a new
// marker; a known id is updated in place. It reports whether a marker was
// created.
func (c *Controller) HandleNew(place models.Place) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, existed := c.records[place.ID]
	c.upsertLocked(place)
	return !existed
}

// HandleMove applies a remote marcador-mover. Unknown ids are ignored and
// reported as false.
func (c *Controller) HandleMove(place models.Place) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[place.ID]
	if !ok {
		c.logger.Debug().Str("place_id", place.ID).Msg("move for unknown marker ignored")
		return false
	}
	rec.moveTo(place.Position(), c.nextRevLocked())
	return true
}

// HandleDelete applies a remote marcador-borrar, releasing the marker and
// its popup. Unknown ids are ignored and reported as false.
func (c *Controller) HandleDelete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.records[id]; !ok {
		if _, pending := c.pendingDeletes[id]; pending {
			c.pendingDeletes[id] = c.nextRevLocked()
		}
		c.logger.Debug().Str("place_id", id).Msg("delete for unknown marker ignored")
		return false
	}
	c.removeLocked(id)
	return true
}

// Dispatch routes a channel event to the matching handler. Events carrying
// this controller's origin are ignored. Undecodable payloads are logged and
// dropped.
func (c *Controller) Dispatch(ev models.Event) {
	if ev.Origin != "" && ev.Origin == c.cfg.Origin {
		c.logger.Debug().Str("event_type", ev.Type).Msg("ignoring own echo")
		return
	}

	switch ev.Type {
	case models.EventMarkerNew, models.EventMarkerMove:
		place, err := ev.DecodePlace()
		if err != nil || place.ID == "" {
			c.logger.Warn().Err(err).Str("event_type", ev.Type).Msg("dropping malformed marker event")
			return
		}
		if ev.Type == models.EventMarkerNew {
			c.HandleNew(place)
		} else {
			c.HandleMove(place)
		}

	case models.EventMarkerDelete:
		id, err := ev.DecodeID()
		if err != nil || id == "" {
			c.logger.Warn().Err(err).Str("event_type", ev.Type).Msg("dropping malformed marker event")
			return
		}
		c.HandleDelete(id)

	default:
		c.logger.Debug().Str("event_type", ev.Type).Msg("ignoring event")
	}
}

// Markers returns a snapshot of all markers in insertion order.
func (c *Controller) Markers() []MarkerView {
	c.mu.Lock()
	defer c.mu.Unlock()

	views := make([]MarkerView, 0, len(c.order))
	for _, id := range c.order {
		views = append(views, c.records[id].view())
	}
	return views
}

// Marker returns the marker for id.
func (c *Controller) Marker(id string) (MarkerView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[id]
	if !ok {
		return MarkerView{}, false
	}
	return rec.view(), true
}

// OpenPopup returns the id of the marker whose popup is open, if any.
func (c *Controller) OpenPopup() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range c.order {
		if c.records[id].popup.Open {
			return id, true
		}
	}
	return "", false
}

// Map returns the map widget once rendered.
func (c *Controller) Map() (Map, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mapView, c.state == stateRendered
}

// Rendered reports whether Load has succeeded.
func (c *Controller) Rendered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateRendered
}

// Len returns the number of markers.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

func (c *Controller) emit(ctx context.Context, ev models.Event) error {
	ev.Origin = c.cfg.Origin
	return c.emitter.Emit(ctx, ev)
}

func (c *Controller) nextRevLocked() uint64 {
	c.rev++
	return c.rev
}

// upsertLocked appends p or updates the existing record in place. It
// returns the record's new revision.
func (c *Controller) upsertLocked(p models.Place) uint64 {
	rev := c.nextRevLocked()
	if rec, ok := c.records[p.ID]; ok {
		rec.moveTo(p.Position(), rev)
		rec.rename(p.Nombre, rev)
		return rev
	}
	c.records[p.ID] = newRecord(p, rev)
	c.order = append(c.order, p.ID)
	return rev
}

// removeLocked drops id from the map and the order index and returns its
// former index, or -1.
func (c *Controller) removeLocked(id string) int {
	delete(c.records, id)
	if _, pending := c.pendingDeletes[id]; pending {
		c.pendingDeletes[id] = c.nextRevLocked()
	}
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return i
		}
	}
	return -1
}

func (c *Controller) insertAtLocked(index int, rec *record) {
	id := rec.place.ID
	c.records[id] = rec
	if index < 0 || index > len(c.order) {
		index = len(c.order)
	}
	c.order = append(c.order, "")
	copy(c.order[index+1:], c.order[index:])
	c.order[index] = id
}
