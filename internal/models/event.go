// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package models

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// Real-time channel event types.
const (
	EventMarkerNew    = "marcador-nuevo"
	EventMarkerMove   = "marcador-mover"
	EventMarkerDelete = "marcador-borrar"

	EventPing = "ping"
	EventPong = "pong"
)

// ErrEmptyPayload is returned when an event carries no data.
var ErrEmptyPayload = errors.New("event has no payload")

// MarkerEventTypes lists the event types that mutate the shared map.
var MarkerEventTypes = []string{EventMarkerNew, EventMarkerMove, EventMarkerDelete}

// IsMarkerEvent reports whether eventType mutates the shared map.
func IsMarkerEvent(eventType string) bool {
	switch eventType {
	case EventMarkerNew, EventMarkerMove, EventMarkerDelete:
		return true
	default:
		return false
	}
}

// Event is the real-time channel envelope.
//
// Data holds a Place for marcador-nuevo and marcador-mover, and a bare id
// string for marcador-borrar. Origin is an optional tag set by the emitting
// client instance so it can recognise its own events if they are echoed back.
type Event struct {
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data,omitempty"`
	Origin string          `json:"origin,omitempty"`
}

// NewEvent builds an event, encoding data as the payload.
func NewEvent(eventType string, data interface{}) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, Data: raw}, nil
}

// NewMarkerEvent builds a marcador-nuevo event for place.
func NewMarkerEvent(place Place) (Event, error) {
	return NewEvent(EventMarkerNew, place)
}

// MoveMarkerEvent builds a marcador-mover event for place.
func MoveMarkerEvent(place Place) (Event, error) {
	return NewEvent(EventMarkerMove, place)
}

// DeleteMarkerEvent builds a marcador-borrar event for id.
func DeleteMarkerEvent(id string) (Event, error) {
	return NewEvent(EventMarkerDelete, id)
}

// DecodePlace decodes the payload as a Place.
func (e Event) DecodePlace() (Place, error) {
	var p Place
	if len(e.Data) == 0 {
		return p, ErrEmptyPayload
	}
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return p, nil
}

// DecodeID decodes the payload as a bare id string.
func (e Event) DecodeID() (string, error) {
	var id string
	if len(e.Data) == 0 {
		return "", ErrEmptyPayload
	}
	if err := json.Unmarshal(e.Data, &id); err != nil {
		return "", fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return id, nil
}

// Marshal encodes the event for the wire.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent decodes a wire frame.
func UnmarshalEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}
