// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package mapview

import (
	"html"

	"github.com/tomtom215/mapasync/internal/models"
)

// Map defaults.
const (
	DefaultZoom    = 13
	DefaultMapType = "roadmap"

	// AnimationDrop is the marker drop-in animation.
	AnimationDrop = "DROP"
)

// DefaultCenter is the initial map center.
var DefaultCenter = models.LatLng{Lat: 37.784679, Lng: -122.395936}

// Map is the rendered map widget.
type Map struct {
	Center  models.LatLng
	Zoom    int
	MapType string
}

// Marker is the visual marker of a place. Title carries the place id.
type Marker struct {
	Title     string
	Position  models.LatLng
	Visible   bool
	Draggable bool
	Animation string
}

// InfoWindow is the popup attached to a marker.
type InfoWindow struct {
	Content string
	Open    bool
	Anchor  string
}

// MarkerView is a snapshot of one place with its marker and popup.
type MarkerView struct {
	Place  models.Place
	Marker Marker
	Popup  InfoWindow
}

// record co-locates a place with its visuals. rev changes on every
// mutation and lets a rollback detect that someone else touched the record.
type record struct {
	place  models.Place
	marker Marker
	popup  InfoWindow
	rev    uint64
}

func newRecord(p models.Place, rev uint64) *record {
	return &record{
		place: p,
		marker: Marker{
			Title:     p.ID,
			Position:  p.Position(),
			Visible:   true,
			Draggable: true,
			Animation: AnimationDrop,
		},
		popup: InfoWindow{
			Content: popupContent(p.Nombre),
			Anchor:  p.ID,
		},
		rev: rev,
	}
}

func (r *record) view() MarkerView {
	return MarkerView{Place: r.place, Marker: r.marker, Popup: r.popup}
}

func (r *record) moveTo(pos models.LatLng, rev uint64) {
	r.place = r.place.WithPosition(pos)
	r.marker.Position = pos
	r.rev = rev
}

func (r *record) rename(nombre string, rev uint64) {
	r.place.Nombre = nombre
	r.popup.Content = popupContent(nombre)
	r.rev = rev
}

func popupContent(nombre string) string {
	return "<b>" + html.EscapeString(nombre) + "</b>"
}
