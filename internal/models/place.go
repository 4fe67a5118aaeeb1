// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package models

import (
	"fmt"
	"time"
)

// DefaultPlaceName is the name given to places created by clicking on the map.
const DefaultPlaceName = "Nuevo Lugar"

// placeIDLayout matches JavaScript's Date.prototype.toISOString output.
const placeIDLayout = "2006-01-02T15:04:05.000Z"

// LatLng is a geographic coordinate in decimal degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String implements fmt.Stringer.
func (p LatLng) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Lat, p.Lng)
}

// Place is a named point on the shared map.
//
// The ID is generated by the client that created the place, from the
// creation timestamp. There is no server-assigned identity.
type Place struct {
	ID     string  `json:"id" yaml:"id" validate:"placeid"`
	Nombre string  `json:"nombre" yaml:"nombre"`
	Lat    float64 `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lng    float64 `json:"lng" yaml:"lng" validate:"gte=-180,lte=180"`
}

// Position returns the place coordinates.
func (p Place) Position() LatLng {
	return LatLng{Lat: p.Lat, Lng: p.Lng}
}

// WithPosition returns a copy of the place moved to pos.
func (p Place) WithPosition(pos LatLng) Place {
	p.Lat = pos.Lat
	p.Lng = pos.Lng
	return p
}

// NewPlaceID formats t the way browser clients build place IDs.
func NewPlaceID(t time.Time) string {
	return t.UTC().Format(placeIDLayout)
}

// NewPlaceAt creates a place named DefaultPlaceName at pos, with an ID derived from now.
func NewPlaceAt(pos LatLng, now time.Time) Place {
	return Place{
		ID:     NewPlaceID(now),
		Nombre: DefaultPlaceName,
		Lat:    pos.Lat,
		Lng:    pos.Lng,
	}
}
