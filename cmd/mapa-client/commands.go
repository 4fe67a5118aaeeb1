// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/tomtom215/mapasync/internal/mapview"
	"github.com/tomtom215/mapasync/internal/models"
	"github.com/tomtom215/mapasync/internal/realtime"
)

// ListCmd prints every place in insertion order.
type ListCmd struct {
	env *env
}

// Execute implements flags.Commander.
func (c *ListCmd) Execute(_ []string) error {
	ctx, cancel := c.env.timeout()
	defer cancel()

	list, err := realtime.NewPlacesClient(c.env.opts.Server, nil).Places(ctx)
	if err != nil {
		return err
	}
	return printPlaces(c.env.out, list)
}

// WatchCmd prints the map once loaded and then each change made by other
// clients, until interrupted.
type WatchCmd struct {
	env *env
}

// Execute implements flags.Commander.
func (c *WatchCmd) Execute(_ []string) error {
	s, err := c.env.connect()
	if err != nil {
		return err
	}
	defer s.Close()

	views := s.ctrl.Markers()
	list := make([]models.Place, 0, len(views))
	for _, v := range views {
		list = append(list, v.Place)
	}
	if err := printPlaces(c.env.out, list); err != nil {
		return err
	}

	return s.channel.Run(c.env.ctx, &printingDispatcher{next: s.ctrl, out: c.env.out})
}

// AddCmd adds a place named "Nuevo Lugar" at a coordinate.
type AddCmd struct {
	Lat float64 `long:"lat" required:"true" description:"Latitude in decimal degrees"`
	Lng float64 `long:"lng" required:"true" description:"Longitude in decimal degrees"`

	env *env
}

// Execute implements flags.Commander.
func (c *AddCmd) Execute(_ []string) error {
	if err := checkCoordinate(c.Lat, c.Lng); err != nil {
		return err
	}
	s, err := c.env.connect()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := c.env.timeout()
	defer cancel()
	place, err := s.ctrl.ClickMap(ctx, models.LatLng{Lat: c.Lat, Lng: c.Lng})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.env.out, place.ID)
	return err
}

// MoveCmd moves a place to a new coordinate.
type MoveCmd struct {
	ID  string  `long:"id" required:"true" description:"Place id"`
	Lat float64 `long:"lat" required:"true" description:"Latitude in decimal degrees"`
	Lng float64 `long:"lng" required:"true" description:"Longitude in decimal degrees"`

	env *env
}

// Execute implements flags.Commander.
func (c *MoveCmd) Execute(_ []string) error {
	if err := checkCoordinate(c.Lat, c.Lng); err != nil {
		return err
	}
	s, err := c.env.connect()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := c.env.timeout()
	defer cancel()
	return s.ctrl.DragMarker(ctx, c.ID, models.LatLng{Lat: c.Lat, Lng: c.Lng})
}

// DeleteCmd removes a place.
type DeleteCmd struct {
	ID string `long:"id" required:"true" description:"Place id"`

	env *env
}

// Execute implements flags.Commander.
func (c *DeleteCmd) Execute(_ []string) error {
	s, err := c.env.connect()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := c.env.timeout()
	defer cancel()
	return s.ctrl.DoubleClickMarker(ctx, c.ID)
}

func checkCoordinate(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", lng)
	}
	return nil
}

func printPlaces(out io.Writer, list []models.Place) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNOMBRE\tLAT\tLNG")
	for _, p := range list {
		fmt.Fprintf(w, "%s\t%s\t%.6f\t%.6f\n", p.ID, p.Nombre, p.Lat, p.Lng)
	}
	return w.Flush()
}

// printingDispatcher reports remote changes before applying them.
type printingDispatcher struct {
	next *mapview.Controller
	out  io.Writer
}

func (d *printingDispatcher) Dispatch(ev models.Event) {
	if ev.Origin != d.next.Origin() {
		switch ev.Type {
		case models.EventMarkerNew, models.EventMarkerMove:
			if p, err := ev.DecodePlace(); err == nil {
				fmt.Fprintf(d.out, "%s\t%s\t%s\t%.6f\t%.6f\n", ev.Type, p.ID, p.Nombre, p.Lat, p.Lng)
			}
		case models.EventMarkerDelete:
			if id, err := ev.DecodeID(); err == nil {
				fmt.Fprintf(d.out, "%s\t%s\n", ev.Type, id)
			}
		}
	}
	d.next.Dispatch(ev)
}
