// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

// Package realtime is the client side of the map relay.
//
// PlacesClient fetches the authoritative place list over HTTP and Channel
// carries marker events over the websocket endpoint. Together they satisfy
// the mapview.PlaceSource and mapview.Emitter interfaces:
//
//	places := realtime.NewPlacesClient(server, nil)
//	ch, err := realtime.Dial(ctx, server, realtime.ChannelOptions{})
//	ctrl := mapview.NewController(places, ch, mapview.Config{Origin: ch.Origin()})
//	go ch.Run(ctx, ctrl)
package realtime
