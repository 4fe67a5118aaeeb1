// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

/*
Package websocket is the relay side of the real-time marker channel.

A Hub owns the connected clients. Each Client runs a read pump and a write
pump over a gorilla/websocket connection:

	┌──────────┐   inbound marker events   ┌───────────────┐
	│  Client  │ ────────────────────────▶ │ InboundHandler│ (relay)
	└────┬─────┘                           └───────┬───────┘
	     │ send queue                              │ Broadcast(ev, exclude)
	┌────┴─────────────────────────────────────────▼──┐
	│                       Hub                        │
	└──────────────────────────────────────────────────┘

Frames are JSON text messages using the models.Event envelope:

	{"type":"marcador-mover","data":{"id":"…","nombre":"…","lat":1,"lng":2}}

Every client gets a server-side id (uuid). Broadcast skips the client whose id
is passed as exclude, so a sender does not receive its own change back unless
Options.Echo is set. A "ping" frame is answered with "pong"; other non-marker
types are ignored. Inbound frames beyond the per-connection rate limit are
dropped.

Broadcast never blocks: a client whose send queue is full is disconnected.
*/
package websocket
