// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

/*
Package main is the entry point for the mapasync relay server.

The relay keeps the authoritative list of map places and fans marker events
out to every connected map client:

	GET /mapa          place list as a flat JSON array
	GET /ws            real-time channel (marcador-nuevo, marcador-mover, marcador-borrar)
	GET /health/live   liveness probe
	GET /health/ready  readiness probe
	GET /metrics       Prometheus metrics

# Application Architecture

	RootSupervisor ("mapasync")
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocket Hub
	│   ├── Relay (bus → registry → hub)
	│   └── Embedded NATS server (bus.embedded only)
	└── APISupervisor ("api-layer")
	    └── HTTP Server

Component initialization order:

 1. Configuration: Koanf v2 with .env, config file and environment variables
 2. Place store: memory or BadgerDB, optionally seeded from a JSON file
 3. Event bus: in-process GoChannel or NATS via Watermill
 4. WebSocket hub and relay
 5. HTTP router and supervisor tree

# Multiple instances

With BUS_BACKEND=nats several relays share one subject, so a client connected
to any instance sees markers placed through every other instance. One
instance may run the NATS server itself with NATS_EMBEDDED=true.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The supervisor shuts the HTTP
server down within server.shutdown_timeout and the hub sends a going-away
close frame to every client. The bus and store are closed last.
*/
package main
