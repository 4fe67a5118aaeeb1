// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

/*
Package supervisor provides process supervision for the map server using suture v4.

Services are organized into two layers for failure isolation:

	RootSupervisor ("mapasync")
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocketHubService
	│   ├── relay.Relay
	│   └── EmbeddedNATSService (bus.embedded only)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crash in the relay or the bus restarts only the messaging layer; the HTTP
server keeps answering /mapa and health probes meanwhile.

Supervisor events (service start, failure, backoff) are logged through
sutureslog into the zerolog-backed slog handler from internal/logging.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddMessagingService(relay.New(bus, hub, registry))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	errCh := tree.ServeBackground(ctx)
*/
package supervisor
