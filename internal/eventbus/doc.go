// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

/*
Package eventbus carries marker events between relay instances.

Two backends are available, selected by bus.backend:

  - memory: watermill's in-process gochannel pub/sub. A single server
    instance fans events out to its own hub only.
  - nats: watermill-nats over core NATS (JetStream disabled). Every instance
    subscribes to the same subject without a queue group, so each one sees
    every event.

An optional embedded NATS server (nats-server) lets a single binary provide
the subject for other instances to connect to.

Each message carries the event as its payload and two metadata entries:

	instance_id  the publishing process (bus.instance_id)
	conn_id      the websocket connection the event came from

Subscribers use them to skip re-delivering an event to the connection that
produced it. Publishing goes through a gobreaker circuit breaker so a dead
NATS link fails fast instead of stalling read pumps.
*/
package eventbus
