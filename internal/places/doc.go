// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

/*
Package places holds the relay's authoritative list of map places.

GET /mapa serves this list, and every marker event that passes through the
relay is applied to it, so a client that loads the map after others have
edited it sees their changes.

Two Store implementations share one contract:

  - MemoryStore: slice plus id index, insertion order preserved (default)
  - BadgerStore: BadgerDB, insertion order kept with a sequence stored in each value

Registry applies marcador-nuevo, marcador-mover and marcador-borrar events
to a Store with the same upsert-by-id semantics the map view uses on the
client, and keeps the places_total gauge current.

A store can be seeded at startup from a YAML or JSON file (LoadSeedFile).
*/
package places
