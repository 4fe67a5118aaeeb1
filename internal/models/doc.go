// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

/*
Package models defines the data structures shared by the Mapasync relay and
its clients.

  - Place: a named geographic point (id, nombre, lat, lng)
  - Event: the real-time channel envelope (type, data, origin)
  - APIResponse / APIError: JSON error envelope used by the HTTP API

Field names on the wire are kept compatible with the browser map widget that
first spoke this protocol: places are flat objects with Spanish field names
and event types are "marcador-nuevo", "marcador-mover" and "marcador-borrar".
*/
package models
