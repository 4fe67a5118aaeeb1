// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

/*
Package mapview is a headless map widget controller.

It owns the map, one marker per place and one info popup per marker, and
keeps them consistent with two sources of change:

  - local gestures: ClickMap (add), DragMarker (move), DoubleClickMarker
    (delete) and ClickMarker (popup). The first three are applied
    optimistically and then broadcast through an Emitter; if the emit fails
    the change is rolled back.
  - remote events: HandleNew, HandleMove and HandleDelete, usually reached
    through Dispatch from the real-time channel.

Places are kept in an identity map keyed by place id, with a separate
insertion-order index so iteration matches the order places were first
seen. Marker and popup live in the same record and are released together.

Remote adds are upserts: a marcador-nuevo for a known id updates that record
in place rather than rendering a second marker. Dispatch also drops events
stamped with the controller's own origin tag, so a relay that echoes a
sender's events back to it does not cause duplicates.

Nothing here draws pixels. A renderer reads Map, Markers and OpenPopup.
*/
package mapview
