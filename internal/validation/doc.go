// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared by the process. It carries the
// custom "placeid" tag used by models.Place and translates field errors into
// readable messages joined by "; ".
//
//	if err := validation.ValidatePlaces(places); err != nil {
//	    return fmt.Errorf("seed %s: %w", path, err)
//	}
//
// The same instance validates configuration structs (see internal/config),
// so `oneof`, `gte`/`lte` and `hostname_port` tags produce the same messages
// for configuration and seed files.
package validation
