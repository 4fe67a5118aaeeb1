// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

// Package logging provides centralized zerolog-based structured logging for Mapasync.
//
// Both binaries (the relay server and the map client) log through the global
// logger configured here. JSON output is the default; console output is meant
// for local development.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("id", place.ID).Msg("marker added")
//	logging.Ctx(ctx).Warn().Err(err).Msg("emit failed")
//
// # Adapters
//
// NewSlogLogger bridges the zerolog backend to log/slog so that sutureslog
// and watermill can log through the same sink.
//
// # Environment Variables
//
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false
package logging
