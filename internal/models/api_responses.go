// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package models

import (
	"time"
)

// APIResponse is the envelope used by HTTP endpoints that report status.
//
// GET /mapa deliberately does not use it: browser clients expect the place
// list as a bare JSON array.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthStatus is returned by the health endpoints.
type HealthStatus struct {
	Status        string  `json:"status"`
	Version       string  `json:"version,omitempty"`
	Places        int     `json:"places"`
	Clients       int     `json:"clients"`
	BusBackend    string  `json:"bus_backend"`
	StoreBackend  string  `json:"store_backend"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}
