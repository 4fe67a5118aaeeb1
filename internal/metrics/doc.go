// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

/*
Package metrics exposes Prometheus instrumentation for the relay.

All collectors are registered on the default registry through promauto and
served at /metrics:

	curl http://localhost:5000/metrics

# Available Metrics

HTTP API:
  - api_requests_total{method,endpoint,status_code}
  - api_request_duration_seconds{method,endpoint}
  - api_active_requests
  - api_rate_limit_hits_total{endpoint}

Real-time channel:
  - websocket_connections
  - websocket_messages_sent_total / websocket_messages_received_total
  - websocket_errors_total{error_type}
  - realtime_events_received_total{type}
  - realtime_events_broadcast_total{type}
  - realtime_events_dropped_total{reason}

Places and bus:
  - places_total
  - place_store_operations_total{operation,result}
  - bus_messages_published_total / bus_messages_consumed_total
  - bus_publish_errors_total
  - circuit_breaker_state{name}, circuit_breaker_requests_total{name,result},
    circuit_breaker_state_transitions_total{name,from_state,to_state}

Process:
  - app_info{version,go_version}, app_uptime_seconds
*/
package metrics
