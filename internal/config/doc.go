// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

/*
Package config loads Mapasync configuration.

Values are layered, lowest priority first:

 1. Struct defaults (defaultConfig)
 2. YAML file: $CONFIG_PATH, ./config.yaml, ./config.yml, /etc/mapasync/config.yaml
 3. Environment variables, through an explicit mapping table (envTransformFunc)

Load additionally reads a .env file from the working directory before the
environment layer is applied. A missing .env file is not an error.

# Environment Variables

Server:
  - HTTP_HOST (default 0.0.0.0), HTTP_PORT (default 5000)
  - HTTP_TIMEOUT, SHUTDOWN_TIMEOUT, ENVIRONMENT

Real-time channel:
  - REALTIME_ECHO: deliver events back to the sending connection (default false)
  - WS_MAX_MESSAGE_SIZE, WS_SEND_BUFFER, WS_INBOUND_RATE, WS_INBOUND_BURST

Event bus:
  - BUS_BACKEND: memory or nats (default memory)
  - BUS_TOPIC (default mapa.marcadores)
  - NATS_URL, NATS_EMBEDDED, NATS_EMBEDDED_PORT, INSTANCE_ID

Place store:
  - STORE_BACKEND: memory or badger (default memory)
  - STORE_PATH, SEED_FILE

Security:
  - CORS_ORIGINS (comma separated), RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER
*/
package config
