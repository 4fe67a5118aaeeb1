// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Realtime RealtimeConfig `koanf:"realtime"`
	Bus      BusConfig      `koanf:"bus"`
	Store    StoreConfig    `koanf:"store"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	Environment     string        `koanf:"environment" validate:"oneof=development staging production"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// RealtimeConfig holds WebSocket channel settings.
type RealtimeConfig struct {
	// Echo delivers each event back to the connection that sent it.
	// Clients de-duplicate by origin tag either way.
	Echo bool `koanf:"echo"`

	MaxMessageSize int64   `koanf:"max_message_size" validate:"gte=1024"`
	SendBuffer     int     `koanf:"send_buffer" validate:"gte=1"`
	InboundRate    float64 `koanf:"inbound_rate" validate:"gte=0"`
	InboundBurst   int     `koanf:"inbound_burst" validate:"gte=1"`
}

// BusConfig selects the fan-out backend between relay instances.
type BusConfig struct {
	Backend string `koanf:"backend" validate:"oneof=memory nats"`
	Topic   string `koanf:"topic" validate:"required"`

	NATSURL      string `koanf:"nats_url"`
	Embedded     bool   `koanf:"embedded"`
	EmbeddedHost string `koanf:"embedded_host"`
	EmbeddedPort int    `koanf:"embedded_port" validate:"gte=-1,lte=65535"`

	// InstanceID tags messages published by this process. Generated when empty.
	InstanceID string `koanf:"instance_id"`

	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gte=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// StoreConfig selects the authoritative place store.
type StoreConfig struct {
	Backend  string `koanf:"backend" validate:"oneof=memory badger"`
	Path     string `koanf:"path"`
	SeedFile string `koanf:"seed_file"`
}

// SecurityConfig holds CORS and rate limiting settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`

	// Caller adds file:line to every entry.
	Caller bool `koanf:"caller"`
}

// IsProduction reports whether ENVIRONMENT=production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
