// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package websocket

import (
	"github.com/tomtom215/mapasync/internal/config"
)

// Default hub options.
const (
	DefaultSendBuffer     = 256
	DefaultMaxMessageSize = 64 * 1024
	DefaultInboundBurst   = 40
)

// Options configures a Hub.
type Options struct {
	// Echo delivers a client's own marker events back to it.
	Echo bool

	// SendBuffer is the per-client outbound queue length.
	SendBuffer int

	// MaxMessageSize is the largest inbound frame accepted, in bytes.
	MaxMessageSize int64

	// InboundRate is the sustained inbound frames per second per client.
	// Zero disables the limit.
	InboundRate float64

	// InboundBurst is the inbound frame burst per client.
	InboundBurst int
}

// OptionsFromConfig maps the realtime configuration onto hub options.
func OptionsFromConfig(cfg config.RealtimeConfig) Options {
	return Options{
		Echo:           cfg.Echo,
		SendBuffer:     cfg.SendBuffer,
		MaxMessageSize: cfg.MaxMessageSize,
		InboundRate:    cfg.InboundRate,
		InboundBurst:   cfg.InboundBurst,
	}
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = DefaultSendBuffer
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = DefaultMaxMessageSize
	}
	if o.InboundRate < 0 {
		o.InboundRate = 0
	}
	if o.InboundBurst <= 0 {
		o.InboundBurst = DefaultInboundBurst
	}
	return o
}
