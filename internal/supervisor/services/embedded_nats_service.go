// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"
)

// ErrNATSServerStopped is returned when the embedded server exits on its own.
var ErrNATSServerStopped = errors.New("embedded NATS server stopped")

const natsHealthInterval = time.Second

// EmbeddedNATS is satisfied by *eventbus.EmbeddedServer.
type EmbeddedNATS interface {
	IsRunning() bool
	Shutdown(ctx context.Context) error
}

// EmbeddedNATSService watches an already started embedded NATS server and
// stops it on shutdown. The server is started before the bus connects, so
// this service cannot restart it; a dead server ends the service for good.
type EmbeddedNATSService struct {
	server          EmbeddedNATS
	shutdownTimeout time.Duration
	interval        time.Duration
	name            string
}

// NewEmbeddedNATSService wraps server. A non-positive timeout means 10s.
func NewEmbeddedNATSService(server EmbeddedNATS, shutdownTimeout time.Duration) *EmbeddedNATSService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &EmbeddedNATSService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		interval:        natsHealthInterval,
		name:            "nats-embedded",
	}
}

// Serve implements suture.Service.
func (s *EmbeddedNATSService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := s.server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return ctx.Err()
		case <-ticker.C:
			if !s.server.IsRunning() {
				return fmt.Errorf("%w: %w", ErrNATSServerStopped, suture.ErrDoNotRestart)
			}
		}
	}
}

func (s *EmbeddedNATSService) String() string {
	return s.name
}
