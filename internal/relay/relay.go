// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

// Package relay connects the websocket hub, the event bus and the place
// registry.
//
// A marker event read from a connection is published on the bus. Every
// instance subscribed to the bus applies it to its registry and broadcasts
// it to its own clients, skipping the originating connection when the event
// was published by this instance.
package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/mapasync/internal/eventbus"
	"github.com/tomtom215/mapasync/internal/logging"
	"github.com/tomtom215/mapasync/internal/metrics"
	"github.com/tomtom215/mapasync/internal/models"
	"github.com/tomtom215/mapasync/internal/places"
)

// ErrSubscriptionClosed is returned by Serve when the bus stops delivering.
var ErrSubscriptionClosed = errors.New("bus subscription closed")

// Bus is the subset of eventbus.Bus the relay uses.
type Bus interface {
	Publish(ctx context.Context, connID string, ev models.Event) error
	Subscribe(ctx context.Context) (<-chan eventbus.Envelope, error)
	InstanceID() string
}

// Broadcaster delivers an event to connected clients except exclude.
type Broadcaster interface {
	Broadcast(ev models.Event, exclude string) bool
}

// Applier mirrors marker events into server state.
type Applier interface {
	Apply(ctx context.Context, ev models.Event) (bool, error)
}

// Relay is a supervised service moving marker events between hub and bus.
type Relay struct {
	bus      Bus
	hub      Broadcaster
	registry Applier
	logger   zerolog.Logger
}

// New creates a relay.
func New(bus Bus, hub Broadcaster, registry Applier) *Relay {
	return &Relay{
		bus:      bus,
		hub:      hub,
		registry: registry,
		logger:   logging.WithComponent("relay"),
	}
}

// HandleInbound publishes an event read from connection clientID. When the
// bus rejects it the event is delivered locally so this instance's clients
// stay in sync.
func (r *Relay) HandleInbound(ctx context.Context, clientID string, ev models.Event) {
	err := r.bus.Publish(ctx, clientID, ev)
	if err == nil {
		return
	}

	logging.Ctx(ctx).Warn().Err(err).Str("event_type", ev.Type).Msg("bus publish failed, delivering locally")
	r.deliver(ctx, ev, clientID)
}

// Serve consumes the bus until ctx is done.
func (r *Relay) Serve(ctx context.Context) error {
	envs, err := r.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("relay subscribe: %w", err)
	}

	r.logger.Info().Str("instance_id", r.bus.InstanceID()).Msg("relay started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("relay stopped")
			return ctx.Err()
		case env, ok := <-envs:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrSubscriptionClosed
			}
			exclude := ""
			if env.InstanceID == r.bus.InstanceID() {
				exclude = env.ConnID
			}
			r.deliver(logging.ContextWithConnID(ctx, env.ConnID), env.Event, exclude)
		}
	}
}

// String names the service for the supervisor.
func (r *Relay) String() string {
	return "relay"
}

// deliver applies ev to the registry and broadcasts it. Events with an
// invalid payload are dropped.
func (r *Relay) deliver(ctx context.Context, ev models.Event, exclude string) {
	if _, err := r.registry.Apply(ctx, ev); err != nil {
		if errors.Is(err, places.ErrInvalidEvent) {
			metrics.RecordEventDropped("invalid")
			logging.Ctx(ctx).Warn().Err(err).Str("event_type", ev.Type).Msg("dropping invalid marker event")
			return
		}
		// Store failures do not stop the fan-out.
		logging.Ctx(ctx).Error().Err(err).Str("event_type", ev.Type).Msg("failed to apply marker event")
	}
	r.hub.Broadcast(ev, exclude)
}
