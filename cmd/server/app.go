// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/mapasync/internal/api"
	"github.com/tomtom215/mapasync/internal/config"
	"github.com/tomtom215/mapasync/internal/eventbus"
	"github.com/tomtom215/mapasync/internal/logging"
	"github.com/tomtom215/mapasync/internal/places"
	"github.com/tomtom215/mapasync/internal/relay"
	"github.com/tomtom215/mapasync/internal/supervisor"
	"github.com/tomtom215/mapasync/internal/supervisor/services"
	ws "github.com/tomtom215/mapasync/internal/websocket"
)

const idleTimeout = 60 * time.Second

// app holds the wired relay components.
type app struct {
	cfg      *config.Config
	registry *places.Registry
	nats     *eventbus.EmbeddedServer
	bus      *eventbus.Bus
	hub      *ws.Hub
	relay    *relay.Relay
	handler  http.Handler
	server   *http.Server
}

// newApp opens the store, seeds it, connects the bus and builds the router.
// On error everything opened so far is closed again.
func newApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			if closeErr := a.Close(); closeErr != nil {
				logging.Warn().Err(closeErr).Msg("Cleanup after failed startup")
			}
			a = nil
		}
	}()

	store, err := places.OpenStore(cfg.Store)
	if err != nil {
		return a, fmt.Errorf("open place store: %w", err)
	}
	a.registry = places.NewRegistry(store)

	if cfg.Store.SeedFile != "" {
		seed, err := places.LoadSeedFile(cfg.Store.SeedFile)
		if err != nil {
			return a, err
		}
		created, err := a.registry.Seed(ctx, seed)
		if err != nil {
			return a, err
		}
		logging.Info().Str("file", cfg.Store.SeedFile).Int("created", created).Int("total", len(seed)).Msg("Place store seeded")
	}

	busCfg := cfg.Bus
	if busCfg.Backend == eventbus.BackendNATS && busCfg.Embedded {
		a.nats, err = eventbus.StartEmbeddedServer(busCfg.EmbeddedHost, busCfg.EmbeddedPort)
		if err != nil {
			return a, err
		}
		busCfg.NATSURL = a.nats.ClientURL()
		logging.Info().Str("url", busCfg.NATSURL).Msg("Embedded NATS server started")
	}

	a.bus, err = eventbus.New(busCfg)
	if err != nil {
		return a, err
	}

	a.hub = ws.NewHub(ws.OptionsFromConfig(cfg.Realtime))
	a.relay = relay.New(a.bus, a.hub, a.registry)
	a.hub.SetInboundHandler(a.relay)

	handler := api.NewHandler(a.registry, a.hub, api.HandlerOptions{
		Version:      version,
		StoreBackend: cfg.Store.Backend,
		Bus:          a.bus,
	})
	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(cfg.Security)))
	a.handler = router.SetupChi()

	a.server = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           a.handler,
		ReadHeaderTimeout: cfg.Server.Timeout,
		IdleTimeout:       idleTimeout,
	}
	return a, nil
}

// supervise adds the relay's long-running services to tree.
func (a *app) supervise(tree *supervisor.SupervisorTree) {
	tree.AddMessagingService(services.NewWebSocketHubService(a.hub))
	tree.AddMessagingService(a.relay)
	if a.nats != nil {
		tree.AddMessagingService(services.NewEmbeddedNATSService(a.nats, a.cfg.Server.ShutdownTimeout))
	}
	tree.AddAPIService(services.NewHTTPServerService(a.server, a.cfg.Server.ShutdownTimeout))
}

// Close releases the bus, the embedded NATS server and the store.
func (a *app) Close() error {
	var errs []error
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close bus: %w", err))
		}
	}
	if a.nats != nil && a.nats.IsRunning() {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		if err := a.nats.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown embedded nats: %w", err))
		}
		cancel()
	}
	if a.registry != nil {
		if err := a.registry.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
