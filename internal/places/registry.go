// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package places

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/mapasync/internal/logging"
	"github.com/tomtom215/mapasync/internal/metrics"
	"github.com/tomtom215/mapasync/internal/models"
)

// ErrInvalidEvent is returned by Apply for payloads that do not decode.
var ErrInvalidEvent = errors.New("invalid marker event")

// Registry applies marker events to a Store.
type Registry struct {
	store  Store
	logger zerolog.Logger
}

// NewRegistry wraps store.
func NewRegistry(store Store) *Registry {
	return &Registry{
		store:  store,
		logger: logging.WithComponent("places"),
	}
}

// Places returns the current list in insertion order.
func (r *Registry) Places(ctx context.Context) ([]models.Place, error) {
	list, err := r.store.List(ctx)
	metrics.RecordStoreOperation("list", err)
	return list, err
}

// Count returns the number of places.
func (r *Registry) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx)
}

// Apply mutates the store according to ev. It reports whether the store
// changed. Moves and deletes of unknown ids are no-ops, not errors.
func (r *Registry) Apply(ctx context.Context, ev models.Event) (bool, error) {
	var (
		changed bool
		err     error
		op      string
	)

	switch ev.Type {
	case models.EventMarkerNew:
		op = "upsert"
		changed, err = r.applyNew(ctx, ev)
	case models.EventMarkerMove:
		op = "move"
		changed, err = r.applyMove(ctx, ev)
	case models.EventMarkerDelete:
		op = "delete"
		changed, err = r.applyDelete(ctx, ev)
	default:
		return false, nil
	}

	if errors.Is(err, ErrInvalidEvent) {
		return false, err
	}
	metrics.RecordStoreOperation(op, err)
	if err != nil {
		return false, err
	}
	if changed {
		r.refreshGauge(ctx)
	}
	return changed, nil
}

func (r *Registry) applyNew(ctx context.Context, ev models.Event) (bool, error) {
	place, err := decodePlace(ev)
	if err != nil {
		return false, err
	}
	created, err := r.store.Upsert(ctx, place)
	if err != nil {
		return false, fmt.Errorf("upsert %s: %w", place.ID, err)
	}
	if !created {
		r.logger.Debug().Str("place_id", place.ID).Msg("Duplicate marcador-nuevo merged into existing place")
	}
	return true, nil
}

func (r *Registry) applyMove(ctx context.Context, ev models.Event) (bool, error) {
	place, err := decodePlace(ev)
	if err != nil {
		return false, err
	}
	err = r.store.Move(ctx, place)
	if errors.Is(err, ErrPlaceNotFound) {
		r.logger.Debug().Str("place_id", place.ID).Msg("Move for unknown place ignored")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("move %s: %w", place.ID, err)
	}
	return true, nil
}

func (r *Registry) applyDelete(ctx context.Context, ev models.Event) (bool, error) {
	id, err := ev.DecodeID()
	if err != nil || id == "" {
		return false, fmt.Errorf("%w: %s", ErrInvalidEvent, describe(err, "empty id"))
	}
	err = r.store.Delete(ctx, id)
	if errors.Is(err, ErrPlaceNotFound) {
		r.logger.Debug().Str("place_id", id).Msg("Delete for unknown place ignored")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", id, err)
	}
	return true, nil
}

func decodePlace(ev models.Event) (models.Place, error) {
	place, err := ev.DecodePlace()
	if err != nil || place.ID == "" {
		return place, fmt.Errorf("%w: %s", ErrInvalidEvent, describe(err, "empty id"))
	}
	return place, nil
}

func describe(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}

// Seed upserts places in order and returns how many were new.
func (r *Registry) Seed(ctx context.Context, places []models.Place) (int, error) {
	created := 0
	for _, p := range places {
		isNew, err := r.store.Upsert(ctx, p)
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", p.ID, err)
		}
		if isNew {
			created++
		}
	}
	r.refreshGauge(ctx)
	return created, nil
}

func (r *Registry) refreshGauge(ctx context.Context) {
	n, err := r.store.Count(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to count places")
		return
	}
	metrics.PlacesTotal.Set(float64(n))
}

// Close closes the underlying store.
func (r *Registry) Close() error {
	return r.store.Close()
}
