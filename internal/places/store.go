// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package places

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/mapasync/internal/config"
	"github.com/tomtom215/mapasync/internal/models"
)

// ErrPlaceNotFound is returned for ids the store does not hold.
var ErrPlaceNotFound = errors.New("place not found")

// Store is the authoritative place list.
//
// List returns places in first-insertion order. Upsert replaces name and
// position of a known id without moving it in that order.
type Store interface {
	List(ctx context.Context) ([]models.Place, error)
	Get(ctx context.Context, id string) (models.Place, error)
	Upsert(ctx context.Context, place models.Place) (created bool, err error)
	Move(ctx context.Context, place models.Place) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// Store backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// OpenStore creates the store selected by cfg.
func OpenStore(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendBadger:
		store, err := OpenBadgerStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
