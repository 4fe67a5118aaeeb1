// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package places

import (
	"context"
	"sync"

	"github.com/tomtom215/mapasync/internal/models"
)

// MemoryStore keeps places in a slice with an id index.
type MemoryStore struct {
	mu     sync.RWMutex
	places []models.Place
	index  map[string]int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		index: make(map[string]int),
	}
}

// List returns a copy of all places in insertion order.
func (s *MemoryStore) List(_ context.Context) ([]models.Place, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Place, len(s.places))
	copy(out, s.places)
	return out, nil
}

// Get returns the place with id.
func (s *MemoryStore) Get(_ context.Context, id string) (models.Place, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return models.Place{}, ErrPlaceNotFound
	}
	return s.places[i], nil
}

// Upsert appends an unknown place or overwrites a known one in its slot.
func (s *MemoryStore) Upsert(_ context.Context, place models.Place) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[place.ID]; ok {
		s.places[i] = place
		return false, nil
	}
	s.index[place.ID] = len(s.places)
	s.places = append(s.places, place)
	return true, nil
}

// Move updates the position of a known place. The stored name is kept.
func (s *MemoryStore) Move(_ context.Context, place models.Place) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[place.ID]
	if !ok {
		return ErrPlaceNotFound
	}
	s.places[i] = s.places[i].WithPosition(place.Position())
	return nil
}

// Delete removes a place and closes the gap in insertion order.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return ErrPlaceNotFound
	}
	s.places = append(s.places[:i], s.places[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.places); j++ {
		s.index[s.places[j].ID] = j
	}
	return nil
}

// Count returns the number of places.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.places), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
