// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package places

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/mapasync/internal/logging"
	"github.com/tomtom215/mapasync/internal/models"
)

const (
	placeKeyPrefix = "place:"
	sequenceKey    = "meta:place_seq"
	// sequenceBandwidth is how many sequence numbers are leased per disk write.
	sequenceBandwidth = 100
)

// storedPlace is the value written under place:<id>.
type storedPlace struct {
	Seq   uint64       `json:"seq"`
	Place models.Place `json:"place"`
}

// BadgerStore keeps places in BadgerDB.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence

	// mu serialises read-modify-write cycles on a single place.
	mu sync.Mutex
}

// OpenBadgerStore opens (or creates) a store at path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for places: %w", err)
	}

	store, err := NewBadgerStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logging.Info().Str("path", path).Msg("Badger place store opened")
	return store, nil
}

// NewBadgerStore wraps an open database. Close closes db.
func NewBadgerStore(db *badger.DB) (*BadgerStore, error) {
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("place sequence: %w", err)
	}
	return &BadgerStore{db: db, seq: seq}, nil
}

func placeKey(id string) []byte {
	return []byte(placeKeyPrefix + id)
}

func (s *BadgerStore) load(txn *badger.Txn, id string) (storedPlace, error) {
	var sp storedPlace
	item, err := txn.Get(placeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return sp, ErrPlaceNotFound
	}
	if err != nil {
		return sp, fmt.Errorf("get place: %w", err)
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &sp)
	})
	return sp, err
}

func (s *BadgerStore) save(sp storedPlace) error {
	data, err := json.Marshal(sp)
	if err != nil {
		return fmt.Errorf("marshal place: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(placeKey(sp.Place.ID), data)
	})
}

// List returns all places ordered by first insertion.
func (s *BadgerStore) List(_ context.Context) ([]models.Place, error) {
	var stored []storedPlace

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(placeKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var sp storedPlace
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sp)
			}); err != nil {
				return err
			}
			stored = append(stored, sp)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list places: %w", err)
	}

	sort.Slice(stored, func(i, j int) bool { return stored[i].Seq < stored[j].Seq })

	out := make([]models.Place, len(stored))
	for i := range stored {
		out[i] = stored[i].Place
	}
	return out, nil
}

// Get returns the place with id.
func (s *BadgerStore) Get(_ context.Context, id string) (models.Place, error) {
	var sp storedPlace
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		sp, err = s.load(txn, id)
		return err
	})
	if err != nil {
		return models.Place{}, err
	}
	return sp.Place, nil
}

// Upsert writes place, keeping the sequence of a known id.
func (s *BadgerStore) Upsert(_ context.Context, place models.Place) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing storedPlace
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		existing, err = s.load(txn, place.ID)
		return err
	})

	created := errors.Is(err, ErrPlaceNotFound)
	if err != nil && !created {
		return false, err
	}

	seq := existing.Seq
	if created {
		if seq, err = s.seq.Next(); err != nil {
			return false, fmt.Errorf("next place sequence: %w", err)
		}
	}

	if err := s.save(storedPlace{Seq: seq, Place: place}); err != nil {
		return false, err
	}
	return created, nil
}

// Move updates the position of a known place.
func (s *BadgerStore) Move(_ context.Context, place models.Place) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sp storedPlace
	if err := s.db.View(func(txn *badger.Txn) error {
		var err error
		sp, err = s.load(txn, place.ID)
		return err
	}); err != nil {
		return err
	}

	sp.Place = sp.Place.WithPosition(place.Position())
	return s.save(sp)
}

// Delete removes a place.
func (s *BadgerStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(placeKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrPlaceNotFound
			}
			return fmt.Errorf("get place: %w", err)
		}
		if err := txn.Delete(placeKey(id)); err != nil {
			return fmt.Errorf("delete place: %w", err)
		}
		return nil
	})
}

// Count returns the number of places.
func (s *BadgerStore) Count(_ context.Context) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(placeKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count places: %w", err)
	}
	return n, nil
}

// Close releases the sequence lease and closes the database.
func (s *BadgerStore) Close() error {
	var errs []error
	if err := s.seq.Release(); err != nil {
		errs = append(errs, fmt.Errorf("release sequence: %w", err))
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close badger: %w", err))
	}
	return errors.Join(errs...)
}
