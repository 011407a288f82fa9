// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package audit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Key prefixes for BadgerDB storage
const (
	eventKeyPrefix = "event:"
	eventIDPrefix  = "event_id:"
)

// BadgerStore implements Store on BadgerDB for durable storage.
//
// Events are stored under event:<20-digit unix nanos>:<id> so that key
// order is time order, with an event_id:<id> index pointing at the primary key.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a store at path. An empty path opens
// an in-memory database.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open audit badger db: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore wraps an already opened database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func eventKey(ts time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", eventKeyPrefix, ts.UnixNano(), id))
}

// Save persists an audit event.
func (s *BadgerStore) Save(_ context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	key := eventKey(event.Timestamp, event.ID)
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set event: %w", err)
		}
		if err := txn.Set([]byte(eventIDPrefix+event.ID), key); err != nil {
			return fmt.Errorf("set event index: %w", err)
		}
		return nil
	})
}

// Get retrieves an event by ID.
func (s *BadgerStore) Get(_ context.Context, id string) (*Event, error) {
	var event Event

	err := s.db.View(func(txn *badger.Txn) error {
		idx, err := txn.Get([]byte(eventIDPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrEventNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("get event index: %w", err)
		}
		key, err := idx.ValueCopy(nil)
		if err != nil {
			return err
		}

		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrEventNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &event)
		})
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// scan walks events newest first, stopping when fn returns false.
func (s *BadgerStore) scan(fn func(event *Event) bool) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(eventKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration seeks to the largest key <= the seek key.
		seek := append([]byte(eventKeyPrefix), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(opts.Prefix); it.Next() {
			var event Event
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &event)
			}); err != nil {
				return fmt.Errorf("decode event %s: %w", it.Item().Key(), err)
			}
			if !fn(&event) {
				return nil
			}
		}
		return nil
	})
}

// Query retrieves events matching the filter, most recent first.
func (s *BadgerStore) Query(_ context.Context, filter QueryFilter) ([]Event, error) {
	var results []Event
	err := s.scan(func(event *Event) bool {
		if filter.StartTime != nil && event.Timestamp.Before(*filter.StartTime) {
			return false
		}
		if filter.Matches(event) {
			results = append(results, *event)
		}
		return filter.Limit <= 0 || len(results) < filter.Limit
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Count returns the number of events matching the filter.
func (s *BadgerStore) Count(_ context.Context, filter QueryFilter) (int64, error) {
	var count int64
	err := s.scan(func(event *Event) bool {
		if filter.StartTime != nil && event.Timestamp.Before(*filter.StartTime) {
			return false
		}
		if filter.Matches(event) {
			count++
		}
		return true
	})
	return count, err
}

// Delete removes events older than the given time.
func (s *BadgerStore) Delete(_ context.Context, olderThan time.Time) (int64, error) {
	cutoff := eventKey(olderThan, "")
	var keys, ids [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(eventKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(opts.Prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if bytes.Compare(key, cutoff) >= 0 {
				break
			}
			keys = append(keys, key)
			// Key layout: event:<ts>:<id>
			ids = append(ids, []byte(eventIDPrefix+string(key[len(eventKeyPrefix)+21:])))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("list expired events: %w", err)
	}

	if len(keys) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	for i := range keys {
		if err := wb.Delete(keys[i]); err != nil {
			wb.Cancel()
			return 0, fmt.Errorf("delete event: %w", err)
		}
		if err := wb.Delete(ids[i]); err != nil {
			wb.Cancel()
			return 0, fmt.Errorf("delete event index: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush deletes: %w", err)
	}
	return int64(len(keys)), nil
}

// GetStats summarizes the stored events.
func (s *BadgerStore) GetStats(_ context.Context) (*Stats, error) {
	stats := newStats()
	if err := s.scan(func(event *Event) bool {
		stats.add(event)
		return true
	}); err != nil {
		return nil, err
	}
	return stats, nil
}
