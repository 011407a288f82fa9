// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/reqguard/internal/cache"
	"github.com/tomtom215/reqguard/internal/metrics"
)

const memoryStoreName = "memory"

// MemoryConfig bounds the in-memory store.
type MemoryConfig struct {
	// MaxKeys is the maximum number of identifiers tracked at once.
	// The least recently used identifier is dropped when it is exceeded.
	MaxKeys int

	// IdleTTL drops identifiers not seen for this long. It should be at
	// least the longest window in use, otherwise a quiet identifier's log
	// is forgotten before its requests leave the window.
	IdleTTL time.Duration
}

// slidingLog holds accepted timestamps for one identifier.
type slidingLog struct {
	mu     sync.Mutex
	stamps []time.Time
}

// MemoryStore keeps sliding logs in process memory.
type MemoryStore struct {
	logs *cache.LRU[*slidingLog]
}

// NewMemoryStore creates a bounded in-memory store.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	return &MemoryStore{
		logs: cache.NewLRU[*slidingLog](cfg.MaxKeys, cfg.IdleTTL,
			cache.WithEvictCallback(func(_ string, _ *slidingLog, reason cache.EvictReason) {
				metrics.RecordStateEvictions("ratelimit", evictReasonLabel(reason), 1)
			}),
		),
	}
}

// Name implements Store.
func (s *MemoryStore) Name() string {
	return memoryStoreName
}

// Take implements Store. Requests for one key serialize on that key's log.
func (s *MemoryStore) Take(_ context.Context, key string, now time.Time, limit int, window time.Duration) (Usage, error) {
	log := s.logs.GetOrCreate(key, func() *slidingLog { return &slidingLog{} })

	log.mu.Lock()
	defer log.mu.Unlock()

	cutoff := now.Add(-window)
	kept := log.stamps[:0]
	for _, ts := range log.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	log.stamps = kept

	usage := Usage{Count: len(log.stamps)}
	if usage.Count >= limit {
		usage.Oldest = oldest(log.stamps)
		return usage, nil
	}

	log.stamps = append(log.stamps, now)
	usage.Allowed = true
	usage.Oldest = oldest(log.stamps)
	return usage, nil
}

// Len returns the number of tracked identifiers.
func (s *MemoryStore) Len() int {
	return s.logs.Len()
}

// EvictExpired drops identifiers idle for longer than the TTL.
func (s *MemoryStore) EvictExpired() int {
	return s.logs.EvictExpired()
}

// Keys returns up to limit tracked identifiers, most recently used first.
// A non-positive limit returns all of them.
func (s *MemoryStore) Keys(limit int) []string {
	var keys []string
	s.logs.Range(func(key string, _ *slidingLog) bool {
		keys = append(keys, key)
		return limit <= 0 || len(keys) < limit
	})
	return keys
}

func oldest(stamps []time.Time) time.Time {
	var o time.Time
	for _, ts := range stamps {
		if o.IsZero() || ts.Before(o) {
			o = ts
		}
	}
	return o
}

func evictReasonLabel(reason cache.EvictReason) string {
	if reason == cache.EvictExpired {
		return "expired"
	}
	return "capacity"
}
