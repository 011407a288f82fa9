// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package detection

import (
	"sync"
	"time"

	"github.com/tomtom215/reqguard/internal/cache"
)

// DefaultHistoryCapacity is the number of snapshots retained per source.
const DefaultHistoryCapacity = 100

// RequestSnapshot is the slice of a request the anomaly tracker remembers.
type RequestSnapshot struct {
	Timestamp time.Time
	Path      string
	Method    string
	UserAgent string
}

// History is a fixed-capacity FIFO ring of snapshots for one source.
// Appending to a full ring overwrites the oldest snapshot.
type History struct {
	mu    sync.Mutex
	buf   []RequestSnapshot
	start int
	size  int
}

// NewHistory creates an empty ring holding at most capacity snapshots.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{buf: make([]RequestSnapshot, capacity)}
}

// appendLocked adds s, evicting the oldest snapshot when full. h.mu must be held.
func (h *History) appendLocked(s RequestSnapshot) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = s
		h.size++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % len(h.buf)
}

// eachLocked visits snapshots oldest first. h.mu must be held.
func (h *History) eachLocked(fn func(RequestSnapshot)) {
	for i := 0; i < h.size; i++ {
		fn(h.buf[(h.start+i)%len(h.buf)])
	}
}

// Len returns the number of retained snapshots.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size
}

// CountSince returns how many snapshots are strictly newer than cutoff.
func (h *History) CountSince(cutoff time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	h.eachLocked(func(s RequestSnapshot) {
		if s.Timestamp.After(cutoff) {
			n++
		}
	})
	return n
}

// HistoryStore owns the per-source histories. Sources are kept in a bounded
// LRU and dropped after being idle for the configured TTL.
type HistoryStore struct {
	capacity int
	sources  *cache.LRU[*History]
}

// NewHistoryStore creates a store tracking at most maxSources sources, each
// with a ring of historyCapacity snapshots, forgetting sources idle for idleTTL.
func NewHistoryStore(maxSources, historyCapacity int, idleTTL time.Duration, opts ...cache.LRUOption[*History]) *HistoryStore {
	if historyCapacity <= 0 {
		historyCapacity = DefaultHistoryCapacity
	}
	return &HistoryStore{
		capacity: historyCapacity,
		sources:  cache.NewLRU[*History](maxSources, idleTTL, opts...),
	}
}

// Get returns the history for id, creating it if needed.
func (s *HistoryStore) Get(id string) *History {
	return s.sources.GetOrCreate(id, func() *History { return NewHistory(s.capacity) })
}

// Peek returns the history for id without creating or touching it.
func (s *HistoryStore) Peek(id string) (*History, bool) {
	return s.sources.Peek(id)
}

// Len returns the number of tracked sources.
func (s *HistoryStore) Len() int {
	return s.sources.Len()
}

// EvictExpired drops idle sources and returns how many were removed.
func (s *HistoryStore) EvictExpired() int {
	return s.sources.EvictExpired()
}

// Range visits every live source. fn must not call back into the store.
func (s *HistoryStore) Range(fn func(id string, h *History) bool) {
	s.sources.Range(fn)
}
