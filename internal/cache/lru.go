// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package cache

import (
	"sync"
	"time"
)

const (
	// DefaultLRUCapacity is used when a non-positive capacity is requested.
	DefaultLRUCapacity = 100000

	// DefaultLRUTTL is used when a non-positive idle TTL is requested.
	DefaultLRUTTL = 2 * time.Hour
)

// EvictReason tells an eviction callback why an entry left the cache.
type EvictReason int

const (
	// EvictCapacity means the entry was the least recently used when the cache was full.
	EvictCapacity EvictReason = iota
	// EvictExpired means the entry was idle for longer than the TTL.
	EvictExpired
)

// lruEntry is a node in the recency list.
type lruEntry[V any] struct {
	key        string
	value      V
	prev, next *lruEntry[V]
	expiresAt  time.Time
}

// LRU is a thread-safe least-recently-used map with idle TTL.
//
// Peek, GetOrCreate and insertion-time eviction are O(1); a doubly
// linked list keeps recency order and a map gives lookup. The head sentinel's
// next node is the most recently used entry, the tail sentinel's prev node the
// least recently used.
type LRU[V any] struct {
	mu sync.Mutex

	capacity int
	ttl      time.Duration
	now      func() time.Time
	onEvict  func(key string, value V, reason EvictReason)

	items      map[string]*lruEntry[V]
	head, tail *lruEntry[V]
}

// LRUOption configures an LRU.
type LRUOption[V any] func(*LRU[V])

// WithClock replaces time.Now, for deterministic tests.
func WithClock[V any](now func() time.Time) LRUOption[V] {
	return func(c *LRU[V]) {
		if now != nil {
			c.now = now
		}
	}
}

// WithEvictCallback registers fn to run, under the cache lock, for every
// evicted entry. fn must not call back into the cache.
func WithEvictCallback[V any](fn func(key string, value V, reason EvictReason)) LRUOption[V] {
	return func(c *LRU[V]) {
		c.onEvict = fn
	}
}

// NewLRU creates an LRU holding at most capacity entries, each expiring
// after ttl without access.
func NewLRU[V any](capacity int, ttl time.Duration, opts ...LRUOption[V]) *LRU[V] {
	if capacity <= 0 {
		capacity = DefaultLRUCapacity
	}
	if ttl <= 0 {
		ttl = DefaultLRUTTL
	}

	c := &LRU[V]{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[string]*lruEntry[V]),
		head:     &lruEntry[V]{},
		tail:     &lruEntry[V]{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Peek returns the live value for key without changing its recency or expiry.
func (c *LRU[V]) Peek(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.items[key]; ok && !c.now().After(entry.expiresAt) {
		return entry.value, true
	}
	var zero V
	return zero, false
}

// GetOrCreate returns the live value for key, creating it with create when
// absent or expired. The returned value is marked most recently used.
func (c *LRU[V]) GetOrCreate(key string, create func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if entry, ok := c.items[key]; ok {
		if !now.After(entry.expiresAt) {
			c.touch(entry, now)
			return entry.value
		}
		c.evict(entry, EvictExpired)
	}

	entry := &lruEntry[V]{
		key:       key,
		value:     create(),
		expiresAt: now.Add(c.ttl),
	}
	c.pushFront(entry)
	c.items[key] = entry

	for len(c.items) > c.capacity {
		c.evict(c.tail.prev, EvictCapacity)
	}
	return entry.value
}

// Len returns the number of entries, including expired ones not yet swept.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// EvictExpired removes every entry idle for longer than the TTL and returns
// how many were removed.
func (c *LRU[V]) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	// Oldest entries sit at the tail; stop at the first live one.
	for entry := c.tail.prev; entry != c.head; {
		prev := entry.prev
		if !now.After(entry.expiresAt) {
			break
		}
		c.evict(entry, EvictExpired)
		removed++
		entry = prev
	}
	return removed
}

// Range calls fn for every live entry from most to least recently used,
// stopping when fn returns false. fn runs under the cache lock and must not
// call back into the cache.
func (c *LRU[V]) Range(fn func(key string, value V) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for entry := c.head.next; entry != c.tail; entry = entry.next {
		if now.After(entry.expiresAt) {
			continue
		}
		if !fn(entry.key, entry.value) {
			return
		}
	}
}

// The methods below must be called with c.mu held.

func (c *LRU[V]) touch(entry *lruEntry[V], now time.Time) {
	entry.expiresAt = now.Add(c.ttl)
	c.unlink(entry)
	c.pushFront(entry)
}

func (c *LRU[V]) pushFront(entry *lruEntry[V]) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *LRU[V]) unlink(entry *lruEntry[V]) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
}

func (c *LRU[V]) evict(entry *lruEntry[V], reason EvictReason) {
	if entry == c.head || entry == c.tail {
		return
	}
	c.unlink(entry)
	delete(c.items, entry.key)
	if c.onEvict != nil {
		c.onEvict(entry.key, entry.value, reason)
	}
}
