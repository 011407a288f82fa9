// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package cache

import (
	"strconv"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLRU_GetOrCreate(t *testing.T) {
	t.Parallel()

	c := NewLRU[int](3, time.Minute)
	calls := 0
	create := func() int { calls++; return calls }

	if got := c.GetOrCreate("a", create); got != 1 {
		t.Errorf("first GetOrCreate = %d, want 1", got)
	}
	if got := c.GetOrCreate("a", create); got != 1 {
		t.Errorf("second GetOrCreate = %d, want cached 1", got)
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}
}

func TestLRU_CapacityEviction(t *testing.T) {
	t.Parallel()

	var evicted []string
	c := NewLRU[int](3, time.Minute, WithEvictCallback(func(key string, _ int, reason EvictReason) {
		if reason != EvictCapacity {
			t.Errorf("reason = %v, want EvictCapacity", reason)
		}
		evicted = append(evicted, key)
	}))

	for i, k := range []string{"a", "b", "c"} {
		c.GetOrCreate(k, func() int { return i })
	}
	c.GetOrCreate("a", func() int { return -1 }) // b becomes least recently used
	c.GetOrCreate("d", func() int { return 4 })

	if _, ok := c.Peek("b"); ok {
		t.Error("expected b to be evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Peek(k); !ok {
			t.Errorf("expected %s to be present", k)
		}
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Errorf("evicted = %v, want [b]", evicted)
	}
}

func TestLRU_IdleExpiry(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := NewLRU[string](10, time.Minute, WithClock[string](clock.Now))

	c.GetOrCreate("idle", func() string { return "x" })
	c.GetOrCreate("busy", func() string { return "y" })

	clock.Advance(40 * time.Second)
	c.GetOrCreate("busy", func() string { return "z" })
	clock.Advance(30 * time.Second)

	if _, ok := c.Peek("idle"); ok {
		t.Error("idle entry should have expired")
	}
	if _, ok := c.Peek("busy"); !ok {
		t.Error("touched entry should still be live")
	}

	if removed := c.EvictExpired(); removed != 1 {
		t.Errorf("EvictExpired = %d, want 1", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestLRU_GetOrCreateReplacesExpired(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := NewLRU[int](10, time.Second, WithClock[int](clock.Now))

	c.GetOrCreate("k", func() int { return 1 })
	clock.Advance(2 * time.Second)

	if got := c.GetOrCreate("k", func() int { return 2 }); got != 2 {
		t.Errorf("GetOrCreate after expiry = %d, want fresh value 2", got)
	}
}

func TestLRU_RangeSkipsExpired(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := NewLRU[int](10, time.Minute, WithClock[int](clock.Now))
	c.GetOrCreate("old", func() int { return 1 })
	clock.Advance(2 * time.Minute)
	c.GetOrCreate("new", func() int { return 2 })

	var keys []string
	c.Range(func(key string, _ int) bool {
		keys = append(keys, key)
		return true
	})
	if len(keys) != 1 || keys[0] != "new" {
		t.Errorf("Range keys = %v, want [new]", keys)
	}
}

func TestLRU_Defaults(t *testing.T) {
	t.Parallel()

	c := NewLRU[int](0, 0)
	if c.capacity != DefaultLRUCapacity {
		t.Errorf("capacity = %d, want %d", c.capacity, DefaultLRUCapacity)
	}
}

func TestLRU_Concurrent(t *testing.T) {
	t.Parallel()

	c := NewLRU[int](50, time.Minute)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := strconv.Itoa((g*500 + i) % 100)
				c.GetOrCreate(key, func() int { return i })
				c.Peek(key)
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 50 {
		t.Errorf("Len = %d, exceeds capacity 50", c.Len())
	}
}
