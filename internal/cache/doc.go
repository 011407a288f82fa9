// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

/*
Package cache provides the bounded in-memory data structures behind the guard's
per-source state.

# Overview

The package provides:
  - LRU: a generic, thread-safe least-recently-used map with idle TTL, used to
    hold one state object per source identifier (rate-limit logs, anomaly
    histories) without letting a flood of spoofed addresses grow memory
    without bound
  - Matcher: an immutable Aho-Corasick automaton for case-insensitive
    multi-substring search, used for User-Agent block lists and scanner
    signatures

# Bounding Per-Source State

Every entry in an LRU expires after it has been idle for the configured TTL.
Expired entries are dropped lazily on access and in bulk by EvictExpired,
which the supervisor's sweeper service calls on an interval. When the map is
full, inserting a new key evicts the least recently used entry.

	states := cache.NewLRU[*window](100000, 2*time.Hour)
	w := states.GetOrCreate("203.0.113.7:/login", newWindow)

# Thread Safety

LRU serializes map and list updates on a single mutex. Values are handed out
as-is; callers that mutate a value must guard it themselves (the rate limiter
and anomaly tracker give each state object its own mutex).

Matcher is read-only after construction and needs no locking.
*/
package cache
