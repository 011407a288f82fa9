// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

/*
Package ratelimit implements the guard's sliding-window rate limiter.

# Algorithm

For every identifier the store keeps the timestamps of previously accepted
requests (a sliding log). On each Check:

 1. timestamps older than now-window are purged
 2. if the remaining count is at least maxRequests the request is rejected
    and nothing is recorded
 3. otherwise now is recorded and Remaining = maxRequests - count - 1

maxRequests <= 0 rejects every request.

# Backends

  - MemoryStore: per-process logs kept in a bounded LRU with idle expiry
  - RedisStore: sorted-set logs evaluated atomically by a Lua script, for
    deployments with more than one guard instance
  - BreakerStore: wraps another store in a circuit breaker so that a dead
    backend is skipped immediately instead of timing out on every request

# Failure Semantics

The limiter never rejects because of its own failure. When the store returns
an error, Check returns an allowed Decision with FailOpen set together with
the error, and the caller logs a warning.
*/
package ratelimit
