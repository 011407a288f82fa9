// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrStoreUnavailable is returned, wrapped, when the backing store cannot answer.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")

	// ErrInvalidWindow is returned when the window is not positive.
	ErrInvalidWindow = errors.New("rate limit window must be positive")
)

// Usage is a store's answer for one admission attempt.
type Usage struct {
	// Allowed reports whether the attempt was recorded.
	Allowed bool
	// Count is the number of recorded timestamps after purging and before
	// this attempt.
	Count int
	// Oldest is the oldest retained timestamp; zero when the log is empty.
	Oldest time.Time
}

// Store keeps sliding logs keyed by identifier.
type Store interface {
	// Take purges timestamps older than now-window and records now if fewer
	// than limit remain. It must be atomic per key.
	Take(ctx context.Context, key string, now time.Time, limit int, window time.Duration) (Usage, error)

	// Name identifies the backend in logs and metrics.
	Name() string
}

// Decision is the limiter's verdict for one request.
type Decision struct {
	Allowed   bool
	Remaining int
	// ResetAt is when the oldest counted request leaves the window.
	ResetAt time.Time
	// FailOpen is set when the store failed and the request was admitted anyway.
	FailOpen bool
}

// RetryAfter returns how long a rejected caller should wait, relative to now.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || d.ResetAt.IsZero() || !d.ResetAt.After(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

// Limiter applies sliding-window limits on top of a Store.
type Limiter struct {
	store Store
	now   func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a limiter over store. A nil store gets a default MemoryStore.
func New(store Store, opts ...Option) *Limiter {
	if store == nil {
		store = NewMemoryStore(MemoryConfig{})
	}
	l := &Limiter{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Store returns the backing store.
func (l *Limiter) Store() Store {
	return l.store
}

// Check admits or rejects one request for identifier. Store errors never
// cause a rejection: the returned Decision is allowed with FailOpen set and
// the error is returned alongside it for logging.
func (l *Limiter) Check(ctx context.Context, identifier string, maxRequests int, window time.Duration) (Decision, error) {
	if maxRequests <= 0 {
		return Decision{Allowed: false, Remaining: 0}, nil
	}
	if window <= 0 {
		return Decision{Allowed: true, Remaining: maxRequests, FailOpen: true}, ErrInvalidWindow
	}

	now := l.now()
	usage, err := l.store.Take(ctx, identifier, now, maxRequests, window)
	if err != nil {
		return Decision{Allowed: true, Remaining: maxRequests, FailOpen: true},
			fmt.Errorf("%s store: %w", l.store.Name(), err)
	}

	d := Decision{Allowed: usage.Allowed}
	if usage.Allowed {
		d.Remaining = maxRequests - usage.Count - 1
	}
	if !usage.Oldest.IsZero() {
		d.ResetAt = usage.Oldest.Add(window)
	} else {
		d.ResetAt = now.Add(window)
	}
	return d, nil
}
