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

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/reqguard/internal/logging"
	"github.com/tomtom215/reqguard/internal/metrics"
)

// BreakerConfig configures a BreakerStore.
type BreakerConfig struct {
	// Name labels the breaker in metrics. Default: "ratelimit-<inner name>"
	Name string

	// MaxRequests is the number of probes allowed while half-open.
	// Default: 3
	MaxRequests uint32

	// Interval resets the closed-state counts. Default: 1m
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	// Default: 30s
	Timeout time.Duration

	// MinRequests is the sample size needed before the breaker may trip.
	// Default: 10
	MinRequests uint32

	// FailureRatio trips the breaker once reached. Default: 0.6
	FailureRatio float64
}

func (c BreakerConfig) withDefaults(inner string) BreakerConfig {
	if c.Name == "" {
		c.Name = "ratelimit-" + inner
	}
	if c.MaxRequests == 0 {
		c.MaxRequests = 3
	}
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MinRequests == 0 {
		c.MinRequests = 10
	}
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		c.FailureRatio = 0.6
	}
	return c
}

// BreakerStore guards another Store with a circuit breaker. While the
// breaker is open, Take fails immediately with ErrStoreUnavailable and the
// limiter admits the request.
type BreakerStore struct {
	inner Store
	cb    *gobreaker.CircuitBreaker[Usage]
	name  string
}

// NewBreakerStore wraps inner.
func NewBreakerStore(inner Store, cfg BreakerConfig) *BreakerStore {
	cfg = cfg.withDefaults(inner.Name())

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[Usage](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= cfg.FailureRatio {
				logging.Warn().
					Str("breaker", cfg.Name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).
				Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerStore{inner: inner, cb: cb, name: cfg.Name}
}

// Name implements Store.
func (b *BreakerStore) Name() string {
	return b.inner.Name() + "+breaker"
}

// State reports the breaker state as "closed", "half-open" or "open".
func (b *BreakerStore) State() string {
	return stateToString(b.cb.State())
}

// Take implements Store.
func (b *BreakerStore) Take(ctx context.Context, key string, now time.Time, limit int, window time.Duration) (Usage, error) {
	usage, err := b.cb.Execute(func() (Usage, error) {
		return b.inner.Take(ctx, key, now, limit, window)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			return Usage{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		return Usage{}, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	return usage, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
