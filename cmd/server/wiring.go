// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/reqguard/internal/api"
	"github.com/tomtom215/reqguard/internal/audit"
	"github.com/tomtom215/reqguard/internal/cache"
	"github.com/tomtom215/reqguard/internal/config"
	"github.com/tomtom215/reqguard/internal/detection"
	"github.com/tomtom215/reqguard/internal/guard"
	"github.com/tomtom215/reqguard/internal/logging"
	"github.com/tomtom215/reqguard/internal/metrics"
	"github.com/tomtom215/reqguard/internal/ratelimit"
)

const redisStartupTimeout = 2 * time.Second

// components holds everything main wires together.
type components struct {
	settings  *guard.AtomicSettings
	validator *guard.Validator
	auditLog  *audit.Logger
	events    api.EventStore
	checks    []api.HealthCheck
	closers   []io.Closer
}

// Close releases stores in reverse order of creation.
func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing component")
		}
	}
}

func buildComponents(cfg *config.Config) (*components, error) {
	c := &components{}

	limiterStore, err := buildLimiterStore(cfg, c)
	if err != nil {
		c.Close()
		return nil, err
	}

	sink, err := buildAudit(cfg, c)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.settings = guard.NewAtomicSettings(guard.SettingsFromConfig(cfg.Guard))
	c.validator = guard.New(
		guard.WithSettings(c.settings),
		guard.WithLimiter(ratelimit.New(limiterStore)),
		guard.WithAnomalyTracker(buildTracker(cfg.Guard)),
		guard.WithEventSink(sink),
	)
	return c, nil
}

// buildLimiterStore returns the sliding-log store for the configured
// backend, behind a circuit breaker when enabled.
func buildLimiterStore(cfg *config.Config, c *components) (ratelimit.Store, error) {
	var store ratelimit.Store

	switch cfg.RateLimit.Backend {
	case "redis":
		rc := cfg.RateLimit.Redis
		if rc.Addr == "" {
			return nil, errors.New("ratelimit.redis.addr is required for the redis backend")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		rs := ratelimit.NewRedisStore(client, ratelimit.RedisConfig{
			KeyPrefix: rc.KeyPrefix,
			Timeout:   rc.Timeout,
		})
		c.closers = append(c.closers, rs)
		c.checks = append(c.checks, api.HealthCheck{Name: "redis", Check: rs.Ping})

		// An unreachable Redis is not fatal: the limiter fails open.
		ctx, cancel := context.WithTimeout(context.Background(), redisStartupTimeout)
		if err := rs.Ping(ctx); err != nil {
			logging.Warn().Err(err).Str("addr", rc.Addr).Msg("Redis unreachable at startup, rate limiting fails open until it recovers")
		}
		cancel()
		store = rs
	default:
		store = ratelimit.NewMemoryStore(ratelimit.MemoryConfig{
			MaxKeys: cfg.Guard.State.MaxIdentifiers,
			IdleTTL: cfg.Guard.State.IdleTTL,
		})
	}

	if bc := cfg.RateLimit.Breaker; bc.Enabled {
		bs := ratelimit.NewBreakerStore(store, ratelimit.BreakerConfig{
			MaxRequests:  bc.MaxRequests,
			Interval:     bc.Interval,
			Timeout:      bc.Timeout,
			MinRequests:  bc.MinRequests,
			FailureRatio: bc.FailureRatio,
		})
		c.checks = append(c.checks, api.HealthCheck{Name: "ratelimit-breaker", Check: func(context.Context) error {
			if s := bs.State(); s == "open" {
				return fmt.Errorf("circuit %s", s)
			}
			return nil
		}})
		store = bs
	}

	logging.Info().Str("backend", store.Name()).Msg("Rate limiter configured")
	return store, nil
}

// buildAudit returns the event sink. With audit disabled events are only
// written to the security log.
func buildAudit(cfg *config.Config, c *components) (guard.EventSink, error) {
	if !cfg.Audit.Enabled {
		logging.Info().Msg("Audit storage disabled, security events go to the log only")
		return guard.SecurityLogSink{Logger: logging.NewSecurityLogger()}, nil
	}

	var store audit.Store
	switch cfg.Audit.Store {
	case "badger":
		bs, err := audit.OpenBadgerStore(cfg.Audit.Path)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, bs)
		store = bs
	default:
		store = audit.NewMemoryStore(cfg.Audit.MaxEvents)
	}

	auditCfg := audit.DefaultConfig()
	auditCfg.BufferSize = cfg.Audit.BufferSize
	c.auditLog = audit.NewLogger(store, nil, auditCfg)
	c.events = store

	logging.Info().Str("store", cfg.Audit.Store).Int("buffer", cfg.Audit.BufferSize).Msg("Audit storage configured")
	return c.auditLog, nil
}

func buildTracker(gc config.GuardConfig) *detection.AnomalyTracker {
	history := detection.NewHistoryStore(
		gc.State.MaxIdentifiers,
		detection.DefaultHistoryCapacity,
		gc.State.IdleTTL,
		cache.WithEvictCallback(func(_ string, _ *detection.History, reason cache.EvictReason) {
			label := "capacity"
			if reason == cache.EvictExpired {
				label = "expired"
			}
			metrics.RecordStateEvictions("anomaly", label, 1)
		}),
	)

	ac := gc.Anomaly
	return detection.NewAnomalyTracker(detection.AnomalyConfig{
		BurstThreshold:     ac.BurstThreshold,
		BurstWindow:        ac.BurstWindow,
		PathThreshold:      ac.PathThreshold,
		PathWindow:         ac.PathWindow,
		UserAgentThreshold: ac.UserAgentThreshold,
		UserAgentWindow:    ac.UserAgentWindow,
	}, history)
}
