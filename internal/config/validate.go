// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package config

import (
	"errors"
	"fmt"

	"github.com/tomtom215/reqguard/internal/validation"
)

// Validate checks structural settings. Guard thresholds are sanitized by the
// guard itself and never fail here.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if c.RateLimit.Backend == "redis" && c.RateLimit.Redis.Addr == "" {
		return errors.New("ratelimit.redis.addr is required when ratelimit.backend is redis")
	}
	if c.Audit.Enabled && c.Audit.Store == "badger" && c.Audit.Path == "" {
		return errors.New("audit.path is required when audit.store is badger")
	}
	if c.Metrics.Enabled && c.Metrics.Path == "/healthz" {
		return fmt.Errorf("metrics.path %q collides with the health endpoint", c.Metrics.Path)
	}

	return nil
}
