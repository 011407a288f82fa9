// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

/*
Package config provides centralized configuration management for Reqguard.

# Configuration Sources

LoadWithKoanf layers three sources, later ones winning:

 1. built-in defaults (defaultConfig)
 2. an optional YAML file: CONFIG_PATH, or the first of DefaultConfigPaths
 3. environment variables, mapped explicitly by envTransformFunc

# Configuration Structure

  - ServerConfig: listener, timeouts, trusted proxies, upstream
  - LoggingConfig: zerolog level, format and caller info
  - GuardConfig: request limits, method and origin allow-lists, rate limit,
    anomaly thresholds and state bounds
  - RateLimitConfig: limiter backend (memory or redis) and circuit breaker
  - AuditConfig: security event buffer and store (memory or badger)
  - MetricsConfig: Prometheus endpoint

# Environment Variables

Selected variables (see envTransformFunc for the full list):

  - HTTP_HOST, HTTP_PORT, UPSTREAM_URL, TRUSTED_PROXIES
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER
  - MAX_REQUEST_SIZE, MAX_URL_LENGTH, MAX_HEADERS_COUNT, MAX_QUERY_PARAMS
  - ALLOWED_METHODS, BLOCKED_USER_AGENTS, ALLOWED_ORIGINS (comma-separated)
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW_SECONDS
  - ENABLE_ANOMALY_DETECTION, REQUIRE_HTTPS
  - RATE_LIMIT_BACKEND, REDIS_ADDR, REDIS_PASSWORD, REDIS_DB
  - AUDIT_ENABLED, AUDIT_STORE, AUDIT_PATH

# Validation

Structural settings (ports, enums, URLs, CIDRs, method and origin
patterns) are checked with go-playground/validator through the validation
package and fail loading. Guard thresholds are not fatal here: out-of-range
values are replaced with defaults when guard settings are built.

# Thread Safety

Config is immutable after loading. Reloads build a new Config.
*/
package config
