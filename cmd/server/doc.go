// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

// Package main runs reqguard, a validating reverse proxy.
//
// Every request that is not a probe, a metrics scrape or a management API
// call is checked by the request validator: method, URL length, HTTPS,
// endpoint sensitivity, User-Agent, size, header and query counts, sliding
// window rate limits, anomalous behavior, origin and malicious content.
// Blocked requests get a JSON error; admitted requests go to the upstream
// application, or get a 200 when no upstream is configured.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (e.g. RATE_LIMIT_REQUESTS, UPSTREAM_URL, REDIS_ADDR)
//   - Config file (CONFIG_PATH, ./config.yaml, /etc/reqguard/config.yaml)
//   - Built-in defaults
//
// # Components
//
//  1. Rate limiter store: in-memory LRU, or Redis sorted sets shared by
//     several instances, optionally behind a circuit breaker
//  2. Anomaly tracker with bounded per-source history
//  3. Audit logger persisting security events to memory or BadgerDB
//  4. Chi router with the management API under /api/v1/security
//  5. Supervisor tree running the audit writer, the idle-state sweeper and
//     the HTTP server
//
// # Signal Handling
//
// SIGINT and SIGTERM stop the supervisor tree; the HTTP server drains
// in-flight requests for up to server.shutdown_timeout. SIGHUP reloads the
// guard section of the config file without dropping connections. With
// server.watch_config set, file changes trigger the same reload.
package main
