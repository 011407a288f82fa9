// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

/*
Package api provides the HTTP surface of the guard.

Routes:

	GET /healthz                         liveness probe
	GET /readyz                          readiness probe (runs HealthChecks)
	GET /metrics                         Prometheus metrics, when enabled
	GET /api/v1/security/report          security report
	GET /api/v1/security/events          stored security events
	GET /api/v1/security/events/stats    event statistics
	GET /api/v1/security/events/export   JSON or CEF export
	GET /api/v1/security/events/{id}     one event
	*   /*                               guarded, then sent upstream

Every route runs behind chi's Recoverer, the request ID middleware, client
IP resolution and the Prometheus request metrics. The management routes
add go-chi/cors and a go-chi/httprate limit keyed by the resolved client
IP. The catch-all group runs middleware.Guard, so blocked requests never
reach the upstream handler.

Event list filters are passed as query parameters:

	type=security_violation   repeatable
	min_priority=ERROR        INFO, WARNING, ERROR or CRITICAL
	source=203.0.113.7        source identifier
	reason=rate_limit_exceeded
	start_time, end_time      RFC 3339
	limit=100                 capped at 1000 (10000 for export)
*/
package api
