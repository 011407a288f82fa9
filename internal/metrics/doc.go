// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered on the default registry with promauto and are
exposed by the server at /metrics.

# Available Metrics

Guard engine:
  - guard_validations_total{outcome,risk_level}: validation decisions
  - guard_validation_duration_seconds: time spent in Validate
  - guard_violations_total{category}: violations by check category
  - guard_content_matches_total{attack_type}: content classifier family hits
  - guard_anomalies_total{reason}: anomaly tracker detections
  - guard_rate_limit_rejections_total: requests rejected by the rate limiter
  - guard_rate_limit_fail_open_total{backend}: limiter store errors admitted open
  - guard_tracked_identifiers{store}: per-source state entries held in memory
  - guard_state_evictions_total{store}: per-source state entries evicted

Security events:
  - audit_events_total{priority}: events accepted by the audit pipeline
  - audit_events_dropped_total: events dropped because the buffer was full

Rate limit backend circuit breaker:
  - circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total{name,result}
  - circuit_breaker_state_transitions_total{name,from_state,to_state}

HTTP:
  - api_requests_total{method,endpoint,status}
  - api_request_duration_seconds{method,endpoint}
  - api_active_requests

# Label Cardinality

Endpoint labels are the chi route pattern, never the raw path, and
identifiers are never used as labels.
*/
package metrics
