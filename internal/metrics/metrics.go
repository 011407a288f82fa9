// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Guard Metrics
	GuardValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guard_validations_total",
			Help: "Total number of request validations by outcome and risk level",
		},
		[]string{"outcome", "risk_level"}, // outcome: allowed, blocked, error
	)

	GuardValidationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "guard_validation_duration_seconds",
			Help:    "Time spent validating a request",
			Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.1},
		},
	)

	GuardViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guard_violations_total",
			Help: "Total number of violations by check category",
		},
		[]string{"category"},
	)

	GuardContentMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guard_content_matches_total",
			Help: "Total number of requests matching an attack family",
		},
		[]string{"attack_type"},
	)

	GuardAnomaliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guard_anomalies_total",
			Help: "Total number of behavioral anomalies detected",
		},
		[]string{"reason"},
	)

	GuardRateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guard_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	GuardRateLimitFailOpen = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guard_rate_limit_fail_open_total",
			Help: "Total number of rate limit checks admitted because the store failed",
		},
		[]string{"backend"},
	)

	GuardTrackedIdentifiers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "guard_tracked_identifiers",
			Help: "Number of per-source state entries held in memory",
		},
		[]string{"store"}, // ratelimit, anomaly
	)

	GuardStateEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guard_state_evictions_total",
			Help: "Total number of per-source state entries evicted",
		},
		[]string{"store", "reason"}, // reason: capacity, expired
	)

	// Audit Metrics
	AuditEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_total",
			Help: "Total number of security events accepted by the audit pipeline",
		},
		[]string{"priority"},
	)

	AuditEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_events_dropped_total",
			Help: "Total number of security events dropped because the buffer was full",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// RecordValidation records one Validate call.
func RecordValidation(outcome, riskLevel string, duration time.Duration) {
	GuardValidationsTotal.WithLabelValues(outcome, riskLevel).Inc()
	GuardValidationDuration.Observe(duration.Seconds())
}

// RecordViolation counts a violation of the given check category.
func RecordViolation(category string) {
	GuardViolationsTotal.WithLabelValues(category).Inc()
}

// RecordContentMatch counts a content classifier family hit.
func RecordContentMatch(attackType string) {
	GuardContentMatchesTotal.WithLabelValues(attackType).Inc()
}

// RecordAnomaly counts an anomaly by reason.
func RecordAnomaly(reason string) {
	GuardAnomaliesTotal.WithLabelValues(reason).Inc()
}

// RecordRateLimitRejection counts a rate limiter rejection.
func RecordRateLimitRejection() {
	GuardRateLimitRejections.Inc()
}

// RecordRateLimitFailOpen counts a store failure that was admitted.
func RecordRateLimitFailOpen(backend string) {
	GuardRateLimitFailOpen.WithLabelValues(backend).Inc()
}

// SetTrackedIdentifiers updates the tracked state gauge for store.
func SetTrackedIdentifiers(store string, n int) {
	GuardTrackedIdentifiers.WithLabelValues(store).Set(float64(n))
}

// RecordStateEvictions adds n evictions for store.
func RecordStateEvictions(store, reason string, n int) {
	if n <= 0 {
		return
	}
	GuardStateEvictions.WithLabelValues(store, reason).Add(float64(n))
}

// RecordAuditEvent counts an accepted security event.
func RecordAuditEvent(priority string) {
	AuditEventsTotal.WithLabelValues(priority).Inc()
}

// RecordAuditDrop counts a dropped security event.
func RecordAuditDrop() {
	AuditEventsDropped.Inc()
}

// RecordAPIRequest records an HTTP request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
