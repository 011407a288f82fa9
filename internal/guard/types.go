// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package guard

import (
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/reqguard/internal/detection"
)

// Blocked reasons.
const (
	ReasonRateLimitExceeded = "rate_limit_exceeded"
	ReasonValidationError   = "validation_error"

	// ReasonSecurityViolation is reported to clients when a request is
	// blocked without a more specific reason.
	ReasonSecurityViolation = "security_violation"
)

// Headers is a case-insensitive header map. Keys set through Set are
// canonical; keys from a literal map may be in any case.
type Headers http.Header

// Get returns the first value for key in any letter case.
func (h Headers) Get(key string) string {
	if vs, ok := h[http.CanonicalHeaderKey(key)]; ok {
		if len(vs) == 0 {
			return ""
		}
		return vs[0]
	}
	for k, vs := range h {
		if len(vs) > 0 && strings.EqualFold(k, key) {
			return vs[0]
		}
	}
	return ""
}

// Set replaces the values for key, dropping spellings in other cases.
func (h Headers) Set(key, value string) {
	h.Del(key)
	http.Header(h).Set(key, value)
}

// Del removes key in every letter case.
func (h Headers) Del(key string) {
	for k := range h {
		if strings.EqualFold(k, key) {
			delete(h, k)
		}
	}
}

// Len returns the number of distinct header names, ignoring case.
func (h Headers) Len() int {
	names := make(map[string]struct{}, len(h))
	for k := range h {
		names[http.CanonicalHeaderKey(k)] = struct{}{}
	}
	return len(names)
}

// RequestMetadata describes one inbound request.
type RequestMetadata struct {
	Method  string
	URL     string // absolute URL including scheme and query
	Path    string
	Query   map[string][]string
	Headers Headers
	Body    string

	// SourceID identifies the caller, usually the client IP. It keys the
	// rate limiter and anomaly tracker and is not validated.
	SourceID string

	// RequestID correlates log lines and security events.
	RequestID string
}

// RateLimitInfo reports the limiter decision for a request.
type RateLimitInfo struct {
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	ResetAt    time.Time     `json:"reset_at"`
	RetryAfter time.Duration `json:"-"`
	FailOpen   bool          `json:"fail_open,omitempty"`
}

// ValidationResult is the aggregated verdict for one request.
type ValidationResult struct {
	IsSafe          bool                     `json:"is_safe"`
	RiskLevel       detection.RiskLevel      `json:"risk_level"`
	Violations      []string                 `json:"violations"`
	Warnings        []string                 `json:"warnings"`
	BlockedReason   string                   `json:"blocked_reason,omitempty"`
	Recommendations []string                 `json:"recommendations"`
	AttackTypes     []detection.AttackType   `json:"attack_types,omitempty"`
	Anomaly         *detection.AnomalyResult `json:"anomaly,omitempty"`
	RateLimit       *RateLimitInfo           `json:"rate_limit,omitempty"`
}

func newResult() ValidationResult {
	return ValidationResult{
		IsSafe:          true,
		RiskLevel:       detection.RiskLow,
		Violations:      []string{},
		Warnings:        []string{},
		Recommendations: []string{},
	}
}

func validationErrorResult(violation string) ValidationResult {
	res := newResult()
	res.IsSafe = false
	res.RiskLevel = detection.RiskCritical
	res.BlockedReason = ReasonValidationError
	res.Violations = append(res.Violations, violation)
	return res
}
