// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package guard

import (
	"time"

	"github.com/tomtom215/reqguard/internal/detection"
	"github.com/tomtom215/reqguard/internal/metrics"
)

// Activity thresholds over the report window.
const (
	reportWindow           = time.Hour
	anomalousSourceMinimum = 200
	highActivityMinimum    = 100
)

// SecurityReport is a point-in-time summary of guard state.
type SecurityReport struct {
	Timestamp          time.Time           `json:"timestamp"`
	RateLimitBackend   string              `json:"rate_limit_backend"`
	ActiveRateLimiters int                 `json:"active_rate_limiters"`
	TrackedSources     int                 `json:"tracked_sources"`
	Configuration      ReportConfiguration `json:"configuration"`
	Statistics         ReportStatistics    `json:"statistics"`
}

// ReportConfiguration is the subset of settings shown in reports.
type ReportConfiguration struct {
	MaxRequestSize         int64 `json:"max_request_size"`
	RateLimitRequests      int   `json:"rate_limit_requests"`
	RateLimitWindowSeconds int   `json:"rate_limit_window_seconds"`
	RequireHTTPS           bool  `json:"require_https"`
}

// ReportStatistics summarizes source activity over the last hour.
type ReportStatistics struct {
	TotalRequestsTracked int                        `json:"total_requests_tracked"`
	AnomalousSources     int                        `json:"anomalous_sources"`
	HighActivitySources  []detection.SourceActivity `json:"high_activity_sources"`
}

// keyCounter is implemented by stores that can report their size.
type keyCounter interface {
	Len() int
}

// expirer is implemented by stores holding idle-expiring state.
type expirer interface {
	EvictExpired() int
}

// Report builds a SecurityReport. ActiveRateLimiters is -1 when the
// rate-limit backend cannot count its keys.
func (v *Validator) Report() SecurityReport {
	s := v.settings.Settings()
	store := v.limiter.Store()

	report := SecurityReport{
		Timestamp:          v.now().UTC(),
		RateLimitBackend:   store.Name(),
		ActiveRateLimiters: -1,
		TrackedSources:     v.tracker.TrackedSources(),
		Configuration: ReportConfiguration{
			MaxRequestSize:         s.MaxRequestSize,
			RateLimitRequests:      s.RateLimitRequests,
			RateLimitWindowSeconds: int(s.RateLimitWindow / time.Second),
			RequireHTTPS:           s.RequireHTTPS,
		},
		Statistics: ReportStatistics{
			HighActivitySources: []detection.SourceActivity{},
		},
	}
	if kc, ok := store.(keyCounter); ok {
		report.ActiveRateLimiters = kc.Len()
	}

	for _, a := range v.tracker.Activity(reportWindow) {
		report.Statistics.TotalRequestsTracked += a.Requests
		if a.Requests > anomalousSourceMinimum {
			report.Statistics.AnomalousSources++
		}
		if a.Requests > highActivityMinimum {
			report.Statistics.HighActivitySources = append(report.Statistics.HighActivitySources, a)
		}
	}
	return report
}

// Sweep drops idle per-identifier state and refreshes the tracked
// identifier gauges. It returns the number of entries removed.
func (v *Validator) Sweep() int {
	removed := 0
	store := v.limiter.Store()
	if e, ok := store.(expirer); ok {
		removed += e.EvictExpired()
	}
	if kc, ok := store.(keyCounter); ok {
		metrics.SetTrackedIdentifiers("ratelimit", kc.Len())
	}

	history := v.tracker.Store()
	removed += history.EvictExpired()
	metrics.SetTrackedIdentifiers("anomaly", history.Len())
	return removed
}
