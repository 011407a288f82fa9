// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/reqguard/internal/guard"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck probes one dependency, e.g. the Redis limiter backend.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthStatus is the readiness probe body.
type HealthStatus struct {
	Status string            `json:"status"`
	Uptime float64           `json:"uptime_seconds"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers struct {
	checks    []HealthCheck
	startTime time.Time
}

// NewHealthHandlers creates the probe handlers.
func NewHealthHandlers(checks ...HealthCheck) *HealthHandlers {
	return &HealthHandlers{checks: checks, startTime: time.Now()}
}

// HealthLive handles GET /healthz. It answers 200 whenever the process
// can serve HTTP.
func (h *HealthHandlers) HealthLive(w http.ResponseWriter, _ *http.Request) {
	guard.WriteJSON(w, http.StatusOK, &HealthStatus{
		Status: "alive",
		Uptime: time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles GET /readyz. Any failed check answers 503.
func (h *HealthHandlers) HealthReady(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status: "ready",
		Uptime: time.Since(h.startTime).Seconds(),
		Checks: make(map[string]string, len(h.checks)),
	}
	code := http.StatusOK

	for _, c := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := c.Check(ctx)
		cancel()
		if err != nil {
			status.Checks[c.Name] = err.Error()
			status.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status.Checks[c.Name] = "ok"
	}

	guard.WriteJSON(w, code, &status)
}
