// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/reqguard/internal/guard"
	"github.com/tomtom215/reqguard/internal/middleware"
)

// RouterConfig holds the router settings that are not owned by the validator.
type RouterConfig struct {
	// MetricsEnabled exposes Prometheus metrics at MetricsPath.
	MetricsEnabled bool
	MetricsPath    string

	// Management configures CORS and rate limiting for /api/v1/security.
	// Nil uses DefaultChiMiddlewareConfig with origins taken from the
	// validator settings.
	Management *ChiMiddlewareConfig
}

// Router wires the guard, the management API and the probes into one chi tree.
type Router struct {
	config        RouterConfig
	validator     *guard.Validator
	resolver      *middleware.ClientIPResolver
	upstream      http.Handler
	security      *SecurityHandlers
	health        *HealthHandlers
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. events may be nil when audit storage is disabled.
func NewRouter(cfg RouterConfig, v *guard.Validator, resolver *middleware.ClientIPResolver,
	upstream http.Handler, events EventStore, checks ...HealthCheck) (*Router, error) {
	if v == nil {
		return nil, errors.New("router requires a validator")
	}
	if upstream == nil {
		return nil, errors.New("router requires an upstream handler")
	}
	if resolver == nil {
		var err error
		if resolver, err = middleware.NewClientIPResolver(nil); err != nil {
			return nil, err
		}
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	mw := cfg.Management
	if mw == nil {
		mw = DefaultChiMiddlewareConfig()
	}
	if mw.CORSOrigins == nil {
		mw.CORSOrigins = func() []string { return v.Settings().AllowedOrigins }
	}

	return &Router{
		config:        cfg,
		validator:     v,
		resolver:      resolver,
		upstream:      upstream,
		security:      NewSecurityHandlers(v, events),
		health:        NewHealthHandlers(checks...),
		chiMiddleware: NewChiMiddleware(mw),
	}, nil
}

// SetupChi builds the HTTP handler.
//
// Probes and metrics bypass the guard. The management API is rate limited
// per client IP. Every other path is validated and then handed upstream.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(router.resolver.Middleware)
	r.Use(middleware.PrometheusMetrics)

	r.Get("/healthz", router.health.HealthLive)
	r.Get("/readyz", router.health.HealthReady)

	if router.config.MetricsEnabled {
		r.Handle(router.config.MetricsPath, promhttp.Handler())
	}

	r.Route("/api/v1/security", func(r chi.Router) {
		r.Use(router.chiMiddleware.CORS())
		r.Use(router.chiMiddleware.RateLimitByClientIP())
		r.Use(APISecurityHeaders())

		r.Get("/report", router.security.Report)
		r.Get("/events", router.security.ListEvents)
		r.Get("/events/stats", router.security.Stats)
		r.Get("/events/export", router.security.Export)
		r.Get("/events/{id}", router.security.GetEvent)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(router.validator, router.resolver))
		r.Handle("/*", router.upstream)
	})

	return r
}
