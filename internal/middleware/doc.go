// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

/*
Package middleware provides the HTTP middleware in front of the guard.

Key Components:

  - RequestID: X-Request-ID propagation and log correlation
  - PrometheusMetrics: request count, latency and in-flight gauge, labelled
    by chi route pattern
  - ClientIPResolver: client address resolution that honours forwarding
    headers only from trusted proxy ranges
  - Guard: converts *http.Request into guard.RequestMetadata, runs the
    validator and writes the 403/429 block response

Middleware Stack:

The server composes them with chi:

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(resolver.Middleware)
	r.Use(middleware.PrometheusMetrics)
	r.Group(func(r chi.Router) {
	    r.Use(middleware.Guard(validator, resolver))
	    r.Handle("/*", upstream)
	})

Body Handling:

Guard reads at most max_request_size+1 bytes of the body for content
scanning and then re-attaches them in front of the unread remainder, so the
upstream handler receives the original body unchanged.
*/
package middleware
