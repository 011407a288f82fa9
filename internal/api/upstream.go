// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package api

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/tomtom215/reqguard/internal/guard"
	"github.com/tomtom215/reqguard/internal/logging"
)

// NewUpstreamHandler returns the handler for admitted requests. With an
// upstream URL it reverse-proxies to that application; without one it
// answers 200 so that the guard can run standalone.
func NewUpstreamHandler(rawURL string) (http.Handler, error) {
	if rawURL == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			guard.WriteJSON(w, http.StatusOK, map[string]string{"status": "allowed"})
		}), nil
	}

	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("upstream url %q: scheme must be http or https", rawURL)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logging.Ctx(r.Context()).Error().
			Err(err).
			Str("upstream", target.Host).
			Str("path", r.URL.Path).
			Msg("Upstream request failed")
		respondError(w, r, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "Upstream unavailable", nil)
	}
	return proxy, nil
}
