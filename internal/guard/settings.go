// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package guard

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tomtom215/reqguard/internal/config"
	"github.com/tomtom215/reqguard/internal/detection"
	"github.com/tomtom215/reqguard/internal/logging"
	"github.com/tomtom215/reqguard/internal/validation"
)

// Settings is one immutable snapshot of guard configuration.
type Settings struct {
	MaxRequestSize         int64
	MaxURLLength           int
	MaxHeadersCount        int
	MaxQueryParams         int
	AllowedMethods         []string
	BlockedUserAgents      []string
	RateLimitRequests      int
	RateLimitWindow        time.Duration
	EnableAnomalyDetection bool
	RequireHTTPS           bool
	AllowedOrigins         []string
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		MaxRequestSize:         10 * 1024 * 1024,
		MaxURLLength:           2048,
		MaxHeadersCount:        50,
		MaxQueryParams:         100,
		AllowedMethods:         []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		BlockedUserAgents:      detection.DefaultBlockedUserAgents(),
		RateLimitRequests:      100,
		RateLimitWindow:        time.Hour,
		EnableAnomalyDetection: true,
		RequireHTTPS:           true,
	}
}

// SettingsFromConfig converts the loaded configuration. The result is not
// sanitized; see Sanitize.
func SettingsFromConfig(cfg config.GuardConfig) Settings {
	return Settings{
		MaxRequestSize:         cfg.MaxRequestSize,
		MaxURLLength:           cfg.MaxURLLength,
		MaxHeadersCount:        cfg.MaxHeadersCount,
		MaxQueryParams:         cfg.MaxQueryParams,
		AllowedMethods:         append([]string(nil), cfg.AllowedMethods...),
		BlockedUserAgents:      append([]string(nil), cfg.BlockedUserAgents...),
		RateLimitRequests:      cfg.RateLimitRequests,
		RateLimitWindow:        time.Duration(cfg.RateLimitWindowSeconds) * time.Second,
		EnableAnomalyDetection: cfg.EnableAnomalyDetection,
		RequireHTTPS:           cfg.RequireHTTPS,
		AllowedOrigins:         append([]string(nil), cfg.AllowedOrigins...),
	}
}

// Sanitize replaces invalid values with defaults and returns one warning
// per replacement. Methods are upper-cased; unusable method and origin
// entries are dropped.
func (s Settings) Sanitize() (Settings, []string) {
	d := DefaultSettings()
	var warnings []string
	fallback := func(name string, got any, def any) {
		warnings = append(warnings, fmt.Sprintf("invalid %s %v, using default %v", name, got, def))
	}

	if s.MaxRequestSize <= 0 {
		fallback("max_request_size", s.MaxRequestSize, d.MaxRequestSize)
		s.MaxRequestSize = d.MaxRequestSize
	}
	if s.MaxURLLength <= 0 {
		fallback("max_url_length", s.MaxURLLength, d.MaxURLLength)
		s.MaxURLLength = d.MaxURLLength
	}
	if s.MaxHeadersCount <= 0 {
		fallback("max_headers_count", s.MaxHeadersCount, d.MaxHeadersCount)
		s.MaxHeadersCount = d.MaxHeadersCount
	}
	if s.MaxQueryParams <= 0 {
		fallback("max_query_params", s.MaxQueryParams, d.MaxQueryParams)
		s.MaxQueryParams = d.MaxQueryParams
	}
	if s.RateLimitRequests <= 0 {
		fallback("rate_limit_requests", s.RateLimitRequests, d.RateLimitRequests)
		s.RateLimitRequests = d.RateLimitRequests
	}
	if s.RateLimitWindow <= 0 {
		fallback("rate_limit_window", s.RateLimitWindow, d.RateLimitWindow)
		s.RateLimitWindow = d.RateLimitWindow
	}

	methods := make([]string, 0, len(s.AllowedMethods))
	for _, m := range s.AllowedMethods {
		m = strings.ToUpper(strings.TrimSpace(m))
		if validation.IsHTTPMethod(m) {
			methods = append(methods, m)
		} else {
			warnings = append(warnings, fmt.Sprintf("ignoring invalid allowed method %q", m))
		}
	}
	if len(methods) == 0 {
		fallback("allowed_methods", s.AllowedMethods, d.AllowedMethods)
		methods = d.AllowedMethods
	}
	s.AllowedMethods = methods

	origins := make([]string, 0, len(s.AllowedOrigins))
	for _, o := range s.AllowedOrigins {
		o = strings.TrimSpace(o)
		if validation.IsOriginPattern(o) {
			origins = append(origins, strings.TrimSuffix(o, "/"))
		} else {
			warnings = append(warnings, fmt.Sprintf("ignoring invalid allowed origin %q", o))
		}
	}
	s.AllowedOrigins = origins

	return s, warnings
}

// SettingsProvider returns the current settings snapshot. Implementations
// must be safe for concurrent use and return sanitized snapshots.
type SettingsProvider interface {
	Settings() Settings
}

// StaticSettings is a fixed SettingsProvider.
type StaticSettings struct {
	s Settings
}

// NewStaticSettings sanitizes s and logs any replaced values.
func NewStaticSettings(s Settings) *StaticSettings {
	return &StaticSettings{s: sanitizeAndLog(s)}
}

// Settings implements SettingsProvider.
func (p *StaticSettings) Settings() Settings {
	return p.s
}

// AtomicSettings is a SettingsProvider whose snapshot can be swapped at
// runtime, e.g. on SIGHUP.
type AtomicSettings struct {
	v atomic.Pointer[Settings]
}

// NewAtomicSettings creates a provider holding s.
func NewAtomicSettings(s Settings) *AtomicSettings {
	p := &AtomicSettings{}
	p.Store(s)
	return p
}

// Settings implements SettingsProvider.
func (p *AtomicSettings) Settings() Settings {
	return *p.v.Load()
}

// Store sanitizes s and makes it the current snapshot.
func (p *AtomicSettings) Store(s Settings) {
	s = sanitizeAndLog(s)
	p.v.Store(&s)
}

func sanitizeAndLog(s Settings) Settings {
	s, warnings := s.Sanitize()
	for _, w := range warnings {
		logging.Warn().Str("component", "guard").Msg(w)
	}
	return s
}
