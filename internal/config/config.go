// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Guard     GuardConfig     `koanf:"guard"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Audit     AuditConfig     `koanf:"audit"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gte=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`

	// TrustedProxies lists peers (IPs or CIDR ranges) whose forwarding
	// headers are believed when resolving the client address.
	TrustedProxies []string `koanf:"trusted_proxies" validate:"dive,cidr|ip"`

	// UpstreamURL is the application that admitted requests are proxied to.
	// Empty answers admitted requests with 200 directly.
	UpstreamURL string `koanf:"upstream_url" validate:"omitempty,url"`

	// WatchConfig reloads guard settings when the config file changes.
	WatchConfig bool `koanf:"watch_config"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled off"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// GuardConfig holds request validation settings. Values outside their
// valid range are replaced with defaults by the guard, not rejected here.
type GuardConfig struct {
	MaxRequestSize         int64    `koanf:"max_request_size"`
	MaxURLLength           int      `koanf:"max_url_length"`
	MaxHeadersCount        int      `koanf:"max_headers_count"`
	MaxQueryParams         int      `koanf:"max_query_params"`
	AllowedMethods         []string `koanf:"allowed_methods" validate:"dive,http_method"`
	BlockedUserAgents      []string `koanf:"blocked_user_agents"`
	RateLimitRequests      int      `koanf:"rate_limit_requests"`
	RateLimitWindowSeconds int      `koanf:"rate_limit_window_seconds"`
	EnableAnomalyDetection bool     `koanf:"enable_anomaly_detection"`
	RequireHTTPS           bool     `koanf:"require_https"`
	AllowedOrigins         []string `koanf:"allowed_origins" validate:"dive,origin_pattern"`

	Anomaly AnomalyConfig `koanf:"anomaly"`
	State   StateConfig   `koanf:"state"`
}

// AnomalyConfig holds anomaly tracker thresholds.
type AnomalyConfig struct {
	BurstThreshold     int           `koanf:"burst_threshold"`
	BurstWindow        time.Duration `koanf:"burst_window"`
	PathThreshold      int           `koanf:"path_threshold"`
	PathWindow         time.Duration `koanf:"path_window"`
	UserAgentThreshold int           `koanf:"user_agent_threshold"`
	UserAgentWindow    time.Duration `koanf:"user_agent_window"`
}

// StateConfig bounds per-identifier state.
type StateConfig struct {
	MaxIdentifiers int           `koanf:"max_identifiers" validate:"gte=0"`
	IdleTTL        time.Duration `koanf:"idle_ttl" validate:"gte=0"`
	SweepInterval  time.Duration `koanf:"sweep_interval" validate:"gte=0"`
}

// RateLimitConfig selects the rate limiter backend.
type RateLimitConfig struct {
	Backend string        `koanf:"backend" validate:"oneof=memory redis"`
	Redis   RedisConfig   `koanf:"redis"`
	Breaker BreakerConfig `koanf:"breaker"`
}

// RedisConfig holds the Redis connection for the shared limiter.
type RedisConfig struct {
	Addr      string        `koanf:"addr"`
	Password  string        `koanf:"password"`
	DB        int           `koanf:"db" validate:"gte=0"`
	KeyPrefix string        `koanf:"key_prefix"`
	Timeout   time.Duration `koanf:"timeout" validate:"gte=0"`
}

// BreakerConfig holds circuit breaker settings around the limiter backend.
type BreakerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	MaxRequests  uint32        `koanf:"max_requests"`
	Interval     time.Duration `koanf:"interval" validate:"gte=0"`
	Timeout      time.Duration `koanf:"timeout" validate:"gte=0"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"gte=0,lte=1"`
}

// AuditConfig holds security event persistence settings.
type AuditConfig struct {
	Enabled    bool   `koanf:"enabled"`
	BufferSize int    `koanf:"buffer_size" validate:"min=1"`
	Store      string `koanf:"store" validate:"oneof=memory badger"`
	Path       string `koanf:"path"`
	MaxEvents  int    `koanf:"max_events" validate:"min=1"`
}

// MetricsConfig holds Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path" validate:"required,startswith=/"`
}

// Load is an alias for LoadWithKoanf.
func Load() (*Config, error) {
	cfg, err := LoadWithKoanf()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
