// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/reqguard/internal/logging"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/reqguard/config.yaml",
	"/etc/reqguard/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			TrustedProxies:  []string{},
			UpstreamURL:     "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Guard: GuardConfig{
			MaxRequestSize:         10 * 1024 * 1024,
			MaxURLLength:           2048,
			MaxHeadersCount:        50,
			MaxQueryParams:         100,
			AllowedMethods:         []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
			BlockedUserAgents:      []string{"scanner", "bot", "crawler", "spider", "automated"},
			RateLimitRequests:      100,
			RateLimitWindowSeconds: 3600,
			EnableAnomalyDetection: true,
			RequireHTTPS:           true,
			AllowedOrigins:         []string{},
			Anomaly: AnomalyConfig{
				BurstThreshold:     50,
				BurstWindow:        time.Minute,
				PathThreshold:      20,
				PathWindow:         5 * time.Minute,
				UserAgentThreshold: 5,
				UserAgentWindow:    10 * time.Minute,
			},
			State: StateConfig{
				MaxIdentifiers: 100000,
				IdleTTL:        2 * time.Hour,
				SweepInterval:  time.Minute,
			},
		},
		RateLimit: RateLimitConfig{
			Backend: "memory",
			Redis: RedisConfig{
				Addr:      "127.0.0.1:6379",
				KeyPrefix: "reqguard:rl:",
				Timeout:   50 * time.Millisecond,
			},
			Breaker: BreakerConfig{
				Enabled:      true,
				MaxRequests:  3,
				Interval:     time.Minute,
				Timeout:      30 * time.Second,
				MinRequests:  10,
				FailureRatio: 0.6,
			},
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			Store:      "memory",
			Path:       "/data/audit",
			MaxEvents:  10000,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any mapped setting
func LoadWithKoanf() (*Config, error) {
	return loadFrom(findConfigFile())
}

// LoadFile loads configuration with configPath as the file layer. An empty
// path skips the file layer.
func LoadFile(configPath string) (*Config, error) {
	return loadFrom(configPath)
}

func loadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	if err := revertMalformedGuardKeys(k); err != nil {
		return nil, fmt.Errorf("failed to restore guard defaults: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// revertMalformedGuardKeys resets every guard.* value that does not decode
// into its field type (RATE_LIMIT_REQUESTS=abc) to the built-in default, so
// a bad threshold is a warning instead of a startup failure.
func revertMalformedGuardKeys(k *koanf.Koanf) error {
	var defaults *koanf.Koanf
	for _, key := range k.Keys() {
		if !strings.HasPrefix(key, "guard.") {
			continue
		}

		single := koanf.New(".")
		if err := single.Set(key, k.Get(key)); err != nil {
			return err
		}
		if err := single.Unmarshal("guard", &GuardConfig{}); err == nil {
			continue
		}

		if defaults == nil {
			defaults = koanf.New(".")
			if err := defaults.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
				return err
			}
		}
		logging.Warn().
			Str("key", key).
			Interface("value", k.Get(key)).
			Interface("default", defaults.Get(key)).
			Msg("Malformed guard setting, using default")
		if err := k.Set(key, defaults.Get(key)); err != nil {
			return err
		}
	}
	return nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// ConfigFile returns the file LoadWithKoanf would read, or "".
func ConfigFile() string {
	return findConfigFile()
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.trusted_proxies",
	"guard.allowed_methods",
	"guard.blocked_user_agents",
	"guard.allowed_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		strVal, ok := val.(string)
		if !ok {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
var envMappings = map[string]string{
	// Server mappings
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"trusted_proxies":       "server.trusted_proxies",
	"upstream_url":          "server.upstream_url",
	"watch_config":          "server.watch_config",

	// Logging mappings
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Guard mappings
	"max_request_size":          "guard.max_request_size",
	"max_url_length":            "guard.max_url_length",
	"max_headers_count":         "guard.max_headers_count",
	"max_query_params":          "guard.max_query_params",
	"allowed_methods":           "guard.allowed_methods",
	"blocked_user_agents":       "guard.blocked_user_agents",
	"rate_limit_requests":       "guard.rate_limit_requests",
	"rate_limit_window_seconds": "guard.rate_limit_window_seconds",
	"enable_anomaly_detection":  "guard.enable_anomaly_detection",
	"require_https":             "guard.require_https",
	"allowed_origins":           "guard.allowed_origins",
	"anomaly_burst_threshold":   "guard.anomaly.burst_threshold",
	"anomaly_path_threshold":    "guard.anomaly.path_threshold",
	"anomaly_ua_threshold":      "guard.anomaly.user_agent_threshold",
	"guard_max_identifiers":     "guard.state.max_identifiers",
	"guard_idle_ttl":            "guard.state.idle_ttl",
	"guard_sweep_interval":      "guard.state.sweep_interval",

	// Rate limit backend mappings
	"rate_limit_backend":   "ratelimit.backend",
	"redis_addr":           "ratelimit.redis.addr",
	"redis_password":       "ratelimit.redis.password",
	"redis_db":             "ratelimit.redis.db",
	"redis_key_prefix":     "ratelimit.redis.key_prefix",
	"redis_timeout":        "ratelimit.redis.timeout",
	"rate_limit_breaker":   "ratelimit.breaker.enabled",
	"breaker_timeout":      "ratelimit.breaker.timeout",
	"breaker_failure_rate": "ratelimit.breaker.failure_ratio",

	// Audit mappings
	"audit_enabled":     "audit.enabled",
	"audit_buffer_size": "audit.buffer_size",
	"audit_store":       "audit.store",
	"audit_path":        "audit.path",
	"audit_max_events":  "audit.max_events",

	// Metrics mappings
	"metrics_enabled": "metrics.enabled",
	"metrics_path":    "metrics.path",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - RATE_LIMIT_REQUESTS -> guard.rate_limit_requests
//   - REDIS_ADDR -> ratelimit.redis.addr
//
// Unmapped variables return "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// The callback runs on the watcher goroutine; reload errors from the
// provider are dropped.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
