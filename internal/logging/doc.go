// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

// Package logging provides centralized zerolog-based structured logging for Reqguard.
//
// Every component logs through the global zerolog logger configured here, so
// the guard engine, the HTTP layer and the supervisor tree share one output
// format and one level.
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("addr", addr).Msg("Guard server listening")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Rate limit store unavailable")
//
// # Configuration
//
// Environment Variables:
//
//	LOG_LEVEL   - Minimum log level: trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - Output format: json, console (default: json)
//	LOG_CALLER  - Include caller file:line: true, false (default: false)
//
// # Security Events
//
// SecurityLogger turns a SecurityEvent into a single structured log line.
// The event priority is derived from the request risk level:
//
//	low      -> INFO     (zerolog info)
//	medium   -> WARNING  (zerolog warn)
//	high     -> ERROR    (zerolog error)
//	critical -> CRITICAL (zerolog error, priority=CRITICAL)
//
// zerolog has no level between error and fatal, and fatal terminates the
// process, so critical events are written at error level and carry the
// priority field for downstream routing.
//
// # Context Propagation
//
// The HTTP middleware stores RequestFields (request ID, correlation ID and
// resolved client IP) with WithRequestFields. Ctx adds whichever are set:
//
//	logging.Ctx(ctx).Info().Msg("Validated request")
//	// {"level":"info","request_id":"...","client_ip":"203.0.113.7","message":"Validated request"}
//
// # Supervisor Integration
//
// NewSlogLogger returns an slog.Logger backed by zerolog for sutureslog.
package logging
