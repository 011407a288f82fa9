// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package logging

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Priority is the severity attached to a security event.
type Priority string

const (
	PriorityInfo     Priority = "INFO"
	PriorityWarning  Priority = "WARNING"
	PriorityError    Priority = "ERROR"
	PriorityCritical Priority = "CRITICAL"
)

// Event types emitted by the guard.
const (
	EventSecurityViolation = "security_violation"
	EventValidationError   = "validation_error"
)

const (
	maxUserAgentLength = 200
	maxViolationLength = 300
	maxViolations      = 20
)

// PriorityForRisk maps a risk level name (low, medium, high, critical) to an
// event priority. Unknown levels map to WARNING.
func PriorityForRisk(risk string) Priority {
	switch strings.ToLower(risk) {
	case "low":
		return PriorityInfo
	case "medium":
		return PriorityWarning
	case "high":
		return PriorityError
	case "critical":
		return PriorityCritical
	default:
		return PriorityWarning
	}
}

// SecurityEvent is the structured record emitted for every unsafe request.
type SecurityEvent struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	Message       string    `json:"message"`
	Priority      Priority  `json:"priority"`
	SourceID      string    `json:"source_identifier"`
	Path          string    `json:"path"`
	Method        string    `json:"method"`
	UserAgent     string    `json:"user_agent,omitempty"`
	Violations    []string  `json:"violations"`
	RiskLevel     string    `json:"risk_level"`
	BlockedReason string    `json:"blocked_reason,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
}

// SecurityLogger writes security events as structured log lines.
// Attacker-controlled fields are truncated before they are written.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a security logger on top of the global logger.
func NewSecurityLogger() *SecurityLogger {
	return NewSecurityLoggerWithLogger(Logger())
}

// NewSecurityLoggerWithLogger creates a security logger with a custom zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger.With().Str("component", "security").Logger(),
	}
}

// LogEvent writes the event at the zerolog level matching its priority.
func (l *SecurityLogger) LogEvent(event *SecurityEvent) {
	if event == nil {
		return
	}

	var e *zerolog.Event
	switch event.Priority {
	case PriorityInfo:
		e = l.logger.Info()
	case PriorityWarning:
		e = l.logger.Warn()
	default:
		e = l.logger.Error()
	}

	e = e.Str("event_type", event.EventType).
		Str("priority", string(event.Priority)).
		Str("source_identifier", event.SourceID).
		Str("method", event.Method).
		Str("path", truncateString(event.Path, maxViolationLength)).
		Str("risk_level", event.RiskLevel).
		Strs("violations", SanitizeViolations(event.Violations))

	if event.ID != "" {
		e = e.Str("event_id", event.ID)
	}
	if event.UserAgent != "" {
		e = e.Str("user_agent", SanitizeUserAgent(event.UserAgent))
	}
	if event.BlockedReason != "" {
		e = e.Str("blocked_reason", event.BlockedReason)
	}
	if event.RequestID != "" {
		e = e.Str("request_id", event.RequestID)
	}

	e.Msg(event.Message)
}

// SanitizeUserAgent truncates a User-Agent and strips control characters so
// a hostile client cannot forge extra log lines.
func SanitizeUserAgent(ua string) string {
	return truncateString(stripControl(ua), maxUserAgentLength)
}

// SanitizeViolations caps the number and length of violation messages.
func SanitizeViolations(violations []string) []string {
	n := len(violations)
	if n > maxViolations {
		n = maxViolations
	}
	out := make([]string, 0, n)
	for _, v := range violations[:n] {
		out = append(out, truncateString(stripControl(v), maxViolationLength))
	}
	return out
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// truncateString truncates s to at most maxLen bytes, marking the cut with "...".
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
