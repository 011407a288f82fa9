// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPriorityForRisk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		risk string
		want Priority
	}{
		{"low", PriorityInfo},
		{"medium", PriorityWarning},
		{"high", PriorityError},
		{"critical", PriorityCritical},
		{"CRITICAL", PriorityCritical},
		{"unknown", PriorityWarning},
	}

	for _, tt := range tests {
		if got := PriorityForRisk(tt.risk); got != tt.want {
			t.Errorf("PriorityForRisk(%q) = %q, want %q", tt.risk, got, tt.want)
		}
	}
}

func TestSecurityLoggerLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		priority  Priority
		wantLevel string
	}{
		{PriorityInfo, `"level":"info"`},
		{PriorityWarning, `"level":"warn"`},
		{PriorityError, `"level":"error"`},
		{PriorityCritical, `"level":"error"`},
	}

	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewSecurityLoggerWithLogger(NewTestLogger(&buf))
			logger.LogEvent(&SecurityEvent{
				EventType:  EventSecurityViolation,
				Message:    "Security violation detected",
				Priority:   tt.priority,
				SourceID:   "203.0.113.7",
				Path:       "/admin",
				Method:     "GET",
				UserAgent:  "sqlmap/1.0",
				Violations: []string{"Blocked User-Agent: sqlmap/1.0"},
				RiskLevel:  "high",
			})

			output := buf.String()
			if !strings.Contains(output, tt.wantLevel) {
				t.Errorf("expected %s in %s", tt.wantLevel, output)
			}
			if !strings.Contains(output, `"priority":"`+string(tt.priority)+`"`) {
				t.Errorf("expected priority field in %s", output)
			}
			if !strings.Contains(output, `"component":"security"`) {
				t.Errorf("expected component field in %s", output)
			}
		})
	}
}

func TestSecurityLoggerNilEvent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewSecurityLoggerWithLogger(NewTestLogger(&buf)).LogEvent(nil)
	if buf.Len() != 0 {
		t.Errorf("expected no output for nil event, got %s", buf.String())
	}
}

func TestSanitizeUserAgent(t *testing.T) {
	t.Parallel()

	ua := "evil\nlevel=critical " + strings.Repeat("a", 400)
	got := SanitizeUserAgent(ua)
	if strings.ContainsRune(got, '\n') {
		t.Error("control characters should be stripped")
	}
	if len(got) != maxUserAgentLength {
		t.Errorf("len = %d, want %d", len(got), maxUserAgentLength)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated value should end with ...")
	}
}

func TestSanitizeViolationsCapsCount(t *testing.T) {
	t.Parallel()

	in := make([]string, 50)
	for i := range in {
		in[i] = "violation"
	}
	if got := len(SanitizeViolations(in)); got != maxViolations {
		t.Errorf("len = %d, want %d", got, maxViolations)
	}
}
