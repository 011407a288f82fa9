// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package guard

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestBlockResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		reason     string
		lang       string
		wantStatus int
		wantReason string
		wantMsg    string
	}{
		{"rate limited", ReasonRateLimitExceeded, "", http.StatusTooManyRequests, ReasonRateLimitExceeded, blockMessages["en"]},
		{"no reason", "", "en-US,en;q=0.9", http.StatusForbidden, ReasonSecurityViolation, blockMessages["en"]},
		{"validation error", ReasonValidationError, "", http.StatusForbidden, ReasonValidationError, blockMessages["en"]},
		{"chinese", "", "zh-TW,zh;q=0.9,en;q=0.8", http.StatusForbidden, ReasonSecurityViolation, blockMessages["zh"]},
		{"unsupported falls back", "", "fr-FR", http.StatusForbidden, ReasonSecurityViolation, blockMessages["en"]},
		{"second choice", "", "de;q=1.0, zh;q=0.5", http.StatusForbidden, ReasonSecurityViolation, blockMessages["zh"]},
		{"refused chinese", "", "zh;q=0, en", http.StatusForbidden, ReasonSecurityViolation, blockMessages["en"]},
		{"weights reorder", "", "zh;q=0.3, en;q=0.8", http.StatusForbidden, ReasonSecurityViolation, blockMessages["en"]},
		{"chinese preferred by weight", "", "en;q=0.2, zh-CN;q=0.9", http.StatusForbidden, ReasonSecurityViolation, blockMessages["zh"]},
		{"unsupported only", "", "fr-FR, de", http.StatusForbidden, ReasonSecurityViolation, blockMessages["en"]},
		{"malformed", "", "!!;q=x", http.StatusForbidden, ReasonSecurityViolation, blockMessages["en"]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			status, body := BlockResponse(&ValidationResult{BlockedReason: tt.reason}, tt.lang)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if body.Error != "Request blocked" || body.Reason != tt.wantReason || body.Message != tt.wantMsg {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestWriteBlockResponse_RetryAfter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		info  *RateLimitInfo
		want  string
	}{
		{"rounds up", &RateLimitInfo{RetryAfter: 1500 * time.Millisecond}, "2"},
		{"minimum one second", &RateLimitInfo{RetryAfter: 0}, "1"},
		{"missing info", nil, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			WriteBlockResponse(rec, req, &ValidationResult{BlockedReason: ReasonRateLimitExceeded, RateLimit: tt.info})

			if rec.Code != http.StatusTooManyRequests {
				t.Errorf("status = %d", rec.Code)
			}
			if got := rec.Header().Get("Retry-After"); got != tt.want {
				t.Errorf("Retry-After = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteBlockResponse_Forbidden(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "zh")
	WriteBlockResponse(rec, req, &ValidationResult{})

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "" {
		t.Error("403 responses should not carry Retry-After")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body BlockBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Reason != ReasonSecurityViolation || body.Message != "您的請求因安全原因被阻止" {
		t.Errorf("body = %+v", body)
	}
}
