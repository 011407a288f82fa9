// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/reqguard/internal/audit"
	"github.com/tomtom215/reqguard/internal/guard"
	"github.com/tomtom215/reqguard/internal/logging"
)

type discardSink struct{}

func (discardSink) Emit(*logging.SecurityEvent) {}

type routerOptions struct {
	settings func(*guard.Settings)
	config   RouterConfig
	upstream http.Handler
	events   EventStore
	checks   []HealthCheck
}

func newTestRouter(t *testing.T, opts routerOptions) http.Handler {
	t.Helper()

	s := guard.DefaultSettings()
	if opts.settings != nil {
		opts.settings(&s)
	}
	v := guard.New(guard.WithSettings(guard.NewStaticSettings(s)), guard.WithEventSink(discardSink{}))

	upstream := opts.upstream
	if upstream == nil {
		var err error
		if upstream, err = NewUpstreamHandler(""); err != nil {
			t.Fatalf("NewUpstreamHandler: %v", err)
		}
	}

	router, err := NewRouter(opts.config, v, nil, upstream, opts.events, opts.checks...)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return router.SetupChi()
}

func browserGet(target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")
	return req
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, data any) *APIResponse {
	t.Helper()
	var raw struct {
		APIResponse
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	if data != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("decode data %s: %v", raw.Data, err)
		}
	}
	resp := raw.APIResponse
	return &resp
}

func TestNewRouter_RequiresValidatorAndUpstream(t *testing.T) {
	t.Parallel()

	if _, err := NewRouter(RouterConfig{}, nil, nil, http.NotFoundHandler(), nil); err == nil {
		t.Error("expected error without validator")
	}
	v := guard.New(guard.WithEventSink(discardSink{}))
	if _, err := NewRouter(RouterConfig{}, v, nil, nil, nil); err == nil {
		t.Error("expected error without upstream")
	}
}

func TestRouter_GuardedCatchAll(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, routerOptions{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, browserGet("https://shop.example.com/products?page=2"))
	if rec.Code != http.StatusOK {
		t.Fatalf("clean request status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, browserGet("https://shop.example.com/search?q=%3Cscript%3Ealert(1)%3C/script%3E"))
	if rec.Code != http.StatusForbidden {
		t.Errorf("attack status = %d, want 403", rec.Code)
	}
}

func TestRouter_ProbesBypassGuard(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, routerOptions{})

	req := httptest.NewRequest(http.MethodGet, "https://guard.internal/healthz", nil)
	req.Header.Set("User-Agent", "sqlmap/1.7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Status != "alive" {
		t.Errorf("status = %q", status.Status)
	}
}

func TestRouter_ReadinessReportsFailedChecks(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, routerOptions{checks: []HealthCheck{
		{Name: "audit", Check: func(context.Context) error { return nil }},
		{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
	}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, browserGet("https://guard.internal/readyz"))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Status != "degraded" || status.Checks["audit"] != "ok" || status.Checks["redis"] != "connection refused" {
		t.Errorf("status = %+v", status)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, routerOptions{config: RouterConfig{MetricsEnabled: true, MetricsPath: "/internal/metrics"}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, browserGet("https://guard.internal/internal/metrics"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output missing go_goroutines")
	}
}

func TestRouter_SecurityReport(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, routerOptions{})

	h.ServeHTTP(httptest.NewRecorder(), browserGet("https://shop.example.com/"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, browserGet("https://guard.internal/api/v1/security/report"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var report guard.SecurityReport
	resp := decodeResponse(t, rec, &report)
	if !resp.Success {
		t.Error("success = false")
	}
	if report.RateLimitBackend != "memory" {
		t.Errorf("backend = %q", report.RateLimitBackend)
	}
	if report.ActiveRateLimiters != 1 {
		t.Errorf("active rate limiters = %d, want 1", report.ActiveRateLimiters)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func TestRouter_ManagementRateLimit(t *testing.T) {
	t.Parallel()

	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitRequests = 2
	h := newTestRouter(t, routerOptions{config: RouterConfig{Management: cfg}})

	var last int
	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, browserGet("https://guard.internal/api/v1/security/report"))
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", last)
	}
}

func TestRouter_CORSUsesOriginPatterns(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, routerOptions{settings: func(s *guard.Settings) {
		s.AllowedOrigins = []string{"*.example.com"}
	}})

	tests := []struct {
		origin string
		want   string
	}{
		{"https://app.example.com", "https://app.example.com"},
		{"https://example.com.evil.test", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodOptions, "https://guard.internal/api/v1/security/report", nil)
		req.Header.Set("Origin", tt.origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("origin %s: Access-Control-Allow-Origin = %q, want %q", tt.origin, got, tt.want)
		}
	}
}

func seedEvents(t *testing.T) *audit.MemoryStore {
	t.Helper()

	store := audit.NewMemoryStore(100)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []audit.Event{
		{ID: "evt-1", Timestamp: base, EventType: logging.EventSecurityViolation, Priority: logging.PriorityWarning,
			SourceID: "198.51.100.4", BlockedReason: "rate_limit_exceeded", Message: "Endpoint security violation detected"},
		{ID: "evt-2", Timestamp: base.Add(time.Minute), EventType: logging.EventSecurityViolation, Priority: logging.PriorityCritical,
			SourceID: "203.0.113.9", BlockedReason: "malicious_content", Message: "Endpoint security violation detected"},
		{ID: "evt-3", Timestamp: base.Add(2 * time.Minute), EventType: logging.EventValidationError, Priority: logging.PriorityError,
			Message: "Validation error"},
	}
	for i := range events {
		if err := store.Save(context.Background(), &events[i]); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

func TestSecurityEvents_ListAndFilter(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, routerOptions{events: seedEvents(t)})

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all", "", []string{"evt-3", "evt-2", "evt-1"}},
		{"by reason", "?reason=rate_limit_exceeded", []string{"evt-1"}},
		{"by priority", "?min_priority=error", []string{"evt-3", "evt-2"}},
		{"by type", "?type=validation_error", []string{"evt-3"}},
		{"by time", "?start_time=2026-03-01T12:01:00Z&end_time=2026-03-01T12:02:00Z", []string{"evt-2"}},
		{"limited", "?limit=1", []string{"evt-3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, browserGet("https://guard.internal/api/v1/security/events"+tt.query))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}

			var events []audit.Event
			resp := decodeResponse(t, rec, &events)
			if len(events) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(events), len(tt.want))
			}
			for i, id := range tt.want {
				if events[i].ID != id {
					t.Errorf("events[%d] = %s, want %s", i, events[i].ID, id)
				}
			}
			if tt.name == "limited" && (resp.Meta.Pagination == nil || !resp.Meta.Pagination.HasMore) {
				t.Error("expected has_more for a limited list")
			}
		})
	}
}

func TestSecurityEvents_InvalidFilters(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, routerOptions{events: seedEvents(t)})

	for _, q := range []string{"?limit=0", "?limit=abc", "?min_priority=loud", "?start_time=yesterday"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, browserGet("https://guard.internal/api/v1/security/events"+q))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}
}

func TestSecurityEvents_GetAndStats(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, routerOptions{events: seedEvents(t)})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, browserGet("https://guard.internal/api/v1/security/events/evt-2"))
	var event audit.Event
	decodeResponse(t, rec, &event)
	if rec.Code != http.StatusOK || event.BlockedReason != "malicious_content" {
		t.Errorf("get: status %d, event %+v", rec.Code, event)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, browserGet("https://guard.internal/api/v1/security/events/missing"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing event status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, browserGet("https://guard.internal/api/v1/security/events/stats"))
	var stats audit.Stats
	decodeResponse(t, rec, &stats)
	if stats.TotalEvents != 3 || stats.EventsByReason["malicious_content"] != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSecurityEvents_Export(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, routerOptions{events: seedEvents(t)})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, browserGet("https://guard.internal/api/v1/security/events/export?format=cef&reason=malicious_content"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "CEF:0|") || !strings.Contains(body, "malicious_content") {
		t.Errorf("cef body = %q", body)
	}
	if strings.Contains(body, "rate_limit_exceeded") {
		t.Error("filter not applied to export")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, browserGet("https://guard.internal/api/v1/security/events/export?format=xml"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("xml export status = %d, want 400", rec.Code)
	}
}

func TestSecurityEvents_DisabledStore(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, routerOptions{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, browserGet("https://guard.internal/api/v1/security/events"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	resp := decodeResponse(t, rec, nil)
	if resp.Success || resp.Error == nil || resp.Error.Code != "AUDIT_DISABLED" {
		t.Errorf("response = %+v", resp)
	}
}

func TestUpstream_ProxiesAdmittedRequests(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Upstream-Path", r.URL.Path)
		_, _ = w.Write(b)
	}))
	t.Cleanup(backend.Close)

	upstream, err := NewUpstreamHandler(backend.URL)
	if err != nil {
		t.Fatal(err)
	}
	h := newTestRouter(t, routerOptions{upstream: upstream})

	req := httptest.NewRequest(http.MethodPost, "https://shop.example.com/orders", strings.NewReader(`{"qty":2}`))
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != `{"qty":2}` || rec.Header().Get("X-Upstream-Path") != "/orders" {
		t.Errorf("proxied response = %q, headers %v", rec.Body.String(), rec.Header())
	}
}

func TestUpstream_UnavailableBackend(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.NotFoundHandler())
	addr := backend.URL
	backend.Close()

	upstream, err := NewUpstreamHandler(addr)
	if err != nil {
		t.Fatal(err)
	}
	h := newTestRouter(t, routerOptions{upstream: upstream})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, browserGet("https://shop.example.com/"))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestNewUpstreamHandler_RejectsBadScheme(t *testing.T) {
	t.Parallel()

	if _, err := NewUpstreamHandler("ftp://files.example.com"); err == nil {
		t.Error("expected error for ftp upstream")
	}
}
