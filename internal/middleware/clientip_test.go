// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIPResolver_Resolve(t *testing.T) {
	t.Parallel()

	resolver, err := NewClientIPResolver([]string{"10.0.0.0/8", "192.168.1.5", "fd00::/8"})
	if err != nil {
		t.Fatalf("NewClientIPResolver: %v", err)
	}

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:   "untrusted peer ignores headers",
			remote: "203.0.113.9:5555",
			headers: map[string]string{
				"X-Forwarded-For": "1.2.3.4",
				"X-Real-IP":       "1.2.3.4",
			},
			want: "203.0.113.9",
		},
		{
			name:    "trusted peer uses forwarded for",
			remote:  "10.1.2.3:443",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.20"},
			want:    "198.51.100.20",
		},
		{
			name:    "rightmost untrusted hop wins",
			remote:  "10.1.2.3:443",
			headers: map[string]string{"X-Forwarded-For": "6.6.6.6, 198.51.100.20, 10.9.9.9"},
			want:    "198.51.100.20",
		},
		{
			name:    "all hops trusted falls back to leftmost",
			remote:  "10.1.2.3:443",
			headers: map[string]string{"X-Forwarded-For": "10.0.0.7, 10.0.0.8"},
			want:    "10.0.0.7",
		},
		{
			name:    "malformed hop stops the walk",
			remote:  "10.1.2.3:443",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.20, garbage", "X-Real-IP": "198.51.100.30"},
			want:    "198.51.100.30",
		},
		{
			name:    "single trusted ip entry",
			remote:  "192.168.1.5:80",
			headers: map[string]string{"X-Real-IP": "198.51.100.40"},
			want:    "198.51.100.40",
		},
		{
			name:    "cloudflare header",
			remote:  "10.1.2.3:443",
			headers: map[string]string{"CF-Connecting-IP": "2001:db8::1"},
			want:    "2001:db8::1",
		},
		{
			name:    "ipv6 trusted peer",
			remote:  "[fd00::1]:443",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.50"},
			want:    "198.51.100.50",
		},
		{
			name:   "trusted peer without headers",
			remote: "10.1.2.3:443",
			want:   "10.1.2.3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := resolver.Resolve(req); got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientIPResolver_InvalidEntry(t *testing.T) {
	t.Parallel()

	if _, err := NewClientIPResolver([]string{"10.0.0.0/33"}); err == nil {
		t.Error("expected error for invalid CIDR")
	}
	if _, err := NewClientIPResolver([]string{"not-an-ip"}); err == nil {
		t.Error("expected error for invalid IP")
	}
}

func TestClientIPResolver_Nil(t *testing.T) {
	t.Parallel()

	var resolver *ClientIPResolver
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.1:1000"
	req.Header.Set("X-Forwarded-For", "1.1.1.1")
	if got := resolver.Resolve(req); got != "203.0.113.1" {
		t.Errorf("Resolve() = %q", got)
	}
}

func TestClientIPResolver_Middleware(t *testing.T) {
	t.Parallel()

	resolver, _ := NewClientIPResolver(nil)
	var got string
	handler := resolver.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIPFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.2:1000"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "203.0.113.2" {
		t.Errorf("ClientIPFromContext = %q", got)
	}
}
