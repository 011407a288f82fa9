// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package detection

import "testing"

func TestEndpointClassifier_Classify(t *testing.T) {
	t.Parallel()

	c := NewEndpointClassifier()

	tests := []struct {
		path     string
		category string
		risk     RiskLevel
		auth     bool
	}{
		{"/page", "", RiskLow, false},
		{"/admin", "admin", RiskHigh, true},
		{"/ADMIN/users", "admin", RiskHigh, true},
		{"/login", "auth", RiskMedium, false},
		{"/api/v1/items", "api", RiskMedium, true},
		{"/_debug/vars", "debug", RiskCritical, true},
		{"/settings/profile", "config", RiskHigh, true},
		// admin precedes api in the category order.
		{"/api/admin", "admin", RiskHigh, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			got := c.Classify(tt.path)
			if got.IsSensitive != (tt.category != "") {
				t.Fatalf("IsSensitive = %v for %s", got.IsSensitive, tt.path)
			}
			if got.Category != tt.category || got.RiskLevel != tt.risk || got.RequireAuth != tt.auth {
				t.Errorf("Classify(%s) = %+v, want category=%s risk=%s auth=%v",
					tt.path, got, tt.category, tt.risk, tt.auth)
			}
		})
	}
}

func TestEndpointClassifier_IsDangerous(t *testing.T) {
	t.Parallel()

	c := NewEndpointClassifier()

	dangerous := []string{
		"/phpinfo.php", "/server-status", "/.git/config", "/.svn/entries",
		"/backup.zip", "/db/dump", "/export/all", "/install", "/setup.php", "/migrate",
	}
	for _, p := range dangerous {
		if !c.IsDangerous(p) {
			t.Errorf("IsDangerous(%q) = false, want true", p)
		}
	}

	safe := []string{"/", "/page", "/gitlab", "/.github", "/admin"}
	for _, p := range safe {
		if c.IsDangerous(p) {
			t.Errorf("IsDangerous(%q) = true, want false", p)
		}
	}
}

func TestEndpointClassifier_CustomOrder(t *testing.T) {
	t.Parallel()

	c, err := NewEndpointClassifierWith([]EndpointCategory{
		{Name: "first", Patterns: []string{`/shared`}, RiskLevel: RiskLow},
		{Name: "second", Patterns: []string{`/shared`}, RiskLevel: RiskCritical},
	}, nil)
	if err != nil {
		t.Fatalf("NewEndpointClassifierWith: %v", err)
	}
	if got := c.Classify("/shared").Category; got != "first" {
		t.Errorf("first matching category should win, got %q", got)
	}
	if c.IsDangerous("/backup") {
		t.Error("no dangerous patterns configured")
	}
}
