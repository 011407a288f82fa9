// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package detection

import (
	"strings"

	"github.com/tomtom215/reqguard/internal/cache"
)

// User-Agent rejection reasons.
const (
	UAReasonEmpty   = "empty_user_agent"
	UAReasonBlocked = "blocked_pattern"
	UAReasonTool    = "suspicious_tool"
)

// DefaultBlockedUserAgents returns the default block list substrings.
func DefaultBlockedUserAgents() []string {
	return []string{"scanner", "bot", "crawler", "spider", "automated"}
}

// DefaultScannerSignatures returns substrings of well-known scanning and
// scripting tools.
func DefaultScannerSignatures() []string {
	return []string{"curl", "wget", "python-requests", "sqlmap", "nikto"}
}

// UserAgentResult is the outcome of a User-Agent check.
type UserAgentResult struct {
	Allowed bool
	Reason  string // empty, or one of the UAReason constants
	Pattern string // matched substring, if any
}

// Detail renders the reason the way it appears in violation messages,
// e.g. "suspicious_tool: sqlmap".
func (r UserAgentResult) Detail() string {
	if r.Pattern == "" {
		return r.Reason
	}
	return r.Reason + ": " + r.Pattern
}

// UserAgentClassifier rejects empty User-Agents and those containing a
// blocked substring or a scanner signature. Block-list entries take
// precedence over scanner signatures, each in list order.
type UserAgentClassifier struct {
	matcher *cache.Matcher
}

// NewUserAgentClassifier builds a classifier over the given lists.
// Matching is case-insensitive.
func NewUserAgentClassifier(blocked, scanners []string) *UserAgentClassifier {
	patterns := make([]cache.Pattern, 0, len(blocked)+len(scanners))
	for _, b := range blocked {
		if b = strings.TrimSpace(b); b != "" {
			patterns = append(patterns, cache.Pattern{Text: b, Label: UAReasonBlocked})
		}
	}
	for _, s := range scanners {
		if s = strings.TrimSpace(s); s != "" {
			patterns = append(patterns, cache.Pattern{Text: s, Label: UAReasonTool})
		}
	}
	return &UserAgentClassifier{matcher: cache.NewMatcher(patterns)}
}

// Check classifies a User-Agent header value.
func (c *UserAgentClassifier) Check(userAgent string) UserAgentResult {
	if strings.TrimSpace(userAgent) == "" {
		return UserAgentResult{Reason: UAReasonEmpty}
	}
	if match, ok := c.matcher.FirstByPattern(userAgent); ok {
		return UserAgentResult{Reason: match.Label, Pattern: match.Pattern}
	}
	return UserAgentResult{Allowed: true}
}
