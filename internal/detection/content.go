// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package detection

import (
	"fmt"
	"regexp"

	"github.com/goccy/go-json"
)

// AttackType names an attack family recognized by the content classifier.
type AttackType string

const (
	AttackSQLInjection     AttackType = "sql_injection"
	AttackXSS              AttackType = "xss"
	AttackCommandInjection AttackType = "command_injection"
	AttackPathTraversal    AttackType = "path_traversal"
)

// PatternFamily is an attack family and its ordered regular expressions.
type PatternFamily struct {
	Type     AttackType
	Patterns []string
}

// DefaultPatternFamilies returns the built-in families in evaluation order.
func DefaultPatternFamilies() []PatternFamily {
	return []PatternFamily{
		{
			Type: AttackSQLInjection,
			Patterns: []string{
				`union\s+select`, `or\s+1=1`, `and\s+1=1`,
				`exec\s*\(`, `drop\s+table`, `delete\s+from`,
			},
		},
		{
			Type: AttackXSS,
			Patterns: []string{
				`<script`, `javascript:`, `onerror\s*=`,
				`onload\s*=`, `eval\s*\(`,
			},
		},
		{
			Type: AttackCommandInjection,
			Patterns: []string{
				`;.*ls`, `;.*cat`, `;.*rm`, `\|\s*nc`,
				"`.*`", `\$\(.*\)`,
			},
		},
		{
			Type: AttackPathTraversal,
			Patterns: []string{
				`\.\./`, `\.\.\\`, `%2e%2e%2f`, `%c0%ae`,
			},
		},
	}
}

// compiledPattern keeps the source text for violation messages.
type compiledPattern struct {
	family AttackType
	source string
	re     *regexp.Regexp
}

// ContentResult is the outcome of a content scan.
type ContentResult struct {
	Found       bool
	Violations  []string
	AttackTypes []AttackType // de-duplicated, first-seen order
}

// HasAttackType reports whether t was detected.
func (r ContentResult) HasAttackType(t AttackType) bool {
	for _, at := range r.AttackTypes {
		if at == t {
			return true
		}
	}
	return false
}

// ContentClassifier scans request content for attack signatures.
// It is immutable after construction and safe for concurrent use.
type ContentClassifier struct {
	patterns []compiledPattern
}

// NewContentClassifier returns a classifier over DefaultPatternFamilies.
func NewContentClassifier() *ContentClassifier {
	c, err := NewContentClassifierWithFamilies(DefaultPatternFamilies())
	if err != nil {
		// The built-in patterns are constant; failing to compile them is a programming error.
		panic(err)
	}
	return c
}

// NewContentClassifierWithFamilies compiles families in order. All patterns
// are matched case-insensitively.
func NewContentClassifierWithFamilies(families []PatternFamily) (*ContentClassifier, error) {
	c := &ContentClassifier{}
	for _, family := range families {
		for _, p := range family.Patterns {
			re, err := regexp.Compile(`(?i)` + p)
			if err != nil {
				return nil, fmt.Errorf("compile %s pattern %q: %w", family.Type, p, err)
			}
			c.patterns = append(c.patterns, compiledPattern{family: family.Type, source: p, re: re})
		}
	}
	return c, nil
}

// Scan checks the URL, the serialized query parameters and the body
// separately against every pattern. All matches are reported.
func (c *ContentClassifier) Scan(url string, query map[string][]string, body string) ContentResult {
	var result ContentResult

	targets := []struct {
		location string
		text     string
	}{
		{"url", url},
		{"query", SerializeQuery(query)},
		{"body", body},
	}

	seen := make(map[AttackType]bool, 4)
	for _, target := range targets {
		if target.text == "" {
			continue
		}
		for _, p := range c.patterns {
			if !p.re.MatchString(target.text) {
				continue
			}
			result.Found = true
			result.Violations = append(result.Violations,
				fmt.Sprintf("%s attack pattern detected in %s: %s", p.family, target.location, p.source))
			if !seen[p.family] {
				seen[p.family] = true
				result.AttackTypes = append(result.AttackTypes, p.family)
			}
		}
	}

	return result
}

// SerializeQuery renders query parameters as JSON with sorted keys and no
// HTML escaping, so that markup such as "<script" survives for matching.
// An empty or nil map serializes to "".
func SerializeQuery(query map[string][]string) string {
	if len(query) == 0 {
		return ""
	}
	data, err := json.MarshalNoEscape(query)
	if err != nil {
		return ""
	}
	return string(data)
}
