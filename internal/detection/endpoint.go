// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package detection

import (
	"fmt"
	"regexp"
)

// EndpointCategory describes one class of sensitive paths.
type EndpointCategory struct {
	Name        string
	Patterns    []string
	RiskLevel   RiskLevel
	RequireAuth bool
}

// DefaultEndpointCategories returns the sensitive categories in precedence order.
func DefaultEndpointCategories() []EndpointCategory {
	return []EndpointCategory{
		{
			Name:        "admin",
			Patterns:    []string{`/admin`, `/administrator`, `/management`, `/console`},
			RiskLevel:   RiskHigh,
			RequireAuth: true,
		},
		{
			Name:        "auth",
			Patterns:    []string{`/login`, `/logout`, `/auth`, `/signin`, `/signup`},
			RiskLevel:   RiskMedium,
			RequireAuth: false,
		},
		{
			Name:        "api",
			Patterns:    []string{`/api/`, `/rest/`, `/service/`, `/ws/`},
			RiskLevel:   RiskMedium,
			RequireAuth: true,
		},
		{
			Name:        "debug",
			Patterns:    []string{`/debug`, `/test`, `/dev`, `/_debug`},
			RiskLevel:   RiskCritical,
			RequireAuth: true,
		},
		{
			Name:        "config",
			Patterns:    []string{`/config`, `/settings`, `/preferences`},
			RiskLevel:   RiskHigh,
			RequireAuth: true,
		},
	}
}

// DefaultDangerousPatterns returns the paths that are always blocked.
func DefaultDangerousPatterns() []string {
	return []string{
		`/phpinfo`,
		`/server-info`,
		`/server-status`,
		`/\.git/`,
		`/\.svn/`,
		`/backup`,
		`/dump`,
		`/export`,
		`/install`,
		`/setup`,
		`/migrate`,
	}
}

// EndpointResult is the outcome of classifying a path.
// Category, RiskLevel and RequireAuth are meaningful only when IsSensitive is set.
type EndpointResult struct {
	IsSensitive bool
	Category    string
	RiskLevel   RiskLevel
	RequireAuth bool
}

// endpointRule is one (category, pattern) pair of the flattened rule list.
type endpointRule struct {
	category *EndpointCategory
	re       *regexp.Regexp
}

// EndpointClassifier classifies request paths. Rules are evaluated top to
// bottom and the first matching category wins.
type EndpointClassifier struct {
	categories []EndpointCategory
	rules      []endpointRule
	dangerous  []*regexp.Regexp
}

// NewEndpointClassifier returns a classifier over the built-in categories
// and dangerous paths.
func NewEndpointClassifier() *EndpointClassifier {
	c, err := NewEndpointClassifierWith(DefaultEndpointCategories(), DefaultDangerousPatterns())
	if err != nil {
		panic(err)
	}
	return c
}

// NewEndpointClassifierWith compiles custom categories and dangerous patterns.
// Patterns are matched case-insensitively anywhere in the path.
func NewEndpointClassifierWith(categories []EndpointCategory, dangerous []string) (*EndpointClassifier, error) {
	c := &EndpointClassifier{
		categories: append([]EndpointCategory(nil), categories...),
	}

	for i := range c.categories {
		cat := &c.categories[i]
		for _, p := range cat.Patterns {
			re, err := regexp.Compile(`(?i)` + p)
			if err != nil {
				return nil, fmt.Errorf("compile %s endpoint pattern %q: %w", cat.Name, p, err)
			}
			c.rules = append(c.rules, endpointRule{category: cat, re: re})
		}
	}

	for _, p := range dangerous {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("compile dangerous endpoint pattern %q: %w", p, err)
		}
		c.dangerous = append(c.dangerous, re)
	}

	return c, nil
}

// Classify returns the first sensitive category matching path.
func (c *EndpointClassifier) Classify(path string) EndpointResult {
	for _, rule := range c.rules {
		if rule.re.MatchString(path) {
			return EndpointResult{
				IsSensitive: true,
				Category:    rule.category.Name,
				RiskLevel:   rule.category.RiskLevel,
				RequireAuth: rule.category.RequireAuth,
			}
		}
	}
	return EndpointResult{}
}

// IsDangerous reports whether path matches any always-blocked pattern.
func (c *EndpointClassifier) IsDangerous(path string) bool {
	for _, re := range c.dangerous {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}
