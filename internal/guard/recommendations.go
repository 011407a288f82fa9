// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package guard

import "github.com/tomtom215/reqguard/internal/detection"

// Recommendation texts.
const (
	RecommendRestrictMethods = "Restrict allowed HTTP methods"
	RecommendEnforceHTTPS    = "Enforce HTTPS"
	RecommendRateLimiting    = "Apply rate limiting and request throttling"
	RecommendUserAgent       = "Strengthen User-Agent validation"
	RecommendParameterize    = "Use parameterized queries for database access"
	RecommendEncodeOutput    = "Encode untrusted output and set a Content-Security-Policy"
	RecommendAvoidShell      = "Avoid passing request input to shell commands"
	RecommendRestrictPaths   = "Canonicalize file paths and restrict them to a base directory"
	RecommendBlockSource     = "Consider temporarily blocking the source address"
	RecommendMonitoring      = "Increase monitoring and logging"
)

// attackRecommendations follows content family evaluation order.
var attackRecommendations = []struct {
	attack detection.AttackType
	text   string
}{
	{detection.AttackSQLInjection, RecommendParameterize},
	{detection.AttackXSS, RecommendEncodeOutput},
	{detection.AttackCommandInjection, RecommendAvoidShell},
	{detection.AttackPathTraversal, RecommendRestrictPaths},
}

func recommendations(b *resultBuilder) []string {
	recs := []string{}
	if b.fired[catMethod] {
		recs = append(recs, RecommendRestrictMethods)
	}
	if b.fired[catHTTPS] {
		recs = append(recs, RecommendEnforceHTTPS)
	}
	if b.fired[catRateLimit] {
		recs = append(recs, RecommendRateLimiting)
	}
	if b.fired[catUserAgent] {
		recs = append(recs, RecommendUserAgent)
	}
	for _, ar := range attackRecommendations {
		if b.content.HasAttackType(ar.attack) {
			recs = append(recs, ar.text)
		}
	}
	if b.res.RiskLevel.AtLeast(detection.RiskHigh) {
		recs = append(recs, RecommendBlockSource, RecommendMonitoring)
	}
	return recs
}
