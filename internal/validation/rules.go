// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package validation

import (
	"net/url"
	"strings"
)

// rule is a custom validator tag backed by a string predicate.
type rule struct {
	check   func(string) bool
	message string
}

var customRules = map[string]rule{
	"http_method":    {IsHTTPMethod, "must be a standard upper-case HTTP method"},
	"origin_pattern": {IsOriginPattern, "must be *, *.domain or an http(s) origin"},
}

var standardMethods = map[string]struct{}{
	"GET": {}, "HEAD": {}, "POST": {}, "PUT": {}, "PATCH": {},
	"DELETE": {}, "OPTIONS": {}, "TRACE": {}, "CONNECT": {},
}

// IsHTTPMethod reports whether m is an upper-case standard HTTP method.
func IsHTTPMethod(m string) bool {
	_, ok := standardMethods[m]
	return ok
}

// IsOriginPattern reports whether p is "*", a "*.domain" wildcard or an
// absolute http(s) origin without path, query or fragment.
func IsOriginPattern(p string) bool {
	if p == "*" {
		return true
	}
	if domain, ok := strings.CutPrefix(p, "*."); ok {
		return domain != "" && domain[0] != '.' && !strings.ContainsAny(domain, "/*: ")
	}

	u, err := url.Parse(p)
	switch {
	case err != nil, u.Scheme != "http" && u.Scheme != "https":
		return false
	case u.Host == "", u.User != nil:
		return false
	}
	return (u.Path == "" || u.Path == "/") && u.RawQuery == "" && u.Fragment == ""
}
