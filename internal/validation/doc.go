// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

// Package validation provides struct validation using go-playground/validator v10.
//
// It wraps a shared validator with the custom tags the
// configuration layer needs and turns validator errors into readable
// messages.
//
// # Custom Tags
//
//   - http_method: an upper-case standard HTTP method (GET, POST, ...)
//   - origin_pattern: a CORS origin pattern, one of "*", "*.example.com"
//     or an absolute http(s) origin such as "https://app.example.com:8443"
//
// # Usage
//
//	type GuardConfig struct {
//	    AllowedMethods []string `validate:"dive,http_method"`
//	    AllowedOrigins []string `validate:"dive,origin_pattern"`
//	}
//
//	if err := validation.ValidateStruct(&cfg); err != nil {
//	    return fmt.Errorf("invalid config: %w", err)
//	}
//
// The returned error is a validation.Errors listing every failed field.
//
// The same checks are exported as IsHTTPMethod and IsOriginPattern so that
// runtime settings can be sanitized without a struct.
package validation
