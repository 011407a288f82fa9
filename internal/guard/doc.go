// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

/*
Package guard validates inbound HTTP requests and aggregates a verdict.

A Validator runs every check on each request, without short-circuiting,
and folds the results into a ValidationResult:

 1. method allow-list (medium)
 2. URL length (medium)
 3. HTTPS (warning)
 4. sensitive endpoint (warning, raises risk for high and critical categories)
 5. dangerous endpoint (critical)
 6. User-Agent (medium)
 7. request size (medium)
 8. header count (low)
 9. query parameter count (medium)
 10. attack signatures in URL, query and body (high)
 11. rate limit per source and path (medium, blocked reason rate_limit_exceeded)
 12. behavioral anomaly (warning, raises risk to high for bursts)
 13. CORS origin allow-list (medium)

The overall risk level is the highest contribution. A request is safe when
no violation was recorded. Unsafe requests produce a security event on the
configured EventSink.

# Failure Handling

A panic inside one check becomes a "check <name> failed" violation at high
risk and the remaining checks still run. Rate-limit store errors admit the
request. A fault outside the checks yields a critical result with blocked
reason validation_error.

# Configuration

Settings are read once per request from a SettingsProvider. AtomicSettings
allows the server to swap them on reload; invalid values are replaced with
defaults and logged.
*/
package guard
