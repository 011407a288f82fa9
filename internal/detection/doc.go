// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

// Package detection provides the request classifiers used by the guard engine
// to score inbound HTTP requests.
//
// Detection Architecture:
//
//	RequestMetadata -> guard.Validator -> ValidationResult -> allow / block
//	                      |
//	                      +-- EndpointClassifier   (sensitive / dangerous paths)
//	                      +-- UserAgentClassifier  (block list, scanner signatures)
//	                      +-- ContentClassifier    (SQLi, XSS, command injection, traversal)
//	                      +-- AnomalyTracker       (bursts, path scanning, UA churn)
//
// The endpoint, User-Agent and content classifiers are pure: every pattern is
// compiled once at construction into an immutable ordered list, and identical
// input always yields identical output. They are safe for concurrent use.
//
// AnomalyTracker is the only stateful classifier. It keeps a bounded FIFO
// history (capacity 100) per source identifier inside a HistoryStore, which
// is itself a bounded LRU with idle expiry so that spoofed source addresses
// cannot grow memory without limit.
//
// Risk Levels:
//
// Every classifier reports severity as a RiskLevel, ordered
// RiskLow < RiskMedium < RiskHigh < RiskCritical. The guard combines them by
// taking the maximum (see MaxRisk).
package detection
