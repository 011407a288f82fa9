// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

/*
Package audit persists and forwards the guard's security events.

The Logger accepts events through Emit without blocking the request path:
events go into a bounded buffer and a supervised writer drains it, writing
each event to the structured security log and to a Store. When the buffer
is full the event is dropped and audit_events_dropped_total is incremented.

# Stores

  - MemoryStore: bounded in-process slice, oldest events dropped first
  - BadgerStore: durable store on dgraph-io/badger/v4, keyed by timestamp
    so that recent-first queries and retention deletes are range scans

# Export

JSONExporter and CEFExporter render query results for the events endpoint.
CEF output targets SIEM ingestion.

# Usage

	store := audit.NewMemoryStore(10000)
	logger := audit.NewLogger(store, logging.NewSecurityLogger(), nil)
	supervisor.Add(logger)              // runs Serve until shutdown
	logger.Emit(&audit.Event{...})      // never blocks
*/
package audit
