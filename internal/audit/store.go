// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package audit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/reqguard/internal/logging"
)

// MemoryStore implements Store using in-memory storage.
// Data is lost on restart.
type MemoryStore struct {
	events []Event
	mu     sync.RWMutex
	maxLen int
}

// NewMemoryStore creates a new in-memory audit store.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{
		events: make([]Event, 0, min(maxLen, 1024)),
		maxLen: maxLen,
	}
}

// Save persists an audit event.
func (s *MemoryStore) Save(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Enforce max length by removing the oldest 10%
	if len(s.events) >= s.maxLen {
		removeCount := max(s.maxLen/10, 1)
		s.events = append(s.events[:0], s.events[removeCount:]...)
	}

	e := *event
	e.Violations = append([]string(nil), event.Violations...)
	s.events = append(s.events, e)
	return nil
}

// Get retrieves an event by ID.
func (s *MemoryStore) Get(_ context.Context, id string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.events {
		if s.events[i].ID == id {
			event := s.events[i]
			return &event, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
}

// Query retrieves events matching the filter, most recent first.
func (s *MemoryStore) Query(_ context.Context, filter QueryFilter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Event
	for i := len(s.events) - 1; i >= 0; i-- {
		if !filter.Matches(&s.events[i]) {
			continue
		}
		results = append(results, s.events[i])
		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}

	return results, nil
}

// Count returns the number of events matching the filter.
func (s *MemoryStore) Count(_ context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for i := range s.events {
		if filter.Matches(&s.events[i]) {
			count++
		}
	}
	return count, nil
}

// Delete removes events older than the given time.
func (s *MemoryStore) Delete(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var deleted int64
	for idx := range s.events {
		if s.events[idx].Timestamp.Before(olderThan) {
			deleted++
			continue
		}
		kept = append(kept, s.events[idx])
	}
	s.events = kept
	return deleted, nil
}

// GetStats returns statistics for the memory store.
func (s *MemoryStore) GetStats(_ context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := newStats()
	for idx := range s.events {
		stats.add(&s.events[idx])
	}
	return stats, nil
}

// Len returns the number of events in the store.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Exporter renders events for download.
type Exporter interface {
	Export(events []Event) ([]byte, error)
	ContentType() string
}

// JSONExporter exports events in JSON format.
type JSONExporter struct{}

// Export exports events to JSON format.
func (e *JSONExporter) Export(events []Event) ([]byte, error) {
	if events == nil {
		events = []Event{}
	}
	return json.MarshalIndent(events, "", "  ")
}

// ContentType implements Exporter.
func (e *JSONExporter) ContentType() string {
	return "application/json"
}

// CEFExporter exports events in Common Event Format (for SIEM integration).
type CEFExporter struct {
	DeviceVendor  string
	DeviceProduct string
	DeviceVersion string
}

// NewCEFExporter creates a new CEF exporter with defaults.
func NewCEFExporter() *CEFExporter {
	return &CEFExporter{
		DeviceVendor:  "Reqguard",
		DeviceProduct: "RequestGuard",
		DeviceVersion: "1.0",
	}
}

// ContentType implements Exporter.
func (e *CEFExporter) ContentType() string {
	return "text/plain; charset=utf-8"
}

// Export exports events to CEF format.
// CEF Format: CEF:Version|Device Vendor|Device Product|Device Version|Signature ID|Name|Severity|Extension
func (e *CEFExporter) Export(events []Event) ([]byte, error) {
	lines := make([]string, 0, len(events))

	for idx := range events {
		event := &events[idx]
		signature := event.EventType
		if event.BlockedReason != "" {
			signature = event.BlockedReason
		}

		lines = append(lines, fmt.Sprintf("CEF:0|%s|%s|%s|%s|%s|%d|%s",
			e.escapeHeader(e.DeviceVendor),
			e.escapeHeader(e.DeviceProduct),
			e.escapeHeader(e.DeviceVersion),
			e.escapeHeader(signature),
			e.escapeHeader(event.Message),
			e.cefSeverity(event.Priority),
			e.buildExtension(event),
		))
	}

	return []byte(strings.Join(lines, "\n")), nil
}

// cefSeverity maps event priority to CEF severity (0-10).
func (e *CEFExporter) cefSeverity(p logging.Priority) int {
	switch p {
	case logging.PriorityInfo:
		return 3
	case logging.PriorityWarning:
		return 5
	case logging.PriorityError:
		return 7
	case logging.PriorityCritical:
		return 10
	default:
		return 0
	}
}

// buildExtension builds the CEF extension string.
func (e *CEFExporter) buildExtension(event *Event) string {
	parts := []string{fmt.Sprintf("rt=%d", event.Timestamp.UnixMilli())}

	if event.SourceID != "" {
		parts = append(parts, "src="+e.escapeExtension(event.SourceID))
	}
	if event.Method != "" {
		parts = append(parts, "requestMethod="+e.escapeExtension(event.Method))
	}
	if event.Path != "" {
		parts = append(parts, "request="+e.escapeExtension(event.Path))
	}
	if event.UserAgent != "" {
		parts = append(parts, "requestClientApplication="+e.escapeExtension(logging.SanitizeUserAgent(event.UserAgent)))
	}
	if event.RiskLevel != "" {
		parts = append(parts, "cs1Label=riskLevel cs1="+e.escapeExtension(event.RiskLevel))
	}
	if len(event.Violations) > 0 {
		parts = append(parts, "msg="+e.escapeExtension(strings.Join(logging.SanitizeViolations(event.Violations), "; ")))
	}
	if event.RequestID != "" {
		parts = append(parts, "externalId="+e.escapeExtension(event.RequestID))
	}

	return strings.Join(parts, " ")
}

// escapeHeader escapes a CEF header field.
func (e *CEFExporter) escapeHeader(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "|", "\\|")
	return flattenLines(s)
}

// escapeExtension escapes a CEF extension value.
func (e *CEFExporter) escapeExtension(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "=", "\\=")
	return flattenLines(s)
}

func flattenLines(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", "")
}
