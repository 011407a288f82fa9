// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package audit

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/reqguard/internal/logging"
)

// ErrEventNotFound is returned by Get when no event has the requested ID.
var ErrEventNotFound = errors.New("audit event not found")

// Event is a security event as emitted by the guard.
type Event = logging.SecurityEvent

// priorityRank orders priorities for MinPriority filtering.
var priorityRank = map[logging.Priority]int{
	logging.PriorityInfo:     0,
	logging.PriorityWarning:  1,
	logging.PriorityError:    2,
	logging.PriorityCritical: 3,
}

// AtLeast reports whether p is at or above minimum. An empty minimum matches everything.
func AtLeast(p, minimum logging.Priority) bool {
	if minimum == "" {
		return true
	}
	return priorityRank[p] >= priorityRank[minimum]
}

// Store defines the interface for audit event persistence.
type Store interface {
	// Save persists an audit event.
	Save(ctx context.Context, event *Event) error

	// Get retrieves an event by ID.
	Get(ctx context.Context, id string) (*Event, error)

	// Query retrieves events matching the filter, most recent first.
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)

	// Count returns the number of events matching the filter.
	Count(ctx context.Context, filter QueryFilter) (int64, error)

	// Delete removes events older than the given time.
	Delete(ctx context.Context, olderThan time.Time) (int64, error)

	// GetStats summarizes the stored events.
	GetStats(ctx context.Context) (*Stats, error)
}

// QueryFilter selects events. Zero fields do not filter.
type QueryFilter struct {
	// EventTypes filters by event type.
	EventTypes []string `json:"event_types,omitempty"`

	// MinPriority keeps events at or above this priority.
	MinPriority logging.Priority `json:"min_priority,omitempty"`

	// SourceID filters by source identifier.
	SourceID string `json:"source_identifier,omitempty"`

	// BlockedReason filters by blocked reason.
	BlockedReason string `json:"blocked_reason,omitempty"`

	// StartTime is the beginning of the time range (inclusive).
	StartTime *time.Time `json:"start_time,omitempty"`

	// EndTime is the end of the time range (exclusive).
	EndTime *time.Time `json:"end_time,omitempty"`

	// Limit caps the number of results; 0 means no limit.
	Limit int `json:"limit,omitempty"`
}

// Matches reports whether event passes the filter, ignoring Limit.
func (f *QueryFilter) Matches(event *Event) bool {
	if len(f.EventTypes) > 0 && !containsString(f.EventTypes, event.EventType) {
		return false
	}
	if !AtLeast(event.Priority, f.MinPriority) {
		return false
	}
	if f.SourceID != "" && event.SourceID != f.SourceID {
		return false
	}
	if f.BlockedReason != "" && event.BlockedReason != f.BlockedReason {
		return false
	}
	if f.StartTime != nil && event.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && !event.Timestamp.Before(*f.EndTime) {
		return false
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Stats summarizes an audit store.
type Stats struct {
	TotalEvents      int64            `json:"total_events"`
	EventsByType     map[string]int64 `json:"events_by_type"`
	EventsByPriority map[string]int64 `json:"events_by_priority"`
	EventsByReason   map[string]int64 `json:"events_by_reason"`
	OldestEvent      *time.Time       `json:"oldest_event,omitempty"`
	NewestEvent      *time.Time       `json:"newest_event,omitempty"`
}

func newStats() *Stats {
	return &Stats{
		EventsByType:     make(map[string]int64),
		EventsByPriority: make(map[string]int64),
		EventsByReason:   make(map[string]int64),
	}
}

func (s *Stats) add(event *Event) {
	s.TotalEvents++
	s.EventsByType[event.EventType]++
	s.EventsByPriority[string(event.Priority)]++
	if event.BlockedReason != "" {
		s.EventsByReason[event.BlockedReason]++
	}

	if s.OldestEvent == nil || event.Timestamp.Before(*s.OldestEvent) {
		t := event.Timestamp
		s.OldestEvent = &t
	}
	if s.NewestEvent == nil || event.Timestamp.After(*s.NewestEvent) {
		t := event.Timestamp
		s.NewestEvent = &t
	}
}
