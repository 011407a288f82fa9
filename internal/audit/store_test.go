// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/reqguard/internal/logging"
)

var baseTime = time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC)

func testEvent(i int, priority logging.Priority, reason string) *Event {
	return &Event{
		ID:            fmt.Sprintf("evt-%03d", i),
		Timestamp:     baseTime.Add(time.Duration(i) * time.Minute),
		EventType:     logging.EventSecurityViolation,
		Message:       "Request blocked: " + reason,
		Priority:      priority,
		SourceID:      fmt.Sprintf("10.0.0.%d", i%3),
		Path:          "/admin",
		Method:        "GET",
		UserAgent:     "sqlmap/1.0",
		Violations:    []string{"Suspicious user agent: suspicious_tool: sqlmap"},
		RiskLevel:     "critical",
		BlockedReason: reason,
	}
}

// storeContract runs the same checks against any Store implementation.
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	priorities := []logging.Priority{logging.PriorityInfo, logging.PriorityWarning, logging.PriorityError, logging.PriorityCritical}
	for i := 0; i < 8; i++ {
		reason := "security_violation"
		if i%2 == 0 {
			reason = "rate_limit_exceeded"
		}
		if err := store.Save(ctx, testEvent(i, priorities[i%4], reason)); err != nil {
			t.Fatalf("Save(%d): %v", i, err)
		}
	}

	t.Run("get", func(t *testing.T) {
		got, err := store.Get(ctx, "evt-003")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Priority != logging.PriorityCritical || !got.Timestamp.Equal(baseTime.Add(3*time.Minute)) {
			t.Errorf("Get returned %+v", got)
		}
		if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrEventNotFound) {
			t.Errorf("Get(missing) error = %v, want ErrEventNotFound", err)
		}
	})

	t.Run("query recent first with limit", func(t *testing.T) {
		events, err := store.Query(ctx, QueryFilter{Limit: 3})
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(events) != 3 {
			t.Fatalf("got %d events, want 3", len(events))
		}
		if events[0].ID != "evt-007" || events[2].ID != "evt-005" {
			t.Errorf("order = %s,%s,%s", events[0].ID, events[1].ID, events[2].ID)
		}
	})

	t.Run("filters", func(t *testing.T) {
		start := baseTime.Add(2 * time.Minute)
		end := baseTime.Add(6 * time.Minute)
		tests := []struct {
			name   string
			filter QueryFilter
			want   int64
		}{
			{"all", QueryFilter{}, 8},
			{"min priority error", QueryFilter{MinPriority: logging.PriorityError}, 4},
			{"reason", QueryFilter{BlockedReason: "rate_limit_exceeded"}, 4},
			{"source", QueryFilter{SourceID: "10.0.0.1"}, 3},
			{"time range", QueryFilter{StartTime: &start, EndTime: &end}, 4},
			{"type mismatch", QueryFilter{EventTypes: []string{logging.EventValidationError}}, 0},
		}
		for _, tt := range tests {
			count, err := store.Count(ctx, tt.filter)
			if err != nil {
				t.Fatalf("%s: Count: %v", tt.name, err)
			}
			if count != tt.want {
				t.Errorf("%s: Count = %d, want %d", tt.name, count, tt.want)
			}
		}
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := store.GetStats(ctx)
		if err != nil {
			t.Fatalf("GetStats: %v", err)
		}
		if stats.TotalEvents != 8 || stats.EventsByPriority["CRITICAL"] != 2 || stats.EventsByReason["rate_limit_exceeded"] != 4 {
			t.Errorf("stats = %+v", stats)
		}
		if !stats.OldestEvent.Equal(baseTime) || !stats.NewestEvent.Equal(baseTime.Add(7*time.Minute)) {
			t.Errorf("range = %v..%v", stats.OldestEvent, stats.NewestEvent)
		}
	})

	t.Run("delete", func(t *testing.T) {
		deleted, err := store.Delete(ctx, baseTime.Add(5*time.Minute))
		if err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if deleted != 5 {
			t.Errorf("deleted = %d, want 5", deleted)
		}
		if count, _ := store.Count(ctx, QueryFilter{}); count != 3 {
			t.Errorf("remaining = %d, want 3", count)
		}
		if _, err := store.Get(ctx, "evt-001"); !errors.Is(err, ErrEventNotFound) {
			t.Errorf("deleted event still retrievable: %v", err)
		}
		if _, err := store.Get(ctx, "evt-005"); err != nil {
			t.Errorf("kept event missing: %v", err)
		}
	})
}

func TestMemoryStore_Contract(t *testing.T) {
	t.Parallel()
	storeContract(t, NewMemoryStore(100))
}

func TestMemoryStore_DropsOldestWhenFull(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(10)
	ctx := context.Background()
	for i := 0; i < 15; i++ {
		_ = store.Save(ctx, testEvent(i, logging.PriorityWarning, "security_violation"))
	}
	if store.Len() > 10 {
		t.Errorf("Len = %d, want <= 10", store.Len())
	}
	events, _ := store.Query(ctx, QueryFilter{})
	if events[0].ID != "evt-014" {
		t.Errorf("newest = %s, want evt-014", events[0].ID)
	}
	if _, err := store.Get(ctx, "evt-000"); err == nil {
		t.Error("oldest event should have been dropped")
	}
}

func TestMemoryStore_SaveCopiesViolations(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(10)
	ev := testEvent(1, logging.PriorityError, "security_violation")
	_ = store.Save(context.Background(), ev)
	ev.Violations[0] = "mutated"

	got, _ := store.Get(context.Background(), ev.ID)
	if got.Violations[0] == "mutated" {
		t.Error("store should not alias the caller's violation slice")
	}
}

func TestJSONExporter(t *testing.T) {
	t.Parallel()

	data, err := (&JSONExporter{}).Export([]Event{*testEvent(1, logging.PriorityCritical, "security_violation")})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded[0]["source_identifier"] != "10.0.0.1" || decoded[0]["priority"] != "CRITICAL" {
		t.Errorf("decoded = %v", decoded[0])
	}

	empty, _ := (&JSONExporter{}).Export(nil)
	if string(empty) != "[]" {
		t.Errorf("empty export = %q, want []", empty)
	}
}

func TestCEFExporter(t *testing.T) {
	t.Parallel()

	ev := testEvent(1, logging.PriorityCritical, "security_violation")
	ev.Message = "blocked | pipe"
	ev.Path = "/a=b\nforged"

	data, err := NewCEFExporter().Export([]Event{*ev})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	line := string(data)

	if !strings.HasPrefix(line, "CEF:0|Reqguard|RequestGuard|1.0|security_violation|blocked \\| pipe|10|") {
		t.Errorf("header = %q", line)
	}
	for _, want := range []string{"src=10.0.0.1", "requestMethod=GET", "request=/a\\=b forged", "cs1=critical"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "\n") {
		t.Error("CEF line must not contain newlines")
	}
}
