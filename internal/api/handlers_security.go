// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/reqguard/internal/audit"
	"github.com/tomtom215/reqguard/internal/guard"
	"github.com/tomtom215/reqguard/internal/logging"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
	maxExportLimit    = 10000
)

// EventStore is the read side of the audit store.
type EventStore interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
	Count(ctx context.Context, filter audit.QueryFilter) (int64, error)
	Get(ctx context.Context, id string) (*audit.Event, error)
	GetStats(ctx context.Context) (*audit.Stats, error)
}

// Reporter produces the security report.
type Reporter interface {
	Report() guard.SecurityReport
}

// SecurityHandlers serves the security report and the recorded events.
type SecurityHandlers struct {
	reporter Reporter
	store    EventStore
}

// NewSecurityHandlers creates the handlers. A nil store answers the event
// endpoints with 503.
func NewSecurityHandlers(reporter Reporter, store EventStore) *SecurityHandlers {
	return &SecurityHandlers{reporter: reporter, store: store}
}

// Report handles GET /api/v1/security/report
func (h *SecurityHandlers) Report(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, h.reporter.Report(), nil)
}

// ListEvents handles GET /api/v1/security/events
func (h *SecurityHandlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	if !h.storeReady(w, r) {
		return
	}

	filter, err := parseEventFilter(r, defaultEventLimit, maxEventLimit)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_FILTER", err.Error(), nil)
		return
	}

	events, err := h.store.Query(r.Context(), filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "AUDIT_ERROR", "Failed to fetch security events", err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}

	count, err := h.store.Count(r.Context(), filter)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Failed to count security events")
		count = int64(len(events))
	}

	respondData(w, r, events, &PaginationMeta{
		Total:   count,
		Count:   len(events),
		Limit:   filter.Limit,
		HasMore: count > int64(len(events)),
	})
}

// GetEvent handles GET /api/v1/security/events/{id}
func (h *SecurityHandlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	if !h.storeReady(w, r) {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, r, http.StatusBadRequest, "INVALID_ID", "Event ID is required", nil)
		return
	}

	event, err := h.store.Get(r.Context(), id)
	if errors.Is(err, audit.ErrEventNotFound) {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Event not found", nil)
		return
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "AUDIT_ERROR", "Failed to fetch security event", err)
		return
	}
	respondData(w, r, event, nil)
}

// Stats handles GET /api/v1/security/events/stats
func (h *SecurityHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.storeReady(w, r) {
		return
	}

	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "AUDIT_ERROR", "Failed to get event statistics", err)
		return
	}
	respondData(w, r, stats, nil)
}

// Export handles GET /api/v1/security/events/export?format=json|cef
func (h *SecurityHandlers) Export(w http.ResponseWriter, r *http.Request) {
	if !h.storeReady(w, r) {
		return
	}

	var (
		exporter audit.Exporter
		filename string
	)
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		exporter = &audit.JSONExporter{}
		filename = "security-events.json"
	case "cef":
		exporter = audit.NewCEFExporter()
		filename = "security-events.cef"
	default:
		respondError(w, r, http.StatusBadRequest, "INVALID_FORMAT", "Unsupported export format: "+format, nil)
		return
	}

	filter, err := parseEventFilter(r, maxExportLimit, maxExportLimit)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_FILTER", err.Error(), nil)
		return
	}

	events, err := h.store.Query(r.Context(), filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "EXPORT_ERROR", "Failed to query events for export", err)
		return
	}

	data, err := exporter.Export(events)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "EXPORT_ERROR", "Failed to export events", err)
		return
	}

	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Failed to write export")
	}
}

func (h *SecurityHandlers) storeReady(w http.ResponseWriter, r *http.Request) bool {
	if h.store == nil {
		respondError(w, r, http.StatusServiceUnavailable, "AUDIT_DISABLED", "Security event storage is disabled", nil)
		return false
	}
	return true
}

var errInvalidLimit = errors.New("limit must be a positive integer")

// parseEventFilter reads the event query parameters:
// type (repeatable), min_priority, source, reason, start_time, end_time
// (RFC 3339) and limit.
func parseEventFilter(r *http.Request, defaultLimit, maxLimit int) (audit.QueryFilter, error) {
	q := r.URL.Query()
	filter := audit.QueryFilter{
		EventTypes:    q["type"],
		SourceID:      q.Get("source"),
		BlockedReason: q.Get("reason"),
		Limit:         defaultLimit,
	}

	if v := q.Get("min_priority"); v != "" {
		p := logging.Priority(strings.ToUpper(v))
		switch p {
		case logging.PriorityInfo, logging.PriorityWarning, logging.PriorityError, logging.PriorityCritical:
			filter.MinPriority = p
		default:
			return filter, errors.New("unknown priority: " + v)
		}
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return filter, errInvalidLimit
		}
		filter.Limit = min(limit, maxLimit)
	}

	for name, dst := range map[string]**time.Time{
		"start_time": &filter.StartTime,
		"end_time":   &filter.EndTime,
	} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New(name + " must be RFC 3339")
		}
		*dst = &t
	}
	return filter, nil
}
