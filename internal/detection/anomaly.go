// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package detection

import (
	"fmt"
	"sort"
	"time"
)

// Anomaly reasons, in evaluation order.
const (
	AnomalyHighFrequency      = "high_frequency_requests"
	AnomalyPathScanning       = "path_scanning"
	AnomalyUserAgentSwitching = "user_agent_switching"
)

// AnomalyConfig configures the anomaly heuristics.
type AnomalyConfig struct {
	// BurstThreshold is the number of requests in BurstWindow that must be
	// exceeded to report high_frequency_requests.
	BurstThreshold int
	BurstWindow    time.Duration

	// PathThreshold is the number of distinct paths in PathWindow that must
	// be exceeded to report path_scanning.
	PathThreshold int
	PathWindow    time.Duration

	// UserAgentThreshold is the number of distinct User-Agents in
	// UserAgentWindow that must be exceeded to report user_agent_switching.
	UserAgentThreshold int
	UserAgentWindow    time.Duration

	// HistoryCapacity bounds the snapshots kept per source.
	HistoryCapacity int
}

// DefaultAnomalyConfig returns the default thresholds.
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		BurstThreshold:     50,
		BurstWindow:        time.Minute,
		PathThreshold:      20,
		PathWindow:         5 * time.Minute,
		UserAgentThreshold: 5,
		UserAgentWindow:    10 * time.Minute,
		HistoryCapacity:    DefaultHistoryCapacity,
	}
}

// withDefaults replaces non-positive values with their defaults.
func (c AnomalyConfig) withDefaults() AnomalyConfig {
	d := DefaultAnomalyConfig()
	if c.BurstThreshold <= 0 {
		c.BurstThreshold = d.BurstThreshold
	}
	if c.BurstWindow <= 0 {
		c.BurstWindow = d.BurstWindow
	}
	if c.PathThreshold <= 0 {
		c.PathThreshold = d.PathThreshold
	}
	if c.PathWindow <= 0 {
		c.PathWindow = d.PathWindow
	}
	if c.UserAgentThreshold <= 0 {
		c.UserAgentThreshold = d.UserAgentThreshold
	}
	if c.UserAgentWindow <= 0 {
		c.UserAgentWindow = d.UserAgentWindow
	}
	if c.HistoryCapacity <= 0 {
		c.HistoryCapacity = d.HistoryCapacity
	}
	return c
}

// AnomalyResult is the outcome of one observation.
// Only the first triggered heuristic is reported.
type AnomalyResult struct {
	IsAnomaly bool      `json:"is_anomaly"`
	Reason    string    `json:"reason,omitempty"`
	Severity  RiskLevel `json:"severity"`
	Details   string    `json:"details,omitempty"`
}

// SourceActivity summarizes one tracked source.
type SourceActivity struct {
	SourceID string `json:"source_identifier"`
	Requests int    `json:"requests"`
}

// AnomalyTracker detects behavioral anomalies per source identifier.
// It is safe for concurrent use; observations for one source serialize on
// that source's history.
type AnomalyTracker struct {
	cfg   AnomalyConfig
	store *HistoryStore
	now   func() time.Time
}

// AnomalyOption configures an AnomalyTracker.
type AnomalyOption func(*AnomalyTracker)

// WithClock replaces time.Now for snapshots without a timestamp and for the
// heuristic windows.
func WithClock(now func() time.Time) AnomalyOption {
	return func(t *AnomalyTracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewAnomalyTracker creates a tracker keeping histories in store. A nil store
// is replaced by a default-sized one using the configured history capacity.
func NewAnomalyTracker(cfg AnomalyConfig, store *HistoryStore, opts ...AnomalyOption) *AnomalyTracker {
	cfg = cfg.withDefaults()
	if store == nil {
		store = NewHistoryStore(0, cfg.HistoryCapacity, 0)
	}
	t := &AnomalyTracker{cfg: cfg, store: store, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Config returns the effective configuration.
func (t *AnomalyTracker) Config() AnomalyConfig {
	return t.cfg
}

// Store returns the backing history store.
func (t *AnomalyTracker) Store() *HistoryStore {
	return t.store
}

// Observe records snapshot for id and evaluates the heuristics against the
// updated history: bursts first, then path scanning, then User-Agent churn.
func (t *AnomalyTracker) Observe(id string, snapshot RequestSnapshot) AnomalyResult {
	now := t.now()
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = now
	}

	h := t.store.Get(id)
	h.mu.Lock()
	defer h.mu.Unlock()

	h.appendLocked(snapshot)

	burstCutoff := now.Add(-t.cfg.BurstWindow)
	pathCutoff := now.Add(-t.cfg.PathWindow)
	uaCutoff := now.Add(-t.cfg.UserAgentWindow)

	var burst int
	paths := make(map[string]struct{})
	agents := make(map[string]struct{})
	h.eachLocked(func(s RequestSnapshot) {
		if s.Timestamp.After(burstCutoff) {
			burst++
		}
		if s.Timestamp.After(pathCutoff) {
			paths[s.Path] = struct{}{}
		}
		if s.Timestamp.After(uaCutoff) {
			agents[s.UserAgent] = struct{}{}
		}
	})

	switch {
	case burst > t.cfg.BurstThreshold:
		return AnomalyResult{
			IsAnomaly: true,
			Reason:    AnomalyHighFrequency,
			Severity:  RiskHigh,
			Details:   fmt.Sprintf("%d requests in %s", burst, humanWindow(t.cfg.BurstWindow)),
		}
	case len(paths) > t.cfg.PathThreshold:
		return AnomalyResult{
			IsAnomaly: true,
			Reason:    AnomalyPathScanning,
			Severity:  RiskMedium,
			Details:   fmt.Sprintf("%d unique paths in %s", len(paths), humanWindow(t.cfg.PathWindow)),
		}
	case len(agents) > t.cfg.UserAgentThreshold:
		return AnomalyResult{
			IsAnomaly: true,
			Reason:    AnomalyUserAgentSwitching,
			Severity:  RiskMedium,
			Details:   fmt.Sprintf("%d different user agents in %s", len(agents), humanWindow(t.cfg.UserAgentWindow)),
		}
	}
	return AnomalyResult{}
}

// Activity returns every tracked source with its request count newer than
// now-window, busiest first. Sources with no requests in the window are omitted.
func (t *AnomalyTracker) Activity(window time.Duration) []SourceActivity {
	cutoff := t.now().Add(-window)

	var out []SourceActivity
	t.store.Range(func(id string, h *History) bool {
		if n := h.CountSince(cutoff); n > 0 {
			out = append(out, SourceActivity{SourceID: id, Requests: n})
		}
		return true
	})

	sort.Slice(out, func(i, j int) bool {
		if out[i].Requests != out[j].Requests {
			return out[i].Requests > out[j].Requests
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out
}

// TrackedSources returns the number of sources with retained history.
func (t *AnomalyTracker) TrackedSources() int {
	return t.store.Len()
}

// humanWindow renders whole-minute windows as "5 minutes".
func humanWindow(d time.Duration) string {
	if d%time.Minute != 0 {
		return d.String()
	}
	if m := int(d / time.Minute); m != 1 {
		return fmt.Sprintf("%d minutes", m)
	}
	return "1 minute"
}
