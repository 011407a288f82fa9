// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package audit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tomtom215/reqguard/internal/logging"
	"github.com/tomtom215/reqguard/internal/metrics"
)

// Config holds configuration for the audit logger.
type Config struct {
	// Enabled controls whether events are accepted at all.
	Enabled bool `json:"enabled"`

	// BufferSize is the size of the async write buffer.
	BufferSize int `json:"buffer_size"`

	// MinPriority drops events below this priority before buffering.
	MinPriority logging.Priority `json:"min_priority"`

	// Retention is how long stored events are kept; 0 keeps them forever.
	Retention time.Duration `json:"retention"`

	// CleanupInterval is how often retention cleanup runs.
	CleanupInterval time.Duration `json:"cleanup_interval"`

	// WriteTimeout bounds each store write.
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DefaultConfig returns the default audit configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		BufferSize:      1024,
		MinPriority:     logging.PriorityInfo,
		Retention:       7 * 24 * time.Hour,
		CleanupInterval: time.Hour,
		WriteTimeout:    5 * time.Second,
	}
}

// Logger buffers security events and writes them from a single goroutine.
// It implements suture.Service.
type Logger struct {
	config   Config
	store    Store
	sink     *logging.SecurityLogger
	events   chan *Event
	enabled  atomic.Bool
	dropWarn rate.Sometimes
	now      func() time.Time
}

// NewLogger creates a new audit logger. A nil store only logs; a nil sink
// uses the global security logger.
func NewLogger(store Store, sink *logging.SecurityLogger, config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	if sink == nil {
		sink = logging.NewSecurityLogger()
	}

	l := &Logger{
		config:   cfg,
		store:    store,
		sink:     sink,
		events:   make(chan *Event, cfg.BufferSize),
		dropWarn: rate.Sometimes{Interval: 10 * time.Second},
		now:      time.Now,
	}
	l.enabled.Store(cfg.Enabled)
	return l
}

// Emit queues an event without blocking. ID and timestamp are filled in
// when missing. A full buffer drops the event.
func (l *Logger) Emit(event *Event) {
	if event == nil || !l.enabled.Load() {
		return
	}
	if !AtLeast(event.Priority, l.config.MinPriority) {
		return
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}

	select {
	case l.events <- event:
	default:
		metrics.RecordAuditDrop()
		l.dropWarn.Do(func() {
			logging.Warn().Str("event_id", event.ID).Int("buffer_size", l.config.BufferSize).
				Msg("Audit event buffer full, dropping events")
		})
	}
}

// Serve drains the buffer until ctx is cancelled, then flushes what is
// left and returns.
func (l *Logger) Serve(ctx context.Context) error {
	var cleanup <-chan time.Time
	if l.store != nil && l.config.Retention > 0 {
		ticker := time.NewTicker(l.config.CleanupInterval)
		defer ticker.Stop()
		cleanup = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			l.drain()
			return ctx.Err()
		case event := <-l.events:
			l.write(event)
		case <-cleanup:
			l.cleanup(ctx)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (l *Logger) String() string {
	return "audit-logger"
}

func (l *Logger) drain() {
	for {
		select {
		case event := <-l.events:
			l.write(event)
		default:
			return
		}
	}
}

// write logs the event and persists it.
func (l *Logger) write(event *Event) {
	l.sink.LogEvent(event)
	metrics.RecordAuditEvent(string(event.Priority))

	if l.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.config.WriteTimeout)
	defer cancel()
	if err := l.store.Save(ctx, event); err != nil {
		logging.Error().Err(err).Str("event_id", event.ID).Msg("Failed to save audit event")
	}
}

func (l *Logger) cleanup(ctx context.Context) {
	cutoff := l.now().Add(-l.config.Retention)
	count, err := l.store.Delete(ctx, cutoff)
	if err != nil {
		logging.Error().Err(err).Msg("Audit cleanup error")
		return
	}
	if count > 0 {
		logging.Info().Int64("count", count).Msg("Cleaned up old audit events")
	}
}

// Pending returns the number of buffered events.
func (l *Logger) Pending() int {
	return len(l.events)
}

// Store returns the backing store, or nil.
func (l *Logger) Store() Store {
	return l.store
}

// SetEnabled enables or disables event intake.
func (l *Logger) SetEnabled(enabled bool) {
	l.enabled.Store(enabled)
}

// Enabled returns whether event intake is enabled.
func (l *Logger) Enabled() bool {
	return l.enabled.Load()
}
