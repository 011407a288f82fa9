// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestFields are added to every line logged through Ctx.
type RequestFields struct {
	RequestID     string
	CorrelationID string
	// ClientIP is the resolved client address, not the socket peer.
	ClientIP string
}

type fieldsKey struct{}

type loggerKey struct{}

// NewCorrelationID returns the first 8 characters of a new UUID.
func NewCorrelationID() string {
	return uuid.New().String()[:8]
}

// WithRequestFields merges f into the fields already stored in ctx. Empty
// values in f keep the stored ones.
func WithRequestFields(ctx context.Context, f RequestFields) context.Context {
	cur := RequestFieldsFromContext(ctx)
	if f.RequestID != "" {
		cur.RequestID = f.RequestID
	}
	if f.CorrelationID != "" {
		cur.CorrelationID = f.CorrelationID
	}
	if f.ClientIP != "" {
		cur.ClientIP = f.ClientIP
	}
	return context.WithValue(ctx, fieldsKey{}, cur)
}

// RequestFieldsFromContext returns the stored fields, zero when absent.
func RequestFieldsFromContext(ctx context.Context) RequestFields {
	f, _ := ctx.Value(fieldsKey{}).(RequestFields)
	return f
}

// WithLogger stores a logger that Ctx uses instead of the global one.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Ctx returns a logger carrying the request fields of ctx.
//
//	logging.Ctx(ctx).Warn().Msg("Request blocked")
func Ctx(ctx context.Context) *zerolog.Logger {
	base, ok := ctx.Value(loggerKey{}).(zerolog.Logger)
	if !ok {
		base = Logger()
	}

	f := RequestFieldsFromContext(ctx)
	logCtx := base.With()
	if f.RequestID != "" {
		logCtx = logCtx.Str("request_id", f.RequestID)
	}
	if f.CorrelationID != "" {
		logCtx = logCtx.Str("correlation_id", f.CorrelationID)
	}
	if f.ClientIP != "" {
		logCtx = logCtx.Str("client_ip", f.ClientIP)
	}

	logger := logCtx.Logger()
	return &logger
}
