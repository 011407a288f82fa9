// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/tomtom215/reqguard/internal/guard"
	"github.com/tomtom215/reqguard/internal/logging"
)

// Guard validates every request with v and answers blocked requests with
// the block response. Allowed requests continue with their body intact.
func Guard(v *guard.Validator, resolver *ClientIPResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			md := BuildMetadata(r, resolver, v.Settings().MaxRequestSize)

			res := v.Validate(r.Context(), md)
			if !res.IsSafe {
				logging.Ctx(r.Context()).Debug().
					Str("source", md.SourceID).
					Str("risk_level", res.RiskLevel.String()).
					Str("blocked_reason", res.BlockedReason).
					Msg("Request blocked")
				guard.WriteBlockResponse(w, r, &res)
				return
			}

			if rl := res.RateLimit; rl != nil && !rl.FailOpen {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rl.ResetAt.Unix(), 10))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BuildMetadata extracts the request metadata the validator needs. At most
// maxBody+1 bytes of the body are read; r.Body is replaced so that the
// downstream handler still sees the complete body.
func BuildMetadata(r *http.Request, resolver *ClientIPResolver, maxBody int64) *guard.RequestMetadata {
	headers := guard.Headers(r.Header.Clone())
	if headers == nil {
		headers = guard.Headers{}
	}
	if r.Host != "" && headers.Get("Host") == "" {
		headers.Set("Host", r.Host)
	}
	if r.ContentLength > 0 && headers.Get("Content-Length") == "" {
		headers.Set("Content-Length", strconv.FormatInt(r.ContentLength, 10))
	}

	sourceID := ClientIPFromContext(r.Context())
	if sourceID == "" {
		sourceID = resolver.Resolve(r)
	}

	return &guard.RequestMetadata{
		Method:    r.Method,
		URL:       scheme(r, resolver) + "://" + r.Host + r.URL.RequestURI(),
		Path:      r.URL.Path,
		Query:     r.URL.Query(),
		Headers:   headers,
		Body:      peekBody(r, maxBody),
		SourceID:  sourceID,
		RequestID: GetRequestID(r.Context()),
	}
}

func peekBody(r *http.Request, maxBody int64) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	buf, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Failed to read request body for validation")
	}
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(buf), r.Body), Closer: r.Body}
	return string(buf)
}

type readCloser struct {
	io.Reader
	io.Closer
}

func scheme(r *http.Request, resolver *ClientIPResolver) string {
	if r.TLS != nil {
		return "https"
	}
	if resolver.PeerTrusted(r) {
		proto := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")))
		if proto == "https" || proto == "http" {
			return proto
		}
	}
	return "http"
}
