// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package guard

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/reqguard/internal/detection"
	"github.com/tomtom215/reqguard/internal/logging"
	"github.com/tomtom215/reqguard/internal/metrics"
	"github.com/tomtom215/reqguard/internal/ratelimit"
)

// Violation and warning categories, used for metrics labels and
// recommendations.
const (
	catMethod        = "method"
	catURLLength     = "url_length"
	catHTTPS         = "https"
	catEndpoint      = "sensitive_endpoint"
	catDangerous     = "dangerous_endpoint"
	catUserAgent     = "user_agent"
	catRequestSize   = "request_size"
	catHeaders       = "header_count"
	catQuery         = "query_params"
	catContent       = "content"
	catRateLimit     = "rate_limit"
	catAnomaly       = "anomaly"
	catCORS          = "cors"
	catCheckFailure  = "check_failure"
	violationMessage = "Endpoint security violation detected"
)

// ContentScanner scans request content for attack signatures.
type ContentScanner interface {
	Scan(url string, query map[string][]string, body string) detection.ContentResult
}

// EndpointMatcher classifies request paths.
type EndpointMatcher interface {
	Classify(path string) detection.EndpointResult
	IsDangerous(path string) bool
}

// EventSink receives security events for unsafe requests. Emit must not
// block; audit.Logger satisfies it.
type EventSink interface {
	Emit(event *logging.SecurityEvent)
}

// SecurityLogSink writes events synchronously through a SecurityLogger.
type SecurityLogSink struct {
	Logger *logging.SecurityLogger
}

// Emit implements EventSink.
func (s SecurityLogSink) Emit(event *logging.SecurityEvent) {
	s.Logger.LogEvent(event)
}

// uaClassifier is the User-Agent classifier compiled for one block list.
type uaClassifier struct {
	blocked []string
	clf     *detection.UserAgentClassifier
}

// Validator runs every request check and aggregates a verdict.
// It is safe for concurrent use.
type Validator struct {
	settings  SettingsProvider
	limiter   *ratelimit.Limiter
	content   ContentScanner
	endpoints EndpointMatcher
	tracker   *detection.AnomalyTracker
	sink      EventSink
	now       func() time.Time

	ua           atomic.Pointer[uaClassifier]
	failOpenWarn rate.Sometimes
}

// Option configures a Validator.
type Option func(*Validator)

// WithSettings sets the configuration source.
func WithSettings(p SettingsProvider) Option {
	return func(v *Validator) { v.settings = p }
}

// WithLimiter sets the rate limiter.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(v *Validator) { v.limiter = l }
}

// WithContentScanner sets the content classifier.
func WithContentScanner(c ContentScanner) Option {
	return func(v *Validator) { v.content = c }
}

// WithEndpointMatcher sets the endpoint classifier.
func WithEndpointMatcher(e EndpointMatcher) Option {
	return func(v *Validator) { v.endpoints = e }
}

// WithAnomalyTracker sets the anomaly tracker.
func WithAnomalyTracker(t *detection.AnomalyTracker) Option {
	return func(v *Validator) { v.tracker = t }
}

// WithEventSink sets where security events go.
func WithEventSink(s EventSink) Option {
	return func(v *Validator) { v.sink = s }
}

// WithClock replaces time.Now for Retry-After and report timestamps.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// New creates a validator. Missing collaborators get in-memory defaults.
func New(opts ...Option) *Validator {
	v := &Validator{
		now:          time.Now,
		failOpenWarn: rate.Sometimes{Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(v)
	}

	if v.settings == nil {
		v.settings = NewStaticSettings(DefaultSettings())
	}
	if v.limiter == nil {
		v.limiter = ratelimit.New(ratelimit.NewMemoryStore(ratelimit.MemoryConfig{}))
	}
	if v.content == nil {
		v.content = detection.NewContentClassifier()
	}
	if v.endpoints == nil {
		v.endpoints = detection.NewEndpointClassifier()
	}
	if v.tracker == nil {
		v.tracker = detection.NewAnomalyTracker(detection.DefaultAnomalyConfig(), nil)
	}
	if v.sink == nil {
		v.sink = SecurityLogSink{Logger: logging.NewSecurityLogger()}
	}
	return v
}

// Limiter returns the rate limiter.
func (v *Validator) Limiter() *ratelimit.Limiter {
	return v.limiter
}

// Tracker returns the anomaly tracker.
func (v *Validator) Tracker() *detection.AnomalyTracker {
	return v.tracker
}

// Settings returns the current settings snapshot.
func (v *Validator) Settings() Settings {
	return v.settings.Settings()
}

// Validate runs all checks against md. It never panics: a fault in one
// check is recorded as a violation of that check, and a fault outside the
// checks yields a critical validation_error result.
func (v *Validator) Validate(ctx context.Context, md *RequestMetadata) (res ValidationResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logging.Ctx(ctx).Error().Interface("panic", r).Msg("Request validation failed")
			res = validationErrorResult(fmt.Sprintf("validation failed: %v", r))
			v.emit(md, &res)
			metrics.RecordValidation("error", res.RiskLevel.String(), time.Since(start))
		}
	}()

	if md == nil {
		res = validationErrorResult("validation failed: missing request metadata")
		v.emit(nil, &res)
		metrics.RecordValidation("error", res.RiskLevel.String(), time.Since(start))
		return res
	}

	s := v.settings.Settings()
	b := newResultBuilder()

	method := strings.ToUpper(md.Method)
	path := md.Path
	userAgent := md.Headers.Get("User-Agent")

	v.check(ctx, b, "method", func() {
		if !slices.Contains(s.AllowedMethods, method) {
			b.violation(catMethod, fmt.Sprintf("Method not allowed: %s", method), detection.RiskMedium)
		}
	})

	v.check(ctx, b, "url_length", func() {
		if len(md.URL) > s.MaxURLLength {
			b.violation(catURLLength, fmt.Sprintf("URL length exceeds limit: %d", len(md.URL)), detection.RiskMedium)
		}
	})

	v.check(ctx, b, "https", func() {
		if s.RequireHTTPS && !hasHTTPSScheme(md.URL) {
			b.warning(catHTTPS, "HTTPS is recommended")
		}
	})

	v.check(ctx, b, "sensitive_endpoint", func() {
		ep := v.endpoints.Classify(path)
		if !ep.IsSensitive {
			return
		}
		b.warning(catEndpoint, fmt.Sprintf("Access to sensitive endpoint: %s", ep.Category))
		if ep.RiskLevel.AtLeast(detection.RiskHigh) {
			b.raise(ep.RiskLevel)
		}
	})

	v.check(ctx, b, "dangerous_endpoint", func() {
		if v.endpoints.IsDangerous(path) {
			b.violation(catDangerous, "Attempt to access dangerous endpoint", detection.RiskCritical)
		}
	})

	v.check(ctx, b, "user_agent", func() {
		ua := v.userAgentClassifier(s.BlockedUserAgents).Check(userAgent)
		if !ua.Allowed {
			b.violation(catUserAgent, fmt.Sprintf("Suspicious user agent: %s", ua.Detail()), detection.RiskMedium)
		}
	})

	v.check(ctx, b, "request_size", func() {
		size := int64(len(md.Body))
		if raw := strings.TrimSpace(md.Headers.Get("Content-Length")); raw != "" {
			declared, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || declared < 0 {
				b.violation(catRequestSize, "Invalid Content-Length", detection.RiskMedium)
				return
			}
			size = max(size, declared)
		}
		if size > s.MaxRequestSize {
			b.violation(catRequestSize, fmt.Sprintf("Request size exceeds limit: %d", size), detection.RiskMedium)
		}
	})

	v.check(ctx, b, "header_count", func() {
		if n := md.Headers.Len(); n > s.MaxHeadersCount {
			b.violation(catHeaders, fmt.Sprintf("Too many HTTP headers: %d", n), detection.RiskLow)
		}
	})

	v.check(ctx, b, "query_params", func() {
		if n := len(md.Query); n > s.MaxQueryParams {
			b.violation(catQuery, fmt.Sprintf("Too many query parameters: %d", n), detection.RiskMedium)
		}
	})

	v.check(ctx, b, "content", func() {
		cr := v.content.Scan(md.URL, md.Query, md.Body)
		if !cr.Found {
			return
		}
		for _, msg := range cr.Violations {
			b.violation(catContent, msg, detection.RiskHigh)
		}
		for _, at := range cr.AttackTypes {
			metrics.RecordContentMatch(string(at))
		}
		b.res.AttackTypes = append(b.res.AttackTypes, cr.AttackTypes...)
		b.content = cr
	})

	if md.SourceID != "" {
		v.check(ctx, b, "rate_limit", func() {
			v.checkRateLimit(ctx, b, md.SourceID+":"+path, s)
		})

		if s.EnableAnomalyDetection {
			v.check(ctx, b, "anomaly", func() {
				ar := v.tracker.Observe(md.SourceID, detection.RequestSnapshot{
					Path:      path,
					Method:    method,
					UserAgent: userAgent,
				})
				if !ar.IsAnomaly {
					return
				}
				metrics.RecordAnomaly(ar.Reason)
				b.res.Anomaly = &ar
				b.warning(catAnomaly, fmt.Sprintf("Anomalous behavior detected: %s (%s)", ar.Reason, ar.Details))
				if ar.Severity.AtLeast(detection.RiskHigh) {
					b.raise(detection.RiskHigh)
				}
			})
		}
	}

	v.check(ctx, b, "cors", func() {
		origin := md.Headers.Get("Origin")
		if origin != "" && !OriginAllowed(origin, s.AllowedOrigins) {
			b.violation(catCORS, fmt.Sprintf("Origin not allowed: %s", origin), detection.RiskMedium)
		}
	})

	res = b.res
	if !res.IsSafe || len(res.Warnings) > 0 {
		res.Recommendations = recommendations(b)
	}

	outcome := "allowed"
	if !res.IsSafe {
		outcome = "blocked"
		v.emit(md, &res)
	}
	metrics.RecordValidation(outcome, res.RiskLevel.String(), time.Since(start))
	return res
}

// checkRateLimit records the limiter decision. Store failures admit the
// request and are logged at most once per interval.
func (v *Validator) checkRateLimit(ctx context.Context, b *resultBuilder, key string, s Settings) {
	d, err := v.limiter.Check(ctx, key, s.RateLimitRequests, s.RateLimitWindow)
	info := &RateLimitInfo{
		Limit:      s.RateLimitRequests,
		Remaining:  d.Remaining,
		ResetAt:    d.ResetAt,
		RetryAfter: d.RetryAfter(v.now()),
		FailOpen:   d.FailOpen,
	}
	b.res.RateLimit = info

	if err != nil {
		backend := v.limiter.Store().Name()
		metrics.RecordRateLimitFailOpen(backend)
		v.failOpenWarn.Do(func() {
			ev := logging.Ctx(ctx).Warn().Err(err).Str("backend", backend)
			if errors.Is(err, ratelimit.ErrStoreUnavailable) {
				ev = ev.Bool("store_unavailable", true)
			}
			ev.Msg("Rate limit check failed, allowing request")
		})
		return
	}

	if !d.Allowed {
		metrics.RecordRateLimitRejection()
		b.violation(catRateLimit, "Rate limit exceeded", detection.RiskMedium)
		b.res.BlockedReason = ReasonRateLimitExceeded
	}
}

// check runs fn, converting a panic into a violation for that check.
func (v *Validator) check(ctx context.Context, b *resultBuilder, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Ctx(ctx).Error().Str("check", name).Interface("panic", r).Msg("Validation check failed")
			b.violation(catCheckFailure, fmt.Sprintf("check %s failed", name), detection.RiskHigh)
		}
	}()
	fn()
}

func (v *Validator) userAgentClassifier(blocked []string) *detection.UserAgentClassifier {
	if cur := v.ua.Load(); cur != nil && slices.Equal(cur.blocked, blocked) {
		return cur.clf
	}
	next := &uaClassifier{
		blocked: slices.Clone(blocked),
		clf:     detection.NewUserAgentClassifier(blocked, detection.DefaultScannerSignatures()),
	}
	v.ua.Store(next)
	return next.clf
}

func (v *Validator) emit(md *RequestMetadata, res *ValidationResult) {
	if v.sink == nil {
		return
	}
	event := &logging.SecurityEvent{
		EventType:     logging.EventSecurityViolation,
		Message:       violationMessage,
		Priority:      logging.PriorityForRisk(res.RiskLevel.String()),
		Violations:    slices.Clone(res.Violations),
		RiskLevel:     res.RiskLevel.String(),
		BlockedReason: res.BlockedReason,
	}
	if res.BlockedReason == ReasonValidationError {
		event.EventType = logging.EventValidationError
		event.Message = "Request validation failed"
	}
	if md != nil {
		event.SourceID = md.SourceID
		event.Path = md.Path
		event.Method = md.Method
		event.RequestID = md.RequestID
		event.UserAgent = md.Headers.Get("User-Agent")
	}
	v.sink.Emit(event)
}

// OriginAllowed reports whether origin matches the allow-list. An empty
// list allows every origin. Entries are "*", an exact origin, or
// "*.domain", which matches any subdomain of domain but not domain itself.
func OriginAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	origin = strings.TrimSuffix(origin, "/")
	var host string
	for _, pattern := range allowed {
		switch {
		case pattern == "*":
			return true
		case strings.HasPrefix(pattern, "*."):
			if host == "" {
				host = originHost(origin)
			}
			if host != "" && strings.HasSuffix(host, strings.ToLower(pattern[1:])) {
				return true
			}
		case strings.EqualFold(pattern, origin):
			return true
		}
	}
	return false
}

func originHost(origin string) string {
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func hasHTTPSScheme(rawURL string) bool {
	return len(rawURL) >= len("https://") && strings.EqualFold(rawURL[:len("https://")], "https://")
}

// resultBuilder accumulates a ValidationResult and remembers which
// categories fired.
type resultBuilder struct {
	res     ValidationResult
	fired   map[string]bool
	content detection.ContentResult
}

func newResultBuilder() *resultBuilder {
	return &resultBuilder{res: newResult(), fired: make(map[string]bool, 4)}
}

func (b *resultBuilder) violation(category, msg string, risk detection.RiskLevel) {
	b.res.Violations = append(b.res.Violations, msg)
	b.res.IsSafe = false
	b.raise(risk)
	b.fired[category] = true
	metrics.RecordViolation(category)
}

func (b *resultBuilder) warning(category, msg string) {
	b.res.Warnings = append(b.res.Warnings, msg)
	b.fired[category] = true
}

func (b *resultBuilder) raise(risk detection.RiskLevel) {
	b.res.RiskLevel = detection.MaxRisk(b.res.RiskLevel, risk)
}
