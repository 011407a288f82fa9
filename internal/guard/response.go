// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package guard

import (
	"math"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"golang.org/x/text/language"

	"github.com/tomtom215/reqguard/internal/logging"
)

// blockMessages holds the localized block message per primary language tag.
var blockMessages = map[string]string{
	"en": "Your request was blocked for security reasons",
	"zh": "您的請求因安全原因被阻止",
}

// BlockBody is the JSON body sent for blocked requests.
type BlockBody struct {
	Error   string `json:"error"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// BlockResponse returns the status and body for a blocked result.
func BlockResponse(result *ValidationResult, acceptLanguage string) (int, BlockBody) {
	status := http.StatusForbidden
	reason := result.BlockedReason
	if reason == ReasonRateLimitExceeded {
		status = http.StatusTooManyRequests
	}
	if reason == "" {
		reason = ReasonSecurityViolation
	}
	return status, BlockBody{
		Error:   "Request blocked",
		Reason:  reason,
		Message: blockMessages[preferredLanguage(acceptLanguage)],
	}
}

// WriteBlockResponse writes the block response for result to w.
// Rate-limited responses carry a Retry-After header of at least one second.
func WriteBlockResponse(w http.ResponseWriter, r *http.Request, result *ValidationResult) {
	status, body := BlockResponse(result, r.Header.Get("Accept-Language"))
	if status == http.StatusTooManyRequests {
		secs := 1
		if result.RateLimit != nil && result.RateLimit.RetryAfter > 0 {
			secs = max(secs, int(math.Ceil(result.RateLimit.RetryAfter.Seconds())))
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	WriteJSON(w, status, body)
}

// WriteJSON writes data as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// blockLanguages are the tags offered to the Accept-Language matcher. The
// first entry is the fallback.
var (
	blockLanguages = []language.Tag{language.English, language.SimplifiedChinese, language.TraditionalChinese}
	blockMatcher   = language.NewMatcher(blockLanguages)
)

// preferredLanguage picks en or zh from an Accept-Language value, honouring
// quality weights. Unparseable or unsupported values get "en".
func preferredLanguage(header string) string {
	desired, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(desired) == 0 {
		return "en"
	}
	_, idx, conf := blockMatcher.Match(desired...)
	if conf == language.No || idx == 0 {
		return "en"
	}
	return "zh"
}
