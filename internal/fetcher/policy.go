package fetcher

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy is shared by every outbound call.
type RetryPolicy struct {
	// MaxAttempts bounds attempts against a single endpoint while it answers 429.
	MaxAttempts int
	// DefaultRetryAfter is used when a 429 carries no usable Retry-After.
	DefaultRetryAfter time.Duration
	// Accept decides whether a 2xx body is real data.
	Accept func(body []byte) bool
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		DefaultRetryAfter: 5 * time.Second,
		Accept:            NotRestricted,
	}
}

// NotRestricted rejects JSON objects whose "msg" field reports a
// geo restriction. Anything else is accepted.
func NotRestricted(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return true
	}
	var payload struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return true
	}
	return !strings.Contains(strings.ToLower(payload.Msg), "restricted")
}

// retryAfter parses a Retry-After header given either in seconds or as an
// HTTP date.
func retryAfter(h http.Header, fallback time.Duration, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return fallback
}
