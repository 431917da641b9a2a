// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across components.
package httputil

import (
	"context"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// transient failures. Tests override this to avoid real sleeps.
var RetryBaseDelay = 500 * time.Millisecond

const defaultMaxAttempts = 3

// RetryableStatus reports whether an HTTP status code is a transient
// failure worth retrying: 429 and all 5xx. Other 4xx codes are terminal.
func RetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// RetryAfter parses a Retry-After header, accepting both the delta-seconds
// and HTTP-date forms. The second return value is false when the header is
// absent or unparseable.
func RetryAfter(resp *http.Response, now time.Time) (time.Duration, bool) {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(raw); err == nil {
		if d := t.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

// DoWithRetry executes an HTTP request up to maxAttempts times, retrying
// transport errors and retryable statuses (429, 5xx) with exponential
// backoff. The delay starts at RetryBaseDelay and doubles each attempt; a
// server-provided Retry-After value takes precedence over the computed
// backoff.
//
// When maxAttempts is 0 the default (3) is used. Before each retry the
// response body is drained and closed. If the context is cancelled during a
// backoff wait the function returns ctx.Err(). After exhausting attempts
// the last response (or transport error) is returned along with the number
// of attempts made, so the caller can report both.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxAttempts int) (*http.Response, int, error) {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	for attempt := 1; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err == nil && !RetryableStatus(resp.StatusCode) {
			return resp, attempt, nil
		}

		if attempt >= maxAttempts {
			return resp, attempt, err
		}

		backoff := time.Duration(math.Pow(2, float64(attempt-1))) * RetryBaseDelay
		if err == nil {
			if d, ok := RetryAfter(resp, time.Now()); ok && d > backoff {
				backoff = d
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		select {
		case <-ctx.Done():
			return nil, attempt, ctx.Err()
		case <-time.After(backoff):
		}
	}
}
