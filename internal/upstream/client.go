// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/paper-discovery/internal/httputil"
	"github.com/pdiddy/paper-discovery/pkg/types"
)

// maxPayloadBytes caps an upstream JSON response read. OpenAlex pages top
// out well under this; anything larger is a broken response.
const maxPayloadBytes = 8 << 20

// UpstreamError reports a bibliographic API request that failed after the
// retry budget, or failed terminally before it.
type UpstreamError struct {
	// Endpoint is the upstream endpoint name (e.g. "works").
	Endpoint string

	// Status is the final HTTP status, 0 when no response was received.
	Status int

	// Attempts is the number of tries performed.
	Attempts int

	Err error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream %s: HTTP %d after %d attempt(s)", e.Endpoint, e.Status, e.Attempts)
	}
	return fmt.Sprintf("upstream %s: %v after %d attempt(s)", e.Endpoint, e.Err, e.Attempts)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Cache is the response-cache surface the client needs. A read or write
// error is treated as a forced miss, never as a request failure.
type Cache interface {
	Get(fingerprint string) ([]byte, bool, error)
	Put(fingerprint string, payload []byte) error
}

// Client executes structured requests against the bibliographic API.
// Safe for concurrent use; concurrent calls with the same fingerprint and a
// cold cache share a single upstream fetch.
type Client struct {
	HTTP   *http.Client
	Config types.UpstreamConfig

	// Cache is optional; nil disables caching regardless of the flag
	// passed to Fetch.
	Cache Cache

	// Log receives warnings (cache failures, dropped entries). Defaults
	// to io.Discard.
	Log io.Writer

	group singleflight.Group
}

// Fetch resolves a request from the cache or the network. cacheHit reports
// whether the payload came from a non-expired cache entry without any
// network I/O.
func (c *Client) Fetch(ctx context.Context, req Request, cacheEnabled bool) (payload []byte, cacheHit bool, err error) {
	fp := Fingerprint(req)
	useCache := cacheEnabled && c.Cache != nil

	if useCache {
		if data, ok := c.cacheGet(fp); ok {
			return data, true, nil
		}
	}

	if !useCache {
		data, err := c.fetchUpstream(ctx, req, fp, false)
		return data, false, err
	}

	// Cold cache: collapse concurrent callers for the same fingerprint
	// onto one upstream fetch. The fetch runs detached from any single
	// caller's cancellation so an abandoned request still populates the
	// cache for the remaining waiters.
	v, err, _ := c.group.Do(fp, func() (any, error) {
		if data, ok := c.cacheGet(fp); ok {
			return data, nil
		}
		return c.fetchUpstream(context.WithoutCancel(ctx), req, fp, true)
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}

// Invalidate removes any cached entry for the request's fingerprint.
func (c *Client) Invalidate(req Request) error {
	type invalidator interface{ Delete(fingerprint string) error }
	if inv, ok := c.Cache.(invalidator); ok {
		return inv.Delete(Fingerprint(req))
	}
	return nil
}

func (c *Client) cacheGet(fp string) ([]byte, bool) {
	data, ok, err := c.Cache.Get(fp)
	if err != nil {
		fmt.Fprintf(c.log(), "warning: cache read failed for %s: %v (treating as miss)\n", fp, err)
		return nil, false
	}
	return data, ok
}

// fetchUpstream performs the HTTP call with retries and validates the
// payload before any cache write.
func (c *Client) fetchUpstream(ctx context.Context, req Request, fp string, store bool) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Config.Timeout)
	defer cancel()

	base := strings.TrimSuffix(c.Config.BaseURL, "/")
	values := req.Values()
	if c.Config.Email != "" {
		// Polite-pool identity so OpenAlex does not throttle us as
		// anonymous traffic.
		values.Set("mailto", c.Config.Email)
	}
	reqURL := base + "/" + req.Endpoint + "?" + values.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.Config.UserAgent)
	httpReq.Header.Set("Accept", "application/json")

	resp, attempts, err := httputil.DoWithRetry(ctx, c.HTTP, httpReq, c.Config.MaxAttempts)
	if err != nil {
		return nil, &UpstreamError{Endpoint: req.Endpoint, Attempts: attempts, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Endpoint: req.Endpoint, Status: resp.StatusCode, Attempts: attempts}
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, &UpstreamError{Endpoint: req.Endpoint, Status: resp.StatusCode, Attempts: attempts, Err: err}
	}

	if err := ValidatePayload(payload); err != nil {
		// Malformed success responses are never cached.
		return nil, &UpstreamError{Endpoint: req.Endpoint, Status: resp.StatusCode, Attempts: attempts, Err: err}
	}

	if store {
		if err := c.Cache.Put(fp, payload); err != nil {
			fmt.Fprintf(c.log(), "warning: cache write failed for %s: %v\n", fp, err)
		}
	}
	return payload, nil
}

func (c *Client) log() io.Writer {
	if c.Log != nil {
		return c.Log
	}
	return io.Discard
}

// ValidatePayload checks that an upstream response is parseable JSON with
// the expected results field.
func ValidatePayload(payload []byte) error {
	var probe struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return fmt.Errorf("unparseable payload: %w", err)
	}
	if probe.Results == nil {
		return fmt.Errorf("payload missing results field")
	}
	return nil
}
