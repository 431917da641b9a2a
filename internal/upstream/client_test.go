// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-discovery/internal/httputil"
	"github.com/pdiddy/paper-discovery/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = 1 * time.Millisecond
}

const validPayload = `{"meta": {"count": 1}, "results": [{"id": "W1", "display_name": "A Paper"}]}`

// memCache is an in-memory Cache with injectable failures.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
	putErr  error
	puts    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (m *memCache) Get(fp string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	data, ok := m.entries[fp]
	return data, ok, nil
}

func (m *memCache) Put(fp string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.entries[fp] = payload
	return nil
}

func (m *memCache) Delete(fp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, fp)
	return nil
}

func newClient(ts *httptest.Server, cache Cache) *Client {
	return &Client{
		HTTP: ts.Client(),
		Config: types.UpstreamConfig{
			HTTPConfig:  types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "paper-discovery/test"},
			BaseURL:     ts.URL,
			MaxAttempts: 3,
		},
		Cache: cache,
	}
}

func worksRequest() Request {
	return Request{Endpoint: "works", Params: map[string]string{"search": "graphene", "per_page": "10"}}
}

func TestFingerprint(t *testing.T) {
	a := Request{Endpoint: "works", Params: map[string]string{"search": "x", "sort": "cited_by_count:desc"}}
	b := Request{Endpoint: "works", Params: map[string]string{"sort": "cited_by_count:desc", "search": "x"}}
	assert.Equal(t, Fingerprint(a), Fingerprint(b), "parameter order must not change the fingerprint")

	c := Request{Endpoint: "works", Params: map[string]string{"search": "y", "sort": "cited_by_count:desc"}}
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))

	d := Request{Endpoint: "authors", Params: a.Params}
	assert.NotEqual(t, Fingerprint(a), Fingerprint(d), "endpoint must be part of the fingerprint")
}

func TestFetch_CacheHitSkipsNetwork(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(validPayload))
	}))
	defer ts.Close()

	cache := newMemCache()
	req := worksRequest()
	cache.entries[Fingerprint(req)] = []byte(validPayload)

	payload, hit, err := newClient(ts, cache).Fetch(context.Background(), req, true)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, validPayload, string(payload))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "a cache hit must not touch the network")
}

func TestFetch_PopulatesCache(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(validPayload))
	}))
	defer ts.Close()

	cache := newMemCache()
	client := newClient(ts, cache)
	req := worksRequest()

	payload, hit, err := client.Fetch(context.Background(), req, true)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, validPayload, string(payload))

	// Second call is served from the cache.
	_, hit, err = client.Fetch(context.Background(), req, true)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetch_CacheDisabledNeverStores(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(validPayload))
	}))
	defer ts.Close()

	cache := newMemCache()
	client := newClient(ts, cache)

	for i := 0; i < 2; i++ {
		_, hit, err := client.Fetch(context.Background(), worksRequest(), false)
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, 0, cache.puts)
}

func TestFetch_ConcurrentCallersShareOneFetch(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		w.Write([]byte(validPayload))
	}))
	defer ts.Close()

	client := newClient(ts, newMemCache())
	req := worksRequest()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = client.Fetch(context.Background(), req, true)
		}(i)
	}

	// Let all goroutines reach the in-flight fetch before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "caller %d", i)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "concurrent identical requests must collapse onto one upstream call")
}

func TestFetch_MalformedPayloadNotCached(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"meta": {"count": 1}}`))
	}))
	defer ts.Close()

	cache := newMemCache()
	_, _, err := newClient(ts, cache).Fetch(context.Background(), worksRequest(), true)

	var uerr *UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, http.StatusOK, uerr.Status)
	assert.Equal(t, 0, cache.puts, "malformed payloads must never be cached")
}

func TestFetch_RetryExhaustion(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, _, err := newClient(ts, newMemCache()).Fetch(context.Background(), worksRequest(), true)

	var uerr *UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, http.StatusTooManyRequests, uerr.Status)
	assert.Equal(t, 3, uerr.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetch_TerminalStatusFailsFast(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	_, _, err := newClient(ts, newMemCache()).Fetch(context.Background(), worksRequest(), true)

	var uerr *UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, http.StatusForbidden, uerr.Status)
	assert.Equal(t, 1, uerr.Attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetch_PolitePoolIdentity(t *testing.T) {
	var gotMailto, gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMailto = r.URL.Query().Get("mailto")
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(validPayload))
	}))
	defer ts.Close()

	client := newClient(ts, newMemCache())
	client.Config.Email = "research@example.com"

	_, _, err := client.Fetch(context.Background(), worksRequest(), true)
	require.NoError(t, err)
	assert.Equal(t, "research@example.com", gotMailto)
	assert.Equal(t, "paper-discovery/test", gotUA)
}

func TestFetch_CacheReadErrorIsForcedMiss(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(validPayload))
	}))
	defer ts.Close()

	cache := newMemCache()
	cache.getErr = assert.AnError
	client := newClient(ts, cache)

	payload, hit, err := client.Fetch(context.Background(), worksRequest(), true)
	require.NoError(t, err, "a broken cache must degrade to a miss, not fail the request")
	assert.False(t, hit)
	assert.Equal(t, validPayload, string(payload))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestInvalidate(t *testing.T) {
	cache := newMemCache()
	req := worksRequest()
	cache.entries[Fingerprint(req)] = []byte(validPayload)

	client := &Client{Cache: cache}
	require.NoError(t, client.Invalidate(req))
	_, ok, _ := cache.Get(Fingerprint(req))
	assert.False(t, ok)
}

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid with results", validPayload, false},
		{"empty results array", `{"results": []}`, false},
		{"missing results", `{"meta": {"count": 0}}`, true},
		{"not json", `<html>rate limited</html>`, true},
		{"empty body", ``, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
