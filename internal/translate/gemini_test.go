// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-discovery/pkg/types"
)

func newGeminiBackend(ts *httptest.Server) *GeminiBackend {
	return &GeminiBackend{
		Client: ts.Client(),
		Config: types.TranslatorConfig{
			HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "paper-discovery/test"},
			Model:      "gemini-1.5-flash-latest",
			BaseURL:    ts.URL,
		},
	}
}

func TestGeminiComplete(t *testing.T) {
	var gotPath, gotKey string
	var gotReq geminiRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "{\"endpoint\":\"works\"}"}]}}]}`))
	}))
	defer ts.Close()

	text, err := newGeminiBackend(ts).Complete(context.Background(), "translate this question", "secret-key")
	require.NoError(t, err)

	assert.Equal(t, `{"endpoint":"works"}`, text)
	assert.Equal(t, "/gemini-1.5-flash-latest:generateContent", gotPath)
	assert.Equal(t, "secret-key", gotKey)

	require.Len(t, gotReq.Contents, 1)
	assert.Equal(t, "translate this question", gotReq.Contents[0].Parts[0].Text)
	assert.Zero(t, gotReq.GenerationConfig.Temperature)
}

func TestGeminiComplete_NonOK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "quota exceeded"}}`))
	}))
	defer ts.Close()

	_, err := newGeminiBackend(ts).Complete(context.Background(), "q", "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGeminiComplete_NoCandidates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer ts.Close()

	_, err := newGeminiBackend(ts).Complete(context.Background(), "q", "k")
	assert.Error(t, err)
}
