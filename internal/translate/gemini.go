// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pdiddy/paper-discovery/pkg/types"
)

// GeminiBackend calls the Generative Language REST API. One Complete call
// uses one credential; rotation across the pool is the Translator's job.
type GeminiBackend struct {
	Client *http.Client
	Config types.TranslatorConfig
}

// Gemini request/response JSON structures (generateContent).
type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Complete sends the prompt to the configured model and returns the first
// candidate's text. Timeouts and transport errors are returned as-is; the
// Translator rotates to the next credential.
func (b *GeminiBackend) Complete(ctx context.Context, prompt, apiKey string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.Config.Timeout)
	defer cancel()

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		// Temperature 0 keeps translations deterministic for a fixed
		// question and schema version.
		GenerationConfig: geminiGenConfig{Temperature: 0, TopP: 0.9, MaxOutputTokens: 512},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling AI request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", b.Config.BaseURL, b.Config.Model, apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating AI request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", b.Config.UserAgent)

	resp, err := b.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("AI API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return "", fmt.Errorf("AI API returned HTTP %d: %s", resp.StatusCode, snippet)
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("parsing AI response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("AI response contained no candidates")
	}
	return gr.Candidates[0].Content.Parts[0].Text, nil
}
