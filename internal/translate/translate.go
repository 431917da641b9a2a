// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package translate converts a natural-language research question into a
// structured bibliographic API request via an external AI service, and
// enforces the parameter schema on whatever the service returns.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/paper-discovery/internal/schema"
	"github.com/pdiddy/paper-discovery/internal/upstream"
)

// TranslationError reports that the AI service was unreachable, returned
// malformed output, or that all credentials were exhausted. It carries the
// original question so the orchestrator can fall back to a keyword search.
type TranslationError struct {
	Question string
	Err      error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translating %q: %v", e.Question, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

// FilterHints are explicit structured constraints supplied alongside the
// question. They are rendered into the prompt and, on fallback, into
// filters directly; the translator never invents constraints on its own.
type FilterHints struct {
	// YearFrom and YearTo bound the publication year (inclusive);
	// zero means unbounded.
	YearFrom int
	YearTo   int

	// MinCitations keeps only works cited at least this many times.
	MinCitations int

	// OpenAccessOnly keeps only works with a freely downloadable full text.
	OpenAccessOnly bool
}

// AIBackend abstracts the generative AI API so tests can supply a mock.
// Complete sends one prompt with one credential and returns the raw text
// reply.
type AIBackend interface {
	Complete(ctx context.Context, prompt, apiKey string) (string, error)
}

// Translator turns questions into structured requests. Idempotent for a
// fixed question and schema version; the only side effect is the outbound
// AI call.
type Translator struct {
	Backend AIBackend
	Keys    *KeyPool

	// MaxAttempts bounds tries across the key pool. Zero means
	// min(3, pool size).
	MaxAttempts int

	// Log receives warnings about stripped parameters. Defaults to
	// io.Discard.
	Log io.Writer
}

// systemPrompt pins the model to strict JSON over the parameter whitelist.
// Free-form prose is never accepted as an answer.
const systemPrompt = `You translate natural-language research questions into OpenAlex API calls.
Respond with JSON only: {"endpoint": "works", "params": {...}}.
Valid params are ONLY: %s.
Use "search" for keywords and topics. Use "filter" for constraints, as one
comma-separated string, e.g. "publication_year:>2020,cited_by_count:>50".
Sort format: "cited_by_count:desc" or "publication_date:desc".
Always include a "search" parameter for the main topic.`

// Translate sends the question (plus any hints) to the AI backend and
// validates the reply against the parameter schema. Credentials rotate
// round-robin per attempt. On failure the returned error is a
// *TranslationError carrying the question.
func (t *Translator) Translate(ctx context.Context, question string, hints *FilterHints) (upstream.Request, error) {
	if t.Keys.Len() == 0 {
		return upstream.Request{}, &TranslationError{Question: question, Err: ErrNoCredentials}
	}

	attempts := t.MaxAttempts
	if attempts <= 0 {
		attempts = min(3, t.Keys.Len())
	}

	prompt := t.buildPrompt(question, hints)

	var lastErr error
	for i := 0; i < attempts; i++ {
		key, err := t.Keys.Next()
		if err != nil {
			lastErr = err
			break
		}

		raw, err := t.Backend.Complete(ctx, prompt, key)
		if err != nil {
			lastErr = err
			continue
		}

		req, err := t.parseTranslation(raw, question)
		if err != nil {
			lastErr = err
			continue
		}
		return req, nil
	}

	return upstream.Request{}, &TranslationError{Question: question, Err: lastErr}
}

func (t *Translator) buildPrompt(question string, hints *FilterHints) string {
	var b strings.Builder
	fmt.Fprintf(&b, systemPrompt, strings.Join(schema.Params(), ", "))
	b.WriteString("\n\n")
	if fs := hintFilters(hints); len(fs) > 0 {
		fmt.Fprintf(&b, "Apply these exact filters: %s\n", strings.Join(fs, ","))
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}

// translation is the strict JSON shape required from the AI service.
type translation struct {
	Endpoint string         `json:"endpoint"`
	Params   map[string]any `json:"params"`
}

// parseTranslation validates the raw AI reply: strict JSON, a known
// endpoint, and whitelisted parameters. Unknown parameters are stripped and
// logged, not surfaced as errors.
func (t *Translator) parseTranslation(raw, question string) (upstream.Request, error) {
	var tr translation
	if err := json.Unmarshal([]byte(extractJSON(raw)), &tr); err != nil {
		return upstream.Request{}, fmt.Errorf("AI reply is not valid JSON: %w", err)
	}
	if tr.Params == nil {
		return upstream.Request{}, fmt.Errorf("AI reply missing params object")
	}

	endpoint := tr.Endpoint
	if endpoint == "" {
		endpoint = schema.DefaultEndpoint
	}
	if !schema.KnownEndpoint(endpoint) {
		return upstream.Request{}, fmt.Errorf("AI reply names unknown endpoint %q", endpoint)
	}

	params := make(map[string]string, len(tr.Params))
	for k, v := range tr.Params {
		if s := stringify(v); s != "" {
			params[k] = s
		}
	}

	if dropped := schema.Sanitize(params); len(dropped) > 0 {
		fmt.Fprintf(t.log(), "warning: dropped unknown parameters from translation: %s\n", strings.Join(dropped, ", "))
	}

	if f, ok := params["filter"]; ok {
		if f = schema.NormalizeFilter(f); f == "" {
			delete(params, "filter")
		} else {
			params["filter"] = f
		}
	}
	if pp, ok := params["per_page"]; ok {
		params["per_page"] = fmt.Sprintf("%d", schema.ClampPerPage(pp, 10))
	}

	schema.ApplyDefaults(params, question)

	return upstream.Request{Endpoint: endpoint, Params: params}, nil
}

// KeywordRequest builds the fallback request used when translation fails:
// the literal question as a keyword search, with only hint-derived filters
// applied.
func KeywordRequest(question string, hints *FilterHints) upstream.Request {
	params := map[string]string{
		"search": question,
		"sort":   "cited_by_count:desc",
	}
	if fs := hintFilters(hints); len(fs) > 0 {
		params["filter"] = strings.Join(fs, ",")
	}
	schema.ApplyDefaults(params, question)
	return upstream.Request{Endpoint: schema.DefaultEndpoint, Params: params}
}

// hintFilters renders explicit hints as OpenAlex filter segments.
func hintFilters(h *FilterHints) []string {
	if h == nil {
		return nil
	}
	var fs []string
	switch {
	case h.YearFrom > 0 && h.YearTo > 0:
		fs = append(fs, fmt.Sprintf("publication_year:%d-%d", h.YearFrom, h.YearTo))
	case h.YearFrom > 0:
		fs = append(fs, fmt.Sprintf("publication_year:>%d", h.YearFrom-1))
	case h.YearTo > 0:
		fs = append(fs, fmt.Sprintf("publication_year:<%d", h.YearTo+1))
	}
	if h.MinCitations > 0 {
		fs = append(fs, fmt.Sprintf("cited_by_count:>%d", h.MinCitations-1))
	}
	if h.OpenAccessOnly {
		fs = append(fs, "is_oa:true")
	}
	return fs
}

// extractJSON strips Markdown code fences and an optional language hint so
// a fenced reply still parses.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(lines[len(lines)-1], "```") {
		lines = lines[:len(lines)-1]
	}
	if len(lines) > 0 && strings.EqualFold(strings.TrimSpace(lines[0]), "json") {
		lines = lines[1:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	case bool:
		return fmt.Sprintf("%t", x)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func (t *Translator) log() io.Writer {
	if t.Log != nil {
		return t.Log
	}
	return io.Discard
}
