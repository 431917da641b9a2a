// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package discovery composes the query translator and the upstream client
// into the single search entry point consumed by the presentation layer.
// The flow is linear: translate, fall back to a keyword search on
// translation failure, fetch, normalize.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pdiddy/paper-discovery/internal/translate"
	"github.com/pdiddy/paper-discovery/internal/upstream"
	"github.com/pdiddy/paper-discovery/pkg/types"
)

// DefaultMaxPerPage bounds the inbound per_page parameter.
const DefaultMaxPerPage = 100

// Orchestrator runs the search pipeline. Safe for concurrent use.
type Orchestrator struct {
	Translator *translate.Translator
	Client     *upstream.Client

	// CacheEnabled gates response caching for all searches.
	CacheEnabled bool

	// MaxPerPage bounds the per_page request value (default 100).
	MaxPerPage int

	// Log receives fallback notices. Defaults to io.Discard.
	Log io.Writer
}

// Search translates the question, executes the structured request with
// page/perPage injected, and returns normalized results. A translation
// failure degrades to a keyword search using the literal question; an
// upstream failure is surfaced verbatim, never retried at this layer.
func (o *Orchestrator) Search(ctx context.Context, question string, hints *translate.FilterHints, page, perPage int) (types.SearchResponse, error) {
	start := time.Now()

	if question == "" {
		return types.SearchResponse{}, fmt.Errorf("query is empty: provide a research question")
	}
	page, perPage = o.clamp(page, perPage)

	req, translated := o.translateOrFallback(ctx, question, hints)
	req.Params["page"] = strconv.Itoa(page)
	req.Params["per_page"] = strconv.Itoa(perPage)

	payload, cacheHit, err := o.Client.Fetch(ctx, req, o.CacheEnabled)
	if err != nil {
		return types.SearchResponse{}, err
	}

	results, meta, err := normalize(payload)
	if err != nil {
		return types.SearchResponse{}, err
	}

	resp := types.SearchResponse{
		Results: results,
		Pagination: types.PaginationState{
			Page:         page,
			PerPage:      perPage,
			TotalResults: meta.Count,
			TotalPages:   totalPages(meta.Count, perPage),
		},
		SourceEndpoint: req.Endpoint,
		CacheHit:       cacheHit,
		SearchTimeMS:   time.Since(start).Milliseconds(),
	}
	if translated {
		resp.TranslatedQuery = req.QueryString()
	}
	return resp, nil
}

// translateOrFallback invokes the translator and, on TranslationError,
// builds the literal keyword request instead of aborting.
func (o *Orchestrator) translateOrFallback(ctx context.Context, question string, hints *translate.FilterHints) (upstream.Request, bool) {
	req, err := o.Translator.Translate(ctx, question, hints)
	if err == nil {
		return req, true
	}

	var terr *translate.TranslationError
	if errors.As(err, &terr) {
		fmt.Fprintf(o.log(), "warning: translation failed (%v), falling back to keyword search\n", terr.Err)
	} else {
		fmt.Fprintf(o.log(), "warning: translation failed (%v), falling back to keyword search\n", err)
	}
	return translate.KeywordRequest(question, hints), false
}

// clamp forces page and perPage into their documented bounds.
func (o *Orchestrator) clamp(page, perPage int) (int, int) {
	maxPerPage := o.MaxPerPage
	if maxPerPage <= 0 {
		maxPerPage = DefaultMaxPerPage
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

func totalPages(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

func (o *Orchestrator) log() io.Writer {
	if o.Log != nil {
		return o.Log
	}
	return io.Discard
}
