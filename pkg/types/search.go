// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paper-discovery
// request pipeline: normalized search results, pagination, and the
// configuration blocks consumed by each component.
package types

// Author is one entry in a result's ordered author list.
type Author struct {
	Name string `json:"name" yaml:"name"`

	// Institution is the author's primary affiliation, when the upstream
	// record carries one.
	Institution string `json:"institution,omitempty" yaml:"institution,omitempty"`
}

// SearchResult is a normalized scholarly-work record produced from the
// upstream payload. It is read-only downstream of the orchestrator.
type SearchResult struct {
	// ID is the canonical upstream identifier (an OpenAlex work URL).
	ID string `json:"id" yaml:"id"`

	// Title is the work title as returned by the source.
	Title string `json:"title" yaml:"title"`

	// Authors lists authors in source order.
	Authors []Author `json:"authors" yaml:"authors"`

	// Year is the publication year, 0 when unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// Venue is the host venue or journal name, when known.
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`

	CitationCount int `json:"citation_count" yaml:"citation_count"`

	// DOI is the bare DOI without the https://doi.org/ prefix.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// ResourceURL points at the open-access full text, when one exists.
	ResourceURL string `json:"resource_url,omitempty" yaml:"resource_url,omitempty"`

	IsOpenAccess bool `json:"is_open_access" yaml:"is_open_access"`

	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`
}

// PaginationState describes the page window of a SearchResponse. It is
// derived from the upstream meta block, never persisted.
type PaginationState struct {
	Page         int `json:"page" yaml:"page"`
	PerPage      int `json:"per_page" yaml:"per_page"`
	TotalResults int `json:"total_results" yaml:"total_results"`
	TotalPages   int `json:"total_pages" yaml:"total_pages"`
}

// SearchResponse is the unified answer returned by the orchestrator.
type SearchResponse struct {
	Results    []SearchResult  `json:"results" yaml:"results"`
	Pagination PaginationState `json:"pagination" yaml:"pagination"`

	// SourceEndpoint is the upstream endpoint that served the request
	// (e.g. "works").
	SourceEndpoint string `json:"source_endpoint" yaml:"source_endpoint"`

	// TranslatedQuery is the parameter map produced by the translator,
	// rendered as a query string. Empty when the keyword fallback ran.
	TranslatedQuery string `json:"translated_query,omitempty" yaml:"translated_query,omitempty"`

	// CacheHit reports whether the upstream payload came from the
	// response cache.
	CacheHit bool `json:"cache_hit" yaml:"cache_hit"`

	SearchTimeMS int64 `json:"search_time_ms" yaml:"search_time_ms"`
}
