// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schema defines the whitelist of query parameters accepted by the
// OpenAlex works API. The translator and upstream client consult it before
// any parameter reaches the wire; unknown keys are dropped, never forwarded.
package schema

import (
	"sort"
	"strconv"
	"strings"
)

// DefaultEndpoint is the endpoint used when a translation names none.
const DefaultEndpoint = "works"

// DefaultSelect lists the fields requested for metadata completeness.
// Injected into every request that does not already select fields.
const DefaultSelect = "id,title,display_name,publication_year,cited_by_count," +
	"primary_location,authorships,abstract_inverted_index,open_access,doi"

// MaxPerPage is the largest per_page value OpenAlex accepts.
const MaxPerPage = 200

// validParams is the set of parameters OpenAlex recognizes on the works
// endpoint. Anything else the AI invents gets stripped.
var validParams = map[string]bool{
	"search":   true,
	"filter":   true,
	"sort":     true,
	"per_page": true,
	"page":     true,
	"select":   true,
	"cursor":   true,
	"group_by": true,
	"mailto":   true,
}

// validEndpoints is the set of endpoint names a translation may target.
var validEndpoints = map[string]bool{
	"works":   true,
	"authors": true,
	"venues":  true,
}

// KnownParam reports whether name is a recognized query parameter.
func KnownParam(name string) bool { return validParams[name] }

// KnownEndpoint reports whether name is a recognized endpoint.
func KnownEndpoint(name string) bool { return validEndpoints[name] }

// Params returns the whitelist in sorted order, for prompts and logs.
func Params() []string {
	names := make([]string, 0, len(validParams))
	for n := range validParams {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Sanitize removes unknown keys from params and returns the names that were
// dropped. The input map is modified in place.
func Sanitize(params map[string]string) (dropped []string) {
	for k := range params {
		if !validParams[k] {
			dropped = append(dropped, k)
			delete(params, k)
		}
	}
	sort.Strings(dropped)
	return dropped
}

// ApplyDefaults injects required defaults: a select list for metadata
// completeness and a search term when the translation omitted one.
func ApplyDefaults(params map[string]string, question string) {
	if params["select"] == "" {
		params["select"] = DefaultSelect
	}
	if params["search"] == "" && question != "" {
		params["search"] = question
	}
}

// NormalizeFilter cleans a comma-separated filter string: empty segments are
// dropped and surrounding whitespace trimmed. Returns "" when nothing
// survives, in which case the caller should omit the parameter.
func NormalizeFilter(raw string) string {
	var parts []string
	for _, seg := range strings.Split(raw, ",") {
		if piece := strings.TrimSpace(seg); piece != "" {
			parts = append(parts, piece)
		}
	}
	return strings.Join(parts, ",")
}

// ClampPerPage forces a per_page value into [1, MaxPerPage]. Non-numeric
// input falls back to def.
func ClampPerPage(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	if n < 1 {
		return 1
	}
	if n > MaxPerPage {
		return MaxPerPage
	}
	return n
}
