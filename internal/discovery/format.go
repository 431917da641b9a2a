// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discovery

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/paper-discovery/pkg/types"
)

// FormatTable writes a response as a human-readable table to w.
func FormatTable(resp types.SearchResponse, w io.Writer) {
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-60s  %-20s  %-4s  %-9s  %s\n",
		"Rank", "Title", "Authors", "Year", "Citations", "OA")
	fmt.Fprintln(w, strings.Repeat("-", 108))

	rank := (resp.Pagination.Page-1)*resp.Pagination.PerPage + 1
	for i, r := range resp.Results {
		title := r.Title
		if len(title) > 60 {
			title = title[:57] + "..."
		}
		year := ""
		if r.Year > 0 {
			year = fmt.Sprintf("%d", r.Year)
		}
		oa := ""
		if r.IsOpenAccess {
			oa = "yes"
		}
		fmt.Fprintf(w, "%-4d  %-60s  %-20s  %-4s  %-9d  %s\n",
			rank+i, title, formatAuthors(r.Authors), year, r.CitationCount, oa)
	}

	fmt.Fprintf(w, "\npage %d/%d, %d results total (%d ms",
		resp.Pagination.Page, resp.Pagination.TotalPages,
		resp.Pagination.TotalResults, resp.SearchTimeMS)
	if resp.CacheHit {
		fmt.Fprint(w, ", cached")
	}
	fmt.Fprintln(w, ")")
}

// FormatJSON writes a response as indented JSON to w.
func FormatJSON(resp types.SearchResponse, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func formatAuthors(authors []types.Author) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0].Name, 20)
	default:
		return truncate(authors[0].Name, 14) + " et al."
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
