// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discovery

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-discovery/internal/translate"
	"github.com/pdiddy/paper-discovery/pkg/types"
)

func sampleResponse() types.SearchResponse {
	return types.SearchResponse{
		Results: []types.SearchResult{
			{
				ID:            "https://openalex.org/W1",
				Title:         "Deep Reinforcement Learning Survey",
				Authors:       []types.Author{{Name: "Ada Lovelace", Institution: "Analytical U"}},
				Year:          2022,
				Venue:         "NeurIPS",
				CitationCount: 480,
				DOI:           "10.1000/xyz",
				IsOpenAccess:  true,
			},
		},
		Pagination:     types.PaginationState{Page: 2, PerPage: 10, TotalResults: 25, TotalPages: 3},
		SourceEndpoint: "works",
		SearchTimeMS:   42,
	}
}

func TestReportRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.yaml")
	hints := &translate.FilterHints{YearFrom: 2020, OpenAccessOnly: true}

	require.NoError(t, WriteReport(path, "reinforcement learning", hints, sampleResponse()))

	rf, err := ReadReport(path)
	require.NoError(t, err)

	assert.Equal(t, "reinforcement learning", rf.Question)
	require.NotNil(t, rf.Hints)
	assert.Equal(t, 2020, rf.Hints.YearFrom)
	assert.True(t, rf.Hints.OpenAccessOnly)
	assert.False(t, rf.Timestamp.IsZero())

	assert.Equal(t, sampleResponse().Pagination, rf.Response.Pagination)
	require.Len(t, rf.Response.Results, 1)
	assert.Equal(t, "Deep Reinforcement Learning Survey", rf.Response.Results[0].Title)
	assert.Equal(t, "Ada Lovelace", rf.Response.Results[0].Authors[0].Name)
}

func TestReadReport_Errors(t *testing.T) {
	_, err := ReadReport(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFormatTable(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(sampleResponse(), &buf)
	out := buf.String()

	// Rank continues across pages: page 2 at 10 per page starts at 11.
	assert.Contains(t, out, "11")
	assert.Contains(t, out, "Deep Reinforcement Learning Survey")
	assert.Contains(t, out, "Ada Lovelace")
	assert.Contains(t, out, "480")
	assert.Contains(t, out, "page 2/3, 25 results total")
}

func TestFormatTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(types.SearchResponse{}, &buf)
	assert.Contains(t, buf.String(), "No results found.")
}

func TestFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatJSON(sampleResponse(), &buf))
	assert.True(t, strings.Contains(buf.String(), `"total_results": 25`))
}

func TestFormatAuthors(t *testing.T) {
	assert.Equal(t, "", formatAuthors(nil))
	assert.Equal(t, "Ada Lovelace", formatAuthors([]types.Author{{Name: "Ada Lovelace"}}))
	assert.Equal(t, "Ada Lovelace et al.", formatAuthors([]types.Author{{Name: "Ada Lovelace"}, {Name: "B"}}))
	assert.Equal(t, "A very long... et al.", formatAuthors([]types.Author{{Name: "A very long author name"}, {Name: "B"}}))
}
