// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discovery

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/paper-discovery/pkg/types"
)

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Meta    openAlexMeta   `json:"meta"`
	Results []openAlexWork `json:"results"`
}

type openAlexMeta struct {
	Count   int `json:"count"`
	PerPage int `json:"per_page"`
	Page    int `json:"page"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DisplayName           string               `json:"display_name"`
	DOI                   string               `json:"doi"`
	PublicationYear       int                  `json:"publication_year"`
	CitedByCount          int                  `json:"cited_by_count"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	PrimaryLocation       openAlexLocation     `json:"primary_location"`
	OpenAccess            openAlexOpenAccess   `json:"open_access"`
}

type openAlexAuthorship struct {
	Author       openAlexAuthor        `json:"author"`
	Institutions []openAlexInstitution `json:"institutions"`
}

type openAlexAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type openAlexInstitution struct {
	DisplayName string `json:"display_name"`
}

type openAlexLocation struct {
	Source openAlexSource `json:"source"`
	PDFURL string         `json:"pdf_url"`
}

type openAlexSource struct {
	DisplayName string `json:"display_name"`
}

type openAlexOpenAccess struct {
	IsOA     bool   `json:"is_oa"`
	OAStatus string `json:"oa_status"`
	OAURL    string `json:"oa_url"`
}

// normalize maps an upstream payload to SearchResult records plus the
// upstream meta block.
func normalize(payload []byte) ([]types.SearchResult, openAlexMeta, error) {
	var oar openAlexResponse
	if err := json.Unmarshal(payload, &oar); err != nil {
		return nil, openAlexMeta{}, fmt.Errorf("parsing upstream payload: %w", err)
	}

	results := make([]types.SearchResult, 0, len(oar.Results))
	for _, work := range oar.Results {
		title := work.Title
		if title == "" {
			title = work.DisplayName
		}

		r := types.SearchResult{
			ID:            work.ID,
			Title:         title,
			Year:          work.PublicationYear,
			Venue:         work.PrimaryLocation.Source.DisplayName,
			CitationCount: work.CitedByCount,
			IsOpenAccess:  work.OpenAccess.IsOA,
			Abstract:      reconstructAbstract(work.AbstractInvertedIndex),
		}

		// OpenAlex returns DOIs as full URLs; keep the bare DOI.
		if work.DOI != "" {
			r.DOI = strings.TrimPrefix(work.DOI, "https://doi.org/")
		}

		if work.OpenAccess.OAURL != "" {
			r.ResourceURL = work.OpenAccess.OAURL
		} else if work.PrimaryLocation.PDFURL != "" {
			r.ResourceURL = work.PrimaryLocation.PDFURL
		}

		for _, authorship := range work.Authorships {
			if authorship.Author.DisplayName == "" {
				continue
			}
			a := types.Author{Name: authorship.Author.DisplayName}
			if len(authorship.Institutions) > 0 {
				a.Institution = authorship.Institutions[0].DisplayName
			}
			r.Authors = append(r.Authors, a)
		}

		results = append(results, r)
	}
	return results, oar.Meta, nil
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to a list of positions
// where that word appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	// Build position→word map.
	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}
