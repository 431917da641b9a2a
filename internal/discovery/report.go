// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discovery

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-discovery/internal/translate"
	"github.com/pdiddy/paper-discovery/pkg/types"
)

// ReportFile is the on-disk representation of a search and its results.
// A researcher can save a search to a file and reload it later without
// re-querying the upstream API.
type ReportFile struct {
	Question  string               `yaml:"question"`
	Hints     *ReportHints         `yaml:"hints,omitempty"`
	Response  types.SearchResponse `yaml:"response"`
	Timestamp time.Time            `yaml:"timestamp"`
}

// ReportHints stores filter hints in a serializable form.
type ReportHints struct {
	YearFrom       int  `yaml:"year_from,omitempty"`
	YearTo         int  `yaml:"year_to,omitempty"`
	MinCitations   int  `yaml:"min_citations,omitempty"`
	OpenAccessOnly bool `yaml:"open_access_only,omitempty"`
}

// WriteReport saves a search and its response to a YAML file.
func WriteReport(path, question string, hints *translate.FilterHints, resp types.SearchResponse) error {
	rf := ReportFile{
		Question:  question,
		Response:  resp,
		Timestamp: time.Now(),
	}
	if hints != nil {
		rf.Hints = &ReportHints{
			YearFrom:       hints.YearFrom,
			YearTo:         hints.YearTo,
			MinCitations:   hints.MinCitations,
			OpenAccessOnly: hints.OpenAccessOnly,
		}
	}

	data, err := yaml.Marshal(&rf)
	if err != nil {
		return fmt.Errorf("marshaling report file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadReport loads a previously saved report file from disk.
func ReadReport(path string) (*ReportFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report file: %w", err)
	}
	var rf ReportFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing report file: %w", err)
	}
	return &rf, nil
}
