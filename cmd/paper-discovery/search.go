// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-discovery/internal/discovery"
	"github.com/pdiddy/paper-discovery/internal/translate"
)

var searchCmd = &cobra.Command{
	Use:   "search [question...]",
	Short: "Search scholarly works from a free-text question",
	Long: `Search translates a free-text research question into a structured
OpenAlex query via the configured AI service and executes it with retries
and response caching. When translation fails the literal question is used
as a keyword search instead.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("year-from", 0, "earliest publication year (inclusive)")
	searchCmd.Flags().Int("year-to", 0, "latest publication year (inclusive)")
	searchCmd.Flags().Int("min-citations", 0, "minimum citation count")
	searchCmd.Flags().Bool("open-access", false, "only open-access works")
	searchCmd.Flags().Int("page", 1, "result page (1-based)")
	searchCmd.Flags().Int("per-page", 10, "results per page (1-100)")
	searchCmd.Flags().Bool("json", false, "output the response as JSON")
	searchCmd.Flags().String("out", "", "save the search and results to a YAML report file")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("provide a research question")
	}

	cfg := buildConfig()
	orch, store, err := newOrchestrator(cfg, os.Stderr)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	hints := hintsFromFlags(cmd)
	page, _ := cmd.Flags().GetInt("page")
	perPage, _ := cmd.Flags().GetInt("per-page")

	resp, err := orch.Search(cmd.Context(), question, hints, page, perPage)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if err := discovery.FormatJSON(resp, os.Stdout); err != nil {
			return err
		}
	} else {
		discovery.FormatTable(resp, os.Stdout)
	}

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		if err := discovery.WriteReport(out, question, hints, resp); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved report to %s\n", out)
	}
	return nil
}

func hintsFromFlags(cmd *cobra.Command) *translate.FilterHints {
	yearFrom, _ := cmd.Flags().GetInt("year-from")
	yearTo, _ := cmd.Flags().GetInt("year-to")
	minCitations, _ := cmd.Flags().GetInt("min-citations")
	openAccess, _ := cmd.Flags().GetBool("open-access")

	if yearFrom == 0 && yearTo == 0 && minCitations == 0 && !openAccess {
		return nil
	}
	return &translate.FilterHints{
		YearFrom:       yearFrom,
		YearTo:         yearTo,
		MinCitations:   minCitations,
		OpenAccessOnly: openAccess,
	}
}
