// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-discovery/internal/respcache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print response-cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Stats()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "entries: %d (%d active, %d expired)\nhits:    %d\nsize:    %d bytes\n",
			stats.TotalEntries, stats.ActiveEntries, stats.ExpiredEntries,
			stats.TotalHits, stats.SizeBytes)
		return nil
	},
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired response-cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		removed, err := store.Cleanup()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "removed %d expired entries\n", removed)
		return nil
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <fingerprint>",
	Short: "Remove one cached response by its request fingerprint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "invalidated")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheCleanupCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)
	rootCmd.AddCommand(cacheCmd)
}

// openStore opens the cache database even when caching is disabled, so
// stats and cleanup work against whatever is on disk.
func openStore() (*respcache.Store, error) {
	cfg := buildConfig()
	cacheCfg := cfg.Cache
	cacheCfg.Enabled = true
	return respcache.NewStore(cacheCfg)
}
