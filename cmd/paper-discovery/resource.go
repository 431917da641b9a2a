// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var resourceCmd = &cobra.Command{
	Use:   "resource",
	Short: "Fetch and manage cached open-access PDFs",
}

var resourceFetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Fetch an open-access PDF through the validating cache",
	Long: `Fetch downloads the PDF at the given https URL, validates its signature,
and stores it in the resource cache. Subsequent fetches for the same URL
are served from the cache without re-downloading.`,
	Args: cobra.ExactArgs(1),
	RunE: runResourceFetch,
}

var resourceInvalidateCmd = &cobra.Command{
	Use:   "invalidate <url>",
	Short: "Remove a cached PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cache := newResourceCache(buildConfig(), os.Stderr)
		if err := cache.Invalidate(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "invalidated")
		return nil
	},
}

func init() {
	resourceFetchCmd.Flags().String("out", "", "copy the PDF to this path")

	resourceCmd.AddCommand(resourceFetchCmd)
	resourceCmd.AddCommand(resourceInvalidateCmd)
	rootCmd.AddCommand(resourceCmd)
}

func runResourceFetch(cmd *cobra.Command, args []string) error {
	cache := newResourceCache(buildConfig(), os.Stderr)

	path, meta, transient, err := cache.GetOrFetch(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if transient {
		defer os.Remove(path)
	}

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		if err := copyFile(path, out); err != nil {
			return err
		}
		path = out
	}

	fmt.Fprintf(os.Stdout, "%s\n  %s, %d bytes", path, meta.ContentType, meta.SizeBytes)
	if meta.Pages > 0 {
		fmt.Fprintf(os.Stdout, ", %d pages", meta.Pages)
	}
	fmt.Fprintln(os.Stdout)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
