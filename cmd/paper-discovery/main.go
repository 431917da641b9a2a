// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-discovery CLI.
// Subcommands cover the pipeline surface: search, resource, cache, serve.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-discovery/internal/discovery"
	"github.com/pdiddy/paper-discovery/internal/resource"
	"github.com/pdiddy/paper-discovery/internal/respcache"
	"github.com/pdiddy/paper-discovery/internal/secrets"
	"github.com/pdiddy/paper-discovery/internal/translate"
	"github.com/pdiddy/paper-discovery/internal/upstream"
	"github.com/pdiddy/paper-discovery/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the paper-discovery CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-discovery",
	Short: "Research-discovery backend: AI query translation over OpenAlex",
	Long: `paper-discovery translates free-text research questions into structured
OpenAlex queries, executes them with retries and response caching, and
proxies open-access PDFs through a validating cache.

Each operation is a subcommand: search, resource, cache, and serve. The
presentation layer consumes the same pipeline over HTTP via serve.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paper-discovery.yaml or ~/.config/paper-discovery/config.yaml)")
	rootCmd.PersistentFlags().Bool("no-cache", false, "bypass the response and resource caches")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paper-discovery")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paper-discovery"))
		}
	}

	viper.SetEnvPrefix("PAPER_DISCOVERY")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// buildConfig merges defaults, the viper config, and loaded secrets into a
// complete DiscoveryConfig.
func buildConfig() types.DiscoveryConfig {
	cfg := types.Defaults()

	viper.SetDefault("translator.model", cfg.Translator.Model)
	viper.SetDefault("translator.base_url", cfg.Translator.BaseURL)
	viper.SetDefault("translator.timeout", cfg.Translator.Timeout)
	viper.SetDefault("upstream.base_url", cfg.Upstream.BaseURL)
	viper.SetDefault("upstream.timeout", cfg.Upstream.Timeout)
	viper.SetDefault("upstream.max_attempts", cfg.Upstream.MaxAttempts)
	viper.SetDefault("cache.enabled", cfg.Cache.Enabled)
	viper.SetDefault("cache.dir", cfg.Cache.Dir)
	viper.SetDefault("cache.ttl", cfg.Cache.TTL)
	viper.SetDefault("cache.max_entries", cfg.Cache.MaxEntries)
	viper.SetDefault("resource.dir", cfg.Resource.Dir)
	viper.SetDefault("resource.max_bytes", cfg.Resource.MaxBytes)
	viper.SetDefault("resource.timeout", cfg.Resource.Timeout)
	viper.SetDefault("server.addr", cfg.Server.Addr)
	viper.SetDefault("server.access_log", cfg.Server.AccessLog)
	viper.SetDefault("server.max_per_page", cfg.Server.MaxPerPage)

	cfg.Translator.Model = viper.GetString("translator.model")
	cfg.Translator.BaseURL = viper.GetString("translator.base_url")
	cfg.Translator.Timeout = viper.GetDuration("translator.timeout")
	cfg.Upstream.BaseURL = viper.GetString("upstream.base_url")
	cfg.Upstream.Timeout = viper.GetDuration("upstream.timeout")
	cfg.Upstream.MaxAttempts = viper.GetInt("upstream.max_attempts")
	cfg.Cache.Enabled = viper.GetBool("cache.enabled")
	cfg.Cache.Dir = viper.GetString("cache.dir")
	cfg.Cache.TTL = viper.GetDuration("cache.ttl")
	cfg.Cache.MaxEntries = viper.GetInt("cache.max_entries")
	cfg.Resource.Dir = viper.GetString("resource.dir")
	cfg.Resource.MaxBytes = viper.GetInt64("resource.max_bytes")
	cfg.Resource.Timeout = viper.GetDuration("resource.timeout")
	cfg.Server.Addr = viper.GetString("server.addr")
	cfg.Server.AccessLog = viper.GetString("server.access_log")
	cfg.Server.MaxPerPage = viper.GetInt("server.max_per_page")

	if keys := viper.GetString("translator.api_keys"); keys != "" {
		cfg.Translator.APIKeys = secrets.SplitKeys(keys)
	} else if raw, ok := loadedSecrets["ai-api-keys"]; ok {
		cfg.Translator.APIKeys = secrets.SplitKeys(raw)
	}
	if email := viper.GetString("upstream.email"); email != "" {
		cfg.Upstream.Email = email
	} else if v, ok := loadedSecrets["openalex-email"]; ok {
		cfg.Upstream.Email = v
	}

	if noCache, _ := rootCmd.PersistentFlags().GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}
	return cfg
}

// newOrchestrator wires the translator, response cache, and upstream client.
// The returned store is nil when caching is disabled; the caller owns
// closing it.
func newOrchestrator(cfg types.DiscoveryConfig, logw io.Writer) (*discovery.Orchestrator, *respcache.Store, error) {
	var store *respcache.Store
	if cfg.Cache.Enabled {
		s, err := respcache.NewStore(cfg.Cache)
		if err != nil {
			return nil, nil, fmt.Errorf("opening response cache: %w", err)
		}
		store = s
	}

	client := &upstream.Client{
		HTTP:   &http.Client{Timeout: cfg.Upstream.Timeout + 5*time.Second},
		Config: cfg.Upstream,
		Log:    logw,
	}
	if store != nil {
		client.Cache = store
	}

	translator := &translate.Translator{
		Backend: &translate.GeminiBackend{
			Client: &http.Client{Timeout: cfg.Translator.Timeout + 5*time.Second},
			Config: cfg.Translator,
		},
		Keys: translate.NewKeyPool(cfg.Translator.APIKeys),
		Log:  logw,
	}

	orch := &discovery.Orchestrator{
		Translator:   translator,
		Client:       client,
		CacheEnabled: cfg.Cache.Enabled,
		MaxPerPage:   cfg.Server.MaxPerPage,
		Log:          logw,
	}
	return orch, store, nil
}

// newResourceCache wires the PDF cache/proxy.
func newResourceCache(cfg types.DiscoveryConfig, logw io.Writer) *resource.Cache {
	return &resource.Cache{
		HTTP: &http.Client{
			Timeout: cfg.Resource.Timeout + 5*time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Redirect targets must satisfy the same allow-list.
				if req.URL.Scheme != "https" {
					return fmt.Errorf("redirect to non-https URL %s", req.URL)
				}
				return nil
			},
		},
		Config:  cfg.Resource,
		Enabled: cfg.Cache.Enabled,
		Log:     logw,
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
