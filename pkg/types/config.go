// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paper-discovery/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// TranslatorConfig holds settings for the AI query translator.
type TranslatorConfig struct {
	HTTPConfig `yaml:",inline"`

	// Model is the Gemini model identifier (e.g. "gemini-1.5-flash-latest").
	Model string `json:"model" yaml:"model"`

	// BaseURL is the Generative Language API base. Overridable for tests.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKeys is the credential pool, rotated round-robin per attempt.
	APIKeys []string `json:"api_keys,omitempty" yaml:"api_keys,omitempty"`

	// MaxAttempts bounds translation attempts across the key pool
	// (default: min(3, len(APIKeys))).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`
}

// UpstreamConfig holds settings for the bibliographic API client.
type UpstreamConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the bibliographic API base (default "https://api.openalex.org").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Email is sent as the mailto parameter for polite-pool treatment.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`

	// MaxAttempts is the total number of tries for a request (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`
}

// CacheConfig holds settings for the SQLite response cache.
type CacheConfig struct {
	// Enabled turns both the response cache and the resource cache on.
	// When false every fetch goes upstream and nothing is stored.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Dir is the directory holding the cache database (default "cache/").
	Dir string `json:"dir" yaml:"dir"`

	// TTL is how long a response entry stays valid (default 24h).
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// MaxEntries bounds the response cache size; the least recently
	// accessed entries are evicted past this count (default 10000).
	MaxEntries int `json:"max_entries" yaml:"max_entries"`
}

// ResourceConfig holds settings for the PDF cache/proxy.
type ResourceConfig struct {
	HTTPConfig `yaml:",inline"`

	// Dir is the directory holding cached resources (default "cache/resources/").
	Dir string `json:"dir" yaml:"dir"`

	// MaxBytes caps a single download; transfers abort the moment the cap
	// would be exceeded (default 25 MiB).
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes"`
}

// ServerConfig holds settings for the HTTP API surface.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr"`

	// AccessLog is the rotating access-log path (default "logs/access.log").
	AccessLog string `json:"access_log" yaml:"access_log"`

	// MaxPerPage bounds the per_page request parameter (default 100).
	MaxPerPage int `json:"max_per_page" yaml:"max_per_page"`
}

// DiscoveryConfig groups all component configurations.
type DiscoveryConfig struct {
	Translator TranslatorConfig `json:"translator" yaml:"translator"`
	Upstream   UpstreamConfig   `json:"upstream" yaml:"upstream"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	Resource   ResourceConfig   `json:"resource" yaml:"resource"`
	Server     ServerConfig     `json:"server" yaml:"server"`
}

// Defaults returns a DiscoveryConfig with the documented default values.
func Defaults() DiscoveryConfig {
	return DiscoveryConfig{
		Translator: TranslatorConfig{
			HTTPConfig: HTTPConfig{Timeout: 10 * time.Second, UserAgent: "paper-discovery/0.1"},
			Model:      "gemini-1.5-flash-latest",
			BaseURL:    "https://generativelanguage.googleapis.com/v1beta/models",
		},
		Upstream: UpstreamConfig{
			HTTPConfig:  HTTPConfig{Timeout: 10 * time.Second, UserAgent: "paper-discovery/0.1"},
			BaseURL:     "https://api.openalex.org",
			MaxAttempts: 3,
		},
		Cache: CacheConfig{
			Enabled:    true,
			Dir:        "cache",
			TTL:        24 * time.Hour,
			MaxEntries: 10000,
		},
		Resource: ResourceConfig{
			HTTPConfig: HTTPConfig{Timeout: 20 * time.Second, UserAgent: "paper-discovery/0.1"},
			Dir:        "cache/resources",
			MaxBytes:   25 << 20,
		},
		Server: ServerConfig{
			Addr:       ":8080",
			AccessLog:  "logs/access.log",
			MaxPerPage: 100,
		},
	}
}
