// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resource fetches, validates, caches, and serves open-access PDFs
// referenced by search results. Content is published to the cache only
// after passing signature validation; a failed fetch can never replace a
// good entry.
package resource

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/ledongthuc/pdf"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-discovery/pkg/types"
)

// pdfMagic is the signature every served resource must start with.
var pdfMagic = []byte("%PDF")

// InvalidResourceError reports a URL that failed the scheme allow-list or
// content that failed signature validation. Surfaced as a client error.
type InvalidResourceError struct {
	URL    string
	Reason string
}

func (e *InvalidResourceError) Error() string {
	return fmt.Sprintf("invalid resource %s: %s", e.URL, e.Reason)
}

// TooLargeError reports a transfer that would exceed the configured size
// cap. The transfer is aborted the moment the cap would be crossed.
type TooLargeError struct {
	URL   string
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("resource %s exceeds size limit of %d bytes", e.URL, e.Limit)
}

// NotFoundError reports that the source returned 404 for the resource.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource not found at source: %s", e.URL)
}

// Metadata is the sidecar record stored next to each cached resource.
type Metadata struct {
	SourceURL   string    `yaml:"source_url"`
	ContentType string    `yaml:"content_type"`
	SizeBytes   int64     `yaml:"size_bytes"`
	FetchedAt   time.Time `yaml:"fetched_at"`

	// Pages is a best-effort page count of the validated PDF; 0 when the
	// document could not be parsed beyond its signature.
	Pages int `yaml:"pages,omitempty"`
}

// Cache downloads and locally caches validated PDFs, keyed by a hash of
// the source URL.
type Cache struct {
	HTTP   *http.Client
	Config types.ResourceConfig

	// Enabled controls whether validated content is kept. When false
	// every call fetches fresh and returns a transient file the caller
	// must remove after serving.
	Enabled bool

	// Log receives warnings (sidecar write failures). Defaults to io.Discard.
	Log io.Writer
}

// GetOrFetch returns a local file path for the resource at rawURL,
// downloading and validating it when not cached. transient reports that
// the file lives outside the cache and should be removed after use.
func (c *Cache) GetOrFetch(ctx context.Context, rawURL string) (path string, meta Metadata, transient bool, err error) {
	if rawURL == "" {
		return "", Metadata{}, false, &InvalidResourceError{URL: rawURL, Reason: "missing URL"}
	}

	// Scheme allow-list is checked before any network call.
	parsed, parseErr := url.Parse(rawURL)
	if parseErr != nil || parsed.Scheme != "https" || parsed.Host == "" {
		return "", Metadata{}, false, &InvalidResourceError{URL: rawURL, Reason: "URL scheme must be https"}
	}

	pdfPath, metaPath := c.paths(rawURL)

	if c.Enabled {
		if _, statErr := os.Stat(pdfPath); statErr == nil {
			return pdfPath, c.readMetadata(metaPath, pdfPath, rawURL), false, nil
		}
	}

	tmpPath, meta, err := c.download(ctx, rawURL)
	if err != nil {
		return "", Metadata{}, false, err
	}

	if !c.Enabled {
		return tmpPath, meta, true, nil
	}

	// Publish atomically; a concurrent fetch for the same URL races
	// benignly, last validated success wins.
	if err := os.Rename(tmpPath, pdfPath); err != nil {
		os.Remove(tmpPath)
		return "", Metadata{}, false, fmt.Errorf("publishing resource: %w", err)
	}
	c.writeMetadata(metaPath, meta)
	return pdfPath, meta, false, nil
}

// Invalidate removes the cached copy of a resource, if any.
func (c *Cache) Invalidate(rawURL string) error {
	pdfPath, metaPath := c.paths(rawURL)
	if err := os.Remove(pdfPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing cached resource: %w", err)
	}
	os.Remove(metaPath)
	return nil
}

func (c *Cache) paths(rawURL string) (pdfPath, metaPath string) {
	digest := fmt.Sprintf("%x", sha256.Sum256([]byte(rawURL)))
	return filepath.Join(c.Config.Dir, digest+".pdf"), filepath.Join(c.Config.Dir, digest+".yaml")
}

// download fetches the resource into a temp file, enforcing the size cap
// mid-stream and validating the PDF signature before returning.
func (c *Cache) download(ctx context.Context, rawURL string) (string, Metadata, error) {
	if err := os.MkdirAll(c.Config.Dir, 0o755); err != nil {
		return "", Metadata{}, fmt.Errorf("creating resource directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", Metadata{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.Config.UserAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", Metadata{}, fmt.Errorf("fetching resource: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", Metadata{}, &NotFoundError{URL: rawURL}
	}
	if resp.StatusCode != http.StatusOK {
		return "", Metadata{}, fmt.Errorf("upstream returned HTTP %d for %s", resp.StatusCode, rawURL)
	}

	tmpFile, err := os.CreateTemp(c.Config.Dir, ".resource-*.tmp")
	if err != nil {
		return "", Metadata{}, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	total, copyErr := c.copyCapped(tmpFile, resp.Body, rawURL)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return "", Metadata{}, copyErr
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", Metadata{}, fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := validateSignature(tmpPath); err != nil {
		os.Remove(tmpPath)
		return "", Metadata{}, err
	}

	meta := Metadata{
		SourceURL:   rawURL,
		ContentType: "application/pdf",
		SizeBytes:   total,
		FetchedAt:   time.Now().UTC(),
		Pages:       pageCount(tmpPath),
	}
	return tmpPath, meta, nil
}

// copyCapped streams body to dst in bounded chunks, aborting the instant
// the configured cap would be exceeded. Nothing beyond one chunk is ever
// buffered in memory.
func (c *Cache) copyCapped(dst io.Writer, body io.Reader, rawURL string) (int64, error) {
	limit := c.Config.MaxBytes
	var total int64
	buf := make([]byte, 64<<10)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			total += int64(n)
			if limit > 0 && total > limit {
				return total, &TooLargeError{URL: rawURL, Limit: limit}
			}
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, fmt.Errorf("writing download: %w", werr)
			}
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, fmt.Errorf("reading resource stream: %w", err)
		}
	}
}

// validateSignature checks the leading bytes against the PDF magic number.
func validateSignature(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening downloaded file: %w", err)
	}
	defer f.Close()

	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return &InvalidResourceError{URL: path, Reason: "content too short to be a PDF"}
	}
	if !bytes.Equal(head, pdfMagic) {
		return &InvalidResourceError{URL: path, Reason: "content does not start with %PDF"}
	}
	return nil
}

// pageCount parses the validated document and returns its page count,
// or 0 when the document cannot be parsed.
func pageCount(path string) int {
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()
	return r.NumPage()
}

func (c *Cache) readMetadata(metaPath, pdfPath, rawURL string) Metadata {
	data, err := os.ReadFile(metaPath)
	if err == nil {
		var meta Metadata
		if yaml.Unmarshal(data, &meta) == nil {
			return meta
		}
	}
	// Sidecar missing or corrupt: rebuild the essentials from the file.
	meta := Metadata{SourceURL: rawURL, ContentType: "application/pdf"}
	if fi, statErr := os.Stat(pdfPath); statErr == nil {
		meta.SizeBytes = fi.Size()
		meta.FetchedAt = fi.ModTime().UTC()
	}
	return meta
}

func (c *Cache) writeMetadata(metaPath string, meta Metadata) {
	data, err := yaml.Marshal(&meta)
	if err == nil {
		err = os.WriteFile(metaPath, data, 0o644)
	}
	if err != nil {
		fmt.Fprintf(c.log(), "warning: could not write resource metadata %s: %v\n", metaPath, err)
	}
}

func (c *Cache) log() io.Writer {
	if c.Log != nil {
		return c.Log
	}
	return io.Discard
}
