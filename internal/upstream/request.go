// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package upstream executes structured requests against the bibliographic
// API: response caching, bounded retries with rate-limit respect, and
// single-flight de-duplication per request fingerprint.
package upstream

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Request describes a structured call against the bibliographic API: an
// endpoint name plus a flat parameter map. Parameter keys are expected to
// have passed the schema whitelist before a Request is built.
type Request struct {
	Endpoint string
	Params   map[string]string
}

// Fingerprint derives the deterministic cache key for a request. Parameters
// are sorted by key, so two structurally equal requests fingerprint
// identically regardless of construction order.
func Fingerprint(req Request) string {
	keys := make([]string, 0, len(req.Params))
	for k := range req.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(req.Endpoint)
	for _, k := range keys {
		b.WriteByte('&')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(req.Params[k])
	}
	return fmt.Sprintf("%x", sha256.Sum256([]byte(b.String())))
}

// Values converts the parameter map to url.Values for the wire.
func (r Request) Values() url.Values {
	v := make(url.Values, len(r.Params))
	for k, val := range r.Params {
		v.Set(k, val)
	}
	return v
}

// QueryString renders the parameters in sorted-key order, for logging and
// the translated_query response field.
func (r Request) QueryString() string {
	return r.Values().Encode()
}
