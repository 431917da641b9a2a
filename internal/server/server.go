// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the discovery pipeline over HTTP for the
// presentation layer: a search operation, a validating PDF proxy, and
// cache maintenance endpoints. Typed pipeline errors map onto HTTP
// statuses; every request is logged with a request ID.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pdiddy/paper-discovery/internal/discovery"
	"github.com/pdiddy/paper-discovery/internal/resource"
	"github.com/pdiddy/paper-discovery/internal/respcache"
	"github.com/pdiddy/paper-discovery/internal/translate"
	"github.com/pdiddy/paper-discovery/internal/upstream"
	"github.com/pdiddy/paper-discovery/pkg/types"
)

// Server wires the orchestrator, resource cache, and response cache into
// an http.Handler.
type Server struct {
	Orchestrator *discovery.Orchestrator
	Resources    *resource.Cache

	// ResponseCache is optional; stats/cleanup endpoints return 404-style
	// empty results without it.
	ResponseCache *respcache.Store

	Config types.ServerConfig

	logger *log.Logger
}

// New builds a Server with a rotating access log at cfg.AccessLog.
func New(orch *discovery.Orchestrator, res *resource.Cache, cache *respcache.Store, cfg types.ServerConfig) *Server {
	var out io.Writer = os.Stderr
	if cfg.AccessLog != "" {
		os.MkdirAll(filepath.Dir(cfg.AccessLog), 0o755)
		out = &lumberjack.Logger{
			Filename:   cfg.AccessLog,
			MaxSize:    15, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
	}
	return &Server{
		Orchestrator:  orch,
		Resources:     res,
		ResponseCache: cache,
		Config:        cfg,
		logger:        log.New(out, "", log.LstdFlags),
	}
}

// Handler returns the routed handler with request-ID logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/pdf", s.handlePDF)
	mux.HandleFunc("GET /api/cache/stats", s.handleCacheStats)
	mux.HandleFunc("POST /api/cache/cleanup", s.handleCacheCleanup)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok\n")
	})
	return s.withRequestLog(mux)
}

// searchRequest is the inbound search body.
type searchRequest struct {
	Query   string         `json:"query"`
	Filters *searchFilters `json:"filters,omitempty"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
}

type searchFilters struct {
	YearFrom     int  `json:"year_from,omitempty"`
	YearTo       int  `json:"year_to,omitempty"`
	MinCitations int  `json:"min_citations,omitempty"`
	OpenAccess   bool `json:"open_access,omitempty"`
}

// searchResponse is the flattened wire shape the presentation layer reads.
type searchResponse struct {
	Results         []types.SearchResult `json:"results"`
	TotalResults    int                  `json:"total_results"`
	Page            int                  `json:"page"`
	PerPage         int                  `json:"per_page"`
	TotalPages      int                  `json:"total_pages"`
	SearchTimeMS    int64                `json:"search_time_ms"`
	SourceEndpoint  string               `json:"source_endpoint"`
	TranslatedQuery string               `json:"translated_query,omitempty"`
	CacheHit        bool                 `json:"cache_hit"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err), false)
		return
	}
	if req.Query == "" {
		s.writeError(w, r, http.StatusBadRequest, errors.New("query is required"), false)
		return
	}

	var hints *translate.FilterHints
	if f := req.Filters; f != nil {
		hints = &translate.FilterHints{
			YearFrom:       f.YearFrom,
			YearTo:         f.YearTo,
			MinCitations:   f.MinCitations,
			OpenAccessOnly: f.OpenAccess,
		}
	}

	resp, err := s.Orchestrator.Search(r.Context(), req.Query, hints, req.Page, req.PerPage)
	if err != nil {
		// Retries are already exhausted below this layer; surface the
		// failure as service-unavailable.
		var uerr *upstream.UpstreamError
		if errors.As(err, &uerr) {
			s.writeError(w, r, http.StatusServiceUnavailable, err, true)
			return
		}
		s.writeError(w, r, http.StatusBadGateway, err, true)
		return
	}

	s.writeJSON(w, http.StatusOK, searchResponse{
		Results:         resp.Results,
		TotalResults:    resp.Pagination.TotalResults,
		Page:            resp.Pagination.Page,
		PerPage:         resp.Pagination.PerPage,
		TotalPages:      resp.Pagination.TotalPages,
		SearchTimeMS:    resp.SearchTimeMS,
		SourceEndpoint:  resp.SourceEndpoint,
		TranslatedQuery: resp.TranslatedQuery,
		CacheHit:        resp.CacheHit,
	})
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	path, meta, transient, err := s.Resources.GetOrFetch(r.Context(), rawURL)
	if err != nil {
		s.writeError(w, r, resourceStatus(err), err, resourceStatus(err) >= 500)
		return
	}
	if transient {
		defer os.Remove(path)
	}

	f, err := os.Open(path)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, fmt.Errorf("opening cached resource: %w", err), true)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", meta.ContentType)
	if meta.SizeBytes > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", meta.SizeBytes))
	}
	io.Copy(w, f)
}

// resourceStatus maps resource errors to HTTP statuses: 400 invalid URL or
// failed signature, 413 too large, 404 not found at source, 502 otherwise.
func resourceStatus(err error) int {
	var inv *resource.InvalidResourceError
	var big *resource.TooLargeError
	var nf *resource.NotFoundError
	switch {
	case errors.As(err, &inv):
		return http.StatusBadRequest
	case errors.As(err, &big):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &nf):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.ResponseCache == nil {
		s.writeJSON(w, http.StatusOK, respcache.Stats{})
		return
	}
	stats, err := s.ResponseCache.Stats()
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err, true)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCacheCleanup(w http.ResponseWriter, r *http.Request) {
	if s.ResponseCache == nil {
		s.writeJSON(w, http.StatusOK, map[string]int{"removed": 0})
		return
	}
	removed, err := s.ResponseCache.Cleanup()
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err, true)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error, retryable bool) {
	s.logger.Printf("%s %s %s -> %d: %v", requestID(r), r.Method, r.URL.Path, status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Retryable: retryable})
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

func contextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func requestID(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		return id
	}
	return "-"
}

// withRequestLog tags each request with a UUID and writes one access-log
// line per request.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		ctx := contextWithRequestID(r.Context(), id)
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		s.logger.Printf("%s %s %s %s", id, r.Method, r.URL.RequestURI(), time.Since(start))
	})
}
