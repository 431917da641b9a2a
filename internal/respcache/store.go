// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package respcache persists upstream API responses in a SQLite database
// keyed by request fingerprint. Entries expire by TTL and the store is
// bounded: past max_entries the least recently accessed rows are evicted.
package respcache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-discovery/pkg/types"
)

const dbFile = "responses.db"

// CacheError wraps a storage-layer failure. Callers treat it as a forced
// cache miss; it is never fatal to a request.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string { return fmt.Sprintf("cache %s: %v", e.Op, e.Err) }
func (e *CacheError) Unwrap() error { return e.Err }

// IsCacheError reports whether err is a storage-layer cache failure.
func IsCacheError(err error) bool {
	var ce *CacheError
	return errors.As(err, &ce)
}

// Store is the SQLite-backed response cache. Safe for concurrent use; the
// database serializes writers and no lock is held across network I/O.
type Store struct {
	db         *sql.DB
	ttl        time.Duration
	maxEntries int

	// now is the clock, injectable for deterministic expiry tests.
	now func() time.Time
}

// Stats summarizes cache contents.
type Stats struct {
	TotalEntries   int   `json:"total_entries" yaml:"total_entries"`
	ActiveEntries  int   `json:"active_entries" yaml:"active_entries"`
	ExpiredEntries int   `json:"expired_entries" yaml:"expired_entries"`
	TotalHits      int   `json:"total_hits" yaml:"total_hits"`
	SizeBytes      int64 `json:"size_bytes" yaml:"size_bytes"`
}

// NewStore opens or creates the cache database under cfg.Dir, creating the
// schema if it does not exist.
func NewStore(cfg types.CacheConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 10000
	}

	s := &Store{db: db, ttl: ttl, maxEntries: maxEntries, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return s, nil
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS response_cache (
			fingerprint      TEXT PRIMARY KEY,
			payload          BLOB NOT NULL,
			created_at       INTEGER NOT NULL,
			expires_at       INTEGER NOT NULL,
			last_accessed_at INTEGER NOT NULL,
			hit_count        INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_response_cache_expires ON response_cache(expires_at);
		CREATE INDEX IF NOT EXISTS idx_response_cache_lru ON response_cache(last_accessed_at);
	`)
	return err
}

// Close releases the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Get returns the payload for a fingerprint when a non-expired entry
// exists. A hit bumps the entry's hit count and access time.
func (s *Store) Get(fingerprint string) ([]byte, bool, error) {
	now := s.now().Unix()

	var payload []byte
	err := s.db.QueryRow(
		`SELECT payload FROM response_cache WHERE fingerprint = ? AND expires_at > ?`,
		fingerprint, now,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &CacheError{Op: "get", Err: err}
	}

	if _, err := s.db.Exec(
		`UPDATE response_cache SET hit_count = hit_count + 1, last_accessed_at = ? WHERE fingerprint = ?`,
		now, fingerprint,
	); err != nil {
		return nil, false, &CacheError{Op: "touch", Err: err}
	}
	return payload, true, nil
}

// Put stores (or replaces) the payload for a fingerprint with a fresh TTL,
// then enforces the LRU size bound.
func (s *Store) Put(fingerprint string, payload []byte) error {
	now := s.now()
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO response_cache
			(fingerprint, payload, created_at, expires_at, last_accessed_at, hit_count)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		fingerprint, payload, now.Unix(), now.Add(s.ttl).Unix(), now.Unix(),
	)
	if err != nil {
		return &CacheError{Op: "put", Err: err}
	}
	return s.evictOverflow()
}

// Delete removes the entry for a fingerprint, if any.
func (s *Store) Delete(fingerprint string) error {
	if _, err := s.db.Exec(`DELETE FROM response_cache WHERE fingerprint = ?`, fingerprint); err != nil {
		return &CacheError{Op: "delete", Err: err}
	}
	return nil
}

// Cleanup removes all expired entries and reports how many were deleted.
func (s *Store) Cleanup() (int, error) {
	res, err := s.db.Exec(`DELETE FROM response_cache WHERE expires_at <= ?`, s.now().Unix())
	if err != nil {
		return 0, &CacheError{Op: "cleanup", Err: err}
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// evictOverflow deletes the least recently accessed rows past maxEntries.
func (s *Store) evictOverflow() error {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM response_cache`).Scan(&count); err != nil {
		return &CacheError{Op: "evict", Err: err}
	}
	if count <= s.maxEntries {
		return nil
	}
	_, err := s.db.Exec(
		`DELETE FROM response_cache WHERE fingerprint IN (
			SELECT fingerprint FROM response_cache
			ORDER BY last_accessed_at ASC, fingerprint ASC
			LIMIT ?)`,
		count-s.maxEntries,
	)
	if err != nil {
		return &CacheError{Op: "evict", Err: err}
	}
	return nil
}

// Stats reports entry counts, hit totals, and payload size.
func (s *Store) Stats() (Stats, error) {
	now := s.now().Unix()
	var st Stats
	err := s.db.QueryRow(
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(hit_count), 0),
			COALESCE(SUM(LENGTH(payload)), 0)
		 FROM response_cache`, now,
	).Scan(&st.TotalEntries, &st.ActiveEntries, &st.TotalHits, &st.SizeBytes)
	if err != nil {
		return Stats{}, &CacheError{Op: "stats", Err: err}
	}
	st.ExpiredEntries = st.TotalEntries - st.ActiveEntries
	return st, nil
}
