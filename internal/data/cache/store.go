package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"atlas/internal/engine/classify"
	"atlas/internal/fetch"
	"atlas/internal/shared/observability"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Store persists analysis results in a single sqlite file. Every read and
// write failure is logged and reported as a miss; the analysis pipeline
// never sees a cache error.
type Store struct {
	path     string
	db       *sql.DB
	ttl      time.Duration
	maxBytes int64
	version  int
	mu       sync.Mutex
}

func Open(path string, ttl time.Duration, maxBytes int64) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("cache path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("cache path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts when runs overlap.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite cache %q: %w", cleanPath, err)
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{
		path:     cleanPath,
		db:       db,
		ttl:      ttl,
		maxBytes: maxBytes,
		version:  FormatVersion,
	}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS cache_records (
  key TEXT PRIMARY KEY,
  format_version INTEGER NOT NULL,
  captured_at_utc TEXT NOT NULL,
  expires_at_utc TEXT NOT NULL,
  owner TEXT NOT NULL,
  repo TEXT NOT NULL,
  branch TEXT NOT NULL,
  entities_json TEXT NOT NULL,
  files_json TEXT NOT NULL,
  total_files INTEGER NOT NULL,
  analyzed_files INTEGER NOT NULL,
  size_bytes INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_captured_at ON cache_records(captured_at_utc);
`)
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Get returns the cached record for the coordinates, or false on any miss:
// absent row, expired record, version mismatch, or storage failure. Invalid
// rows found on the way are deleted.
func (s *Store) Get(coords fetch.Coords) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Fingerprint(coords)
	row := s.db.QueryRow(`
SELECT format_version, captured_at_utc, expires_at_utc, owner, repo, branch, entities_json, files_json, total_files, analyzed_files
FROM cache_records WHERE key = ?`, key)

	var (
		version                 int
		capturedRaw, expiresRaw string
		owner, repo, branch     string
		entitiesJSON, filesJSON string
		totalFiles, analyzed    int
	)
	err := row.Scan(&version, &capturedRaw, &expiresRaw, &owner, &repo, &branch, &entitiesJSON, &filesJSON, &totalFiles, &analyzed)
	if err == sql.ErrNoRows {
		observability.CacheMissesTotal.Inc()
		return nil, false
	}
	if err != nil {
		slog.Warn("cache read failed, treating as miss", "key", key, "error", err)
		observability.CacheMissesTotal.Inc()
		return nil, false
	}

	capturedAt, expiresAt := parseTime(capturedRaw), parseTime(expiresRaw)
	if version != s.version || !expiresAt.After(time.Now().UTC()) {
		reason := ReasonExpired
		if version != s.version {
			reason = ReasonVersion
		}
		s.deleteKeys(map[string]EvictionReason{key: reason})
		observability.CacheMissesTotal.Inc()
		return nil, false
	}

	record := &Record{
		Key:           key,
		FormatVersion: version,
		CapturedAt:    capturedAt,
		ExpiresAt:     expiresAt,
		Coords:        fetch.Coords{Owner: owner, Repo: repo, Branch: branch},
		TotalFiles:    totalFiles,
		AnalyzedFiles: analyzed,
	}
	if err := json.Unmarshal([]byte(entitiesJSON), &record.Entities); err != nil {
		slog.Warn("cache record corrupt, treating as miss", "key", key, "error", err)
		s.deleteKeys(map[string]EvictionReason{key: ReasonVersion})
		observability.CacheMissesTotal.Inc()
		return nil, false
	}
	if err := json.Unmarshal([]byte(filesJSON), &record.Files); err != nil {
		slog.Warn("cache record corrupt, treating as miss", "key", key, "error", err)
		s.deleteKeys(map[string]EvictionReason{key: ReasonVersion})
		observability.CacheMissesTotal.Inc()
		return nil, false
	}

	observability.CacheHitsTotal.Inc()
	return record, true
}

// Put replaces the record for the coordinates and then enforces the expiry
// and size policies. The counts are the candidate and analyzed totals of the
// run being cached. Storage failures are logged, never returned.
func (s *Store) Put(coords fetch.Coords, entities []*classify.Entity, files []fetch.FileRecord, totalFiles, analyzedFiles int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Fingerprint(coords)
	entitiesJSON, err := json.Marshal(entities)
	if err != nil {
		slog.Warn("cache write skipped, entities not serializable", "key", key, "error", err)
		return
	}
	filesJSON, err := json.Marshal(files)
	if err != nil {
		slog.Warn("cache write skipped, files not serializable", "key", key, "error", err)
		return
	}

	now := time.Now().UTC()
	size := int64(len(entitiesJSON) + len(filesJSON))
	err = s.withRetry("cache write", func() error {
		_, execErr := s.db.Exec(`
INSERT INTO cache_records (key, format_version, captured_at_utc, expires_at_utc, owner, repo, branch, entities_json, files_json, total_files, analyzed_files, size_bytes)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
  format_version=excluded.format_version,
  captured_at_utc=excluded.captured_at_utc,
  expires_at_utc=excluded.expires_at_utc,
  owner=excluded.owner,
  repo=excluded.repo,
  branch=excluded.branch,
  entities_json=excluded.entities_json,
  files_json=excluded.files_json,
  total_files=excluded.total_files,
  analyzed_files=excluded.analyzed_files,
  size_bytes=excluded.size_bytes`,
			key, s.version,
			now.Format(time.RFC3339Nano), now.Add(s.ttl).Format(time.RFC3339Nano),
			coords.Owner, coords.Repo, coords.Branch,
			string(entitiesJSON), string(filesJSON), totalFiles, analyzedFiles, size,
		)
		return execErr
	})
	if err != nil {
		slog.Warn("cache write failed", "key", key, "error", err)
		return
	}

	s.enforcePolicies(now)
}

// enforcePolicies loads record summaries and applies the pure eviction plan.
func (s *Store) enforcePolicies(now time.Time) {
	rows, err := s.db.Query(`SELECT key, format_version, captured_at_utc, expires_at_utc, size_bytes FROM cache_records`)
	if err != nil {
		slog.Warn("cache policy scan failed", "error", err)
		return
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var (
			sum                     Summary
			capturedRaw, expiresRaw string
		)
		if err := rows.Scan(&sum.Key, &sum.FormatVersion, &capturedRaw, &expiresRaw, &sum.SizeBytes); err != nil {
			slog.Warn("cache policy scan failed", "error", err)
			return
		}
		sum.CapturedAt = parseTime(capturedRaw)
		sum.ExpiresAt = parseTime(expiresRaw)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		slog.Warn("cache policy scan failed", "error", err)
		return
	}

	s.deleteKeys(PlanEvictions(summaries, now, s.version, s.maxBytes))
}

func (s *Store) deleteKeys(plan map[string]EvictionReason) {
	for key, reason := range plan {
		err := s.withRetry("cache evict", func() error {
			_, execErr := s.db.Exec(`DELETE FROM cache_records WHERE key = ?`, key)
			return execErr
		})
		if err != nil {
			slog.Warn("cache eviction failed", "key", key, "error", err)
			continue
		}
		observability.CacheEvictionsTotal.WithLabelValues(string(reason)).Inc()
	}
}

// Stats reports the aggregate management view.
func (s *Store) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		stats          Stats
		oldest, newest sql.NullString
		totalBytes     sql.NullInt64
	)
	row := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(size_bytes), 0), MIN(captured_at_utc), MAX(captured_at_utc) FROM cache_records`)
	if err := row.Scan(&stats.Count, &totalBytes, &oldest, &newest); err != nil {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}
	stats.TotalBytes = totalBytes.Int64
	if oldest.Valid {
		stats.Oldest = parseTime(oldest.String)
	}
	if newest.Valid {
		stats.Newest = parseTime(newest.String)
	}
	return stats, nil
}

// Clear removes every record.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry("cache clear", func() error {
		_, err := s.db.Exec(`DELETE FROM cache_records`)
		return err
	})
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
