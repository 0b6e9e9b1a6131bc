// Package store implements the namespaced, persistent record store
// shared by independently-scheduled agent workflows.
//
// It uses SQLite (modernc.org/sqlite, WAL mode) as the transactional
// backing engine. Records are keyed by (namespace, key), carry a
// tagged-variant payload plus a tag map, and expire lazily: reads
// filter out records whose expiry has passed, no background eviction
// runs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ─── Types ───────────────────────────────────────────────────────────────────

// Record is one durable entry keyed by (namespace, key).
type Record struct {
	Namespace Namespace      `json:"namespace"`
	Key       string         `json:"key"`
	Value     Value          `json:"value"`
	DataType  string         `json:"data_type,omitempty"`
	Tags      map[string]any `json:"tags,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
}

// PutOptions holds optional attributes for a write.
type PutOptions struct {
	// TTL, when set, recomputes the record's expiry from the call time.
	// When nil, an existing expiry is left unchanged. A zero or negative
	// TTL expires the record immediately.
	TTL      *time.Duration
	Tags     map[string]any
	DataType string
}

// Stats holds aggregate counts for monitoring and the mem_stats tool.
type Stats struct {
	TotalRecords int      `json:"total_records"`
	Namespaces   []string `json:"namespaces"`
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds store configuration.
type Config struct {
	DataDir          string `koanf:"data_dir"`
	MaxOpenConns     int    `koanf:"max_open_conns"`
	MaxIdleConns     int    `koanf:"max_idle_conns"`
	MaxSearchResults int    `koanf:"max_search_results"`
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:          filepath.Join(home, ".planloop"),
		MaxOpenConns:     8,
		MaxIdleConns:     4,
		MaxSearchResults: 100,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the persistent record engine backed by SQLite. The embedded
// *sql.DB is the process-wide connection pool: every operation borrows
// a connection for its duration only.
type Store struct {
	db  *sql.DB
	cfg Config
}

// New creates a Store with the given configuration. It creates the data
// directory if needed, opens SQLite with WAL mode, sizes the pool, and
// runs migrations.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "records.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, unavailable("open", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	// SQLite performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("store: migration: %w", err)
	}

	return s, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			namespace  TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			data_type  TEXT,
			tags       TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			expires_at TEXT,
			PRIMARY KEY (namespace, key)
		);

		CREATE INDEX IF NOT EXISTS idx_records_ns_updated ON records(namespace, updated_at DESC);
		CREATE INDEX IF NOT EXISTS idx_records_expires    ON records(expires_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ─── Single-record operations ────────────────────────────────────────────────

// Put upserts a record. Last writer wins: value, tags, data type, and
// updated_at are replaced on conflict; created_at is never touched.
// The expiry is recomputed only when opts.TTL is set.
func (s *Store) Put(ctx context.Context, ns Namespace, key string, value Value, opts PutOptions) error {
	if err := ns.Validate(); err != nil {
		return fmt.Errorf("store: put: %w", err)
	}
	if key == "" {
		return fmt.Errorf("store: put: key is required")
	}

	payload, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("store: put %s/%s: %w", ns.Path(), key, err)
	}
	tags, err := encodeTags(opts.Tags)
	if err != nil {
		return fmt.Errorf("store: put %s/%s: encode tags: %w", ns.Path(), key, err)
	}

	now := formatTime(timeNow())
	var expires *string
	if opts.TTL != nil {
		e := formatTime(timeNow().Add(*opts.TTL))
		expires = &e
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (namespace, key, value, data_type, tags, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			value      = excluded.value,
			data_type  = excluded.data_type,
			tags       = excluded.tags,
			updated_at = excluded.updated_at,
			expires_at = CASE WHEN ? THEN excluded.expires_at ELSE records.expires_at END`,
		ns.Path(), key, payload, nullableString(opts.DataType), tags, now, now, expires,
		opts.TTL != nil,
	)
	if err != nil {
		return unavailable("put", err)
	}
	return nil
}

// Get returns the current record, or ErrNotFound if it does not exist
// or its expiry has passed.
func (s *Store) Get(ctx context.Context, ns Namespace, key string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT namespace, key, value, data_type, tags, created_at, updated_at, expires_at
		FROM records
		WHERE namespace = ? AND key = ?
		  AND (expires_at IS NULL OR expires_at > ?)`,
		ns.Path(), key, formatTime(timeNow()),
	)

	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a record. Idempotent: deleting an absent record is not
// an error.
func (s *Store) Delete(ctx context.Context, ns Namespace, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE namespace = ? AND key = ?`,
		ns.Path(), key,
	)
	if err != nil {
		return unavailable("delete", err)
	}
	return nil
}

// List lazily yields the namespace's live records ordered by
// most-recently-updated first. The query runs when iteration starts, so
// each range over the returned sequence sees a fresh snapshot. Expired
// records are excluded. A non-nil error is yielded at most once, as the
// final element.
func (s *Store) List(ctx context.Context, ns Namespace) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT namespace, key, value, data_type, tags, created_at, updated_at, expires_at
			FROM records
			WHERE namespace = ?
			  AND (expires_at IS NULL OR expires_at > ?)
			ORDER BY updated_at DESC, key ASC`,
			ns.Path(), formatTime(timeNow()),
		)
		if err != nil {
			yield(Record{}, unavailable("list", err))
			return
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			rec, err := scanRecord(rows.Scan)
			if err != nil {
				yield(Record{}, err)
				return
			}
			if !yield(*rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Record{}, unavailable("list", err))
		}
	}
}

// ─── Maintenance ─────────────────────────────────────────────────────────────

// PurgeExpired hard-deletes records whose expiry has passed and returns
// the number removed. Expiry is otherwise lazy; this is an optional,
// opportunistic cleanup.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		formatTime(timeNow()),
	)
	if err != nil {
		return 0, unavailable("purge", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Stats returns aggregate counts over live records.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	now := formatTime(timeNow())
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE expires_at IS NULL OR expires_at > ?`, now,
	).Scan(&stats.TotalRecords)
	if err != nil {
		return nil, unavailable("stats", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT namespace FROM records
		WHERE expires_at IS NULL OR expires_at > ?
		GROUP BY namespace ORDER BY MAX(updated_at) DESC`, now,
	)
	if err != nil {
		return nil, unavailable("stats", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, unavailable("stats", err)
		}
		stats.Namespaces = append(stats.Namespaces, ns)
	}
	return stats, rows.Err()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// scanRecord builds a Record from one row of the canonical column set.
// sql.ErrNoRows passes through untouched so callers can map it to
// ErrNotFound; any payload that fails to decode is a CorruptRecordError.
func scanRecord(scan func(dest ...any) error) (*Record, error) {
	var (
		nsPath, key, payload, tags   string
		dataType, expiresAt          *string
		createdAtStr, updatedAtStr   string
	)
	if err := scan(&nsPath, &key, &payload, &dataType, &tags, &createdAtStr, &updatedAtStr, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, unavailable("scan", err)
	}

	corrupt := func(cause error) error {
		return &CorruptRecordError{Namespace: nsPath, Key: key, Cause: cause}
	}

	value, err := decodeValue(payload)
	if err != nil {
		return nil, corrupt(err)
	}
	tagMap, err := decodeTags(tags)
	if err != nil {
		return nil, corrupt(err)
	}
	createdAt, err := parseTime(createdAtStr)
	if err != nil {
		return nil, corrupt(fmt.Errorf("created_at: %w", err))
	}
	updatedAt, err := parseTime(updatedAtStr)
	if err != nil {
		return nil, corrupt(fmt.Errorf("updated_at: %w", err))
	}

	rec := &Record{
		Namespace: splitPath(nsPath),
		Key:       key,
		Value:     value,
		DataType:  derefString(dataType),
		Tags:      tagMap,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	if expiresAt != nil {
		t, err := parseTime(*expiresAt)
		if err != nil {
			return nil, corrupt(fmt.Errorf("expires_at: %w", err))
		}
		rec.ExpiresAt = &t
	}
	return rec, nil
}

func encodeTags(tags map[string]any) (string, error) {
	if len(tags) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeTags(data string) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
