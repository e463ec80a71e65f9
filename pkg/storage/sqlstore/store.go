// Package sqlstore provides a SQLite-backed storage.Store.
//
// Values live in a single table:
//
//	CREATE TABLE statesync_kv (
//	    key        TEXT PRIMARY KEY,
//	    value      TEXT NOT NULL,
//	    updated_at INTEGER NOT NULL
//	);
//
// The table is created on open if it does not exist.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vango-dev/statesync/pkg/storage"
)

// DefaultTable is the table used unless WithTable is given.
const DefaultTable = "statesync_kv"

// tableName matches the identifiers accepted by WithTable; the name is
// interpolated into SQL.
var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store persists keyed values in SQLite.
type Store struct {
	db     *sql.DB
	table  string
	ownsDB bool
	closed atomic.Bool
}

// Option configures a Store.
type Option func(*config)

type config struct {
	table string
}

// WithTable sets the table name. Default: "statesync_kv". The name must be
// a plain identifier (letters, digits, underscores, not starting with a
// digit).
func WithTable(name string) Option {
	return func(c *config) {
		c.table = name
	}
}

// Open opens (or creates) the SQLite database at path. ":memory:" opens a
// private in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlstore: path is required")
	}

	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping sqlite db: %w", err)
	}

	s, err := New(context.Background(), db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// New wraps an open database and creates the table if needed. Close does
// not close db.
func New(ctx context.Context, db *sql.DB, opts ...Option) (*Store, error) {
	cfg := &config{table: DefaultTable}
	for _, opt := range opts {
		opt(cfg)
	}
	if !tableName.MatchString(cfg.table) {
		return nil, fmt.Errorf("sqlstore: invalid table name %q", cfg.table)
	}

	s := &Store{db: db, table: cfg.table}
	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`, s.table)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("sqlstore: create table %s: %w", s.table, err)
	}
	return s, nil
}

// Get implements storage.Store.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, storage.ErrClosed
	}

	var value string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT value FROM %s WHERE key = ?`, s.table), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlstore: get %q: %w", key, err)
	}
	return value, true, nil
}

// Set implements storage.Store.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, s.table), key, value, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("sqlstore: set %q: %w", key, err)
	}
	return nil
}

// Remove implements storage.Store.
func (s *Store) Remove(ctx context.Context, key string) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}

	if _, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, s.table), key); err != nil {
		return fmt.Errorf("sqlstore: remove %q: %w", key, err)
	}
	return nil
}

// Keys returns all stored keys in sorted order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, storage.ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT key FROM %s ORDER BY key`, s.table))
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("sqlstore: scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close marks the store closed. The database is closed only if the store
// opened it.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
