// Package sqlitestore implements the cache backing-store contract on
// SQLite, for deployments that want routing results to survive a
// restart. Expiry is still enforced on read; there is no durability
// guarantee beyond best effort.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pulsewatch/airouter/pkg/cache"

	_ "modernc.org/sqlite"
)

const cacheTable = "airouter_cache"

// Store persists cache entries in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates a Store backed by the SQLite database at path and ensures
// the schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return New(db)
}

// New creates a Store on an existing database handle and ensures the
// schema.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER NOT NULL,
			last_accessed INTEGER NOT NULL
		);`, cacheTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_expires ON %s(expires_at);`, cacheTable, cacheTable),
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure cache schema: %w", err)
		}
	}
	return nil
}

// Get implements cache.Store. Expired rows are deleted and reported as
// a miss.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT value, expires_at FROM %s WHERE key = ?`, cacheTable), key).
		Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, cache.ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	now := time.Now()
	if now.UnixMilli() > expiresAt {
		_ = s.Delete(ctx, key)
		return nil, cache.ErrMiss
	}

	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET last_accessed = ? WHERE key = ?`, cacheTable),
		now.UnixMilli(), key)
	if err != nil {
		return nil, fmt.Errorf("cache touch: %w", err)
	}
	return value, nil
}

// Set implements cache.Store.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (key, value, expires_at, last_accessed)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				expires_at = excluded.expires_at,
				last_accessed = excluded.last_accessed`, cacheTable),
		key, value, now.Add(ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Delete implements cache.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, cacheTable), key)
	if err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Cleanup removes all expired rows and returns how many were removed.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE expires_at < ?`, cacheTable),
		time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("cache cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
