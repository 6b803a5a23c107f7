package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// SQLite driver, registered as "sqlite3".
	_ "github.com/mattn/go-sqlite3"
)

// sqliteSchema holds one row per cache entry. The (ns, id) primary key
// mirrors the tagged Key type.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
	ns    TEXT NOT NULL,
	id    TEXT NOT NULL,
	value BLOB NOT NULL,
	PRIMARY KEY (ns, id)
);`

// SQLiteCache stores cache entries in a single SQLite database file.
// A step up from FileCache when the cache holds many small entries: one file
// on disk, transactional pruning, no directory fan-out.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache opens (or creates) the database file at path and prepares
// the schema.
func NewSQLiteCache(path string) (Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	// WAL lets concurrent readers proceed while a render populates the cache.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

// Get retrieves a value from the cache.
func (c *SQLiteCache) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx,
		"SELECT value FROM entries WHERE ns = ? AND id = ?",
		string(key.Namespace), key.ID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	return data, true, nil
}

// Set stores a value in the cache, replacing any previous value.
func (c *SQLiteCache) Set(ctx context.Context, key Key, data []byte) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO entries (ns, id, value) VALUES (?, ?, ?)
		 ON CONFLICT(ns, id) DO UPDATE SET value = excluded.value`,
		string(key.Namespace), key.ID, data,
	)
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Delete removes a value from the cache.
func (c *SQLiteCache) Delete(ctx context.Context, key Key) error {
	_, err := c.db.ExecContext(ctx,
		"DELETE FROM entries WHERE ns = ? AND id = ?",
		string(key.Namespace), key.ID,
	)
	if err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// Close closes the database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// Prune removes every diagram whose access stamp is older than the cutoff,
// including diagrams that never received a stamp. Stamps are UTC RFC 3339
// blobs, so the cutoff comparison is a bytewise blob compare.
func (c *SQLiteCache) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	cutoff := FormatAccessTime(olderThan)

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune: %w", err)
	}
	defer tx.Rollback()

	const staleFilter = `id NOT IN (
		SELECT id FROM entries WHERE ns = ? AND value >= ?
	)`
	var pruned int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT id) FROM entries WHERE "+staleFilter,
		string(NamespaceAccess), cutoff,
	).Scan(&pruned)
	if err != nil {
		return 0, fmt.Errorf("count stale entries: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM entries WHERE "+staleFilter,
		string(NamespaceAccess), cutoff,
	); err != nil {
		return 0, fmt.Errorf("delete stale entries: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return pruned, nil
}

// Wipe removes every entry.
func (c *SQLiteCache) Wipe(ctx context.Context) (int, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM entries")
	if err != nil {
		return 0, fmt.Errorf("wipe cache: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}

// Ensure SQLiteCache implements Cache and Janitor.
var (
	_ Cache   = (*SQLiteCache)(nil)
	_ Janitor = (*SQLiteCache)(nil)
)
