package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`PRAGMA journal_mode=WAL;`,
	`PRAGMA busy_timeout=5000;`,
	`CREATE TABLE IF NOT EXISTS checkpoints (
		key TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_checkpoints_updated ON checkpoints(updated_at DESC);`,
}

// sqliteBackend stores checkpoints in an embedded database file.
type sqliteBackend struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(ctx context.Context, path string) (Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; sqlite serializes writes anyway.
	db.SetMaxOpenConns(1)

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite schema: %w", err)
		}
	}
	return newStore(&sqliteBackend{db: db}), nil
}

func (b *sqliteBackend) name() string { return BackendSQLite }

func (b *sqliteBackend) load(ctx context.Context, key string) ([]byte, error) {
	var data string
	err := b.db.QueryRowContext(ctx, `SELECT data FROM checkpoints WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get: %w", err)
	}
	return []byte(data), nil
}

func (b *sqliteBackend) save(ctx context.Context, key string, data []byte, updated int64) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO checkpoints (key, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, string(data), updated)
	if err != nil {
		return fmt.Errorf("sqlite set: %w", err)
	}
	return nil
}

func (b *sqliteBackend) remove(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite delete: %w", err)
	}
	return nil
}

func (b *sqliteBackend) keys(ctx context.Context, limit int) ([]string, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT key FROM checkpoints ORDER BY updated_at DESC, key ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite list: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("sqlite list: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (b *sqliteBackend) ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *sqliteBackend) close() error {
	return b.db.Close()
}
