package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS checkpoints (
		key TEXT PRIMARY KEY,
		state JSONB NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_checkpoints_updated ON checkpoints (updated_at DESC)`,
}

// postgresBackend stores checkpoints in a relational server over a pooled
// connection.
type postgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and creates the table if needed.
func NewPostgres(ctx context.Context, dsn string) (Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("init postgres schema: %w", err)
		}
	}
	return newStore(&postgresBackend{pool: pool}), nil
}

func (b *postgresBackend) name() string { return BackendPostgres }

func (b *postgresBackend) load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.pool.QueryRow(ctx, `SELECT state FROM checkpoints WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get: %w", err)
	}
	return data, nil
}

func (b *postgresBackend) save(ctx context.Context, key string, data []byte, updated int64) error {
	_, err := b.pool.Exec(ctx,
		`INSERT INTO checkpoints (key, state, updated_at) VALUES ($1, $2::jsonb, $3)
		 ON CONFLICT (key) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		key, string(data), updated)
	if err != nil {
		return fmt.Errorf("postgres set: %w", err)
	}
	return nil
}

func (b *postgresBackend) remove(ctx context.Context, key string) error {
	if _, err := b.pool.Exec(ctx, `DELETE FROM checkpoints WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres delete: %w", err)
	}
	return nil
}

func (b *postgresBackend) keys(ctx context.Context, limit int) ([]string, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT key FROM checkpoints ORDER BY updated_at DESC, key ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres list: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres list: %w", err)
	}
	return out, nil
}

func (b *postgresBackend) ping(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

func (b *postgresBackend) close() error {
	b.pool.Close()
	return nil
}
