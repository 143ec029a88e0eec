package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/ainexus/ainexus/gateway/pkg/models"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PostgresStore shares windows between gateway replicas. Each increment is a
// single upsert, so the row lock on the client key is the only
// serialization point.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to connURL and creates the window table if needed.
func NewPostgresStore(ctx context.Context, connURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("rate store connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("rate store ping: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("rate store migrate: %w", err)
	}

	log.Info().Msg("Postgres rate store initialized")
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS rate_windows (
			client_key   TEXT PRIMARY KEY,
			count        INTEGER NOT NULL,
			window_start TIMESTAMPTZ NOT NULL
		);
	`)
	return err
}

const incrementSQL = `
	INSERT INTO rate_windows (client_key, count, window_start)
	VALUES ($1, 1, $2)
	ON CONFLICT (client_key) DO UPDATE SET
		count = CASE
			WHEN rate_windows.window_start + make_interval(secs => $3) < $2 THEN 1
			ELSE rate_windows.count + 1
		END,
		window_start = CASE
			WHEN rate_windows.window_start + make_interval(secs => $3) < $2 THEN $2
			ELSE rate_windows.window_start
		END
	RETURNING count, window_start`

// Increment implements contracts.RateStore.
func (s *PostgresStore) Increment(ctx context.Context, key string, size time.Duration, now time.Time) (models.RateWindow, error) {
	var (
		count int
		start time.Time
	)
	err := s.pool.QueryRow(ctx, incrementSQL, key, now.UTC(), size.Seconds()).Scan(&count, &start)
	if err != nil {
		return models.RateWindow{}, fmt.Errorf("increment %s: %w", key, err)
	}
	return models.RateWindow{Count: count, WindowStart: start, WindowSize: size}, nil
}

// Sweep deletes windows that ended before now.
func (s *PostgresStore) Sweep(ctx context.Context, size time.Duration, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM rate_windows WHERE window_start + make_interval(secs => $1) < $2`,
		size.Seconds(), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep rate windows: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
