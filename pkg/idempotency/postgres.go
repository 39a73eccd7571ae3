package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dwikikusuma/shoping-market/pkg/postgres"
)

// PostgresStore is backed by the idempotency_keys table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) PutIfAbsent(ctx context.Context, scope, key string, value []byte, ttl time.Duration) ([]byte, bool, error) {
	expiresAt := time.Now().Add(ttl)

	// Replaces the row only when the previous holder has expired.
	var inserted bool
	err := s.pool.QueryRow(ctx, `
		INSERT INTO idempotency_keys (scope, key, value, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (scope, key) DO UPDATE
			SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, created_at = now()
			WHERE idempotency_keys.expires_at <= now()
		RETURNING true`, scope, key, value, expiresAt).Scan(&inserted)
	if err == nil {
		return nil, true, nil
	}
	if !postgres.IsNoRows(err) {
		return nil, false, fmt.Errorf("reserve idempotency key: %w", err)
	}

	existing, err := s.Get(ctx, scope, key)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *PostgresStore) Get(ctx context.Context, scope, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `
		SELECT value FROM idempotency_keys
		WHERE scope = $1 AND key = $2 AND expires_at > now()`, scope, key).Scan(&value)
	if postgres.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	return value, nil
}

func (s *PostgresStore) Put(ctx context.Context, scope, key string, value []byte, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (scope, key, value, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (scope, key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		scope, key, value, time.Now().Add(ttl))
	if err != nil {
		return fmt.Errorf("put idempotency key: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, scope, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE scope = $1 AND key = $2`, scope, key); err != nil {
		return fmt.Errorf("delete idempotency key: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency keys: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
