package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dwikikusuma/shoping-market/internal/apperr"
	"github.com/dwikikusuma/shoping-market/internal/checkout/domain"
	"github.com/dwikikusuma/shoping-market/pkg/postgres"
)

// SessionRepo keeps the whole session document in a jsonb column; step and
// expiry are duplicated into columns for purging and inspection.
type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

func (r *SessionRepo) Create(ctx context.Context, s domain.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO checkout_sessions (id, customer_id, step, data, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		s.ID, s.CustomerID, string(s.Step), data, s.ExpiresAt, s.CreatedAt)
	if postgres.IsUniqueViolation(err) {
		return fmt.Errorf("%w: session %s exists", apperr.ErrConflict, s.ID)
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, id string) (domain.Session, error) {
	if uuid.Validate(id) != nil {
		return domain.Session{}, apperr.NotFound("checkout session", id)
	}
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM checkout_sessions WHERE id = $1`, id).Scan(&data)
	if postgres.IsNoRows(err) {
		return domain.Session{}, apperr.NotFound("checkout session", id)
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}

	var s domain.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.Session{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return s, nil
}

func (r *SessionRepo) Save(ctx context.Context, s domain.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE checkout_sessions
		SET step = $2, data = $3, expires_at = $4, cancelled = $5, updated_at = now()
		WHERE id = $1`,
		s.ID, string(s.Step), data, s.ExpiresAt, s.Cancelled())
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("checkout session", s.ID)
	}
	return nil
}

func (r *SessionRepo) Purge(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM checkout_sessions WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
