package auth

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository records login sessions for auditing. The cookie session
// itself lives in Redis; these rows only track who logged in when.
type Repository interface {
	RecordLogin(ctx context.Context, sessionID, email string, expiresAt time.Time, ip, ua string) error
	RemoveLogin(ctx context.Context, sessionID string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// RecordLogin inserts a login audit row.
func (r *PGRepository) RecordLogin(ctx context.Context, sessionID, email string, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, email, created_at, expires_at, ip, ua)
		VALUES ($1, $2, NOW(), $3, NULLIF($4, ''), NULLIF($5, ''))
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, expires_at = EXCLUDED.expires_at`,
		sessionID, email, expiresAt.UTC(), ip, ua)
	return err
}

// RemoveLogin deletes the audit row on logout.
func (r *PGRepository) RemoveLogin(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	return err
}

var _ Repository = (*PGRepository)(nil)
