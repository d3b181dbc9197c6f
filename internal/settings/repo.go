package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-app/gatehouse/internal/platform/db"
	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// Repository defines persistence operations for application settings.
type Repository interface {
	GetByKey(ctx context.Context, key string) (*Setting, error)
	Upsert(ctx context.Context, key, value, description string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetByKey fetches a setting row, returning shared.ErrNotFound when the
// key has never been written.
func (r *PGRepository) GetByKey(ctx context.Context, key string) (*Setting, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, key, value, description, created_at, updated_at FROM app_settings WHERE key = $1`, key)
	var s Setting
	if err := row.Scan(&s.ID, &s.Key, &s.Value, &s.Description, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Upsert writes the value for key inside a single transaction, updating
// the existing row or inserting a new one.
func (r *PGRepository) Upsert(ctx context.Context, key, value, description string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO app_settings (key, value, description, created_at, updated_at)
			VALUES ($1, $2, $3, NOW(), NOW())
			ON CONFLICT (key) DO UPDATE
			SET value = EXCLUDED.value, updated_at = NOW()`,
			key, value, description)
		return err
	})
}

var _ Repository = (*PGRepository)(nil)
