package users

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides access to the mirrored user directory.
type Repository interface {
	List(ctx context.Context) ([]User, error)
	UpsertBatch(ctx context.Context, entries []User) error
}

// PGRepository is the PostgreSQL implementation of Repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// List returns all mirrored users ordered by email.
func (r *PGRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT external_id, email, name, email_verified, invited, roles, last_login, synced_at
		FROM users
		ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ExternalID, &u.Email, &u.Name, &u.EmailVerified, &u.Invited, &u.Roles, &u.LastLogin, &u.SyncedAt); err != nil {
			return nil, err
		}
		entries = append(entries, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// UpsertBatch writes a directory snapshot into the mirror. Existing
// rows are updated in place; rows for users no longer present at the
// provider are left behind until the next full reconciliation.
func (r *PGRepository) UpsertBatch(ctx context.Context, entries []User) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	now := time.Now()
	for _, u := range entries {
		roles := u.Roles
		if roles == nil {
			roles = []string{}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO users (external_id, email, name, email_verified, invited, roles, last_login, synced_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (external_id) DO UPDATE SET
				email = EXCLUDED.email,
				name = EXCLUDED.name,
				email_verified = EXCLUDED.email_verified,
				invited = EXCLUDED.invited,
				roles = EXCLUDED.roles,
				last_login = EXCLUDED.last_login,
				synced_at = EXCLUDED.synced_at`,
			u.ExternalID, u.Email, u.Name, u.EmailVerified, u.Invited, roles, u.LastLogin, now)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
