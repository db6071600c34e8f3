package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/storefront/internal/auth"
	"github.com/geocoder89/storefront/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionsRepo persists refresh-token sessions. Only the token hash is stored.
type SessionsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewSessionsRepo(pool *pgxpool.Pool, prom *observability.Prom) *SessionsRepo {
	return &SessionsRepo{pool: pool, prom: prom}
}

func (r *SessionsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertSession(ctx context.Context, db execer, s auth.Session) error {
	_, err := db.Exec(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		s.ID, s.UserID, s.TokenHash, s.ExpiresAt, s.RevokedAt, s.ReplacedBy, s.CreatedAt,
	)
	return err
}

func (r *SessionsRepo) CreateSession(ctx context.Context, s auth.Session) error {
	return r.observe("sessions.create", func() error {
		return insertSession(ctx, r.pool, s)
	})
}

// RotateSession locks the row to prevent concurrent refresh races.
func (r *SessionsRepo) RotateSession(ctx context.Context, id string, check func(auth.Session) error, next auth.Session) error {
	return r.observe("sessions.rotate", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

		var cur auth.Session
		err = tx.QueryRow(ctx, `
			SELECT id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at
			FROM refresh_tokens
			WHERE id = $1
			FOR UPDATE
		`, id).Scan(
			&cur.ID,
			&cur.UserID,
			&cur.TokenHash,
			&cur.ExpiresAt,
			&cur.RevokedAt,
			&cur.ReplacedBy,
			&cur.CreatedAt,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return auth.ErrInvalidRefresh
			}
			return err
		}

		if err := check(cur); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE refresh_tokens
			SET revoked_at = NOW(), replaced_by = $2
			WHERE id = $1
		`, id, next.ID); err != nil {
			return err
		}

		if err := insertSession(ctx, tx, next); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
}

func (r *SessionsRepo) RevokeSession(ctx context.Context, id string) error {
	return r.observe("sessions.revoke", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE refresh_tokens
			SET revoked_at = NOW()
			WHERE id = $1 AND revoked_at IS NULL
		`, id)
		return err
	})
}
