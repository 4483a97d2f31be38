package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/postsapi/internal/domain/refresh"
	"github.com/geocoder89/postsapi/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RefreshTokensRepo struct {
	instrumented
	pool *pgxpool.Pool
}

func NewRefreshTokensRepo(pool *pgxpool.Pool, prom *observability.Prom) *RefreshTokensRepo {
	return &RefreshTokensRepo{instrumented: instrumented{prom: prom}, pool: pool}
}

func (r *RefreshTokensRepo) Create(ctx context.Context, t refresh.Token) error {
	err := r.observe(ctx, "refresh_tokens.create", func(ctx context.Context) error {
		return insertRefreshToken(ctx, r.pool, t)
	})
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// Rotate validates the presented token under a row lock, revokes it and stores
// its replacement, all in one transaction.
func (r *RefreshTokensRepo) Rotate(ctx context.Context, oldID, presentedHash string, next refresh.Token) error {
	return r.observe(ctx, "refresh_tokens.rotate", func(ctx context.Context) error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}

		defer func() { _ = tx.Rollback(ctx) }()

		current, err := getForUpdate(ctx, tx, oldID)
		if err != nil {
			return err
		}

		if err := current.Check(presentedHash, next.UserID, time.Now().UTC()); err != nil {
			return err
		}

		if err := revoke(ctx, tx, oldID, &next.ID); err != nil {
			return err
		}

		if err := insertRefreshToken(ctx, tx, next); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
}

// Revoke is idempotent: revoking an unknown or already revoked token is not an error.
func (r *RefreshTokensRepo) Revoke(ctx context.Context, id string) error {
	return r.observe(ctx, "refresh_tokens.revoke", func(ctx context.Context) error {
		return revoke(ctx, r.pool, id, nil)
	})
}

// pgxExecutor is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgxExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func insertRefreshToken(ctx context.Context, db pgxExecutor, t refresh.Token) error {
	_, err := db.Exec(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		`,
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.RevokedAt, t.ReplacedBy, t.CreatedAt,
	)
	return err
}

// Locks the row to prevent concurrent refresh races

func getForUpdate(ctx context.Context, tx pgx.Tx, id string) (refresh.Token, error) {
	var t refresh.Token

	err := tx.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at
		FROM refresh_tokens
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(
		&t.ID,
		&t.UserID,
		&t.TokenHash,
		&t.ExpiresAt,
		&t.RevokedAt,
		&t.ReplacedBy,
		&t.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return refresh.Token{}, refresh.ErrNotFound
		}

		return refresh.Token{}, err
	}

	return t, nil
}

func revoke(ctx context.Context, db pgxExecutor, id string, replacedBy *string) error {
	_, err := db.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = NOW(), replaced_by = COALESCE($2, replaced_by)
		WHERE id = $1 AND revoked_at IS NULL
	`, id, replacedBy)

	return err
}
