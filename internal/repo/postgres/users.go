package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/postsapi/internal/domain/user"
	"github.com/geocoder89/postsapi/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

type UsersRepo struct {
	instrumented
	pool *pgxpool.Pool
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{instrumented: instrumented{prom: prom}, pool: pool}
}

func scanUser(row pgx.Row, u *user.User) error {
	return row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	out := make([]user.User, 0)

	err := r.observe(ctx, "users.list", func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var u user.User
			if err := scanUser(rows, &u); err != nil {
				return err
			}
			out = append(out, u)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return out, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	var u user.User

	err := r.observe(ctx, "users.get_by_id", func(ctx context.Context) error {
		return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id), &u)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, fmt.Errorf("get user %d: %w", id, err)
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe(ctx, "users.get_by_email", func(ctx context.Context) error {
		return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email), &u)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// EmailTaken reports whether another user (id != exceptID) owns email.
// Pass exceptID 0 when creating.
func (r *UsersRepo) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	var exists bool

	err := r.observe(ctx, "users.email_taken", func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, `SELECT EXISTS(
			SELECT 1 FROM users WHERE email = $1 AND id <> $2
		)`, email, exceptID).Scan(&exists)
	})

	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}

	return exists, nil
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	err := r.observe(ctx, "users.create", func(ctx context.Context) error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO users (name, email, password_hash, role, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id`,
			u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt,
		).Scan(&u.ID)
	})

	if err != nil {
		// the unique index is the final word on concurrent creates
		if isConstraintViolation(err, usersEmailConstraint) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, fmt.Errorf("create user: %w", err)
	}

	return u, nil
}

// Update applies every non-nil column in a single statement.
func (r *UsersRepo) Update(ctx context.Context, id int64, ch user.Changes) (user.User, error) {
	var u user.User

	err := r.observe(ctx, "users.update", func(ctx context.Context) error {
		return scanUser(r.pool.QueryRow(ctx,
			`UPDATE users
			SET name = COALESCE($2, name),
				email = COALESCE($3, email),
				password_hash = COALESCE($4, password_hash),
				updated_at = NOW()
			WHERE id = $1
			RETURNING `+userColumns,
			id, ch.Name, ch.Email, ch.PasswordHash,
		), &u)
	})

	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return user.User{}, user.ErrNotFound
		case isConstraintViolation(err, usersEmailConstraint):
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, fmt.Errorf("update user %d: %w", id, err)
	}

	return u, nil
}

func (r *UsersRepo) Delete(ctx context.Context, id int64) error {
	var affected int64

	err := r.observe(ctx, "users.delete", func(ctx context.Context) error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		affected = tag.RowsAffected()
		return err
	})

	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}

	if affected == 0 {
		return user.ErrNotFound
	}

	return nil
}
