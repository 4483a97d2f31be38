package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/postsapi/internal/domain/post"
	"github.com/geocoder89/postsapi/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postColumns = `id, titulo, descripcion, user_id, created_at, updated_at`

// PostsRepo only exposes owner-scoped statements: every read and write filters
// on (id, user_id) in one predicate, so "missing" and "not yours" look the same.
type PostsRepo struct {
	instrumented
	pool *pgxpool.Pool
}

func NewPostsRepo(pool *pgxpool.Pool, prom *observability.Prom) *PostsRepo {
	return &PostsRepo{instrumented: instrumented{prom: prom}, pool: pool}
}

func scanPost(row pgx.Row, p *post.Post) error {
	return row.Scan(&p.ID, &p.Titulo, &p.Descripcion, &p.UserID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *PostsRepo) ListByOwner(ctx context.Context, ownerID int64) ([]post.Post, error) {
	out := make([]post.Post, 0)

	err := r.observe(ctx, "posts.list_by_owner", func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, `SELECT `+postColumns+` FROM posts WHERE user_id = $1 ORDER BY id ASC`, ownerID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var p post.Post
			if err := scanPost(rows, &p); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	return out, nil
}

func (r *PostsRepo) Create(ctx context.Context, ownerID int64, req post.CreatePostRequest) (post.Post, error) {
	now := time.Now().UTC()
	p := post.Post{
		Titulo:      req.Titulo,
		Descripcion: req.Descripcion,
		UserID:      ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := r.observe(ctx, "posts.create", func(ctx context.Context) error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO posts (titulo, descripcion, user_id, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING id`,
			p.Titulo, p.Descripcion, p.UserID, p.CreatedAt, p.UpdatedAt,
		).Scan(&p.ID)
	})

	if err != nil {
		return post.Post{}, fmt.Errorf("create post: %w", err)
	}

	return p, nil
}

func (r *PostsRepo) GetForOwner(ctx context.Context, id, ownerID int64) (post.Post, error) {
	var p post.Post

	err := r.observe(ctx, "posts.get_for_owner", func(ctx context.Context) error {
		return scanPost(r.pool.QueryRow(ctx,
			`SELECT `+postColumns+` FROM posts WHERE id = $1 AND user_id = $2`, id, ownerID), &p)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return post.Post{}, post.ErrNotFound
		}
		return post.Post{}, fmt.Errorf("get post %d: %w", id, err)
	}

	return p, nil
}

func (r *PostsRepo) UpdateForOwner(ctx context.Context, id, ownerID int64, req post.UpdatePostRequest) (post.Post, error) {
	var p post.Post

	err := r.observe(ctx, "posts.update_for_owner", func(ctx context.Context) error {
		return scanPost(r.pool.QueryRow(ctx,
			`UPDATE posts
			SET titulo = $3,
				descripcion = $4,
				updated_at = NOW()
			WHERE id = $1 AND user_id = $2
			RETURNING `+postColumns,
			id, ownerID, req.Titulo, req.Descripcion,
		), &p)
	})

	if err != nil {
		// if there are no rows matching the id and owner
		if errors.Is(err, pgx.ErrNoRows) {
			return post.Post{}, post.ErrNotFound
		}
		return post.Post{}, fmt.Errorf("update post %d: %w", id, err)
	}

	return p, nil
}

func (r *PostsRepo) DeleteForOwner(ctx context.Context, id, ownerID int64) error {
	var affected int64

	err := r.observe(ctx, "posts.delete_for_owner", func(ctx context.Context) error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1 AND user_id = $2`, id, ownerID)
		affected = tag.RowsAffected()
		return err
	})

	if err != nil {
		return fmt.Errorf("delete post %d: %w", id, err)
	}

	// if no rows were deleted as a result return a not found error
	if affected == 0 {
		return post.ErrNotFound
	}

	return nil
}
