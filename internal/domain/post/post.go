package post

import (
	"errors"
	"time"
)

type Post struct {
	ID          int64     `json:"id"`
	Titulo      string    `json:"titulo"`
	Descripcion string    `json:"descripcion"`
	UserID      int64     `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ErrNotFound covers both a missing post and a post owned by someone else.
var ErrNotFound = errors.New("post not found")

// The owner never comes from the body: there is deliberately no user_id field.
type CreatePostRequest struct {
	Titulo      string `json:"titulo" binding:"required,notblank,max=255"`
	Descripcion string `json:"descripcion" binding:"required,notblank"`
}

// a full update payload, same rules as create.
type UpdatePostRequest struct {
	Titulo      string `json:"titulo" binding:"required,notblank,max=255"`
	Descripcion string `json:"descripcion" binding:"required,notblank"`
}
