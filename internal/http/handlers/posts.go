package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/postsapi/internal/config"
	"github.com/geocoder89/postsapi/internal/domain/post"
	"github.com/geocoder89/postsapi/internal/http/middlewares"
	"github.com/geocoder89/postsapi/internal/utils"
	"github.com/gin-gonic/gin"
)

const (
	MsgPostNotFound = "Post no encontrado"
	MsgPostDeleted  = "Post eliminado"
)

// Every method is scoped to an owner. A post owned by someone else behaves
// exactly like a missing one.
type PostsStore interface {
	ListByOwner(ctx context.Context, ownerID int64) ([]post.Post, error)
	Create(ctx context.Context, ownerID int64, req post.CreatePostRequest) (post.Post, error)
	GetForOwner(ctx context.Context, id, ownerID int64) (post.Post, error)
	UpdateForOwner(ctx context.Context, id, ownerID int64, req post.UpdatePostRequest) (post.Post, error)
	DeleteForOwner(ctx context.Context, id, ownerID int64) error
}

type PostsHandler struct {
	repo PostsStore
}

func NewPostsHandler(repo PostsStore) *PostsHandler {
	return &PostsHandler{repo: repo}
}

// principal resolves the caller or writes the 401 itself.
func principal(ctx *gin.Context) (int64, bool) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, middlewares.MsgUnauthenticated)
		return 0, false
	}
	return userID, true
}

func (h *PostsHandler) List(ctx *gin.Context) {
	userID, ok := principal(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	posts, err := h.repo.ListByOwner(cctx, userID)
	if err != nil {
		RespondInternal(ctx, "Ocurrió un error al obtener los posts", err)
		return
	}

	RespondData(ctx, http.StatusOK, posts)
}

func (h *PostsHandler) Create(ctx *gin.Context) {
	userID, ok := principal(ctx)
	if !ok {
		return
	}

	var req post.CreatePostRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	p, err := h.repo.Create(cctx, userID, req)
	if err != nil {
		RespondInternal(ctx, "Ocurrió un error al crear el post", err)
		return
	}

	RespondData(ctx, http.StatusCreated, p)
}

func (h *PostsHandler) Show(ctx *gin.Context) {
	userID, ok := principal(ctx)
	if !ok {
		return
	}

	id, ok := utils.ParseID(ctx.Param("id"))
	if !ok {
		RespondNotFound(ctx, MsgPostNotFound)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	p, err := h.repo.GetForOwner(cctx, id, userID)
	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			RespondNotFound(ctx, MsgPostNotFound)
			return
		}
		RespondInternal(ctx, "Ocurrió un error al obtener el post", err)
		return
	}

	RespondData(ctx, http.StatusOK, p)
}

func (h *PostsHandler) Update(ctx *gin.Context) {
	userID, ok := principal(ctx)
	if !ok {
		return
	}

	id, ok := utils.ParseID(ctx.Param("id"))
	if !ok {
		RespondNotFound(ctx, MsgPostNotFound)
		return
	}

	var req post.UpdatePostRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	p, err := h.repo.UpdateForOwner(cctx, id, userID, req)
	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			RespondNotFound(ctx, MsgPostNotFound)
			return
		}
		RespondInternal(ctx, "Ocurrió un error al actualizar el post", err)
		return
	}

	RespondData(ctx, http.StatusOK, p)
}

func (h *PostsHandler) Delete(ctx *gin.Context) {
	userID, ok := principal(ctx)
	if !ok {
		return
	}

	id, ok := utils.ParseID(ctx.Param("id"))
	if !ok {
		RespondNotFound(ctx, MsgPostNotFound)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	err := h.repo.DeleteForOwner(cctx, id, userID)
	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			RespondNotFound(ctx, MsgPostNotFound)
			return
		}
		RespondInternal(ctx, "Ocurrió un error al eliminar el post", err)
		return
	}

	RespondMessage(ctx, http.StatusOK, MsgPostDeleted)
}
