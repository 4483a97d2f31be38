package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/postsapi/internal/config"
	"github.com/geocoder89/postsapi/internal/domain/user"
	"github.com/geocoder89/postsapi/internal/security"
	"github.com/geocoder89/postsapi/internal/utils"
	"github.com/gin-gonic/gin"
)

const (
	MsgUserNotFound = "Usuario no encontrado"
	MsgUserDeleted  = "Usuario eliminado correctamente"
)

type UsersStore interface {
	List(ctx context.Context) ([]user.User, error)
	GetByID(ctx context.Context, id int64) (user.User, error)
	EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error)
	Create(ctx context.Context, u user.User) (user.User, error)
	Update(ctx context.Context, id int64, ch user.Changes) (user.User, error)
	Delete(ctx context.Context, id int64) error
}

type UsersHandler struct {
	repo UsersStore
}

func NewUsersHandler(repo UsersStore) *UsersHandler {
	return &UsersHandler{repo: repo}
}

func emailTakenErrors() []FieldError {
	return []FieldError{{Field: "email", Rule: "unique", Message: RuleMessage("unique", "")}}
}

func (h *UsersHandler) List(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	users, err := h.repo.List(cctx)
	if err != nil {
		RespondInternal(ctx, "Ocurrió un error al obtener los usuarios", err)
		return
	}

	RespondData(ctx, http.StatusOK, users)
}

func (h *UsersHandler) Create(ctx *gin.Context) {
	var req user.CreateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	u, err := createUser(ctx, h.repo, req)
	if err != nil {
		return
	}

	RespondData(ctx, http.StatusCreated, u)
}

type userCreator interface {
	EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error)
	Create(ctx context.Context, u user.User) (user.User, error)
}

// createUser is shared with /register. It writes the failure response itself.
func createUser(ctx *gin.Context, repo userCreator, req user.CreateUserRequest) (user.User, error) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	email := user.NormalizeEmail(req.Email)

	taken, err := repo.EmailTaken(cctx, email, 0)
	if err != nil {
		RespondInternal(ctx, "Ocurrió un error al crear el usuario", err)
		return user.User{}, err
	}
	if taken {
		RespondValidation(ctx, emailTakenErrors())
		return user.User{}, user.ErrEmailTaken
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		RespondInternal(ctx, "Ocurrió un error al crear el usuario", err)
		return user.User{}, err
	}

	u, err := repo.Create(cctx, user.User{
		Name:         req.Name,
		Email:        email,
		PasswordHash: hash,
		Role:         user.RoleUser,
	})
	if err != nil {
		// the pre-check can lose a race, the unique index cannot
		if errors.Is(err, user.ErrEmailTaken) {
			RespondValidation(ctx, emailTakenErrors())
			return user.User{}, err
		}
		RespondInternal(ctx, "Ocurrió un error al crear el usuario", err)
		return user.User{}, err
	}

	return u, nil
}

func (h *UsersHandler) Show(ctx *gin.Context) {
	id, ok := utils.ParseID(ctx.Param("id"))
	if !ok {
		RespondNotFound(ctx, MsgUserNotFound)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.repo.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, MsgUserNotFound)
			return
		}
		RespondInternal(ctx, "Ocurrió un error al obtener el usuario", err)
		return
	}

	RespondData(ctx, http.StatusOK, u)
}

func (h *UsersHandler) Update(ctx *gin.Context) {
	id, ok := utils.ParseID(ctx.Param("id"))
	if !ok {
		RespondNotFound(ctx, MsgUserNotFound)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	current, err := h.repo.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, MsgUserNotFound)
			return
		}
		RespondInternal(ctx, "Ocurrió un error al actualizar el usuario", err)
		return
	}

	var req user.UpdateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	var ch user.Changes
	ch.Name = req.Name

	if req.Email != nil {
		email := user.NormalizeEmail(*req.Email)

		taken, err := h.repo.EmailTaken(cctx, email, id)
		if err != nil {
			RespondInternal(ctx, "Ocurrió un error al actualizar el usuario", err)
			return
		}
		if taken {
			RespondValidation(ctx, emailTakenErrors())
			return
		}
		ch.Email = &email
	}

	if req.Password != nil {
		hash, err := security.HashPassword(*req.Password)
		if err != nil {
			RespondInternal(ctx, "Ocurrió un error al actualizar el usuario", err)
			return
		}
		ch.PasswordHash = &hash
	}

	if ch.Empty() {
		RespondData(ctx, http.StatusOK, current)
		return
	}

	u, err := h.repo.Update(cctx, id, ch)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			RespondNotFound(ctx, MsgUserNotFound)
		case errors.Is(err, user.ErrEmailTaken):
			RespondValidation(ctx, emailTakenErrors())
		default:
			RespondInternal(ctx, "Ocurrió un error al actualizar el usuario", err)
		}
		return
	}

	RespondData(ctx, http.StatusOK, u)
}

func (h *UsersHandler) Delete(ctx *gin.Context) {
	id, ok := utils.ParseID(ctx.Param("id"))
	if !ok {
		RespondNotFound(ctx, MsgUserNotFound)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	err := h.repo.Delete(cctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, MsgUserNotFound)
			return
		}
		RespondInternal(ctx, "Ocurrió un error al eliminar el usuario", err)
		return
	}

	RespondMessage(ctx, http.StatusOK, MsgUserDeleted)
}
