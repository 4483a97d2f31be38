package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/postsapi/internal/auth"
	"github.com/geocoder89/postsapi/internal/config"
	"github.com/geocoder89/postsapi/internal/domain/refresh"
	"github.com/geocoder89/postsapi/internal/domain/user"
	"github.com/geocoder89/postsapi/internal/http/middlewares"
	"github.com/geocoder89/postsapi/internal/security"
	"github.com/gin-gonic/gin"
)

const (
	MsgInvalidCredentials = "Credenciales inválidas"
	MsgInvalidSession     = "Sesión inválida o expirada"
	MsgLoggedOut          = "Sesión cerrada"

	refreshCookieName = "refresh_token"
	refreshCookiePath = "/auth"
)

type AccountStore interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error)
	Create(ctx context.Context, u user.User) (user.User, error)
	Delete(ctx context.Context, id int64) error
}

type RefreshTokenStore interface {
	Create(ctx context.Context, t refresh.Token) error
	// Rotate atomically retires oldID and stores next, failing if oldID is not
	// live or does not match presentedHash.
	Rotate(ctx context.Context, oldID, presentedHash string, next refresh.Token) error
	Revoke(ctx context.Context, id string) error
}

// AccessRevoker remembers logged-out access tokens until they expire.
type AccessRevoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
}

type AuthHandler struct {
	users        AccountStore
	jwt          *auth.Manager
	refreshStore RefreshTokenStore
	revoker      AccessRevoker
	cfg          config.Config
	onFail       func(reason string)
}

func NewAuthHandler(users AccountStore, jwtManager *auth.Manager, refreshStore RefreshTokenStore, revoker AccessRevoker, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		users:        users,
		jwt:          jwtManager,
		refreshStore: refreshStore,
		revoker:      revoker,
		cfg:          cfg,
	}
}

func (h *AuthHandler) OnFailure(fn func(reason string)) *AuthHandler {
	h.onFail = fn
	return h
}

type tokenResponse struct {
	User        user.User `json:"user"`
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
}

func (h *AuthHandler) failed(ctx *gin.Context, reason, message string) {
	if h.onFail != nil {
		h.onFail(reason)
	}
	RespondUnauthorized(ctx, message)
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.CreateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	u, err := createUser(ctx, h.users, req)
	if err != nil {
		return
	}

	if !h.issueSession(ctx, u, http.StatusCreated) {
		// a registration without a session leaves no account behind
		cctx, cancel := config.WithTimeout(context.WithoutCancel(ctx.Request.Context()), 3*time.Second)
		defer cancel()

		if err := h.users.Delete(cctx, u.ID); err != nil {
			slog.Default().ErrorContext(cctx, "rollback of registered user failed", "user_id", u.ID, "err", err)
		}
	}
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, user.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			h.failed(ctx, "bad_credentials", MsgInvalidCredentials)
			return
		}
		RespondInternal(ctx, "No se pudo iniciar sesión", err)
		return
	}

	err = security.CheckPassword(foundUser.PasswordHash, req.Password)
	if err != nil {
		h.failed(ctx, "bad_credentials", MsgInvalidCredentials)
		return
	}

	h.issueSession(ctx, foundUser, http.StatusOK)
}

func (h *AuthHandler) Refresh(ctx *gin.Context) {
	raw, err := ctx.Cookie(refreshCookieName)

	if err != nil || raw == "" {
		h.failed(ctx, "no_refresh", MsgInvalidSession)
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)

	if err != nil {
		h.failed(ctx, "invalid_refresh", MsgInvalidSession)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	// reload the user so a role change or deletion takes effect on refresh
	u, err := h.users.GetByID(cctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			h.failed(ctx, "invalid_refresh", MsgInvalidSession)
			return
		}
		RespondInternal(ctx, "No se pudo renovar la sesión", err)
		return
	}

	newRaw, newJTI, newExpiresAt, err := h.jwt.GenerateRefreshToken(u.ID, u.Email, u.Role)
	if err != nil {
		RespondInternal(ctx, "No se pudo renovar la sesión", err)
		return
	}

	next := refresh.Token{
		ID:        newJTI,
		UserID:    u.ID,
		TokenHash: h.jwt.HashRefreshToken(newRaw),
		ExpiresAt: newExpiresAt,
		CreatedAt: time.Now().UTC(),
	}

	err = h.refreshStore.Rotate(cctx, claims.ID, h.jwt.HashRefreshToken(raw), next)
	if err != nil {
		if isRefreshRejection(err) {
			h.failed(ctx, "invalid_refresh", MsgInvalidSession)
			return
		}
		RespondInternal(ctx, "No se pudo renovar la sesión", err)
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		RespondInternal(ctx, "No se pudo renovar la sesión", err)
		return
	}

	h.setRefreshCookie(ctx, newRaw, newExpiresAt)

	RespondData(ctx, http.StatusOK, h.tokenBody(u, accessToken))
}

func isRefreshRejection(err error) bool {
	return errors.Is(err, refresh.ErrNotFound) ||
		errors.Is(err, refresh.ErrRevoked) ||
		errors.Is(err, refresh.ErrExpired) ||
		errors.Is(err, refresh.ErrMismatch)
}

// Logout revokes the refresh cookie, if any, and the access token used for
// this request. It always succeeds for an authenticated caller.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if raw, err := ctx.Cookie(refreshCookieName); err == nil && raw != "" {
		if claims, err := h.jwt.VerifyRefreshToken(raw); err == nil {
			if err := h.refreshStore.Revoke(cctx, claims.ID); err != nil {
				slog.Default().WarnContext(cctx, "refresh token revoke failed", "err", err)
			}
		}
	}

	if jti, exp, ok := middlewares.TokenFromContext(ctx); ok && h.revoker != nil {
		if err := h.revoker.Revoke(cctx, jti, time.Until(exp)); err != nil {
			slog.Default().WarnContext(cctx, "access token revoke failed", "err", err)
		}
	}

	h.clearRefreshCookie(ctx)
	RespondMessage(ctx, http.StatusOK, MsgLoggedOut)
}

// Me returns the authenticated principal.
func (h *AuthHandler) Me(ctx *gin.Context) {
	userID, ok := principal(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)
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

// Helper functions

// issueSession writes the token response, or the failure, and reports which.
func (h *AuthHandler) issueSession(ctx *gin.Context, u user.User, status int) bool {
	accessToken, err := h.jwt.GenerateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		RespondInternal(ctx, "No se pudo generar el token de acceso", err)
		return false
	}

	rawRefreshToken, jti, expiresAt, err := h.jwt.GenerateRefreshToken(u.ID, u.Email, u.Role)
	if err != nil {
		RespondInternal(ctx, "No se pudo generar el token de renovación", err)
		return false
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	err = h.refreshStore.Create(cctx, refresh.Token{
		ID:        jti,
		UserID:    u.ID,
		TokenHash: h.jwt.HashRefreshToken(rawRefreshToken),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		RespondInternal(ctx, "No se pudo crear la sesión", err)
		return false
	}

	h.setRefreshCookie(ctx, rawRefreshToken, expiresAt)

	RespondData(ctx, status, h.tokenBody(u, accessToken))
	return true
}

func (h *AuthHandler) tokenBody(u user.User, accessToken string) tokenResponse {
	return tokenResponse{
		User:        u,
		AccessToken: accessToken,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.jwt.AccessTTL().Seconds()),
	}
}

func (h *AuthHandler) setRefreshCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	secure := h.cfg.Env == "prod"

	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		refreshCookieName,
		raw,
		maxAge,
		refreshCookiePath,
		"",
		secure,
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearRefreshCookie(ctx *gin.Context) {
	secure := h.cfg.Env == "prod"
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(
		refreshCookieName,
		"",
		-1,
		refreshCookiePath,
		"",
		secure,
		true,
	)
}
