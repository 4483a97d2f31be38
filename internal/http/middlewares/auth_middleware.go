package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/postsapi/internal/actorctx"
	"github.com/geocoder89/postsapi/internal/auth"
	"github.com/geocoder89/postsapi/internal/domain/user"
	"github.com/gin-gonic/gin"
)

const MsgUnauthenticated = "No autenticado"

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

// Denylist holds the ids of access tokens revoked before their expiry.
type Denylist interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Principals resolves the user a token was issued to. A token whose user is
// gone no longer authenticates anyone.
type Principals interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
}

type AuthMiddleware struct {
	jwt        TokenVerifier
	denylist   Denylist
	principals Principals
	onFail     func(reason string)
}

func NewAuthMiddleware(jwt TokenVerifier, denylist Denylist, principals Principals) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, denylist: denylist, principals: principals}
}

// OnFailure registers a hook called with a short reason for every rejected request.
func (m *AuthMiddleware) OnFailure(fn func(reason string)) *AuthMiddleware {
	m.onFail = fn
	return m
}

func (m *AuthMiddleware) reject(c *gin.Context, reason string) {
	if m.onFail != nil {
		m.onFail(reason)
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"status":  "error",
		"message": MsgUnauthenticated,
	})
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			m.reject(c, "missing")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			m.reject(c, "missing")
			return
		}

		claims, err := m.jwt.VerifyAccessToken(raw)
		if err != nil {
			m.reject(c, "invalid")
			return
		}

		if m.denylist != nil {
			revoked, err := m.denylist.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				// a denylist outage should not lock everybody out
				slog.Default().WarnContext(c.Request.Context(), "denylist lookup failed", "err", err)
			}
			if revoked {
				m.reject(c, "revoked")
				return
			}
		}

		role := claims.Role
		if m.principals != nil {
			u, err := m.principals.GetByID(c.Request.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, user.ErrNotFound) {
					m.reject(c, "unknown_user")
					return
				}
				slog.Default().ErrorContext(c.Request.Context(), "principal lookup failed", "user_id", claims.UserID, "err", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"status":  "error",
					"message": "No se pudo verificar la sesión",
				})
				return
			}
			// the stored role wins over the one minted into the token
			role = u.Role
		}

		// Stash useful bits of identity on the context
		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxRole, role)
		c.Set(CtxTokenID, claims.ID)
		if claims.ExpiresAt != nil {
			c.Set(CtxTokenExpiry, claims.ExpiresAt.Time)
		}

		c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), claims.UserID))

		c.Next()
	}
}

// Optional helpers so handlers don't need to know the magic keys.

func UserIDFromContext(c *gin.Context) (int64, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

func RoleFromContext(c *gin.Context) (string, bool) {
	return stringFromContext(c, CtxRole)
}

// TokenFromContext returns the jti and expiry of the access token that authenticated the request.
func TokenFromContext(c *gin.Context) (string, time.Time, bool) {
	jti, ok := stringFromContext(c, CtxTokenID)
	if !ok {
		return "", time.Time{}, false
	}
	exp, _ := c.Get(CtxTokenExpiry)
	t, _ := exp.(time.Time)
	return jti, t, true
}

func stringFromContext(c *gin.Context, key string) (string, bool) {
	v, ok := c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}
