package middlewares

import (
	"net/http"
	"strconv"

	"github.com/geocoder89/postsapi/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// RequireSelfOrAdmin lets a request through when the path parameter names the
// caller's own id or the caller is an admin.
func (m *AuthMiddleware) RequireSelfOrAdmin(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserIDFromContext(c)
		if !ok {
			m.reject(c, "no_identity")
			return
		}

		if role, _ := RoleFromContext(c); role == user.RoleAdmin {
			c.Next()
			return
		}

		target, err := strconv.ParseInt(c.Param(param), 10, 64)
		if err != nil || target != userID {
			forbid(c)
			return
		}
		c.Next()
	}
}

func forbid(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"status":  "error",
		"message": "No autorizado",
	})
}
