package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/orgai/internal/auth"
	"github.com/suPer8Hu/orgai/internal/common"
)

const AdminSubjectKey = "admin_subject"

// AdminRequired accepts a Bearer token signed with secret and carrying
// the admin role. An empty secret disables the routes it guards.
func AdminRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			common.Fail(c, http.StatusForbidden, 40301, "admin api disabled")
			c.Abort()
			return
		}

		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			common.Fail(c, http.StatusUnauthorized, 40101, "missing bearer token")
			c.Abort()
			return
		}

		claims, err := auth.ParseJWT(strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")), secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40102, "invalid token")
			c.Abort()
			return
		}
		if claims.Role != auth.RoleAdmin {
			common.Fail(c, http.StatusForbidden, 40302, "admin role required")
			c.Abort()
			return
		}

		c.Set(AdminSubjectKey, claims.Subject)
		c.Next()
	}
}
