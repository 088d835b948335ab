package middleware

import (
	"github.com/gin-gonic/gin"

	"stockpost/internal/core/apperror"
	appctx "stockpost/internal/core/context"
)

// RequirePermission rejects requests whose user lacks the named
// permission. Admins pass every check.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := appctx.GetUser(c.Request.Context())
		if user == nil {
			_ = c.Error(apperror.NewUnauthorized("authentication required"))
			c.Abort()
			return
		}

		if user.IsAdmin || hasPermission(c, permission) {
			c.Next()
			return
		}

		_ = c.Error(
			apperror.NewForbidden("insufficient permissions").
				WithDetail("required_permission", permission),
		)
		c.Abort()
	}
}

// hasPermission checks the permission list the Auth middleware stored
// from the token claims.
func hasPermission(c *gin.Context, permission string) bool {
	perms, exists := c.Get("permissions")
	if !exists {
		return false
	}
	list, ok := perms.([]string)
	if !ok {
		return false
	}
	for _, p := range list {
		if p == permission {
			return true
		}
	}
	return false
}
