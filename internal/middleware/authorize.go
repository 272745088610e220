package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"craftquote/api/internal/service"
)

// RequirePermissions gates a route behind a declared permission requirement,
// evaluated against the verified subject. Fail-closed: absent claims, an
// unknown user or a resolver failure all deny.
func RequirePermissions(rbac *service.RBACService, req service.PermissionRequirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok || claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		if err := rbac.Authorize(c.Request.Context(), claims.Subject, req); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Next()
	}
}
