package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"craftquote/api/internal/config"
	"craftquote/api/internal/security"
)

const claimsKey = "access_claims"

// Auth verifies the bearer token and stashes its claims. Verification is
// signature + expiry only; no storage is consulted, so role changes surface
// on the next token, not mid-flight. Missing, malformed and expired tokens
// all produce the same response.
func Auth(cfg *config.AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := security.ParseAccessToken(tokenStr, cfg.Security.JWTSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		c.Set(claimsKey, *claims)
		c.Next()
	}
}

// ClaimsFromContext returns the verified claims set by Auth.
func ClaimsFromContext(c *gin.Context) (security.AccessClaims, bool) {
	val, exists := c.Get(claimsKey)
	if !exists {
		return security.AccessClaims{}, false
	}
	claims, ok := val.(security.AccessClaims)
	return claims, ok
}
