package middleware

import (
	"net/http"
	"strings"

	"refbook/config"
	"refbook/internal/auth"

	"github.com/gin-gonic/gin"
)

const ctxAccountID = "account_id"

// AuthRequired validates the bearer JWT and sets the account id in context.
// Downstream handlers trust this id without re-verifying the account.
func AuthRequired(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "missing authorization header"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid authorization format"})
			return
		}
		claims, err := auth.ParseAccessToken(cfg, parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid or expired token"})
			return
		}
		c.Set(ctxAccountID, claims.AccountID)
		c.Next()
	}
}

// GetAccountID returns the authenticated account id from context (must be used after AuthRequired).
func GetAccountID(c *gin.Context) string {
	return c.GetString(ctxAccountID)
}
