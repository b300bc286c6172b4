package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyUserID is the gin context key for the authenticated user id
	ContextKeyUserID = "authUserID"
	// ContextKeyRole is the gin context key for the authenticated role
	ContextKeyRole = "authRole"
)

// Middleware extracts and validates the bearer token from the request.
// Sets authUserID and authRole in the gin context if valid.
func Middleware(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		token = strings.TrimPrefix(token, "Bearer ")

		if token != "" {
			if id, err := v.Verify(token); err == nil {
				c.Set(ContextKeyUserID, id.UserID)
				c.Set(ContextKeyRole, id.Role)
			}
		}

		c.Next()
	}
}

// RequireAuth rejects requests without a valid identity.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextKeyUserID) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Bearer token required.",
			})
			return
		}
		c.Next()
	}
}

// RequireRole rejects authenticated requests whose role does not match.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextKeyUserID) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Bearer token required.",
			})
			return
		}
		if c.GetString(ContextKeyRole) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Insufficient role for this operation.",
			})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id from the gin context.
func UserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

// Role returns the authenticated role from the gin context.
func Role(c *gin.Context) string {
	return c.GetString(ContextKeyRole)
}
