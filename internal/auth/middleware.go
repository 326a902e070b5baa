package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const AuthorizationHeader = "Authorization"

// BearerToken extracts the token from an Authorization header value.
// The value must be exactly two space-separated parts with the "Bearer" scheme.
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// SetIdentity injects identity into the request context and the gin context.
// It does not perform RBAC checks; those belong to internal/rbac.
func SetIdentity(c *gin.Context, id Identity) {
	c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))

	// Also store on gin context for handler convenience.
	c.Set("user_id", id.UserID)
	c.Set("role", id.Role)
	c.Set("session_id", id.SessionID)
}
