package rbac

import (
	"net/http"

	"sessionguard/internal/auth"

	"github.com/gin-gonic/gin"
)

// DefaultUnauthorizedRedirect is where pages send users who lack a role.
const DefaultUnauthorizedRedirect = "/dashboard?error=unauthorized"

// RequireAnyRole guards API routes: 401 without identity, 403 without an allowed role.
// admin bypasses all checks. Run it after the guard has placed identity on the context.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	check := allowedSet(allowed)
	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if !check(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// RequirePageRole is RequireAnyRole for pages: a missing role is not a hard failure,
// the user is redirected to target (DefaultUnauthorizedRedirect when empty).
func RequirePageRole(target string, allowed ...string) gin.HandlerFunc {
	if target == "" {
		target = DefaultUnauthorizedRedirect
	}
	check := allowedSet(allowed)
	return func(c *gin.Context) {
		role, _ := auth.Role(c.Request.Context())
		if role == "" || !check(role) {
			c.Redirect(http.StatusFound, target)
			c.Abort()
			return
		}
		c.Next()
	}
}

func allowedSet(allowed []string) func(string) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		set[r] = struct{}{}
	}
	return func(role string) bool {
		if IsAdmin(role) {
			return true
		}
		_, ok := set[role]
		return ok
	}
}
