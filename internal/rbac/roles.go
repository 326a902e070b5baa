package rbac

// Role names. Keep these stable; they are embedded in issued access tokens.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// IsAdmin reports whether role bypasses role checks.
func IsAdmin(role string) bool { return role == RoleAdmin }

func IsKnownRole(role string) bool {
	switch role {
	case RoleAdmin, RoleMember, RoleViewer:
		return true
	default:
		return false
	}
}
