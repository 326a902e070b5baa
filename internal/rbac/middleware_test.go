package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"sessionguard/internal/auth"

	"github.com/gin-gonic/gin"
)

func withRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if role != "" {
			auth.SetIdentity(c, auth.Identity{UserID: "u", Role: role, SessionID: "s"})
		}
		c.Next()
	}
}

func run(t *testing.T, role string, mw gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", withRole(role), mw, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w
}

func TestRequireAnyRole_AdminBypasses(t *testing.T) {
	if w := run(t, RoleAdmin, RequireAnyRole(RoleViewer)); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequireAnyRole_ForbidsOtherRoles(t *testing.T) {
	if w := run(t, RoleMember, RequireAnyRole(RoleViewer)); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if w := run(t, RoleViewer, RequireAnyRole(RoleViewer)); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequireAnyRole_IdentityRequired(t *testing.T) {
	if w := run(t, "", RequireAnyRole(RoleMember)); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequirePageRole_RedirectsToDashboard(t *testing.T) {
	w := run(t, RoleMember, RequirePageRole("", RoleAdmin))
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if got := w.Header().Get("Location"); got != "/dashboard?error=unauthorized" {
		t.Fatalf("unexpected location %q", got)
	}
	if w := run(t, RoleAdmin, RequirePageRole("", RoleAdmin)); w.Code != http.StatusOK {
		t.Fatalf("expected admin allowed, got %d", w.Code)
	}
}
