package guard

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"sessionguard/internal/auth"
	"sessionguard/internal/config"

	"github.com/gin-gonic/gin"
)

var testNow = time.Unix(1700000000, 0).UTC()

type fixture struct {
	guard   *Guard
	valid   string
	expired string
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	m, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	id := auth.Identity{UserID: "user-1", Email: "a@example.com", Role: "member", SessionID: "s-1"}

	fresh, err := m.IssuePair(testNow.Add(-time.Minute), id)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	stale, err := m.IssuePair(testNow.Add(-2*time.Hour), id)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	v := auth.NewVerifier(m).WithClock(func() time.Time { return testNow })
	return fixture{guard: New(DefaultPolicy(), v, opts...), valid: fresh.AccessToken, expired: stale.AccessToken}
}

func newRouter(g *Guard) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(g.Middleware())
	ok := func(c *gin.Context) {
		uid, _ := auth.UserID(c.Request.Context())
		c.String(http.StatusOK, uid)
	}
	r.GET("/", ok)
	r.GET("/dashboard", ok)
	r.GET("/auth/login", ok)
	r.GET("/api/me", ok)
	r.GET("/api/auth/token", ok)
	r.GET("/_next/static/chunks/app.js", ok)
	r.GET("/images/logo.png", ok)
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGuard_PublicRoutesIgnoreGarbageCredentials(t *testing.T) {
	f := newFixture(t)
	r := newRouter(f.guard)

	for _, path := range []string{"/", "/auth/login", "/api/auth/token"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		req.AddCookie(&http.Cookie{Name: "access_token", Value: "%%%garbage"})
		w := serve(r, req)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
		if w.Body.String() != "" {
			t.Fatalf("%s: public route must not attach identity", path)
		}
	}
}

func TestGuard_PageWithoutCookieRedirectsToLogin(t *testing.T) {
	f := newFixture(t)
	w := serve(newRouter(f.guard), httptest.NewRequest(http.MethodGet, "/dashboard?tab=billing", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	want := "/auth/login?redirect=" + url.QueryEscape("/dashboard?tab=billing")
	if got := w.Header().Get("Location"); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestGuard_PageWithExpiredCookieMarksSessionExpired(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: f.expired})
	w := serve(newRouter(f.guard), req)

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if got := w.Header().Get("Location"); got != "/auth/login?redirect=%2Fdashboard&error=session_expired" {
		t.Fatalf("unexpected location %q", got)
	}
}

func TestGuard_PageWithInvalidCookieRedirectsWithoutExpiredMarker(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: f.valid + "x"})
	w := serve(newRouter(f.guard), req)

	if got := w.Header().Get("Location"); got != "/auth/login?redirect=%2Fdashboard" {
		t.Fatalf("unexpected location %q", got)
	}
}

func TestGuard_PageWithValidCookieAllowsAndSetsHeaders(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: f.valid})
	w := serve(newRouter(f.guard), req)

	if w.Code != http.StatusOK || w.Body.String() != "user-1" {
		t.Fatalf("expected allow with identity, got %d %q", w.Code, w.Body.String())
	}
	if got := w.Header().Get(HeaderUserID); got != "user-1" {
		t.Fatalf("expected x-user-id header, got %q", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "private, no-cache" {
		t.Fatalf("unexpected cache-control %q", got)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected nosniff")
	}
}

func TestGuard_ProductionUsesNoStore(t *testing.T) {
	f := newFixture(t, WithProduction(true))
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: f.valid})
	w := serve(newRouter(f.guard), req)

	if got := w.Header().Get("Cache-Control"); got != "private, no-store" {
		t.Fatalf("unexpected cache-control %q", got)
	}
}

func TestGuard_APIRequiresBearer(t *testing.T) {
	f := newFixture(t)
	r := newRouter(f.guard)

	cases := []struct {
		name   string
		header string
		cookie string
		code   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"cookie is not enough", "", f.valid, http.StatusUnauthorized},
		{"wrong scheme", "Token " + f.valid, "", http.StatusUnauthorized},
		{"garbage", "Bearer garbage", "", http.StatusUnauthorized},
		{"expired", "Bearer " + f.expired, "", http.StatusUnauthorized},
		{"valid", "Bearer " + f.valid, "", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		if tc.cookie != "" {
			req.AddCookie(&http.Cookie{Name: "access_token", Value: tc.cookie})
		}
		w := serve(r, req)
		if w.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.code, w.Code)
		}
		if tc.code == http.StatusOK && w.Header().Get(HeaderUserID) != "" {
			t.Fatalf("%s: api responses must not carry x-user-id", tc.name)
		}
	}
}

func TestGuard_StaticAssetsSkipAuthAndAreImmutable(t *testing.T) {
	f := newFixture(t)
	r := newRouter(f.guard)

	for _, path := range []string{"/_next/static/chunks/app.js", "/images/logo.png"} {
		w := serve(r, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
		if got := w.Header().Get("Cache-Control"); got != "public, max-age=31536000, immutable" {
			t.Fatalf("%s: unexpected cache-control %q", path, got)
		}
	}
}

func TestGuard_HomeAdvertisesDNSPrefetch(t *testing.T) {
	f := newFixture(t)
	w := serve(newRouter(f.guard), httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get("Link") == "" {
		t.Fatalf("expected dns-prefetch link header")
	}
}

func TestEvaluate_IsPure(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: f.valid})

	a := f.guard.Evaluate(req)
	b := f.guard.Evaluate(req)
	if a.Kind != KindAllow || b.Kind != KindAllow || a.UserID() != b.UserID() {
		t.Fatalf("expected identical allow decisions, got %+v %+v", a, b)
	}
}
