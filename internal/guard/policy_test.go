package guard

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPolicy_IsPublic(t *testing.T) {
	p := DefaultPolicy()
	cases := map[string]bool{
		"/":                  true,
		"/auth":              true,
		"/auth/login":        true,
		"/api/auth/refresh":  true,
		"/api/csrf":          true,
		"/api/csrf-token":    true,
		"/api/csrf-tokens":   false,
		"/dashboard":         false,
		"/authors":           false,
		"/api/me":            false,
		"/api/public/status": true,
	}
	for path, want := range cases {
		if got := p.IsPublic(path); got != want {
			t.Fatalf("IsPublic(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestPolicy_IsStatic(t *testing.T) {
	p := DefaultPolicy()
	cases := map[string]bool{
		"/_next/static/css/app.css": true,
		"/_next/image/foo":          true,
		"/favicon.ico":              true,
		"/img/a/b/photo.JPG":        true,
		"/logo.svg":                 true,
		"/dashboard":                false,
		"/api/me":                   false,
		"/docs/png":                 false,
	}
	for path, want := range cases {
		if got := p.IsStatic(path); got != want {
			t.Fatalf("IsStatic(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestLoadPolicy_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	body := "public_routes:\n  - /\n  - /docs/*\nlogin_path: /signin\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.LoginPath != "/signin" || !p.IsPublic("/docs/intro") || p.IsPublic("/auth/login") {
		t.Fatalf("unexpected policy: %+v", p)
	}
	if p.SessionCookie != "access_token" || p.APIPrefix != "/api/" {
		t.Fatalf("defaults lost: %+v", p)
	}
}

func TestLoadPolicy_RejectsBadPattern(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("static_patterns:\n  - \"/[unclosed\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadPolicy(path); err == nil {
		t.Fatalf("expected invalid pattern error")
	}
}

func TestLoadPolicy_EmptyPathIsDefault(t *testing.T) {
	p, err := LoadPolicy("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.LoginPath != DefaultPolicy().LoginPath {
		t.Fatalf("expected default policy")
	}
}
