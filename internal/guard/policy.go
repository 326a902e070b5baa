package guard

import (
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Policy describes which paths the guard lets through and where it sends anonymous visitors.
type Policy struct {
	// PublicRoutes match exactly, or by prefix when the entry ends in "*".
	PublicRoutes []string `yaml:"public_routes"`
	// StaticPatterns are doublestar globs that skip auth entirely and are cached long-term.
	StaticPatterns []string `yaml:"static_patterns"`
	// APIPrefix marks routes that answer 401 instead of redirecting.
	APIPrefix string `yaml:"api_prefix"`
	// LoginPath is the redirect target for unauthenticated page requests.
	LoginPath string `yaml:"login_path"`
	// SessionCookie holds the access token for page routes.
	SessionCookie string `yaml:"session_cookie"`
	// DNSPrefetch origins are advertised via a Link header on "/".
	DNSPrefetch []string `yaml:"dns_prefetch"`
}

func DefaultPolicy() Policy {
	return Policy{
		PublicRoutes: []string{
			"/",
			"/auth/*",
			"/api/auth/*",
			"/api/public/*",
			"/api/csrf",
			"/api/csrf-token",
			"/healthz",
			"/metrics",
		},
		StaticPatterns: []string{
			"/_next/static/**",
			"/_next/image/**",
			"/favicon.ico",
			"/**/*.{png,jpg,jpeg,gif,webp,svg,ico,PNG,JPG,JPEG,GIF,WEBP,SVG,ICO}",
		},
		APIPrefix:     "/api/",
		LoginPath:     "/auth/login",
		SessionCookie: "access_token",
		DNSPrefetch: []string{
			"https://fonts.googleapis.com",
			"https://fonts.gstatic.com",
		},
	}
}

// LoadPolicy reads a YAML policy file. Fields absent from the file keep their defaults.
// An empty path returns DefaultPolicy.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read guard policy: %w", err)
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Policy{}, fmt.Errorf("parse guard policy %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func (p Policy) Validate() error {
	for _, pat := range p.StaticPatterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("guard policy: invalid static pattern %q", pat)
		}
	}
	for _, r := range p.PublicRoutes {
		if !strings.HasPrefix(r, "/") {
			return fmt.Errorf("guard policy: public route %q must start with /", r)
		}
	}
	if !strings.HasPrefix(p.APIPrefix, "/") {
		return fmt.Errorf("guard policy: api_prefix %q must start with /", p.APIPrefix)
	}
	if !strings.HasPrefix(p.LoginPath, "/") {
		return fmt.Errorf("guard policy: login_path %q must start with /", p.LoginPath)
	}
	if p.SessionCookie == "" {
		return fmt.Errorf("guard policy: session_cookie is required")
	}
	return nil
}

func (p Policy) IsPublic(path string) bool {
	for _, r := range p.PublicRoutes {
		if prefix, ok := strings.CutSuffix(r, "*"); ok {
			if strings.HasPrefix(path, prefix) {
				return true
			}
			// "/auth/*" also covers "/auth" itself.
			if strings.TrimSuffix(prefix, "/") == path {
				return true
			}
			continue
		}
		if path == r {
			return true
		}
	}
	return false
}

func (p Policy) IsStatic(path string) bool {
	for _, pat := range p.StaticPatterns {
		if ok, _ := doublestar.Match(pat, path); ok {
			return true
		}
	}
	return false
}

func (p Policy) IsAPI(path string) bool {
	return strings.HasPrefix(path, p.APIPrefix) || path == strings.TrimSuffix(p.APIPrefix, "/")
}
