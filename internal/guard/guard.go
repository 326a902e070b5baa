package guard

import (
	"net/http"
	"strings"

	"sessionguard/internal/auth"
	"sessionguard/internal/telemetry"
	"sessionguard/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	HeaderUserID = "X-User-Id"

	cacheImmutable = "public, max-age=31536000, immutable"
	cachePrivate   = "private, no-cache"
	cacheNoStore   = "private, no-store"
)

// TokenChecker is the part of auth.Verifier the guard depends on.
type TokenChecker interface {
	Check(token string) (*auth.Claim, auth.Status)
}

// Guard decides allow/redirect/401 for every request before handlers run.
// It only reads the request; it never writes cookies or token state.
type Guard struct {
	policy     Policy
	tokens     TokenChecker
	production bool
	reporter   telemetry.Reporter
}

type Option func(*Guard)

// WithProduction switches authenticated responses to no-store caching.
func WithProduction(on bool) Option {
	return func(g *Guard) { g.production = on }
}

func WithReporter(r telemetry.Reporter) Option {
	return func(g *Guard) {
		if r != nil {
			g.reporter = r
		}
	}
}

func New(policy Policy, tokens TokenChecker, opts ...Option) *Guard {
	g := &Guard{policy: policy, tokens: tokens, reporter: telemetry.Nop{}}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Guard) Policy() Policy { return g.policy }

// Evaluate computes the decision for r. It has no side effects.
//
// Order: static assets, then the public allow-list, both before any token is parsed;
// then bearer auth for the API namespace; then the session cookie for pages.
func (g *Guard) Evaluate(r *http.Request) Decision {
	path := r.URL.Path

	if g.policy.IsStatic(path) {
		return Decision{Kind: KindAllow, Static: true}
	}
	if g.policy.IsPublic(path) {
		return Decision{Kind: KindAllow, Public: true}
	}

	if g.policy.IsAPI(path) {
		tok, ok := auth.BearerToken(r.Header.Get(auth.AuthorizationHeader))
		if !ok {
			return Unauthorized(false)
		}
		claim, status := g.tokens.Check(tok)
		switch status {
		case auth.StatusValid:
			return Allow(claim)
		case auth.StatusExpired:
			return Unauthorized(true)
		default:
			return Unauthorized(false)
		}
	}

	returnPath := path
	if r.URL.RawQuery != "" {
		returnPath += "?" + r.URL.RawQuery
	}

	ck, err := r.Cookie(g.policy.SessionCookie)
	if err != nil || ck.Value == "" {
		return RedirectToLogin(returnPath, false)
	}
	claim, status := g.tokens.Check(ck.Value)
	switch status {
	case auth.StatusValid:
		return Allow(claim)
	case auth.StatusExpired:
		return RedirectToLogin(returnPath, true)
	default:
		return RedirectToLogin(returnPath, false)
	}
}

// Middleware applies Evaluate and writes the response for non-Allow decisions.
func (g *Guard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-DNS-Prefetch-Control", "on")
		h.Set("X-Content-Type-Options", "nosniff")

		d := g.Evaluate(c.Request)
		g.reporter.Count("guard", d.Kind.String())

		switch d.Kind {
		case KindUnauthorized:
			msg := "missing or invalid bearer token"
			if d.SessionExpired {
				msg = "token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return

		case KindRedirectToLogin:
			logger.FromGin(c).Debug("guard redirect", "path", c.Request.URL.Path, "session_expired", d.SessionExpired)
			h.Set("Cache-Control", cacheNoStore)
			c.Redirect(http.StatusFound, d.LoginURL(g.policy.LoginPath))
			c.Abort()
			return
		}

		switch {
		case d.Static:
			h.Set("Cache-Control", cacheImmutable)
		case d.Claim != nil:
			auth.SetIdentity(c, d.Claim.Identity())
			if g.production {
				h.Set("Cache-Control", cacheNoStore)
			} else {
				h.Set("Cache-Control", cachePrivate)
			}
			h.Add("Vary", "Cookie")
			h.Add("Vary", auth.AuthorizationHeader)
			if !g.policy.IsAPI(c.Request.URL.Path) {
				h.Set(HeaderUserID, d.Claim.UserID)
			}
		case c.Request.URL.Path == "/" && len(g.policy.DNSPrefetch) > 0:
			links := make([]string, 0, len(g.policy.DNSPrefetch))
			for _, o := range g.policy.DNSPrefetch {
				links = append(links, "<"+o+">; rel=dns-prefetch")
			}
			h.Set("Link", strings.Join(links, ", "))
		}

		c.Next()
	}
}
