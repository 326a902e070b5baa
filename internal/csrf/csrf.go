package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"sessionguard/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

const (
	HeaderName = "X-CSRF-Token"
	FormField  = "csrf_token"
	// CookieName is the script-readable mirror of the token.
	CookieName = "csrf_token"
	// SessionCookieName is the httpOnly id the server-held token is keyed by.
	SessionCookieName = "csrf_sid"

	tokenBytes = 32
)

var errInvalid = gin.H{"error": "Invalid CSRF token"}

type Options struct {
	TTL    time.Duration
	Secure bool
	// Exempt paths match exactly, or by prefix when the entry ends in "*".
	Exempt []string
}

func DefaultExempt() []string {
	return []string{"/api/auth/*", "/api/csrf", "/api/csrf-token"}
}

// Manager issues and enforces double-submit CSRF tokens.
type Manager struct {
	store Store
	opts  Options
}

func NewManager(store Store, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.Exempt == nil {
		opts.Exempt = DefaultExempt()
	}
	return &Manager{store: store, opts: opts}
}

// NewToken returns 32 random bytes, base64url encoded.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Issue serves GET /api/csrf-token. It reuses the live token for the caller's
// csrf session and mints a new one once the previous one expired.
func (m *Manager) Issue(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromGin(c)

	sid := m.sessionID(c)
	fresh := sid == ""
	if fresh {
		sid = ulid.Make().String()
	}

	var tok string
	if !fresh {
		t, err := m.store.Get(ctx, sid)
		switch {
		case err == nil:
			tok = t
		case errors.Is(err, ErrNotFound):
		default:
			log.Error("csrf lookup failed", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue CSRF token"})
			return
		}
	}

	if tok == "" {
		t, err := NewToken()
		if err != nil {
			log.Error("csrf token generation failed", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue CSRF token"})
			return
		}
		if err := m.store.Put(ctx, sid, t, m.opts.TTL); err != nil {
			log.Error("csrf store failed", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue CSRF token"})
			return
		}
		tok = t
	}

	maxAge := int(m.opts.TTL / time.Second)
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookieName, sid, maxAge, "/", "", m.opts.Secure, true)
	c.SetCookie(CookieName, tok, maxAge, "/", "", m.opts.Secure, false)
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"csrfToken": tok})
}

// Protect rejects mutating requests whose submitted token does not match the server-held one.
func (m *Manager) Protect() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) || m.exempt(c.Request.URL.Path) {
			c.Next()
			return
		}

		sid := m.sessionID(c)
		if sid == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, errInvalid)
			return
		}
		want, err := m.store.Get(c.Request.Context(), sid)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				logger.FromGin(c).Error("csrf lookup failed", "err", err)
			}
			c.AbortWithStatusJSON(http.StatusForbidden, errInvalid)
			return
		}

		got := c.GetHeader(HeaderName)
		if got == "" {
			got = c.PostForm(FormField)
		}
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, errInvalid)
			return
		}
		c.Next()
	}
}

// Clear drops the server-held token and expires both cookies. Safe to call repeatedly.
func (m *Manager) Clear(c *gin.Context) error {
	var err error
	if sid := m.sessionID(c); sid != "" {
		err = m.store.Delete(c.Request.Context(), sid)
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", m.opts.Secure, true)
	c.SetCookie(CookieName, "", -1, "/", "", m.opts.Secure, false)
	return err
}

func (m *Manager) sessionID(c *gin.Context) string {
	v, err := c.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	if _, err := ulid.ParseStrict(v); err != nil {
		return ""
	}
	return v
}

func (m *Manager) exempt(path string) bool {
	for _, e := range m.opts.Exempt {
		if prefix, ok := strings.CutSuffix(e, "*"); ok {
			if strings.HasPrefix(path, prefix) {
				return true
			}
			continue
		}
		if path == e {
			return true
		}
	}
	return false
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
