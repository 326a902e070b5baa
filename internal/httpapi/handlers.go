package httpapi

import (
	"net/http"
	"time"

	"sessionguard/internal/audit"
	"sessionguard/internal/auth"
	"sessionguard/internal/csrf"
	"sessionguard/internal/ratelimit"
	"sessionguard/internal/refresh"
	"sessionguard/internal/telemetry"
	"sessionguard/internal/users"

	"github.com/gin-gonic/gin"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	defaultAccessMaxAge  = time.Hour
	defaultRefreshMaxAge = 30 * 24 * time.Hour
)

// CookieConfig controls the httpOnly token cookies.
type CookieConfig struct {
	Secure bool
	// RefreshMaxAge applies to the refresh cookie. The access cookie follows expiresIn.
	RefreshMaxAge time.Duration
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Users     *users.Service
	Sessions  *refresh.Service
	CSRF      *csrf.Manager
	Audit     *audit.Service
	Telemetry telemetry.Reporter
	Limiter   ratelimit.Limiter
	Cookies   CookieConfig
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
}

func newTokenResponse(p auth.TokenPair) tokenResponse {
	return tokenResponse{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken, ExpiresIn: p.ExpiresIn, TokenType: "Bearer"}
}

func (h Handlers) reporter() telemetry.Reporter {
	if h.Telemetry == nil {
		return telemetry.Nop{}
	}
	return h.Telemetry
}

// setTokenCookies writes both httpOnly cookies. expiresIn <= 0 falls back to one hour.
func (h Handlers) setTokenCookies(c *gin.Context, access, refreshToken string, expiresIn int64) {
	accessAge := int(defaultAccessMaxAge / time.Second)
	if expiresIn > 0 {
		accessAge = int(expiresIn)
	}
	refreshAge := h.Cookies.RefreshMaxAge
	if refreshAge <= 0 {
		refreshAge = defaultRefreshMaxAge
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(AccessCookie, access, accessAge, "/", "", h.Cookies.Secure, true)
	if refreshToken != "" {
		c.SetCookie(RefreshCookie, refreshToken, int(refreshAge/time.Second), "/", "", h.Cookies.Secure, true)
	}
}

func (h Handlers) clearTokenCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(AccessCookie, "", -1, "/", "", h.Cookies.Secure, true)
	c.SetCookie(RefreshCookie, "", -1, "/", "", h.Cookies.Secure, true)
}

func (h Handlers) record(c *gin.Context, e audit.Event) {
	if h.Audit == nil {
		return
	}
	e.IPAddress = c.ClientIP()
	h.Audit.Record(c.Request.Context(), e)
}
