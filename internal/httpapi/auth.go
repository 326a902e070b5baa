package httpapi

import (
	"errors"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"sessionguard/internal/audit"
	"sessionguard/internal/auth"
	"sessionguard/internal/refresh"
	"sessionguard/internal/users"
	"sessionguard/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const loginPagePath = "/auth/login"

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Redirect string `json:"-" form:"redirect"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login checks credentials and starts a new session.
// Unknown email, wrong password and disabled accounts share one generic answer.
// JSON callers get the pair in the body; the sign-in form gets cookies and a redirect.
func (h Handlers) Login(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromGin(c)
	form := c.ContentType() == binding.MIMEPOSTForm

	if h.Limiter != nil {
		ok, retryAfter, err := h.Limiter.Allow(ctx, "login:"+c.ClientIP())
		switch {
		case err != nil:
			log.Error("login rate limit check failed", "err", err)
		case !ok:
			h.reporter().Count("login", "throttled")
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many login attempts"})
			return
		}
	}

	var req loginRequest
	if err := c.ShouldBind(&req); err != nil || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		if form {
			c.Redirect(http.StatusSeeOther, loginPagePath+"?error=missing_credentials")
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	u, err := h.Users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) || errors.Is(err, users.ErrDisabled) {
			h.reporter().Count("login", "failure")
			h.record(c, audit.Event{Type: audit.EventLoginFailed, Email: users.NormalizeEmail(req.Email), Message: err.Error()})
			if form {
				c.Redirect(http.StatusSeeOther, loginPagePath+"?error=invalid_credentials")
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		log.Error("authenticate failed", "err", err)
		h.reporter().CaptureError(ctx, err, "op", "login")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	pair, id, err := h.Sessions.Issue(ctx, auth.Identity{UserID: u.ID, Email: u.Email, Role: u.Role})
	if err != nil {
		log.Error("token issuance failed", "err", err, "user_id", u.ID)
		h.reporter().CaptureError(ctx, err, "op", "login")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}

	h.reporter().Count("login", "success")
	h.record(c, audit.Event{Type: audit.EventLogin, UserID: id.UserID, SessionID: id.SessionID, Email: id.Email})
	c.Header("Cache-Control", "no-store")
	if form {
		h.setTokenCookies(c, pair.AccessToken, pair.RefreshToken, pair.ExpiresIn)
		c.Redirect(http.StatusSeeOther, safeRedirect(req.Redirect))
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(pair))
}

// safeRedirect keeps post-login redirects on this origin.
func safeRedirect(target string) string {
	const fallback = "/dashboard"
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return fallback
	}
	// Browsers drop tabs and newlines and treat a backslash as /, which turns "/\t/host" into "//host".
	for i := 0; i < len(target); i++ {
		if b := target[i]; b < 0x20 || b == 0x7f || b == '\\' {
			return fallback
		}
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return fallback
	}
	return target
}

// Refresh rotates a refresh token taken from the body, or from the refresh cookie when
// the body omits it. Cookie callers get their cookies rotated too.
func (h Handlers) Refresh(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromGin(c)

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	token, fromCookie := req.RefreshToken, false
	if token == "" {
		token, _ = c.Cookie(RefreshCookie)
		fromCookie = token != ""
	}
	if token == "" {
		h.reporter().Count("refresh", "missing")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Refresh token is required"})
		return
	}

	pair, id, err := h.Sessions.Rotate(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, refresh.ErrTokenReused):
			h.reporter().Count("refresh", "reused")
			h.record(c, audit.Event{Type: audit.EventRefreshReuse, UserID: id.UserID, SessionID: id.SessionID, Message: "session revoked"})
		case errors.Is(err, refresh.ErrInvalidToken):
			h.reporter().Count("refresh", "invalid")
			log.Debug("refresh rejected", "err", err)
		default:
			log.Error("refresh failed", "err", err)
			h.reporter().CaptureError(ctx, err, "op", "refresh")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
			return
		}
		if fromCookie {
			h.clearTokenCookies(c)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}

	if fromCookie {
		h.setTokenCookies(c, pair.AccessToken, pair.RefreshToken, pair.ExpiresIn)
	}
	h.reporter().Count("refresh", "success")
	h.record(c, audit.Event{Type: audit.EventRefresh, UserID: id.UserID, SessionID: id.SessionID})
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, newTokenResponse(pair))
}

// Logout revokes the session behind the presented refresh token and clears every auth cookie.
func (h Handlers) Logout(c *gin.Context) {
	ctx := c.Request.Context()

	var req refreshRequest
	_ = c.ShouldBindJSON(&req)
	token := req.RefreshToken
	if token == "" {
		token, _ = c.Cookie(RefreshCookie)
	}

	id, err := h.Sessions.Revoke(ctx, token)
	if err != nil {
		logger.FromGin(c).Error("logout revoke failed", "err", err)
		h.reporter().CaptureError(ctx, err, "op", "logout")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	if id.UserID != "" {
		h.record(c, audit.Event{Type: audit.EventLogout, UserID: id.UserID, SessionID: id.SessionID})
	}
	h.reporter().Count("logout", "success")
	h.ClearTokens(c)
}

// EndSession revokes the session of the calling access token. Unlike Logout it runs
// behind the guard and CSRF check, so it needs no refresh token.
func (h Handlers) EndSession(c *gin.Context) {
	ctx := c.Request.Context()
	id, ok := auth.IdentityFrom(ctx)
	if !ok || id.SessionID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid bearer token"})
		return
	}
	if err := h.Sessions.EndSession(ctx, id.SessionID); err != nil {
		logger.FromGin(c).Error("end session failed", "err", err, "session_id", id.SessionID)
		h.reporter().CaptureError(ctx, err, "op", "end_session")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	h.record(c, audit.Event{Type: audit.EventLogout, UserID: id.UserID, SessionID: id.SessionID, Message: "session ended"})
	h.reporter().Count("logout", "success")
	h.ClearTokens(c)
}
