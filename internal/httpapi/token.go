package httpapi

import (
	"net/http"

	"sessionguard/pkg/logger"

	"github.com/gin-gonic/gin"
)

type setTokenRequest struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// SetTokens serves POST /api/auth/token: it moves a token pair into httpOnly cookies.
func (h Handlers) SetTokens(c *gin.Context) {
	var req setTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Access token is required"})
		return
	}
	if req.AccessToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Access token is required"})
		return
	}
	h.setTokenCookies(c, req.AccessToken, req.RefreshToken, req.ExpiresIn)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// TokenStatus serves GET /api/auth/token. Token values never leave the cookies.
func (h Handlers) TokenStatus(c *gin.Context) {
	access, _ := c.Cookie(AccessCookie)
	refreshToken, _ := c.Cookie(RefreshCookie)
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"hasToken": access != "", "hasRefreshToken": refreshToken != ""})
}

// ClearTokens serves DELETE /api/auth/token. Clearing twice is fine.
func (h Handlers) ClearTokens(c *gin.Context) {
	h.clearTokenCookies(c)
	if h.CSRF != nil {
		if err := h.CSRF.Clear(c); err != nil {
			logger.FromGin(c).Warn("csrf clear failed", "err", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
