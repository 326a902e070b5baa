package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"sessionguard/internal/config"
	"sessionguard/internal/csrf"
	"sessionguard/internal/guard"
	"sessionguard/internal/httpapi"
	"sessionguard/internal/rbac"
	"sessionguard/internal/telemetry"
	"sessionguard/pkg/logger"

	"github.com/gin-gonic/gin"
)

// newRouter wires middleware and routes.
// Keep this file free of business logic. Handlers delegate to internal modules.
func newRouter(cfg config.Config, a *app, policy guard.Policy, rep telemetry.Reporter, metrics http.Handler, log *slog.Logger) *gin.Engine {
	csrfManager := csrf.NewManager(a.csrf, csrf.Options{
		TTL:    cfg.CSRF.TTL,
		Secure: cfg.IsProduction(),
		Exempt: csrf.DefaultExempt(),
	})
	g := guard.New(policy, a.verifier, guard.WithProduction(cfg.IsProduction()), guard.WithReporter(rep))

	h := httpapi.Handlers{
		Users:     a.users,
		Sessions:  a.sessions,
		CSRF:      csrfManager,
		Audit:     a.audit,
		Telemetry: rep,
		Limiter:   a.limiter,
		Cookies: httpapi.CookieConfig{
			Secure:        cfg.IsProduction(),
			RefreshMaxAge: cfg.Auth.RefreshTokenTTL,
		},
	}

	r := gin.New()
	// With no trusted proxies ClientIP is the socket peer, so X-Forwarded-For cannot
	// dodge the per-IP login throttle.
	if err := r.SetTrustedProxies(cfg.App.TrustedProxies); err != nil {
		log.Error("trusted proxies rejected, ignoring forwarded headers", "err", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(g.Middleware())
	r.Use(csrfManager.Protect())

	// public
	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := a.health(ctx); err != nil {
			logger.FromGin(c).Error("health check failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
	r.GET("/", h.Home)
	r.GET(policy.LoginPath, h.LoginPage)
	r.GET("/api/csrf-token", csrfManager.Issue)
	r.GET("/api/csrf", csrfManager.Issue)

	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/logout", h.Logout)
		authGroup.POST("/token", h.SetTokens)
		authGroup.GET("/token", h.TokenStatus)
		authGroup.DELETE("/token", h.ClearTokens)
	}

	// protected API; the guard has already rejected requests without a valid bearer token
	api := r.Group("/api")
	{
		api.GET("/me", h.Me)
		api.POST("/session/end", h.EndSession)
		api.GET("/admin/ping", rbac.RequireAnyRole(rbac.RoleAdmin), func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}

	// protected pages
	r.GET("/dashboard", h.Dashboard)
	r.GET("/admin", rbac.RequirePageRole(rbac.DefaultUnauthorizedRedirect, rbac.RoleAdmin), h.Admin)

	return r
}
