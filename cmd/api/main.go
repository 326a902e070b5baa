package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sessionguard/internal/config"
	"sessionguard/internal/guard"
	"sessionguard/internal/telemetry"
	"sessionguard/pkg/logger"

	"github.com/gin-gonic/gin"
)

const janitorInterval = 15 * time.Minute

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.BaseURLFallback {
		logger.Critical(log, "APP_BASE_URL is not set in production, falling back to localhost", "base_url", cfg.App.BaseURL)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	rep, metrics, err := telemetry.New(cfg.Telemetry.Provider, log)
	if err != nil {
		log.Error("telemetry init failed", "err", err)
		os.Exit(1)
	}

	policy, err := guard.LoadPolicy(cfg.Guard.PolicyFile)
	if err != nil {
		log.Error("guard policy load failed", "err", err, "path", cfg.Guard.PolicyFile)
		os.Exit(1)
	}

	a, err := newApp(rootCtx, cfg, log)
	if err != nil {
		log.Error("dependency init failed", "err", err, "store_backend", cfg.App.StoreBackend)
		os.Exit(1)
	}
	defer a.Close()

	if err := bootstrapAdmin(rootCtx, cfg, a, log); err != nil {
		log.Error("bootstrap admin failed", "err", err)
		os.Exit(1)
	}

	go a.sessions.RunJanitor(rootCtx, janitorInterval)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(cfg, a, policy, rep, metrics, log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "base_url", cfg.App.BaseURL, "store_backend", cfg.App.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
