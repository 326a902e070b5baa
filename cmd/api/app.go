package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sessionguard/internal/audit"
	"sessionguard/internal/auth"
	"sessionguard/internal/config"
	"sessionguard/internal/csrf"
	"sessionguard/internal/ratelimit"
	"sessionguard/internal/refresh"
	"sessionguard/internal/users"
	"sessionguard/migrations"
	"sessionguard/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// app holds the long-lived dependencies shared by the router and background jobs.
type app struct {
	tokens   *auth.Manager
	verifier *auth.Verifier
	users    *users.Service
	sessions *refresh.Service
	csrf     csrf.Store
	audit    *audit.Service
	limiter  ratelimit.Limiter

	health  func(ctx context.Context) error
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	tokens, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	if cfg.UsesMemoryStores() {
		return newMemoryApp(cfg, tokens, log), nil
	}
	return newPostgresApp(ctx, cfg, tokens, log)
}

// newMemoryApp keeps all state in process. Local development and tests only.
func newMemoryApp(cfg config.Config, tokens *auth.Manager, log *slog.Logger) *app {
	userSvc := users.NewService(users.NewMemoryRepo())
	return &app{
		tokens:   tokens,
		verifier: auth.NewVerifier(tokens),
		users:    userSvc,
		sessions: refresh.NewService(refresh.NewMemoryRepo(), tokens, userSvc, log),
		csrf:     csrf.NewMemoryStore(),
		audit:    audit.NewService(audit.NewMemoryRepo(), log),
		limiter:  ratelimit.NewMemory(cfg.Login.RateLimit, cfg.Login.RateWindow),
		health:   func(context.Context) error { return nil },
	}
}

func newPostgresApp(ctx context.Context, cfg config.Config, tokens *auth.Manager, log *slog.Logger) (*app, error) {
	a := &app{tokens: tokens, verifier: auth.NewVerifier(tokens)}

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	a.closers = append(a.closers, db.Close)

	if err := utils.ApplyMigrations(ctx, db, migrations.FS); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.closers = append(a.closers, rdb.Close)

	a.users = users.NewService(users.NewPostgresRepo(db))
	repo := refresh.NewCachedRepo(refresh.NewPostgresRepo(db), rdb, cfg.Auth.RefreshTokenTTL, log)
	a.sessions = refresh.NewService(repo, tokens, a.users, log)
	a.csrf = csrf.NewRedisStore(rdb)
	a.audit = audit.NewService(audit.NewPostgresRepo(db), log)
	a.limiter = ratelimit.NewRedis(rdb, "ratelimit:", cfg.Login.RateLimit, cfg.Login.RateWindow)
	a.health = func(ctx context.Context) error {
		if err := utils.HealthCheck(ctx, db, 2*time.Second); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	}
	return a, nil
}

// bootstrapAdmin creates the configured admin account once.
func bootstrapAdmin(ctx context.Context, cfg config.Config, a *app, log *slog.Logger) error {
	if cfg.Bootstrap.AdminEmail == "" || cfg.Bootstrap.AdminPassword == "" {
		return nil
	}
	created, err := a.users.EnsureAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword)
	if err != nil {
		return err
	}
	if created {
		log.Info("bootstrap admin created", "email", users.NormalizeEmail(cfg.Bootstrap.AdminEmail))
	}
	return nil
}
