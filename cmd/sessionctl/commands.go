package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"sessionguard/internal/auth"
	"sessionguard/internal/session"
	"sessionguard/internal/tokenstore"

	"github.com/spf13/cobra"
)

const passwordEnv = "SESSIONGUARD_PASSWORD"

func credentialFlags(cmd *cobra.Command, email, password *string) {
	cmd.Flags().StringVar(email, "email", "", "Account email")
	cmd.Flags().StringVar(password, "password", "", "Account password (or "+passwordEnv+")")
	_ = cmd.MarkFlagRequired("email")
}

func resolvePassword(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if v := os.Getenv(passwordEnv); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("password required: pass --password or set %s", passwordEnv)
}

func loginCmd(opts *options) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the token pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := resolvePassword(password)
			if err != nil {
				return err
			}
			s, err := opts.session(nil)
			if err != nil {
				return err
			}
			pair, err := s.Login(cmd.Context(), email, pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(opts.out, "logged in; access token valid for %s\n", time.Duration(pair.ExpiresIn)*time.Second)
			return nil
		},
	}
	credentialFlags(cmd, &email, &password)
	return cmd
}

func statusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what the token file holds, without contacting the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := tokenstore.NewFileStore(opts.cfg.TokenFile)
			access, err := store.AccessToken(cmd.Context())
			if err != nil {
				return err
			}
			refresh, err := store.RefreshToken(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(opts.out, "token file:    %s\n", store.Path())
			fmt.Fprintf(opts.out, "refresh token: %t\n", refresh != "")
			if access == "" {
				fmt.Fprintln(opts.out, "access token:  none")
				return nil
			}
			exp, err := auth.PeekExpiry(access)
			if err != nil {
				fmt.Fprintln(opts.out, "access token:  unreadable")
				return nil
			}
			if left := time.Until(exp); left > 0 {
				fmt.Fprintf(opts.out, "access token:  expires in %s\n", left.Round(time.Second))
			} else {
				fmt.Fprintf(opts.out, "access token:  expired %s ago\n", (-left).Round(time.Second))
			}
			return nil
		},
	}
}

func whoamiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the identity behind the stored session, refreshing if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session(nil)
			if err != nil {
				return err
			}
			if err := s.EnsureSession(cmd.Context()); err != nil {
				return loggedOutHint(err)
			}
			id, err := s.Me(cmd.Context())
			if err != nil {
				return loggedOutHint(err)
			}
			fmt.Fprintf(opts.out, "user:    %s\nemail:   %s\nrole:    %s\nsession: %s\n", id.UserID, id.Email, id.Role, id.SessionID)
			return nil
		},
	}
}

func refreshCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored refresh token for a new pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session(nil)
			if err != nil {
				return err
			}
			if err := s.Refresh(cmd.Context()); err != nil {
				return loggedOutHint(err)
			}
			fmt.Fprintln(opts.out, "refreshed")
			return nil
		},
	}
}

func logoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and clear the token file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session(nil)
			if err != nil {
				return err
			}
			if err := s.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(opts.out, "logged out")
			return nil
		},
	}
}

func smokeCmd(opts *options) *cobra.Command {
	var email, password, storeKind string
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run login, whoami, refresh and logout in one process",
		Long: `smoke exercises one full session lifecycle against the API with the chosen
token store: memory, file (a temporary file), or cookie (httpOnly cookies set
through /api/auth/token).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := resolvePassword(password)
			if err != nil {
				return err
			}
			return runSmoke(cmd, opts, storeKind, email, pw)
		},
	}
	credentialFlags(cmd, &email, &password)
	cmd.Flags().StringVar(&storeKind, "store", "memory", "Token store: memory, file or cookie")
	return cmd
}

func runSmoke(cmd *cobra.Command, opts *options, storeKind, email, password string) error {
	ctx := cmd.Context()

	var (
		store  tokenstore.Store
		cookie *tokenstore.CookieStore
		cfg    = session.Config{
			BaseURL:        opts.cfg.BaseURL,
			RefreshTimeout: opts.cfg.RefreshTimeout,
			RefreshMargin:  opts.cfg.RefreshMargin,
			Logger:         opts.logger(),
		}
	)
	switch storeKind {
	case "memory":
		store = tokenstore.NewMemoryStore()
	case "file":
		dir, err := os.MkdirTemp("", "sessionctl-smoke-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		store = tokenstore.NewFileStore(dir + "/tokens.json")
	case "cookie":
		cs, err := tokenstore.NewCookieStore(opts.cfg.BaseURL)
		if err != nil {
			return err
		}
		store, cookie = cs, cs
		cfg.HTTPClient = cs.HTTPClient()
	default:
		return fmt.Errorf("unknown store %q", storeKind)
	}
	cfg.Store = store

	s, err := session.New(cfg)
	if err != nil {
		return err
	}

	step := func(name string, fn func() error) error {
		start := time.Now()
		if err := fn(); err != nil {
			fmt.Fprintf(opts.out, "FAIL %-8s %v\n", name, err)
			return fmt.Errorf("%s: %w", name, err)
		}
		fmt.Fprintf(opts.out, "ok   %-8s %s\n", name, time.Since(start).Round(time.Millisecond))
		return nil
	}

	if err := step("login", func() error {
		_, err := s.Login(ctx, email, password)
		return err
	}); err != nil {
		return err
	}
	if cookie != nil {
		if err := step("cookies", func() error {
			has, hasRefresh, err := cookie.Status(ctx)
			if err != nil {
				return err
			}
			if !has || !hasRefresh {
				return fmt.Errorf("server sees access=%t refresh=%t", has, hasRefresh)
			}
			return nil
		}); err != nil {
			return err
		}
	}
	if err := step("whoami", func() error {
		_, err := s.Me(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := step("refresh", func() error { return s.Refresh(ctx) }); err != nil {
		return err
	}
	if err := step("whoami", func() error {
		_, err := s.Me(ctx)
		return err
	}); err != nil {
		return err
	}
	return step("logout", func() error {
		if err := s.Logout(ctx); err != nil {
			return err
		}
		if err := s.Refresh(ctx); !errors.Is(err, session.ErrNoRefreshToken) {
			return fmt.Errorf("store not cleared after logout: %v", err)
		}
		return nil
	})
}

// loggedOutHint turns a terminal refresh failure into an actionable message.
func loggedOutHint(err error) error {
	if errors.Is(err, session.ErrLoggedOut) {
		return fmt.Errorf("%w (run: sessionctl login)", err)
	}
	return err
}
