package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"sessionguard/internal/telemetry"
	"sessionguard/internal/tokenstore"
)

// Config wires a Session. Only BaseURL and Store are required.
type Config struct {
	BaseURL        string
	Store          tokenstore.Store
	HTTPClient     *http.Client
	RefreshTimeout time.Duration
	RefreshMargin  time.Duration
	Reporter       telemetry.Reporter
	Logger         *slog.Logger
}

// Session bundles one token store with its coordinator and an authorized HTTP client.
// Pass it to every boundary that needs the current credentials.
type Session struct {
	store  tokenstore.Store
	client *Client
	coord  *Coordinator
	http   *http.Client
	log    *slog.Logger
}

// Identity is the body of GET /api/me.
type Identity struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"sessionId"`
}

func New(cfg Config) (*Session, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("session: base url is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("session: token store is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{}
	}

	client := NewClient(cfg.BaseURL, base)
	coord := NewCoordinator(cfg.Store, client,
		WithKey(client.BaseURL()),
		WithTimeout(cfg.RefreshTimeout),
		WithMargin(cfg.RefreshMargin),
		WithReporter(cfg.Reporter),
		WithLogger(log),
	)

	authed := *base
	authed.Transport = &Transport{Base: base.Transport, Store: cfg.Store, Coordinator: coord}

	return &Session{store: cfg.Store, client: client, coord: coord, http: &authed, log: log}, nil
}

func (s *Session) Store() tokenstore.Store { return s.store }

func (s *Session) Coordinator() *Coordinator { return s.coord }

// HTTPClient returns a client whose transport authorizes and refreshes.
func (s *Session) HTTPClient() *http.Client { return s.http }

func (s *Session) State() State { return s.coord.State() }

func (s *Session) Refresh(ctx context.Context) error { return s.coord.Refresh(ctx) }

func (s *Session) EnsureSession(ctx context.Context) error { return s.coord.EnsureSession(ctx) }

// Login authenticates and stores the issued pair.
func (s *Session) Login(ctx context.Context, email, password string) (tokenstore.Pair, error) {
	pair, err := s.client.Login(ctx, email, password)
	if err != nil {
		return tokenstore.Pair{}, err
	}
	if err := s.store.SetTokens(ctx, pair); err != nil {
		return tokenstore.Pair{}, fmt.Errorf("session: store tokens: %w", err)
	}
	s.coord.MarkIdle()
	return pair, nil
}

// Logout revokes the refresh token server-side and clears the store.
// A failed revoke is logged; the local store is cleared regardless.
func (s *Session) Logout(ctx context.Context) error {
	refresh, err := s.store.RefreshToken(ctx)
	if err != nil {
		s.log.Warn("read refresh token for logout", "err", err)
	}
	if refresh != "" {
		if err := s.client.Logout(ctx, refresh); err != nil {
			s.log.Warn("server logout failed", "err", err)
		}
	}
	s.coord.MarkLoggedOut()
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("session: clear store: %w", err)
	}
	return nil
}

// Do sends req with the current access token, refreshing once on a 401.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	return s.http.Do(req)
}

func (s *Session) Me(ctx context.Context) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.client.BaseURL()+"/api/me", nil)
	if err != nil {
		return Identity{}, err
	}
	resp, err := s.Do(req)
	if err != nil {
		return Identity{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Identity{}, &APIError{Path: "/api/me", Status: resp.StatusCode}
	}
	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return Identity{}, fmt.Errorf("session: /api/me: decode: %w", err)
	}
	return id, nil
}
