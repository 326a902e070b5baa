// Package session is the client side of the auth flow: it keeps the token
// store current by refreshing the access token when it is missing, rejected
// or about to expire.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"sessionguard/internal/auth"
	"sessionguard/internal/telemetry"
	"sessionguard/internal/tokenstore"

	"golang.org/x/sync/singleflight"
)

type State int32

const (
	StateIdle State = iota
	StateRefreshing
	StateLoggedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRefreshing:
		return "refreshing"
	case StateLoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

var (
	ErrNoRefreshToken = errors.New("session: no refresh token")
	// ErrLoggedOut wraps every refresh failure. Callers should send the user to login.
	ErrLoggedOut = errors.New("session: logged out")
)

const (
	DefaultRefreshTimeout = 10 * time.Second
	DefaultRefreshMargin  = 30 * time.Second
)

// Coordinator runs at most one refresh at a time per key.
// Concurrent callers wait for the in-flight refresh and share its result.
type Coordinator struct {
	store     tokenstore.Store
	refresher Refresher
	key       string
	timeout   time.Duration
	margin    time.Duration
	reporter  telemetry.Reporter
	log       *slog.Logger
	clock     func() time.Time

	group singleflight.Group
	state atomic.Int32
}

type Option func(*Coordinator)

func WithKey(key string) Option { return func(c *Coordinator) { c.key = key } }

// WithTimeout bounds a single refresh call. A timeout counts as a refresh failure.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMargin sets how close to expiry EnsureSession refreshes proactively.
func WithMargin(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.margin = d
		}
	}
}

func WithReporter(r telemetry.Reporter) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.reporter = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

func WithClock(fn func() time.Time) Option { return func(c *Coordinator) { c.clock = fn } }

func NewCoordinator(store tokenstore.Store, refresher Refresher, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		refresher: refresher,
		key:       "session",
		timeout:   DefaultRefreshTimeout,
		margin:    DefaultRefreshMargin,
		reporter:  telemetry.Nop{},
		log:       slog.Default(),
		clock:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Coordinator) State() State { return State(c.state.Load()) }

// MarkIdle records that a fresh pair was stored outside the coordinator, e.g. after login.
func (c *Coordinator) MarkIdle() { c.state.Store(int32(StateIdle)) }

// MarkLoggedOut records an explicit logout.
func (c *Coordinator) MarkLoggedOut() { c.state.Store(int32(StateLoggedOut)) }

// Refresh exchanges the stored refresh token for a new pair.
// The shared call runs detached from ctx; ctx only bounds how long this caller waits.
func (c *Coordinator) Refresh(ctx context.Context) error {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(c.key, func() (any, error) {
		return nil, c.refresh(detached)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnsureSession refreshes when the access token is absent or expires within the margin.
// It does nothing when the access token is comfortably valid.
func (c *Coordinator) EnsureSession(ctx context.Context) error {
	access, err := c.store.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("session: read access token: %w", err)
	}
	if access == "" {
		return c.Refresh(ctx)
	}

	exp, err := auth.PeekExpiry(access)
	if err == nil && exp.Sub(c.clock()) > c.margin {
		return nil
	}
	refresh, err := c.store.RefreshToken(ctx)
	if err != nil {
		return fmt.Errorf("session: read refresh token: %w", err)
	}
	if refresh == "" {
		// Nothing to refresh with; the server has the final say on the access token.
		return nil
	}
	return c.Refresh(ctx)
}

func (c *Coordinator) refresh(ctx context.Context) error {
	c.state.Store(int32(StateRefreshing))
	start := c.clock()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	refreshToken, err := c.store.RefreshToken(callCtx)
	if err != nil {
		return c.fail(ctx, "store_error", fmt.Errorf("read refresh token: %w", err))
	}
	if refreshToken == "" {
		return c.fail(ctx, "no_token", ErrNoRefreshToken)
	}

	pair, err := c.refresher.Refresh(callCtx, refreshToken)
	if err != nil {
		outcome := "error"
		switch {
		case IsUnauthorized(err):
			outcome = "rejected"
		case errors.Is(err, context.DeadlineExceeded):
			outcome = "timeout"
		}
		return c.fail(ctx, outcome, err)
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	if err := c.store.SetTokens(callCtx, pair); err != nil {
		return c.fail(ctx, "store_error", fmt.Errorf("store tokens: %w", err))
	}

	c.state.Store(int32(StateIdle))
	c.reporter.Count("client_refresh", "success")
	c.log.Debug("session refreshed", "key", c.key, "duration_ms", c.clock().Sub(start).Milliseconds())
	return nil
}

// fail clears the store and moves to LoggedOut. ctx has no deadline of its own here.
func (c *Coordinator) fail(ctx context.Context, outcome string, cause error) error {
	clearCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.store.Clear(clearCtx); err != nil {
		c.log.Warn("clear token store failed", "key", c.key, "err", err)
	}
	c.state.Store(int32(StateLoggedOut))

	c.reporter.Count("client_refresh", outcome)
	switch outcome {
	case "rejected", "no_token":
		c.log.Info("session refresh rejected", "key", c.key, "outcome", outcome)
	default:
		c.log.Warn("session refresh failed", "key", c.key, "outcome", outcome, "err", cause)
		c.reporter.CaptureError(ctx, cause, "component", "session", "outcome", outcome)
	}
	return fmt.Errorf("%w: %w", ErrLoggedOut, cause)
}
