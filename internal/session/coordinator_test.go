package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sessionguard/internal/auth"
	"sessionguard/internal/config"
	"sessionguard/internal/tokenstore"

	"github.com/stretchr/testify/require"
)

type refresherFunc func(ctx context.Context, refreshToken string) (tokenstore.Pair, error)

func (f refresherFunc) Refresh(ctx context.Context, rt string) (tokenstore.Pair, error) {
	return f(ctx, rt)
}

func seededStore(t *testing.T, p tokenstore.Pair) *tokenstore.MemoryStore {
	t.Helper()
	s := tokenstore.NewMemoryStore()
	if p.AccessToken != "" {
		require.NoError(t, s.SetTokens(context.Background(), p))
	}
	return s
}

func TestRefreshSingleFlight(t *testing.T) {
	store := seededStore(t, tokenstore.Pair{AccessToken: "a1", RefreshToken: "r1"})

	var calls atomic.Int32
	release := make(chan struct{})
	c := NewCoordinator(store, refresherFunc(func(ctx context.Context, rt string) (tokenstore.Pair, error) {
		calls.Add(1)
		<-release
		return tokenstore.Pair{AccessToken: "a2", RefreshToken: "r2"}, nil
	}))

	const n = 16
	var (
		ready sync.WaitGroup
		done  sync.WaitGroup
		errs  = make(chan error, n)
	)
	ready.Add(n)
	done.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer done.Done()
			ready.Done()
			errs <- c.Refresh(context.Background())
		}()
	}
	ready.Wait()
	require.Eventually(t, func() bool { return c.State() == StateRefreshing }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	done.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), calls.Load(), "concurrent triggers must share one refresh call")
	require.Equal(t, StateIdle, c.State())

	at, _ := store.AccessToken(context.Background())
	rt, _ := store.RefreshToken(context.Background())
	require.Equal(t, "a2", at)
	require.Equal(t, "r2", rt)
}

func TestRefreshTimeoutLogsOut(t *testing.T) {
	store := seededStore(t, tokenstore.Pair{AccessToken: "a1", RefreshToken: "r1"})
	c := NewCoordinator(store, refresherFunc(func(ctx context.Context, rt string) (tokenstore.Pair, error) {
		<-ctx.Done()
		return tokenstore.Pair{}, ctx.Err()
	}), WithTimeout(20*time.Millisecond))

	err := c.Refresh(context.Background())
	require.ErrorIs(t, err, ErrLoggedOut)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, StateLoggedOut, c.State())

	at, _ := store.AccessToken(context.Background())
	rt, _ := store.RefreshToken(context.Background())
	require.Empty(t, at)
	require.Empty(t, rt)
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	var calls atomic.Int32
	c := NewCoordinator(tokenstore.NewMemoryStore(), refresherFunc(func(context.Context, string) (tokenstore.Pair, error) {
		calls.Add(1)
		return tokenstore.Pair{}, nil
	}))

	err := c.Refresh(context.Background())
	require.ErrorIs(t, err, ErrNoRefreshToken)
	require.ErrorIs(t, err, ErrLoggedOut)
	require.Equal(t, StateLoggedOut, c.State())
	require.Zero(t, calls.Load())
}

func TestRefreshRejectedClearsStore(t *testing.T) {
	store := seededStore(t, tokenstore.Pair{AccessToken: "a1", RefreshToken: "r1"})
	c := NewCoordinator(store, refresherFunc(func(context.Context, string) (tokenstore.Pair, error) {
		return tokenstore.Pair{}, &APIError{Path: refreshPath, Status: http.StatusUnauthorized, Msg: "Invalid refresh token"}
	}))

	err := c.Refresh(context.Background())
	require.ErrorIs(t, err, ErrLoggedOut)
	require.True(t, IsUnauthorized(err))
	rt, _ := store.RefreshToken(context.Background())
	require.Empty(t, rt)
}

func TestRefreshKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	store := seededStore(t, tokenstore.Pair{AccessToken: "a1", RefreshToken: "r1"})
	c := NewCoordinator(store, refresherFunc(func(context.Context, string) (tokenstore.Pair, error) {
		return tokenstore.Pair{AccessToken: "a2"}, nil
	}))

	require.NoError(t, c.Refresh(context.Background()))
	at, _ := store.AccessToken(context.Background())
	rt, _ := store.RefreshToken(context.Background())
	require.Equal(t, "a2", at)
	require.Equal(t, "r1", rt)
}

func TestRefreshSurvivesCallerCancellation(t *testing.T) {
	store := seededStore(t, tokenstore.Pair{AccessToken: "a1", RefreshToken: "r1"})
	release := make(chan struct{})
	c := NewCoordinator(store, refresherFunc(func(ctx context.Context, rt string) (tokenstore.Pair, error) {
		select {
		case <-release:
			return tokenstore.Pair{AccessToken: "a2", RefreshToken: "r2"}, nil
		case <-ctx.Done():
			return tokenstore.Pair{}, ctx.Err()
		}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Refresh(ctx) }()

	require.Eventually(t, func() bool { return c.State() == StateRefreshing }, time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-errc, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		at, _ := store.AccessToken(context.Background())
		return at == "a2"
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, StateIdle, c.State())
}

func TestEnsureSession(t *testing.T) {
	m, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	})
	require.NoError(t, err)
	now := time.Now()
	pair, err := m.IssuePair(now, auth.Identity{UserID: "u-1", SessionID: "s-1"})
	require.NoError(t, err)

	newCoord := func(store tokenstore.Store, at time.Time, calls *atomic.Int32) *Coordinator {
		return NewCoordinator(store, refresherFunc(func(context.Context, string) (tokenstore.Pair, error) {
			calls.Add(1)
			return tokenstore.Pair{AccessToken: "fresh"}, nil
		}), WithClock(func() time.Time { return at }), WithMargin(time.Minute))
	}

	t.Run("valid token is left alone", func(t *testing.T) {
		var calls atomic.Int32
		store := seededStore(t, tokenstore.Pair{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
		require.NoError(t, newCoord(store, now, &calls).EnsureSession(context.Background()))
		require.Zero(t, calls.Load())
	})

	t.Run("near expiry refreshes", func(t *testing.T) {
		var calls atomic.Int32
		store := seededStore(t, tokenstore.Pair{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
		require.NoError(t, newCoord(store, now.Add(time.Hour-30*time.Second), &calls).EnsureSession(context.Background()))
		require.Equal(t, int32(1), calls.Load())
	})

	t.Run("no tokens logs out", func(t *testing.T) {
		var calls atomic.Int32
		store := tokenstore.NewMemoryStore()
		require.NoError(t, store.SetTokens(context.Background(), tokenstore.Pair{AccessToken: "x", RefreshToken: "r"}))
		require.NoError(t, store.Clear(context.Background()))
		err := newCoord(store, now, &calls).EnsureSession(context.Background())
		require.True(t, errors.Is(err, ErrNoRefreshToken))
		require.Zero(t, calls.Load())
	})
}
