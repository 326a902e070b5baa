package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"sessionguard/internal/tokenstore"
)

const (
	loginPath   = "/api/auth/login"
	refreshPath = "/api/auth/refresh"
	logoutPath  = "/api/auth/logout"
)

// APIError is a non-2xx answer from an auth endpoint.
type APIError struct {
	Path   string
	Status int
	Msg    string
}

func (e *APIError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("session: %s: status %d", e.Path, e.Status)
	}
	return fmt.Sprintf("session: %s: status %d: %s", e.Path, e.Status, e.Msg)
}

// IsUnauthorized reports whether err is a 401 from an auth endpoint.
func IsUnauthorized(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusUnauthorized
}

// Refresher exchanges a refresh token for a new pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (tokenstore.Pair, error)
}

// Client talks to the auth endpoints. It holds no token state.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) BaseURL() string { return c.baseURL }

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
}

func (c *Client) Login(ctx context.Context, email, password string) (tokenstore.Pair, error) {
	return c.exchange(ctx, loginPath, map[string]string{"email": email, "password": password})
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (tokenstore.Pair, error) {
	return c.exchange(ctx, refreshPath, map[string]string{"refreshToken": refreshToken})
}

// Logout revokes refreshToken server-side. The server treats unknown tokens as success.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	_, err := c.post(ctx, logoutPath, map[string]string{"refreshToken": refreshToken})
	return err
}

func (c *Client) exchange(ctx context.Context, path string, in any) (tokenstore.Pair, error) {
	body, err := c.post(ctx, path, in)
	if err != nil {
		return tokenstore.Pair{}, err
	}
	var out tokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return tokenstore.Pair{}, fmt.Errorf("session: %s: decode: %w", path, err)
	}
	if out.AccessToken == "" {
		return tokenstore.Pair{}, fmt.Errorf("session: %s: response missing accessToken", path)
	}
	return tokenstore.Pair{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken, ExpiresIn: out.ExpiresIn}, nil
}

func (c *Client) post(ctx context.Context, path string, in any) ([]byte, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session: %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("session: %s: read: %w", path, err)
	}
	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &e)
		return nil, &APIError{Path: path, Status: resp.StatusCode, Msg: e.Error}
	}
	return body, nil
}
