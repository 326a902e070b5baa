package tokenstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	tokenPath = "/api/auth/token"
)

// StatusError reports a non-2xx answer from the token endpoint.
type StatusError struct {
	Method string
	Status int
	Msg    string
}

func (e *StatusError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("tokenstore: %s %s: %d %s", e.Method, tokenPath, e.Status, e.Msg)
	}
	return fmt.Sprintf("tokenstore: %s %s: %d", e.Method, tokenPath, e.Status)
}

// CookieStore keeps tokens in httpOnly cookies set by the server.
// Writes go through /api/auth/token; reads come from the client's cookie jar.
type CookieStore struct {
	base *url.URL
	http *http.Client
}

type CookieOption func(*CookieStore)

// WithHTTPClient uses hc for requests. Its Jar is replaced when nil.
func WithHTTPClient(hc *http.Client) CookieOption {
	return func(s *CookieStore) { s.http = hc }
}

func NewCookieStore(baseURL string, opts ...CookieOption) (*CookieStore, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("tokenstore: base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("tokenstore: base url must be http(s), got %q", baseURL)
	}

	s := &CookieStore{base: u, http: &http.Client{Timeout: 10 * time.Second}}
	for _, o := range opts {
		o(s)
	}
	if s.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		s.http.Jar = jar
	}
	return s, nil
}

// HTTPClient returns the client sharing this store's cookie jar.
func (s *CookieStore) HTTPClient() *http.Client { return s.http }

func (s *CookieStore) SetTokens(ctx context.Context, p Pair) error {
	if p.AccessToken == "" {
		return ErrEmptyAccessToken
	}
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.do(ctx, http.MethodPost, body)
}

func (s *CookieStore) AccessToken(context.Context) (string, error) {
	return s.cookie(AccessCookie), nil
}

func (s *CookieStore) RefreshToken(context.Context) (string, error) {
	return s.cookie(RefreshCookie), nil
}

func (s *CookieStore) Clear(ctx context.Context) error {
	return s.do(ctx, http.MethodDelete, nil)
}

// Status asks the server which cookies it can see, without exposing their values.
func (s *CookieStore) Status(ctx context.Context) (hasToken, hasRefresh bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(), nil)
	if err != nil {
		return false, false, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return false, false, fmt.Errorf("tokenstore: GET %s: %w", tokenPath, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return false, false, &StatusError{Method: http.MethodGet, Status: resp.StatusCode}
	}
	var out struct {
		HasToken        bool `json:"hasToken"`
		HasRefreshToken bool `json:"hasRefreshToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, false, fmt.Errorf("tokenstore: decode status: %w", err)
	}
	return out.HasToken, out.HasRefreshToken, nil
}

func (s *CookieStore) do(ctx context.Context, method string, body []byte) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.endpoint(), rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("tokenstore: %s %s: %w", method, tokenPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
		return &StatusError{Method: method, Status: resp.StatusCode, Msg: e.Error}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (s *CookieStore) endpoint() string {
	return s.base.String() + tokenPath
}

func (s *CookieStore) cookie(name string) string {
	for _, c := range s.http.Jar.Cookies(s.base) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}
