package session

import (
	"io"
	"net/http"

	"sessionguard/internal/tokenstore"
)

// Transport adds the stored access token as a Bearer credential.
// On a 401 it refreshes once and replays the request once, provided the body can be replayed.
type Transport struct {
	Base        http.RoundTripper
	Store       tokenstore.Store
	Coordinator *Coordinator
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	first, err := t.authorize(req)
	if err != nil {
		return nil, err
	}
	resp, err := t.base().RoundTrip(first)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if err := t.Coordinator.Refresh(ctx); err != nil {
		return nil, err
	}

	retry, err := t.authorize(req)
	if err != nil {
		return nil, err
	}
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return t.base().RoundTrip(retry)
}

func (t *Transport) authorize(req *http.Request) (*http.Request, error) {
	token, err := t.Store.AccessToken(req.Context())
	if err != nil {
		return nil, err
	}
	r := req.Clone(req.Context())
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r, nil
}
