// Package api is the single point through which every back-office request
// passes. It attaches the bearer token, encodes JSON and multipart bodies,
// interprets structured error responses, and drives the 401 refresh-and-
// replay protocol: one refresh in flight at most, and no request replayed
// more than once.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"teranga.app/internal/ids"
	"teranga.app/internal/obs"
)

const refreshPath = "/auth/token/refresh/"

// TokenSource owns token persistence. The session manager implements it;
// the client never touches the store directly.
type TokenSource interface {
	AccessToken() string
	RefreshToken() string
	StoreAccessToken(token string)
	ClearTokens()
}

// Client issues authenticated requests against the back-office API.
type Client struct {
	base    string
	httpc   *http.Client
	tokens  TokenSource
	limiter *rate.Limiter
	refresh *refreshCoordinator
	expired func()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// WithRateLimit shapes the polite client-side limiter.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSec), burst) }
}

// WithSessionExpiredHook installs the callback invoked when authentication
// is beyond recovery (refresh failed or a replayed request still got a 401).
func WithSessionExpiredHook(hook func()) Option {
	return func(c *Client) { c.expired = hook }
}

// New creates a client rooted at baseURL.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		base:    strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
		limiter: rate.NewLimiter(rate.Limit(20), 40),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.refresh = &refreshCoordinator{
		run:     c.refreshAccessToken,
		current: tokens.AccessToken,
	}
	return c
}

// Request describes one API call. Body is JSON-encoded unless Multipart is
// set; multipart requests get their content type from the encoder so the
// boundary is never hand-written.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Body      any
	Multipart *Multipart
	// NoAuth skips bearer attachment and the 401 protocol. Auth lifecycle
	// endpoints use it.
	NoAuth bool
}

// Do executes req and decodes a 2xx response body into out (which may be
// nil). A 401 on an authenticated request triggers one refresh-and-replay
// cycle; any further 401 terminates the session.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	token := ""
	if !req.NoAuth {
		token = c.tokens.AccessToken()
	}
	status, body, err := c.send(ctx, req, token)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}

	if status == http.StatusUnauthorized && !req.NoAuth {
		newToken, refreshErr := c.refresh.token(ctx, token)
		if refreshErr != nil {
			obs.RefreshOutcome("failure")
			c.tokens.ClearTokens()
			c.sessionExpired()
			return fmt.Errorf("%s %s: %w", req.Method, req.Path, refreshErr)
		}
		obs.RefreshOutcome("success")

		status, body, err = c.send(ctx, req, newToken)
		if err != nil {
			return fmt.Errorf("%s %s (replay): %w", req.Method, req.Path, err)
		}
		if status == http.StatusUnauthorized {
			c.tokens.ClearTokens()
			c.sessionExpired()
			return fmt.Errorf("%s %s: %w", req.Method, req.Path, ErrSessionExpired)
		}
	}

	if status >= 400 {
		return decodeError(status, body)
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", req.Method, req.Path, err)
		}
	}
	return nil
}

// send performs a single round trip. It never retries.
func (c *Client) send(ctx context.Context, req Request, token string) (int, []byte, error) {
	target := c.base + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var (
		reader      io.Reader
		contentType string
	)
	switch {
	case req.Multipart != nil:
		ct, encoded, err := req.Multipart.encode()
		if err != nil {
			return 0, nil, err
		}
		contentType = ct
		reader = bytes.NewReader(encoded)
	case req.Body != nil:
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request body: %w", err)
		}
		contentType = "application/json"
		reader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, reader)
	if err != nil {
		return 0, nil, err
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	httpReq.Header.Set("X-Request-ID", ids.New())

	done := obs.RequestStarted(req.Method, req.Path)
	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		done(0)
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	done(resp.StatusCode)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// refreshAccessToken exchanges the stored refresh token for a new access
// token and persists it. Called only through the refresh coordinator.
func (c *Client) refreshAccessToken(ctx context.Context) (string, error) {
	refreshToken := c.tokens.RefreshToken()
	if refreshToken == "" {
		return "", fmt.Errorf("no refresh token: %w", ErrSessionExpired)
	}

	status, body, err := c.send(ctx, Request{
		Method: http.MethodPost,
		Path:   refreshPath,
		Body:   map[string]string{"refresh": refreshToken},
		NoAuth: true,
	}, "")
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	if status >= 400 {
		apiErr := decodeError(status, body)
		return "", fmt.Errorf("refresh token: %w: %w", ErrSessionExpired, apiErr)
	}

	var payload struct {
		Access string `json:"access"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Access == "" {
		return "", fmt.Errorf("refresh token: malformed response: %w", ErrSessionExpired)
	}
	c.tokens.StoreAccessToken(payload.Access)
	return payload.Access, nil
}

func (c *Client) sessionExpired() {
	if c.expired != nil {
		c.expired()
	}
}
