// Package erpapi is a client for the back-office REST API: product catalog,
// client directory, orders and invoices.
package erpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout = 30 * time.Second
	// maxBodySize bounds response bodies, invoice documents included.
	maxBodySize int64 = 32 << 20
	// errorBodyLimit bounds the part of an error body kept in messages.
	errorBodyLimit = 512
)

// Client performs authenticated requests against the back-office API.
type Client struct {
	http     *http.Client
	baseURL  string
	username string
	password string

	maxBody int64

	mu    sync.Mutex
	token string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken sets a bearer token obtained out of band.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithCredentials enables logging in through the token endpoint, lazily
// before the first request and again when the token is rejected.
func WithCredentials(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// NewClient creates a client for the API rooted at baseURL, e.g.
// "http://localhost:8000/api".
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("base url is required")
	}

	c := &Client{
		baseURL: trimmed,
		maxBody: maxBodySize,
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *Client) canLogin() bool {
	return c.username != ""
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Login exchanges the configured credentials for an access token.
func (c *Client) Login(ctx context.Context) error {
	if !c.canLogin() {
		return errors.New("no credentials configured")
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("username", func(e *jx.Encoder) { e.Str(c.username) })
		e.Field("password", func(e *jx.Encoder) { e.Str(c.password) })
	})

	data, err := c.send(ctx, http.MethodPost, "/token/", e.Bytes(), "")
	if err != nil {
		return errors.Wrap(err, "login")
	}

	var access string
	if err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "access" {
			return d.Skip()
		}
		v, err := d.Str()
		access = v
		return err
	}); err != nil {
		return errors.Wrap(err, "decode token")
	}
	if access == "" {
		return errors.New("login: empty access token")
	}

	c.mu.Lock()
	c.token = access
	c.mu.Unlock()
	return nil
}

// Ping checks that the API is reachable and accepts the current token.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/auth/me/", nil)
	return err
}

// do sends an authenticated request and returns the response body. When
// credentials are configured a missing or rejected token triggers a login
// and a single retry.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if c.currentToken() == "" && c.canLogin() {
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
	}

	data, err := c.send(ctx, method, path, body, c.currentToken())
	if !errors.Is(err, ErrUnauthorized) || !c.canLogin() {
		return data, err
	}

	if err := c.Login(ctx); err != nil {
		return nil, err
	}
	return c.send(ctx, method, path, body, c.currentToken())
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, token string) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), rd)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s %s", method, path)
	}
	if int64(len(data)) > c.maxBody {
		return nil, errors.Wrapf(ErrBodyTooLarge, "%s %s", method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
		}
	}
	return data, nil
}

// resolve turns an API path into a URL. Absolute URLs, such as pagination
// links, are used as is.
func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + path
}
