// Package api is the HTTP adapter to the chatsql backend. Every endpoint is a
// method on Client; student-facing endpoints degrade to the fixed demo
// dataset on failure, while submission history, auth and instructor
// endpoints return errors to the caller.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/chatsql/internal/config"
)

// RequestIDHeader carries a per-request correlation id to the backend
const RequestIDHeader = "X-Request-ID"

// maxBodySize bounds how much of a response body is read
const maxBodySize = 10 << 20

// Client talks to the chatsql backend
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	demo       atomic.Bool
	resilience *resilience
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	resilience config.ResilienceConfig
	demo       bool
}

// WithHTTPClient replaces the default tuned client. A client without a
// cookie jar gets none, so sessions will not persist between calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// WithTimeout sets a whole-request timeout on the default client
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// WithLogger sets the logger for fallback and resilience events
func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithResilience enables the circuit breaker and retry around student calls
func WithResilience(cfg config.ResilienceConfig) Option {
	return func(o *clientOptions) { o.resilience = cfg }
}

// WithDemo sets the initial demo switch
func WithDemo(on bool) Option {
	return func(o *clientOptions) { o.demo = on }
}

// New creates a client for the backend rooted at baseURL
// (e.g. http://localhost:8000/api)
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parse base url: %q is not absolute", baseURL)
	}

	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.httpClient == nil {
		o.httpClient = newHTTPClient(o.timeout)
	}

	c := &Client{
		baseURL:    u,
		httpClient: o.httpClient,
		resilience: newResilience(o.resilience, o.logger),
		logger:     o.logger,
	}
	c.demo.Store(o.demo)
	return c, nil
}

// NewFromConfig creates a client from the api section of the local config
func NewFromConfig(cfg config.APIConfig, logger *slog.Logger) (*Client, error) {
	return New(cfg.BaseURL,
		WithTimeout(cfg.Timeout()),
		WithResilience(cfg.Resilience),
		WithDemo(cfg.DemoMode),
		WithLogger(logger),
	)
}

// SetDemo flips the demo switch. Calls already in flight keep the mode they
// started with.
func (c *Client) SetDemo(on bool) {
	c.demo.Store(on)
}

// Demo reports whether calls currently bypass the network
func (c *Client) Demo() bool {
	return c.demo.Load()
}

// BaseURL returns the backend root
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Cookies returns the session cookies held for the backend
func (c *Client) Cookies() []*http.Cookie {
	if c.httpClient.Jar == nil {
		return nil
	}
	return c.httpClient.Jar.Cookies(c.baseURL)
}

// SetCookies restores previously saved session cookies
func (c *Client) SetCookies(cookies []*http.Cookie) {
	if c.httpClient.Jar == nil || len(cookies) == 0 {
		return
	}
	c.httpClient.Jar.SetCookies(c.baseURL, cookies)
}

// response is a fully read backend response
type response struct {
	code        int
	status      string
	contentType string
	body        []byte
}

func (r *response) ok() bool {
	return r.code >= 200 && r.code < 300
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// send performs one round trip. It returns an error only when no response
// was received.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, in any) (*response, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &NetworkError{Method: method, Path: path, Err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.Debug("backend call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", req.Header.Get(RequestIDHeader))

	return &response{
		code:        resp.StatusCode,
		status:      resp.Status,
		contentType: resp.Header.Get("Content-Type"),
		body:        data,
	}, nil
}

// do performs a JSON call and decodes a 2xx body into out. Non-2xx answers
// become *StatusError. resilient routes the call through the breaker and
// retrier when they are configured.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any, resilient bool) error {
	op := func(ctx context.Context) (*response, error) {
		r, err := c.send(ctx, method, path, query, in)
		if err != nil {
			return nil, err
		}
		if se := statusError(method, path, r); se != nil && se.Retryable() {
			return nil, se
		}
		return r, nil
	}

	var (
		r   *response
		err error
	)
	if resilient && c.resilience != nil {
		r, err = c.resilience.execute(ctx, op)
	} else {
		r, err = op(ctx)
	}
	if err != nil {
		return err
	}

	if se := statusError(method, path, r); se != nil {
		return se
	}

	if out == nil || len(bytes.TrimSpace(r.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(method, path string, r *response) *StatusError {
	if r.ok() {
		return nil
	}
	return &StatusError{
		Method:  method,
		Path:    path,
		Code:    r.code,
		Status:  r.status,
		Message: messageFromBody(r.body),
	}
}

func exercisePath(id int64, suffix string) string {
	return fmt.Sprintf("/exercises/%d/%s", id, suffix)
}
