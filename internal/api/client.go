// Package api is the client for the drive REST API: listing, folder
// creation, upload, deletion, download, thumbnails and authentication.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/jneless/bkp-drive/internal/config"
	"github.com/jneless/bkp-drive/internal/constants"
	"github.com/jneless/bkp-drive/internal/http"
	"github.com/jneless/bkp-drive/internal/logging"
	"github.com/jneless/bkp-drive/internal/ratelimit"
)

// retryLogger bridges retryablehttp logging into zerolog.
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// Client talks to one drive backend on behalf of one session.
type Client struct {
	httpClient     *nethttp.Client // JSON calls, retried when max_retries > 0
	transferClient *nethttp.Client // streamed uploads and downloads, never buffered
	baseURL        string
	limiter        *ratelimit.Limiter
	logger         *logging.Logger

	mu    sync.RWMutex
	token string
}

// Option customizes a Client.
type Option func(*Client)

// WithToken sets the bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) { c.logger = logging.OrNop(logger).Named("api") }
}

// WithHTTPClient replaces both underlying HTTP clients.
func WithHTTPClient(hc *nethttp.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
		c.transferClient = hc
	}
}

// NewClient creates a client for cfg.BaseURL.
func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("API base URL is empty")
	}

	c := &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.limiter = ratelimit.New(cfg.RequestsPerSecond, cfg.Burst, c.logger)

	if c.httpClient == nil {
		base, err := http.NewClient(cfg, c.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
		}

		retryClient := retryablehttp.NewClient()
		retryClient.HTTPClient = base
		retryClient.RetryMax = cfg.MaxRetries
		retryClient.RetryWaitMin = constants.RetryWaitMin
		retryClient.RetryWaitMax = constants.RetryWaitMax
		retryClient.Logger = &retryLogger{logger: c.logger}
		// keep the final response so JSON error envelopes reach the caller
		retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

		c.httpClient = retryClient.StandardClient()
		c.transferClient = base
	}

	return c, nil
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the bearer token, "" when logged out.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// HasToken reports whether a bearer token is set.
func (c *Client) HasToken() bool {
	return c.Token() != ""
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one API call.
type request struct {
	op       string
	method   string
	path     string // already escaped
	query    url.Values
	body     io.Reader
	jsonBody interface{}
	header   nethttp.Header
	auth     bool
	transfer bool
}

// do sends r and returns the raw response. The caller owns resp.Body.
func (c *Client) do(ctx context.Context, r request) (*nethttp.Response, error) {
	token := c.Token()
	if r.auth && token == "" {
		return nil, ErrAuthMissing
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &NetworkError{Op: r.op, Err: err}
	}

	body := r.body
	if r.jsonBody != nil {
		data, err := json.Marshal(r.jsonBody)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to marshal request body: %w", r.op, err)
		}
		body = bytes.NewReader(data)
	}

	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	req, err := nethttp.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", r.op, err)
	}
	for k, v := range r.header {
		req.Header[k] = v
	}
	if r.jsonBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := c.httpClient
	if r.transfer {
		client = c.transferClient
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		c.logger.Debug().Str("op", r.op).Err(err).Msg("request failed")
		return nil, &NetworkError{Op: r.op, Err: err}
	}
	c.logger.Debug().
		Str("method", r.method).
		Str("path", r.path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api call")

	if resp.StatusCode == nethttp.StatusTooManyRequests {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			c.limiter.Cooldown(time.Duration(secs) * time.Second)
		}
	}

	return resp, nil
}

// envelope carries the fields shared by every JSON response.
type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// doJSON sends r and decodes the JSON response into out (may be nil).
// A success:false body becomes an APIError; a non-2xx status without a
// JSON envelope becomes a NetworkError.
func (c *Client) doJSON(ctx context.Context, r request, out interface{}) error {
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: r.op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	var env envelope
	envErr := json.Unmarshal(data, &env)
	is2xx := resp.StatusCode >= 200 && resp.StatusCode < 300

	if !is2xx {
		if envErr == nil && (env.Error != "" || env.Message != "" || env.Success != nil) {
			return c.apiError(r.op, resp.StatusCode, env, data)
		}
		return &NetworkError{Op: r.op, StatusCode: resp.StatusCode, Err: errors.New(truncate(data))}
	}

	if envErr != nil {
		return &NetworkError{Op: r.op, StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid JSON response: %w", envErr)}
	}
	if env.Success != nil && !*env.Success {
		return c.apiError(r.op, resp.StatusCode, env, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s: failed to decode response: %w", r.op, err)
		}
	}
	return nil
}

func (c *Client) apiError(op string, status int, env envelope, data []byte) error {
	msg := env.Error
	if msg == "" {
		msg = env.Message
	}
	apiErr := &APIError{Op: op, StatusCode: status, Message: msg}

	var batch struct {
		FailedItems []string `json:"failedItems"`
	}
	if json.Unmarshal(data, &batch) == nil {
		apiErr.FailedItems = batch.FailedItems
	}
	return apiErr
}

func truncate(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > constants.MaxErrorBodyBytes {
		s = s[:constants.MaxErrorBodyBytes] + "..."
	}
	if s == "" {
		s = "empty response"
	}
	return s
}

// escapeKey escapes each segment of key, keeping separators.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
