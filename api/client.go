package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-medlocus/internal/logging"
)

const (
	DefaultTimeout        = 30 * time.Second
	defaultConnectTimeout = 5 * time.Second
	defaultTLSTimeout     = 5 * time.Second
	defaultUserAgent      = "go-medlocus"
)

// HeaderRequestID carries a per request correlation id.
const HeaderRequestID = "X-Request-ID"

// TokenSource yields the bearer token to attach to requests. An empty
// token means the request is sent unauthenticated.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

// Token implements TokenSource.
func (f TokenFunc) Token() string { return f() }

// Client translates (method, path, body) into HTTP calls against the
// medlocus REST API. It never retries and never touches cache or session
// state.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	userAgent  string
	logger     logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithLogger sets the client logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a client for baseURL, e.g. "http://localhost:5000/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: DefaultHTTPClient(DefaultTimeout, nil),
		userAgent:  defaultUserAgent,
		logger:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// DefaultHTTPClient builds an http.Client with explicit dial and TLS
// timeouts. When transport is nil a fresh http.Transport is used.
func DefaultHTTPClient(timeout time.Duration, transport http.RoundTripper) *http.Client {
	if transport == nil {
		dialer := &net.Dialer{
			Timeout: defaultConnectTimeout,
		}
		transport = &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: defaultTLSTimeout,
		}
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// Do performs a JSON request and decodes a 2xx response into R. Empty
// bodies decode to the zero value of R.
func Do[R any](ctx context.Context, c *Client, method, path string, body any) (R, error) {
	var result R

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return result, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return result, fmt.Errorf("build %s %s: %w", method, path, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, requestID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "request_id", requestID, "method", method, "path", path, "error", err)
		return result, &NetworkError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, &NetworkError{Method: method, Path: path, Err: err}
	}

	c.logger.Debug("request done",
		"request_id", requestID,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"took", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, parseAPIError(resp.StatusCode, data)
	}

	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return result, nil
	}

	if err := json.Unmarshal(data, &result); err != nil {
		var empty R
		return empty, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return result, nil
}

type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Code    json.RawMessage `json:"code"`
}

// parseAPIError builds an APIError from a JSON body shaped like
// {"message": "...", "code": "..."} or {"error": "..."}. Anything else yields
// the generic network failure kind.
func parseAPIError(status int, data []byte) *APIError {
	generic := &APIError{
		Status:  status,
		Message: http.StatusText(status),
		Code:    CodeNetworkFailure,
	}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return generic
	}

	message := body.Message
	if message == "" {
		message = body.Error
	}
	if message == "" {
		return generic
	}

	return &APIError{
		Status:  status,
		Message: message,
		Code:    rawCode(body.Code),
	}
}

func rawCode(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
