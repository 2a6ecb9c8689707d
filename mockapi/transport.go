package mockapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-medlocus/internal/logging"
)

// DefaultHealthTimeout bounds the startup health probe.
const DefaultHealthTimeout = 3 * time.Second

type roundTripper struct {
	handler http.Handler
}

// Transport returns an http.RoundTripper that serves requests from s in
// process. Socket upgrades are not supported over it.
func (s *Server) Transport() http.RoundTripper {
	return &roundTripper{handler: s}
}

func (t *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	r := req.Clone(req.Context())
	if r.Body == nil {
		r.Body = http.NoBody
	}
	r.RequestURI = r.URL.RequestURI()

	rec := httptest.NewRecorder()
	t.handler.ServeHTTP(rec, r)

	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

// ResolveOption configures Resolve.
type ResolveOption func(*resolveConfig)

type resolveConfig struct {
	client  *http.Client
	logger  logging.Logger
	options []Option
}

// WithProbeClient sets the client used for the health probe.
func WithProbeClient(c *http.Client) ResolveOption {
	return func(rc *resolveConfig) {
		if c != nil {
			rc.client = c
		}
	}
}

// WithResolveLogger sets the logger for the fallback decision.
func WithResolveLogger(l logging.Logger) ResolveOption {
	return func(rc *resolveConfig) {
		if l != nil {
			rc.logger = l
		}
	}
}

// WithServerOptions passes options to the mock Server built on fallback.
func WithServerOptions(opts ...Option) ResolveOption {
	return func(rc *resolveConfig) {
		rc.options = append(rc.options, opts...)
	}
}

// Resolve probes GET <baseURL>/health. When the backend answers 2xx it
// returns http.DefaultTransport and false. Otherwise it returns an in-process
// mock transport mounted at the path of baseURL and true.
func Resolve(ctx context.Context, baseURL string, healthTimeout time.Duration, opts ...ResolveOption) (http.RoundTripper, bool) {
	rc := &resolveConfig{
		client: http.DefaultClient,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(rc)
	}
	if healthTimeout <= 0 {
		healthTimeout = DefaultHealthTimeout
	}

	baseURL = strings.TrimRight(baseURL, "/")
	err := probe(ctx, rc.client, baseURL, healthTimeout)
	if err == nil {
		rc.logger.Info("backend healthy", "url", baseURL)
		return http.DefaultTransport, false
	}
	rc.logger.Warn("backend unavailable, using mock API", "url", baseURL, "error", err)

	prefix := ""
	if u, err := url.Parse(baseURL); err == nil {
		prefix = u.Path
	}
	srv := New(append([]Option{WithPrefix(prefix), WithLogger(rc.logger)}, rc.options...)...)
	return srv.Transport(), true
}

type statusError int

func (e statusError) Error() string {
	return "health probe returned " + http.StatusText(int(e))
}

func probe(ctx context.Context, client *http.Client, baseURL string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode)
	}
	return nil
}
