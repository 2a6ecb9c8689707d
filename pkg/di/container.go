package di

import (
	"context"
	"net/http"

	"github.com/goliatone/go-medlocus/api"
	"github.com/goliatone/go-medlocus/cache"
	"github.com/goliatone/go-medlocus/config"
	"github.com/goliatone/go-medlocus/internal/logging"
	"github.com/goliatone/go-medlocus/mockapi"
	"github.com/goliatone/go-medlocus/queries"
	"github.com/goliatone/go-medlocus/realtime"
	"github.com/goliatone/go-medlocus/session"
)

// Container wires the client components from a config.Config. It owns one
// cache, API client, session, set of query bindings and, unless real-time
// is off, one event channel.
type Container struct {
	config  config.Config
	logger  logging.Logger
	cache   *cache.Cache
	client  *api.Client
	session *session.Session
	queries *queries.Bindings
	channel *realtime.Channel
	kpiSub  *realtime.Subscription
	mocked  bool
}

// Option configures NewContainer.
type Option func(*options)

type options struct {
	logger    logging.Logger
	store     session.Store
	transport http.RoundTripper
	cacheOpts []cache.Option
}

// WithLogger sets the logger handed to every component.
func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSessionStore sets where the session is persisted. Defaults to a
// MemoryStore.
func WithSessionStore(s session.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithTransport forces the HTTP transport and skips the health probe.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

// WithCacheOptions passes options to cache.New.
func WithCacheOptions(opts ...cache.Option) Option {
	return func(o *options) {
		o.cacheOpts = append(o.cacheOpts, opts...)
	}
}

// NewContainer validates cfg and builds the component graph. When the
// fallback is enabled and no transport is given, the backend health is
// probed and an unreachable backend is replaced by the in-process mock API.
// A stored session is restored before returning.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{logger: logging.Nop()}
	for _, opt := range opts {
		opt(o)
	}

	c := &Container{config: cfg, logger: o.logger}

	var err error
	c.cache, err = cache.New(cfg.Cache.CacheConfig(), append([]cache.Option{cache.WithLogger(o.logger.With("component", "cache"))}, o.cacheOpts...)...)
	if err != nil {
		return nil, err
	}

	transport := o.transport
	if transport == nil && cfg.Fallback.Enabled {
		transport, c.mocked = mockapi.Resolve(ctx, cfg.API.BaseURL, cfg.API.HealthTimeout.Std(),
			mockapi.WithResolveLogger(o.logger.With("component", "fallback")),
			mockapi.WithServerOptions(mockapi.WithEventInterval(cfg.Realtime.Interval.Std())),
		)
	}

	var sess *session.Session
	c.client = api.New(cfg.API.BaseURL,
		api.WithHTTPClient(api.DefaultHTTPClient(cfg.API.Timeout.Std(), transport)),
		api.WithTokenSource(api.TokenFunc(func() string { return sess.Token() })),
		api.WithLogger(o.logger.With("component", "api")),
	)
	sess = session.New(o.store, c.client,
		session.WithLogger(o.logger.With("component", "session")),
		session.WithOnLogout(func() { c.cache.Clear() }),
	)
	sess.Restore()
	c.session = sess

	c.queries = queries.New(c.client, c.cache,
		queries.WithReadRetry(cfg.API.RetryAttempts, cfg.API.RetryBackoff.Std()),
		queries.WithLogger(o.logger.With("component", "queries")),
	)

	if src := c.eventSource(); src != nil {
		c.channel = realtime.New(src, realtime.WithLogger(o.logger.With("component", "realtime")))
		c.kpiSub = realtime.BindKPIUpdates(c.channel, c.cache, queries.KPIKey())
	}
	return c, nil
}

// NewContainerWithDefaults builds a Container from config.Default.
func NewContainerWithDefaults(ctx context.Context, opts ...Option) (*Container, error) {
	return NewContainer(ctx, config.Default(), opts...)
}

// eventSource picks the real-time source for the configured mode. The
// socket cannot be reached through the in-process mock transport, so a
// mocked backend always gets the simulated source.
func (c *Container) eventSource() realtime.Source {
	rt := c.config.Realtime
	switch {
	case rt.Mode == config.RealtimeOff:
		return nil
	case rt.Mode == config.RealtimeWebSocket && !c.mocked:
		return realtime.NewWebSocketSource(rt.URL,
			realtime.WithSourceTokens(c.session),
			realtime.WithSourceLogger(c.logger.With("component", "websocket")),
		)
	default:
		if rt.Mode == config.RealtimeWebSocket {
			c.logger.Warn("backend mocked, simulating real-time events")
		}
		return realtime.NewMockSource(rt.Interval.Std())
	}
}

// Config returns the configuration the container was built from.
func (c *Container) Config() config.Config {
	return c.config
}

// Cache returns the shared cache.
func (c *Container) Cache() *cache.Cache {
	return c.cache
}

// Client returns the API client.
func (c *Container) Client() *api.Client {
	return c.client
}

// Session returns the session.
func (c *Container) Session() *session.Session {
	return c.session
}

// Queries returns the cached query bindings.
func (c *Container) Queries() *queries.Bindings {
	return c.queries
}

// Realtime returns the event channel, or nil when real-time is off.
func (c *Container) Realtime() *realtime.Channel {
	return c.channel
}

// Mocked reports whether requests are served by the in-process mock API.
func (c *Container) Mocked() bool {
	return c.mocked
}

// Close disconnects the event channel and detaches the KPI binding.
func (c *Container) Close() {
	if c.channel == nil {
		return
	}
	c.kpiSub.Unsubscribe()
	c.channel.Disconnect()
}
