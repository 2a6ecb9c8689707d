package di

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-medlocus/config"
	"github.com/goliatone/go-medlocus/mockapi"
	"github.com/goliatone/go-medlocus/session"
)

// countingTransport serves a mock API in process and counts requests per
// path.
type countingTransport struct {
	next http.RoundTripper

	mu    sync.Mutex
	calls map[string]int
}

func newCountingTransport(prefix string) *countingTransport {
	return &countingTransport{
		next:  mockapi.New(mockapi.WithPrefix(prefix)).Transport(),
		calls: make(map[string]int),
	}
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	c.calls[req.Method+" "+req.URL.Path]++
	c.mu.Unlock()
	return c.next.RoundTrip(req)
}

func (c *countingTransport) count(call string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[call]
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.API.BaseURL = "http://mock.local/api"
	cfg.API.RetryAttempts = 1
	cfg.Realtime.Mode = config.RealtimeOff
	return cfg
}

func TestNewContainer(t *testing.T) {
	cfg := testConfig()
	container, err := NewContainer(context.Background(), cfg, WithTransport(newCountingTransport("/api")))
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	defer container.Close()

	if container.Cache() == nil || container.Client() == nil || container.Session() == nil || container.Queries() == nil {
		t.Fatal("expected every component to be built")
	}
	if container.Realtime() != nil {
		t.Error("expected no channel when real-time is off")
	}
	if container.Mocked() {
		t.Error("an explicit transport should skip the health probe")
	}
	if container.Config().API.BaseURL != cfg.API.BaseURL {
		t.Errorf("unexpected config %+v", container.Config().API)
	}
	if container.Client().BaseURL() != cfg.API.BaseURL {
		t.Errorf("unexpected client base url %s", container.Client().BaseURL())
	}
}

func TestNewContainerWithDefaults(t *testing.T) {
	container, err := NewContainerWithDefaults(context.Background(), WithTransport(newCountingTransport("/api")))
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	if container.Config().API.BaseURL != config.DefaultBaseURL {
		t.Errorf("expected default base url, got %s", container.Config().API.BaseURL)
	}
	if container.Realtime() == nil {
		t.Error("expected the default mock event channel")
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "cache capacity", mutate: func(c *config.Config) { c.Cache.Capacity = 0 }},
		{name: "realtime mode", mutate: func(c *config.Config) { c.Realtime.Mode = "fax" }},
		{name: "base url", mutate: func(c *config.Config) { c.API.BaseURL = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			if _, err := NewContainer(context.Background(), cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestNewContainer_FallsBackToMock(t *testing.T) {
	cfg := testConfig()
	cfg.API.BaseURL = "http://127.0.0.1:1/api"
	cfg.API.HealthTimeout = config.Duration(500 * time.Millisecond)
	cfg.Realtime.Mode = config.RealtimeWebSocket
	cfg.Realtime.URL = "ws://127.0.0.1:1/ws/notifications"

	container, err := NewContainer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	defer container.Close()

	if !container.Mocked() {
		t.Fatal("expected the mock API to be used")
	}
	if container.Realtime() == nil {
		t.Fatal("expected a simulated event channel")
	}

	ctx := context.Background()
	if _, err := container.Session().Login(ctx, mockapi.DemoEmail, mockapi.DemoPassword); err != nil {
		t.Fatalf("Login: %v", err)
	}
	kpis, err := container.Queries().KPIs(ctx)
	if err != nil {
		t.Fatalf("KPIs: %v", err)
	}
	if len(kpis) != 4 {
		t.Errorf("expected 4 kpis, got %d", len(kpis))
	}
}

func TestNewContainer_NoFallback(t *testing.T) {
	cfg := testConfig()
	cfg.API.BaseURL = "http://127.0.0.1:1/api"
	cfg.Fallback.Enabled = false

	container, err := NewContainer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	defer container.Close()
	if container.Mocked() {
		t.Fatal("fallback disabled, expected the real transport")
	}
	if _, err := container.Client().Health(context.Background()); err == nil {
		t.Error("expected the unreachable backend to fail")
	}
}

func TestNewContainer_RestoresSession(t *testing.T) {
	store := session.NewMemoryStore()
	store.Set(session.KeyToken, "opaque-token")
	store.Set(session.KeyUser, `{"id":"user-1","name":"Demo User","email":"demo@medlocus.com"}`)

	container, err := NewContainer(context.Background(), testConfig(),
		WithTransport(newCountingTransport("/api")),
		WithSessionStore(store),
	)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	defer container.Close()
	if !container.Session().IsAuthenticated() {
		t.Error("expected stored session to be restored")
	}
	if container.Session().Token() != "opaque-token" {
		t.Errorf("unexpected token %q", container.Session().Token())
	}
}
