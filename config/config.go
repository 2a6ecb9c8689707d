// Package config loads the medlocus client configuration from TOML or YAML
// files and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-medlocus/cache"
)

// Environment overrides.
const (
	EnvAPIURL       = "MEDLOCUS_API_URL"
	EnvRealtimeMode = "MEDLOCUS_REALTIME_MODE"
	EnvRealtimeURL  = "MEDLOCUS_REALTIME_URL"
)

// DefaultBaseURL is the development backend.
const DefaultBaseURL = "http://localhost:5000/api"

// Real-time modes.
const (
	RealtimeMock      = "mock"
	RealtimeWebSocket = "websocket"
	RealtimeOff       = "off"
)

// ErrUnsupportedFormat is returned by Load for files that are neither TOML
// nor YAML.
var ErrUnsupportedFormat = errors.New("config: unsupported file format")

// Duration is a time.Duration read from strings such as "1m30s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// API configures the REST client.
type API struct {
	BaseURL       string   `toml:"base_url" yaml:"base_url"`
	Timeout       Duration `toml:"timeout" yaml:"timeout"`
	HealthTimeout Duration `toml:"health_timeout" yaml:"health_timeout"`
	// RetryAttempts counts every try of a read, the first one included.
	RetryAttempts int      `toml:"retry_attempts" yaml:"retry_attempts"`
	RetryBackoff  Duration `toml:"retry_backoff" yaml:"retry_backoff"`
}

// Validate implements validation.Validatable.
func (a API) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.BaseURL, validation.Required, is.URL),
		validation.Field(&a.Timeout, validation.Min(Duration(0))),
		validation.Field(&a.HealthTimeout, validation.Min(Duration(0))),
		validation.Field(&a.RetryAttempts, validation.Required, validation.Min(1)),
		validation.Field(&a.RetryBackoff, validation.Min(Duration(0))),
	)
}

// Cache mirrors cache.Config.
type Cache struct {
	Capacity           int      `toml:"capacity" yaml:"capacity"`
	NumShards          int      `toml:"num_shards" yaml:"num_shards"`
	TTL                Duration `toml:"ttl" yaml:"ttl"`
	EvictionPercentage int      `toml:"eviction_percentage" yaml:"eviction_percentage"`
	EvictionInterval   Duration `toml:"eviction_interval" yaml:"eviction_interval"`
}

// Validate defers to cache.Config.
func (c Cache) Validate() error {
	return c.CacheConfig().Validate()
}

// CacheConfig converts c for cache.New.
func (c Cache) CacheConfig() cache.Config {
	return cache.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL.Std(),
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval.Std(),
	}
}

// Realtime configures the event channel. URL is required in websocket mode.
type Realtime struct {
	Mode     string   `toml:"mode" yaml:"mode"`
	URL      string   `toml:"url" yaml:"url"`
	Interval Duration `toml:"interval" yaml:"interval"`
}

// Validate implements validation.Validatable.
func (r Realtime) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Mode, validation.Required, validation.In(RealtimeMock, RealtimeWebSocket, RealtimeOff)),
		validation.Field(&r.URL,
			validation.When(r.Mode == RealtimeWebSocket, validation.Required),
			is.RequestURI,
		),
		validation.Field(&r.Interval, validation.Min(Duration(0))),
	)
}

// Fallback controls the startup health probe.
type Fallback struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
}

// Config is the full client configuration.
type Config struct {
	API      API      `toml:"api" yaml:"api"`
	Cache    Cache    `toml:"cache" yaml:"cache"`
	Realtime Realtime `toml:"realtime" yaml:"realtime"`
	Fallback Fallback `toml:"fallback" yaml:"fallback"`
}

// Default returns the development configuration.
func Default() Config {
	cc := cache.DefaultConfig()
	return Config{
		API: API{
			BaseURL:       DefaultBaseURL,
			Timeout:       Duration(30 * time.Second),
			HealthTimeout: Duration(3 * time.Second),
			RetryAttempts: 3,
			RetryBackoff:  Duration(time.Second),
		},
		Cache: Cache{
			Capacity:           cc.Capacity,
			NumShards:          cc.NumShards,
			TTL:                Duration(cc.TTL),
			EvictionPercentage: cc.EvictionPercentage,
			EvictionInterval:   Duration(cc.EvictionInterval),
		},
		Realtime: Realtime{
			Mode:     RealtimeMock,
			Interval: Duration(15 * time.Second),
		},
		Fallback: Fallback{Enabled: true},
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.API),
		validation.Field(&c.Cache),
		validation.Field(&c.Realtime),
	)
}

// ApplyEnv overrides fields from the environment using getenv, usually
// os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvAPIURL); v != "" {
		c.API.BaseURL = v
	}
	if v := getenv(EnvRealtimeMode); v != "" {
		c.Realtime.Mode = v
	}
	if v := getenv(EnvRealtimeURL); v != "" {
		c.Realtime.URL = v
	}
}

// Load reads path on top of Default, applies environment overrides and
// validates the result. The format is chosen by extension: .toml, .yaml or
// .yml. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&cfg)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	default:
		return cfg, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}

	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
