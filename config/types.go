package config

import (
	"time"

	"github.com/knadh/koanf/v2"

	"github.com/gaborage/dashclient/observability"
)

// Config represents the overall client configuration structure.
// The embedded koanf.Koanf instance allows for flexible access to
// additional keys not explicitly defined in the struct.
type Config struct {
	App          AppConfig          `koanf:"app" json:"app" yaml:"app"`
	API          APIConfig          `koanf:"api" json:"api" yaml:"api"`
	Queue        QueueConfig        `koanf:"queue" json:"queue" yaml:"queue"`
	Connectivity ConnectivityConfig `koanf:"connectivity" json:"connectivity" yaml:"connectivity"`
	Storage      StorageConfig      `koanf:"storage" json:"storage" yaml:"storage"`
	Log          LogConfig          `koanf:"log" json:"log" yaml:"log"`

	Observability observability.Config `koanf:"observability" json:"observability" yaml:"observability"`

	// k holds the underlying Koanf instance
	k *koanf.Koanf `json:"-" yaml:"-"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name" validate:"required"`
	Version string `koanf:"version" json:"version" yaml:"version" validate:"required"`
	Env     string `koanf:"env" json:"env" yaml:"env" validate:"oneof=development staging production"`
}

// APIConfig holds the dashboard API connection settings.
type APIConfig struct {
	BaseURL   string          `koanf:"baseurl" json:"baseurl" yaml:"baseurl" validate:"required,url"`
	Timeout   time.Duration   `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
	Retry     RetryConfig     `koanf:"retry" json:"retry" yaml:"retry"`
	CSRF      CSRFConfig      `koanf:"csrf" json:"csrf" yaml:"csrf"`
	Auth      AuthConfig      `koanf:"auth" json:"auth" yaml:"auth"`
	RateLimit RateLimitConfig `koanf:"ratelimit" json:"ratelimit" yaml:"ratelimit"`
}

// RetryConfig holds the retry schedule. Delay doubles per attempt up to MaxDelay.
type RetryConfig struct {
	Max      int           `koanf:"max" json:"max" yaml:"max" validate:"gte=0,lte=10"`
	Delay    time.Duration `koanf:"delay" json:"delay" yaml:"delay" validate:"gt=0"`
	MaxDelay time.Duration `koanf:"maxdelay" json:"maxdelay" yaml:"maxdelay" validate:"gtefield=Delay"`
}

// CSRFConfig holds CSRF token caching settings.
type CSRFConfig struct {
	TTL time.Duration `koanf:"ttl" json:"ttl" yaml:"ttl" validate:"gt=0"`
}

// AuthConfig holds auth cookie settings.
type AuthConfig struct {
	CookieMaxAge time.Duration `koanf:"cookiemaxage" json:"cookiemaxage" yaml:"cookiemaxage" validate:"gt=0"`
}

// RateLimitConfig holds client-side rate limiting. RPS 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `koanf:"rps" json:"rps" yaml:"rps" validate:"gte=0"`
	Burst int     `koanf:"burst" json:"burst" yaml:"burst" validate:"gte=0"`
}

// QueueConfig holds offline queue settings.
type QueueConfig struct {
	Capacity   int `koanf:"capacity" json:"capacity" yaml:"capacity" validate:"gt=0"`
	MaxReplays int `koanf:"maxreplays" json:"maxreplays" yaml:"maxreplays" validate:"gte=0"`
}

// ConnectivityConfig holds connectivity detection settings.
type ConnectivityConfig struct {
	Probe ProbeConfig `koanf:"probe" json:"probe" yaml:"probe"`
}

// ProbeConfig controls the periodic reachability probe.
type ProbeConfig struct {
	Enabled  bool          `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Interval time.Duration `koanf:"interval" json:"interval" yaml:"interval" validate:"gt=0"`
	Timeout  time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0,ltefield=Interval"`
}

// StorageConfig selects where credentials are kept.
type StorageConfig struct {
	Driver string `koanf:"driver" json:"driver" yaml:"driver" validate:"oneof=memory sqlite"`
	DSN    string `koanf:"dsn" json:"dsn" yaml:"dsn" validate:"required_if=Driver sqlite"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

// String returns the raw value at key, or "" when it is unset.
func (c *Config) String(key string) string {
	if c == nil || c.k == nil {
		return ""
	}
	return c.k.String(key)
}

// Exists reports whether key was set by any source.
func (c *Config) Exists(key string) bool {
	return c != nil && c.k != nil && c.k.Exists(key)
}
