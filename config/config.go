package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variables before they are mapped
// to keys: DASHCLIENT_API_BASEURL becomes api.baseurl.
const EnvPrefix = "DASHCLIENT_"

type loadOptions struct {
	dir     string
	inline  []byte
	environ func() []string
}

// LoadOption customizes Load
type LoadOption func(*loadOptions)

// WithDir looks for config.yaml and config.<env>.yaml in dir
func WithDir(dir string) LoadOption {
	return func(o *loadOptions) { o.dir = dir }
}

// WithInline layers raw YAML over the files and under the environment
func WithInline(data []byte) LoadOption {
	return func(o *loadOptions) { o.inline = data }
}

// WithEnviron replaces os.Environ as the environment source
func WithEnviron(environ func() []string) LoadOption {
	return func(o *loadOptions) { o.environ = environ }
}

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. Inline YAML
// 3. YAML configuration files
// 4. Default values (lowest priority)
func Load(opts ...LoadOption) (*Config, error) {
	o := loadOptions{dir: "."}
	for _, opt := range opts {
		opt(&o)
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := loadOptionalFile(k, filepath.Join(o.dir, "config.yaml")); err != nil {
		return nil, err
	}

	if len(o.inline) > 0 {
		if err := k.Load(rawbytes.Provider(o.inline), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse inline config: %w", err)
		}
	}

	// The environment can select the env-specific file, so read it before
	// choosing the file and apply it again afterwards to keep its priority.
	envs := env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: transformEnv,
		EnvironFunc:   o.environ,
	})
	if err := k.Load(envs, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if appEnv := k.String("app.env"); appEnv != "" {
		envFile := filepath.Join(o.dir, fmt.Sprintf("config.%s.yaml", appEnv))
		if err := loadOptionalFile(k, envFile); err != nil {
			return nil, err
		}
		if len(o.inline) > 0 {
			if err := k.Load(rawbytes.Provider(o.inline), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to parse inline config: %w", err)
			}
		}
		if err := k.Load(envs, nil); err != nil {
			return nil, fmt.Errorf("failed to load environment variables: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.DecodeHookFuncType(millisecondsHook),
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadOptionalFile(k *koanf.Koanf, path string) error {
	err := k.Load(file.Provider(path), yaml.Parser())
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

var durationType = reflect.TypeOf(time.Duration(0))

// millisecondsHook reads a bare integer duration as milliseconds, so
// DASHCLIENT_API_TIMEOUT=30000 and timeout: 30000 both mean 30s.
func millisecondsHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		ms, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return data, nil
		}
		return time.Duration(ms) * time.Millisecond, nil
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case int64:
		return time.Duration(v) * time.Millisecond, nil
	case uint64:
		return time.Duration(v) * time.Millisecond, nil
	case float64:
		return time.Duration(v * float64(time.Millisecond)), nil
	}
	return data, nil
}

// transformEnv converts DASHCLIENT_UPPER_CASE to lower.case for koanf
func transformEnv(key, value string) (string, any) {
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":    "dashctl",
		"app.version": "v1.0.0",
		"app.env":     EnvDevelopment,

		"api.baseurl":           "https://api.dashboard.example.com/api",
		"api.timeout":           "30s",
		"api.retry.max":         3,
		"api.retry.delay":       "1s",
		"api.retry.maxdelay":    "30s",
		"api.csrf.ttl":          "30m",
		"api.auth.cookiemaxage": "168h",
		"api.ratelimit.rps":     0,
		"api.ratelimit.burst":   0,

		"queue.capacity":   50,
		"queue.maxreplays": 3,

		"connectivity.probe.enabled":  true,
		"connectivity.probe.interval": "15s",
		"connectivity.probe.timeout":  "5s",

		"storage.driver": StorageMemory,
		"storage.dsn":    "",

		"log.level":  "info",
		"log.pretty": false,

		"observability.enabled":           false,
		"observability.trace.enabled":     true,
		"observability.trace.endpoint":    "stdout",
		"observability.trace.protocol":    "http",
		"observability.trace.insecure":    false,
		"observability.trace.sample.rate": 1.0,
		"observability.metrics.enabled":   true,
		"observability.metrics.endpoint":  "stdout",
		"observability.metrics.interval":  "15s",
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
