package observability

import (
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	// EndpointStdout sends telemetry to Config.Writer instead of a collector.
	EndpointStdout = "stdout"

	ProtocolHTTP = "http"
	ProtocolGRPC = "grpc"

	defaultSampleRate     = 1.0
	defaultMetricInterval = 15 * time.Second
)

var (
	ErrMissingServiceName = errors.New("observability: service name is required")
	ErrInvalidSampleRate  = errors.New("observability: sample rate must be between 0.0 and 1.0")
	ErrInvalidProtocol    = errors.New("observability: protocol must be http or grpc")
)

// Config configures the trace and meter providers.
type Config struct {
	Enabled     bool          `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Service     ServiceConfig `koanf:"service" json:"service" yaml:"service"`
	Environment string        `koanf:"environment" json:"environment" yaml:"environment"`
	Trace       TraceConfig   `koanf:"trace" json:"trace" yaml:"trace"`
	Metrics     MetricsConfig `koanf:"metrics" json:"metrics" yaml:"metrics"`

	// Writer receives stdout exporter output. Defaults to os.Stderr.
	Writer io.Writer `koanf:"-" json:"-" yaml:"-"`
}

type ServiceConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name"`
	Version string `koanf:"version" json:"version" yaml:"version"`
}

type TraceConfig struct {
	Enabled  bool              `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Endpoint string            `koanf:"endpoint" json:"endpoint" yaml:"endpoint"`
	Protocol string            `koanf:"protocol" json:"protocol" yaml:"protocol"`
	Insecure bool              `koanf:"insecure" json:"insecure" yaml:"insecure"`
	Headers  map[string]string `koanf:"headers" json:"headers" yaml:"headers"`
	Sample   SampleConfig      `koanf:"sample" json:"sample" yaml:"sample"`
}

type SampleConfig struct {
	// Rate is a pointer so an explicit 0.0 is distinguishable from unset.
	Rate *float64 `koanf:"rate" json:"rate" yaml:"rate"`
}

type MetricsConfig struct {
	Enabled  bool          `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Endpoint string        `koanf:"endpoint" json:"endpoint" yaml:"endpoint"`
	Interval time.Duration `koanf:"interval" json:"interval" yaml:"interval"`
}

// ApplyDefaults fills unset fields in place.
func (c *Config) ApplyDefaults() {
	if c.Trace.Endpoint == "" {
		c.Trace.Endpoint = EndpointStdout
	}
	if c.Trace.Protocol == "" {
		c.Trace.Protocol = ProtocolHTTP
	}
	if c.Trace.Sample.Rate == nil {
		rate := defaultSampleRate
		c.Trace.Sample.Rate = &rate
	}
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = EndpointStdout
	}
	if c.Metrics.Interval <= 0 {
		c.Metrics.Interval = defaultMetricInterval
	}
}

// Validate checks an enabled config. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Service.Name == "" {
		return ErrMissingServiceName
	}
	if c.Trace.Sample.Rate != nil {
		if rate := *c.Trace.Sample.Rate; rate < 0 || rate > 1 {
			return fmt.Errorf("%w: got %v", ErrInvalidSampleRate, rate)
		}
	}
	switch c.Trace.Protocol {
	case "", ProtocolHTTP, ProtocolGRPC:
		return nil
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidProtocol, c.Trace.Protocol)
	}
}

func (c *Config) sampleRate() float64 {
	if c.Trace.Sample.Rate == nil {
		return defaultSampleRate
	}
	return *c.Trace.Sample.Rate
}
