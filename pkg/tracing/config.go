package tracing

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the tracing configuration
type Config struct {
	// Service configuration
	ServiceName    string `env:"OTEL_SERVICE_NAME" envDefault:"notification-service"`
	ServiceVersion string `env:"OTEL_SERVICE_VERSION" envDefault:"1.0.0"`
	Environment    string `env:"ENVIRONMENT" envDefault:"development"`

	// OpenTelemetry collector, host:port for the gRPC connection
	OTLPExporterEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`

	// Sampling configuration
	SamplingRatio float64 `env:"OTEL_TRACE_SAMPLE_RATIO" envDefault:"1.0"`
	SamplingType  string  `env:"OTEL_TRACE_SAMPLER" envDefault:"probabilistic"` // "probabilistic", "always_on", "always_off"

	InstanceID string `env:"HOSTNAME"`
}

// NewConfig reads the tracing configuration from the environment
func NewConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse tracing config: %w", err)
	}
	return &cfg, cfg.Validate()
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return &ConfigError{Field: "ServiceName", Message: "service name cannot be empty"}
	}
	if c.OTLPExporterEndpoint == "" {
		return &ConfigError{Field: "OTLPExporterEndpoint", Message: "OTLP exporter endpoint cannot be empty"}
	}
	if c.SamplingRatio < 0 || c.SamplingRatio > 1 {
		return &ConfigError{Field: "SamplingRatio", Message: "sampling ratio must be between 0 and 1"}
	}
	switch c.SamplingType {
	case "probabilistic", "always_on", "always_off":
	default:
		return &ConfigError{Field: "SamplingType", Message: fmt.Sprintf("unknown sampler %q", c.SamplingType)}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Message)
}
