// Package observability wires an OpenTelemetry tracer around a run so each
// simulated block becomes a span. Grounded on the teacher's
// internal/infra/observability package (ObservabilityConfig +
// TelemetryProvider shape), trimmed from its multi-backend design (OTLP,
// DataDog, Elastic, Prometheus push) to the one backend this batch-mode
// engine has any use for: a local trace exporter, since metrics already
// have a dedicated Prometheus pull endpoint (see the metrics package) and
// there is no collector endpoint to push spans to.
package observability

import (
	"fmt"
	"os"
	"strconv"
)

// Config controls whether tracing is enabled and how spans are tagged.
type Config struct {
	Enabled       bool    `env:"TRACING_ENABLED" envDefault:"true"`
	ServiceName   string  `env:"SERVICE_NAME" envDefault:"ridehail-sim"`
	Environment   string  `env:"ENV" envDefault:"development"`
	Version       string  `env:"SERVICE_VERSION" envDefault:"0.1.0"`
	SamplingRatio float64 `env:"TRACING_SAMPLING_RATIO" envDefault:"1.0"`
}

// LoadConfig reads tracing configuration from the process environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Enabled:       getBoolEnv("TRACING_ENABLED", true),
		ServiceName:   getStringEnv("SERVICE_NAME", "ridehail-sim"),
		Environment:   getStringEnv("ENV", "development"),
		Version:       getStringEnv("SERVICE_VERSION", "0.1.0"),
		SamplingRatio: getFloat64Env("TRACING_SAMPLING_RATIO", 1.0),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects a sampling ratio outside the valid OpenTelemetry range.
func (c *Config) Validate() error {
	if c.SamplingRatio < 0.0 || c.SamplingRatio > 1.0 {
		return fmt.Errorf("tracing sampling ratio must be between 0.0 and 1.0, got %f", c.SamplingRatio)
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	return nil
}

// ResourceAttributes returns the OpenTelemetry resource attributes every
// span from this process carries.
func (c *Config) ResourceAttributes() map[string]string {
	return map[string]string{
		"service.name":           c.ServiceName,
		"service.version":        c.Version,
		"deployment.environment": c.Environment,
	}
}

func getStringEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloat64Env(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
