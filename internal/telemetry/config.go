// Package telemetry wires OpenTelemetry tracing and metrics for the code reader.
// Traces and metrics are pushed over OTLP/HTTP; metrics can additionally be
// served for Prometheus scraping.
package telemetry

import (
	"errors"
	"fmt"
)

const (
	// DefaultServiceName identifies the service in exported telemetry
	DefaultServiceName = "code-reader"

	// DefaultEndpoint is the OTLP/HTTP collector address
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling is the trace ratio used when none is configured
	DefaultSampling = 0.1

	unknownVersion = "unknown"
)

// Config is the telemetry section of the service configuration
type Config struct {
	// Enabled turns telemetry on; everything is a no-op otherwise
	Enabled bool `yaml:"enabled"`

	// ServiceName defaults to DefaultServiceName
	ServiceName string `yaml:"serviceName,omitempty"`

	// ServiceVersion defaults to the build version
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the OTLP collector as host:port; /v1/traces and /v1/metrics are appended
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure sends OTLP over plain HTTP
	Insecure bool `yaml:"insecure,omitempty"`

	Tracing *TracingConfig `yaml:"tracing,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig configures span export
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sampling is the ratio of traces kept, between 0 and 1. Zero selects DefaultSampling.
	Sampling float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig configures metric export
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Prometheus exposes the metrics on /metrics for scraping
	Prometheus bool `yaml:"prometheus,omitempty"`

	// DisableOTLP stops pushing metrics to the collector
	DisableOTLP bool `yaml:"disableOtlp,omitempty"`
}

// GetServiceName returns the configured service name or DefaultServiceName
func (c *Config) GetServiceName() string {
	if c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// GetServiceVersion returns the configured version or "unknown"
func (c *Config) GetServiceVersion() string {
	if c.ServiceVersion == "" {
		return unknownVersion
	}
	return c.ServiceVersion
}

// GetEndpoint returns the configured endpoint or DefaultEndpoint
func (c *Config) GetEndpoint() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

// GetSampling returns the sampling ratio, DefaultSampling when unset
func (c *TracingConfig) GetSampling() float64 {
	if c.Sampling == 0 {
		return DefaultSampling
	}
	return c.Sampling
}

// PrometheusEnabled reports whether metrics should be served for scraping
func (c *Config) PrometheusEnabled() bool {
	return c != nil && c.Enabled && c.Metrics != nil && c.Metrics.Enabled && c.Metrics.Prometheus
}

// Validate checks the configuration. A nil or disabled config is valid.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error
	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}
	return errors.Join(errs...)
}

// Validate checks the sampling ratio
func (c *TracingConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}
	if c.Sampling < 0 || c.Sampling > 1 {
		return fmt.Errorf("sampling must be between 0.0 and 1.0, got %f", c.Sampling)
	}
	return nil
}

// Validate checks that at least one exporter is left enabled
func (c *MetricsConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}
	if c.DisableOTLP && !c.Prometheus {
		return errors.New("at least one of otlp or prometheus export must be enabled")
	}
	return nil
}
