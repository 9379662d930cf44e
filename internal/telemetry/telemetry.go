package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Telemetry owns the tracer and meter providers for the lifetime of the process.
// Signals that are not enabled get no-op providers.
type Telemetry struct {
	sdkTracer *sdktrace.TracerProvider
	sdkMeter  *sdkmetric.MeterProvider
	registry  *prometheus.Registry
}

// New initializes the providers described by cfg. A nil or disabled cfg yields
// no-op providers. Shutdown must be called on exit.
func New(ctx context.Context, cfg *Config) (*Telemetry, error) {
	if cfg == nil || !cfg.Enabled {
		slog.Debug("Telemetry disabled")
		return &Telemetry{}, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry configuration: %w", err)
	}

	slog.Info("Initializing telemetry",
		"service_name", cfg.GetServiceName(),
		"service_version", cfg.GetServiceVersion(),
	)

	target, err := newExportTarget(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tel := &Telemetry{}
	if tel.sdkTracer, err = newTracerProvider(ctx, target, cfg.Tracing); err != nil {
		return nil, fmt.Errorf("failed to create tracer provider: %w", err)
	}
	if tel.sdkMeter, tel.registry, err = newMeterProvider(ctx, target, cfg.Metrics); err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create meter provider: %w", err)
	}

	return tel, nil
}

// TracerProvider returns the tracer provider
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	if t.sdkTracer == nil {
		return tracenoop.NewTracerProvider()
	}
	return t.sdkTracer
}

// MeterProvider returns the meter provider
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	if t.sdkMeter == nil {
		return metricnoop.NewMeterProvider()
	}
	return t.sdkMeter
}

// Tracer returns a named tracer
func (t *Telemetry) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return t.TracerProvider().Tracer(name, opts...)
}

// MetricsHandler serves the Prometheus exposition format, or returns nil when
// Prometheus export is off
func (t *Telemetry) MetricsHandler() http.Handler {
	if t.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the SDK providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.sdkTracer == nil && t.sdkMeter == nil {
		return nil
	}
	slog.Info("Shutting down telemetry")

	var errs []error
	if t.sdkTracer != nil {
		if err := t.sdkTracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
	}
	if t.sdkMeter != nil {
		if err := t.sdkMeter.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
