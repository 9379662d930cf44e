package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// exportTarget is where both providers send their data and how they identify
// the process
type exportTarget struct {
	resource *resource.Resource
	endpoint string
	insecure bool
}

func newExportTarget(ctx context.Context, cfg *Config) (*exportTarget, error) {
	// resource.New rather than resource.Default keeps the semconv schema URL ours
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.GetServiceName()),
			semconv.ServiceVersion(cfg.GetServiceVersion()),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if cfg.Insecure {
		slog.Warn("Telemetry is exported over unencrypted HTTP", "endpoint", cfg.GetEndpoint())
	}
	return &exportTarget{
		resource: res,
		endpoint: cfg.GetEndpoint(),
		insecure: cfg.Insecure,
	}, nil
}

// newTracerProvider batches spans to the OTLP collector. It returns nil when
// tracing is not enabled.
func newTracerProvider(ctx context.Context, target *exportTarget, tc *TracingConfig) (*sdktrace.TracerProvider, error) {
	if tc == nil || !tc.Enabled {
		slog.Info("Tracing disabled")
		return nil, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(target.endpoint)}
	if target.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(target.resource),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(tc.GetSampling()))),
	)

	// Incoming traceparent headers continue the caller's trace
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	slog.Info("Tracing initialized", "endpoint", target.endpoint, "sampling_ratio", tc.GetSampling())
	return tp, nil
}
