package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// DefaultMetricsInterval is how often metrics are pushed over OTLP
const DefaultMetricsInterval = 30 * time.Second

// newMeterProvider attaches an OTLP push reader and, for Prometheus scraping, a
// pull reader backed by a fresh registry. Both results are nil when metrics
// are not enabled; the registry is nil unless Prometheus export is on.
func newMeterProvider(
	ctx context.Context,
	target *exportTarget,
	mc *MetricsConfig,
) (*sdkmetric.MeterProvider, *prometheus.Registry, error) {
	if mc == nil || !mc.Enabled {
		slog.Info("Metrics disabled")
		return nil, nil, nil
	}

	providerOpts := []sdkmetric.Option{sdkmetric.WithResource(target.resource)}

	if !mc.DisableOTLP {
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(target.endpoint)}
		if target.insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
		}
		providerOpts = append(providerOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(DefaultMetricsInterval)),
		))
	}

	var registry *prometheus.Registry
	if mc.Prometheus {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		reader, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		providerOpts = append(providerOpts, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(providerOpts...)
	otel.SetMeterProvider(mp)

	slog.Info("Metrics initialized",
		"endpoint", target.endpoint,
		"otlp", !mc.DisableOTLP,
		"prometheus", mc.Prometheus,
	)
	return mp, registry, nil
}
