package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetricsMeterName is the meter used for content pipeline instruments
const PipelineMetricsMeterName = "github.com/stacklok/code-reader/pipeline"

// Pipeline outcomes recorded on the duration histogram
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// PipelineMetrics holds the instruments recorded for each content request
type PipelineMetrics struct {
	duration     metric.Float64Histogram
	contentSize  metric.Int64Histogram
	skippedFiles metric.Int64Counter
	truncated    metric.Int64Counter
}

// NewPipelineMetrics creates the pipeline instruments. A nil provider yields
// nil metrics, on which every Record method is a no-op.
func NewPipelineMetrics(provider metric.MeterProvider) (*PipelineMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(PipelineMetricsMeterName)

	duration, err := meter.Float64Histogram(
		"code_reader_pipeline_duration_seconds",
		metric.WithDescription("Duration of content pipeline runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	contentSize, err := meter.Int64Histogram(
		"code_reader_content_characters",
		metric.WithDescription("Characters of aggregated content before truncation"),
		metric.WithUnit("{char}"),
		metric.WithExplicitBucketBoundaries(1e3, 1e4, 5e4, 1e5, 1e6, 1e7),
	)
	if err != nil {
		return nil, err
	}

	skippedFiles, err := meter.Int64Counter(
		"code_reader_skipped_files_total",
		metric.WithDescription("Files left out of aggregated content"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, err
	}

	truncated, err := meter.Int64Counter(
		"code_reader_truncated_total",
		metric.WithDescription("Responses cut to the content limit"),
		metric.WithUnit("{response}"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		duration:     duration,
		contentSize:  contentSize,
		skippedFiles: skippedFiles,
		truncated:    truncated,
	}, nil
}

// RecordDuration records one pipeline run. stage is the stage that failed, or
// empty on success.
func (m *PipelineMetrics) RecordDuration(ctx context.Context, d time.Duration, stage string, success bool) {
	if m == nil {
		return
	}

	outcome := OutcomeSuccess
	if !success {
		outcome = OutcomeFailure
	}
	attrs := []attribute.KeyValue{attribute.String("outcome", outcome)}
	if stage != "" {
		attrs = append(attrs, attribute.String("stage", stage))
	}
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

// RecordContent records the aggregated size and whether it was truncated
func (m *PipelineMetrics) RecordContent(ctx context.Context, chars int, truncated bool) {
	if m == nil {
		return
	}
	m.contentSize.Record(ctx, int64(chars))
	if truncated {
		m.truncated.Add(ctx, 1)
	}
}

// RecordSkippedFile counts a file left out of aggregation for reason
func (m *PipelineMetrics) RecordSkippedFile(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.skippedFiles.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
