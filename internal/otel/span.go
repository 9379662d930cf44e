// Package otel holds the span helpers and attribute keys shared by the code
// reader's instrumented packages.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Attribute keys recorded on pipeline spans
const (
	AttrRepoURL       = attribute.Key("repo.url")
	AttrRepoName      = attribute.Key("repo.name")
	AttrRepoCommit    = attribute.Key("repo.commit")
	AttrPipelineStage = attribute.Key("pipeline.stage")
	AttrFileCount     = attribute.Key("aggregate.files")
	AttrSkippedCount  = attribute.Key("aggregate.skipped")
	AttrContentLength = attribute.Key("content.length")
	AttrTruncated     = attribute.Key("content.truncated")
)

// StartSpan starts a span on tracer. A nil tracer yields a non-recording span
// that never ends the parent span carried by ctx.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError marks span as failed. The status text stays generic because error
// messages can carry repository URLs; the full error is kept on the span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
