package app

import (
	"github.com/stacklok/code-reader/internal/pipeline"
	"github.com/stacklok/code-reader/internal/telemetry"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// ContentService runs the clone and aggregate pipeline
	ContentService pipeline.Service

	// Telemetry owns the tracer and meter providers
	Telemetry *telemetry.Telemetry
}
