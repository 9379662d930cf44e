// Package v0 provides the operational endpoints of the code reader API.
package v0

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/code-reader/internal/api/common"
	"github.com/stacklok/code-reader/internal/pipeline"
	"github.com/stacklok/code-reader/internal/versions"
)

// HealthRouter creates a router for health check endpoints
func HealthRouter(svc pipeline.Service) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(svc))
	r.Get("/version", versionHandler)

	return r
}

// healthHandler reports that the process is serving requests
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, map[string]string{"status": "healthy"}, http.StatusOK)
}

// readinessHandler reports whether a workspace can be created right now
func readinessHandler(svc pipeline.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.CheckReadiness(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "Readiness check failed", "error", err)
			common.WriteErrorResponse(w, "service not ready: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		common.WriteJSONResponse(w, map[string]string{"status": "ready"}, http.StatusOK)
	}
}

// versionHandler handles version information requests
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}
