// Package content provides the repository content endpoints.
package content

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/code-reader/internal/api/common"
	"github.com/stacklok/code-reader/internal/pipeline"
)

const (
	// WelcomeMessage is returned by GET /
	WelcomeMessage = "Welcome to Code Reader!"

	// maxRequestBytes bounds the JSON request body
	maxRequestBytes = 1 << 20
)

// Request is the body of POST /get-repo-content/
type Request struct {
	GitURL string `json:"git_url"`
}

// Response is returned on success
type Response struct {
	Content string `json:"content"`
}

// WelcomeResponse is returned by GET /
type WelcomeResponse struct {
	Message string `json:"message"`
}

// Routes holds the content handlers
type Routes struct {
	service pipeline.Service
}

// NewRoutes creates a new Routes instance with the provided service
func NewRoutes(svc pipeline.Service) *Routes {
	return &Routes{service: svc}
}

// Register adds the content routes to r. The content endpoint answers with and
// without a trailing slash.
func (rr *Routes) Register(r chi.Router) {
	r.Get("/", rr.welcome)
	r.Post("/get-repo-content", rr.getRepoContent)
	r.Post("/get-repo-content/", rr.getRepoContent)
}

func (*Routes) welcome(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, WelcomeResponse{Message: WelcomeMessage}, http.StatusOK)
}

// getRepoContent clones git_url and returns its aggregated text
func (rr *Routes) getRepoContent(w http.ResponseWriter, r *http.Request) {
	var req Request
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := decoder.Decode(&req); err != nil {
		common.WriteErrorResponse(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := rr.service.FetchContent(r.Context(), &pipeline.FetchRequest{SourceURL: req.GitURL})
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidRequest) {
			common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.ErrorContext(r.Context(), "Failed to fetch repository content", "error", err)
		common.WriteErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}

	common.WriteJSONResponse(w, Response{Content: result.Content}, http.StatusOK)
}
