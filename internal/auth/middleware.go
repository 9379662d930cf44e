// Package auth provides the shared-password gate in front of the code reader API.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Messages returned with 401 responses
const (
	MessageHeaderMissing = "Authorization header missing"
	MessageUnauthorized  = "Unauthorized"
)

// passwordMiddleware admits requests whose Authorization header equals the access password
type passwordMiddleware struct {
	password []byte
}

func newPasswordMiddleware(password string) (*passwordMiddleware, error) {
	if password == "" {
		return nil, errors.New("access password cannot be empty")
	}
	return &passwordMiddleware{password: []byte(password)}, nil
}

// Middleware returns an HTTP middleware function that enforces the password
func (m *passwordMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			slog.Warn("Authorization header missing",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path)
			writeError(w, MessageHeaderMissing)
			return
		}

		if subtle.ConstantTimeCompare([]byte(header), m.password) != 1 {
			slog.Warn("Authorization rejected",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path)
			writeError(w, MessageUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeError writes a 401 JSON error response
func writeError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	resp := struct {
		Error string `json:"error"`
	}{
		Error: message,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

// WrapWithPublicPaths wraps an auth middleware so requests to publicPaths skip it.
// Matching follows IsPublicPath.
func WrapWithPublicPaths(
	authMw func(http.Handler) http.Handler,
	publicPaths []string,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		// Pre-wrap the handler once during initialization, not per-request
		authWrappedNext := authMw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublicPath(r.URL.Path, publicPaths) {
				next.ServeHTTP(w, r)
				return
			}
			authWrappedNext.ServeHTTP(w, r)
		})
	}
}
