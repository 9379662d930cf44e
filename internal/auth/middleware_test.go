package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestHandler returns a handler that records whether it was called
func newTestHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

func TestNewPasswordMiddleware_EmptyPassword(t *testing.T) {
	t.Parallel()

	_, err := newPasswordMiddleware("")
	require.Error(t, err)
}

func TestPasswordMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		authHeader  string
		wantStatus  int
		wantCalled  bool
		wantMessage string
	}{
		{
			name:        "missing authorization header",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: MessageHeaderMissing,
		},
		{
			name:        "wrong password",
			authHeader:  "wrong",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: MessageUnauthorized,
		},
		{
			name:        "password prefix only",
			authHeader:  "s3cr",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: MessageUnauthorized,
		},
		{
			name:        "bearer scheme is not stripped",
			authHeader:  "Bearer s3cr3t",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: MessageUnauthorized,
		},
		{
			name:       "correct password",
			authHeader: "s3cr3t",
			wantStatus: http.StatusOK,
			wantCalled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, err := newPasswordMiddleware("s3cr3t")
			require.NoError(t, err)

			handler, called := newTestHandler()
			req := httptest.NewRequest(http.MethodPost, "/get-repo-content/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()
			m.Middleware(handler).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantCalled, *called)

			if tt.wantMessage != "" {
				assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
				var body map[string]string
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
				assert.Equal(t, tt.wantMessage, body["error"])
			}
		})
	}
}

func TestWrapWithPublicPaths(t *testing.T) {
	t.Parallel()

	m, err := newPasswordMiddleware("s3cr3t")
	require.NoError(t, err)
	wrapped := WrapWithPublicPaths(m.Middleware, []string{"/health", "/metrics"})

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/", http.StatusUnauthorized},
		{"/health", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/get-repo-content/", http.StatusUnauthorized},
		{"/health/../get-repo-content/", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			handler, _ := newTestHandler()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.URL.Path = tt.path
			rr := httptest.NewRecorder()
			wrapped(handler).ServeHTTP(rr, req)
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}
