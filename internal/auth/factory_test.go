package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/code-reader/internal/config"
)

func TestNewAuthMiddleware(t *testing.T) {
	t.Setenv(config.EnvAccessPassword, "from-env")

	passwordFile := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(passwordFile, []byte("from-file\n"), 0o600))

	tests := []struct {
		name       string
		cfg        *config.AuthConfig
		wantErr    string
		header     string
		wantStatus int
	}{
		{
			name:       "nil config uses password from environment",
			cfg:        nil,
			header:     "from-env",
			wantStatus: http.StatusOK,
		},
		{
			name:       "password file",
			cfg:        &config.AuthConfig{Mode: config.AuthModePassword, PasswordFile: passwordFile},
			header:     "from-file",
			wantStatus: http.StatusOK,
		},
		{
			name:       "password file rejects environment value",
			cfg:        &config.AuthConfig{PasswordFile: passwordFile},
			header:     "from-env",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "anonymous",
			cfg:        &config.AuthConfig{Mode: config.AuthModeAnonymous},
			wantStatus: http.StatusOK,
		},
		{
			name:    "missing password file",
			cfg:     &config.AuthConfig{PasswordFile: "/does/not/exist"},
			wantErr: "failed to read access password",
		},
		{
			name:    "unsupported mode",
			cfg:     &config.AuthConfig{Mode: "oauth"},
			wantErr: "unsupported auth mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw, err := NewAuthMiddleware(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			handler, _ := newTestHandler()
			req := httptest.NewRequest(http.MethodPost, "/get-repo-content/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			mw(handler).ServeHTTP(rr, req)
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestAnonymousMiddleware(t *testing.T) {
	t.Parallel()

	handler, called := newTestHandler()
	wrapped := anonymousMiddleware(handler)

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, req)

	assert.True(t, *called, "handler should be called")
	assert.Equal(t, http.StatusOK, rr.Code)
}
