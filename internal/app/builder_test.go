package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/code-reader/internal/auth"
	"github.com/stacklok/code-reader/internal/config"
	"github.com/stacklok/code-reader/internal/git"
	gitmocks "github.com/stacklok/code-reader/internal/git/mocks"
	"github.com/stacklok/code-reader/internal/pipeline/mocks"
	"github.com/stacklok/code-reader/internal/telemetry"
)

// createValidTestConfig returns an anonymous-mode config whose secrets live in t.TempDir
func createValidTestConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "token")
	require.NoError(t, os.WriteFile(tokenFile, []byte("ghp_test"), 0o600))

	return &config.Config{
		Provider:  config.ProviderConfig{TokenFile: tokenFile},
		Auth:      config.AuthConfig{Mode: config.AuthModeAnonymous},
		Workspace: config.WorkspaceConfig{BaseDir: filepath.Join(dir, "work")},
	}
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestBaseConfigDefaults(t *testing.T) {
	t.Parallel()

	built, err := baseConfig(WithConfig(createValidTestConfig(t)))
	require.NoError(t, err)
	assert.Equal(t, defaultHTTPAddress, built.address)
	assert.Equal(t, defaultRequestTimeout, built.requestTimeout)
	assert.Greater(t, built.writeTimeout, built.requestTimeout)
}

func TestWithAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{name: "port only", address: ":9090"},
		{name: "localhost", address: "localhost:8080"},
		{name: "ipv4", address: "127.0.0.1:0"},
		{name: "empty", address: "", wantErr: true},
		{name: "missing port", address: ":", wantErr: true},
		{name: "no colon", address: "8080", wantErr: true},
		{name: "non numeric port", address: ":http-alt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			built, err := baseConfig(WithAddress(tt.address))
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, built)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.address, built.address)
		})
	}
}

func TestWithRequestTimeout(t *testing.T) {
	t.Parallel()

	built, err := baseConfig(WithRequestTimeout(20 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, built.requestTimeout)
	assert.Greater(t, built.writeTimeout, built.requestTimeout)

	_, err = baseConfig(WithRequestTimeout(0))
	assert.Error(t, err)
}

func TestNewCodeReaderApp_NilConfig(t *testing.T) {
	t.Parallel()

	_, err := NewCodeReaderApp(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config cannot be nil")
}

func TestNewCodeReaderApp_MissingProviderToken(t *testing.T) {
	t.Parallel()

	cfg := createValidTestConfig(t)
	cfg.Provider.TokenFile = filepath.Join(t.TempDir(), "missing")

	_, err := NewCodeReaderApp(t.Context(), WithConfig(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build content service")
}

func TestNewCodeReaderApp_ServesContent(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	cfg := createValidTestConfig(t)
	cfg.Fetch = config.FetchConfig{Depth: 1, MaxFiles: 50}

	gitClient := gitmocks.NewMockClient(ctrl)
	gitClient.EXPECT().Clone(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, cloneCfg *git.CloneConfig) (*git.RepositoryInfo, error) {
			require.NotNil(t, cloneCfg.Credential)
			assert.Equal(t, "token ghp_test", cloneCfg.Credential.HeaderValue())
			assert.Equal(t, int64(50), cloneCfg.MaxFiles)
			require.NoError(t, util.WriteFile(cloneCfg.Filesystem, "README.md", []byte("# sample"), 0o644))
			return &git.RepositoryInfo{Commit: "abc"}, nil
		})
	gitClient.EXPECT().Cleanup(gomock.Any(), gomock.Any()).Return(nil)

	app, err := NewCodeReaderApp(t.Context(), WithConfig(cfg), WithGitClient(gitClient))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	handler := app.GetHTTPServer().Handler
	rr := doRequest(t, handler, http.MethodPost, "/get-repo-content/", `{"git_url":"https://github.com/org/sample.git"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "File: README.md\n\n# sample\n\n", body["content"])

	entries, err := os.ReadDir(cfg.Workspace.BaseDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewCodeReaderApp_PasswordGate(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	cfg := createValidTestConfig(t)
	passwordFile := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(passwordFile, []byte("s3cr3t\n"), 0o600))
	cfg.Auth = config.AuthConfig{Mode: config.AuthModePassword, PasswordFile: passwordFile}

	svc := mocks.NewMockService(ctrl)
	svc.EXPECT().CheckReadiness(gomock.Any()).Return(nil)

	app, err := NewCodeReaderApp(t.Context(), WithConfig(cfg), WithContentService(svc))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })
	handler := app.GetHTTPServer().Handler

	// Operational routes stay open
	assert.Equal(t, http.StatusOK, doRequest(t, handler, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(t, handler, http.MethodGet, "/readiness", "", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(t, handler, http.MethodGet, "/version", "", nil).Code)

	rr := doRequest(t, handler, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), auth.MessageHeaderMissing)

	rr = doRequest(t, handler, http.MethodGet, "/", "", map[string]string{"Authorization": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), auth.MessageUnauthorized)

	rr = doRequest(t, handler, http.MethodGet, "/", "", map[string]string{"Authorization": "s3cr3t"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Welcome to Code Reader!")

	rr = doRequest(t, handler, http.MethodPost, "/get-repo-content/", `{"git_url":"x"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), auth.MessageHeaderMissing)

	rr = doRequest(t, handler, http.MethodPost, "/get-repo-content/", `{"git_url":"x"}`, map[string]string{"Authorization": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), auth.MessageUnauthorized)
}

func TestNewCodeReaderApp_PrometheusMetrics(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	cfg := createValidTestConfig(t)
	cfg.Telemetry = &telemetry.Config{
		Enabled: true,
		Metrics: &telemetry.MetricsConfig{Enabled: true, Prometheus: true, DisableOTLP: true},
	}

	app, err := NewCodeReaderApp(t.Context(), WithConfig(cfg), WithContentService(mocks.NewMockService(ctrl)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })
	handler := app.GetHTTPServer().Handler

	require.Equal(t, http.StatusOK, doRequest(t, handler, http.MethodGet, "/", "", nil).Code)

	rr := doRequest(t, handler, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "code_reader_http_request")
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestNewCodeReaderApp_MetricsRouteAbsentByDefault(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	app, err := NewCodeReaderApp(t.Context(),
		WithConfig(createValidTestConfig(t)),
		WithContentService(mocks.NewMockService(ctrl)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	rr := doRequest(t, app.GetHTTPServer().Handler, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestNewCodeReaderApp_CustomMiddlewares(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	called := false
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			next.ServeHTTP(w, r)
		})
	}

	app, err := NewCodeReaderApp(t.Context(),
		WithConfig(createValidTestConfig(t)),
		WithContentService(mocks.NewMockService(ctrl)),
		WithMiddlewares(mw),
		WithAddress("127.0.0.1:0"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	assert.Equal(t, "127.0.0.1:0", app.GetHTTPServer().Addr)
	doRequest(t, app.GetHTTPServer().Handler, http.MethodGet, "/health", "", nil)
	assert.True(t, called)
}
