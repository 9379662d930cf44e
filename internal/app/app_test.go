package app

import (
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/code-reader/internal/config"
	"github.com/stacklok/code-reader/internal/pipeline/mocks"
)

func createTestApp(t *testing.T, ctrl *gomock.Controller, addr string) *CodeReaderApp {
	t.Helper()

	app, err := NewCodeReaderApp(t.Context(),
		WithConfig(createValidTestConfig(t)),
		WithContentService(mocks.NewMockService(ctrl)),
		WithAddress(addr),
	)
	require.NoError(t, err)
	return app
}

func TestCodeReaderApp_ServeAndStop(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	app := createTestApp(t, ctrl, "127.0.0.1:0")

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Serve(listener)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, app.Stop(5*time.Second))

	select {
	case serveErr := <-errChan:
		require.NoError(t, serveErr)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after Stop()")
	}
}

func TestCodeReaderApp_StartAndStop(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	app := createTestApp(t, ctrl, "127.0.0.1:0")

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()

	// Give ListenAndServe a moment to bind
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, app.Stop(5*time.Second))

	select {
	case startErr := <-errChan:
		require.NoError(t, startErr)
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after Stop()")
	}
}

func TestCodeReaderApp_StopIdempotent(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	app := createTestApp(t, ctrl, ":0")
	require.NoError(t, app.Stop(time.Second))
	require.NoError(t, app.Stop(time.Second))
}

func TestCodeReaderApp_StartError_InvalidAddress(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	app := createTestApp(t, ctrl, ":0")
	app.httpServer.Addr = "invalid-address"

	err := app.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP server failed")
}

func TestCodeReaderApp_Getters(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	app := createTestApp(t, ctrl, ":9090")
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	require.NotNil(t, app.GetConfig())
	assert.Equal(t, config.AuthModeAnonymous, app.GetConfig().Auth.GetMode())
	require.NotNil(t, app.GetHTTPServer())
	assert.Equal(t, ":9090", app.GetHTTPServer().Addr)
	assert.NotNil(t, app.components.ContentService)
	assert.NotNil(t, app.components.Telemetry)
}
