// Package app provides application lifecycle management for the code reader server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/stacklok/code-reader/internal/config"
)

// CodeReaderApp encapsulates all components needed to run the code reader API server
type CodeReaderApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// shutdownTelemetry is set when the app created its own telemetry
	shutdownTelemetry func(context.Context) error
}

// Start serves HTTP on the configured address and blocks until the server stops
func (app *CodeReaderApp) Start() error {
	slog.Info("Server listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Serve serves HTTP on l and blocks until the server stops
func (app *CodeReaderApp) Serve(l net.Listener) error {
	slog.Info("Server listening", "address", l.Addr().String())
	if err := app.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the application with the given timeout. In-flight
// requests finish, which releases their workspaces, before telemetry is flushed.
func (app *CodeReaderApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}

	if app.shutdownTelemetry != nil {
		if err := app.shutdownTelemetry(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown telemetry: %w", err))
		}
		app.shutdownTelemetry = nil
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *CodeReaderApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *CodeReaderApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
