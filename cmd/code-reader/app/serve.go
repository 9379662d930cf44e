package app

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	readerapp "github.com/stacklok/code-reader/internal/app"
	"github.com/stacklok/code-reader/internal/config"
)

// defaultGracefulTimeout lets in-flight clones finish and release their workspaces
const defaultGracefulTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the code reader API server",
		Long: `Start the code reader API server.

The provider token is read from provider.tokenFile or GITHUB_TOKEN and the access
password from auth.passwordFile or ACCESS_PASSWORD. A configuration file (--config)
is optional; see examples/ for a sample.`,
		RunE: runServe,
	}

	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format)")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
	}
	if err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config")); err != nil {
		slog.Error("Failed to bind config flag", "error", err)
	}

	return serveCmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, viper.GetString("address"), viper.GetString("config"))
}

// serve runs the server until ctx is done or the listener fails
func serve(ctx context.Context, address, configPath string) error {
	var opts []config.Option
	if configPath != "" {
		opts = append(opts, config.WithConfigPath(configPath))
	}
	cfg, err := config.LoadConfig(opts...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration",
		"path", configPath,
		"auth_mode", cfg.Auth.GetMode(),
		"workspace_base", cfg.Workspace.BaseDir)

	application, err := readerapp.NewCodeReaderApp(ctx,
		readerapp.WithConfig(cfg),
		readerapp.WithAddress(address),
	)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Start()
	}()

	select {
	case err := <-errCh:
		if stopErr := application.Stop(defaultGracefulTimeout); stopErr != nil {
			slog.Error("Failed to stop application", "error", stopErr)
		}
		return err
	case <-ctx.Done():
	}

	return application.Stop(defaultGracefulTimeout)
}
