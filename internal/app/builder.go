package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/code-reader/internal/api"
	"github.com/stacklok/code-reader/internal/auth"
	"github.com/stacklok/code-reader/internal/config"
	"github.com/stacklok/code-reader/internal/git"
	"github.com/stacklok/code-reader/internal/pipeline"
	"github.com/stacklok/code-reader/internal/telemetry"
	"github.com/stacklok/code-reader/internal/versions"
	"github.com/stacklok/code-reader/internal/worker"
	"github.com/stacklok/code-reader/internal/workspace"
)

const (
	defaultHTTPAddress = ":8080"
	// Content requests clone a whole repository, so the request and write
	// timeouts sit above the default clone timeout
	defaultRequestTimeout = config.DefaultCloneTimeout + time.Minute
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = defaultRequestTimeout + 30*time.Second
	defaultIdleTimeout    = 60 * time.Second

	pipelineTracerName = "github.com/stacklok/code-reader/internal/pipeline"
)

// defaultPublicPaths are paths that never require the access password
var defaultPublicPaths = []string{"/health", "/readiness", "/version", "/metrics"}

// CodeReaderAppOptions is a function that configures the code reader app builder
type CodeReaderAppOptions func(*codeReaderAppConfig) error

// codeReaderAppConfig collects the builder inputs. Component overrides exist
// for tests; production wiring derives everything from config.
type codeReaderAppConfig struct {
	config *config.Config

	// Optional component overrides
	gitClient        git.Client
	workspaceManager *workspace.Manager
	contentService   pipeline.Service
	telemetry        *telemetry.Telemetry

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Auth components
	authMiddleware func(http.Handler) http.Handler
}

func baseConfig(opts ...CodeReaderAppOptions) (*codeReaderAppConfig, error) {
	cfg := &codeReaderAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewCodeReaderApp wires the content pipeline, auth and HTTP server from the
// given options
func NewCodeReaderApp(
	ctx context.Context,
	opts ...CodeReaderAppOptions,
) (*CodeReaderApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	ownsTelemetry := false
	if cfg.telemetry == nil {
		cfg.telemetry, err = buildTelemetry(ctx, cfg.config.Telemetry)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		ownsTelemetry = true
	}

	contentService, err := buildContentService(ctx, cfg)
	if err != nil {
		if ownsTelemetry {
			_ = cfg.telemetry.Shutdown(ctx)
		}
		return nil, fmt.Errorf("failed to build content service: %w", err)
	}

	if cfg.authMiddleware == nil {
		cfg.authMiddleware, err = auth.NewAuthMiddleware(&cfg.config.Auth)
		if err != nil {
			if ownsTelemetry {
				_ = cfg.telemetry.Shutdown(ctx)
			}
			return nil, fmt.Errorf("failed to build auth middleware: %w", err)
		}
	}

	httpServer, err := buildHTTPServer(ctx, cfg, contentService)
	if err != nil {
		if ownsTelemetry {
			_ = cfg.telemetry.Shutdown(ctx)
		}
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	var shutdownTelemetry func(context.Context) error
	if ownsTelemetry {
		shutdownTelemetry = cfg.telemetry.Shutdown
	}

	return &CodeReaderApp{
		config: cfg.config,
		components: &AppComponents{
			ContentService: contentService,
			Telemetry:      cfg.telemetry,
		},
		httpServer:        httpServer,
		shutdownTelemetry: shutdownTelemetry,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) CodeReaderAppOptions {
	return func(cfg *codeReaderAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) CodeReaderAppOptions {
	return func(cfg *codeReaderAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		switch host {
		case "localhost":
			host = "127.0.0.1"
		case "":
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) CodeReaderAppOptions {
	return func(cfg *codeReaderAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithRequestTimeout bounds each HTTP request
func WithRequestTimeout(d time.Duration) CodeReaderAppOptions {
	return func(cfg *codeReaderAppConfig) error {
		if d <= 0 {
			return fmt.Errorf("request timeout must be positive")
		}
		cfg.requestTimeout = d
		if cfg.writeTimeout < d {
			cfg.writeTimeout = d + 30*time.Second
		}
		return nil
	}
}

// WithGitClient allows injecting a custom git client (for testing)
func WithGitClient(c git.Client) CodeReaderAppOptions {
	return func(cfg *codeReaderAppConfig) error {
		cfg.gitClient = c
		return nil
	}
}

// WithWorkspaceManager allows injecting a custom workspace manager (for testing)
func WithWorkspaceManager(m *workspace.Manager) CodeReaderAppOptions {
	return func(cfg *codeReaderAppConfig) error {
		cfg.workspaceManager = m
		return nil
	}
}

// WithContentService allows injecting a custom content service (for testing)
func WithContentService(svc pipeline.Service) CodeReaderAppOptions {
	return func(cfg *codeReaderAppConfig) error {
		cfg.contentService = svc
		return nil
	}
}

// WithAuthMiddleware allows injecting a custom auth middleware
func WithAuthMiddleware(mw func(http.Handler) http.Handler) CodeReaderAppOptions {
	return func(cfg *codeReaderAppConfig) error {
		cfg.authMiddleware = mw
		return nil
	}
}

// WithTelemetry uses tel instead of building one from config. The caller keeps
// ownership and must shut it down.
func WithTelemetry(tel *telemetry.Telemetry) CodeReaderAppOptions {
	return func(cfg *codeReaderAppConfig) error {
		cfg.telemetry = tel
		return nil
	}
}

// buildTelemetry initializes telemetry, stamping the build version when none is configured
func buildTelemetry(ctx context.Context, telCfg *telemetry.Config) (*telemetry.Telemetry, error) {
	if telCfg != nil && telCfg.ServiceVersion == "" {
		withVersion := *telCfg
		withVersion.ServiceVersion = versions.GetVersionInfo().Version
		telCfg = &withVersion
	}
	return telemetry.New(ctx, telCfg)
}

// buildContentService builds the git client, workspace manager and pipeline
func buildContentService(
	_ context.Context,
	b *codeReaderAppConfig,
) (pipeline.Service, error) {
	if b.contentService != nil {
		return b.contentService, nil
	}

	slog.Info("Initializing content service")

	token, err := b.config.Provider.GetToken()
	if err != nil {
		return nil, err
	}
	credential, err := git.NewCredential(token, b.config.Provider.HeaderTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider credential: %w", err)
	}

	if b.gitClient == nil {
		b.gitClient = git.NewDefaultGitClient()
	}

	if b.workspaceManager == nil {
		wsOpts := []workspace.Option{workspace.WithUniqueNames(b.config.Workspace.UniqueNames)}
		if b.config.Workspace.Prefix != "" {
			wsOpts = append(wsOpts, workspace.WithPrefix(b.config.Workspace.Prefix))
		}
		b.workspaceManager = workspace.NewOSManager(b.config.Workspace.BaseDir, wsOpts...)
	}

	cloneTimeout, err := b.config.Fetch.GetTimeout()
	if err != nil {
		return nil, err
	}

	pipelineMetrics, err := telemetry.NewPipelineMetrics(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	pool := worker.NewPool(b.config.Pipeline.Workers)
	svc, err := pipeline.New(b.gitClient, b.workspaceManager,
		pipeline.WithCredential(credential),
		pipeline.WithCloneDepth(b.config.Fetch.Depth),
		pipeline.WithCloneTimeout(cloneTimeout),
		pipeline.WithCloneLimits(b.config.Fetch.MaxFiles, b.config.Fetch.MaxTotalSize),
		pipeline.WithMaxContentChars(b.config.Pipeline.GetMaxContentChars()),
		pipeline.WithPool(pool),
		pipeline.WithMetrics(pipelineMetrics),
		pipeline.WithTracer(b.telemetry.Tracer(pipelineTracerName)),
	)
	if err != nil {
		return nil, err
	}

	slog.Info("Content service initialized",
		"workspace_base", b.config.Workspace.BaseDir,
		"clone_timeout", cloneTimeout.String(),
		"max_content_chars", b.config.Pipeline.GetMaxContentChars(),
		"workers", pool.Size())
	return svc, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
//
//nolint:unparam // we prefer having a similar interface
func buildHTTPServer(
	_ context.Context,
	b *codeReaderAppConfig,
	svc pipeline.Service,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Telemetry goes first so requests rejected by auth are still measured
	metricsMiddleware, err := telemetry.MetricsMiddleware(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
	}
	b.middlewares = append([]func(http.Handler) http.Handler{
		telemetry.TracingMiddleware(b.telemetry.TracerProvider()),
		metricsMiddleware,
	}, b.middlewares...)

	b.middlewares = append(b.middlewares, auth.WrapWithPublicPaths(b.authMiddleware, defaultPublicPaths))

	router := api.NewServer(svc,
		api.WithMiddlewares(b.middlewares...),
		api.WithMetricsHandler(b.telemetry.MetricsHandler()),
	)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
