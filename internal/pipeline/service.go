// Package pipeline turns a repository URL into its aggregated text content.
//
// Each call runs workspace, fetch and aggregate in order, truncates the
// result, and always releases the workspace it acquired. Clone and aggregation
// run on a bounded worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/code-reader/internal/aggregate"
	"github.com/stacklok/code-reader/internal/git"
	"github.com/stacklok/code-reader/internal/otel"
	"github.com/stacklok/code-reader/internal/telemetry"
	"github.com/stacklok/code-reader/internal/worker"
	"github.com/stacklok/code-reader/internal/workspace"
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go Service

// Service fetches repository content
type Service interface {
	// FetchContent clones req.SourceURL and returns its aggregated, truncated text
	FetchContent(ctx context.Context, req *FetchRequest) (*Content, error)

	// CheckReadiness reports whether requests can currently be served
	CheckReadiness(ctx context.Context) error
}

// contentSvc implements Service
type contentSvc struct {
	gitClient  git.Client
	workspaces *workspace.Manager
	aggregator aggregate.Aggregator
	pool       *worker.Pool

	credential      *git.Credential
	maxContentChars int
	cloneDepth      int
	cloneTimeout    time.Duration
	maxFiles        int64
	maxTotalSize    int64

	metrics *telemetry.PipelineMetrics
	tracer  trace.Tracer
}

var _ Service = (*contentSvc)(nil)

// Option configures the content service
type Option func(*contentSvc)

// WithCredential attaches the provider credential to every clone
func WithCredential(cred *git.Credential) Option {
	return func(s *contentSvc) {
		s.credential = cred
	}
}

// WithAggregator replaces the default aggregator
func WithAggregator(a aggregate.Aggregator) Option {
	return func(s *contentSvc) {
		s.aggregator = a
	}
}

// WithPool sets the worker pool clone and aggregation run on
func WithPool(p *worker.Pool) Option {
	return func(s *contentSvc) {
		s.pool = p
	}
}

// WithMaxContentChars overrides DefaultMaxContentChars
func WithMaxContentChars(n int) Option {
	return func(s *contentSvc) {
		s.maxContentChars = n
	}
}

// WithCloneDepth sets the number of commits fetched
func WithCloneDepth(depth int) Option {
	return func(s *contentSvc) {
		s.cloneDepth = depth
	}
}

// WithCloneTimeout bounds each clone; zero means no limit
func WithCloneTimeout(d time.Duration) Option {
	return func(s *contentSvc) {
		s.cloneTimeout = d
	}
}

// WithCloneLimits caps the files and bytes a clone may write; zero disables a limit
func WithCloneLimits(maxFiles, maxTotalSize int64) Option {
	return func(s *contentSvc) {
		s.maxFiles = maxFiles
		s.maxTotalSize = maxTotalSize
	}
}

// WithMetrics records pipeline metrics
func WithMetrics(m *telemetry.PipelineMetrics) Option {
	return func(s *contentSvc) {
		s.metrics = m
	}
}

// WithTracer records a span per pipeline stage
func WithTracer(t trace.Tracer) Option {
	return func(s *contentSvc) {
		s.tracer = t
	}
}

// New creates a content service. gitClient and workspaces are required.
func New(gitClient git.Client, workspaces *workspace.Manager, opts ...Option) (Service, error) {
	if gitClient == nil {
		return nil, fmt.Errorf("git client is required")
	}
	if workspaces == nil {
		return nil, fmt.Errorf("workspace manager is required")
	}

	s := &contentSvc{
		gitClient:       gitClient,
		workspaces:      workspaces,
		aggregator:      aggregate.NewAggregator(),
		maxContentChars: DefaultMaxContentChars,
		cloneDepth:      git.DefaultDepth,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.pool == nil {
		s.pool = worker.NewPool(worker.DefaultSize)
	}
	if s.maxContentChars <= 0 {
		return nil, fmt.Errorf("max content chars must be positive, got %d", s.maxContentChars)
	}

	return s, nil
}

// FetchContent runs the pipeline for one repository
func (s *contentSvc) FetchContent(ctx context.Context, req *FetchRequest) (result *Content, err error) {
	if req == nil || strings.TrimSpace(req.SourceURL) == "" {
		return nil, fmt.Errorf("%w: source url is required", ErrInvalidRequest)
	}
	sourceURL := strings.TrimSpace(req.SourceURL)

	repoName, err := workspace.RepoNameFromURL(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	ctx, span := otel.StartSpan(ctx, s.tracer, "pipeline.FetchContent",
		trace.WithAttributes(
			otel.AttrRepoName.String(repoName),
			otel.AttrRepoURL.String(sourceURL),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		var stage string
		var pipeErr *Error
		if errors.As(err, &pipeErr) {
			stage = string(pipeErr.Stage)
		}
		s.metrics.RecordDuration(ctx, time.Since(start), stage, err == nil)
		otel.RecordError(span, err)
	}()

	slog.InfoContext(ctx, "Fetching repository content", "repository", sourceURL, "name", repoName)

	ws, err := s.acquire(ctx, repoName)
	if err != nil {
		return nil, err
	}
	defer func() {
		// Release must run even when the request context is already done
		releaseErr := s.release(context.WithoutCancel(ctx), ws)
		if releaseErr == nil {
			return
		}
		if err == nil {
			result, err = nil, releaseErr
			return
		}
		err = errors.Join(err, releaseErr)
	}()

	repoInfo, err := s.fetch(ctx, ws, sourceURL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cleanupErr := s.gitClient.Cleanup(ctx, repoInfo); cleanupErr != nil {
			slog.WarnContext(ctx, "Failed to cleanup repository", "error", cleanupErr)
		}
	}()

	aggregated, err := s.aggregate(ctx, ws)
	if err != nil {
		return nil, err
	}

	chars := utf8.RuneCountInString(aggregated.Content)
	content, truncated := truncate(aggregated.Content, s.maxContentChars)
	s.metrics.RecordContent(ctx, chars, truncated)
	span.SetAttributes(
		otel.AttrRepoCommit.String(repoInfo.Commit),
		otel.AttrContentLength.Int(chars),
		otel.AttrTruncated.Bool(truncated),
	)

	slog.InfoContext(ctx, "Repository content ready",
		"repository", sourceURL,
		"commit", repoInfo.Commit,
		"files", aggregated.Files,
		"skipped", len(aggregated.Skipped),
		"characters", chars,
		"truncated", truncated,
		"duration", time.Since(start).String())

	return &Content{
		Content:      content,
		Truncated:    truncated,
		Files:        aggregated.Files,
		SkippedFiles: len(aggregated.Skipped),
		Commit:       repoInfo.Commit,
	}, nil
}

// CheckReadiness verifies that a workspace can be created
func (s *contentSvc) CheckReadiness(ctx context.Context) error {
	if err := s.workspaces.Check(ctx); err != nil {
		return fmt.Errorf("workspace not ready: %w", err)
	}
	return nil
}

func (s *contentSvc) acquire(ctx context.Context, repoName string) (*workspace.Workspace, error) {
	ctx, span := s.stageSpan(ctx, StageWorkspace)
	defer span.End()

	ws, err := s.workspaces.Acquire(ctx, repoName)
	if err != nil {
		otel.RecordError(span, err)
		return nil, &Error{Stage: StageWorkspace, Err: err}
	}
	return ws, nil
}

func (s *contentSvc) release(ctx context.Context, ws *workspace.Workspace) error {
	ctx, span := s.stageSpan(ctx, StageCleanup)
	defer span.End()

	if err := s.workspaces.Release(ctx, ws); err != nil {
		slog.ErrorContext(ctx, "Failed to remove workspace", "path", ws.RootPath, "error", err)
		otel.RecordError(span, err)
		return &Error{Stage: StageCleanup, Err: err}
	}
	slog.DebugContext(ctx, "Workspace removed", "path", ws.RootPath)
	return nil
}

func (s *contentSvc) fetch(ctx context.Context, ws *workspace.Workspace, sourceURL string) (*git.RepositoryInfo, error) {
	ctx, span := s.stageSpan(ctx, StageFetch)
	defer span.End()

	repoFs, err := ws.Filesystem()
	if err != nil {
		otel.RecordError(span, err)
		return nil, &Error{Stage: StageFetch, Err: err}
	}

	cloneConfig := &git.CloneConfig{
		URL:          sourceURL,
		Filesystem:   repoFs,
		Credential:   s.credential,
		Depth:        s.cloneDepth,
		MaxFiles:     s.maxFiles,
		MaxTotalSize: s.maxTotalSize,
	}

	start := time.Now()
	future := worker.Submit(ctx, s.pool, func(ctx context.Context) (*git.RepositoryInfo, error) {
		if s.cloneTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cloneTimeout)
			defer cancel()
		}
		return s.gitClient.Clone(ctx, cloneConfig)
	})

	repoInfo, err := future.Await()
	if err != nil {
		slog.ErrorContext(ctx, "Git clone failed",
			"repository", sourceURL,
			"duration", time.Since(start).String(),
			"error", err)
		otel.RecordError(span, err)
		return nil, &Error{Stage: StageFetch, Err: err}
	}

	span.SetAttributes(otel.AttrRepoCommit.String(repoInfo.Commit))
	slog.InfoContext(ctx, "Git clone completed",
		"repository", sourceURL,
		"branch", repoInfo.Branch,
		"commit", repoInfo.Commit,
		"duration", time.Since(start).String())
	return repoInfo, nil
}

func (s *contentSvc) aggregate(ctx context.Context, ws *workspace.Workspace) (*aggregate.Result, error) {
	ctx, span := s.stageSpan(ctx, StageAggregate)
	defer span.End()

	repoFs, err := ws.Filesystem()
	if err != nil {
		otel.RecordError(span, err)
		return nil, &Error{Stage: StageAggregate, Err: err}
	}

	future := worker.Submit(ctx, s.pool, func(ctx context.Context) (*aggregate.Result, error) {
		return s.aggregator.Aggregate(ctx, repoFs)
	})

	result, err := future.Await()
	if err != nil {
		otel.RecordError(span, err)
		return nil, &Error{Stage: StageAggregate, Err: err}
	}

	for _, skipped := range result.Skipped {
		s.metrics.RecordSkippedFile(ctx, skipped.Reason)
	}
	span.SetAttributes(
		otel.AttrFileCount.Int(result.Files),
		otel.AttrSkippedCount.Int(len(result.Skipped)),
	)
	return result, nil
}

func (s *contentSvc) stageSpan(ctx context.Context, stage Stage) (context.Context, trace.Span) {
	return otel.StartSpan(ctx, s.tracer, "pipeline."+string(stage),
		trace.WithAttributes(otel.AttrPipelineStage.String(string(stage))),
	)
}

// truncate returns the first limit characters of s
func truncate(s string, limit int) (string, bool) {
	if len(s) <= limit {
		return s, false
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i], true
		}
		n++
	}
	return s, false
}
