package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

// Client defines the interface for Git operations
type Client interface {
	// Clone performs a shallow clone of config.URL into config.Filesystem
	Clone(ctx context.Context, config *CloneConfig) (*RepositoryInfo, error)

	// Cleanup releases in-memory resources held by a cloned repository
	Cleanup(ctx context.Context, repoInfo *RepositoryInfo) error
}

// defaultGitClient implements Client using go-git
type defaultGitClient struct{}

// NewDefaultGitClient creates a new defaultGitClient
func NewDefaultGitClient() Client {
	return &defaultGitClient{}
}

// Clone performs a shallow clone of the configured repository
func (c *defaultGitClient) Clone(ctx context.Context, config *CloneConfig) (*RepositoryInfo, error) {
	if config == nil || config.Filesystem == nil {
		return nil, &FetchError{Kind: KindInvalid, Err: errors.New("clone target filesystem is required")}
	}

	endpoint, err := transport.NewEndpoint(config.URL)
	if err != nil {
		return nil, &FetchError{Kind: KindInvalid, URL: config.URL, Err: err}
	}

	depth := config.Depth
	if depth <= 0 {
		depth = DefaultDepth
	}

	cloneOptions := &git.CloneOptions{
		URL:          config.URL,
		Depth:        depth,
		SingleBranch: true,
		Tags:         git.NoTags,
	}

	// The token header only makes sense on HTTP transports; ssh and file remotes
	// authenticate on their own terms.
	if config.Credential != nil && isHTTPEndpoint(endpoint) {
		cloneOptions.Auth = &tokenHeaderAuth{credential: config.Credential}
		slog.Debug("Using provider token header authentication", "host", endpoint.Host)
	}

	worktreeFs := NewLimitedFs(config.Filesystem, config.MaxFiles, config.MaxTotalSize)
	storerFs, err := worktreeFs.Chroot(git.GitDirName)
	if err != nil {
		return nil, &FetchError{Kind: KindStorage, URL: config.URL, Err: err}
	}
	storerCache := cache.NewObjectLRUDefault()
	storer := filesystem.NewStorage(storerFs, storerCache)

	repo, err := git.CloneContext(ctx, storer, worktreeFs, cloneOptions)
	if err != nil {
		return nil, newFetchError(config.URL, err)
	}

	repoInfo := &RepositoryInfo{
		Repository:  repo,
		RemoteURL:   config.URL,
		objectCache: storerCache,
	}

	if err := c.updateRepositoryInfo(repoInfo); err != nil {
		return nil, &FetchError{Kind: KindNotFound, URL: config.URL, Err: err}
	}

	return repoInfo, nil
}

// Cleanup releases the object cache and repository references. Files on disk
// belong to the caller's workspace and are removed with it.
func (*defaultGitClient) Cleanup(_ context.Context, repoInfo *RepositoryInfo) error {
	if repoInfo == nil || repoInfo.Repository == nil {
		return fmt.Errorf("repository is nil")
	}

	if repoInfo.objectCache != nil {
		slog.Debug("Clearing object cache")
		repoInfo.objectCache.Clear()
	}

	repoInfo.objectCache = nil
	repoInfo.Repository = nil
	return nil
}

// updateRepositoryInfo records the checked out branch and commit
func (*defaultGitClient) updateRepositoryInfo(repoInfo *RepositoryInfo) error {
	if repoInfo == nil || repoInfo.Repository == nil {
		return fmt.Errorf("repository is nil")
	}

	ref, err := repoInfo.Repository.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD reference: %w", err)
	}

	if ref.Name().IsBranch() {
		repoInfo.Branch = ref.Name().Short()
	}
	repoInfo.Commit = ref.Hash().String()

	return nil
}

func isHTTPEndpoint(ep *transport.Endpoint) bool {
	return ep.Protocol == "http" || ep.Protocol == "https"
}

// tokenHeaderAuth sets the rendered credential as the Authorization header of
// every request made by the go-git HTTP transport
type tokenHeaderAuth struct {
	credential *Credential
}

func (*tokenHeaderAuth) Name() string {
	return "http-token-header"
}

func (*tokenHeaderAuth) String() string {
	return "http-token-header - <redacted>"
}

func (a *tokenHeaderAuth) SetAuth(r *http.Request) {
	if a == nil || a.credential == nil {
		return
	}
	r.Header.Set("Authorization", a.credential.HeaderValue())
}
