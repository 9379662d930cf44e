package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
)

const (
	// DefaultPrefix is prepended to the repository name to form the workspace root
	DefaultPrefix = "temp_"

	// uniqueSuffixLength is the number of hex characters appended WithUniqueNames
	uniqueSuffixLength = 8

	dirPerm = 0o750
)

// Workspace is the directory tree owned by one content request
type Workspace struct {
	// RootPath is the workspace root as seen from the manager's base filesystem
	RootPath string

	// RepoPath is the clone target, always a direct child of RootPath
	RepoPath string

	base billy.Filesystem
	root string
	repo string
}

// Filesystem returns a filesystem rooted at RepoPath
func (w *Workspace) Filesystem() (billy.Filesystem, error) {
	fs, err := w.base.Chroot(w.repo)
	if err != nil {
		return nil, &WorkspaceError{Op: "open", Path: w.RepoPath, Err: err}
	}
	return fs, nil
}

// Manager creates and removes workspaces under a base filesystem
type Manager struct {
	fs          billy.Filesystem
	prefix      string
	uniqueNames bool
}

// Option configures a Manager
type Option func(*Manager)

// WithPrefix overrides DefaultPrefix
func WithPrefix(prefix string) Option {
	return func(m *Manager) {
		m.prefix = prefix
	}
}

// WithUniqueNames appends a random suffix to every workspace root so concurrent
// requests for the same repository never share a directory
func WithUniqueNames(unique bool) Option {
	return func(m *Manager) {
		m.uniqueNames = unique
	}
}

// NewManager creates a manager that allocates workspaces on fs
func NewManager(fs billy.Filesystem, opts ...Option) *Manager {
	m := &Manager{
		fs:     fs,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewOSManager creates a manager that allocates workspaces under baseDir on the
// local disk. An empty baseDir means the process working directory.
func NewOSManager(baseDir string, opts ...Option) *Manager {
	if baseDir == "" {
		baseDir = "."
	}
	return NewManager(osfs.New(baseDir), opts...)
}

// Acquire creates a fresh workspace for repoName. A leftover directory with the
// same name is removed first.
func (m *Manager) Acquire(ctx context.Context, repoName string) (*Workspace, error) {
	if err := validateRepoName(repoName); err != nil {
		return nil, &WorkspaceError{Op: "create", Path: repoName, Err: err}
	}

	root := m.prefix + repoName
	if m.uniqueNames {
		root = root + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:uniqueSuffixLength]
	}
	repo := m.fs.Join(root, repoName)

	ws := &Workspace{
		RootPath: m.fs.Join(m.fs.Root(), root),
		RepoPath: m.fs.Join(m.fs.Root(), repo),
		base:     m.fs,
		root:     root,
		repo:     repo,
	}

	if _, err := m.fs.Lstat(root); err == nil {
		slog.WarnContext(ctx, "Removing stale workspace", "path", ws.RootPath)
		if err := util.RemoveAll(m.fs, root); err != nil {
			return nil, &WorkspaceError{Op: "create", Path: ws.RootPath, Err: fmt.Errorf("failed to remove stale directory: %w", err)}
		}
	}

	if err := m.fs.MkdirAll(repo, dirPerm); err != nil {
		// Do not leave a half-created root behind
		_ = util.RemoveAll(m.fs, root)
		return nil, &WorkspaceError{Op: "create", Path: ws.RepoPath, Err: err}
	}

	slog.DebugContext(ctx, "Workspace acquired", "root", ws.RootPath, "repo", ws.RepoPath)
	return ws, nil
}

// Release removes the workspace tree. Releasing an already removed or nil
// workspace is not an error.
func (m *Manager) Release(ctx context.Context, ws *Workspace) error {
	if ws == nil {
		return nil
	}

	if err := util.RemoveAll(m.fs, ws.root); err != nil {
		return &WorkspaceError{Op: "remove", Path: ws.RootPath, Err: err}
	}

	slog.DebugContext(ctx, "Workspace released", "root", ws.RootPath)
	return nil
}

// Check verifies that workspaces can be created under the base filesystem
func (m *Manager) Check(_ context.Context) error {
	probe := m.prefix + "readiness-probe"
	if err := m.fs.MkdirAll(probe, dirPerm); err != nil {
		return &WorkspaceError{Op: "create", Path: m.fs.Join(m.fs.Root(), probe), Err: err}
	}
	if err := util.RemoveAll(m.fs, probe); err != nil {
		return &WorkspaceError{Op: "remove", Path: m.fs.Join(m.fs.Root(), probe), Err: err}
	}
	return nil
}

// RepoNameFromURL derives the repository name from a source URL: the last path
// segment with any trailing ".git" removed
func RepoNameFromURL(sourceURL string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(sourceURL), "/")
	name := trimmed[strings.LastIndex(trimmed, "/")+1:]
	name = strings.TrimSuffix(name, ".git")

	if err := validateRepoName(name); err != nil {
		return "", fmt.Errorf("%w: cannot derive repository name from %q", err, sourceURL)
	}
	return name, nil
}

func validateRepoName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return ErrInvalidRepoName
	}
	return nil
}
