package git

import (
	"errors"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
)

const (
	// DefaultHeaderTemplate renders the provider credential as a GitHub style token header value
	DefaultHeaderTemplate = "token " + TokenPlaceholder

	// TokenPlaceholder is replaced by the provider token in a header template
	TokenPlaceholder = "{token}"

	// DefaultDepth is the clone depth used when none is configured
	DefaultDepth = 1
)

// Credential is the provider access token and the template used to render it into
// the Authorization header of clone requests. It is read-only once constructed.
type Credential struct {
	token          string
	headerTemplate string
}

// NewCredential creates a credential. An empty template selects DefaultHeaderTemplate.
func NewCredential(token, headerTemplate string) (*Credential, error) {
	if token == "" {
		return nil, errors.New("provider token cannot be empty")
	}
	if headerTemplate == "" {
		headerTemplate = DefaultHeaderTemplate
	}
	if !strings.Contains(headerTemplate, TokenPlaceholder) {
		return nil, errors.New("header template must contain " + TokenPlaceholder)
	}
	return &Credential{token: token, headerTemplate: headerTemplate}, nil
}

// HeaderValue returns the rendered Authorization header value
func (c *Credential) HeaderValue() string {
	return strings.ReplaceAll(c.headerTemplate, TokenPlaceholder, c.token)
}

// String never exposes the token
func (*Credential) String() string {
	return "Credential{token: <redacted>}"
}

// CloneConfig contains configuration for cloning a repository
type CloneConfig struct {
	// URL is the repository URL to clone
	URL string

	// Filesystem receives the checked out tree; the object store is kept under .git
	Filesystem billy.Filesystem

	// Credential is attached to every request of the clone transport (optional)
	Credential *Credential

	// Depth is the number of commits to fetch, DefaultDepth when zero
	Depth int

	// MaxFiles caps the number of files the clone may create, zero disables the limit
	MaxFiles int64

	// MaxTotalSize caps the bytes the clone may write, zero disables the limit
	MaxTotalSize int64
}

// RepositoryInfo contains information about a cloned repository
type RepositoryInfo struct {
	// Repository is the go-git repository instance
	Repository *git.Repository

	// Branch is the current branch name
	Branch string

	// Commit is the hash of the checked out commit
	Commit string

	// RemoteURL is the remote repository URL
	RemoteURL string

	// objectCache holds decompressed objects read during checkout and must be
	// cleared explicitly in Cleanup to release memory.
	objectCache cache.Object
}
