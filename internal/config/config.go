// Package config provides configuration loading and management for the code reader.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/code-reader/internal/git"
	"github.com/stacklok/code-reader/internal/telemetry"
)

const (
	// EnvPrefix is the prefix for environment variables read through viper
	EnvPrefix = "CODE_READER"

	// EnvProviderToken holds the provider access token when no token file is configured
	EnvProviderToken = "GITHUB_TOKEN"

	// EnvAccessPassword holds the shared access password when no password file is configured
	EnvAccessPassword = "ACCESS_PASSWORD"

	// DefaultMaxContentChars is the number of characters returned to callers
	DefaultMaxContentChars = 50000

	// DefaultCloneTimeout bounds a single clone
	DefaultCloneTimeout = 5 * time.Minute
)

// Auth modes
const (
	// AuthModePassword requires the Authorization header to equal the access password
	AuthModePassword = "password"

	// AuthModeAnonymous disables the password gate
	AuthModeAnonymous = "anonymous"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Provider  ProviderConfig    `yaml:"provider,omitempty"`
	Auth      AuthConfig        `yaml:"auth,omitempty"`
	Workspace WorkspaceConfig   `yaml:"workspace,omitempty"`
	Fetch     FetchConfig       `yaml:"fetch,omitempty"`
	Pipeline  PipelineConfig    `yaml:"pipeline,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// ProviderConfig describes how clones authenticate against the git provider
type ProviderConfig struct {
	// TokenFile is the path to a file containing the provider access token.
	// GITHUB_TOKEN is used when unset.
	TokenFile string `yaml:"tokenFile,omitempty"`

	// HeaderTemplate renders the token into the Authorization header,
	// "token {token}" when empty
	HeaderTemplate string `yaml:"headerTemplate,omitempty"`
}

// AuthConfig configures the shared-password gate in front of the API
type AuthConfig struct {
	// Mode is password (default) or anonymous
	Mode string `yaml:"mode,omitempty"`

	// PasswordFile is the path to a file containing the access password.
	// ACCESS_PASSWORD is used when unset.
	PasswordFile string `yaml:"passwordFile,omitempty"`
}

// WorkspaceConfig controls where clones are written
type WorkspaceConfig struct {
	// BaseDir is the directory workspaces are created in, the working directory when empty
	BaseDir string `yaml:"baseDir,omitempty"`

	// Prefix is prepended to the repository name, "temp_" when empty
	Prefix string `yaml:"prefix,omitempty"`

	// UniqueNames appends a random suffix so concurrent requests for the same
	// repository never share a directory
	UniqueNames bool `yaml:"uniqueNames,omitempty"`
}

// FetchConfig bounds a single clone
type FetchConfig struct {
	// Depth is the number of commits fetched, 1 when zero
	Depth int `yaml:"depth,omitempty"`

	// Timeout is a duration string such as "2m"; DefaultCloneTimeout when empty
	Timeout string `yaml:"timeout,omitempty"`

	// MaxFiles caps the files a clone may create, unlimited when zero
	MaxFiles int64 `yaml:"maxFiles,omitempty"`

	// MaxTotalSize caps the bytes a clone may write, unlimited when zero
	MaxTotalSize int64 `yaml:"maxTotalSize,omitempty"`
}

// PipelineConfig tunes content assembly
type PipelineConfig struct {
	// MaxContentChars is the number of characters returned, DefaultMaxContentChars when zero
	MaxContentChars int `yaml:"maxContentChars,omitempty"`

	// Workers bounds the clones and aggregations running at once
	Workers int `yaml:"workers,omitempty"`
}

// GetToken returns the provider token using the following priority:
// 1. Read from TokenFile if specified
// 2. Read from the GITHUB_TOKEN environment variable
func (p *ProviderConfig) GetToken() (string, error) {
	return readSecret(p.TokenFile, EnvProviderToken, "provider token", "tokenFile")
}

// GetMode returns the auth mode, AuthModePassword when unset
func (a *AuthConfig) GetMode() string {
	if a.Mode == "" {
		return AuthModePassword
	}
	return a.Mode
}

// GetPassword returns the access password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from the ACCESS_PASSWORD environment variable
func (a *AuthConfig) GetPassword() (string, error) {
	return readSecret(a.PasswordFile, EnvAccessPassword, "access password", "passwordFile")
}

// GetTimeout returns the parsed clone timeout
func (f *FetchConfig) GetTimeout() (time.Duration, error) {
	if f.Timeout == "" {
		return DefaultCloneTimeout, nil
	}
	d, err := time.ParseDuration(f.Timeout)
	if err != nil {
		return 0, fmt.Errorf("fetch.timeout must be a valid duration (e.g., '30s', '2m'): %w", err)
	}
	return d, nil
}

// GetMaxContentChars returns the configured limit or DefaultMaxContentChars
func (p *PipelineConfig) GetMaxContentChars() int {
	if p.MaxContentChars == 0 {
		return DefaultMaxContentChars
	}
	return p.MaxContentChars
}

// readSecret reads a secret from file, falling back to an environment variable.
// Content read from file has surrounding whitespace trimmed.
func readSecret(file, envVar, what, field string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(filepath.Clean(file))
		if err != nil {
			return "", fmt.Errorf("failed to read %s from file %s: %w", what, file, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("%s file %s is empty", what, file)
		}
		return secret, nil
	}

	if secret := os.Getenv(envVar); secret != "" {
		return secret, nil
	}

	return "", fmt.Errorf("no %s configured: set %s or %s environment variable", what, field, envVar)
}

// LoadConfig builds the configuration from the given options. Without a path the
// defaults are used and secrets come from the environment.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	var config Config
	if loaderCfg.path != "" {
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks the configuration, including that every required secret can be read
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if _, err := c.Provider.GetToken(); err != nil {
		errs = append(errs, err)
	}
	if c.Provider.HeaderTemplate != "" && !strings.Contains(c.Provider.HeaderTemplate, git.TokenPlaceholder) {
		errs = append(errs, fmt.Errorf("provider.headerTemplate must contain %s", git.TokenPlaceholder))
	}

	switch c.Auth.GetMode() {
	case AuthModePassword:
		if _, err := c.Auth.GetPassword(); err != nil {
			errs = append(errs, err)
		}
	case AuthModeAnonymous:
	default:
		errs = append(errs, fmt.Errorf("auth.mode must be %s or %s, got %s", AuthModePassword, AuthModeAnonymous, c.Auth.Mode))
	}

	if strings.ContainsAny(c.Workspace.Prefix, `/\`) {
		errs = append(errs, fmt.Errorf("workspace.prefix must not contain path separators"))
	}

	if c.Fetch.Depth < 0 {
		errs = append(errs, fmt.Errorf("fetch.depth must not be negative"))
	}
	if timeout, err := c.Fetch.GetTimeout(); err != nil {
		errs = append(errs, err)
	} else if timeout < 0 {
		errs = append(errs, fmt.Errorf("fetch.timeout must not be negative"))
	}
	if c.Fetch.MaxFiles < 0 || c.Fetch.MaxTotalSize < 0 {
		errs = append(errs, fmt.Errorf("fetch limits must not be negative"))
	}

	if c.Pipeline.MaxContentChars < 0 {
		errs = append(errs, fmt.Errorf("pipeline.maxContentChars must not be negative"))
	}
	if c.Pipeline.Workers < 0 {
		errs = append(errs, fmt.Errorf("pipeline.workers must not be negative"))
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}
