package auth

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/stacklok/code-reader/internal/config"
)

// NewAuthMiddleware creates authentication middleware based on config.
// A nil config selects password mode with the password taken from the environment.
func NewAuthMiddleware(cfg *config.AuthConfig) (func(http.Handler) http.Handler, error) {
	if cfg == nil {
		cfg = &config.AuthConfig{}
	}

	switch cfg.GetMode() {
	case config.AuthModeAnonymous:
		slog.Warn("auth: anonymous mode, content endpoints are not protected")
		return anonymousMiddleware, nil
	case config.AuthModePassword:
		password, err := cfg.GetPassword()
		if err != nil {
			return nil, fmt.Errorf("failed to read access password: %w", err)
		}
		m, err := newPasswordMiddleware(password)
		if err != nil {
			return nil, err
		}
		slog.Info("auth: password mode")
		return m.Middleware, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", cfg.Mode)
	}
}

// anonymousMiddleware is a no-op middleware that passes requests through without authentication.
func anonymousMiddleware(next http.Handler) http.Handler {
	return next
}
