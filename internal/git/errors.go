package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// ErrorKind classifies why a clone failed
type ErrorKind string

const (
	// KindInvalid means the clone request itself was unusable (bad URL, no target)
	KindInvalid ErrorKind = "invalid"
	// KindAuth means the provider rejected or required credentials
	KindAuth ErrorKind = "auth"
	// KindNotFound means the repository does not exist or is empty
	KindNotFound ErrorKind = "not_found"
	// KindStorage means writing the clone failed (permissions, disk space, size limits)
	KindStorage ErrorKind = "storage"
	// KindTimeout means the clone did not finish before its deadline
	KindTimeout ErrorKind = "timeout"
	// KindNetwork covers every other transport failure
	KindNetwork ErrorKind = "network"
)

// FetchError is returned by Clone for every failure
type FetchError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to clone repository %s (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// newFetchError classifies err into a FetchError
func newFetchError(url string, err error) *FetchError {
	return &FetchError{Kind: classify(err), URL: url, Err: err}
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrInvalidAuthMethod):
		return KindAuth
	case errors.Is(err, transport.ErrRepositoryNotFound),
		errors.Is(err, transport.ErrEmptyRemoteRepository):
		return KindNotFound
	case errors.Is(err, ErrLimitExceeded),
		errors.Is(err, os.ErrPermission),
		errors.Is(err, syscall.ENOSPC),
		errors.Is(err, syscall.EROFS):
		return KindStorage
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindNetwork
	}
}
