package workspace

import (
	"errors"
	"fmt"
)

// ErrInvalidRepoName is returned when no usable repository name can be derived
// from a source URL
var ErrInvalidRepoName = errors.New("invalid repository name")

// WorkspaceError reports a failure to create or remove a workspace directory
type WorkspaceError struct {
	Op   string
	Path string
	Err  error
}

func (e *WorkspaceError) Error() string {
	return fmt.Sprintf("workspace %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WorkspaceError) Unwrap() error {
	return e.Err
}
