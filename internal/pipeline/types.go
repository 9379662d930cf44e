package pipeline

import (
	"errors"
	"fmt"
)

// DefaultMaxContentChars caps the characters returned for a repository
const DefaultMaxContentChars = 50000

// ErrInvalidRequest is returned when the request carries no usable source URL
var ErrInvalidRequest = errors.New("invalid request")

// Stage names the pipeline step that failed
type Stage string

// Pipeline stages, in execution order
const (
	StageWorkspace Stage = "workspace"
	StageFetch     Stage = "fetch"
	StageAggregate Stage = "aggregate"
	StageCleanup   Stage = "cleanup"
)

// FetchRequest asks for the text content of one repository
type FetchRequest struct {
	// SourceURL is the repository to clone
	SourceURL string
}

// Content is the aggregated text of a repository
type Content struct {
	// Content holds at most the configured number of characters
	Content string

	// Truncated reports whether Content was cut to the limit
	Truncated bool

	// Files is the number of files included before truncation
	Files int

	// SkippedFiles is the number of files left out because they could not be read as text
	SkippedFiles int

	// Commit is the revision the content was read from
	Commit string
}

// Error reports the stage at which a pipeline run failed
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
