package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// Reasons recorded for skipped files
const (
	ReasonInvalidUTF8 = "invalid utf-8"
	ReasonReadError   = "read error"
)

var newlineNormalizer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// SkippedFile describes a file left out of the aggregated content
type SkippedFile struct {
	Path   string
	Reason string
	Err    error
}

// Result is the outcome of a successful aggregation
type Result struct {
	// Content is the concatenated text of every readable file
	Content string

	// Files is the number of files included in Content
	Files int

	// Skipped lists the files that could not be decoded or read
	Skipped []SkippedFile
}

// Aggregator concatenates the text files of a directory tree
type Aggregator interface {
	// Aggregate walks fs from its root
	Aggregate(ctx context.Context, fs billy.Filesystem) (*Result, error)
}

type fileAggregator struct{}

// NewAggregator creates a new Aggregator
func NewAggregator() Aggregator {
	return &fileAggregator{}
}

func (*fileAggregator) Aggregate(ctx context.Context, fs billy.Filesystem) (*Result, error) {
	if fs == nil {
		return nil, &AggregationError{Err: errors.New("filesystem is nil")}
	}

	root := fs.Root()
	result := &Result{}
	var sb strings.Builder

	err := util.Walk(fs, "", func(path string, info os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if walkErr != nil {
			if path == "" {
				return walkErr
			}
			skip(ctx, result, path, ReasonReadError, walkErr)
			return nil
		}

		if !info.Mode().IsRegular() {
			if !info.IsDir() {
				slog.DebugContext(ctx, "Ignoring non-regular file", "path", path, "mode", info.Mode().String())
			}
			return nil
		}

		text, err := readText(fs, path)
		if err != nil {
			reason := ReasonReadError
			if errors.Is(err, encoding.ErrInvalidUTF8) {
				reason = ReasonInvalidUTF8
			}
			skip(ctx, result, path, reason, err)
			return nil
		}

		sb.WriteString("File: ")
		sb.WriteString(filepath.Base(path))
		sb.WriteString("\n\n")
		sb.WriteString(text)
		sb.WriteString("\n\n")
		result.Files++
		return nil
	})
	if err != nil {
		return nil, &AggregationError{Root: root, Err: err}
	}

	result.Content = sb.String()
	slog.DebugContext(ctx, "Aggregation completed",
		"root", root,
		"files", result.Files,
		"skipped", len(result.Skipped),
		"bytes", len(result.Content))
	return result, nil
}

// readText reads path as UTF-8 and normalizes line endings to "\n"
func readText(fs billy.Filesystem, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(transform.NewReader(f, encoding.UTF8Validator))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return newlineNormalizer.Replace(string(data)), nil
}

func skip(ctx context.Context, result *Result, path, reason string, err error) {
	slog.WarnContext(ctx, "Skipping file", "path", path, "reason", reason, "error", err)
	result.Skipped = append(result.Skipped, SkippedFile{Path: path, Reason: reason, Err: err})
}
