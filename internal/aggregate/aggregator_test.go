package aggregate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRepoFs writes files under a "repo" directory of a fresh memfs and returns
// a filesystem rooted there
func newRepoFs(t *testing.T, files map[string][]byte) billy.Filesystem {
	t.Helper()

	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("repo", 0o755))
	for name, content := range files {
		require.NoError(t, util.WriteFile(fs, fs.Join("repo", name), content, 0o644))
	}

	repoFs, err := fs.Chroot("repo")
	require.NoError(t, err)
	return repoFs
}

func TestAggregate_SkipsInvalidUTF8(t *testing.T) {
	t.Parallel()

	fs := newRepoFs(t, map[string][]byte{
		"a.txt": []byte("hello"),
		"b.bin": {0xff, 0xfe, 0x00, 0x81},
	})

	result, err := NewAggregator().Aggregate(t.Context(), fs)
	require.NoError(t, err)

	assert.Equal(t, "File: a.txt\n\nhello\n\n", result.Content)
	assert.Equal(t, 1, result.Files)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "b.bin", result.Skipped[0].Path)
	assert.Equal(t, ReasonInvalidUTF8, result.Skipped[0].Reason)
	assert.Error(t, result.Skipped[0].Err)
}

func TestAggregate_DeterministicOrderAndBaseNames(t *testing.T) {
	t.Parallel()

	fs := newRepoFs(t, map[string][]byte{
		"c.txt":        []byte("three"),
		"a.txt":        []byte("one"),
		"b/readme.md":  []byte("nested b"),
		"d/readme.md":  []byte("nested d"),
		"b/deep/x.txt": []byte("deep"),
	})

	aggregator := NewAggregator()
	first, err := aggregator.Aggregate(t.Context(), fs)
	require.NoError(t, err)

	expected := "File: a.txt\n\none\n\n" +
		"File: x.txt\n\ndeep\n\n" +
		"File: readme.md\n\nnested b\n\n" +
		"File: c.txt\n\nthree\n\n" +
		"File: readme.md\n\nnested d\n\n"
	assert.Equal(t, expected, first.Content)
	assert.Equal(t, 5, first.Files)
	assert.Empty(t, first.Skipped)

	second, err := aggregator.Aggregate(t.Context(), fs)
	require.NoError(t, err)
	assert.Equal(t, first.Content, second.Content)
}

func TestAggregate_NormalizesNewlines(t *testing.T) {
	t.Parallel()

	fs := newRepoFs(t, map[string][]byte{
		"dos.txt": []byte("line1\r\nline2\r\n"),
		"mac.txt": []byte("a\rb"),
	})

	result, err := NewAggregator().Aggregate(t.Context(), fs)
	require.NoError(t, err)
	assert.Equal(t, "File: dos.txt\n\nline1\nline2\n\n\nFile: mac.txt\n\na\nb\n\n", result.Content)
}

func TestAggregate_EmptyAndMultibyteFiles(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("héllo wörld ✓ ", 5000)
	fs := newRepoFs(t, map[string][]byte{
		"empty.txt": {},
		"long.txt":  []byte(long),
	})

	result, err := NewAggregator().Aggregate(t.Context(), fs)
	require.NoError(t, err)
	assert.Equal(t, "File: empty.txt\n\n\n\nFile: long.txt\n\n"+long+"\n\n", result.Content)
	assert.Empty(t, result.Skipped)
}

func TestAggregate_IncludesGitDirectory(t *testing.T) {
	t.Parallel()

	fs := newRepoFs(t, map[string][]byte{
		".git/HEAD": []byte("ref: refs/heads/main\n"),
		"main.go":   []byte("package main\n"),
	})

	result, err := NewAggregator().Aggregate(t.Context(), fs)
	require.NoError(t, err)
	assert.Contains(t, result.Content, "File: HEAD\n\nref: refs/heads/main\n\n\n")
	assert.Contains(t, result.Content, "File: main.go\n\npackage main\n\n\n")
	assert.Equal(t, 2, result.Files)
}

func TestAggregate_EmptyTree(t *testing.T) {
	t.Parallel()

	result, err := NewAggregator().Aggregate(t.Context(), newRepoFs(t, nil))
	require.NoError(t, err)
	assert.Empty(t, result.Content)
	assert.Zero(t, result.Files)
}

func TestAggregate_MissingRoot(t *testing.T) {
	t.Parallel()

	missing, err := memfs.New().Chroot("missing")
	require.NoError(t, err)

	result, err := NewAggregator().Aggregate(t.Context(), missing)
	assert.Nil(t, result)

	var aggErr *AggregationError
	require.ErrorAs(t, err, &aggErr)
}

func TestAggregate_NilFilesystem(t *testing.T) {
	t.Parallel()

	_, err := NewAggregator().Aggregate(t.Context(), nil)
	var aggErr *AggregationError
	assert.ErrorAs(t, err, &aggErr)
}

func TestAggregate_ContextCancelled(t *testing.T) {
	t.Parallel()

	fs := newRepoFs(t, map[string][]byte{"a.txt": []byte("hello")})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	result, err := NewAggregator().Aggregate(ctx, fs)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)

	var aggErr *AggregationError
	assert.ErrorAs(t, err, &aggErr)
}

func TestAggregate_OnDisk(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.go"), []byte("package main"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "logo.png"), []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0xff}, 0o644))
	require.NoError(t, os.Symlink(filepath.Join(root, "a.txt"), filepath.Join(root, "link.txt")))

	result, err := NewAggregator().Aggregate(t.Context(), osfs.New(root))
	require.NoError(t, err)

	assert.Equal(t, "File: a.txt\n\nhello\n\nFile: main.go\n\npackage main\n\n", result.Content)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "logo.png", result.Skipped[0].Path)
}

func TestAggregate_MissingRootOnDisk(t *testing.T) {
	t.Parallel()

	_, err := NewAggregator().Aggregate(t.Context(), osfs.New(filepath.Join(t.TempDir(), "does-not-exist")))
	var aggErr *AggregationError
	assert.ErrorAs(t, err, &aggErr)
}
