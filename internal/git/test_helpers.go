package git

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// TestRepoConfig contains configuration for creating a test repository
type TestRepoConfig struct {
	Files  map[string]string // Map of filename to content
	Author *object.Signature // Author for commits (uses default if nil)
}

// CreateTestRepo creates a temporary Git repository with the specified files in a single commit
// Returns the repository path and a cleanup function
func CreateTestRepo(t *testing.T, config TestRepoConfig) (string, func()) {
	t.Helper()

	repoDir, _, cleanup := CreateTestRepoWithCommits(t, []TestRepoConfig{config})
	return repoDir, cleanup
}

// CreateTestRepoWithCommits creates a test repository with one commit per config
// Returns the repository path, commit hashes, and cleanup function
func CreateTestRepoWithCommits(t *testing.T, commits []TestRepoConfig) (string, []plumbing.Hash, func()) {
	t.Helper()

	repoDir, err := os.MkdirTemp("", "git-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	cleanup := func() {
		_ = os.RemoveAll(repoDir)
	}

	repo, err := git.PlainInit(repoDir, false)
	if err != nil {
		cleanup()
		t.Fatalf("Failed to init repository: %v", err)
	}

	workTree, err := repo.Worktree()
	if err != nil {
		cleanup()
		t.Fatalf("Failed to get worktree: %v", err)
	}

	var commitHashes []plumbing.Hash
	for i, commitConfig := range commits {
		author := commitConfig.Author
		if author == nil {
			author = &object.Signature{
				Name:  "Test Author",
				Email: "test@example.com",
			}
		}

		// Sorted so the staging order is stable between runs
		names := make([]string, 0, len(commitConfig.Files))
		for name := range commitConfig.Files {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, filename := range names {
			filePath := filepath.Join(repoDir, filename)

			if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
				cleanup()
				t.Fatalf("Failed to create directory for %s: %v", filename, err)
			}

			if err := os.WriteFile(filePath, []byte(commitConfig.Files[filename]), 0644); err != nil {
				cleanup()
				t.Fatalf("Failed to write file %s: %v", filename, err)
			}

			if _, err := workTree.Add(filename); err != nil {
				cleanup()
				t.Fatalf("Failed to add file %s: %v", filename, err)
			}
		}

		commitHash, err := workTree.Commit("Commit "+string(rune('A'+i)), &git.CommitOptions{
			Author:            author,
			AllowEmptyCommits: len(names) == 0,
		})
		if err != nil {
			cleanup()
			t.Fatalf("Failed to commit: %v", err)
		}

		commitHashes = append(commitHashes, commitHash)
	}

	return repoDir, commitHashes, cleanup
}
