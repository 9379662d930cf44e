// Package git provides the repository fetcher used by the content pipeline.
//
// This package implements a thin wrapper around the go-git library that performs
// a shallow clone of a remote repository into a go-billy filesystem supplied by the
// caller, usually a directory inside a request's workspace.
//
// # Client Interface
//
// The Client interface defines the Git operations the pipeline needs:
//   - Clone: shallow clone a repository into the given filesystem
//   - Cleanup: release the object cache and references held by a clone
//
// # Authentication
//
// Private repositories are reached by attaching a provider token to every HTTP
// request of the clone transport. The header value is built from a Credential's
// template, which defaults to "token {token}" and therefore produces
//
//	Authorization: token <provider token>
//
// go-git never reads from a terminal, so a missing or rejected credential fails
// the clone immediately with an authentication error instead of prompting.
//
// # Example Usage
//
//	client := git.NewDefaultGitClient()
//	info, err := client.Clone(ctx, &git.CloneConfig{
//	    URL:        "https://github.com/example/repo.git",
//	    Filesystem: ws.Filesystem(),
//	    Credential: cred,
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Cleanup(ctx, info)
//
// # Resource limits
//
// Both the worktree and the object store are wrapped in a LimitedFs, which caps
// the number of files created and the total number of bytes written. A clone that
// exceeds either limit fails with a storage FetchError.
package git
