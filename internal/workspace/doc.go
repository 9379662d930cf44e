// Package workspace allocates the temporary directory tree a single content
// request clones into and removes it again once the request is done.
//
// A workspace is laid out as
//
//	<base>/<prefix><repo-name>/            RootPath
//	<base>/<prefix><repo-name>/<repo-name>  RepoPath
//
// and is owned exclusively by the request that acquired it. Names are derived
// from the repository name, so two simultaneous requests for the same
// repository share a directory unless the manager is built WithUniqueNames.
package workspace
