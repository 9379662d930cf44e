package auth

import (
	"path"
	"strings"
)

// IsPublicPath reports whether requestPath bypasses the password gate.
//
// Paths with encoded separators never match. The request path is cleaned before
// matching so traversals such as /health/../get-repo-content are rejected, and a
// public path matches itself and anything below it on a segment boundary
// (/health matches /health/live but not /healthz).
func IsPublicPath(requestPath string, publicPaths []string) bool {
	lowerPath := strings.ToLower(requestPath)
	if strings.Contains(lowerPath, "%2f") || strings.Contains(lowerPath, "%2e") {
		return false
	}

	cleanPath := cleanRooted(requestPath)
	for _, publicPath := range publicPaths {
		cleanPublicPath := cleanRooted(publicPath)

		if cleanPath == cleanPublicPath {
			return true
		}
		if strings.HasPrefix(cleanPath, cleanPublicPath+"/") {
			return true
		}
	}
	return false
}

func cleanRooted(p string) string {
	return path.Clean("/" + p)
}
