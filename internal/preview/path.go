package preview

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"reframe/internal/services"
)

// platformPrefixes lists path prefixes some platforms prepend to temp
// locations. macOS rewrites /tmp and /var paths under /private, so a path
// handed to us by a UI layer may not exist under its literal form. Each
// prefix is tried at most once; the fallback is a fixed table, not a loop.
var platformPrefixes = []string{"/private"}

// resolvePath turns the escaped request path into a local filesystem path.
// The path is percent-decoded exactly once, normalized, and then checked
// against the platform prefix table when the literal form does not exist as
// a regular file.
func resolvePath(escaped string) (string, error) {
	trimmed := strings.TrimPrefix(escaped, "/")
	decoded, err := url.PathUnescape(trimmed)
	if err != nil {
		return "", services.Wrap(services.ErrInvalidRequest, "preview", "resolve path", "malformed percent encoding", err)
	}
	candidate := filepath.Clean("/" + decoded)

	if isRegularFile(candidate) {
		return candidate, nil
	}
	for _, prefix := range platformPrefixes {
		if rest, found := strings.CutPrefix(candidate, prefix); found && strings.HasPrefix(rest, "/") {
			if isRegularFile(rest) {
				return rest, nil
			}
		}
	}
	return "", services.Wrap(services.ErrNotFound, "preview", "resolve path", candidate, nil)
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
