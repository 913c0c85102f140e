package toolexec

import (
	"path/filepath"
	"strings"

	"github.com/tarang-dev/tarang/internal/tarangerr"
)

// resolvePath is the sandbox: interpret
// rel as project-root-relative, resolve to an absolute path, and reject
// with PathEscape if the result falls lexically outside root. This runs
// ahead of every file-targeted tool - no I/O happens before it returns.
func resolvePath(root, rel string) (string, error) {
	if rel == "" {
		rel = "."
	}
	joined := filepath.Join(root, rel)
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", tarangerr.New(tarangerr.ErrUnreadable, "cannot resolve project root", err)
	}
	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", tarangerr.New(tarangerr.ErrUnreadable, "cannot resolve path", err)
	}

	if absJoined != absRoot && !strings.HasPrefix(absJoined, absRoot+string(filepath.Separator)) {
		return "", tarangerr.PathEscape(rel)
	}
	return absJoined, nil
}

// toRepoRelative converts an absolute path back to project-root-relative,
// slash-normalized, for tool results (which are always repo-relative).
func toRepoRelative(root, abs string) string {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}
