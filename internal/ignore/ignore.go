// Package ignore decides which files and directories the scanner walks
// into and which files it accepts for chunking. It layers
// three independent checks: a fixed directory deny set, a fixed filename
// glob deny set, and per-directory .gitignore pattern matching.
package ignore

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	gitignore "github.com/sabhiram/go-gitignore"
)

// matcherCacheSize bounds the number of compiled .gitignore matchers kept
// in memory at once, so a long-running incremental scan over a project
// with many nested .gitignore files can't grow this without bound.
const matcherCacheSize = 1000

// deniedDirs are directory basenames that are never walked into,
// regardless of .gitignore contents: VCS metadata, virtualenvs, JS/Python
// dependency trees, build outputs, caches, and the tool's own index dir.
var deniedDirs = map[string]bool{
	".git":             true,
	".hg":              true,
	".svn":             true,
	".venv":            true,
	"venv":             true,
	"env":              true,
	"node_modules":     true,
	"bower_components": true,
	"dist":             true,
	"build":            true,
	"out":              true,
	"target":           true,
	"__pycache__":      true,
	".mypy_cache":      true,
	".pytest_cache":    true,
	".ruff_cache":      true,
	".tox":             true,
	".cache":           true,
	".idea":            true,
	".vscode":          true,
	".tarang":          true,
}

// deniedFileGlobs match filenames that are always skipped even if their
// extension would otherwise be accepted: compiled bytecode, lockfiles,
// minified bundles, and platform junk files.
var deniedFileGlobs = []string{
	"*.pyc", "*.pyo", "*.pyd", "*.class", "*.o", "*.obj", "*.so", "*.dylib", "*.dll",
	"package-lock.json", "yarn.lock", "pnpm-lock.yaml", "Cargo.lock", "poetry.lock",
	"*.min.js", "*.min.css", "*.map",
	".DS_Store", "Thumbs.db", "desktop.ini",
}

// acceptedExtensions is the set of file extensions the indexer will chunk:
// source code, common config formats, and plain documentation.
var acceptedExtensions = map[string]bool{
	".py": true, ".pyw": true,
	".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
	".ts": true, ".tsx": true,
	".go": true, ".rs": true, ".rb": true, ".java": true, ".kt": true,
	".c": true, ".h": true, ".cpp": true, ".hpp": true, ".cc": true, ".cs": true,
	".php": true, ".swift": true, ".scala": true, ".lua": true,
	".sql": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true, ".ini": true, ".cfg": true,
	".md": true, ".txt": true,
}

// Policy decides whether a directory should be walked into and whether a
// file should be accepted for indexing. Safe for concurrent use.
type Policy struct {
	matchers *lru.Cache[string, *gitignore.GitIgnore] // directory (relative to root) -> compiled matcher
}

// New returns a Policy with no .gitignore patterns loaded yet.
func New() *Policy {
	cache, err := lru.New[string, *gitignore.GitIgnore](matcherCacheSize)
	if err != nil {
		// Only fails for a non-positive size, which matcherCacheSize never is.
		panic(err)
	}
	return &Policy{matchers: cache}
}

// LoadGitignore compiles the .gitignore found in dir (relative to the
// scan root; "" for the root itself), if any. A missing file is not an
// error - it simply means that directory contributes no patterns.
func (p *Policy) LoadGitignore(root, dir string) error {
	abs := filepath.Join(root, dir, ".gitignore")
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	lines := strings.Split(string(data), "\n")
	matcher := gitignore.CompileIgnoreLines(lines...)
	p.matchers.Add(dir, matcher)
	return nil
}

// ShouldSkipDir reports whether the directory at relPath (relative to the
// scan root) should be pruned entirely.
func (p *Policy) ShouldSkipDir(relPath string) bool {
	base := path.Base(filepath.ToSlash(relPath))
	if deniedDirs[base] {
		return true
	}
	return p.matchesGitignore(relPath, true)
}

// ShouldSkipFile reports whether the file at relPath should be excluded
// from indexing: denied filename glob, unaccepted extension, or a
// .gitignore match from this directory or any ancestor.
func (p *Policy) ShouldSkipFile(relPath string) bool {
	base := path.Base(filepath.ToSlash(relPath))
	for _, g := range deniedFileGlobs {
		if ok, _ := filepath.Match(g, base); ok {
			return true
		}
	}
	if !IsAcceptedExtension(relPath) {
		return true
	}
	return p.matchesGitignore(relPath, false)
}

// IsAcceptedExtension reports whether path's extension is in the
// known-supported set.
func IsAcceptedExtension(p string) bool {
	base := path.Base(filepath.ToSlash(p))
	if base == "Dockerfile" || base == "Makefile" {
		return true
	}
	return acceptedExtensions[strings.ToLower(filepath.Ext(p))]
}

// matchesGitignore checks relPath against every loaded matcher whose
// directory is relPath's own directory or an ancestor of it.
func (p *Policy) matchesGitignore(relPath string, isDir bool) bool {
	slashPath := filepath.ToSlash(relPath)
	for _, dir := range p.matchers.Keys() {
		matcher, ok := p.matchers.Peek(dir)
		if !ok {
			continue
		}
		rel := slashPath
		if dir != "" {
			prefix := filepath.ToSlash(dir) + "/"
			if !strings.HasPrefix(slashPath, prefix) {
				continue
			}
			rel = strings.TrimPrefix(slashPath, prefix)
		}
		if matcher.MatchesPath(rel) {
			return true
		}
		if isDir && matcher.MatchesPath(rel+"/") {
			return true
		}
	}
	return false
}
