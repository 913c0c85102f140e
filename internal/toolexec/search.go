package toolexec

import (
	"bufio"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tarang-dev/tarang/internal/ignore"
	"github.com/tarang-dev/tarang/internal/retriever"
	"github.com/tarang-dev/tarang/internal/tarangerr"
)

// SearchFiles greps text-like files under args.Path for args.Pattern.
// Pattern is compiled as a case-insensitive regex; if compilation fails
// it is matched as a literal substring instead.
func (e *Executor) SearchFiles(args SearchFilesArgs) (*SearchFilesResult, error) {
	root := args.Path
	if root == "" {
		root = "."
	}
	abs, err := resolvePath(e.root, root)
	if err != nil {
		return nil, err
	}

	maxResults := args.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	re, reErr := regexp.Compile("(?i)" + args.Pattern)
	literal := reErr != nil
	lowerPattern := strings.ToLower(args.Pattern)

	matchLine := func(line string) bool {
		if literal {
			return strings.Contains(strings.ToLower(line), lowerPattern)
		}
		return re.MatchString(line)
	}

	var matches []SearchMatch
	policy := ignore.New()

	walkErr := filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if len(matches) >= maxResults {
			return filepath.SkipAll
		}
		rel, _ := filepath.Rel(abs, path)
		if rel == "." {
			return nil
		}
		relSlash := filepath.ToSlash(rel)

		if d.IsDir() {
			_ = policy.LoadGitignore(abs, rel)
			if policy.ShouldSkipDir(relSlash) {
				return filepath.SkipDir
			}
			return nil
		}
		if !ignore.IsAcceptedExtension(path) {
			return nil
		}
		if args.FilePattern != "" {
			if ok, _ := filepath.Match(args.FilePattern, d.Name()); !ok {
				return nil
			}
		}

		f, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer func() { _ = f.Close() }()

		repoRel := toRepoRelative(e.root, path)
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			if matchLine(scanner.Text()) {
				matches = append(matches, SearchMatch{File: repoRel, Line: lineNum, Content: scanner.Text()})
				if len(matches) >= maxResults {
					return filepath.SkipAll
				}
			}
		}
		return nil
	})
	if walkErr != nil && walkErr != filepath.SkipAll {
		return nil, tarangerr.Wrap(tarangerr.ErrUnreadable, walkErr)
	}

	return &SearchFilesResult{Matches: matches, Count: len(matches)}, nil
}

// SearchCode runs graph-augmented retrieval over the project's lexical
// index.
// Returns a NotIndexed error when the project has no retriever wired.
// hops/maxChunks are taken literally; callers apply search_code's
// documented defaults (hops=1, max_chunks=10) before calling when the
// stream event omitted them (see Executor.dispatch).
func (e *Executor) SearchCode(ctx context.Context, query string, hops, maxChunks int) (*retriever.Result, error) {
	if e.retriever == nil {
		return nil, tarangerr.NotIndexed(e.root)
	}
	return e.retriever.Retrieve(ctx, query, retriever.Options{Hops: hops, MaxChunks: maxChunks, MaxSignatures: 20})
}
