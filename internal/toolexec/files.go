package toolexec

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tarang-dev/tarang/internal/ignore"
	"github.com/tarang-dev/tarang/internal/tarangerr"
)

// ListFiles walks args.Path (project-root-relative), applying the deny
// set and an optional filename glob, capped at args.MaxFiles.
// MaxFiles is taken literally - an explicit 0 returns an empty
// list without error; callers that want the
// default of 500 must set it before calling (see Executor.dispatch).
func (e *Executor) ListFiles(args ListFilesArgs) (*ListFilesResult, error) {
	abs, err := resolvePath(e.root, args.Path)
	if err != nil {
		return nil, err
	}
	maxFiles := args.MaxFiles

	var files []string
	policy := ignore.New()

	walkErr := filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if len(files) >= maxFiles {
			return filepath.SkipAll
		}
		relToAbs, _ := filepath.Rel(abs, path)
		if relToAbs == "." {
			return nil
		}
		relToAbsSlash := filepath.ToSlash(relToAbs)

		if d.IsDir() {
			if !args.Recursive && strings.Contains(relToAbsSlash, "/") {
				return filepath.SkipDir
			}
			_ = policy.LoadGitignore(abs, relToAbs)
			if policy.ShouldSkipDir(relToAbsSlash) {
				return filepath.SkipDir
			}
			return nil
		}
		if !args.Recursive && strings.Contains(relToAbsSlash, "/") {
			return nil
		}
		if args.Pattern != "" {
			if ok, _ := filepath.Match(args.Pattern, d.Name()); !ok {
				return nil
			}
		}
		repoRel := toRepoRelative(e.root, path)
		files = append(files, repoRel)
		if len(files) >= maxFiles {
			return filepath.SkipAll
		}
		return nil
	})
	if walkErr != nil && walkErr != filepath.SkipAll {
		return nil, tarangerr.Wrap(tarangerr.ErrUnreadable, walkErr)
	}

	sort.Strings(files)
	return &ListFilesResult{Files: files, Count: len(files)}, nil
}

// ReadFile reads a file, rejecting anything over 100 KiB.
// Line ranges are 1-indexed inclusive; Truncated is set when either the
// size cap or max_lines clipped the returned content.
func (e *Executor) ReadFile(args ReadFileArgs) (*ReadFileResult, error) {
	abs, err := resolvePath(e.root, args.FilePath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, tarangerr.Wrap(tarangerr.ErrUnreadable, err)
	}
	if info.Size() > maxReadFileSize {
		return nil, tarangerr.New(tarangerr.ErrFileTooLarge, "file exceeds 100 KiB read limit", nil).
			WithDetail("path", args.FilePath)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, tarangerr.Wrap(tarangerr.ErrUnreadable, err)
	}

	allLines := splitLines(data)
	totalLines := len(allLines)

	maxLines := args.MaxLines
	if maxLines <= 0 {
		maxLines = defaultMaxLines
	}

	start := 1
	if args.StartLine > 0 {
		start = args.StartLine
	}
	end := totalLines
	if args.EndLine > 0 && args.EndLine < end {
		end = args.EndLine
	}
	if start > totalLines {
		start = totalLines + 1
	}

	truncated := false
	if end-start+1 > maxLines {
		end = start + maxLines - 1
		truncated = true
	}
	if args.EndLine > 0 && args.EndLine < totalLines {
		truncated = true
	}

	var selected []string
	if start <= totalLines && start <= end {
		for i := start; i <= end && i <= totalLines; i++ {
			selected = append(selected, allLines[i-1])
		}
	}

	return &ReadFileResult{
		Content:    strings.Join(selected, "\n"),
		Lines:      len(selected),
		TotalLines: totalLines,
		Truncated:  truncated,
	}, nil
}

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	text := strings.TrimSuffix(string(data), "\n")
	return strings.Split(text, "\n")
}

// GetFileInfo reports existence and basic metadata for a path.
func (e *Executor) GetFileInfo(args GetFileInfoArgs) (*GetFileInfoResult, error) {
	abs, err := resolvePath(e.root, args.FilePath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return &GetFileInfoResult{Exists: false}, nil
		}
		return nil, tarangerr.Wrap(tarangerr.ErrUnreadable, err)
	}

	size := info.Size()
	modTime := info.ModTime()
	isDir := info.IsDir()
	isFile := !isDir
	return &GetFileInfoResult{
		Exists:      true,
		Size:        &size,
		Modified:    &modTime,
		IsDirectory: &isDir,
		IsFile:      &isFile,
	}, nil
}

// WriteFile writes content to a file, creating parent directories as
// needed. edit_file's stagnation guard applies here too: writing
// byte-identical (after trimming trailing whitespace) content to an
// existing file is rejected the same way.
func (e *Executor) WriteFile(args WriteFileArgs) (*WriteFileResult, error) {
	abs, err := resolvePath(e.root, args.FilePath)
	if err != nil {
		return nil, err
	}

	existing, statErr := os.ReadFile(abs)
	created := statErr != nil
	if statErr == nil && strings.TrimRight(string(existing), " \t\r\n") == strings.TrimRight(args.Content, " \t\r\n") {
		return nil, tarangerr.NoopEdit(args.FilePath)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, tarangerr.Wrap(tarangerr.ErrUnreadable, err)
	}
	if err := os.WriteFile(abs, []byte(args.Content), 0o644); err != nil {
		return nil, tarangerr.Wrap(tarangerr.ErrUnreadable, err)
	}

	lines := 0
	if args.Content != "" {
		lines = len(splitLines([]byte(args.Content)))
	}
	return &WriteFileResult{Success: true, Created: created, LinesWritten: lines}, nil
}

// EditFile replaces every occurrence of Search with Replace in the
// target file, enforcing the three pre-flight rejection rules before
// touching disk.
func (e *Executor) EditFile(args EditFileArgs) (*EditFileResult, error) {
	if args.Search == "" {
		return nil, tarangerr.New(tarangerr.ErrSearchNotFound, "search text must not be empty", nil).
			WithDetail("path", args.FilePath)
	}
	if strings.TrimSpace(args.Search) == strings.TrimSpace(args.Replace) {
		return nil, tarangerr.NoopEdit(args.FilePath)
	}

	abs, err := resolvePath(e.root, args.FilePath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, tarangerr.Wrap(tarangerr.ErrUnreadable, err)
	}
	content := string(data)

	if !strings.Contains(content, args.Search) {
		return nil, tarangerr.SearchNotFound(args.FilePath)
	}

	replacements := strings.Count(content, args.Search)
	updated := strings.ReplaceAll(content, args.Search, args.Replace)
	if err := os.WriteFile(abs, []byte(updated), 0o644); err != nil {
		return nil, tarangerr.Wrap(tarangerr.ErrUnreadable, err)
	}

	return &EditFileResult{Success: true, Replacements: replacements}, nil
}

// DeleteFile removes a file from disk.
func (e *Executor) DeleteFile(args DeleteFileArgs) (*DeleteFileResult, error) {
	abs, err := resolvePath(e.root, args.FilePath)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(abs); err != nil {
		return nil, tarangerr.Wrap(tarangerr.ErrUnreadable, err)
	}
	return &DeleteFileResult{Success: true}, nil
}
