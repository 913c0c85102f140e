package scanner

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tarang-dev/tarang/internal/chunk"
	"github.com/tarang-dev/tarang/internal/ignore"
)

// generatedMarkers are header strings that flag a file as machine-generated.
var generatedMarkers = []string{
	"// Code generated",
	"// DO NOT EDIT",
	"/* DO NOT EDIT",
	"# Generated by",
	"<!-- AUTO-GENERATED -->",
	"// Generated by",
	"/* Generated by",
}

// Scanner walks a project tree, applying internal/ignore's directory and
// file deny rules plus any .gitignore files it encounters along the way.
type Scanner struct {
	policy *ignore.Policy
}

// New creates a Scanner with a fresh ignore policy.
func New() *Scanner {
	return &Scanner{policy: ignore.New()}
}

// Scan walks opts.RootDir and streams accepted files on the returned
// channel. The channel is closed once the walk completes or ctx is
// cancelled.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) (<-chan ScanResult, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}

	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "scan", Path: absRoot, Err: fs.ErrInvalid}
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	results := make(chan ScanResult, 64)
	go func() {
		defer close(results)
		s.walk(ctx, absRoot, opts, maxFileSize, results)
	}()
	return results, nil
}

func (s *Scanner) walk(ctx context.Context, absRoot string, opts *ScanOptions, maxFileSize int64, results chan<- ScanResult) {
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if walkErr != nil {
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		if relPath == "." {
			_ = s.policy.LoadGitignore(absRoot, "")
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if err := s.policy.LoadGitignore(absRoot, relPath); err != nil {
				return nil
			}
			if s.policy.ShouldSkipDir(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}
		if s.policy.ShouldSkipFile(relPath) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if fi.Size() > maxFileSize {
			return nil
		}
		if isBinary(path) {
			return nil
		}

		file := &FileInfo{
			Path:        relPath,
			AbsPath:     path,
			Size:        fi.Size(),
			ModTime:     fi.ModTime(),
			Language:    chunk.LanguageForExtension(strings.TrimPrefix(filepath.Ext(relPath), ".")),
			IsGenerated: isGenerated(path),
		}

		select {
		case results <- ScanResult{File: file}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && err != context.Canceled {
		select {
		case results <- ScanResult{Error: err}:
		case <-ctx.Done():
		}
	}
}

// isBinary reports whether a file's first 512 bytes contain a null byte.
func isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return false
	}
	return bytes.Contains(buf[:n], []byte{0})
}

// isGenerated reports whether a file's first 1KB carries a generated-file
// marker comment.
func isGenerated(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 1024)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return false
	}
	content := string(buf[:n])
	for _, marker := range generatedMarkers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}
