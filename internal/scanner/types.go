// Package scanner discovers indexable files beneath a project root,
// applying the deny-set and .gitignore rules from internal/ignore (the
// filesystem scan) before handing files to the chunker.
package scanner

import "time"

// FileInfo describes a single file accepted for indexing.
type FileInfo struct {
	Path     string // relative to the scan root
	AbsPath  string
	Size     int64
	ModTime  time.Time
	Language string // tree-sitter language name, or "" for the module-fallback chunker

	// IsGenerated reports whether the file's header carries a
	// machine-generated marker. The indexer still chunks it; callers that
	// want to skip generated sources filter on this field.
	IsGenerated bool
}

// ScanOptions configures a scan.
type ScanOptions struct {
	// RootDir is the project root to walk. Defaults to "." when empty.
	RootDir string

	// MaxFileSize caps the size of files the scanner will stat as
	// acceptable; larger files are skipped before they reach the chunker's
	// own MaxFileSize guard. Zero selects DefaultMaxFileSize.
	MaxFileSize int64

	// FollowSymlinks enables following symbolic links during the walk.
	FollowSymlinks bool
}

// ScanResult is delivered on the channel returned by Scan.
type ScanResult struct {
	File  *FileInfo
	Error error
}

// DefaultMaxFileSize is the default ceiling on file size considered for
// scanning (10MB); the chunker applies its own, tighter, per-file limit (100 KiB).
const DefaultMaxFileSize = 10 * 1024 * 1024
