// Package toolexec implements the sandboxed local tool executor the
// Stream Client delegates every tool_call event to: a fixed
// tool set, a mandatory path-sandbox check ahead of every file-targeted
// tool, and an approval gate in front of calls the stream flags
// require_approval. Tool failures return a result-shaped structure;
// they never propagate a bare error up through the stream loop.
package toolexec

import (
	"time"
)

// Tool names, exactly as they appear on the wire.
const (
	ToolListFiles   = "list_files"
	ToolReadFile    = "read_file"
	ToolSearchFiles = "search_files"
	ToolSearchCode  = "search_code"
	ToolGetFileInfo = "get_file_info"
	ToolWriteFile   = "write_file"
	ToolEditFile    = "edit_file"
	ToolDeleteFile  = "delete_file"
	ToolShell       = "shell"
)

// mutatingTools always require approval regardless of what the stream
// event says.
var mutatingTools = map[string]bool{
	ToolWriteFile:  true,
	ToolEditFile:   true,
	ToolDeleteFile: true,
	ToolShell:      true,
}

// Call is one tool invocation, shaped after the stream protocol's
// tool_call event payload.
type Call struct {
	CallID          string
	Tool            string
	Args            map[string]any
	RequireApproval bool
	Description     string
}

// Skipped marks a rejected call's result.
type Skipped struct {
	Skipped bool   `json:"skipped"`
	Message string `json:"message"`
}

// ListFilesArgs / ListFilesResult - list_files.
type ListFilesArgs struct {
	Path      string
	Pattern   string
	Recursive bool
	MaxFiles  int
}
type ListFilesResult struct {
	Files []string `json:"files"`
	Count int      `json:"count"`
}

// ReadFileArgs / ReadFileResult - read_file.
type ReadFileArgs struct {
	FilePath  string
	MaxLines  int
	StartLine int
	EndLine   int
}
type ReadFileResult struct {
	Content    string `json:"content"`
	Lines      int    `json:"lines"`
	TotalLines int    `json:"total_lines"`
	Truncated  bool   `json:"truncated"`
}

// SearchFilesArgs / SearchFilesResult - search_files.
type SearchFilesArgs struct {
	Pattern     string
	Path        string
	FilePattern string
	MaxResults  int
}
type SearchMatch struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Content string `json:"content"`
}
type SearchFilesResult struct {
	Matches []SearchMatch `json:"matches"`
	Count   int           `json:"count"`
}

// GetFileInfoArgs / GetFileInfoResult - get_file_info.
type GetFileInfoArgs struct {
	FilePath string
}
type GetFileInfoResult struct {
	Exists      bool       `json:"exists"`
	Size        *int64     `json:"size,omitempty"`
	Modified    *time.Time `json:"modified,omitempty"`
	IsDirectory *bool      `json:"is_directory,omitempty"`
	IsFile      *bool      `json:"is_file,omitempty"`
}

// WriteFileArgs / WriteFileResult - write_file.
type WriteFileArgs struct {
	FilePath string
	Content  string
}
type WriteFileResult struct {
	Success      bool `json:"success"`
	Created      bool `json:"created"`
	LinesWritten int  `json:"lines_written"`
}

// EditFileArgs / EditFileResult - edit_file.
type EditFileArgs struct {
	FilePath string
	Search   string
	Replace  string
}
type EditFileResult struct {
	Success      bool `json:"success"`
	Replacements int  `json:"replacements"`
}

// DeleteFileArgs / DeleteFileResult - delete_file.
type DeleteFileArgs struct {
	FilePath string
}
type DeleteFileResult struct {
	Success bool `json:"success"`
}

// ShellArgs / ShellResult - shell.
type ShellArgs struct {
	Command string
	Cwd     string
	Timeout int // seconds, default 60
}
type ShellResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

const (
	maxReadFileSize  = 100 * 1024
	defaultMaxLines  = 500
	defaultMaxFiles  = 500
	defaultMaxResults = 100
	defaultShellTimeout = 60 * time.Second
	stdoutTruncateBytes = 5 * 1024
	stderrTruncateBytes = 2 * 1024
)
