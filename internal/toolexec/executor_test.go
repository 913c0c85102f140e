package toolexec

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarang-dev/tarang/internal/approval"
)

func newTestExecutor(t *testing.T) (*Executor, string) {
	t.Helper()
	root := t.TempDir()
	return New(root, nil, nil, nil), root
}

func TestResolvePath_EscapeRejected(t *testing.T) {
	exec, _ := newTestExecutor(t)
	_, err := exec.ReadFile(ReadFileArgs{FilePath: "../../etc/passwd"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_PATH_ESCAPE")
}

func TestReadFile_HappyPath(t *testing.T) {
	exec, root := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("one\ntwo\nthree\n"), 0o644))

	result, err := exec.ReadFile(ReadFileArgs{FilePath: "a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree", result.Content)
	assert.Equal(t, 3, result.TotalLines)
	assert.False(t, result.Truncated)
}

func TestReadFile_LineRange(t *testing.T) {
	exec, root := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("one\ntwo\nthree\nfour\n"), 0o644))

	result, err := exec.ReadFile(ReadFileArgs{FilePath: "a.txt", StartLine: 2, EndLine: 3})
	require.NoError(t, err)
	assert.Equal(t, "two\nthree", result.Content)
	assert.True(t, result.Truncated)
}

func TestReadFile_RejectsOversizedFile(t *testing.T) {
	exec, root := newTestExecutor(t)
	data := make([]byte, maxReadFileSize+1)
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.txt"), data, 0o644))

	_, err := exec.ReadFile(ReadFileArgs{FilePath: "big.txt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_FILE_TOO_LARGE")
}

func TestReadFile_AcceptsExactly100KiB(t *testing.T) {
	exec, root := newTestExecutor(t)
	data := make([]byte, maxReadFileSize)
	require.NoError(t, os.WriteFile(filepath.Join(root, "exact.txt"), data, 0o644))

	_, err := exec.ReadFile(ReadFileArgs{FilePath: "exact.txt"})
	require.NoError(t, err)
}

func TestListFiles_MaxFilesZeroReturnsEmpty(t *testing.T) {
	exec, root := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a"), 0o644))

	result, err := exec.ListFiles(ListFilesArgs{Path: ".", Recursive: true, MaxFiles: 0})
	require.NoError(t, err)
	assert.Empty(t, result.Files)
	assert.Equal(t, 0, result.Count)
}

func TestListFiles_SortedRepoRelative(t *testing.T) {
	exec, root := newTestExecutor(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.go"), []byte("package a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "a.go"), []byte("package a"), 0o644))

	result, err := exec.ListFiles(ListFilesArgs{Path: ".", Recursive: true, MaxFiles: 500})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.go", "sub/a.go"}, result.Files)
}

func TestWriteFile_CreatesParentDirs(t *testing.T) {
	exec, root := newTestExecutor(t)

	result, err := exec.WriteFile(WriteFileArgs{FilePath: "nested/dir/new.txt", Content: "hello\nworld"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Created)

	data, err := os.ReadFile(filepath.Join(root, "nested/dir/new.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", string(data))
}

func TestWriteFile_StagnationGuard(t *testing.T) {
	exec, root := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello "), 0o644))

	_, err := exec.WriteFile(WriteFileArgs{FilePath: "a.txt", Content: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_NOOP_EDIT")
}

func TestEditFile_EmptySearchRejected(t *testing.T) {
	exec, root := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))

	_, err := exec.EditFile(EditFileArgs{FilePath: "a.txt", Search: "", Replace: "y"})
	require.Error(t, err)
}

func TestEditFile_StagnationRejectedAndFileUnchanged(t *testing.T) {
	exec, root := newTestExecutor(t)
	path := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := exec.EditFile(EditFileArgs{FilePath: "a.txt", Search: "x", Replace: " x "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_NOOP_EDIT")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestEditFile_SearchNotFoundRejected(t *testing.T) {
	exec, root := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	_, err := exec.EditFile(EditFileArgs{FilePath: "a.txt", Search: "goodbye", Replace: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_SEARCH_NOT_FOUND")
}

func TestEditFile_ReplacesAllOccurrences(t *testing.T) {
	exec, root := newTestExecutor(t)
	path := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("foo bar foo baz foo"), 0o644))

	result, err := exec.EditFile(EditFileArgs{FilePath: "a.txt", Search: "foo", Replace: "qux"})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Replacements)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "qux bar qux baz qux", string(data))
}

func TestDeleteFile_RemovesFile(t *testing.T) {
	exec, root := newTestExecutor(t)
	path := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	result, err := exec.DeleteFile(DeleteFileArgs{FilePath: "a.txt"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestGetFileInfo_NonExistentReportsFalse(t *testing.T) {
	exec, _ := newTestExecutor(t)
	result, err := exec.GetFileInfo(GetFileInfoArgs{FilePath: "missing.txt"})
	require.NoError(t, err)
	assert.False(t, result.Exists)
}

func TestGetFileInfo_ExistingFile(t *testing.T) {
	exec, root := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	result, err := exec.GetFileInfo(GetFileInfoArgs{FilePath: "a.txt"})
	require.NoError(t, err)
	assert.True(t, result.Exists)
	require.NotNil(t, result.Size)
	assert.Equal(t, int64(5), *result.Size)
	assert.True(t, *result.IsFile)
	assert.False(t, *result.IsDirectory)
}

func TestSearchFiles_LiteralFallbackOnInvalidRegex(t *testing.T) {
	exec, root := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("func f(x *int) {}\n"), 0o644))

	result, err := exec.SearchFiles(SearchFilesArgs{Pattern: "(unclosed[", Path: "."})
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
}

func TestSearchFiles_FindsMatch(t *testing.T) {
	exec, root := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("func helper() {}\nfunc other() {}\n"), 0o644))

	result, err := exec.SearchFiles(SearchFilesArgs{Pattern: "helper", Path: "."})
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "a.go", result.Matches[0].File)
	assert.Equal(t, 1, result.Matches[0].Line)
}

func TestSearchCode_NotIndexedWhenNoRetriever(t *testing.T) {
	exec, _ := newTestExecutor(t)
	_, err := exec.SearchCode(context.Background(), "anything", 1, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_NOT_INDEXED")
}

func TestExecute_MutatingToolDeniedNonInteractivelyLeavesFileIntact(t *testing.T) {
	exec, root := newTestExecutor(t)
	path := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	pol := approval.New(nil)
	exec.approval = pol

	result := exec.Execute(context.Background(), Call{CallID: "1", Tool: ToolDeleteFile, Args: map[string]any{"file_path": "a.txt"}})
	require.NotNil(t, result.Skipped)
	assert.True(t, result.Skipped.Skipped)
	assert.Equal(t, "User rejected operation", result.Skipped.Message)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestExecute_NoApprovalPolicyDispatchesUnconditionally(t *testing.T) {
	exec, root := newTestExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	result := exec.Execute(context.Background(), Call{CallID: "1", Tool: ToolDeleteFile, Args: map[string]any{"file_path": "a.txt"}})
	assert.Nil(t, result.Skipped)
	assert.Empty(t, result.Error)

	_, statErr := os.Stat(filepath.Join(root, "a.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExecute_NoopEditSetsStagnationMarker(t *testing.T) {
	exec, root := newTestExecutor(t)
	path := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	result := exec.Execute(context.Background(), Call{CallID: "1", Tool: ToolEditFile, Args: map[string]any{
		"file_path": "a.txt", "search": "x", "replace": " x ",
	}})
	assert.Contains(t, result.Error, "ERR_NOOP_EDIT")
	assert.True(t, result.Stagnation)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestExecute_UnknownToolReturnsErrorNotPanic(t *testing.T) {
	exec, _ := newTestExecutor(t)
	result := exec.Execute(context.Background(), Call{CallID: "1", Tool: "nonexistent_tool"})
	assert.NotEmpty(t, result.Error)
}

func TestExecute_PathEscapeNeverInvokesIO(t *testing.T) {
	exec, root := newTestExecutor(t)
	result := exec.Execute(context.Background(), Call{CallID: "1", Tool: ToolWriteFile, Args: map[string]any{
		"file_path": "../outside.txt", "content": "pwned",
	}})
	assert.Contains(t, result.Error, "ERR_PATH_ESCAPE")
	_, err := os.Stat(filepath.Join(filepath.Dir(root), "outside.txt"))
	assert.True(t, os.IsNotExist(err))
}
