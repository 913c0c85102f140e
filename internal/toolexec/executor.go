package toolexec

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tarang-dev/tarang/internal/approval"
	"github.com/tarang-dev/tarang/internal/retriever"
	"github.com/tarang-dev/tarang/internal/tarangerr"
)

// Executor runs the fixed tool set against one project
// root, under the path sandbox and the injected approval policy. A nil
// Retriever is valid - search_code then always errors NotIndexed.
type Executor struct {
	root      string
	retriever *retriever.Retriever
	approval  *approval.Policy
	logger    *slog.Logger
}

// New builds an Executor rooted at root. retr may be nil when the
// project has not been indexed yet.
func New(root string, retr *retriever.Retriever, pol *approval.Policy, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{root: root, retriever: retr, approval: pol, logger: logger}
}

// SetRetriever rebinds the Retriever, e.g. after an indexing run
// completes in the background.
func (e *Executor) SetRetriever(retr *retriever.Retriever) {
	e.retriever = retr
}

// Result is the uniform, never-raising result shape: a tool call
// either succeeds with Data, fails with Error set, or is Skipped by
// the approval policy - it is never allowed to propagate a bare error
// back up through the stream loop.
type Result struct {
	CallID  string   `json:"call_id"`
	Tool    string   `json:"tool"`
	Data    any      `json:"data,omitempty"`
	Error   string   `json:"error,omitempty"`
	Skipped *Skipped `json:"-"`

	// Stagnation marks a rejected no-op edit or write, so the remote
	// reasoning loop can detect that it is repeating itself.
	Stagnation bool `json:"stagnation,omitempty"`
}

// Execute runs call end-to-end: approval gate, dispatch, result shaping.
// It never returns a Go error - execution failures are folded into
// Result.Error.
func (e *Executor) Execute(ctx context.Context, call Call) *Result {
	requireApproval := call.RequireApproval || mutatingTools[call.Tool]

	if e.approval != nil {
		decision, err := e.approval.Decide(ctx, approval.Request{
			CallID:      call.CallID,
			Tool:        call.Tool,
			Description: call.Description,
			Content:     approvalContent(call),
		}, requireApproval)
		if err != nil {
			return &Result{CallID: call.CallID, Tool: call.Tool, Error: err.Error()}
		}
		if !decision.Approved {
			return &Result{CallID: call.CallID, Tool: call.Tool, Skipped: &Skipped{Skipped: decision.Skip.Skipped, Message: decision.Skip.Message}}
		}
	}

	data, err := e.dispatch(ctx, call)
	if err != nil {
		e.logger.Warn("tool call failed", slog.String("tool", call.Tool), slog.String("call_id", call.CallID), slog.String("error", err.Error()))
		return &Result{
			CallID:     call.CallID,
			Tool:       call.Tool,
			Error:      err.Error(),
			Stagnation: errors.Is(err, tarangerr.New(tarangerr.ErrNoopEdit, "", nil)),
		}
	}
	return &Result{CallID: call.CallID, Tool: call.Tool, Data: data}
}

// approvalContent renders the content an approval View decision shows
// the user: the command about to run or the content about to be written.
func approvalContent(call Call) string {
	switch call.Tool {
	case ToolShell:
		if cmd, ok := call.Args["command"].(string); ok {
			return cmd
		}
	case ToolWriteFile:
		if content, ok := call.Args["content"].(string); ok {
			return content
		}
	case ToolEditFile:
		search, _ := call.Args["search"].(string)
		replace, _ := call.Args["replace"].(string)
		return "search: " + search + "\nreplace: " + replace
	}
	return ""
}

func (e *Executor) dispatch(ctx context.Context, call Call) (any, error) {
	a := call.Args
	switch call.Tool {
	case ToolListFiles:
		return e.ListFiles(ListFilesArgs{
			Path:      strArg(a, "path", "."),
			Pattern:   strArg(a, "pattern", ""),
			Recursive: boolArg(a, "recursive", true),
			MaxFiles:  intArg(a, "max_files", defaultMaxFiles),
		})
	case ToolReadFile:
		return e.ReadFile(ReadFileArgs{
			FilePath:  strArg(a, "file_path", ""),
			MaxLines:  intArg(a, "max_lines", defaultMaxLines),
			StartLine: intArg(a, "start_line", 0),
			EndLine:   intArg(a, "end_line", 0),
		})
	case ToolSearchFiles:
		return e.SearchFiles(SearchFilesArgs{
			Pattern:     strArg(a, "pattern", ""),
			Path:        strArg(a, "path", "."),
			FilePattern: strArg(a, "file_pattern", ""),
			MaxResults:  intArg(a, "max_results", defaultMaxResults),
		})
	case ToolSearchCode:
		return e.SearchCode(ctx, strArg(a, "query", ""), intArg(a, "hops", 1), intArg(a, "max_chunks", 10))
	case ToolGetFileInfo:
		return e.GetFileInfo(GetFileInfoArgs{FilePath: strArg(a, "file_path", "")})
	case ToolWriteFile:
		return e.WriteFile(WriteFileArgs{FilePath: strArg(a, "file_path", ""), Content: strArg(a, "content", "")})
	case ToolEditFile:
		return e.EditFile(EditFileArgs{
			FilePath: strArg(a, "file_path", ""),
			Search:   strArg(a, "search", ""),
			Replace:  strArg(a, "replace", ""),
		})
	case ToolDeleteFile:
		return e.DeleteFile(DeleteFileArgs{FilePath: strArg(a, "file_path", "")})
	case ToolShell:
		return e.Shell(ctx, ShellArgs{
			Command: strArg(a, "command", ""),
			Cwd:     strArg(a, "cwd", "."),
			Timeout: intArg(a, "timeout", 60),
		})
	default:
		return nil, tarangerr.New(tarangerr.ErrProtocol, "unknown tool: "+call.Tool, nil)
	}
}

func strArg(m map[string]any, key, def string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return def
}

func boolArg(m map[string]any, key string, def bool) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return def
}

// intArg returns the literal value when key is present (0 is a valid,
// meaningful value for some args), def otherwise.
func intArg(m map[string]any, key string, def int) int {
	v, ok := m[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}

