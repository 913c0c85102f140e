package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tarang-dev/tarang/internal/approval"
	"github.com/tarang-dev/tarang/internal/execstate"
	"github.com/tarang-dev/tarang/internal/logging"
	"github.com/tarang-dev/tarang/internal/retriever"
	"github.com/tarang-dev/tarang/internal/stream"
	"github.com/tarang-dev/tarang/internal/tarangconfig"
	"github.com/tarang-dev/tarang/internal/tarangerr"
	"github.com/tarang-dev/tarang/internal/tarangindex"
	"github.com/tarang-dev/tarang/internal/toolexec"
	"github.com/tarang-dev/tarang/pkg/version"
)

// runOptions holds CLI flags for run.
type runOptions struct {
	resume  bool
	baseURL string
	ui      bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [instruction]",
		Short: "Run one streaming task against the reasoning endpoint",
		Long: `Run one streaming task: send the instruction to the remote
reasoning service, consume its event stream, execute the tool calls it
issues locally under the path sandbox and approval policy, and post
each result back before the next event is handled.

Execution state is checkpointed to <project>/.tarang/state.json, so an
interrupted task can be picked up again with --resume, which primes the
new stream with continuity context from the prior run. Ctrl+C requests
cancellation from the server and marks the task paused.

The endpoint comes from stream.base_url in .tarang.yaml or
TARANG_STREAM_BASE_URL; credentials from TARANG_STREAM_AUTH_TOKEN and
TARANG_STREAM_OPENROUTER_KEY.

Examples:
  tarang run "add input validation to the signup handler"
  tarang run --resume`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			instruction := strings.Join(args, " ")
			if instruction == "" && !opts.resume {
				return fmt.Errorf("provide an instruction, or --resume to continue the last task")
			}
			return runTask(ctx, cmd, instruction, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.resume, "resume", false, "Resume the last paused task with its continuity context")
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "", "Reasoning endpoint base URL (overrides config)")
	cmd.Flags().BoolVar(&opts.ui, "ui", false, "Reserve the terminal for an external UI; log to file only")

	return cmd
}

func runTask(ctx context.Context, cmd *cobra.Command, instruction string, opts runOptions) error {
	root, err := resolveProjectRoot(".")
	if err != nil {
		return err
	}

	// When an external UI drives the terminal, nothing may write to
	// stderr; every log line goes to the file sink instead.
	if opts.ui {
		cleanup, err := logging.SetupUIMode()
		if err != nil {
			return err
		}
		defer cleanup()
	}

	cfg, err := tarangconfig.Load(root)
	if err != nil {
		cfg = tarangconfig.NewConfig()
	}
	baseURL := opts.baseURL
	if baseURL == "" {
		baseURL = cfg.Stream.BaseURL
	}
	if baseURL == "" {
		return fmt.Errorf("no reasoning endpoint configured: set stream.base_url in .tarang.yaml or TARANG_STREAM_BASE_URL")
	}

	state, continuity := loadOrCreateState(root, instruction, opts.resume, cfg.Execution.Deadline)
	if state.Instruction == "" {
		return fmt.Errorf("no resumable task found; provide an instruction")
	}
	if state.IsExpired() {
		return fmt.Errorf("task %s is past its deadline; start a new one", state.JobID)
	}
	state.Status = execstate.StatusRunning
	if err := state.Save(root); err != nil {
		// Checkpoint writes are best-effort.
		slog.Warn("state checkpoint failed", slog.String("error", err.Error()))
	}

	retr, closeIndex := openRetriever(ctx, root)
	defer closeIndex()

	out := cmd.OutOrStdout()
	prompter := &stdinPrompter{in: bufio.NewReader(cmd.InOrStdin()), out: out}
	executor := toolexec.New(root, retr, approval.New(prompter), slog.Default())

	// The stream client logs to its own file so 'tarang logs --source
	// stream' (or --source all) can isolate a task's wire-level chatter.
	streamLogger := slog.Default()
	if lg, cleanup, err := logging.Setup(logging.Config{
		Level:     "debug",
		FilePath:  logging.StreamLogPath(),
		MaxSizeMB: 10,
		MaxFiles:  3,
	}); err == nil {
		streamLogger = lg
		defer cleanup()
	} else {
		slog.Warn("stream log unavailable, using default logger", slog.String("error", err.Error()))
	}

	client := stream.New(stream.Options{
		BaseURL:       baseURL,
		AuthToken:     strings.TrimPrefix(cfg.Stream.Headers["Authorization"], "Bearer "),
		OpenRouterKey: cfg.Stream.Headers["X-OpenRouter-Key"],
		Executor:      executor,
		Sink:          &textSink{out: out},
		State:         state,
		Logger:        streamLogger,
	})

	slog.Info("task_started", slog.String("job_id", state.JobID), slog.String("endpoint", baseURL))
	taskID, runErr := client.RunTask(ctx, state.Instruction, continuity)

	if ctx.Err() != nil {
		// Interrupted: request cancellation from the server, then pause so
		// --resume can pick the task up again.
		cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cerr := client.Cancel(cancelCtx, taskID); cerr != nil {
			slog.Warn("cancel request failed", slog.String("task_id", taskID), slog.String("error", cerr.Error()))
		}
		state.MarkPaused()
		runErr = nil
		fmt.Fprintln(out, "Interrupted; task paused. Use 'tarang run --resume' to continue.")
	}

	if err := state.Save(root); err != nil {
		slog.Warn("state checkpoint failed", slog.String("error", err.Error()))
	}
	if runErr != nil {
		slog.Error("task_failed", slog.String("job_id", state.JobID),
			slog.Any("details", tarangerr.FormatForLog(runErr)))
	}
	slog.Info("task_finished", slog.String("job_id", state.JobID), slog.String("status", string(state.Status)))
	return runErr
}

// loadOrCreateState resumes the saved execution state when asked and
// possible, composing its continuity context; otherwise it starts fresh.
func loadOrCreateState(root, instruction string, resume bool, deadline time.Duration) (*execstate.ExecutionState, string) {
	if resume && execstate.Exists(root) {
		state, err := execstate.Load(root)
		if err == nil && state.CanResume() {
			if instruction != "" {
				state.Instruction = instruction
			}
			return state, state.GetContinuityContext(2000)
		}
		if err != nil {
			slog.Warn("saved state unusable, starting fresh", slog.String("error", err.Error()))
		}
	}
	return execstate.CreateState(instruction, deadline), ""
}

// openRetriever loads the project index for search_code if one has been
// built; a project with no index runs the task without retrieval and
// search_code calls fail with a not-indexed error.
func openRetriever(ctx context.Context, root string) (*retriever.Retriever, func()) {
	if !indexExists(root) {
		return nil, func() {}
	}
	ix, err := tarangindex.New(tarangindex.Config{
		RootDir:       root,
		DataDir:       indexDataDir(root),
		TarangVersion: version.Version,
	})
	if err != nil {
		slog.Warn("index unavailable", slog.String("error", err.Error()))
		return nil, func() {}
	}
	if err := ix.Load(ctx); err != nil {
		slog.Warn("index load failed", slog.String("error", err.Error()))
		_ = ix.Close()
		return nil, func() {}
	}
	return retriever.New(ix.BM25, ix.Graph), func() { _ = ix.Close() }
}

// stdinPrompter asks for approval decisions on the terminal. The policy
// re-invokes it after a view decision, so 'v' prints the pending content
// and the next round asks again.
type stdinPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *stdinPrompter) Prompt(_ context.Context, req approval.Request) (approval.Decision, error) {
	fmt.Fprintf(p.out, "\nApprove %s? %s\n", req.Tool, req.Description)
	fmt.Fprint(p.out, "[y]es  [n]o  [v]iew  [a]pprove all  [t]his tool always > ")

	line, err := p.in.ReadString('\n')
	if err != nil {
		return approval.DecisionDeny, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return approval.DecisionApprove, nil
	case "a", "all":
		return approval.DecisionApproveSession, nil
	case "t", "tool":
		return approval.DecisionApproveTool, nil
	case "v", "view":
		if req.Content != "" {
			fmt.Fprintln(p.out, req.Content)
		} else {
			fmt.Fprintln(p.out, "(nothing to show)")
		}
		return approval.DecisionView, nil
	default:
		return approval.DecisionDeny, nil
	}
}

// textSink renders stream events as plain terminal lines. It is the
// CLI's stand-in for the full terminal UI the core is designed to drive.
type textSink struct {
	out io.Writer
}

// eventText pulls the conventional "message" field out of an
// informational event's payload, falling back to the raw JSON.
func eventText(data json.RawMessage) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return string(data)
}

func (s *textSink) OnStatus(data json.RawMessage)   { fmt.Fprintf(s.out, "· %s\n", eventText(data)) }
func (s *textSink) OnThinking(data json.RawMessage) { fmt.Fprintf(s.out, "… %s\n", eventText(data)) }
func (s *textSink) OnPlan(data json.RawMessage)     { fmt.Fprintf(s.out, "plan: %s\n", eventText(data)) }
func (s *textSink) OnContent(data json.RawMessage)  { fmt.Fprintln(s.out, eventText(data)) }

func (s *textSink) OnToolCall(call stream.ToolCallPayload) {
	fmt.Fprintf(s.out, "→ %s %s\n", call.Tool, call.Description)
}

func (s *textSink) OnToolDone(data json.RawMessage) {
	fmt.Fprintf(s.out, "✓ %s\n", eventText(data))
}

func (s *textSink) OnChange(change stream.ChangePayload) {
	fmt.Fprintf(s.out, "✎ %s %s\n", change.Type, change.Path)
}

func (s *textSink) OnComplete()  { fmt.Fprintln(s.out, "Task complete.") }
func (s *textSink) OnCancelled() { fmt.Fprintln(s.out, "Task cancelled.") }

func (s *textSink) OnError(err error) {
	fmt.Fprintln(s.out, tarangerr.FormatForUser(err))
}
