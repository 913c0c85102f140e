package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tarang-dev/tarang/internal/logging"
)

// logsOptions holds CLI flags for logs.
type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	noColor bool
	logFile string
	source  string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View engine and stream-client logs",
		Long: `View and tail tarang's JSON log files.

By default, shows the last 50 lines of the engine log. Use -f to follow
new entries in real time (like 'tail -f').

Log sources:
  tarang  - engine log (~/.tarang/logs/tarang.log)
  stream  - stream-client log (~/.tarang/logs/stream.log)
  all     - both, merged by timestamp

Examples:
  tarang logs                     # Last 50 lines of the engine log
  tarang logs --source stream     # Stream-client log
  tarang logs --source all -f     # Follow both, merged
  tarang logs -n 100              # Last 100 lines
  tarang logs --level error       # Errors only
  tarang logs --filter "bm25"     # Lines matching a pattern`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Filter by log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Filter by keyword/pattern (regex)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Path to log file (overrides --source)")
	cmd.Flags().StringVar(&opts.source, "source", "tarang", "Log source: tarang, stream, or all")

	return cmd
}

func runLogs(cmd *cobra.Command, opts logsOptions) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	paths, err := logging.LogPathsForSource(opts.source, opts.logFile)
	if err != nil {
		return err
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		pattern, err = regexp.Compile(opts.filter)
		if err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:      opts.level,
		Pattern:    pattern,
		NoColor:    opts.noColor,
		ShowSource: opts.source == "all" || len(paths) > 1,
	}, out)

	if len(paths) == 1 {
		fmt.Fprintf(errOut, "Log file: %s\n", paths[0])
	} else {
		fmt.Fprintf(errOut, "Log files: %s\n", strings.Join(paths, ", "))
	}
	if opts.follow {
		fmt.Fprintln(errOut, "Following... (Ctrl+C to stop)")
	}
	fmt.Fprintln(errOut, "---")

	if opts.follow {
		return followLogs(cmd.Context(), viewer, paths, out, errOut)
	}

	entries, err := viewer.Tail(paths, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)
	return nil
}

func followLogs(ctx context.Context, viewer *logging.Viewer, paths []string, out, errOut io.Writer) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entries := make(chan logging.LogEntry, 100)
	go func() {
		_ = viewer.Follow(ctx, paths, entries)
	}()

	for {
		select {
		case entry := <-entries:
			fmt.Fprintln(out, viewer.FormatEntry(entry))
		case <-ctx.Done():
			fmt.Fprintln(errOut, "\n---")
			fmt.Fprintln(errOut, "Stopped.")
			return nil
		}
	}
}
