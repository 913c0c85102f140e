package toolexec

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/tarang-dev/tarang/internal/tarangerr"
)

// Shell runs args.Command via the system shell under a resolved working
// directory (sandbox applies to Cwd), truncating stdout/stderr to the
// 5 KiB / 2 KiB caps. A timeout returns exit_code=-1 with a
// Timeout error rather than a zero-value success result.
func (e *Executor) Shell(ctx context.Context, args ShellArgs) (*ShellResult, error) {
	cwd := args.Cwd
	if cwd == "" {
		cwd = "."
	}
	absCwd, err := resolvePath(e.root, cwd)
	if err != nil {
		return nil, err
	}

	timeout := defaultShellTimeout
	if args.Timeout > 0 {
		timeout = time.Duration(args.Timeout) * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", args.Command)
	cmd.Dir = absCwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		return &ShellResult{ExitCode: -1, Stdout: truncate(stdout.Bytes(), stdoutTruncateBytes), Stderr: truncate(stderr.Bytes(), stderrTruncateBytes)},
			tarangerr.TimeoutError("shell command timed out")
	}

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, tarangerr.Wrap(tarangerr.ErrUnreadable, runErr)
		}
	}

	return &ShellResult{
		ExitCode: exitCode,
		Stdout:   truncate(stdout.Bytes(), stdoutTruncateBytes),
		Stderr:   truncate(stderr.Bytes(), stderrTruncateBytes),
	}, nil
}

func truncate(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max])
}
