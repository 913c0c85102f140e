package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.tarang/logs/).
// Falls back to temp directory if home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".tarang", "logs")
	}
	return filepath.Join(home, ".tarang", "logs")
}

// DefaultLogPath returns the default engine log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "tarang.log")
}

// StreamLogPath returns the stream client's log path. The stream client
// logs to its own file so a task's wire-level chatter can be tailed
// separately from (or merged with) the engine log.
func StreamLogPath() string {
	return filepath.Join(DefaultLogDir(), "stream.log")
}

// LogPathsForSource resolves a logs-command source selector ("tarang",
// "stream", or "all") to the log files that actually exist. An explicit
// path overrides the selector entirely.
func LogPathsForSource(source, explicit string) ([]string, error) {
	if explicit != "" {
		path, err := FindLogFile(explicit)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	var candidates []string
	switch source {
	case "", "tarang":
		candidates = []string{DefaultLogPath()}
	case "stream":
		candidates = []string{StreamLogPath()}
	case "all":
		candidates = []string{DefaultLogPath(), StreamLogPath()}
	default:
		return nil, fmt.Errorf("unknown log source %q (want tarang, stream, or all)", source)
	}

	var paths []string
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no log file found. Run a tarang command with --debug first.\nExpected under: %s", DefaultLogDir())
	}
	return paths, nil
}

// FindLogFile attempts to find the log file for viewing.
// Priority:
// 1. Explicit path (if provided)
// 2. ~/.tarang/logs/tarang.log (default)
//
// Returns an error if no log file is found.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	globalPath := DefaultLogPath()
	if _, err := os.Stat(globalPath); err == nil {
		return globalPath, nil
	}

	return "", fmt.Errorf("no log file found. Run a tarang command with --debug first.\nExpected at: %s", globalPath)
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	dir := DefaultLogDir()
	return os.MkdirAll(dir, 0o755)
}
