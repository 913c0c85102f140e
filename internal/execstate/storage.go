package execstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/tarang-dev/tarang/internal/tarangerr"
)

// fileName is the execution-state document name under <project>/.tarang/.
const fileName = "state.json"

const lockTimeout = 5 * time.Second
const lockRetryDelay = 50 * time.Millisecond

// Path returns the state.json path for a project root.
func Path(projectDir string) string {
	return filepath.Join(projectDir, ".tarang", fileName)
}

// Save checkpoints the state to <project>/.tarang/state.json, updating
// LastCheckpointAt and LastActivityAt first. Writes are atomic (temp
// file + rename) and single-writer, guarded by a file lock so a
// concurrent run never tears a reader's view of the document.
func (s *ExecutionState) Save(projectDir string) error {
	now := time.Now()
	s.LastCheckpointAt = now
	s.LastActivityAt = now

	path := Path(projectDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := tryLock(lock)
	if err != nil {
		return fmt.Errorf("lock state file: %w", err)
	}
	if !locked {
		return fmt.Errorf("timed out acquiring state file lock")
	}
	defer func() { _ = lock.Unlock() }()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal execution state: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename state file: %w", err)
	}

	return nil
}

// Load reads the execution state for a project. It is tolerant of
// unknown fields (encoding/json silently ignores fields it doesn't
// recognize) for forward-compatibility across schema revisions that
// only add fields. A version mismatch is treated as absent: the
// caller sees tarangerr.StateVersionMismatch and is expected to start
// fresh with CreateState.
func Load(projectDir string) (*ExecutionState, error) {
	path := Path(projectDir)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var s ExecutionState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}

	if s.Version != schemaVersion {
		return nil, tarangerr.StateVersionMismatch(path, s.Version, schemaVersion)
	}

	return &s, nil
}

// Exists reports whether a state document is present for the project.
func Exists(projectDir string) bool {
	_, err := os.Stat(Path(projectDir))
	return err == nil
}

// tryLock polls for the file lock up to lockTimeout, matching the
// retry/timeout shape the indexer uses for its own single-writer hold.
func tryLock(lock *flock.Flock) (bool, error) {
	deadline := time.Now().Add(lockTimeout)
	for {
		locked, err := lock.TryLock()
		if err != nil {
			return false, err
		}
		if locked {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		time.Sleep(lockRetryDelay)
	}
}
