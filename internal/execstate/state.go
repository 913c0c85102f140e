// Package execstate persists the durable per-project execution record a
// streaming task resumes from across interruptions. A
// project has at most one ExecutionState, stored at
// <project>/.tarang/state.json.
package execstate

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a streaming task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// schemaVersion is the current on-disk schema version. Load rejects any
// document whose Version doesn't match with ErrStateVersionMismatch,
// treating it as absent so the caller starts fresh.
const schemaVersion = 1

// ExecutionState is the single persisted document describing one
// project's in-flight or most recent streaming task.
type ExecutionState struct {
	Version int `json:"version"`

	JobID       string `json:"job_id"`
	Instruction string `json:"instruction"`
	Status      Status `json:"status"`

	// Progress cursors identify the current position in a multi-step
	// plan as "<milestone_idx>:<phase_idx>:<task_idx>".
	MilestoneIdx int `json:"milestone_idx"`
	PhaseIdx     int `json:"phase_idx"`
	TaskIdx      int `json:"task_idx"`

	// RetryCounts tracks per-step retry attempts, keyed by
	// "<milestone_idx>:<phase_idx>:<task_idx>".
	RetryCounts map[string]int `json:"retry_counts"`

	StartedAt        time.Time `json:"started_at"`
	DeadlineAt       time.Time `json:"deadline_at"`
	LastCheckpointAt time.Time `json:"last_checkpoint_at"`
	LastActivityAt   time.Time `json:"last_activity_at"`

	// Continuity fields prime a follow-up instruction after a pause.
	TechStack            []string `json:"tech_stack"`
	ActiveFiles          []string `json:"active_files"`
	LastExplorerSummary  string   `json:"last_explorer_summary"`
	LastInstructionResult string  `json:"last_instruction_result"`

	// FailureReason is set by MarkFailed; empty otherwise.
	FailureReason string `json:"failure_reason,omitempty"`
}

// CreateState starts a new ExecutionState for instruction, with a
// deadline of startedAt + maxDuration.
func CreateState(instruction string, maxDuration time.Duration) *ExecutionState {
	now := time.Now()
	return &ExecutionState{
		Version:          schemaVersion,
		JobID:            uuid.NewString(),
		Instruction:      instruction,
		Status:           StatusPending,
		RetryCounts:      make(map[string]int),
		StartedAt:        now,
		DeadlineAt:       now.Add(maxDuration),
		LastCheckpointAt: now,
		LastActivityAt:   now,
	}
}

// IsExpired reports whether now is past the task deadline.
func (s *ExecutionState) IsExpired() bool {
	return time.Now().After(s.DeadlineAt)
}

// MarkCompleted transitions the state to completed and records activity.
func (s *ExecutionState) MarkCompleted() {
	s.Status = StatusCompleted
	s.LastActivityAt = time.Now()
}

// MarkFailed transitions the state to failed, recording reason.
func (s *ExecutionState) MarkFailed(reason string) {
	s.Status = StatusFailed
	s.FailureReason = reason
	s.LastActivityAt = time.Now()
}

// MarkPaused transitions the state to paused, e.g. on a network
// disconnect or a user-requested pause.
func (s *ExecutionState) MarkPaused() {
	s.Status = StatusPaused
	s.LastActivityAt = time.Now()
}

// CanResume reports whether a fresh stream may be started against this
// state: only a running or paused task has unfinished work.
func (s *ExecutionState) CanResume() bool {
	return s.Status == StatusRunning || s.Status == StatusPaused
}

// ShouldCheckpoint reports whether interval has elapsed since the last
// checkpoint write.
func (s *ExecutionState) ShouldCheckpoint(interval time.Duration) bool {
	return time.Since(s.LastCheckpointAt) >= interval
}

// IncrementRetry bumps the retry counter for key (conventionally
// "<milestone_idx>:<phase_idx>:<task_idx>") and returns the new count.
// Deciding whether the new count exceeds a retry policy is the
// caller's business; this only counts.
func (s *ExecutionState) IncrementRetry(key string) int {
	if s.RetryCounts == nil {
		s.RetryCounts = make(map[string]int)
	}
	s.RetryCounts[key]++
	return s.RetryCounts[key]
}

// RetryKey formats the canonical retry-accounting key for a progress
// cursor triple.
func RetryKey(milestoneIdx, phaseIdx, taskIdx int) string {
	return fmt.Sprintf("%d:%d:%d", milestoneIdx, phaseIdx, taskIdx)
}

// GetContinuityContext composes a human-readable summary used to prime
// a follow-up instruction, truncated to at most maxChars runes.
func (s *ExecutionState) GetContinuityContext(maxChars int) string {
	var b strings.Builder

	if len(s.TechStack) > 0 {
		fmt.Fprintf(&b, "Tech stack: %s\n", strings.Join(s.TechStack, ", "))
	}

	if len(s.ActiveFiles) > 0 {
		const shown = 10
		files := s.ActiveFiles
		suffix := ""
		if len(files) > shown {
			suffix = fmt.Sprintf(" (+%d more)", len(files)-shown)
			files = files[:shown]
		}
		fmt.Fprintf(&b, "Active files: %s%s\n", strings.Join(files, ", "), suffix)
	}

	if s.LastExplorerSummary != "" {
		fmt.Fprintf(&b, "Last exploration: %s\n", s.LastExplorerSummary)
	}

	if s.LastInstructionResult != "" {
		fmt.Fprintf(&b, "Last result: %s\n", s.LastInstructionResult)
	}

	out := b.String()
	if r := []rune(out); maxChars > 0 && len(r) > maxChars {
		out = string(r[:maxChars])
	}
	return out
}
