package execstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateState_SetsDeadlineFromStartPlusDuration(t *testing.T) {
	s := CreateState("fix the failing test", time.Hour)

	require.NotEmpty(t, s.JobID)
	assert.Equal(t, "fix the failing test", s.Instruction)
	assert.Equal(t, StatusPending, s.Status)
	assert.WithinDuration(t, s.StartedAt.Add(time.Hour), s.DeadlineAt, time.Second)
}

func TestIsExpired(t *testing.T) {
	s := CreateState("x", time.Hour)
	assert.False(t, s.IsExpired())

	s.DeadlineAt = time.Now().Add(-time.Minute)
	assert.True(t, s.IsExpired())
}

func TestMarkTransitions(t *testing.T) {
	s := CreateState("x", time.Hour)

	s.MarkCompleted()
	assert.Equal(t, StatusCompleted, s.Status)
	assert.False(t, s.CanResume())

	s.Status = StatusRunning
	assert.True(t, s.CanResume())

	s.MarkPaused()
	assert.Equal(t, StatusPaused, s.Status)
	assert.True(t, s.CanResume())

	s.MarkFailed("network disconnect")
	assert.Equal(t, StatusFailed, s.Status)
	assert.Equal(t, "network disconnect", s.FailureReason)
	assert.False(t, s.CanResume())
}

func TestShouldCheckpoint(t *testing.T) {
	s := CreateState("x", time.Hour)
	s.LastCheckpointAt = time.Now().Add(-10 * time.Minute)

	assert.True(t, s.ShouldCheckpoint(5*time.Minute))
	assert.False(t, s.ShouldCheckpoint(time.Hour))
}

func TestIncrementRetry(t *testing.T) {
	s := CreateState("x", time.Hour)
	key := RetryKey(0, 1, 2)

	assert.Equal(t, 1, s.IncrementRetry(key))
	assert.Equal(t, 2, s.IncrementRetry(key))
	assert.Equal(t, 1, s.IncrementRetry(RetryKey(0, 1, 3)))
}

func TestGetContinuityContext(t *testing.T) {
	s := CreateState("x", time.Hour)
	s.TechStack = []string{"go", "react"}
	s.ActiveFiles = []string{"a.go", "b.go"}
	s.LastExplorerSummary = "found the handler in internal/api"
	s.LastInstructionResult = "added validation"

	ctx := s.GetContinuityContext(0)
	assert.Contains(t, ctx, "go, react")
	assert.Contains(t, ctx, "a.go, b.go")
	assert.Contains(t, ctx, "found the handler")
	assert.Contains(t, ctx, "added validation")
}

func TestGetContinuityContext_TruncatesActiveFilesList(t *testing.T) {
	s := CreateState("x", time.Hour)
	for i := 0; i < 15; i++ {
		s.ActiveFiles = append(s.ActiveFiles, "file.go")
	}

	ctx := s.GetContinuityContext(0)
	assert.Contains(t, ctx, "+5 more")
}

func TestGetContinuityContext_RespectsMaxChars(t *testing.T) {
	s := CreateState("x", time.Hour)
	s.LastInstructionResult = "a very long result that should be truncated by max chars"

	ctx := s.GetContinuityContext(10)
	assert.Len(t, ctx, 10)
}
