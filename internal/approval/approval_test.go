package approval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedPrompter struct {
	decisions []Decision
	calls     int
}

func (s *scriptedPrompter) Prompt(ctx context.Context, req Request) (Decision, error) {
	d := s.decisions[s.calls]
	s.calls++
	return d, nil
}

func forceInteractive(p *Policy) {
	p.isInteractive = func() bool { return true }
}

func TestDecide_NoApprovalRequiredSkipsPrompt(t *testing.T) {
	p := New(&scriptedPrompter{})
	result, err := p.Decide(context.Background(), Request{Tool: "read_file"}, false)
	require.NoError(t, err)
	assert.True(t, result.Approved)
}

func TestDecide_NonInteractiveDeniesByDefault(t *testing.T) {
	p := New(&scriptedPrompter{})
	p.isInteractive = func() bool { return false }

	result, err := p.Decide(context.Background(), Request{Tool: "write_file"}, true)
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.True(t, result.Skip.Skipped)
	assert.Equal(t, "User rejected operation", result.Skip.Message)
}

func TestDecide_SingleCallApprove(t *testing.T) {
	p := New(&scriptedPrompter{decisions: []Decision{DecisionApprove}})
	forceInteractive(p)

	result, err := p.Decide(context.Background(), Request{Tool: "edit_file"}, true)
	require.NoError(t, err)
	assert.True(t, result.Approved)
}

func TestDecide_SingleCallDeny(t *testing.T) {
	p := New(&scriptedPrompter{decisions: []Decision{DecisionDeny}})
	forceInteractive(p)

	result, err := p.Decide(context.Background(), Request{Tool: "delete_file"}, true)
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.True(t, result.Skip.Skipped)
}

func TestDecide_ViewThenApprove(t *testing.T) {
	p := New(&scriptedPrompter{decisions: []Decision{DecisionView, DecisionApprove}})
	forceInteractive(p)

	result, err := p.Decide(context.Background(), Request{Tool: "shell", Content: "rm -rf /tmp/x"}, true)
	require.NoError(t, err)
	assert.True(t, result.Approved)
}

func TestDecide_SessionGrantAppliesToAllTools(t *testing.T) {
	p := New(&scriptedPrompter{decisions: []Decision{DecisionApproveSession}})
	forceInteractive(p)

	result, err := p.Decide(context.Background(), Request{Tool: "edit_file"}, true)
	require.NoError(t, err)
	assert.True(t, result.Approved)

	// Second call, different tool, same policy instance: no further prompt needed.
	result2, err := p.Decide(context.Background(), Request{Tool: "delete_file"}, true)
	require.NoError(t, err)
	assert.True(t, result2.Approved)
}

func TestDecide_ToolGrantAppliesOnlyToThatTool(t *testing.T) {
	p := New(&scriptedPrompter{decisions: []Decision{DecisionApproveTool, DecisionDeny}})
	forceInteractive(p)

	result, err := p.Decide(context.Background(), Request{Tool: "edit_file"}, true)
	require.NoError(t, err)
	assert.True(t, result.Approved)

	// Second call, edit_file again: already granted, no prompt consumed.
	result2, err := p.Decide(context.Background(), Request{Tool: "edit_file"}, true)
	require.NoError(t, err)
	assert.True(t, result2.Approved)

	// A different tool still needs its own decision.
	result3, err := p.Decide(context.Background(), Request{Tool: "delete_file"}, true)
	require.NoError(t, err)
	assert.False(t, result3.Approved)
}

func TestReset_ClearsStandingGrants(t *testing.T) {
	p := New(&scriptedPrompter{decisions: []Decision{DecisionApproveSession, DecisionDeny}})
	forceInteractive(p)

	_, err := p.Decide(context.Background(), Request{Tool: "edit_file"}, true)
	require.NoError(t, err)

	p.Reset()

	result, err := p.Decide(context.Background(), Request{Tool: "edit_file"}, true)
	require.NoError(t, err)
	assert.False(t, result.Approved)
}
