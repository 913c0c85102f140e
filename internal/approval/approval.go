// Package approval implements the Tool Executor's human-approval policy
//: single-call Yes/No/View, session-wide "approve all", and
// per-tool "approve all of this kind", sitting in front of every tool
// call whose require_approval flag is set. The terminal UI that actually
// renders a prompt is an external collaborator; this package
// only decides, via an injected Prompter, and tracks the session/per-tool
// grants the decision implies.
package approval

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// Decision is the outcome of one approval prompt.
type Decision int

const (
	// DecisionView re-shows the call's content/description, then must be
	// followed by another Decide call for the same request.
	DecisionView Decision = iota
	DecisionApprove
	DecisionDeny
	// DecisionApproveSession grants every subsequent call, of any tool,
	// for the remainder of the session.
	DecisionApproveSession
	// DecisionApproveTool grants every subsequent call of this one tool
	// name for the remainder of the session.
	DecisionApproveTool
)

// Request describes one tool call awaiting an approval decision.
type Request struct {
	CallID      string
	Tool        string
	Description string
	// Content is shown to the user on a View decision: the command about
	// to run, the diff about to be written, etc. Left to the caller to
	// populate meaningfully per tool.
	Content string
}

// Prompter renders a Request to the user (terminal UI, CLI stdin, a
// scripted test double, …) and returns the user's raw choice. It is
// re-invoked after a DecisionView response with the same Request so the
// implementation can show Content and ask again.
type Prompter interface {
	Prompt(ctx context.Context, req Request) (Decision, error)
}

// Result is what Policy.Decide returns: whether the call may proceed,
// and - when it may not - the exact skip payload the callback expects.
type Result struct {
	Approved bool
	Skip     SkipPayload
}

// SkipPayload is the result shape a rejected call returns, verbatim per
// verbatim: `{skipped: true, message: "User rejected operation"}`.
type SkipPayload struct {
	Skipped bool   `json:"skipped"`
	Message string `json:"message"`
}

func deniedResult() Result {
	return Result{Approved: false, Skip: SkipPayload{Skipped: true, Message: "User rejected operation"}}
}

// Policy tracks standing grants (session-wide, per-tool) across calls
// within one streaming task and consults a Prompter for calls not
// already covered by a standing grant. Safe for concurrent use.
type Policy struct {
	mu            sync.Mutex
	prompter      Prompter
	sessionGrant  bool
	toolGrants    map[string]bool
	isInteractive func() bool
}

// New builds a Policy backed by prompter. When stdout is not a real
// terminal (isatty false), every call that requires approval and has no
// standing grant is denied rather than blocking on a prompt that would
// never be answered - a non-interactive run defaults to deny, never to
// silent approval.
func New(prompter Prompter) *Policy {
	return &Policy{
		prompter:      prompter,
		toolGrants:    make(map[string]bool),
		isInteractive: func() bool { return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) },
	}
}

// Decide resolves one approval request. If requireApproval is false, the
// call is approved with no prompt - the policy only gates calls the
// stream event itself flagged.
func (p *Policy) Decide(ctx context.Context, req Request, requireApproval bool) (Result, error) {
	if !requireApproval {
		return Result{Approved: true}, nil
	}

	p.mu.Lock()
	if p.sessionGrant || p.toolGrants[req.Tool] {
		p.mu.Unlock()
		return Result{Approved: true}, nil
	}
	p.mu.Unlock()

	if !p.isInteractive() {
		return deniedResult(), nil
	}

	for {
		decision, err := p.prompter.Prompt(ctx, req)
		if err != nil {
			return Result{}, fmt.Errorf("approval: prompt failed: %w", err)
		}
		switch decision {
		case DecisionApprove:
			return Result{Approved: true}, nil
		case DecisionDeny:
			return deniedResult(), nil
		case DecisionApproveSession:
			p.mu.Lock()
			p.sessionGrant = true
			p.mu.Unlock()
			return Result{Approved: true}, nil
		case DecisionApproveTool:
			p.mu.Lock()
			p.toolGrants[req.Tool] = true
			p.mu.Unlock()
			return Result{Approved: true}, nil
		case DecisionView:
			// Loop: re-prompt with the same request after the UI has
			// shown req.Content.
			continue
		default:
			return deniedResult(), nil
		}
	}
}

// Reset clears every standing grant, e.g. at the start of a new task.
func (p *Policy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessionGrant = false
	p.toolGrants = make(map[string]bool)
}
