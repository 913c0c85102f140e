// Package stream implements the Stream Client & Callback Protocol:
// consume an SSE event stream from a remote reasoning service,
// execute tool calls locally through the Tool Executor, and return
// results via an HTTP callback, driving an injected Sink that stands in
// for the terminal UI, which the core only drives, never renders.
package stream

import (
	"encoding/json"
)

// EventType names one SSE event frame's type field.
type EventType string

const (
	EventStatus      EventType = "status"
	EventThinking    EventType = "thinking"
	EventPlan        EventType = "plan"
	EventContent     EventType = "content"
	EventToolCall    EventType = "tool_call"
	EventToolRequest EventType = "tool_request" // alias of tool_call
	EventToolDone    EventType = "tool_done"
	EventChange      EventType = "change"
	EventComplete    EventType = "complete"
	EventCancelled   EventType = "cancelled"
	EventError       EventType = "error"
)

// terminalEvents closes the stream once received.
var terminalEvents = map[EventType]bool{
	EventComplete:  true,
	EventCancelled: true,
	EventError:     true,
}

// Event is one parsed SSE frame.
type Event struct {
	Type EventType
	Data json.RawMessage
}

// ToolCallPayload is the tool_call/tool_request event's data.
type ToolCallPayload struct {
	CallID          string         `json:"call_id"`
	Tool            string         `json:"tool"`
	Args            map[string]any `json:"args"`
	RequireApproval bool           `json:"require_approval"`
	Description     string         `json:"description"`
}

// ChangeType distinguishes the two change-event directives.
type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeEdit   ChangeType = "edit"
)

// ChangePayload is the change event's data: a file-change directive
// applied via the corresponding tool.
type ChangePayload struct {
	Type    ChangeType `json:"type"`
	Path    string     `json:"path"`
	Content string     `json:"content,omitempty"`
	Search  string     `json:"search,omitempty"`
	Replace string     `json:"replace,omitempty"`
}

// ErrorPayload is the error event's data.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// CallbackBody is the upstream POST body for a tool result.
type CallbackBody struct {
	TaskID string `json:"task_id"`
	CallID string `json:"call_id"`
	Result any    `json:"result"`
}

// Sink is the small event interface the terminal UI (or any other
// passive observer) implements to watch a task without driving it (a
// passive event sink the core drives). Every method is best-
// effort observation; the stream loop's own control flow never depends
// on a Sink call succeeding.
type Sink interface {
	OnStatus(data json.RawMessage)
	OnThinking(data json.RawMessage)
	OnPlan(data json.RawMessage)
	OnContent(data json.RawMessage)
	OnToolCall(call ToolCallPayload)
	OnToolDone(data json.RawMessage)
	OnChange(change ChangePayload)
	OnComplete()
	OnCancelled()
	OnError(err error)
}

// NopSink implements Sink with no-ops, for callers that don't need a UI.
type NopSink struct{}

func (NopSink) OnStatus(json.RawMessage)   {}
func (NopSink) OnThinking(json.RawMessage) {}
func (NopSink) OnPlan(json.RawMessage)     {}
func (NopSink) OnContent(json.RawMessage)  {}
func (NopSink) OnToolCall(ToolCallPayload) {}
func (NopSink) OnToolDone(json.RawMessage) {}
func (NopSink) OnChange(ChangePayload)     {}
func (NopSink) OnComplete()                {}
func (NopSink) OnCancelled()               {}
func (NopSink) OnError(error)              {}
