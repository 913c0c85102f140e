package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tarang-dev/tarang/internal/execstate"
	"github.com/tarang-dev/tarang/internal/tarangerr"
	"github.com/tarang-dev/tarang/internal/toolexec"
)

// callbackErrExcerptBytes caps how much of a rejecting callback/execute
// response body is read into a ProtocolError's message.
const callbackErrExcerptBytes = 2048

// Options configures a Client. Executor and Sink may be nil; a nil
// Executor makes any tool_call event an unrecoverable protocol error, a
// nil Sink is replaced by NopSink.
type Options struct {
	BaseURL       string
	AuthToken     string
	OpenRouterKey string
	HTTPClient    *http.Client
	Executor      *toolexec.Executor
	Sink          Sink
	State         *execstate.ExecutionState
	Logger        *slog.Logger
}

// Client drives one streaming task end to end: it opens the
// SSE connection, dispatches each event to the Sink, executes tool_call
// events through the Tool Executor, posts their results back via the
// callback endpoint before continuing, and applies change events to the
// working tree. Deadlines ride on the request context; calls return
// result-shaped values rather than raising.
type Client struct {
	baseURL       string
	authToken     string
	openRouterKey string
	httpClient    *http.Client
	executor      *toolexec.Executor
	sink          Sink
	state         *execstate.ExecutionState
	logger        *slog.Logger

	// breaker guards reachability of the remote endpoint: repeated
	// transport failures open it, and an open circuit fails a new task
	// immediately instead of hanging on a full network timeout.
	breaker *tarangerr.CircuitBreaker

	// callbackRetry bounds the retry loop around each callback POST.
	callbackRetry tarangerr.RetryConfig
}

// New builds a Client. A zero-value HTTPClient option gets a plain
// &http.Client{} - the caller is responsible for any timeout, since the
// execute request's body is a long-lived stream that must not be cut by
// a blanket client-level deadline.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	sink := opts.Sink
	if sink == nil {
		sink = NopSink{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		authToken:     opts.AuthToken,
		openRouterKey: opts.OpenRouterKey,
		httpClient:    httpClient,
		executor:      opts.Executor,
		sink:          sink,
		state:         opts.State,
		logger:        logger,
		breaker:       tarangerr.NewCircuitBreaker("stream-endpoint", tarangerr.WithMaxFailures(3)),
		callbackRetry: tarangerr.RetryConfig{
			MaxRetries:   2,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
		},
	}
}

type executeRequestBody struct {
	TaskID      string `json:"task_id"`
	Instruction string `json:"instruction"`
	Context     string `json:"context,omitempty"`
}

// RunTask opens a stream against <base>/v3/execute for instruction
// (optionally primed with continuity context) and consumes it to
// completion, cancellation, or error. It returns the task ID the call
// was made under, so the caller can later Cancel it.
func (c *Client) RunTask(ctx context.Context, instruction, continuityContext string) (string, error) {
	taskID := uuid.NewString()
	if c.state != nil && c.state.JobID != "" {
		taskID = c.state.JobID
	}

	if !c.breaker.Allow() {
		err := tarangerr.CircuitOpen(c.breaker.Name())
		c.sink.OnError(err)
		return taskID, err
	}

	body, err := json.Marshal(executeRequestBody{TaskID: taskID, Instruction: instruction, Context: continuityContext})
	if err != nil {
		return taskID, tarangerr.Wrap(tarangerr.ErrProtocol, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/execute", bytes.NewReader(body))
	if err != nil {
		return taskID, tarangerr.Wrap(tarangerr.ErrNetwork, err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		if c.state != nil {
			c.state.MarkPaused()
		}
		netErr := tarangerr.NetworkError("failed to open task stream", err)
		c.sink.OnError(netErr)
		return taskID, netErr
	}
	defer func() { _ = resp.Body.Close() }()
	// Any HTTP response means the endpoint is reachable; a 401 or 500 is
	// the server answering, not the kind of failure the breaker counts.
	c.breaker.RecordSuccess()

	if resp.StatusCode == http.StatusUnauthorized {
		authErr := tarangerr.AuthError("stream endpoint rejected credentials", nil)
		c.sink.OnError(authErr)
		return taskID, authErr
	}
	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, callbackErrExcerptBytes))
		protoErr := tarangerr.ProtocolError(fmt.Sprintf("execute returned status %d: %s", resp.StatusCode, excerpt), nil)
		c.sink.OnError(protoErr)
		return taskID, protoErr
	}

	return taskID, c.consume(ctx, taskID, resp.Body)
}

// consume reads and dispatches SSE frames one at a time until a
// terminal event, a disconnect, or a malformed frame ends the task.
// Reading and handling happen on the same goroutine, so a tool call's
// callback always posts before the next event is even read off the
// wire - results are always delivered in request order by construction.
func (c *Client) consume(ctx context.Context, taskID string, body io.Reader) error {
	r := bufio.NewReaderSize(body, 16*1024)
	for {
		frame, err := readSSEFrame(r)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if c.state != nil {
				c.state.MarkPaused()
			}
			netErr := tarangerr.NetworkError("stream disconnected before completion", err)
			c.sink.OnError(netErr)
			return netErr
		}
		if frame.event == "" {
			continue
		}

		done, handleErr := c.handleFrame(ctx, taskID, EventType(frame.event), frame.data)
		if handleErr != nil {
			return handleErr
		}
		if done {
			return nil
		}
	}
}

// handleFrame dispatches one decoded event by its type.
// It returns done=true once a terminal event type has been processed.
func (c *Client) handleFrame(ctx context.Context, taskID string, evType EventType, data json.RawMessage) (bool, error) {
	switch evType {
	case EventStatus:
		c.sink.OnStatus(data)
	case EventThinking:
		c.sink.OnThinking(data)
	case EventPlan:
		c.sink.OnPlan(data)
	case EventContent:
		c.sink.OnContent(data)

	case EventToolCall, EventToolRequest:
		var payload ToolCallPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return true, c.protocolFailure("malformed tool_call event", err)
		}
		c.sink.OnToolCall(payload)
		if err := c.runToolCall(ctx, taskID, payload); err != nil {
			return true, err
		}

	case EventToolDone:
		c.sink.OnToolDone(data)

	case EventChange:
		var change ChangePayload
		if err := json.Unmarshal(data, &change); err != nil {
			return true, c.protocolFailure("malformed change event", err)
		}
		c.applyChange(change)
		c.sink.OnChange(change)

	case EventComplete:
		if c.state != nil {
			c.state.MarkCompleted()
		}
		c.sink.OnComplete()
		return true, nil

	case EventCancelled:
		c.sink.OnCancelled()
		return true, tarangerr.Cancelled(taskID)

	case EventError:
		var payload ErrorPayload
		_ = json.Unmarshal(data, &payload)
		if c.state != nil {
			c.state.MarkFailed(payload.Message)
		}
		err := tarangerr.New(tarangerr.ErrProtocol, payload.Message, nil)
		c.sink.OnError(err)
		return true, err

	default:
		c.logger.Warn("unrecognized stream event type", slog.String("type", string(evType)))
	}

	return terminalEvents[evType], nil
}

func (c *Client) protocolFailure(message string, cause error) error {
	err := tarangerr.Wrap(tarangerr.ErrProtocol, cause)
	err.Message = message + ": " + cause.Error()
	c.sink.OnError(err)
	return err
}

// runToolCall executes payload through the Tool Executor and posts the
// result to the callback endpoint synchronously, before the caller
// reads the next frame. The tool-execution step itself never raises
// (failures fold into the posted result); only the callback POST's own
// transport failure can fail this call.
func (c *Client) runToolCall(ctx context.Context, taskID string, payload ToolCallPayload) error {
	if c.executor == nil {
		return c.protocolFailure("tool_call received with no tool executor configured", tarangerr.New(tarangerr.ErrProtocol, "no executor", nil))
	}

	result := c.executor.Execute(ctx, toolexec.Call{
		CallID:          payload.CallID,
		Tool:            payload.Tool,
		Args:            payload.Args,
		RequireApproval: payload.RequireApproval,
		Description:     payload.Description,
	})

	return c.postCallback(ctx, taskID, payload.CallID, resultPayload(result))
}

// resultPayload picks the one populated field of a toolexec.Result to
// send upstream: a skip payload, an error string, or the call's data.
func resultPayload(result *toolexec.Result) any {
	if result.Skipped != nil {
		return result.Skipped
	}
	if result.Error != "" {
		payload := map[string]any{"error": result.Error, "success": false}
		if result.Stagnation {
			payload["stagnation"] = true
		}
		return payload
	}
	return result.Data
}

// applyChange materializes a change event against the working tree via
// the same Tool Executor used for explicit tool calls, so the sandbox
// and stagnation/path-escape guards apply uniformly.
// A failed apply is logged, not raised - the upstream side has already
// committed to the change and has no callback channel for it.
func (c *Client) applyChange(change ChangePayload) {
	if c.executor == nil {
		return
	}
	var err error
	switch change.Type {
	case ChangeCreate:
		_, err = c.executor.WriteFile(toolexec.WriteFileArgs{FilePath: change.Path, Content: change.Content})
	case ChangeEdit:
		_, err = c.executor.EditFile(toolexec.EditFileArgs{FilePath: change.Path, Search: change.Search, Replace: change.Replace})
	default:
		return
	}
	if err != nil {
		c.logger.Warn("change application failed", slog.String("path", change.Path), slog.String("error", err.Error()))
	}
}

// postCallback sends one tool result to <base>/v3/callback. Transport
// failures are retried with bounded backoff - the remote task is wedged
// without this result, so a transient network blip shouldn't fail it -
// but a non-2xx response is the server answering and is not retried.
// Exhausting the retry budget is surfaced to the caller as fatal.
func (c *Client) postCallback(ctx context.Context, taskID, callID string, result any) error {
	body, err := json.Marshal(CallbackBody{TaskID: taskID, CallID: callID, Result: result})
	if err != nil {
		return tarangerr.Wrap(tarangerr.ErrProtocol, err)
	}

	err = tarangerr.Retry(ctx, c.callbackRetry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/callback", bytes.NewReader(body))
		if err != nil {
			return tarangerr.Wrap(tarangerr.ErrProtocol, err)
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.breaker.RecordFailure()
			c.logger.Warn("callback post attempt failed",
				slog.String("call_id", callID), slog.String("error", err.Error()))
			return tarangerr.NetworkError("callback post failed", err)
		}
		defer func() { _ = resp.Body.Close() }()
		c.breaker.RecordSuccess()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, callbackErrExcerptBytes))
			return tarangerr.ProtocolError(fmt.Sprintf("callback rejected with status %d: %s", resp.StatusCode, excerpt), nil)
		}
		return nil
	})
	if err != nil {
		c.sink.OnError(err)
		return err
	}
	return nil
}

// Cancel posts to <base>/v3/cancel/<task_id> on the user's behalf. It
// does not wait for the in-flight RunTask call to
// return - the server is expected to emit a cancelled event on that
// stream once any pending tool executions finish.
func (c *Client) Cancel(ctx context.Context, taskID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/cancel/"+taskID, nil)
	if err != nil {
		return tarangerr.Wrap(tarangerr.ErrNetwork, err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tarangerr.NetworkError("cancel request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusAccepted:
		return nil
	default:
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, callbackErrExcerptBytes))
		return tarangerr.ProtocolError(fmt.Sprintf("cancel rejected with status %d: %s", resp.StatusCode, excerpt), nil)
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.authToken)
	if c.openRouterKey != "" {
		req.Header.Set("X-OpenRouter-Key", c.openRouterKey)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tarang-Protocol-Version", "3.0")
}
