package stream

import (
	"bufio"
	"bytes"
	"strings"
)

// sseFrame is one decoded "event: ...\ndata: ...\n\n" block, following
// the wire format directly:
// https://html.spec.whatwg.org/multipage/server-sent-events.html#parsing-an-event-stream
type sseFrame struct {
	event string
	data  []byte
}

// readSSEFrame reads lines from r until a dispatch point: a blank line
// terminating a field-bearing block, or EOF with buffered fields. Lines
// beginning with ":" are comments (used by servers as keep-alives) and
// are ignored. Multiple "data:" lines within one frame are joined with
// "\n", the standard SSE multi-line data rule.
func readSSEFrame(r *bufio.Reader) (*sseFrame, error) {
	var event string
	var data bytes.Buffer
	hasField := false

	for {
		line, err := r.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")

		if trimmed == "" {
			if hasField {
				return &sseFrame{event: event, data: data.Bytes()}, nil
			}
			if err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, ":"):
			// comment/keep-alive, ignore
		case strings.HasPrefix(trimmed, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(trimmed, "event:"))
			hasField = true
		case strings.HasPrefix(trimmed, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(trimmed, "data:"), " "))
			hasField = true
		}

		if err != nil {
			if hasField {
				return &sseFrame{event: event, data: data.Bytes()}, nil
			}
			return nil, err
		}
	}
}
