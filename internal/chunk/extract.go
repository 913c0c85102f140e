package chunk

import (
	"strings"

	"github.com/tarang-dev/tarang/internal/tokenize"
)

// lineSlice returns the 1-indexed [start, end] line range a node spans
// within source, along with the exact source substring for that range.
func lineSlice(source []byte, n TreeNode) (content string, start, end int) {
	start, end = n.StartLine(), n.EndLine()
	lines := strings.Split(string(source), "\n")
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return "", start, end
	}
	return strings.Join(lines[start-1:end], "\n"), start, end
}

// headerLine returns the single source line a node's header starts on,
// used as the basis for a chunk's signature.
func headerLine(source []byte, n TreeNode) string {
	lines := strings.Split(string(source), "\n")
	line := n.StartLine()
	if line < 1 || line > len(lines) {
		return ""
	}
	return strings.TrimRight(lines[line-1], "\r")
}

// collectCalls walks n and returns the bare callee name of every call node
// whose kind matches callKind, keeping only the final segment of dotted
// callees ("obj.method()" → "method").
func collectCalls(n TreeNode, source []byte, callKind string, calleeOf func(call TreeNode, source []byte) string) []string {
	seen := make(map[string]bool)
	var calls []string
	Walk(n, func(node TreeNode) bool {
		if node.Kind() != callKind {
			return true
		}
		name := calleeOf(node, source)
		if name == "" || seen[name] {
			return true
		}
		seen[name] = true
		calls = append(calls, name)
		return true
	})
	return calls
}

// lastDotSegment returns the final dotted/attribute segment of a callee
// expression's raw text, e.g. "self.repo.save" → "save".
func lastDotSegment(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.LastIndexAny(text, ".:"); i >= 0 && i+1 < len(text) {
		return text[i+1:]
	}
	return text
}

func tokensFor(fields ...string) []string {
	return tokenize.Tokenize(strings.Join(fields, " "))
}
