package chunk

import (
	"context"
	"strings"
)

// moduleFallbackChunker emits a single type=module chunk covering the
// whole file, truncated to ModuleFallbackMaxLines with a trailing marker.
// It is used for any extension with no AST grammar, for AST-dispatched
// files whose parser is unavailable, and for SQL files with no
// CREATE-shaped statement.
type moduleFallbackChunker struct{}

func newModuleFallbackChunker() *moduleFallbackChunker {
	return &moduleFallbackChunker{}
}

func (c *moduleFallbackChunker) SupportedExtensions() []string {
	return nil
}

func (c *moduleFallbackChunker) Chunk(_ context.Context, file *FileInput) (*Result, error) {
	content := string(file.Content)
	lines := strings.Split(content, "\n")

	truncated := false
	if len(lines) > ModuleFallbackMaxLines {
		lines = lines[:ModuleFallbackMaxLines]
		truncated = true
	}

	body := strings.Join(lines, "\n")
	if truncated {
		body += "\n" + ModuleFallbackTruncationMarker
	}

	name := moduleStem(file.Path)
	tokens := tokensFor(name, body)
	chunk := NewChunk(file.Path, name, TypeModule, name, "", body, 1, len(lines), tokens, "")

	// The module symbol carries no calls or imports; it exists so the
	// graph has a node for every indexed file and a neighborhood
	// expansion from another file can surface it.
	sym := &SymbolInfo{
		ID:   chunk.ID,
		Name: name,
		Type: TypeModule,
		File: file.Path,
		Line: 1,
	}

	return &Result{
		Chunks:  []*Chunk{chunk},
		Symbols: []*SymbolInfo{sym},
	}, nil
}
