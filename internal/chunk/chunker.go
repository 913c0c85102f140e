package chunk

import (
	"context"
	"path/filepath"
	"strings"
)

// Service is the top-level Chunker: it dispatches a file to the
// appropriate language chunker by extension, enforces the size cutoff,
// and degrades to the module fallback chunker when no AST grammar is
// registered for the extension or parsing fails.
type Service struct {
	parser   *Parser
	registry *LanguageRegistry
	fallback *moduleFallbackChunker

	python *pythonChunker
	js     *jsChunker
	ts     *jsChunker
	tsx    *jsChunker
	sql    *sqlChunker
}

// NewService constructs a Chunker bound to its own Parser/registry. One
// Service should be constructed per indexing run; it holds no global state.
func NewService() *Service {
	registry := NewLanguageRegistry()
	parser := NewParserWithRegistry(registry)

	return &Service{
		parser:   parser,
		registry: registry,
		fallback: newModuleFallbackChunker(),
		python:   newPythonChunker(parser),
		js:       newJSChunker(parser, "javascript", []string{".js", ".jsx", ".mjs", ".cjs"}),
		ts:       newJSChunker(parser, "typescript", []string{".ts"}),
		tsx:      newJSChunker(parser, "tsx", []string{".tsx"}),
		sql:      newSQLChunker(parser),
	}
}

// Close releases the underlying tree-sitter parser.
func (s *Service) Close() {
	s.parser.Close()
}

// Chunk dispatches file to the language-appropriate chunker. Files over
// MaxFileSize are skipped (empty result, no error); an empty content
// slice also yields an empty result, so callers can pass along a failed
// read as a zero-length FileInput.
func (s *Service) Chunk(ctx context.Context, file *FileInput) (*Result, error) {
	if len(file.Content) == 0 {
		return &Result{}, nil
	}
	if len(file.Content) > MaxFileSize {
		return &Result{}, nil
	}

	chunker := s.chunkerFor(file.Path)
	result, err := chunker.Chunk(ctx, file)
	if err != nil {
		// Parser unavailable or parse failure: degrade to module fallback
		// rather than surfacing an error to the caller.
		return s.fallback.Chunk(ctx, file)
	}
	return result, nil
}

// SupportedExtensions lists the extensions of the AST-dispatched
// languages; files handled by the module fallback are not listed.
func (s *Service) SupportedExtensions() []string {
	return s.registry.SupportedExtensions()
}

func (s *Service) chunkerFor(path string) Chunker {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".py", ".pyw":
		return s.python
	case ".js", ".jsx", ".mjs", ".cjs":
		return s.js
	case ".ts":
		return s.ts
	case ".tsx":
		return s.tsx
	case ".sql":
		return s.sql
	default:
		return s.fallback
	}
}
