// Package chunk implements language-aware AST partitioning of source files
// into semantic units (functions, classes, methods, SQL objects),
// backed by tree-sitter grammars with a plain-text module fallback.
package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Type identifies the kind of semantic unit a Chunk represents.
type Type string

const (
	TypeFunction    Type = "function"
	TypeMethod      Type = "method"
	TypeClass       Type = "class"
	TypeModule      Type = "module"
	TypeTable       Type = "table"
	TypeView        Type = "view"
	TypeProcedure   Type = "procedure"
	TypeFunctionSQL Type = "function-sql"
	TypeTrigger     Type = "trigger"
	TypeIndex       Type = "index"
)

// Chunk is a semantic code unit produced by the Chunker.
//
// ID is stable: "<rel_path>:<qualified_name>". Content is exactly the
// source substring spanning [LineStart, LineEnd] (1-indexed, inclusive).
// Hash is a 16-hex-char prefix of SHA-256(Content), used only for change
// detection, never for identity.
type Chunk struct {
	ID        string
	File      string
	Type      Type
	Name      string
	Signature string
	Content   string
	LineStart int
	LineEnd   int
	Tokens    []string
	Parent    string // owning class name; empty when not a method
	Hash      string
}

// NewChunk builds a Chunk, deriving ID and Hash from the given fields.
// tokens should already be normalized (see package tokenize).
func NewChunk(file, qualifiedName string, typ Type, name, signature, content string, lineStart, lineEnd int, tokens []string, parent string) *Chunk {
	return &Chunk{
		ID:        file + ":" + qualifiedName,
		File:      file,
		Type:      typ,
		Name:      name,
		Signature: signature,
		Content:   content,
		LineStart: lineStart,
		LineEnd:   lineEnd,
		Tokens:    tokens,
		Parent:    parent,
		Hash:      ContentHash(content),
	}
}

// ContentHash returns the 16-hex-char SHA-256 prefix used for change detection.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// SymbolInfo is the chunker's emission consumed by the symbol graph.
type SymbolInfo struct {
	ID          string
	Name        string
	Type        Type
	File        string
	Line        int
	Signature   string
	Calls       []string // bare callee names
	Imports     []string // module names, parent-class names, or table names (overloaded by Type)
	ParentClass string   // set for methods
}

// FileInput is the input to a Chunker.
type FileInput struct {
	Path     string // repo-relative path
	Content  []byte
	Language string
}

// Result is the (chunks, symbols) pair a Chunker produces for one file.
type Result struct {
	Chunks  []*Chunk
	Symbols []*SymbolInfo
}

// Chunker splits a file into semantic chunks and extracts symbol info.
type Chunker interface {
	Chunk(ctx context.Context, file *FileInput) (*Result, error)
	SupportedExtensions() []string
}

// MaxFileSize is the hard cutoff past which files are skipped entirely (100 KiB).
const MaxFileSize = 100 * 1024

// ModuleFallbackMaxLines is the line cap applied by the module fallback chunker.
const ModuleFallbackMaxLines = 200

// ModuleFallbackTruncationMarker is appended when a module-fallback chunk is truncated.
const ModuleFallbackTruncationMarker = "... (truncated)"

// TreeNode is a polymorphic AST node abstraction so the extraction logic
// never depends directly on a specific parser library's node type. Tag
// names returned by Kind are grammar-specific string constants, not an
// enumerated Go type, since the tag set varies per language grammar.
type TreeNode interface {
	Kind() string
	Field(name string) TreeNode
	Children() []TreeNode
	ByteRange() (start, end uint32)
	StartLine() int // 1-indexed
	EndLine() int    // 1-indexed, inclusive
	Content(source []byte) string
}

// Tree is a parsed AST plus the source it was parsed from.
type Tree struct {
	Root     TreeNode
	Source   []byte
	Language string
}

// LanguageConfig names a language dispatched via the tree-sitter path and
// the file extensions routed to it.
type LanguageConfig struct {
	Name       string
	Extensions []string
}
