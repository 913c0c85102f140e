package chunk

import (
	"context"
	"strings"
)

// sqlChunker implements Chunker for SQL DDL via the tree-sitter sql grammar.
// It falls back to the module chunk when no CREATE-shaped node is found.
type sqlChunker struct {
	parser   *Parser
	fallback *moduleFallbackChunker
}

func newSQLChunker(parser *Parser) *sqlChunker {
	return &sqlChunker{parser: parser, fallback: newModuleFallbackChunker()}
}

func (c *sqlChunker) SupportedExtensions() []string {
	return []string{".sql"}
}

func (c *sqlChunker) Chunk(ctx context.Context, file *FileInput) (*Result, error) {
	tree, err := c.parser.Parse(ctx, file.Content, "sql")
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, stmt := range findCreateStatements(tree.Root) {
		chunk, sym := c.extractCreate(file, tree.Source, stmt)
		if chunk == nil {
			continue
		}
		result.Chunks = append(result.Chunks, chunk)
		result.Symbols = append(result.Symbols, sym)
	}

	if len(result.Chunks) == 0 {
		return c.fallback.Chunk(ctx, file)
	}
	return result, nil
}

// findCreateStatements returns every statement-level node whose kind
// signals a CREATE TABLE/VIEW/FUNCTION/PROCEDURE/INDEX/TRIGGER.
func findCreateStatements(root TreeNode) []TreeNode {
	var stmts []TreeNode
	for _, child := range root.Children() {
		if sqlCreateKind(child.Kind()) != "" {
			stmts = append(stmts, child)
			continue
		}
		for _, inner := range child.Children() {
			if sqlCreateKind(inner.Kind()) != "" {
				stmts = append(stmts, inner)
			}
		}
	}
	return stmts
}

func sqlCreateKind(kind string) Type {
	lower := strings.ToLower(kind)
	switch {
	case strings.Contains(lower, "create_table"):
		return TypeTable
	case strings.Contains(lower, "create_view"):
		return TypeView
	case strings.Contains(lower, "create_trigger"):
		return TypeTrigger
	case strings.Contains(lower, "create_index"):
		return TypeIndex
	case strings.Contains(lower, "create_function"), strings.Contains(lower, "create_procedure"):
		return TypeFunctionSQL
	default:
		return ""
	}
}

func (c *sqlChunker) extractCreate(file *FileInput, source []byte, n TreeNode) (*Chunk, *SymbolInfo) {
	typ := sqlCreateKind(n.Kind())
	if typ == "" {
		return nil, nil
	}

	name := sqlObjectName(n, source)
	content, start, end := lineSlice(source, n)

	var signature string
	var refs []string
	if typ == TypeTable {
		signature = sqlColumnSignature(n, source)
	} else {
		signature = strings.TrimSpace(headerLine(source, n))
		refs = sqlReferencedTables(n, source, name)
	}

	tokens := tokensFor(name, content)
	chunk := NewChunk(file.Path, name, typ, name, signature, content, start, end, tokens, "")

	sym := &SymbolInfo{
		ID:        chunk.ID,
		Name:      name,
		Type:      typ,
		File:      file.Path,
		Line:      start,
		Signature: signature,
		Imports:   refs,
	}
	return chunk, sym
}

func sqlObjectName(n TreeNode, source []byte) string {
	for _, kind := range []string{"name", "object_reference", "identifier"} {
		if f := n.Field(kind); f != nil {
			return strings.TrimSpace(f.Content(source))
		}
	}
	for _, child := range n.Children() {
		if child.Kind() == "object_reference" || child.Kind() == "identifier" {
			return strings.TrimSpace(child.Content(source))
		}
	}
	return ""
}

// sqlColumnSignature lists up to five column names, followed by "..." if more.
func sqlColumnSignature(n TreeNode, source []byte) string {
	var columns []string
	for _, def := range FindAllByKind(n, "column_definition") {
		if nameNode := def.Field("name"); nameNode != nil {
			columns = append(columns, nameNode.Content(source))
		} else if children := def.Children(); len(children) > 0 {
			columns = append(columns, children[0].Content(source))
		}
	}

	if len(columns) == 0 {
		return ""
	}
	if len(columns) > 5 {
		return strings.Join(columns[:5], ", ") + ", ..."
	}
	return strings.Join(columns, ", ")
}

// sqlReferencedTables walks the subtree collecting object/table reference
// names, excluding the object's own name.
func sqlReferencedTables(n TreeNode, source []byte, ownName string) []string {
	seen := map[string]bool{ownName: true}
	var refs []string
	for _, kind := range []string{"object_reference", "table_reference", "relation"} {
		for _, ref := range FindAllByKind(n, kind) {
			name := strings.TrimSpace(ref.Content(source))
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			refs = append(refs, name)
		}
	}
	return refs
}
