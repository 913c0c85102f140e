package chunk

import (
	"context"
	"strings"
)

// jsChunker implements Chunker for JavaScript, TypeScript, and TSX via the
// corresponding tree-sitter grammars.
type jsChunker struct {
	parser   *Parser
	language string // "javascript", "typescript", or "tsx"
	exts     []string
}

func newJSChunker(parser *Parser, language string, exts []string) *jsChunker {
	return &jsChunker{parser: parser, language: language, exts: exts}
}

func (c *jsChunker) SupportedExtensions() []string {
	return c.exts
}

func (c *jsChunker) Chunk(ctx context.Context, file *FileInput) (*Result, error) {
	tree, err := c.parser.Parse(ctx, file.Content, c.language)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	var moduleImports []string

	for _, child := range tree.Root.Children() {
		switch child.Kind() {
		case "function_declaration":
			chunk, sym := c.extractFunction(file, tree.Source, child, nodeFieldText(child, "name", tree.Source))
			result.Chunks = append(result.Chunks, chunk)
			result.Symbols = append(result.Symbols, sym)
		case "class_declaration":
			chunk, sym := c.extractClass(file, tree.Source, child)
			result.Chunks = append(result.Chunks, chunk)
			result.Symbols = append(result.Symbols, sym)
		case "lexical_declaration":
			for _, decl := range FindChildrenByKind(child, "variable_declarator") {
				value := decl.Field("value")
				if value == nil || value.Kind() != "arrow_function" {
					continue
				}
				name := nodeFieldText(decl, "name", tree.Source)
				chunk, sym := c.extractFunction(file, tree.Source, child, name)
				result.Chunks = append(result.Chunks, chunk)
				result.Symbols = append(result.Symbols, sym)
			}
		case "import_statement":
			moduleImports = append(moduleImports, extractJSImportNames(child, tree.Source)...)
		}
	}

	if len(moduleImports) > 0 {
		result.Symbols = append(result.Symbols, &SymbolInfo{
			ID:      file.Path + ":<module>",
			Name:    moduleStem(file.Path),
			Type:    TypeModule,
			File:    file.Path,
			Line:    1,
			Imports: moduleImports,
		})
	}

	return result, nil
}

func (c *jsChunker) extractFunction(file *FileInput, source []byte, n TreeNode, name string) (*Chunk, *SymbolInfo) {
	content, start, end := lineSlice(source, n)
	signature := braceSignature(source, n)
	calls := collectCalls(n, source, "call_expression", jsCalleeName)

	tokens := tokensFor(name, content)
	chunk := NewChunk(file.Path, name, TypeFunction, name, signature, content, start, end, tokens, "")

	sym := &SymbolInfo{
		ID:        chunk.ID,
		Name:      name,
		Type:      TypeFunction,
		File:      file.Path,
		Line:      start,
		Signature: signature,
		Calls:     calls,
	}
	return chunk, sym
}

func (c *jsChunker) extractClass(file *FileInput, source []byte, n TreeNode) (*Chunk, *SymbolInfo) {
	name := nodeFieldText(n, "name", source)
	content, start, end := lineSlice(source, n)
	signature := braceSignature(source, n)
	calls := collectCalls(n, source, "call_expression", jsCalleeName)

	var parentNames []string
	if heritage := n.Field("heritage"); heritage != nil {
		parentNames = append(parentNames, extractJSIdentifiers(heritage, source)...)
	} else {
		for _, child := range n.Children() {
			if child.Kind() == "class_heritage" {
				parentNames = append(parentNames, extractJSIdentifiers(child, source)...)
			}
		}
	}

	tokens := tokensFor(name, content)
	chunk := NewChunk(file.Path, name, TypeClass, name, signature, content, start, end, tokens, "")

	sym := &SymbolInfo{
		ID:        chunk.ID,
		Name:      name,
		Type:      TypeClass,
		File:      file.Path,
		Line:      start,
		Signature: signature,
		Calls:     calls,
		Imports:   parentNames,
	}
	return chunk, sym
}

// braceSignature returns the declaration header truncated before the
// opening "{" with a trailing "{" appended.
func braceSignature(source []byte, n TreeNode) string {
	full := n.Content(source)
	if i := strings.IndexByte(full, '{'); i >= 0 {
		header := strings.TrimSpace(full[:i])
		header = strings.Join(strings.Fields(header), " ")
		return header + " {"
	}
	return strings.TrimSpace(headerLine(source, n))
}

func jsCalleeName(call TreeNode, source []byte) string {
	fn := call.Field("function")
	if fn == nil {
		return ""
	}
	switch fn.Kind() {
	case "identifier":
		return fn.Content(source)
	case "member_expression":
		return lastDotSegment(fn.Content(source))
	default:
		return lastDotSegment(fn.Content(source))
	}
}

func extractJSIdentifiers(n TreeNode, source []byte) []string {
	var names []string
	Walk(n, func(node TreeNode) bool {
		if node.Kind() == "identifier" {
			names = append(names, node.Content(source))
			return false
		}
		return true
	})
	return names
}

func extractJSImportNames(n TreeNode, source []byte) []string {
	src := n.Field("source")
	if src == nil {
		return nil
	}
	return []string{strings.Trim(src.Content(source), `"'`)}
}
