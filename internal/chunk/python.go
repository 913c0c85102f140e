package chunk

import (
	"context"
	"strings"
)

// pythonChunker implements Chunker for Python via the tree-sitter python grammar.
type pythonChunker struct {
	parser *Parser
}

func newPythonChunker(parser *Parser) *pythonChunker {
	return &pythonChunker{parser: parser}
}

func (c *pythonChunker) SupportedExtensions() []string {
	return []string{".py", ".pyw"}
}

func (c *pythonChunker) Chunk(ctx context.Context, file *FileInput) (*Result, error) {
	tree, err := c.parser.Parse(ctx, file.Content, "python")
	if err != nil {
		return nil, err
	}

	result := &Result{}
	var moduleImports []string

	for _, child := range tree.Root.Children() {
		switch child.Kind() {
		case "function_definition":
			chunk, sym := c.extractFunction(file, tree.Source, child, "")
			result.Chunks = append(result.Chunks, chunk)
			result.Symbols = append(result.Symbols, sym)
		case "class_definition":
			classChunk, classSym, methodChunks, methodSyms := c.extractClass(file, tree.Source, child)
			result.Chunks = append(result.Chunks, classChunk)
			result.Symbols = append(result.Symbols, classSym)
			result.Chunks = append(result.Chunks, methodChunks...)
			result.Symbols = append(result.Symbols, methodSyms...)
		case "import_statement", "import_from_statement":
			moduleImports = append(moduleImports, extractPythonImportNames(child, tree.Source)...)
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

func (c *pythonChunker) extractFunction(file *FileInput, source []byte, n TreeNode, parent string) (*Chunk, *SymbolInfo) {
	name := nodeFieldText(n, "name", source)
	content, start, end := lineSlice(source, n)
	signature := pythonSignature(source, n)
	calls := collectCalls(n, source, "call", pythonCalleeName)

	typ := TypeFunction
	qualifiedName := name
	if parent != "" {
		typ = TypeMethod
		qualifiedName = parent + "." + name
	}

	tokens := tokensFor(name, content)
	chunk := NewChunk(file.Path, qualifiedName, typ, name, signature, content, start, end, tokens, parent)

	sym := &SymbolInfo{
		ID:          chunk.ID,
		Name:        name,
		Type:        typ,
		File:        file.Path,
		Line:        start,
		Signature:   signature,
		Calls:       calls,
		ParentClass: parent,
	}
	return chunk, sym
}

// extractClass emits the class chunk (a summarized body: header, docstring,
// and each method's signature with an ellipsis placeholder) plus one method
// chunk per method in the class body.
func (c *pythonChunker) extractClass(file *FileInput, source []byte, n TreeNode) (*Chunk, *SymbolInfo, []*Chunk, []*SymbolInfo) {
	name := nodeFieldText(n, "name", source)
	_, start, end := lineSlice(source, n)
	signature := pythonSignature(source, n)

	body := n.Field("body")
	var methodChunks []*Chunk
	var methodSyms []*SymbolInfo
	var docstring string
	var summaryLines []string
	summaryLines = append(summaryLines, strings.TrimRight(headerLine(source, n), "\r"))

	if body != nil {
		children := body.Children()
		if len(children) > 0 {
			if ds := pythonDocstring(children[0], source); ds != "" {
				docstring = ds
				summaryLines = append(summaryLines, indentLine(ds))
			}
		}
		for _, child := range children {
			if child.Kind() != "function_definition" {
				continue
			}
			methodChunk, methodSym := c.extractFunction(file, source, child, name)
			methodChunks = append(methodChunks, methodChunk)
			methodSyms = append(methodSyms, methodSym)
			summaryLines = append(summaryLines, indentLine(methodSym.Signature), indentLine("..."))
		}
	}

	parentNames := pythonBaseClassNames(n, source)
	content := strings.Join(summaryLines, "\n")
	tokens := tokensFor(name, content, docstring)

	chunk := NewChunk(file.Path, name, TypeClass, name, signature, content, start, end, tokens, "")
	sym := &SymbolInfo{
		ID:        chunk.ID,
		Name:      name,
		Type:      TypeClass,
		File:      file.Path,
		Line:      start,
		Signature: signature,
		Imports:   parentNames,
	}

	return chunk, sym, methodChunks, methodSyms
}

func indentLine(s string) string {
	return "    " + s
}

// pythonSignature returns the definition header line(s) up to and
// including the trailing colon.
func pythonSignature(source []byte, n TreeNode) string {
	lines := strings.Split(string(source), "\n")
	start := n.StartLine()
	if start < 1 || start > len(lines) {
		return ""
	}
	if colon := FindChildByKind(n, ":"); colon != nil {
		s, _ := n.ByteRange()
		_, e := colon.ByteRange()
		if e > s && int(e) <= len(source) {
			return strings.Join(strings.Fields(string(source[s:e])), " ")
		}
	}

	var parts []string
	for i := start - 1; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")
		parts = append(parts, line)
		if strings.Contains(line, ":") {
			break
		}
		if i-start+1 > 20 { // pathological: bail rather than scan forever
			break
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// pythonDocstring returns the string literal verbatim when the first
// statement of a body is a bare string-literal expression statement.
func pythonDocstring(first TreeNode, source []byte) string {
	if first.Kind() != "expression_statement" {
		return ""
	}
	children := first.Children()
	if len(children) == 0 || children[0].Kind() != "string" {
		return ""
	}
	return children[0].Content(source)
}

func pythonBaseClassNames(classNode TreeNode, source []byte) []string {
	superclasses := classNode.Field("superclasses")
	if superclasses == nil {
		return nil
	}
	var names []string
	for _, child := range superclasses.Children() {
		if child.Kind() == "identifier" {
			names = append(names, child.Content(source))
		}
	}
	return names
}

func nodeFieldText(n TreeNode, field string, source []byte) string {
	f := n.Field(field)
	if f == nil {
		return ""
	}
	return f.Content(source)
}

func pythonCalleeName(call TreeNode, source []byte) string {
	fn := call.Field("function")
	if fn == nil {
		return ""
	}
	switch fn.Kind() {
	case "identifier":
		return fn.Content(source)
	case "attribute":
		return lastDotSegment(fn.Content(source))
	default:
		return lastDotSegment(fn.Content(source))
	}
}

func extractPythonImportNames(n TreeNode, source []byte) []string {
	var names []string
	Walk(n, func(node TreeNode) bool {
		if node.Kind() == "dotted_name" || node.Kind() == "identifier" {
			names = append(names, node.Content(source))
			return false
		}
		return true
	})
	return names
}

func moduleStem(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}
