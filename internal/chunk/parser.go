package chunk

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Parser wraps tree-sitter for AST parsing. Each Chunker owns one Parser
// instance constructed for the duration of a single indexing run - no
// process-wide parser cache is kept, so concurrent indexing runs never
// contend on a shared *sitter.Parser.
type Parser struct {
	parser   *sitter.Parser
	registry *LanguageRegistry
}

// NewParser creates a new parser bound to the default language registry.
func NewParser() *Parser {
	return NewParserWithRegistry(DefaultRegistry())
}

// NewParserWithRegistry creates a new parser bound to a custom registry.
func NewParserWithRegistry(registry *LanguageRegistry) *Parser {
	return &Parser{
		parser:   sitter.NewParser(),
		registry: registry,
	}
}

// Parse parses source code and returns the AST. It returns an error when
// the language has no registered grammar;
// callers are expected to degrade to the module fallback chunker in that
// case, not surface this to the user.
func (p *Parser) Parse(ctx context.Context, source []byte, language string) (*Tree, error) {
	tsLang, ok := p.registry.GetTreeSitterLanguage(language)
	if !ok {
		return nil, fmt.Errorf("chunk: no parser registered for language %q", language)
	}

	p.parser.SetLanguage(tsLang)

	tsTree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("chunk: failed to parse source: %w", err)
	}
	if tsTree == nil {
		return nil, fmt.Errorf("chunk: parser returned nil tree")
	}

	return &Tree{
		Root:     &sitterNode{n: tsTree.RootNode()},
		Source:   source,
		Language: language,
	}, nil
}

// Close releases parser resources.
func (p *Parser) Close() {
	if p.parser != nil {
		p.parser.Close()
	}
}

// sitterNode adapts *sitter.Node to the TreeNode interface so extraction
// code never imports the tree-sitter package directly.
type sitterNode struct {
	n *sitter.Node
}

func (s *sitterNode) Kind() string {
	if s.n == nil {
		return ""
	}
	return s.n.Type()
}

func (s *sitterNode) Field(name string) TreeNode {
	if s.n == nil {
		return nil
	}
	child := s.n.ChildByFieldName(name)
	if child == nil {
		return nil
	}
	return &sitterNode{n: child}
}

func (s *sitterNode) Children() []TreeNode {
	if s.n == nil {
		return nil
	}
	count := int(s.n.ChildCount())
	out := make([]TreeNode, 0, count)
	for i := 0; i < count; i++ {
		child := s.n.Child(i)
		if child != nil {
			out = append(out, &sitterNode{n: child})
		}
	}
	return out
}

func (s *sitterNode) ByteRange() (uint32, uint32) {
	if s.n == nil {
		return 0, 0
	}
	return s.n.StartByte(), s.n.EndByte()
}

func (s *sitterNode) StartLine() int {
	if s.n == nil {
		return 0
	}
	return int(s.n.StartPoint().Row) + 1
}

func (s *sitterNode) EndLine() int {
	if s.n == nil {
		return 0
	}
	return int(s.n.EndPoint().Row) + 1
}

func (s *sitterNode) Content(source []byte) string {
	start, end := s.ByteRange()
	if start >= end || int(end) > len(source) {
		return ""
	}
	return string(source[start:end])
}

// Walk traverses the tree depth-first, calling fn for every node. Walking
// stops descending into a subtree when fn returns false for its root.
func Walk(n TreeNode, fn func(TreeNode) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, child := range n.Children() {
		Walk(child, fn)
	}
}

// FindChildByKind returns the first direct child with the given kind.
func FindChildByKind(n TreeNode, kind string) TreeNode {
	for _, child := range n.Children() {
		if child.Kind() == kind {
			return child
		}
	}
	return nil
}

// FindChildrenByKind returns all direct children with the given kind.
func FindChildrenByKind(n TreeNode, kind string) []TreeNode {
	var out []TreeNode
	for _, child := range n.Children() {
		if child.Kind() == kind {
			out = append(out, child)
		}
	}
	return out
}

// FindAllByKind recursively collects every node (including n) with the given kind.
func FindAllByKind(n TreeNode, kind string) []TreeNode {
	var out []TreeNode
	Walk(n, func(node TreeNode) bool {
		if node.Kind() == kind {
			out = append(out, node)
		}
		return true
	})
	return out
}
