package chunk

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/sql"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageRegistry maps file extensions to tree-sitter grammars for the
// languages the chunker AST-dispatches: Python, JavaScript/TypeScript, and
// SQL. Every other extension, including Go itself, falls through to the
// module fallback chunker - the AST path is reserved for the languages the
// reference behavior actually depends on for chunk boundaries.
type LanguageRegistry struct {
	mu          sync.RWMutex
	configs     map[string]*LanguageConfig
	extToLang   map[string]string
	tsLanguages map[string]*sitter.Language
}

// NewLanguageRegistry builds a registry with every AST-dispatched language
// registered. Registration happens unconditionally at construction time,
// but GetTreeSitterLanguage's (lang, false) return is the seam a build
// that omits a grammar would use to fall back gracefully to module mode.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		configs:     make(map[string]*LanguageConfig),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}

	r.registerPython()
	r.registerJavaScript()
	r.registerTypeScript()
	r.registerSQL()

	return r
}

func (r *LanguageRegistry) registerLanguage(config *LanguageConfig, tsLang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[config.Name] = config
	r.tsLanguages[config.Name] = tsLang
	for _, ext := range config.Extensions {
		r.extToLang[ext] = config.Name
	}
}

func (r *LanguageRegistry) registerPython() {
	r.registerLanguage(&LanguageConfig{
		Name:       "python",
		Extensions: []string{".py", ".pyw"},
	}, python.GetLanguage())
}

func (r *LanguageRegistry) registerJavaScript() {
	r.registerLanguage(&LanguageConfig{
		Name:       "javascript",
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
	}, javascript.GetLanguage())
}

func (r *LanguageRegistry) registerTypeScript() {
	r.registerLanguage(&LanguageConfig{
		Name:       "typescript",
		Extensions: []string{".ts"},
	}, typescript.GetLanguage())

	r.registerLanguage(&LanguageConfig{
		Name:       "tsx",
		Extensions: []string{".tsx"},
	}, tsx.GetLanguage())
}

func (r *LanguageRegistry) registerSQL() {
	r.registerLanguage(&LanguageConfig{
		Name:       "sql",
		Extensions: []string{".sql"},
	}, sql.GetLanguage())
}

// GetByExtension returns the language config registered for a file extension.
func (r *LanguageRegistry) GetByExtension(ext string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	langName, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	config, ok := r.configs[langName]
	return config, ok
}

// GetByName returns the language config by its registered name.
func (r *LanguageRegistry) GetByName(name string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	config, ok := r.configs[name]
	return config, ok
}

// GetTreeSitterLanguage returns the tree-sitter grammar for a language name.
func (r *LanguageRegistry) GetTreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lang, ok := r.tsLanguages[name]
	return lang, ok
}

// SupportedExtensions lists every extension with an AST-dispatched grammar.
func (r *LanguageRegistry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	return exts
}

var (
	defaultRegistry     *LanguageRegistry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns a process-wide registry for callers that don't
// need a custom language set. The registry holds no parsing state (each
// Chunker binds its own *sitter.Parser), so sharing it is safe.
func DefaultRegistry() *LanguageRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewLanguageRegistry()
	})
	return defaultRegistry
}

// LanguageForExtension maps a raw file extension (with or without the
// leading dot) to its tree-sitter language name, or "" when the extension
// has no AST-dispatched grammar and should use the module fallback chunker.
func LanguageForExtension(ext string) string {
	config, ok := DefaultRegistry().GetByExtension(ext)
	if !ok {
		return ""
	}
	return config.Name
}
