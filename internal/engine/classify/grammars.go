package classify

import (
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// grammarSet holds the loaded tree-sitter grammars for the JS family.
// The TSX grammar doubles as the markup-tolerant fallback for .ts sources
// that the strict TypeScript grammar rejects.
type grammarSet struct {
	typescript *sitter.Language
	tsx        *sitter.Language
	javascript *sitter.Language
}

func loadGrammars() *grammarSet {
	return &grammarSet{
		typescript: sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
		tsx:        sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()),
		javascript: sitter.NewLanguage(tree_sitter_javascript.Language()),
	}
}

// strict returns the primary grammar for a language ID.
func (g *grammarSet) strict(lang string) *sitter.Language {
	switch lang {
	case "typescript":
		return g.typescript
	case "tsx":
		return g.tsx
	case "javascript":
		return g.javascript
	}
	return nil
}

// tolerant returns the retry grammar, or nil when only one strategy exists.
func (g *grammarSet) tolerant(lang string) *sitter.Language {
	if lang == "typescript" {
		return g.tsx
	}
	return nil
}

// SupportedFile reports whether the path has a JS-family extension.
func SupportedFile(path string) bool {
	return detectLanguage(path) != ""
}

func detectLanguage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return "typescript"
	case ".tsx":
		return "tsx"
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript"
	}
	return ""
}
