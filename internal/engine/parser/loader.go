package parser

import (
	"fmt"
	"sort"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// LanguageSpec describes which files a grammar handles.
type LanguageSpec struct {
	Name       string
	Extensions []string
}

var defaultLanguages = map[string]LanguageSpec{
	"python": {Name: "python", Extensions: []string{".py"}},
}

type GrammarLoader struct {
	languages map[string]*sitter.Language
	registry  map[string]LanguageSpec
}

func NewGrammarLoader() (*GrammarLoader, error) {
	gl := &GrammarLoader{
		languages: make(map[string]*sitter.Language),
		registry:  make(map[string]LanguageSpec, len(defaultLanguages)),
	}
	for langID, spec := range defaultLanguages {
		gl.registry[langID] = spec
		switch langID {
		case "python":
			gl.languages["python"] = sitter.NewLanguage(tree_sitter_python.Language())
		default:
			return nil, fmt.Errorf("language %q is registered but runtime grammar loading is not implemented", langID)
		}
	}
	return gl, nil
}

func (gl *GrammarLoader) Language(langID string) *sitter.Language {
	return gl.languages[langID]
}

func (gl *GrammarLoader) SupportedExtensions() []string {
	set := make(map[string]bool)
	for _, spec := range gl.registry {
		for _, ext := range spec.Extensions {
			set[ext] = true
		}
	}
	extensions := make([]string, 0, len(set))
	for ext := range set {
		extensions = append(extensions, ext)
	}
	sort.Strings(extensions)
	return extensions
}
