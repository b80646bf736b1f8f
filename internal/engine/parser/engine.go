package parser

import (
	"bytes"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// NodeHandler processes a node for a language-specific extractor.
// Returns true if the handler has processed children and the walker should stop.
type NodeHandler func(ctx *ExtractionContext, node *sitter.Node) bool

// ExtractionContext carries shared state/helpers used by all extractors.
type ExtractionContext struct {
	Source            []byte
	File              *File
	ProcessedChildren bool // If true, the walker will skip this node's children

	scopes []int
}

func NewExtractionContext(source []byte, file *File) *ExtractionContext {
	file.Scopes = []Scope{{
		Kind:     ScopeModule,
		Parent:   -1,
		Span:     Span{0, len(source)},
		Bindings: make(map[string]bool),
		Globals:  make(map[string]bool),
	}}
	return &ExtractionContext{Source: source, File: file, scopes: []int{0}}
}

func (c *ExtractionContext) ResetProcessedChildren() {
	c.ProcessedChildren = false
}

// Scope returns the index of the innermost open scope.
func (c *ExtractionContext) Scope() int {
	return c.scopes[len(c.scopes)-1]
}

func (c *ExtractionContext) PushScope(kind ScopeKind, node *sitter.Node) int {
	c.File.Scopes = append(c.File.Scopes, Scope{
		Kind:     kind,
		Parent:   c.Scope(),
		Span:     c.Span(node),
		Bindings: make(map[string]bool),
		Globals:  make(map[string]bool),
	})
	id := len(c.File.Scopes) - 1
	c.scopes = append(c.scopes, id)
	return id
}

func (c *ExtractionContext) PopScope() {
	if len(c.scopes) > 1 {
		c.scopes = c.scopes[:len(c.scopes)-1]
	}
}

func (c *ExtractionContext) Bind(name string) {
	if name == "" {
		return
	}
	c.File.Scopes[c.Scope()].Bindings[name] = true
}

// ExtractorEngine walks the syntax tree and dispatches node handlers by kind.
type ExtractorEngine struct {
	handlers map[string]NodeHandler
}

func NewExtractorEngine(handlers map[string]NodeHandler) *ExtractorEngine {
	return &ExtractorEngine{handlers: handlers}
}

func (e *ExtractorEngine) Walk(ctx *ExtractionContext, node *sitter.Node) {
	if node == nil {
		return
	}

	ctx.ResetProcessedChildren()
	stop := false
	if handler, ok := e.handlers[node.Kind()]; ok {
		stop = handler(ctx, node)
	}

	if !stop && !ctx.ProcessedChildren {
		e.WalkChildren(ctx, node)
	}
}

func (e *ExtractorEngine) WalkChildren(ctx *ExtractionContext, node *sitter.Node) {
	if node == nil {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		e.Walk(ctx, node.Child(i))
	}
}

func (c *ExtractionContext) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(c.Source[node.StartByte():node.EndByte()])
}

func (c *ExtractionContext) Span(node *sitter.Node) Span {
	if node == nil {
		return Span{}
	}
	return Span{Start: int(node.StartByte()), End: int(node.EndByte())}
}

func (c *ExtractionContext) Location(node *sitter.Node) Location {
	return Location{
		File:   c.File.Path,
		Line:   int(node.StartPosition().Row) + 1,
		Column: int(node.StartPosition().Column) + 1,
	}
}

func (c *ExtractionContext) ChildText(node *sitter.Node, kind string) string {
	if child := ChildOfKind(node, kind); child != nil {
		return c.Text(child)
	}
	return ""
}

// ChildOfKind returns the first direct child with the given kind.
func ChildOfKind(node *sitter.Node, kind string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}

// LineStart returns the offset of the first byte of the line containing off.
func LineStart(src []byte, off int) int {
	if off > len(src) {
		off = len(src)
	}
	i := bytes.LastIndexByte(src[:off], '\n')
	return i + 1
}

// LineEnd returns the offset just past the newline ending the line containing
// off, or len(src) on the last line. An offset already at a line start is
// treated as belonging to the previous line.
func LineEnd(src []byte, off int) int {
	if off > 0 && off <= len(src) && src[off-1] == '\n' {
		return off
	}
	if off >= len(src) {
		return len(src)
	}
	i := bytes.IndexByte(src[off:], '\n')
	if i < 0 {
		return len(src)
	}
	return off + i + 1
}

func isBlank(b []byte) bool {
	return len(bytes.TrimSpace(b)) == 0
}
