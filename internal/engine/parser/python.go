package parser

import (
	"bytes"
	"strings"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type PythonExtractor struct {
	engine *ExtractorEngine
}

func NewPythonExtractor() *PythonExtractor {
	e := &PythonExtractor{}
	e.engine = NewExtractorEngine(map[string]NodeHandler{
		"import_statement":         e.extractImport,
		"import_from_statement":    e.extractFromImport,
		"future_import_statement":  e.extractFutureImport,
		"function_definition":      e.extractFunction,
		"class_definition":         e.extractClass,
		"lambda":                   e.extractLambda,
		"list_comprehension":       e.extractComprehension,
		"set_comprehension":        e.extractComprehension,
		"dictionary_comprehension": e.extractComprehension,
		"generator_expression":     e.extractComprehension,
		"assignment":               e.extractAssignment,
		"augmented_assignment":     e.extractAssignment,
		"for_statement":            e.extractFor,
		"for_in_clause":            e.extractFor,
		"named_expression":         e.extractNamedExpression,
		"global_statement":         e.extractGlobal,
		"nonlocal_statement":       e.extractGlobal,
		"as_pattern":               e.extractAsPattern,
		"except_clause":            e.extractExcept,
		"keyword_argument":         e.extractKeywordArgument,
		"attribute":                e.extractChain,
		"member_type":              e.extractChain,
		"dotted_name":              e.extractChain,
		"identifier":               e.extractChain,
		"string":                   e.extractString,
		"comment":                  e.extractComment,
	})
	return e
}

func (e *PythonExtractor) Extract(root *sitter.Node, source []byte, filePath string) (*File, error) {
	file := &File{
		Path:       filePath,
		Language:   "python",
		Source:     source,
		LineEnding: detectLineEnding(source),
		ParsedAt:   time.Now(),
	}

	ctx := NewExtractionContext(source, file)
	file.HeaderEnd = e.headerEnd(ctx, root)
	e.engine.Walk(ctx, root)

	return file, nil
}

func detectLineEnding(source []byte) string {
	if i := bytes.IndexByte(source, '\n'); i > 0 && source[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}

// headerEnd skips leading comments and the module docstring.
func (e *PythonExtractor) headerEnd(ctx *ExtractionContext, root *sitter.Node) int {
	end := 0
	sawDocstring := false
	for i := uint(0); i < root.ChildCount(); i++ {
		child := root.Child(i)
		switch {
		case child.Kind() == "comment":
			end = LineEnd(ctx.Source, int(child.EndByte()))
			continue
		case !sawDocstring && child.Kind() == "expression_statement" && child.ChildCount() == 1 && child.Child(0).Kind() == "string":
			sawDocstring = true
			end = LineEnd(ctx.Source, int(child.EndByte()))
			continue
		}
		break
	}
	return end
}

func isToplevel(node *sitter.Node) bool {
	parent := node.Parent()
	return parent != nil && parent.Kind() == "module"
}

func (e *PythonExtractor) newStatement(ctx *ExtractionContext, node *sitter.Node, kind ImportKind) ImportStatement {
	span := ctx.Span(node)
	start := LineStart(ctx.Source, span.Start)
	end := LineEnd(ctx.Source, span.End)
	before := ctx.Source[start:span.Start]
	after := ctx.Source[span.End:end]
	ownLines := isBlank(before) && (isBlank(after) || bytes.HasPrefix(bytes.TrimSpace(after), []byte("#")))

	return ImportStatement{
		Kind:     kind,
		Span:     span,
		Lines:    Span{start, end},
		OwnLines: ownLines,
		LineText: string(ctx.Source[start:end]),
		Indent:   string(before[:len(before)-len(bytes.TrimLeft(before, " \t"))]),
		Scope:    ctx.Scope(),
		Toplevel: isToplevel(node),
		Location: ctx.Location(node),
	}
}

func (e *PythonExtractor) clause(ctx *ExtractionContext, node *sitter.Node) (ImportClause, bool) {
	switch node.Kind() {
	case "dotted_name", "identifier":
		return ImportClause{
			Name:     normalizeRefName(ctx.Text(node)),
			Span:     ctx.Span(node),
			Location: ctx.Location(node),
		}, true
	case "aliased_import":
		return ImportClause{
			Name:     normalizeRefName(ctx.Text(node.ChildByFieldName("name"))),
			Alias:    ctx.Text(node.ChildByFieldName("alias")),
			Span:     ctx.Span(node),
			Location: ctx.Location(node),
		}, true
	}
	return ImportClause{}, false
}

// setRemovalSpans lets a single clause be deleted together with one comma.
func setRemovalSpans(clauses []ImportClause) {
	for i := range clauses {
		switch {
		case len(clauses) == 1:
			clauses[i].RemovalSpan = clauses[i].Span
		case i < len(clauses)-1:
			clauses[i].RemovalSpan = Span{clauses[i].Span.Start, clauses[i+1].Span.Start}
		default:
			clauses[i].RemovalSpan = Span{clauses[i-1].Span.End, clauses[i].Span.End}
		}
	}
}

func (e *PythonExtractor) extractImport(ctx *ExtractionContext, node *sitter.Node) bool {
	stmt := e.newStatement(ctx, node, ImportModule)
	for i := uint(0); i < node.ChildCount(); i++ {
		if c, ok := e.clause(ctx, node.Child(i)); ok {
			stmt.Clauses = append(stmt.Clauses, c)
		}
	}
	setRemovalSpans(stmt.Clauses)
	ctx.File.Imports = append(ctx.File.Imports, stmt)
	return true
}

func (e *PythonExtractor) extractFromImport(ctx *ExtractionContext, node *sitter.Node) bool {
	stmt := e.newStatement(ctx, node, ImportFrom)

	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode != nil {
		stmt.ModuleSpan = ctx.Span(moduleNode)
		text := normalizeRefName(ctx.Text(moduleNode))
		if moduleNode.Kind() == "relative_import" {
			stmt.Level = len(text) - len(strings.TrimLeft(text, "."))
			text = strings.TrimLeft(text, ".")
		}
		stmt.Module = text
	}

	afterImport := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "import":
			afterImport = true
			continue
		case "wildcard_import":
			stmt.Wildcard = true
			continue
		}
		if !afterImport {
			continue
		}
		if c, ok := e.clause(ctx, child); ok {
			stmt.Clauses = append(stmt.Clauses, c)
		}
	}
	setRemovalSpans(stmt.Clauses)
	ctx.File.Imports = append(ctx.File.Imports, stmt)
	return true
}

func (e *PythonExtractor) extractFutureImport(ctx *ExtractionContext, node *sitter.Node) bool {
	stmt := e.newStatement(ctx, node, ImportFuture)
	stmt.Module = "__future__"
	ctx.File.Imports = append(ctx.File.Imports, stmt)
	return true
}

// definitionRegion extends the outer node to whole lines plus the comment
// block directly above it.
func definitionRegion(src []byte, outer Span) Span {
	start := LineStart(src, outer.Start)
	for start > 0 {
		prev := LineStart(src, start-1)
		line := bytes.TrimSpace(src[prev:start])
		if len(line) == 0 || line[0] != '#' {
			break
		}
		start = prev
	}
	return Span{Start: start, End: LineEnd(src, outer.End)}
}

func (e *PythonExtractor) addDefinition(ctx *ExtractionContext, node, nameNode *sitter.Node, kind DefinitionKind) {
	outer := node
	if parent := node.Parent(); parent != nil && parent.Kind() == "decorated_definition" {
		outer = parent
	}
	if !isToplevel(outer) {
		return
	}
	span := ctx.Span(outer)
	ctx.File.Definitions = append(ctx.File.Definitions, Definition{
		Name:     ctx.Text(nameNode),
		Kind:     kind,
		Location: ctx.Location(nameNode),
		NameSpan: ctx.Span(nameNode),
		Span:     span,
		Region:   definitionRegion(ctx.Source, span),
	})
}

func (e *PythonExtractor) extractFunction(ctx *ExtractionContext, node *sitter.Node) bool {
	nameNode := node.ChildByFieldName("name")
	e.addDefinition(ctx, node, nameNode, KindFunction)
	ctx.Bind(ctx.Text(nameNode))

	params := node.ChildByFieldName("parameters")
	e.walkParameterDefaults(ctx, params)
	e.engine.Walk(ctx, node.ChildByFieldName("return_type"))

	ctx.PushScope(ScopeFunction, node)
	e.bindParameters(ctx, params)
	e.engine.Walk(ctx, node.ChildByFieldName("body"))
	ctx.PopScope()
	return true
}

func (e *PythonExtractor) extractClass(ctx *ExtractionContext, node *sitter.Node) bool {
	nameNode := node.ChildByFieldName("name")
	e.addDefinition(ctx, node, nameNode, KindClass)
	ctx.Bind(ctx.Text(nameNode))

	e.engine.Walk(ctx, node.ChildByFieldName("superclasses"))

	ctx.PushScope(ScopeClass, node)
	e.engine.Walk(ctx, node.ChildByFieldName("body"))
	ctx.PopScope()
	return true
}

func (e *PythonExtractor) extractLambda(ctx *ExtractionContext, node *sitter.Node) bool {
	params := node.ChildByFieldName("parameters")
	e.walkParameterDefaults(ctx, params)

	ctx.PushScope(ScopeFunction, node)
	e.bindParameters(ctx, params)
	e.engine.Walk(ctx, node.ChildByFieldName("body"))
	ctx.PopScope()
	return true
}

// walkParameterDefaults visits annotations and default values, which are
// evaluated in the enclosing scope.
func (e *PythonExtractor) walkParameterDefaults(ctx *ExtractionContext, params *sitter.Node) {
	if params == nil {
		return
	}
	for i := uint(0); i < params.ChildCount(); i++ {
		param := params.Child(i)
		switch param.Kind() {
		case "typed_parameter":
			e.engine.Walk(ctx, param.ChildByFieldName("type"))
		case "default_parameter":
			e.engine.Walk(ctx, param.ChildByFieldName("value"))
		case "typed_default_parameter":
			e.engine.Walk(ctx, param.ChildByFieldName("type"))
			e.engine.Walk(ctx, param.ChildByFieldName("value"))
		}
	}
}

func (e *PythonExtractor) bindParameters(ctx *ExtractionContext, params *sitter.Node) {
	if params == nil {
		return
	}
	for i := uint(0); i < params.ChildCount(); i++ {
		param := params.Child(i)
		switch param.Kind() {
		case "identifier":
			ctx.Bind(ctx.Text(param))
		case "default_parameter", "typed_default_parameter":
			e.bindNames(ctx, param.ChildByFieldName("name"))
		case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern", "tuple_pattern":
			for j := uint(0); j < param.ChildCount(); j++ {
				child := param.Child(j)
				if child.Kind() == "type" {
					continue
				}
				e.bindNames(ctx, child)
			}
		}
	}
}

// bindNames binds every plain identifier in an assignment target. Attribute
// and subscript targets are ordinary usages.
func (e *PythonExtractor) bindNames(ctx *ExtractionContext, node *sitter.Node) {
	if node == nil {
		return
	}
	switch node.Kind() {
	case "identifier":
		ctx.Bind(ctx.Text(node))
	case "pattern_list", "tuple_pattern", "list_pattern", "list_splat_pattern",
		"dictionary_splat_pattern", "parenthesized_expression", "tuple", "list",
		"as_pattern_target", "expression_list":
		for i := uint(0); i < node.ChildCount(); i++ {
			e.bindNames(ctx, node.Child(i))
		}
	case "attribute", "subscript":
		e.engine.Walk(ctx, node)
	}
}

func (e *PythonExtractor) extractComprehension(ctx *ExtractionContext, node *sitter.Node) bool {
	ctx.PushScope(ScopeComprehension, node)
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == "for_in_clause" {
			e.bindNames(ctx, child.ChildByFieldName("left"))
		}
	}
	e.engine.WalkChildren(ctx, node)
	ctx.PopScope()
	return true
}

func (e *PythonExtractor) extractAssignment(ctx *ExtractionContext, node *sitter.Node) bool {
	left := node.ChildByFieldName("left")
	if node.Kind() == "augmented_assignment" && left != nil && left.Kind() == "identifier" {
		e.engine.Walk(ctx, left)
	}
	e.bindNames(ctx, left)

	if node.Kind() == "assignment" && left != nil && left.Kind() == "identifier" {
		if stmt := node.Parent(); stmt != nil && stmt.Kind() == "expression_statement" && isToplevel(stmt) {
			span := ctx.Span(stmt)
			ctx.File.Definitions = append(ctx.File.Definitions, Definition{
				Name:     ctx.Text(left),
				Kind:     KindConstant,
				Location: ctx.Location(left),
				NameSpan: ctx.Span(left),
				Span:     span,
				Region:   definitionRegion(ctx.Source, span),
			})
		}
	}

	e.engine.Walk(ctx, node.ChildByFieldName("type"))
	e.engine.Walk(ctx, node.ChildByFieldName("right"))
	return true
}

func (e *PythonExtractor) extractFor(ctx *ExtractionContext, node *sitter.Node) bool {
	left := node.ChildByFieldName("left")
	e.bindNames(ctx, left)
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if left != nil && child.StartByte() == left.StartByte() && child.EndByte() == left.EndByte() {
			continue
		}
		e.engine.Walk(ctx, child)
	}
	return true
}

func (e *PythonExtractor) extractNamedExpression(ctx *ExtractionContext, node *sitter.Node) bool {
	e.bindNames(ctx, node.ChildByFieldName("name"))
	e.engine.Walk(ctx, node.ChildByFieldName("value"))
	return true
}

func (e *PythonExtractor) extractGlobal(ctx *ExtractionContext, node *sitter.Node) bool {
	scope := &ctx.File.Scopes[ctx.Scope()]
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child.Kind() == "identifier" {
			scope.Globals[ctx.Text(child)] = true
		}
	}
	return true
}

func (e *PythonExtractor) extractAsPattern(ctx *ExtractionContext, node *sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == "as_pattern_target" {
			e.bindNames(ctx, child)
			continue
		}
		e.engine.Walk(ctx, child)
	}
	return true
}

func (e *PythonExtractor) extractExcept(ctx *ExtractionContext, node *sitter.Node) bool {
	alias := node.ChildByFieldName("alias")
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if alias != nil && child.StartByte() == alias.StartByte() && child.EndByte() == alias.EndByte() {
			e.bindNames(ctx, child)
			continue
		}
		e.engine.Walk(ctx, child)
	}
	return true
}

func (e *PythonExtractor) extractKeywordArgument(ctx *ExtractionContext, node *sitter.Node) bool {
	e.engine.Walk(ctx, node.ChildByFieldName("value"))
	return true
}

// flattenChain returns the names of a pure dotted chain and the end offset of
// each segment. ok is false when the chain starts with a call, subscript or
// other non-name expression.
func (e *PythonExtractor) flattenChain(ctx *ExtractionContext, node *sitter.Node) (names []string, ends []int, ok bool) {
	if node == nil {
		return nil, nil, false
	}
	switch node.Kind() {
	case "identifier":
		return []string{ctx.Text(node)}, []int{int(node.EndByte())}, true
	case "attribute":
		names, ends, ok = e.flattenChain(ctx, node.ChildByFieldName("object"))
		attr := node.ChildByFieldName("attribute")
		if !ok || attr == nil {
			return nil, nil, false
		}
		return append(names, ctx.Text(attr)), append(ends, int(attr.EndByte())), true
	case "type":
		if node.ChildCount() == 1 {
			return e.flattenChain(ctx, node.Child(0))
		}
	case "member_type":
		if node.ChildCount() == 0 {
			return nil, nil, false
		}
		names, ends, ok = e.flattenChain(ctx, node.Child(0))
		last := node.Child(node.ChildCount() - 1)
		if !ok || last.Kind() != "identifier" {
			return nil, nil, false
		}
		return append(names, ctx.Text(last)), append(ends, int(last.EndByte())), true
	case "dotted_name":
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child.Kind() == "identifier" {
				names = append(names, ctx.Text(child))
				ends = append(ends, int(child.EndByte()))
			}
		}
		return names, ends, len(names) > 0
	}
	return nil, nil, false
}

func (e *PythonExtractor) extractChain(ctx *ExtractionContext, node *sitter.Node) bool {
	names, ends, ok := e.flattenChain(ctx, node)
	if !ok {
		// Only the object part of `call().attr` can hold a usage.
		switch node.Kind() {
		case "attribute":
			e.engine.Walk(ctx, node.ChildByFieldName("object"))
		case "member_type":
			e.engine.Walk(ctx, node.Child(0))
		default:
			e.engine.WalkChildren(ctx, node)
		}
		return true
	}

	start := int(node.StartByte())
	spans := make([]Span, len(ends))
	for i, end := range ends {
		spans[i] = Span{Start: start, End: end}
	}
	ctx.File.Usages = append(ctx.File.Usages, Usage{
		Chain:    names,
		Spans:    spans,
		Scope:    ctx.Scope(),
		Location: ctx.Location(node),
	})
	return true
}

func (e *PythonExtractor) extractString(ctx *ExtractionContext, node *sitter.Node) bool {
	var text strings.Builder
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "string_content":
			text.WriteString(ctx.Text(child))
		case "interpolation":
			e.engine.WalkChildren(ctx, child)
		}
	}
	if text.Len() > 0 {
		ctx.File.Literals = append(ctx.File.Literals, Literal{
			Text:     text.String(),
			Span:     ctx.Span(node),
			Location: ctx.Location(node),
		})
	}
	return true
}

func (e *PythonExtractor) extractComment(ctx *ExtractionContext, node *sitter.Node) bool {
	ctx.File.Literals = append(ctx.File.Literals, Literal{
		Text:     ctx.Text(node),
		Span:     ctx.Span(node),
		Comment:  true,
		Location: ctx.Location(node),
	})
	return true
}
