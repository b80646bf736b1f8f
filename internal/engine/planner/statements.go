package planner

import (
	"sort"
	"strings"

	"relocate/internal/engine/index"
	"relocate/internal/engine/parser"
	"relocate/internal/engine/rewriter"
	"relocate/internal/shared/util"
)

// statementEdits rewrites one import statement for code that will live in
// module. Clauses split out of the statement become new imports of into.
func (fs *fileState) statementEdits(si int, into *fileState, module string, isPackage bool) []rewriter.Edit {
	stmt := fs.file.Imports[si]
	switch stmt.Kind {
	case parser.ImportModule:
		return fs.moduleStatementEdits(si)
	case parser.ImportFrom:
		return fs.fromStatementEdits(si, into, module, isPackage)
	}
	return nil
}

func (fs *fileState) moduleStatementEdits(si int) []rewriter.Edit {
	stmt := fs.file.Imports[si]
	var edits []rewriter.Edit
	var removed []int
	for ci, c := range stmt.Clauses {
		key := clauseKey{si, ci}
		if fs.removed(key) {
			removed = append(removed, ci)
			continue
		}
		cs := fs.clauses[key]
		if cs == nil || cs.action != actionRetarget || cs.newTarget == c.Name {
			continue
		}
		edits = append(edits, rewriter.Edit{Span: c.Span, Text: clauseText(cs.newTarget, c.Alias)})
	}
	return append(edits, fs.removeClauses(stmt, removed)...)
}

// fromStatementEdits keeps the clauses that share a source module in the
// statement and splits the others out into new imports.
func (fs *fileState) fromStatementEdits(si int, into *fileState, module string, isPackage bool) []rewriter.Edit {
	stmt := fs.file.Imports[si]
	base, ok := fs.p.idx.FromModule(fs.mod, stmt)
	if !ok {
		return nil
	}
	newBase, _ := fs.p.rename(base)
	unmoved := module == fs.mod.Path

	if stmt.Wildcard {
		return fs.respellModule(stmt, base, newBase, module, isPackage, unmoved)
	}

	groups := map[string][]int{}
	var order []string
	var removed []int
	for ci, c := range stmt.Clauses {
		key := clauseKey{si, ci}
		if fs.removed(key) {
			removed = append(removed, ci)
			continue
		}
		target := util.DottedJoin(base, c.Name)
		if cs := fs.clauses[key]; cs != nil {
			target = cs.newTarget
		}
		parent := util.DottedParent(target)
		if _, seen := groups[parent]; !seen {
			order = append(order, parent)
		}
		groups[parent] = append(groups[parent], ci)
	}
	if len(order) == 0 {
		return fs.removeClauses(stmt, removed)
	}

	chosen := order[0]
	if _, ok := groups[newBase]; ok {
		chosen = newBase
	}
	var edits []rewriter.Edit
	for _, parent := range order {
		for _, ci := range groups[parent] {
			c := stmt.Clauses[ci]
			target := util.DottedJoin(parent, util.DottedTail(fs.clauses[clauseKey{si, ci}].newTarget))
			if parent != chosen {
				local := c.LocalName()
				text := "from " + fs.moduleSpelling(stmt, parent, parent, module, isPackage, false) +
					" import " + clauseText(util.DottedTail(target), c.Alias)
				into.addRaw(text, true, local, target)
				removed = append(removed, ci)
				continue
			}
			if tail := util.DottedTail(target); tail != c.Name {
				edits = append(edits, rewriter.Edit{Span: c.Span, Text: clauseText(tail, c.Alias)})
			}
		}
	}
	sort.Ints(removed)
	edits = append(edits, fs.respellModule(stmt, base, chosen, module, isPackage, unmoved)...)
	return append(edits, fs.removeClauses(stmt, removed)...)
}

func (fs *fileState) respellModule(stmt parser.ImportStatement, base, target, module string, isPackage, unmoved bool) []rewriter.Edit {
	spelled := fs.moduleSpelling(stmt, base, target, module, isPackage, unmoved)
	current := strings.Repeat(".", stmt.Level) + stmt.Module
	if spelled == current {
		return nil
	}
	return []rewriter.Edit{{Span: stmt.ModuleSpan, Text: spelled}}
}

// moduleSpelling writes the source module of a from-import. Relative
// imports stay relative, at their original level when it still reaches.
func (fs *fileState) moduleSpelling(stmt parser.ImportStatement, base, target, module string, isPackage, unmoved bool) string {
	if stmt.Level == 0 {
		return target
	}
	if unmoved && target == base {
		return strings.Repeat(".", stmt.Level) + stmt.Module
	}
	if anchor, ok := index.ResolveRelative(module, isPackage, stmt.Level, ""); ok && util.DottedHasPrefix(target, anchor) {
		return strings.Repeat(".", stmt.Level) + strings.TrimPrefix(target[len(anchor):], ".")
	}
	if rel, ok := relativeModule(module, isPackage, target); ok {
		return rel
	}
	return target
}

func clauseText(name, alias string) string {
	if alias == "" {
		return name
	}
	return name + " as " + alias
}

// removeClauses deletes clauses together with one separating comma each,
// or the whole statement when none survive.
func (fs *fileState) removeClauses(stmt parser.ImportStatement, removed []int) []rewriter.Edit {
	if len(removed) == 0 {
		return nil
	}
	if len(removed) == len(stmt.Clauses) {
		return []rewriter.Edit{fs.removeStatement(stmt)}
	}
	gone := map[int]bool{}
	for _, ci := range removed {
		gone[ci] = true
	}
	lastKept := -1
	for ci := range stmt.Clauses {
		if !gone[ci] {
			lastKept = ci
		}
	}
	var edits []rewriter.Edit
	for _, ci := range removed {
		if ci < lastKept {
			edits = append(edits, rewriter.Delete(parser.Span{
				Start: stmt.Clauses[ci].Span.Start,
				End:   stmt.Clauses[ci+1].Span.Start,
			}))
		}
	}
	if last := len(stmt.Clauses) - 1; lastKept < last {
		edits = append(edits, rewriter.Delete(parser.Span{
			Start: stmt.Clauses[lastKept].Span.End,
			End:   stmt.Clauses[last].Span.End,
		}))
	}
	return edits
}

// removeStatement deletes whole lines when the statement owns them. A
// statement sharing its line takes one semicolon along, or becomes `pass`
// when it is the only thing in a block.
func (fs *fileState) removeStatement(stmt parser.ImportStatement) rewriter.Edit {
	if stmt.OwnLines {
		return rewriter.Delete(stmt.Lines)
	}
	src := fs.file.Source
	end := skipSpaces(src, stmt.Span.End)
	if end < len(src) && src[end] == ';' {
		return rewriter.Delete(parser.Span{Start: stmt.Span.Start, End: skipSpaces(src, end+1)})
	}
	start := stmt.Span.Start
	for start > 0 && (src[start-1] == ' ' || src[start-1] == '\t') {
		start--
	}
	if start > 0 && src[start-1] == ';' {
		return rewriter.Delete(parser.Span{Start: start - 1, End: stmt.Span.End})
	}
	return rewriter.Edit{Span: stmt.Span, Text: "pass"}
}

func skipSpaces(src []byte, off int) int {
	for off < len(src) && (src[off] == ' ' || src[off] == '\t') {
		off++
	}
	return off
}
