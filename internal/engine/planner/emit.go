package planner

import (
	"bytes"
	"sort"
	"strings"

	"relocate/internal/engine/parser"
	"relocate/internal/engine/rewriter"
	"relocate/internal/shared/util"
)

// emit turns the decisions made while preparing and relocating into the
// final edit list of an existing file.
func (fs *fileState) emit() {
	fs.rootOrphans()
	for si, stmt := range fs.file.Imports {
		if stmt.Kind == parser.ImportFuture || fs.regionAt(stmt.Span) != nil {
			continue
		}
		fs.edits = append(fs.edits, fs.statementEdits(si, fs, fs.module, fs.isPackage)...)
	}
	fs.insertImports()
	fs.mergeDeletions()
	fs.appendRegions()
	fs.flushInserts()
	fs.trimLeadingBlankLines()
}

// trimLeadingBlankLines drops the blank lines a file would start with once
// the deletions at its top are applied.
func (fs *fileState) trimLeadingBlankLines() {
	src := fs.file.Source
	pos := 0
	for {
		next := pos
		for _, e := range fs.edits {
			if e.Span.Start == pos && e.Text == "" && e.Span.End > pos {
				next = max(next, e.Span.End)
			}
		}
		if next == pos {
			break
		}
		pos = next
	}
	if pos == 0 {
		return
	}
	start := pos
	for pos < len(src) {
		line := nextLine(src, pos)
		if !isBlankLine(line) || fs.touched(parser.Span{Start: pos, End: pos + len(line)}) {
			break
		}
		pos += len(line)
	}
	if pos > start {
		fs.edits = append(fs.edits, rewriter.Delete(parser.Span{Start: start, End: pos}))
	}
}

// touched reports whether an edit overlaps span or inserts at its start.
func (fs *fileState) touched(span parser.Span) bool {
	for _, e := range fs.edits {
		if e.Span.Start < span.End && e.Span.End > span.Start || e.Span.Start == span.Start {
			return true
		}
	}
	return false
}

// rootOrphans keeps the root package of a dotted import bound when other
// references still reach it through that root after the clause changes.
func (fs *fileState) rootOrphans() {
	for si, stmt := range fs.file.Imports {
		if stmt.Kind != parser.ImportModule || stmt.Scope != 0 || fs.regionAt(stmt.Span) != nil {
			continue
		}
		for ci, c := range stmt.Clauses {
			key := clauseKey{si, ci}
			cs := fs.clauses[key]
			if cs == nil || c.Alias != "" || cs.rootRemaining == 0 || util.DottedSegments(c.Name) < 2 {
				continue
			}
			root := util.DottedRoot(c.Name)
			lost := fs.removed(key) || cs.action == actionRetarget && util.DottedRoot(cs.newTarget) != root
			if !lost || fs.rootProvided(root, key) {
				continue
			}
			if _, spec := fs.p.rename(root); spec != nil {
				continue
			}
			fs.addRaw("import "+root, false, root, root)
		}
	}
}

func (fs *fileState) rootProvided(root string, except clauseKey) bool {
	for _, b := range fs.bindings {
		if util.DottedRoot(b.local) != root || util.DottedRoot(b.target) != root {
			continue
		}
		if b.key == nil {
			return true
		}
		if *b.key != except && !fs.removed(*b.key) {
			return true
		}
	}
	return false
}

// insertImports places new imports after the last module-level import of
// the same kind, or after the file header when there is none.
func (fs *fileState) insertImports() {
	if len(fs.added) == 0 {
		return
	}
	src := fs.file.Source
	le := fs.lineEnding()

	groups := map[int][]string{}
	var offs []int
	for _, a := range fs.added {
		off := fs.importAnchor(a.from)
		if _, ok := groups[off]; !ok {
			offs = append(offs, off)
		}
		groups[off] = append(groups[off], a.text)
	}
	sort.Ints(offs)

	for _, off := range offs {
		texts := groups[off]
		sort.Strings(texts)
		var b strings.Builder
		if off > 0 && src[off-1] != '\n' {
			b.WriteString(le)
		}
		b.WriteString(strings.Join(texts, le))
		b.WriteString(le)
		if off == fs.file.HeaderEnd && !fs.hasToplevelImports() && !isBlankLine(nextLine(src, off)) {
			b.WriteString(le)
		}
		fs.insert(off, b.String())
	}
}

func (fs *fileState) importAnchor(from bool) int {
	last, lastKind := -1, -1
	for i, stmt := range fs.file.Imports {
		if !stmt.Toplevel || stmt.Indent != "" || stmt.Scope != 0 {
			continue
		}
		last = i
		switch {
		case from && (stmt.Kind == parser.ImportFrom || stmt.Kind == parser.ImportFuture):
			lastKind = i
		case !from && stmt.Kind == parser.ImportModule:
			lastKind = i
		}
	}
	if lastKind >= 0 {
		last = lastKind
	}
	if last < 0 {
		return fs.file.HeaderEnd
	}
	stmt := fs.file.Imports[last]
	if stmt.OwnLines {
		return stmt.Lines.End
	}
	return parser.LineEnd(fs.file.Source, stmt.Span.End)
}

func (fs *fileState) hasToplevelImports() bool {
	for _, stmt := range fs.file.Imports {
		if stmt.Toplevel && stmt.Scope == 0 {
			return true
		}
	}
	return false
}

// mergeDeletions removes relocated regions, joining ranges that touch.
func (fs *fileState) mergeDeletions() {
	if len(fs.deletions) == 0 {
		return
	}
	dels := append([]parser.Span(nil), fs.deletions...)
	sort.Slice(dels, func(i, j int) bool { return dels[i].Start < dels[j].Start })
	cur := dels[0]
	for _, d := range dels[1:] {
		if d.Start <= cur.End {
			cur.End = max(cur.End, d.End)
			continue
		}
		fs.edits = append(fs.edits, rewriter.Delete(cur))
		cur = d
	}
	fs.edits = append(fs.edits, rewriter.Delete(cur))
}

// appendRegions adds relocated definitions at the end of the file, two
// blank lines apart.
func (fs *fileState) appendRegions() {
	if len(fs.appended) == 0 {
		return
	}
	src := fs.file.Source
	le := fs.lineEnding()
	var b strings.Builder
	if len(bytes.TrimSpace(src)) > 0 {
		trailing := len(src) - len(bytes.TrimRight(src, "\r\n"))
		trailing = bytes.Count(src[len(src)-trailing:], []byte("\n"))
		for i := trailing; i < 3; i++ {
			b.WriteString(le)
		}
	}
	b.WriteString(strings.Join(fs.appended, le+le))
	fs.insert(len(src), b.String())
}

// content renders a file the plan creates from scratch.
func (fs *fileState) content() []byte {
	texts := make([]string, 0, len(fs.added))
	for _, a := range fs.added {
		texts = append(texts, a.text)
	}
	sort.Strings(texts)

	var b strings.Builder
	for _, t := range texts {
		b.WriteString(t)
		b.WriteString("\n")
	}
	if len(texts) > 0 && len(fs.appended) > 0 {
		b.WriteString("\n\n")
	}
	b.WriteString(strings.Join(fs.appended, "\n\n"))
	return []byte(b.String())
}

func nextLine(src []byte, off int) []byte {
	if i := bytes.IndexByte(src[off:], '\n'); i >= 0 {
		return src[off : off+i+1]
	}
	return src[off:]
}
