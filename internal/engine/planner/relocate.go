package planner

import (
	"bytes"
	"strings"

	"relocate/internal/core/errors"
	"relocate/internal/engine/move"
	"relocate/internal/engine/parser"
	"relocate/internal/engine/resolver"
	"relocate/internal/engine/rewriter"
	"relocate/internal/shared/util"
)

// relocate cuts a definition out of its file and queues it, rewritten for
// its new module, at the end of the destination file.
func (p *planner) relocate(r *region) error {
	src := r.src
	dest := p.destination(util.DottedParent(r.spec.Destination))
	span := r.def.Region

	var local []rewriter.Edit
	for si, stmt := range src.file.Imports {
		if stmt.Kind != parser.ImportFuture && span.Contains(stmt.Span) {
			local = append(local, src.statementEdits(si, dest, dest.module, dest.isPackage)...)
		}
	}

	for _, ref := range src.fr.Refs {
		u := src.fr.Usage(ref)
		if !span.Contains(u.Span()) {
			continue
		}
		inside := false
		if ref.Binding.Kind == resolver.BindImport {
			inside = span.Contains(src.file.Imports[ref.Binding.Statement].Span)
		}

		if ref.Path == resolver.Explicit && ref.Target != "" {
			renamed, spec := p.rename(ref.Target)
			switch {
			case spec != nil:
				text, _ := src.spellRef(dest, ref, renamed, spec, inside)
				local = appendReplace(local, u, ref.TargetSegments, text)
				continue
			case ref.Binding.Kind == resolver.BindSymbol:
				text := dest.spellName(ref.Target, u.Location, r.spec.ID)
				local = appendReplace(local, u, ref.TargetSegments, text)
				continue
			}
		}
		if ref.Binding.Kind == resolver.BindImport && !inside {
			dest.bringClause(src, clauseKey{ref.Binding.Statement, ref.Binding.Clause}, u.Location, r.spec.ID)
		}
	}

	if name := util.DottedTail(r.spec.Destination); name != r.def.Name {
		local = append(local, rewriter.Edit{Span: r.def.NameSpan, Text: name})
	}

	for i := range local {
		local[i].Span.Start -= span.Start
		local[i].Span.End -= span.Start
	}
	local, err := rewriter.Materialize(src.path, local)
	if err != nil {
		return errors.AddContext(err, errors.CtxSymbol, r.spec.Source)
	}
	text := rewriter.Apply(src.file.Source[span.Start:span.End], local)
	if !bytes.HasSuffix(text, []byte("\n")) {
		text = append(text, dest.lineEnding()...)
	}
	dest.appended = append(dest.appended, string(text))
	src.deletions = append(src.deletions, src.regionDeletion(span))
	return nil
}

func appendReplace(edits []rewriter.Edit, u parser.Usage, n int, text string) []rewriter.Edit {
	if text == strings.Join(u.Chain[:n], ".") {
		return edits
	}
	return append(edits, rewriter.Edit{Span: u.PrefixSpan(n), Text: text})
}

// bringClause makes the binding of one of src's module-level clauses
// available here, copying the import unless an equal one exists.
func (fs *fileState) bringClause(src *fileState, key clauseKey, loc parser.Location, moveID int) {
	stmt := src.file.Imports[key.stmt]
	c := stmt.Clauses[key.clause]
	cs := src.clauses[key]
	if cs == nil {
		return
	}
	target := cs.newTarget

	var local, text string
	from := stmt.Kind == parser.ImportFrom
	if from {
		local = c.Alias
		if local == "" {
			local = util.DottedTail(target)
		}
		base := util.DottedParent(target)
		text = "from " + src.moduleSpelling(stmt, base, base, fs.module, fs.isPackage, false) +
			" import " + clauseText(util.DottedTail(target), c.Alias)
	} else {
		local = c.Alias
		if local == "" {
			local = target
		}
		text = "import " + clauseText(target, c.Alias)
	}

	for _, b := range fs.bindings {
		if b.local == local && b.target == target {
			if b.key != nil {
				fs.clauses[*b.key].remaining++
			}
			return
		}
	}
	if fs.conflicts(local, target) {
		fs.report(move.ImportAliasConflict, loc, moveID,
			"cannot import %s as %s in %s: the name is taken", target, local, fs.path)
		return
	}
	fs.addRaw(text, from, local, target)
}

// regionDeletion widens a definition's lines so that removing it leaves
// the blank-line spacing of its neighbours intact.
func (fs *fileState) regionDeletion(span parser.Span) parser.Span {
	src := fs.file.Source
	start, end := span.Start, span.End
	blankBefore := start == 0 || isBlankLine(src[parser.LineStart(src, start-1):start])
	if blankBefore {
		for end < len(src) {
			next := bytes.IndexByte(src[end:], '\n')
			if next < 0 || !isBlankLine(src[end:end+next+1]) {
				break
			}
			end += next + 1
		}
	}
	if end == len(src) {
		for start > 0 {
			prev := parser.LineStart(src, start-1)
			if !isBlankLine(src[prev:start]) {
				break
			}
			start = prev
		}
	}
	return parser.Span{Start: start, End: end}
}

func isBlankLine(b []byte) bool {
	return len(bytes.TrimSpace(b)) == 0
}
