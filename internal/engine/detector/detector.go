// Package detector finds the moves that cannot be planned safely and the
// usage sites that must not be rewritten automatically.
package detector

import (
	"strings"

	"relocate/internal/engine/index"
	"relocate/internal/engine/move"
	"relocate/internal/engine/parser"
	"relocate/internal/engine/resolver"
	"relocate/internal/shared/util"
)

// Report is the outcome of a scan. Accepted keeps the input order.
type Report struct {
	Accepted    []move.Spec
	Excluded    []move.Spec
	Diagnostics []move.Diagnostic
}

// Scan validates a batch of moves against the index and reports hazards in
// the resolved references. Invalid, conflicting and colliding moves are
// excluded; the rest proceed.
func Scan(idx *index.Index, res *resolver.Result, specs []move.Spec) *Report {
	d := &scanner{idx: idx, res: res, rep: &Report{}, excluded: map[int]bool{}}

	for _, f := range idx.Failures {
		d.report(move.NewDiagnostic(move.ParseError, parser.Location{File: f.Path}, -1, "%v", f.Err))
	}

	d.checkValid(specs)
	d.checkCollisions(specs)
	d.checkConflicts(specs)

	for _, s := range specs {
		if d.excluded[s.ID] {
			d.rep.Excluded = append(d.rep.Excluded, s)
			continue
		}
		d.rep.Accepted = append(d.rep.Accepted, s)
	}

	for _, mod := range idx.FileModules() {
		fr := res.File(mod.Filename)
		if fr == nil {
			continue
		}
		d.scanReferences(fr, d.rep.Accepted)
		d.scanLiterals(mod.File, d.rep.Accepted)
	}
	move.SortDiagnostics(d.rep.Diagnostics)
	return d.rep
}

type scanner struct {
	idx      *index.Index
	res      *resolver.Result
	rep      *Report
	excluded map[int]bool
}

func (d *scanner) report(diag move.Diagnostic) {
	d.rep.Diagnostics = append(d.rep.Diagnostics, diag)
}

func (d *scanner) exclude(s move.Spec, kind move.DiagnosticKind, format string, args ...any) {
	d.excluded[s.ID] = true
	d.report(move.NewDiagnostic(kind, d.location(s.Source), s.ID, format, args...))
}

// location points at the source's definition, or its file for modules.
func (d *scanner) location(name string) parser.Location {
	if sym := d.idx.Symbol(name); sym != nil {
		return sym.Definition.Location
	}
	if mod := d.idx.Module(name); mod != nil && mod.Filename != "" {
		return parser.Location{File: mod.Filename}
	}
	return parser.Location{}
}

func (d *scanner) checkValid(specs []move.Spec) {
	for i, s := range specs {
		if err := d.validate(s); err != "" {
			d.exclude(s, move.InvalidMove, "%s: %s", s, err)
			continue
		}
		for _, prev := range specs[:i] {
			if d.excluded[prev.ID] {
				continue
			}
			if util.DottedHasPrefix(s.Source, prev.Source) || util.DottedHasPrefix(prev.Source, s.Source) {
				d.exclude(s, move.InvalidMove, "%s: overlaps %s in the same batch", s, prev)
				break
			}
		}
	}
}

func (d *scanner) validate(s move.Spec) string {
	if s.Source == s.Destination {
		return "source and destination are the same"
	}
	parent := util.DottedParent(s.Destination)
	switch s.Kind {
	case move.KindSymbol:
		if !d.idx.IsSymbol(s.Source) {
			return "no such symbol"
		}
		if parent == "" {
			return "a symbol destination needs a module"
		}
		if d.idx.IsSymbol(parent) {
			return parent + " is not a module"
		}
		if mod := d.idx.Module(parent); mod != nil && mod.File == nil {
			return "cannot move a symbol into namespace package " + parent
		}
	case move.KindModule:
		if !d.idx.IsModule(s.Source) {
			return "no such module"
		}
		if util.DottedHasPrefix(s.Destination, s.Source) {
			return "cannot move a module into itself"
		}
		if parent != "" {
			if d.idx.IsSymbol(parent) {
				return parent + " is not a package"
			}
			if mod := d.idx.Module(parent); mod != nil && !mod.IsPackage {
				return parent + " is not a package"
			}
		}
	}
	return ""
}

func (d *scanner) checkCollisions(specs []move.Spec) {
	byDest := make(map[string][]move.Spec)
	for _, s := range specs {
		if !d.excluded[s.ID] {
			byDest[s.Destination] = append(byDest[s.Destination], s)
		}
	}
	for _, dest := range util.SortedKeys(byDest) {
		group := byDest[dest]
		if len(group) < 2 {
			continue
		}
		for _, s := range group {
			d.exclude(s, move.BatchCollision, "%s: %d moves in this batch target %s", s, len(group), dest)
		}
	}
}

// checkConflicts excludes moves onto an existing name, unless that name is
// itself moving away in the same batch.
func (d *scanner) checkConflicts(specs []move.Spec) {
	for _, s := range specs {
		if d.excluded[s.ID] || !d.idx.Exists(s.Destination) {
			continue
		}
		vacated := false
		for _, other := range specs {
			if other.ID != s.ID && !d.excluded[other.ID] && util.DottedHasPrefix(s.Destination, other.Source) {
				vacated = true
				break
			}
		}
		if !vacated {
			d.exclude(s, move.DestinationConflict, "%s: %s already exists", s, s.Destination)
		}
	}
}

func (d *scanner) scanReferences(fr *resolver.FileResult, specs []move.Spec) {
	for _, ref := range fr.Refs {
		loc := fr.Usage(ref).Location
		for _, s := range specs {
			switch {
			case ref.Path == resolver.Implicit && util.DottedHasPrefix(ref.Target, s.Source):
				mod := d.idx.DeepestModule(ref.Target)
				d.report(move.NewDiagnostic(move.PossibleImplicitUse, loc, s.ID,
					"%s is only reachable because another file imports %s; add `import %s` and re-run",
					ref.Dotted(), mod, mod))
			case ref.Cause == resolver.CauseWildcard && ref.Chain[0] == util.DottedTail(s.Source):
				for _, w := range ref.Wildcards {
					if w == util.DottedParent(s.Source) {
						d.report(move.NewDiagnostic(move.WildcardAmbiguity, loc, s.ID,
							"%s may come from `from %s import *`; fix it by hand", ref.Chain[0], w))
						break
					}
				}
			case ref.Cause == resolver.CauseNotLoaded && util.DottedHasPrefix(ref.Target, s.Source):
				d.report(move.NewDiagnostic(move.UnresolvedReference, loc, s.ID,
					"%s refers to %s, which nothing imports", ref.Dotted(), d.idx.DeepestModule(ref.Target)))
			case ref.Cause == resolver.CauseUnknown && util.DottedHasPrefix(ref.Dotted(), s.Source):
				d.report(move.NewDiagnostic(move.UnresolvedReference, loc, s.ID,
					"%s is not bound in this file", ref.Dotted()))
			}
		}
	}
}

func (d *scanner) scanLiterals(file *parser.File, specs []move.Spec) {
	for _, lit := range file.Literals {
		for _, s := range specs {
			if containsDotted(lit.Text, s.Source) {
				what := "string"
				if lit.Comment {
					what = "comment"
				}
				d.report(move.NewDiagnostic(move.StringReference, lit.Location, s.ID,
					"%s mentions %s and will not be updated", what, s.Source))
			}
		}
	}
}

// containsDotted reports whether name occurs in text as a whole dotted
// path, possibly followed by more attributes.
func containsDotted(text, name string) bool {
	for off := 0; ; {
		i := strings.Index(text[off:], name)
		if i < 0 {
			return false
		}
		start := off + i
		end := start + len(name)
		before := start == 0 || !(isIdentByte(text[start-1]) || text[start-1] == '.')
		after := end == len(text) || !isIdentByte(text[end])
		if before && after {
			return true
		}
		off = start + 1
	}
}

func isIdentByte(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b >= 0x80
}
