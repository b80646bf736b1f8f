package planner

import (
	"sort"
	"strings"

	"relocate/internal/engine/index"
	"relocate/internal/engine/move"
	"relocate/internal/engine/parser"
	"relocate/internal/engine/resolver"
	"relocate/internal/engine/rewriter"
	"relocate/internal/shared/util"
)

type clauseKey struct {
	stmt   int
	clause int
}

type clauseAction int

const (
	actionKeep clauseAction = iota
	// actionRetarget rewrites the clause in place to the renamed target.
	actionRetarget
	// actionDrop removes the clause; its references get a fresh import.
	actionDrop
)

type clauseState struct {
	target    string
	newTarget string
	action    clauseAction
	// mode overrides the alias mode for references through a dropped clause.
	mode string
	spec *move.Spec
	// uses counts references bound through the clause; remaining those that
	// still are after rewriting. moved counts uses inside relocated regions.
	uses          int
	moved         int
	remaining     int
	rootRemaining int
	// inRegion marks clauses of imports inside a relocated definition.
	inRegion bool
}

// binding is a module-level name the file can spell targets through.
type binding struct {
	local  string
	target string
	key    *clauseKey
}

type addedImport struct {
	text string
	from bool
}

// region is a symbol definition leaving its file.
type region struct {
	spec *move.Spec
	src  *fileState
	def  parser.Definition
}

type fileState struct {
	p         *planner
	path      string
	mod       *index.Module
	file      *parser.File
	fr        *resolver.FileResult
	module    string
	isPackage bool

	clauses  map[clauseKey]*clauseState
	bindings []binding
	added    []addedImport
	addedSet map[string]bool
	regions  []*region
	edits    []rewriter.Edit
	// deletions are relocated regions; neighbours may touch after widening.
	deletions []parser.Span
	inserts   map[int]string
	appended  []string
	kept      map[int]bool
	diags     []move.Diagnostic
}

func newFileState(p *planner, mod *index.Module, fr *resolver.FileResult) *fileState {
	module, _ := p.rename(mod.Path)
	return &fileState{
		p:         p,
		path:      mod.Filename,
		mod:       mod,
		file:      mod.File,
		fr:        fr,
		module:    module,
		isPackage: mod.IsPackage,
		clauses:   map[clauseKey]*clauseState{},
		addedSet:  map[string]bool{},
		inserts:   map[int]string{},
		kept:      map[int]bool{},
	}
}

func (fs *fileState) report(kind move.DiagnosticKind, loc parser.Location, moveID int, format string, args ...any) {
	fs.diags = append(fs.diags, diag(kind, loc, moveID, format, args...))
}

// prepare decides what happens to every import clause and rewrites the
// references outside relocated regions.
func (fs *fileState) prepare() {
	fs.findRegions()
	fs.decideClauses()
	fs.collectBindings()
	fs.rewriteReferences()
}

func (fs *fileState) findRegions() {
	for i := range fs.p.specs {
		s := &fs.p.specs[i]
		if s.Kind != move.KindSymbol || !s.Automove {
			continue
		}
		sym := fs.p.idx.Symbol(s.Source)
		if sym == nil || sym.Module != fs.mod.Path {
			continue
		}
		if util.DottedParent(s.Destination) == sym.Module {
			// Same-module rename: only the name token changes here.
			if name := util.DottedTail(s.Destination); name != sym.Name {
				fs.edits = append(fs.edits, rewriter.Edit{Span: sym.Definition.NameSpan, Text: name})
			}
			continue
		}
		fs.regions = append(fs.regions, &region{spec: s, src: fs, def: sym.Definition})
	}
}

func (fs *fileState) regionAt(span parser.Span) *region {
	for _, r := range fs.regions {
		if r.def.Region.Contains(span) {
			return r
		}
	}
	return nil
}

// context returns the module and package-ness code at span will have after
// the batch: relocated regions live in their destination module.
func (fs *fileState) context(span parser.Span) (string, bool) {
	if r := fs.regionAt(span); r != nil {
		dest := util.DottedParent(r.spec.Destination)
		if mod := fs.p.idx.Module(dest); mod != nil {
			return dest, mod.IsPackage
		}
		return dest, false
	}
	return fs.module, fs.isPackage
}

func (fs *fileState) decideClauses() {
	uses, moved := map[clauseKey]int{}, map[clauseKey]int{}
	for _, ref := range fs.fr.Refs {
		if ref.Binding.Kind != resolver.BindImport {
			continue
		}
		key := clauseKey{ref.Binding.Statement, ref.Binding.Clause}
		if fs.regionAt(fs.fr.Usage(ref).Span()) != nil {
			moved[key]++
			continue
		}
		uses[key]++
	}

	for si, stmt := range fs.file.Imports {
		if stmt.Kind == parser.ImportFuture || stmt.Wildcard {
			continue
		}
		base := ""
		if stmt.Kind == parser.ImportFrom {
			b, ok := fs.p.idx.FromModule(fs.mod, stmt)
			if !ok {
				continue
			}
			base = b
		}
		ctxModule, _ := fs.context(stmt.Span)
		inRegion := fs.regionAt(stmt.Span) != nil

		for ci, c := range stmt.Clauses {
			key := clauseKey{si, ci}
			target := c.Name
			if stmt.Kind == parser.ImportFrom {
				target = util.DottedJoin(base, c.Name)
			}
			cs := &clauseState{target: target, newTarget: target, uses: uses[key], moved: moved[key], inRegion: inRegion}
			fs.clauses[key] = cs

			renamed, spec := fs.p.rename(target)
			if spec == nil {
				continue
			}
			cs.newTarget, cs.spec, cs.action = renamed, spec, actionRetarget

			switch {
			case fs.selfImport(stmt, target, renamed, ctxModule):
				cs.action, cs.mode = actionDrop, move.AliasFrom
			case cs.uses == 0:
				// Nothing to respell; keep a side-effect import alive.
			case spec.AliasMode() != move.AliasAuto:
				cs.action, cs.mode = actionDrop, spec.AliasMode()
			case stmt.Kind == parser.ImportFrom && c.Alias == "" && util.DottedTail(renamed) != c.Name &&
				fs.boundInScope(stmt.Scope, util.DottedTail(renamed), key):
				fs.report(move.ImportAliasConflict, c.Location, spec.ID,
					"%s is already bound; importing %s by its full path", util.DottedTail(renamed), util.DottedParent(renamed))
				cs.action, cs.mode = actionDrop, move.AliasNone
			}
		}
	}
}

// selfImport reports whether a clause would import from the module the
// code itself lives in after the batch.
func (fs *fileState) selfImport(stmt parser.ImportStatement, target, renamed, module string) bool {
	if renamed == module {
		return true
	}
	return stmt.Kind == parser.ImportFrom && fs.p.isSymbol(target) && util.DottedParent(renamed) == module
}

// boundInScope reports whether name is bound in scope by anything other
// than the clause at key. Names the batch frees up do not count.
func (fs *fileState) boundInScope(scope int, name string, key clauseKey) bool {
	if fs.file.Scopes[scope].Bindings[name] && !(scope == 0 && fs.vacated(name)) {
		return true
	}
	if scope == 0 {
		if _, ok := fs.mod.Symbols[name]; ok && !fs.vacated(name) {
			return true
		}
	}
	for si, stmt := range fs.file.Imports {
		if stmt.Scope != scope {
			continue
		}
		for ci, c := range stmt.Clauses {
			if (clauseKey{si, ci}) == key || util.DottedRoot(c.LocalName()) != name {
				continue
			}
			if !fs.clauseRenamed(stmt, c) {
				return true
			}
		}
	}
	return false
}

// vacated reports whether a module-level definition stops being bound under
// name once the batch is applied.
func (fs *fileState) vacated(name string) bool {
	renamed, spec := fs.p.rename(util.DottedJoin(fs.mod.Path, name))
	if spec == nil {
		return false
	}
	return util.DottedTail(renamed) != name || spec.Automove && util.DottedParent(renamed) != fs.mod.Path
}

// clauseRenamed reports whether an unaliased from-import clause will bind a
// different name after the batch.
func (fs *fileState) clauseRenamed(stmt parser.ImportStatement, c parser.ImportClause) bool {
	if stmt.Kind != parser.ImportFrom || c.Alias != "" {
		return false
	}
	base, ok := fs.p.idx.FromModule(fs.mod, stmt)
	if !ok {
		return false
	}
	renamed, spec := fs.p.rename(util.DottedJoin(base, c.Name))
	return spec != nil && util.DottedTail(renamed) != c.Name
}

// collectBindings lists the module-level names the file will have after
// retargeting.
func (fs *fileState) collectBindings() {
	for si, stmt := range fs.file.Imports {
		if stmt.Scope != 0 {
			continue
		}
		for ci, c := range stmt.Clauses {
			key := clauseKey{si, ci}
			cs := fs.clauses[key]
			if cs == nil || cs.action == actionDrop {
				continue
			}
			b := binding{target: cs.newTarget, key: &key}
			switch {
			case c.Alias != "":
				b.local = c.Alias
			case stmt.Kind == parser.ImportModule:
				b.local = cs.newTarget
			default:
				b.local = util.DottedTail(cs.newTarget)
			}
			fs.bindings = append(fs.bindings, b)
		}
	}
}

func (fs *fileState) rewriteReferences() {
	for _, ref := range fs.fr.Refs {
		u := fs.fr.Usage(ref)
		if fs.regionAt(u.Span()) != nil {
			continue
		}
		var cs *clauseState
		if ref.Binding.Kind == resolver.BindImport {
			cs = fs.clauses[clauseKey{ref.Binding.Statement, ref.Binding.Clause}]
		}

		viaClause := true
		if ref.Path == resolver.Explicit && ref.Target != "" {
			if renamed, spec := fs.p.rename(ref.Target); spec != nil {
				var text string
				text, viaClause = fs.spellRef(fs, ref, renamed, spec, true)
				fs.replace(u, ref.TargetSegments, text)
			}
		}
		if cs != nil && viaClause {
			cs.remaining++
			if ref.Binding.Segments < util.DottedSegments(fs.file.Imports[ref.Binding.Statement].Clauses[ref.Binding.Clause].Name) {
				cs.rootRemaining++
			}
		}
	}
}

// replace rewrites the first n segments of a usage when text differs.
func (fs *fileState) replace(u parser.Usage, n int, text string) {
	if text == strings.Join(u.Chain[:n], ".") {
		return
	}
	fs.edits = append(fs.edits, rewriter.Edit{Span: u.PrefixSpan(n), Text: text})
}

// spellRef returns how a reference to renamed is written, and whether it
// still goes through its original import clause. New imports go to into.
func (fs *fileState) spellRef(into *fileState, ref resolver.Reference, renamed string, spec *move.Spec, allowClause bool) (string, bool) {
	mode := spec.AliasMode()
	if ref.Binding.Kind == resolver.BindImport {
		key := clauseKey{ref.Binding.Statement, ref.Binding.Clause}
		if cs := fs.clauses[key]; cs != nil {
			if allowClause && cs.action == actionRetarget {
				if text, ok := fs.throughClause(key, cs, ref, renamed); ok {
					return text, true
				}
			}
			if cs.mode != "" {
				mode = cs.mode
			}
		}
	}
	if mode == move.AliasAuto {
		mode = fs.autoMode(ref)
	}
	loc := fs.fr.Usage(ref).Location
	if ref.Binding.Kind == resolver.BindSymbol && mode == move.AliasFrom {
		return into.spellName(renamed, loc, spec.ID), false
	}
	return into.spell(renamed, fs.p.idx.IsModule(ref.Target), mode, loc, spec.ID), false
}

// throughClause spells renamed through a retargeted clause.
func (fs *fileState) throughClause(key clauseKey, cs *clauseState, ref resolver.Reference, renamed string) (string, bool) {
	stmt := fs.file.Imports[key.stmt]
	c := stmt.Clauses[key.clause]
	switch {
	case stmt.Kind == parser.ImportModule && c.Alias == "":
		full := ref.Binding.Segments == util.DottedSegments(c.Name)
		if util.DottedHasPrefix(renamed, cs.newTarget) ||
			!full && util.DottedRoot(renamed) == util.DottedRoot(cs.newTarget) {
			return renamed, true
		}
	case util.DottedHasPrefix(renamed, cs.newTarget):
		local := c.Alias
		if local == "" {
			local = util.DottedTail(cs.newTarget)
		}
		return local + renamed[len(cs.newTarget):], true
	}
	return "", false
}

// autoMode keeps the form of the import a reference came through.
func (fs *fileState) autoMode(ref resolver.Reference) string {
	if ref.Binding.Kind != resolver.BindImport {
		return move.AliasFrom
	}
	stmt := fs.file.Imports[ref.Binding.Statement]
	c := stmt.Clauses[ref.Binding.Clause]
	switch {
	case stmt.Kind == parser.ImportModule && c.Alias == "":
		return move.AliasNone
	case stmt.Kind == parser.ImportFrom && stmt.IsRelative():
		return move.AliasRelative
	}
	return move.AliasFrom
}

// spell writes target as seen from this file, reusing a binding when one
// covers it and adding an import otherwise.
func (fs *fileState) spell(target string, isModule bool, mode string, loc parser.Location, moveID int) string {
	if !isModule && util.DottedParent(target) == fs.module {
		return util.DottedTail(target)
	}
	mod := target
	if !isModule {
		mod = util.DottedParent(target)
	}
	if b, ok := fs.lookup(target, mod); ok {
		return b.local + target[len(b.target):]
	}
	local := fs.addImport(mod, mode, loc, moveID)
	return local + target[len(mod):]
}

// spellName writes a symbol by its bare name, importing it with a
// from-import when nothing binds it yet.
func (fs *fileState) spellName(target string, loc parser.Location, moveID int) string {
	parent, tail := util.DottedParent(target), util.DottedTail(target)
	if parent == fs.module {
		return tail
	}
	if b, ok := fs.lookup(target, target); ok {
		return b.local
	}
	if fs.conflicts(tail, target) {
		return fs.spell(target, false, move.AliasFrom, loc, moveID)
	}
	fs.addRaw("from "+parent+" import "+tail, true, tail, target)
	return tail
}

// lookup finds the binding spelling the longest prefix of target that is at
// least as deep as mod, and marks its clause as still used.
func (fs *fileState) lookup(target, mod string) (binding, bool) {
	best := -1
	for i, b := range fs.bindings {
		if !util.DottedHasPrefix(target, b.target) || !util.DottedHasPrefix(b.target, mod) {
			continue
		}
		if best < 0 || len(b.target) > len(fs.bindings[best].target) {
			best = i
		}
	}
	if best < 0 {
		return binding{}, false
	}
	b := fs.bindings[best]
	if b.key != nil {
		fs.clauses[*b.key].remaining++
	}
	return b, true
}

// conflicts reports whether local is already bound to something other than
// target at module level.
func (fs *fileState) conflicts(local, target string) bool {
	name := util.DottedRoot(local)
	dotted := local == target
	for _, b := range fs.bindings {
		if b.local == local && b.target == target {
			return false
		}
	}
	for _, b := range fs.bindings {
		if util.DottedRoot(b.local) != name {
			continue
		}
		// import a.b and import a.c share the root a.
		if dotted && b.local == b.target {
			continue
		}
		return true
	}
	if fs.file != nil && !fs.leaving(name) {
		if fs.file.Scopes[0].Bindings[name] {
			return true
		}
		if _, ok := fs.mod.Symbols[name]; ok {
			return true
		}
	}
	return false
}

// leaving reports whether the module-level definition name moves out of
// this file or is renamed within it.
func (fs *fileState) leaving(name string) bool {
	full := util.DottedJoin(fs.mod.Path, name)
	for _, s := range fs.p.specs {
		if s.Kind == move.KindSymbol && s.Automove && s.Source == full {
			return true
		}
	}
	return false
}

// addImport brings mod into scope in the requested form and returns the
// local spelling. A clash falls back to the full dotted import.
func (fs *fileState) addImport(mod, mode string, loc parser.Location, moveID int) string {
	local, text, from := fs.importForm(mod, mode)
	if fs.conflicts(local, mod) {
		fs.report(move.ImportAliasConflict, loc, moveID,
			"%s is already bound in %s; importing %s by its full path", util.DottedRoot(local), fs.path, mod)
		local, text, from = mod, "import "+mod, false
	}
	fs.addRaw(text, from, local, mod)
	return local
}

func (fs *fileState) addRaw(text string, from bool, local, target string) {
	if fs.addedSet[text] {
		return
	}
	fs.addedSet[text] = true
	fs.added = append(fs.added, addedImport{text: text, from: from})
	fs.bindings = append(fs.bindings, binding{local: local, target: target})
}

func (fs *fileState) importForm(mod, mode string) (local, text string, from bool) {
	parent, tail := util.DottedParent(mod), util.DottedTail(mod)
	switch mode {
	case move.AliasNone:
		return mod, "import " + mod, false
	case move.AliasRelative:
		if parent != "" {
			if rel, ok := relativeModule(fs.module, fs.isPackage, parent); ok {
				return tail, "from " + rel + " import " + tail, true
			}
		}
		return fs.importForm(mod, move.AliasFrom)
	case move.AliasFrom:
		if parent == "" {
			return mod, "import " + mod, false
		}
		return tail, "from " + parent + " import " + tail, true
	}
	alias := mode
	switch {
	case parent == "" && alias == mod:
		return mod, "import " + mod, false
	case parent == "":
		return alias, "import " + mod + " as " + alias, false
	case alias == tail:
		return tail, "from " + parent + " import " + tail, true
	}
	return alias, "from " + parent + " import " + tail + " as " + alias, true
}

// relativeModule spells target relative to the package holding module.
func relativeModule(module string, isPackage bool, target string) (string, bool) {
	pkg := module
	if !isPackage {
		pkg = util.DottedParent(module)
	}
	for level := 1; pkg != ""; level++ {
		dots := strings.Repeat(".", level)
		if target == pkg {
			return dots, true
		}
		if util.DottedHasPrefix(target, pkg) {
			return dots + target[len(pkg)+1:], true
		}
		pkg = util.DottedParent(pkg)
	}
	return "", false
}

// removed reports whether a clause disappears: dropped, or left without
// users by rewriting. Keep markers protect the latter.
func (fs *fileState) removed(key clauseKey) bool {
	cs := fs.clauses[key]
	if cs == nil {
		return false
	}
	if cs.action == actionDrop {
		return true
	}
	if cs.uses+cs.moved == 0 || cs.remaining > 0 || cs.inRegion {
		return false
	}
	stmt := fs.file.Imports[key.stmt]
	if marker := fs.keepMarker(stmt); marker != "" {
		if !fs.kept[key.stmt] {
			fs.kept[key.stmt] = true
			fs.report(move.KeptImport, stmt.Location, -1, "import kept because of %q", marker)
		}
		return false
	}
	return true
}

func (fs *fileState) keepMarker(stmt parser.ImportStatement) string {
	for _, m := range fs.p.opts.KeepMarkers {
		if m != "" && strings.Contains(stmt.LineText, m) {
			return m
		}
	}
	return ""
}

func (fs *fileState) lineEnding() string {
	if fs.file != nil && fs.file.LineEnding != "" {
		return fs.file.LineEnding
	}
	return "\n"
}

// insert queues text at off; texts for the same offset are concatenated in
// call order.
func (fs *fileState) insert(off int, text string) {
	fs.inserts[off] += text
}

func (fs *fileState) flushInserts() {
	offs := make([]int, 0, len(fs.inserts))
	for off := range fs.inserts {
		offs = append(offs, off)
	}
	sort.Ints(offs)
	for _, off := range offs {
		fs.edits = append(fs.edits, rewriter.Insert(off, fs.inserts[off]))
	}
	fs.inserts = map[int]string{}
}
