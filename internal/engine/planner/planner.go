// Package planner computes the per-file edits that carry a batch of moves
// through the project: reference rewrites, import changes and, with
// automove, the relocation of the moved code itself.
package planner

import (
	"bytes"
	"context"
	"log/slog"
	"sort"
	"time"

	"relocate/internal/core/ports"
	"relocate/internal/engine/index"
	"relocate/internal/engine/move"
	"relocate/internal/engine/parser"
	"relocate/internal/engine/resolver"
	"relocate/internal/engine/rewriter"
	"relocate/internal/shared/observability"
	"relocate/internal/shared/util"

	"golang.org/x/sync/errgroup"
)

type Options struct {
	// KeepMarkers protect an import line from cleanup when it contains one.
	KeepMarkers []string
	Workers     int
}

// FilePlan holds the edits for one existing file, addressed by its path
// before any file moves.
type FilePlan struct {
	Path  string
	Edits []rewriter.Edit
}

// NewFile is a file the plan creates after all moves are done.
type NewFile struct {
	Path    string
	Content []byte
}

type EditPlan struct {
	Files map[string]*FilePlan
	// FileMoves run after Files are written, in order.
	FileMoves []ports.FileMove
	// Removals are modules automove left empty; they go before the moves.
	Removals    []string
	NewFiles    []NewFile
	Diagnostics []move.Diagnostic
}

// Empty reports whether applying the plan would change nothing.
func (p *EditPlan) Empty() bool {
	return len(p.Files) == 0 && len(p.FileMoves) == 0 && len(p.NewFiles) == 0 && len(p.Removals) == 0
}

// Plan computes the edits for moves that survived the detector. Files with
// nothing to change get no FilePlan.
func Plan(ctx context.Context, idx *index.Index, res *resolver.Result, specs []move.Spec, opts Options) (*EditPlan, error) {
	ctx, span := observability.Tracer.Start(ctx, "planner.Plan")
	defer span.End()
	start := time.Now()
	defer func() {
		observability.StageDuration.WithLabelValues("plan").Observe(time.Since(start).Seconds())
	}()

	p := newPlanner(idx, res, specs, opts)
	out := &EditPlan{Files: make(map[string]*FilePlan)}
	if len(specs) == 0 {
		return out, nil
	}

	if err := p.each(ctx, (*fileState).prepare); err != nil {
		return nil, err
	}
	if err := p.relocateRegions(); err != nil {
		return nil, err
	}
	if err := p.each(ctx, (*fileState).emit); err != nil {
		return nil, err
	}

	moves, err := p.moveModules()
	if err != nil {
		return nil, err
	}
	out.FileMoves = moves
	if out.Removals, err = p.emptiedModules(); err != nil {
		return nil, err
	}

	edits := 0
	for _, fs := range p.files {
		out.Diagnostics = append(out.Diagnostics, fs.diags...)
		if fs.file == nil {
			out.NewFiles = append(out.NewFiles, NewFile{Path: fs.path, Content: fs.content()})
			continue
		}
		if len(fs.edits) > 0 {
			out.Files[fs.path] = &FilePlan{Path: fs.path, Edits: fs.edits}
			edits += len(fs.edits)
		}
	}
	sort.Slice(out.NewFiles, func(i, j int) bool { return out.NewFiles[i].Path < out.NewFiles[j].Path })
	move.SortDiagnostics(out.Diagnostics)
	observability.EditsPlannedTotal.Add(float64(edits))

	slog.Debug("plan computed",
		"moves", len(specs),
		"files", len(out.Files),
		"edits", edits,
		"file_moves", len(out.FileMoves),
		"removals", len(out.Removals),
		"new_files", len(out.NewFiles),
	)
	return out, nil
}

type planner struct {
	idx   *index.Index
	res   *resolver.Result
	specs []move.Spec
	opts  Options
	// files holds existing files sorted by path, then files the plan creates.
	files    []*fileState
	byModule map[string]*fileState
}

func newPlanner(idx *index.Index, res *resolver.Result, specs []move.Spec, opts Options) *planner {
	p := &planner{
		idx:      idx,
		res:      res,
		specs:    specs,
		opts:     opts,
		byModule: make(map[string]*fileState),
	}
	for _, mod := range idx.FileModules() {
		fr := res.File(mod.Filename)
		if fr == nil {
			continue
		}
		fs := newFileState(p, mod, fr)
		p.files = append(p.files, fs)
		p.byModule[fs.module] = fs
	}
	return p
}

// each runs fn for every existing file on a bounded pool. fn may only touch
// its own file state.
func (p *planner) each(ctx context.Context, fn func(*fileState)) error {
	g, gctx := errgroup.WithContext(ctx)
	if p.opts.Workers > 0 {
		g.SetLimit(p.opts.Workers)
	}
	for _, fs := range p.files {
		if fs.file == nil {
			continue
		}
		fs := fs
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(fs)
			return nil
		})
	}
	return g.Wait()
}

// rename maps a dotted name through the batch. Sources are disjoint, so at
// most one move applies.
func (p *planner) rename(name string) (string, *move.Spec) {
	for i := range p.specs {
		s := &p.specs[i]
		if renamed, ok := util.DottedReplacePrefix(name, s.Source, s.Destination); ok {
			return renamed, s
		}
	}
	return name, nil
}

// destination returns the file that will hold module after the batch,
// creating an empty one when nothing does.
func (p *planner) destination(module string) *fileState {
	if fs, ok := p.byModule[module]; ok {
		return fs
	}
	fs := &fileState{
		p:        p,
		path:     p.idx.Namer.Filename(module, false),
		module:   module,
		clauses:  map[clauseKey]*clauseState{},
		addedSet: map[string]bool{},
		inserts:  map[int]string{},
	}
	p.files = append(p.files, fs)
	p.byModule[module] = fs
	return fs
}

// existsAfter reports whether module will exist once the batch is applied.
func (p *planner) existsAfter(module string) bool {
	if _, ok := p.byModule[module]; ok {
		return true
	}
	if mod := p.idx.Module(module); mod != nil && mod.File == nil {
		_, spec := p.rename(module)
		return spec == nil
	}
	return false
}

// ensurePackages creates an empty __init__.py for every missing parent
// package of module.
func (p *planner) ensurePackages(module string) {
	for _, pkg := range util.DottedPrefixes(util.DottedParent(module)) {
		if p.existsAfter(pkg) {
			continue
		}
		fs := p.destination(pkg)
		fs.path = p.idx.Namer.Filename(pkg, true)
		fs.isPackage = true
	}
}

func (p *planner) relocateRegions() error {
	var all []*region
	for _, fs := range p.files {
		all = append(all, fs.regions...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].spec.ID < all[j].spec.ID })
	for _, r := range all {
		if err := p.relocate(r); err != nil {
			return err
		}
	}
	return nil
}

// moveModules lists the file moves of automoved modules and creates the
// packages their destinations need.
func (p *planner) moveModules() ([]ports.FileMove, error) {
	var moves []ports.FileMove
	for _, s := range p.specs {
		if s.Kind != move.KindModule || !s.Automove {
			continue
		}
		for _, mod := range p.idx.ModulesUnder(s.Source) {
			to, _ := util.DottedReplacePrefix(mod.Path, s.Source, s.Destination)
			moves = append(moves, ports.FileMove{
				From: mod.Filename,
				To:   p.idx.Namer.Filename(to, mod.IsPackage),
			})
		}
		p.ensurePackages(s.Destination)
	}
	for _, s := range p.specs {
		if s.Kind == move.KindSymbol && s.Automove {
			p.ensurePackages(util.DottedParent(s.Destination))
		}
	}
	return orderMoves(moves)
}

func (p *planner) isSymbol(name string) bool {
	return p.idx.IsSymbol(name)
}

func diag(kind move.DiagnosticKind, loc parser.Location, moveID int, format string, args ...any) move.Diagnostic {
	return move.NewDiagnostic(kind, loc, moveID, format, args...)
}

// emptiedModules lists plain modules that automove leaves without any text
// and that nothing imports once the batch is applied.
func (p *planner) emptiedModules() ([]string, error) {
	var out []string
	for _, fs := range p.files {
		if fs.file == nil || fs.isPackage || fs.module != fs.mod.Path || len(fs.regions) == 0 || len(fs.appended) > 0 {
			continue
		}
		edits, err := rewriter.Materialize(fs.path, fs.edits)
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(rewriter.Apply(fs.file.Source, edits))) > 0 || p.stillImported(fs) {
			continue
		}
		out = append(out, fs.path)
	}
	sort.Strings(out)
	return out, nil
}

// stillImported reports whether any other file imports target's module, or
// something inside it, after the batch.
func (p *planner) stillImported(target *fileState) bool {
	for _, fs := range p.files {
		if fs == target {
			continue
		}
		for _, b := range fs.bindings {
			if b.key == nil && util.DottedHasPrefix(b.target, target.module) {
				return true
			}
		}
		if fs.file == nil {
			continue
		}
		for key, cs := range fs.clauses {
			if util.DottedHasPrefix(cs.newTarget, target.module) && !fs.removed(key) {
				return true
			}
		}
		for _, stmt := range fs.file.Imports {
			if !stmt.Wildcard {
				continue
			}
			if base, ok := p.idx.FromModule(fs.mod, stmt); ok && base == target.mod.Path {
				return true
			}
		}
	}
	return false
}
