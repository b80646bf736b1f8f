package resolver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"relocate/internal/engine/index"
	"relocate/internal/engine/parser"
	"relocate/internal/shared/observability"
	"relocate/internal/shared/util"

	"golang.org/x/sync/errgroup"
)

// Resolve maps every usage site of every indexed file to its target. The
// index, including its shared-namespace table, must be complete; each file
// is resolved independently on a bounded pool.
func Resolve(ctx context.Context, idx *index.Index, workers int) (*Result, error) {
	ctx, span := observability.Tracer.Start(ctx, "resolver.Resolve")
	defer span.End()
	start := time.Now()
	defer func() {
		observability.StageDuration.WithLabelValues("resolve").Observe(time.Since(start).Seconds())
	}()

	mods := idx.FileModules()
	results := make([]*FileResult, len(mods))

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, mod := range mods {
		i, mod := i, mod
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = newFileResolver(idx, mod).resolveAll()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Files: make(map[string]*FileResult, len(mods))}
	counts := map[Path]int{}
	for _, fr := range results {
		res.Files[fr.Module.Filename] = fr
		for _, ref := range fr.Refs {
			counts[ref.Path]++
		}
	}
	for path, n := range counts {
		observability.UsagesResolvedTotal.WithLabelValues(path.String()).Add(float64(n))
	}
	slog.Debug("references resolved",
		"files", len(mods),
		"explicit", counts[Explicit],
		"implicit", counts[Implicit],
		"unresolved", counts[Unresolved],
	)
	return res, nil
}

type clauseRef struct {
	stmt   int
	clause int
}

type fileResolver struct {
	idx  *index.Index
	mod  *index.Module
	file *parser.File
	// clauses and wildcards are grouped by the scope that owns the import.
	clauses   map[int][]clauseRef
	wildcards map[int][]string
	loaded    map[string]bool
}

func newFileResolver(idx *index.Index, mod *index.Module) *fileResolver {
	r := &fileResolver{
		idx:       idx,
		mod:       mod,
		file:      mod.File,
		clauses:   make(map[int][]clauseRef),
		wildcards: make(map[int][]string),
		loaded:    make(map[string]bool),
	}
	for _, prefix := range util.DottedPrefixes(mod.Path) {
		r.loaded[prefix] = true
	}
	for si, stmt := range r.file.Imports {
		if stmt.Kind == parser.ImportFuture {
			continue
		}
		for _, name := range idx.LoadedModules(mod, stmt) {
			for _, prefix := range util.DottedPrefixes(name) {
				r.loaded[prefix] = true
			}
		}
		if stmt.Wildcard {
			if base, ok := idx.FromModule(mod, stmt); ok {
				r.wildcards[stmt.Scope] = append(r.wildcards[stmt.Scope], base)
			}
			continue
		}
		for ci := range stmt.Clauses {
			r.clauses[stmt.Scope] = append(r.clauses[stmt.Scope], clauseRef{stmt: si, clause: ci})
		}
	}
	return r
}

func (r *fileResolver) resolveAll() *FileResult {
	fr := &FileResult{
		Module: r.mod,
		Refs:   make([]Reference, len(r.file.Usages)),
		Loaded: r.loaded,
	}
	for i, u := range r.file.Usages {
		fr.Refs[i] = r.resolve(i, u)
	}
	return fr
}

// resolve walks the usage's scope chain outwards. Class bodies are only
// visible to the usage directly inside them.
func (r *fileResolver) resolve(i int, u parser.Usage) Reference {
	ref := Reference{Usage: i, Chain: u.Chain}
	n0 := u.Chain[0]
	var wildcards []string

	scope := u.Scope
	first := true
	for scope >= 0 {
		sc := r.file.Scopes[scope]
		if sc.Kind == parser.ScopeClass && !first {
			scope = sc.Parent
			continue
		}
		first = false
		if scope != 0 && sc.Globals[n0] {
			scope = 0
			continue
		}
		if b, ok := r.importBinding(scope, u.Chain); ok {
			return r.finish(ref, b)
		}
		if scope == 0 {
			if sym, ok := r.mod.Symbols[n0]; ok {
				return r.finish(ref, Binding{
					Kind:      BindSymbol,
					Statement: -1,
					Clause:    -1,
					Segments:  1,
					Target:    sym.FullName(),
				})
			}
		}
		if sc.Bindings[n0] {
			ref.Cause = CauseLocal
			return ref
		}
		wildcards = append(wildcards, r.wildcards[scope]...)
		scope = sc.Parent
	}

	ref.Wildcards = wildcards
	if len(wildcards) > 0 {
		ref.Cause = CauseWildcard
	} else {
		ref.Cause = CauseUnknown
	}
	return ref
}

// importBinding finds the import in scope binding the chain's first name.
// A dotted `import a.b` spells both segments when the chain starts with
// a.b and only the root otherwise. The longest spelling wins; later
// imports win ties.
func (r *fileResolver) importBinding(scope int, chain []string) (Binding, bool) {
	var best Binding
	found := false
	for _, cr := range r.clauses[scope] {
		stmt := r.file.Imports[cr.stmt]
		c := stmt.Clauses[cr.clause]
		b := Binding{Kind: BindImport, Statement: cr.stmt, Clause: cr.clause}

		switch stmt.Kind {
		case parser.ImportModule:
			if c.Alias != "" {
				if c.Alias != chain[0] {
					continue
				}
				b.Segments, b.Target = 1, c.Name
				break
			}
			segs := strings.Split(c.Name, ".")
			if segs[0] != chain[0] {
				continue
			}
			if hasPrefix(chain, segs) {
				b.Segments, b.Target = len(segs), c.Name
			} else {
				b.Segments, b.Target = 1, segs[0]
			}
		case parser.ImportFrom:
			if c.LocalName() != chain[0] {
				continue
			}
			base, ok := r.idx.FromModule(r.mod, stmt)
			if !ok {
				continue
			}
			b.Segments, b.Target = 1, util.DottedJoin(base, c.Name)
		default:
			continue
		}

		if !found || b.Segments >= best.Segments {
			best, found = b, true
		}
	}
	return best, found
}

func hasPrefix(chain, segs []string) bool {
	if len(chain) < len(segs) {
		return false
	}
	for i, s := range segs {
		if chain[i] != s {
			return false
		}
	}
	return true
}

// finish extends a binding with the rest of the chain and classifies the
// result.
func (r *fileResolver) finish(ref Reference, b Binding) Reference {
	ref.Binding = b
	full := util.DottedJoin(b.Target, strings.Join(ref.Chain[b.Segments:], "."))
	target := r.idx.LongestKnownPrefix(full)
	if target == "" || !util.DottedHasPrefix(target, b.Target) {
		ref.Cause = CauseExternal
		return ref
	}
	ref.Target = target
	ref.TargetSegments = b.Segments + util.DottedSegments(target) - util.DottedSegments(b.Target)

	// Reaching a submodule by attribute access needs it loaded somewhere.
	if mod := r.idx.DeepestModule(target); mod != b.Target && util.DottedHasPrefix(mod, b.Target) {
		switch {
		case r.loaded[mod]:
		case r.idx.Namespace.Loaded(mod):
			ref.Path = Implicit
			return ref
		default:
			ref.Cause = CauseNotLoaded
			return ref
		}
	}
	ref.Path = Explicit
	return ref
}
