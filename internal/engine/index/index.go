package index

import (
	"context"
	"log/slog"
	"path"
	"sort"
	"time"

	"relocate/internal/core/ports"
	"relocate/internal/engine/parser"
	"relocate/internal/shared/observability"
	"relocate/internal/shared/util"

	"golang.org/x/sync/errgroup"
)

// Module is a unit addressable by a dotted path: a .py file, a package's
// __init__.py, or a bare directory acting as a namespace package.
type Module struct {
	Path      string
	Filename  string
	IsPackage bool
	// File is nil for namespace packages.
	File    *parser.File
	Symbols map[string]*Symbol

	dir string
}

// Dir is the directory holding a package's children, or the directory
// containing a plain module's file.
func (m *Module) Dir() string {
	return m.dir
}

type Symbol struct {
	Module     string
	Name       string
	Definition parser.Definition
}

func (s *Symbol) FullName() string {
	return s.Module + "." + s.Name
}

// FileFailure records a file left out of the index.
type FileFailure struct {
	Path string
	Err  error
}

// Index is the immutable, project-wide view shared by every later stage.
type Index struct {
	Modules   map[string]*Module
	Files     map[string]*Module
	Symbols   map[string]*Symbol
	Namespace *SharedNamespace
	Namer     *ModuleNamer
	Failures  []FileFailure
}

type Options struct {
	SourceRoots []string
	Workers     int
}

type parsed struct {
	file      *parser.File
	module    string
	isPackage bool
	err       error
}

// Build parses every file on a bounded worker pool, then merges the results
// and computes the shared-namespace table. Parse failures exclude the file
// and are reported in Failures.
func Build(ctx context.Context, p ports.CodeParser, files []ports.SourceFile, opts Options) (*Index, error) {
	ctx, span := observability.Tracer.Start(ctx, "index.Build")
	defer span.End()
	start := time.Now()
	defer func() {
		observability.StageDuration.WithLabelValues("index").Observe(time.Since(start).Seconds())
	}()

	namer := NewModuleNamer(opts.SourceRoots)
	results := make([]parsed, len(files))

	g, gctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, sf := range files {
		i, sf := i, sf
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			name, isPackage, ok := namer.ModuleName(sf.Path)
			if !ok {
				return nil
			}
			file, err := p.ParseFile(sf.Path, sf.Content)
			results[i] = parsed{file: file, module: name, isPackage: isPackage, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := &Index{
		Modules:   make(map[string]*Module),
		Files:     make(map[string]*Module),
		Symbols:   make(map[string]*Symbol),
		Namespace: NewSharedNamespace(),
		Namer:     namer,
	}
	for i, res := range results {
		switch {
		case res.err != nil:
			slog.Warn("failed to index file", "path", files[i].Path, "error", res.err)
			observability.ParseFailuresTotal.Inc()
			idx.Failures = append(idx.Failures, FileFailure{Path: files[i].Path, Err: res.err})
		case res.file != nil:
			idx.add(res.module, res.isPackage, res.file)
			observability.FilesIndexedTotal.Inc()
		}
	}
	sort.Slice(idx.Failures, func(i, j int) bool { return idx.Failures[i].Path < idx.Failures[j].Path })
	idx.addNamespacePackages()
	idx.buildNamespace()

	slog.Debug("index built",
		"modules", len(idx.Modules),
		"symbols", len(idx.Symbols),
		"failures", len(idx.Failures),
		"heap_mb", util.HeapMB(),
	)
	return idx, nil
}

func (idx *Index) add(name string, isPackage bool, file *parser.File) {
	if existing, ok := idx.Modules[name]; ok && existing.File != nil {
		// foo.py next to foo/__init__.py: Python imports the package.
		if existing.IsPackage || !isPackage {
			slog.Warn("duplicate module, keeping first", "module", name, "kept", existing.Filename, "dropped", file.Path)
			return
		}
		delete(idx.Files, existing.Filename)
	}
	mod := &Module{
		Path:      name,
		Filename:  file.Path,
		IsPackage: isPackage,
		File:      file,
		Symbols:   make(map[string]*Symbol),
		dir:       path.Dir(file.Path),
	}
	for _, def := range file.Definitions {
		sym := &Symbol{Module: name, Name: def.Name, Definition: def}
		// A later rebinding of the same top-level name wins, like at runtime.
		mod.Symbols[def.Name] = sym
	}
	idx.Modules[name] = mod
	idx.Files[file.Path] = mod
}

func (idx *Index) addNamespacePackages() {
	for _, name := range util.SortedKeys(idx.Modules) {
		mod := idx.Modules[name]
		// dir is the children directory of the module's parent.
		dir := path.Dir(mod.Filename)
		if mod.IsPackage {
			dir = path.Dir(dir)
		}
		parent := util.DottedParent(name)
		for parent != "" {
			if _, ok := idx.Modules[parent]; !ok {
				idx.Modules[parent] = &Module{
					Path:      parent,
					IsPackage: true,
					Symbols:   map[string]*Symbol{},
					dir:       dir,
				}
			}
			parent = util.DottedParent(parent)
			dir = path.Dir(dir)
		}
	}
	for _, mod := range idx.Modules {
		for _, sym := range mod.Symbols {
			idx.Symbols[sym.FullName()] = sym
		}
	}
}

// buildNamespace records every module any file imports. Importing a module
// loads all of its parents too.
func (idx *Index) buildNamespace() {
	for _, mod := range idx.Modules {
		if mod.File == nil {
			continue
		}
		for _, stmt := range mod.File.Imports {
			for _, target := range idx.LoadedModules(mod, stmt) {
				idx.Namespace.Add(target)
			}
		}
	}
}

// LoadedModules lists the modules an import statement causes to be loaded.
func (idx *Index) LoadedModules(mod *Module, stmt parser.ImportStatement) []string {
	switch stmt.Kind {
	case parser.ImportModule:
		out := make([]string, 0, len(stmt.Clauses))
		for _, c := range stmt.Clauses {
			out = append(out, c.Name)
		}
		return out
	case parser.ImportFrom:
		base, ok := idx.FromModule(mod, stmt)
		if !ok {
			return nil
		}
		out := []string{}
		if base != "" {
			out = append(out, base)
		}
		for _, c := range stmt.Clauses {
			full := util.DottedJoin(base, c.Name)
			if idx.IsModule(full) {
				out = append(out, full)
			}
		}
		return out
	}
	return nil
}

// FromModule resolves the absolute module a from-import reads from.
func (idx *Index) FromModule(mod *Module, stmt parser.ImportStatement) (string, bool) {
	if stmt.Level == 0 {
		return stmt.Module, stmt.Module != ""
	}
	return ResolveRelative(mod.Path, mod.IsPackage, stmt.Level, stmt.Module)
}

func (idx *Index) Module(name string) *Module { return idx.Modules[name] }

func (idx *Index) Symbol(fullname string) *Symbol { return idx.Symbols[fullname] }

func (idx *Index) IsModule(name string) bool {
	_, ok := idx.Modules[name]
	return ok
}

func (idx *Index) IsSymbol(name string) bool {
	_, ok := idx.Symbols[name]
	return ok
}

// Exists reports whether name denotes a module or symbol in the project.
func (idx *Index) Exists(name string) bool {
	return idx.IsModule(name) || idx.IsSymbol(name)
}

// LongestKnownPrefix returns the longest prefix of name that is a module or
// symbol, or "" when none is.
func (idx *Index) LongestKnownPrefix(name string) string {
	prefixes := util.DottedPrefixes(name)
	for i := len(prefixes) - 1; i >= 0; i-- {
		if idx.Exists(prefixes[i]) {
			return prefixes[i]
		}
	}
	return ""
}

// DeepestModule returns the longest prefix of name that is a module.
func (idx *Index) DeepestModule(name string) string {
	prefixes := util.DottedPrefixes(name)
	for i := len(prefixes) - 1; i >= 0; i-- {
		if idx.IsModule(prefixes[i]) {
			return prefixes[i]
		}
	}
	return ""
}

// FileModules returns the file-backed modules sorted by filename.
func (idx *Index) FileModules() []*Module {
	out := make([]*Module, 0, len(idx.Files))
	for _, name := range util.SortedKeys(idx.Files) {
		out = append(out, idx.Files[name])
	}
	return out
}

// ModulesUnder returns the file-backed modules at or beneath name, sorted.
func (idx *Index) ModulesUnder(name string) []*Module {
	var out []*Module
	for _, mod := range idx.FileModules() {
		if util.DottedHasPrefix(mod.Path, name) {
			out = append(out, mod)
		}
	}
	return out
}
