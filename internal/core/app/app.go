// Package app runs a batch of moves end to end: it indexes the workspace,
// resolves references, checks the batch, plans the edits and writes them.
package app

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"relocate/internal/core/config"
	"relocate/internal/core/errors"
	"relocate/internal/core/ports"
	"relocate/internal/engine/detector"
	"relocate/internal/engine/index"
	"relocate/internal/engine/move"
	"relocate/internal/engine/parser"
	"relocate/internal/engine/planner"
	"relocate/internal/engine/resolver"
	"relocate/internal/engine/rewriter"
	"relocate/internal/shared/observability"

	"github.com/google/uuid"
)

type App struct {
	Config    *config.Config
	Parser    ports.CodeParser
	Workspace ports.Workspace
	// SourceRoots are relative to the workspace root.
	SourceRoots []string
}

func New(cfg *config.Config, ws ports.Workspace, sourceRoots []string) (*App, error) {
	if cfg == nil {
		return nil, errors.New(errors.CodeValidationError, "config is required")
	}
	if ws == nil {
		return nil, errors.New(errors.CodeValidationError, "workspace is required")
	}
	loader, err := parser.NewGrammarLoader()
	if err != nil {
		return nil, err
	}
	return &App{
		Config:      cfg,
		Parser:      parser.NewParser(loader),
		Workspace:   ws,
		SourceRoots: sourceRoots,
	}, nil
}

// fileChange is one file's before and after state.
type fileChange struct {
	from, to      string
	before, after []byte
	created       bool
	removed       bool
}

func (a *App) run(ctx context.Context, req ports.MoveRequest) (*ports.MoveResult, error) {
	runID := uuid.NewString()
	logger := slog.Default().With("run_id", runID)
	workers := a.Config.Run.Workers
	start := time.Now()

	files, err := a.Workspace.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := index.Build(ctx, a.Parser, files, index.Options{SourceRoots: a.SourceRoots, Workers: workers})
	if err != nil {
		return nil, err
	}
	specs, err := Expand(idx, req.Sources, req.Destination, req.Alias, req.Automove)
	if err != nil {
		return nil, err
	}
	for _, s := range specs {
		logger.Debug("move requested", "id", s.ID, "move", s.String())
	}

	res, err := resolver.Resolve(ctx, idx, workers)
	if err != nil {
		return nil, err
	}
	rep := detector.Scan(idx, res, specs)
	for _, s := range rep.Excluded {
		logger.Warn("move excluded", "move", s.String())
	}

	plan, err := planner.Plan(ctx, idx, res, rep.Accepted, planner.Options{
		KeepMarkers: a.Config.Move.KeepMarkers,
		Workers:     workers,
	})
	if err != nil {
		return nil, err
	}

	result := &ports.MoveResult{RunID: runID, Moves: rep.Accepted, FileMoves: plan.FileMoves, FileRemovals: plan.Removals}
	result.Diagnostics = append(append(result.Diagnostics, rep.Diagnostics...), plan.Diagnostics...)
	move.SortDiagnostics(result.Diagnostics)
	for _, d := range result.Diagnostics {
		observability.DiagnosticsTotal.WithLabelValues(string(d.Kind)).Inc()
	}

	changes, err := a.changes(ctx, files, plan, workers)
	if err != nil {
		return nil, err
	}
	for _, c := range changes {
		result.FilesChanged = append(result.FilesChanged, c.to)
	}
	sort.Strings(result.FilesChanged)
	observability.FilesChanged.Set(float64(len(changes)))

	if req.DryRun || a.Config.Run.Diff {
		result.Diff, err = renderDiff(changes)
		if err != nil {
			return nil, err
		}
	}
	if !req.DryRun {
		if err := a.apply(ctx, changes, plan); err != nil {
			return nil, err
		}
	}

	logger.Info("move finished",
		"moves", len(rep.Accepted),
		"excluded", len(rep.Excluded),
		"files_changed", len(changes),
		"file_moves", len(plan.FileMoves),
		"removals", len(plan.Removals),
		"diagnostics", len(result.Diagnostics),
		"dry_run", req.DryRun,
		"duration", time.Since(start),
	)
	return result, nil
}

// changes applies the plan in memory and lists every file whose content or
// path differs afterwards.
func (a *App) changes(ctx context.Context, files []ports.SourceFile, plan *planner.EditPlan, workers int) ([]fileChange, error) {
	raw := make(map[string][]rewriter.Edit, len(plan.Files))
	for path, fp := range plan.Files {
		raw[path] = fp.Edits
	}
	edits, err := rewriter.MaterializeAll(ctx, raw, workers)
	if err != nil {
		return nil, err
	}

	final := finalPaths(plan.FileMoves)
	removed := make(map[string]bool, len(plan.Removals))
	for _, path := range plan.Removals {
		removed[path] = true
	}
	var out []fileChange
	for _, sf := range files {
		if removed[sf.Path] {
			out = append(out, fileChange{from: sf.Path, to: sf.Path, before: sf.Content, removed: true})
			continue
		}
		to := sf.Path
		if dest, ok := final[sf.Path]; ok {
			to = dest
		}
		fileEdits, edited := edits[sf.Path]
		if !edited && to == sf.Path {
			continue
		}
		after := rewriter.Apply(sf.Content, fileEdits)
		out = append(out, fileChange{from: sf.Path, to: to, before: sf.Content, after: after})
	}
	for _, nf := range plan.NewFiles {
		out = append(out, fileChange{from: nf.Path, to: nf.Path, after: nf.Content, created: true})
	}
	return out, nil
}

// finalPaths follows ordered file moves, temporary names included, to the
// path each original file ends up at.
func finalPaths(moves []ports.FileMove) map[string]string {
	origin := map[string]string{}
	for _, m := range moves {
		orig, ok := origin[m.From]
		if !ok {
			orig = m.From
		}
		delete(origin, m.From)
		origin[m.To] = orig
	}
	out := make(map[string]string, len(origin))
	for path, orig := range origin {
		out[orig] = path
	}
	return out
}

func renderDiff(changes []fileChange) (string, error) {
	var diff string
	for _, c := range changes {
		after := c.after
		if c.removed {
			after = nil
		}
		d, err := rewriter.UnifiedDiff(c.from, c.to, c.before, after)
		if err != nil {
			return "", err
		}
		diff += d
	}
	return diff, nil
}

// apply writes edited files in place, removes emptied ones, then performs
// the file moves in order, then creates new files.
func (a *App) apply(ctx context.Context, changes []fileChange, plan *planner.EditPlan) error {
	for _, c := range changes {
		if c.created || c.removed || string(c.before) == string(c.after) {
			continue
		}
		if err := a.Workspace.WriteFile(ctx, c.from, c.after); err != nil {
			return err
		}
	}
	for _, path := range plan.Removals {
		if err := a.Workspace.RemoveFile(ctx, path); err != nil {
			return errors.AddContext(err, errors.CtxOperation, "remove "+path)
		}
	}
	for _, m := range plan.FileMoves {
		if err := a.Workspace.MoveFile(ctx, m.From, m.To); err != nil {
			return errors.AddContext(err, errors.CtxOperation, "move "+m.From+" -> "+m.To)
		}
	}
	for _, c := range changes {
		if !c.created {
			continue
		}
		if err := a.Workspace.WriteFile(ctx, c.to, c.after); err != nil {
			return err
		}
	}
	return nil
}
