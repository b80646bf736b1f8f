package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"relocate/internal/core/app"
	"relocate/internal/core/config"
	"relocate/internal/core/errors"
	"relocate/internal/core/ports"
	"relocate/internal/data/workspace"
	"relocate/internal/engine/move"
	"relocate/internal/shared/observability"
	"relocate/internal/shared/util"
	"relocate/internal/ui/report"

	"github.com/spf13/cobra"
)

func Run(args []string) int {
	return run(context.Background(), args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts cliOptions
	code := exitOK
	cmd := newRootCommand(&opts, func(cmd *cobra.Command, positional []string) error {
		code = execute(cmd.Context(), opts, positional, stdout, stderr)
		return nil
	})
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitFailed
	}
	return code
}

func execute(ctx context.Context, opts cliOptions, positional []string, stdout, stderr io.Writer) int {
	level := configureLogging(stderr, opts.verbose)

	cwd, err := os.Getwd()
	if err != nil {
		slog.Error("failed to detect working directory", "error", err)
		return exitInternal
	}

	cfg, cfgPath, err := loadConfig(opts.configPath, cwd)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return exitFailed
	}
	if !opts.verbose {
		level.Set(parseLevel(cfg.Log.Level))
	}
	applyFlagOverrides(opts, cfg)

	base := cwd
	if cfgPath != "" {
		base = filepath.Dir(cfgPath)
		slog.Debug("using config file", "path", cfgPath)
	}
	paths, err := config.ResolvePaths(cfg, base)
	if err != nil {
		slog.Error("failed to resolve project paths", "error", err)
		return exitFailed
	}
	sourceRoots, err := relativeRoots(paths)
	if err != nil {
		slog.Error("invalid source roots", "error", err)
		return exitFailed
	}

	shutdown, err := observability.SetupTracing(ctx, cfg.Observability.OTLPEndpoint, cfg.Observability.ServiceName)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
	} else {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Warn("failed to flush traces", "error", err)
			}
		}()
	}

	ws, err := workspace.New(workspace.Options{
		Root:         paths.ProjectRoot,
		ExcludeDirs:  cfg.Project.Exclude.Dirs,
		ExcludeFiles: cfg.Project.Exclude.Files,
	})
	if err != nil {
		slog.Error("failed to open workspace", "error", err)
		return exitCode(err)
	}
	a, err := app.New(cfg, ws, sourceRoots)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return exitCode(err)
	}

	req, err := buildRequest(positional, cwd, paths.ProjectRoot, cfg)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitFailed
	}
	res, err := a.MoveService().Move(ctx, req)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitCode(err)
	}

	if res.Diff != "" {
		fmt.Fprint(stdout, res.Diff)
	}
	printer := report.NewPrinter(stderr)
	printer.Diagnostics(res.Diagnostics)
	printer.Summary(res, req.DryRun)

	if paths.MetricsFile != "" {
		if err := observability.WriteTextfile(paths.MetricsFile); err != nil {
			slog.Warn("failed to write metrics file", "path", paths.MetricsFile, "error", err)
		}
	}
	if opts.report != "" {
		if err := report.WriteMarkdown(config.ResolveRelative(cwd, opts.report), res); err != nil {
			slog.Warn("failed to write report", "error", err)
		}
	}

	if move.Failing(res.Diagnostics) {
		return exitFailed
	}
	return exitOK
}

func exitCode(err error) int {
	switch errors.CodeOf(err) {
	case errors.CodeInternal, errors.CodeInvariant:
		return exitInternal
	}
	return exitFailed
}

// loadConfig reads an explicit config file, or looks for one in the
// project root detected from cwd.
func loadConfig(path, cwd string) (*config.Config, string, error) {
	if strings.TrimSpace(path) != "" {
		path = config.ResolveRelative(cwd, path)
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	root, err := config.DetectProjectRoot([]string{cwd})
	if err != nil {
		return nil, "", err
	}
	return config.LoadFromDir(root)
}

func applyFlagOverrides(opts cliOptions, cfg *config.Config) {
	if opts.alias != "" {
		cfg.Move.Alias = opts.alias
	}
	if opts.noAutomove {
		automove := false
		cfg.Move.Automove = &automove
	}
	if opts.dryRun {
		cfg.Run.DryRun = true
	}
	if opts.diff {
		cfg.Run.Diff = true
	}
	if opts.workers > 0 {
		cfg.Run.Workers = opts.workers
	}
}

func relativeRoots(paths config.ResolvedPaths) ([]string, error) {
	out := make([]string, 0, len(paths.SourceRoots))
	for _, abs := range paths.SourceRoots {
		rel, err := filepath.Rel(paths.ProjectRoot, abs)
		if err != nil {
			return nil, err
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out, nil
}

// buildRequest splits positional arguments into sources and destination.
// File-system arguments are rewritten relative to the project root.
func buildRequest(positional []string, cwd, root string, cfg *config.Config) (ports.MoveRequest, error) {
	if len(positional) < 2 {
		return ports.MoveRequest{}, errors.New(errors.CodeValidationError, "need at least one source and a destination")
	}
	args := make([]string, len(positional))
	for i, arg := range positional {
		norm, err := projectArg(arg, cwd, root)
		if err != nil {
			return ports.MoveRequest{}, err
		}
		args[i] = norm
	}
	if cfg.Move.Alias != "" && !config.ValidAlias(cfg.Move.Alias) {
		return ports.MoveRequest{}, errors.Newf(errors.CodeValidationError, "invalid alias %q", cfg.Move.Alias)
	}
	return ports.MoveRequest{
		Sources:     args[:len(args)-1],
		Destination: args[len(args)-1],
		Alias:       cfg.Move.Alias,
		Automove:    cfg.AutomoveEnabled(),
		DryRun:      cfg.Run.DryRun,
	}, nil
}

func projectArg(arg, cwd, root string) (string, error) {
	arg = strings.TrimSpace(arg)
	if !strings.HasSuffix(arg, ".py") && !util.HasSeparator(arg) {
		return arg, nil
	}
	abs := config.ResolveRelative(cwd, arg)
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.AddContext(
			errors.New(errors.CodeValidationError, "path is outside the project root"), errors.CtxPath, arg)
	}
	rel = filepath.ToSlash(rel)
	if util.HasSeparator(arg) && !strings.HasSuffix(arg, ".py") && !strings.Contains(rel, "/") {
		// Keep a lone directory recognizable as a path.
		rel += "/"
	}
	return rel, nil
}

func configureLogging(w io.Writer, verbose bool) *slog.LevelVar {
	level := new(slog.LevelVar)
	if verbose {
		level.Set(slog.LevelDebug)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return level
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
