// Package workspace is the file-system side of a run: it enumerates the
// project's Python sources and writes, moves and removes files on request.
package workspace

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"relocate/internal/core/errors"
	"relocate/internal/core/ports"
	"relocate/internal/shared/util"

	"github.com/gobwas/glob"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"
)

const defaultFileMode os.FileMode = 0o644

type Options struct {
	// Root is the absolute project root; every path the workspace hands out
	// or accepts is slash separated and relative to it.
	Root         string
	ExcludeDirs  []string
	ExcludeFiles []string
	// Supported filters which files are listed as sources.
	Supported func(path string) bool
}

type Workspace struct {
	fs        afs.Service
	root      string
	dirGlobs  []pattern
	fileGlobs []pattern
	supported func(string) bool
}

// pattern matches a base name, or the relative path when it has a separator.
type pattern struct {
	glob     glob.Glob
	fullPath bool
}

var _ ports.Workspace = (*Workspace)(nil)

func New(opts Options) (*Workspace, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return nil, errors.New(errors.CodeValidationError, "workspace root must not be empty")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "resolve workspace root")
	}
	dirGlobs, err := compilePatterns(opts.ExcludeDirs, "exclude dir")
	if err != nil {
		return nil, err
	}
	fileGlobs, err := compilePatterns(opts.ExcludeFiles, "exclude file")
	if err != nil {
		return nil, err
	}
	supported := opts.Supported
	if supported == nil {
		supported = func(p string) bool { return strings.HasSuffix(p, ".py") }
	}
	return &Workspace{
		fs:        afs.New(),
		root:      root,
		dirGlobs:  dirGlobs,
		fileGlobs: fileGlobs,
		supported: supported,
	}, nil
}

func compilePatterns(patterns []string, label string) ([]pattern, error) {
	out := make([]pattern, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, fmt.Sprintf("invalid %s pattern %q", label, p))
		}
		out = append(out, pattern{glob: g, fullPath: util.HasSeparator(p)})
	}
	return out, nil
}

func matchAny(patterns []pattern, rel string) bool {
	base := path.Base(rel)
	for _, p := range patterns {
		if p.fullPath && p.glob.Match(rel) || !p.fullPath && p.glob.Match(base) {
			return true
		}
	}
	return false
}

func (w *Workspace) Root() string { return w.root }

func (w *Workspace) abs(rel string) string {
	return filepath.Join(w.root, filepath.FromSlash(rel))
}

// ListSources walks the project and returns every supported, non-excluded
// file sorted by path.
func (w *Workspace) ListSources(ctx context.Context) ([]ports.SourceFile, error) {
	var files []ports.SourceFile
	var visitor storage.OnVisit = func(ctx context.Context, baseURL, parent string, info os.FileInfo, reader io.Reader) (bool, error) {
		rel := util.CleanPath(path.Join(parent, info.Name()))
		if info.IsDir() {
			return !matchAny(w.dirGlobs, rel), nil
		}
		if !w.supported(rel) || matchAny(w.fileGlobs, rel) {
			return true, nil
		}
		var content []byte
		var err error
		if reader != nil {
			content, err = io.ReadAll(reader)
		} else {
			content, err = w.fs.DownloadWithURL(ctx, w.abs(rel))
		}
		if err != nil {
			return false, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "read source"), errors.CtxPath, rel)
		}
		files = append(files, ports.SourceFile{Path: rel, Content: content})
		return true, nil
	}
	if err := w.fs.Walk(ctx, w.root, visitor); err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (w *Workspace) Exists(ctx context.Context, rel string) (bool, error) {
	return w.fs.Exists(ctx, w.abs(rel))
}

// WriteFile replaces a file's content, keeping its mode when it exists.
func (w *Workspace) WriteFile(ctx context.Context, rel string, content []byte) error {
	mode := defaultFileMode
	if obj, err := w.fs.Object(ctx, w.abs(rel)); err == nil {
		mode = obj.Mode().Perm()
	}
	if err := w.fs.Upload(ctx, w.abs(rel), mode, bytes.NewReader(content)); err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeInternal, "write file"), errors.CtxPath, rel)
	}
	return nil
}

// MoveFile relocates a file, creating the destination's directories and
// keeping its mode. Moving onto an existing file is a conflict.
func (w *Workspace) MoveFile(ctx context.Context, from, to string) error {
	if exists, err := w.Exists(ctx, to); err != nil {
		return err
	} else if exists {
		return errors.AddContext(errors.Newf(errors.CodeConflict, "cannot move %s: %s already exists", from, to), errors.CtxPath, to)
	}
	obj, err := w.fs.Object(ctx, w.abs(from))
	if err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "stat file"), errors.CtxPath, from)
	}
	content, err := w.fs.DownloadWithURL(ctx, w.abs(from))
	if err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeInternal, "read file"), errors.CtxPath, from)
	}
	if err := w.fs.Upload(ctx, w.abs(to), obj.Mode().Perm(), bytes.NewReader(content)); err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeInternal, "write file"), errors.CtxPath, to)
	}
	return w.RemoveFile(ctx, from)
}

func (w *Workspace) RemoveFile(ctx context.Context, rel string) error {
	if err := w.fs.Delete(ctx, w.abs(rel)); err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeInternal, "remove file"), errors.CtxPath, rel)
	}
	return nil
}
