package ports

import (
	"context"

	"relocate/internal/engine/move"
	"relocate/internal/engine/parser"
)

// CodeParser abstracts source parsing and language-file support checks.
type CodeParser interface {
	ParseFile(path string, content []byte) (*parser.File, error)
	IsSupportedPath(filePath string) bool
	SupportedExtensions() []string
}

// SourceFile is one project file as handed to the index. Path is slash
// separated and relative to the project root.
type SourceFile struct {
	Path    string
	Content []byte
}

// FileMove relocates a whole file, keeping its permissions.
type FileMove struct {
	From string
	To   string
}

// Workspace is the file-system collaborator: it enumerates project sources
// and writes results back.
type Workspace interface {
	Root() string
	ListSources(ctx context.Context) ([]SourceFile, error)
	Exists(ctx context.Context, path string) (bool, error)
	WriteFile(ctx context.Context, path string, content []byte) error
	MoveFile(ctx context.Context, from, to string) error
	RemoveFile(ctx context.Context, path string) error
}

// MoveRequest defines a move operation for driving adapters.
type MoveRequest struct {
	Sources     []string
	Destination string
	Alias       string
	Automove    bool
	DryRun      bool
}

// MoveResult summarizes a completed move.
type MoveResult struct {
	RunID        string
	Moves        []move.Spec
	Diagnostics  []move.Diagnostic
	FilesChanged []string
	FileMoves    []FileMove
	// FileRemovals are modules deleted because automove emptied them.
	FileRemovals []string
	// Diff holds unified diffs when the request was a dry run.
	Diff string
}

// MoveService is the driving port used by the CLI.
type MoveService interface {
	Move(ctx context.Context, req MoveRequest) (*MoveResult, error)
}
