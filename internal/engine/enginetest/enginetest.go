// Package enginetest builds in-memory projects from txtar archives for the
// engine's tests.
package enginetest

import (
	"context"
	"strings"
	"testing"

	"relocate/internal/core/ports"
	"relocate/internal/engine/index"
	"relocate/internal/engine/parser"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"
)

// Sources turns an archive into project files. Leading indentation of the
// archive text is not stripped; write archives flush left.
func Sources(archive string) []ports.SourceFile {
	ar := txtar.Parse([]byte(strings.TrimLeft(archive, "\n")))
	files := make([]ports.SourceFile, 0, len(ar.Files))
	for _, f := range ar.Files {
		files = append(files, ports.SourceFile{Path: f.Name, Content: f.Data})
	}
	return files
}

// Files returns the archive as a path -> content map.
func Files(archive string) map[string]string {
	out := make(map[string]string)
	for _, sf := range Sources(archive) {
		out[sf.Path] = string(sf.Content)
	}
	return out
}

func NewParser(t testing.TB) *parser.Parser {
	t.Helper()
	loader, err := parser.NewGrammarLoader()
	require.NoError(t, err)
	return parser.NewParser(loader)
}

// Index parses the archive into a project index.
func Index(t testing.TB, archive string) *index.Index {
	t.Helper()
	idx, err := index.Build(context.Background(), NewParser(t), Sources(archive), index.Options{Workers: 4})
	require.NoError(t, err)
	return idx
}
