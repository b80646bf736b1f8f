package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"relocate/internal/core/ports"
	"relocate/internal/engine/move"
	"relocate/internal/engine/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *ports.MoveResult {
	return &ports.MoveResult{
		RunID: "run-1",
		Moves: []move.Spec{{Source: "foo.bar", Destination: "newfoo.bar", Kind: move.KindModule}},
		FileMoves: []ports.FileMove{
			{From: "foo/bar.py", To: "newfoo/bar.py"},
		},
		FileRemovals: []string{"foo/empty.py"},
		FilesChanged: []string{"main.py", "newfoo/bar.py"},
		Diagnostics: []move.Diagnostic{
			move.NewDiagnostic(move.PossibleImplicitUse, parser.Location{File: "x.py", Line: 3, Column: 1}, 0, "foo.bar reached through foo"),
			move.NewDiagnostic(move.StringReference, parser.Location{File: "y.py", Line: 7, Column: 5}, 0, "string mentions foo.bar | here"),
			move.NewDiagnostic(move.BatchCollision, parser.Location{}, 0, "two moves collide"),
		},
	}
}

func TestPrinterDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).Diagnostics(sampleResult().Diagnostics)

	lines := bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Equal(t, "x.py:3:1 PossibleImplicitUse foo.bar reached through foo", string(lines[0]))
	assert.Equal(t, "y.py:7:5 StringReference string mentions foo.bar | here", string(lines[1]))
	assert.Equal(t, "BatchCollision two moves collide", string(lines[2]))
}

func TestPrinterSummary(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).Summary(sampleResult(), true)

	out := buf.String()
	assert.Contains(t, out, "module foo.bar -> newfoo.bar")
	assert.Contains(t, out, "foo/bar.py -> newfoo/bar.py")
	assert.Contains(t, out, "foo/empty.py removed")
	assert.Contains(t, out, "2 files would change, 2 errors")
	assert.Contains(t, out, "(1 warnings)")
}

func TestWriteMarkdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.md")
	require.NoError(t, WriteMarkdown(path, sampleResult()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "# relocate run run-1\n")
	assert.Contains(t, out, "- `foo.bar` -> `newfoo.bar` (module)\n")
	assert.Contains(t, out, "## Removed files\n\n- `foo/empty.py`\n")
	assert.Contains(t, out, "## Files changed (2)\n")
	assert.Contains(t, out, "| x.py:3:1 | PossibleImplicitUse | error | foo.bar reached through foo |\n")
	assert.Contains(t, out, `string mentions foo.bar \| here`)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file cleaned up")
}
