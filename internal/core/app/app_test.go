package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"relocate/internal/core/config"
	"relocate/internal/core/errors"
	"relocate/internal/core/ports"
	"relocate/internal/data/workspace"
	"relocate/internal/engine/enginetest"
	"relocate/internal/engine/move"
	"relocate/internal/shared/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const appProject = `
-- foo/__init__.py --
-- foo/bar.py --
def myfunc():
    return 1
-- foo/qux.py --
from foo.bar import myfunc

myfunc()
`

func newService(t *testing.T) (ports.MoveService, string) {
	t.Helper()
	return projectService(t, appProject)
}

func projectService(t *testing.T, archive string) (ports.MoveService, string) {
	t.Helper()
	root := t.TempDir()
	for path, content := range enginetest.Files(archive) {
		require.NoError(t, util.WriteFileAll(filepath.Join(root, filepath.FromSlash(path)), []byte(content)))
	}
	ws, err := workspace.New(workspace.Options{Root: root})
	require.NoError(t, err)
	cfg := config.Default()
	cfg.Run.Workers = 2
	a, err := New(cfg, ws, nil)
	require.NoError(t, err)
	return a.MoveService(), root
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestMoveRenamesSymbol(t *testing.T) {
	svc, root := newService(t)

	res, err := svc.Move(context.Background(), ports.MoveRequest{
		Sources:     []string{"foo.bar.myfunc"},
		Destination: "foo.bar.new_name",
		Automove:    true,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Empty(t, res.Diagnostics)
	assert.Empty(t, res.Diff)
	assert.Equal(t, []string{"foo/bar.py", "foo/qux.py"}, res.FilesChanged)
	assert.Equal(t, "def new_name():\n    return 1\n", readFile(t, root, "foo/bar.py"))
	assert.Equal(t, "from foo.bar import new_name\n\nnew_name()\n", readFile(t, root, "foo/qux.py"))
}

func TestMoveDryRunLeavesFilesAlone(t *testing.T) {
	svc, root := newService(t)

	res, err := svc.Move(context.Background(), ports.MoveRequest{
		Sources:     []string{"foo.bar.myfunc"},
		Destination: "foo.bar.new_name",
		Automove:    true,
		DryRun:      true,
	})
	require.NoError(t, err)

	assert.Contains(t, res.Diff, "--- a/foo/qux.py\n+++ b/foo/qux.py\n")
	assert.Contains(t, res.Diff, "-from foo.bar import myfunc\n+from foo.bar import new_name\n")
	assert.Equal(t, "from foo.bar import myfunc\n\nmyfunc()\n", readFile(t, root, "foo/qux.py"))
}

func TestMoveModuleIntoNewPackage(t *testing.T) {
	svc, root := newService(t)

	res, err := svc.Move(context.Background(), ports.MoveRequest{
		Sources:     []string{"foo.bar"},
		Destination: "pkg2.bar",
		Automove:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, []ports.FileMove{{From: "foo/bar.py", To: "pkg2/bar.py"}}, res.FileMoves)
	assert.Equal(t, "def myfunc():\n    return 1\n", readFile(t, root, "pkg2/bar.py"))
	assert.Equal(t, "", readFile(t, root, "pkg2/__init__.py"))
	assert.Equal(t, "from pkg2.bar import myfunc\n\nmyfunc()\n", readFile(t, root, "foo/qux.py"))
	_, err = os.Stat(filepath.Join(root, "foo", "bar.py"))
	assert.True(t, os.IsNotExist(err))
}

func TestMoveRejectsUnknownSource(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Move(context.Background(), ports.MoveRequest{Sources: []string{"nope"}, Destination: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	_, err = svc.Move(context.Background(), ports.MoveRequest{Sources: []string{"foo.bar"}})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestMoveRemovesEmptiedModule(t *testing.T) {
	req := ports.MoveRequest{
		Sources:     []string{"foo.bar.myfunc"},
		Destination: "foo.baz",
		Automove:    true,
	}

	svc, root := newService(t)
	req.DryRun = true
	res, err := svc.Move(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo/bar.py"}, res.FileRemovals)
	assert.Contains(t, res.Diff, "--- a/foo/bar.py\n+++ /dev/null\n")
	assert.FileExists(t, filepath.Join(root, "foo", "bar.py"))

	req.DryRun = false
	res, err = svc.Move(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo/bar.py", "foo/baz.py", "foo/qux.py"}, res.FilesChanged)
	assert.NoFileExists(t, filepath.Join(root, "foo", "bar.py"))
	assert.Equal(t, "def myfunc():\n    return 1\n", readFile(t, root, "foo/baz.py"))
	assert.Equal(t, "from foo.baz import myfunc\n\nmyfunc()\n", readFile(t, root, "foo/qux.py"))
}

func TestMoveExcludesOccupiedDestination(t *testing.T) {
	const project = `
-- foo/__init__.py --
-- foo/bar.py --
def myfunc():
    return 1
-- foo/qux.py --
from foo.bar import myfunc

myfunc()
-- pkg/__init__.py --
-- pkg/bar.py --
X = 1
`
	svc, root := projectService(t, project)

	res, err := svc.Move(context.Background(), ports.MoveRequest{
		Sources:     []string{"foo.bar", "foo.qux"},
		Destination: "pkg",
		Automove:    true,
	})
	require.NoError(t, err)

	require.Len(t, res.Moves, 1)
	assert.Equal(t, "foo.qux", res.Moves[0].Source)
	var kinds []move.DiagnosticKind
	for _, d := range res.Diagnostics {
		kinds = append(kinds, d.Kind)
	}
	assert.Contains(t, kinds, move.DestinationConflict)
	assert.Equal(t, []ports.FileMove{{From: "foo/qux.py", To: "pkg/qux.py"}}, res.FileMoves)
	assert.Equal(t, "X = 1\n", readFile(t, root, "pkg/bar.py"))
	assert.Equal(t, "def myfunc():\n    return 1\n", readFile(t, root, "foo/bar.py"))
	assert.Equal(t, "from foo.bar import myfunc\n\nmyfunc()\n", readFile(t, root, "pkg/qux.py"))
}
