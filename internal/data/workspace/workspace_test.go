package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"relocate/internal/core/errors"
	"relocate/internal/engine/enginetest"
	"relocate/internal/shared/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const project = `
-- pkg/__init__.py --
-- pkg/mod.py --
X = 1
-- pkg/gen/schema_pb2.py --
Y = 2
-- .venv/lib/site.py --
Z = 3
-- pkg/__pycache__/mod.cpython-312.py --
-- README.md --
docs
-- tools/run.py --
import pkg.mod
`

func newWorkspace(t *testing.T) (*Workspace, string) {
	t.Helper()
	root := t.TempDir()
	for path, content := range enginetest.Files(project) {
		require.NoError(t, util.WriteFileAll(filepath.Join(root, filepath.FromSlash(path)), []byte(content)))
	}
	ws, err := New(Options{
		Root:         root,
		ExcludeDirs:  []string{".venv", "__pycache__"},
		ExcludeFiles: []string{"*_pb2.py", "tools/*.py"},
	})
	require.NoError(t, err)
	return ws, root
}

func TestListSources(t *testing.T) {
	ws, _ := newWorkspace(t)

	files, err := ws.ListSources(context.Background())
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"pkg/__init__.py", "pkg/mod.py"}, paths)
	assert.Equal(t, "X = 1\n", string(files[1].Content))
}

func TestNewRejectsBadPatterns(t *testing.T) {
	_, err := New(Options{Root: t.TempDir(), ExcludeFiles: []string{"["}})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))

	_, err = New(Options{})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestWriteFileKeepsMode(t *testing.T) {
	ws, root := newWorkspace(t)
	ctx := context.Background()
	target := filepath.Join(root, "pkg", "mod.py")
	require.NoError(t, os.Chmod(target, 0o755))

	require.NoError(t, ws.WriteFile(ctx, "pkg/mod.py", []byte("X = 2\n")))
	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "X = 2\n", string(content))
	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	require.NoError(t, ws.WriteFile(ctx, "newpkg/__init__.py", nil))
	ok, err := ws.Exists(ctx, "newpkg/__init__.py")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMoveFile(t *testing.T) {
	ws, root := newWorkspace(t)
	ctx := context.Background()
	require.NoError(t, os.Chmod(filepath.Join(root, "pkg", "mod.py"), 0o700))

	require.NoError(t, ws.MoveFile(ctx, "pkg/mod.py", "other/deep/mod.py"))

	_, err := os.Stat(filepath.Join(root, "pkg", "mod.py"))
	assert.True(t, os.IsNotExist(err))
	info, err := os.Stat(filepath.Join(root, "other", "deep", "mod.py"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	err = ws.MoveFile(ctx, "pkg/__init__.py", "other/deep/mod.py")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeConflict))
}

func TestRemoveFile(t *testing.T) {
	ws, root := newWorkspace(t)
	require.NoError(t, ws.RemoveFile(context.Background(), "pkg/mod.py"))
	_, err := os.Stat(filepath.Join(root, "pkg", "mod.py"))
	assert.True(t, os.IsNotExist(err))
}
