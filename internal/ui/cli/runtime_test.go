package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"relocate/internal/shared/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"
)

const project = `
-- relocate.toml --
version = 1

[log]
level = "warn"
-- foo/__init__.py --
-- foo/bar.py --
def myfunc():
    return 1
-- foo/qux.py --
from foo.bar import myfunc

myfunc()
`

func setupProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range txtar.Parse([]byte(project)).Files {
		require.NoError(t, util.WriteFileAll(filepath.Join(root, filepath.FromSlash(f.Name)), f.Data))
	}
	t.Chdir(root)
	return root
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func read(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestRunRename(t *testing.T) {
	root := setupProject(t)

	code, stdout, stderr := runCLI(t, "foo.bar.myfunc", "foo.bar.new_name")
	require.Equal(t, exitOK, code, stderr)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "2 files changed")
	assert.Equal(t, "from foo.bar import new_name\n\nnew_name()\n", read(t, root, "foo/qux.py"))
}

func TestRunDryRun(t *testing.T) {
	root := setupProject(t)

	code, stdout, stderr := runCLI(t, "--dry-run", "foo.bar.myfunc", "foo.bar.new_name")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "+from foo.bar import new_name\n")
	assert.Contains(t, stderr, "2 files would change")
	assert.Equal(t, "from foo.bar import myfunc\n\nmyfunc()\n", read(t, root, "foo/qux.py"))
}

func TestRunFileArguments(t *testing.T) {
	root := setupProject(t)

	code, _, stderr := runCLI(t, "foo/bar.py", "pkg2/")
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "from pkg2.bar import myfunc\n\nmyfunc()\n", read(t, root, "foo/qux.py"))
	assert.FileExists(t, filepath.Join(root, "pkg2", "bar.py"))
	assert.FileExists(t, filepath.Join(root, "pkg2", "__init__.py"))
	assert.NoFileExists(t, filepath.Join(root, "foo", "bar.py"))
}

func TestRunReport(t *testing.T) {
	root := setupProject(t)

	code, _, stderr := runCLI(t, "--report", "out/report.md", "foo.bar.myfunc", "foo.bar.new_name")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, read(t, root, "out/report.md"), "- `foo/qux.py`\n")
}

func TestRunFailures(t *testing.T) {
	setupProject(t)

	code, _, stderr := runCLI(t, "foo.bar.missing", "foo.bar.other")
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stderr, "error:")

	code, _, _ = runCLI(t, "foo.bar.myfunc")
	assert.Equal(t, exitFailed, code)

	code, _, _ = runCLI(t, "--alias", "not-valid", "foo.bar.myfunc", "foo.bar.new_name")
	assert.Equal(t, exitFailed, code)

	code, _, _ = runCLI(t, "../outside.py", "foo.bar")
	assert.Equal(t, exitFailed, code)
}

func TestProjectArg(t *testing.T) {
	root := filepath.FromSlash("/work/proj")
	tests := []struct {
		arg, cwd, want string
	}{
		{"foo.bar.myfunc", root, "foo.bar.myfunc"},
		{"foo/bar.py", root, "foo/bar.py"},
		{"bar.py", filepath.Join(root, "foo"), "foo/bar.py"},
		{"sub/", filepath.Join(root, "foo"), "foo/sub"},
		{"newpkg/", root, "newpkg/"},
	}
	for _, tt := range tests {
		got, err := projectArg(tt.arg, tt.cwd, root)
		require.NoError(t, err, tt.arg)
		assert.Equal(t, tt.want, got, tt.arg)
	}

	_, err := projectArg("../x.py", root, root)
	assert.Error(t, err)
}
