package resolver_test

import (
	"context"
	"testing"

	"relocate/internal/engine/enginetest"
	"relocate/internal/engine/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolve(t *testing.T, archive string) *resolver.Result {
	t.Helper()
	idx := enginetest.Index(t, archive)
	res, err := resolver.Resolve(context.Background(), idx, 2)
	require.NoError(t, err)
	return res
}

// refAt finds the reference whose chain is dotted on the given line.
func refAt(t *testing.T, res *resolver.Result, file, dotted string, line int) resolver.Reference {
	t.Helper()
	fr := res.File(file)
	require.NotNil(t, fr, "no result for %s", file)
	for _, ref := range fr.Refs {
		if ref.Dotted() == dotted && fr.Usage(ref).Location.Line == line {
			return ref
		}
	}
	require.Failf(t, "reference not found", "%s:%d %s", file, line, dotted)
	return resolver.Reference{}
}

const importsProject = `
-- foo/__init__.py --
def helper():
    pass
-- foo/bar.py --
def myfunc():
    return 1
-- foo/baz.py --
def helper():
    return 2
-- foo/deep/__init__.py --
-- foo/deep/leaf.py --
X = 1
-- uses_baz.py --
import foo.baz

foo.baz.helper()
-- x.py --
import foo.bar
import foo.bar as fb
from foo import bar
from foo.bar import myfunc as mf
import os

foo.bar.myfunc()
fb.myfunc()
bar.myfunc()
mf()
foo.baz.helper()
foo.helper()
foo.deep.leaf.X
os.path.join
print
`

func TestResolveImportForms(t *testing.T) {
	res := resolve(t, importsProject)

	tests := []struct {
		name     string
		dotted   string
		line     int
		path     resolver.Path
		cause    resolver.Cause
		target   string
		segments int
	}{
		{"absolute import", "foo.bar.myfunc", 7, resolver.Explicit, resolver.CauseNone, "foo.bar.myfunc", 3},
		{"aliased module", "fb.myfunc", 8, resolver.Explicit, resolver.CauseNone, "foo.bar.myfunc", 2},
		{"from submodule", "bar.myfunc", 9, resolver.Explicit, resolver.CauseNone, "foo.bar.myfunc", 2},
		{"from symbol with alias", "mf", 10, resolver.Explicit, resolver.CauseNone, "foo.bar.myfunc", 1},
		{"shared namespace", "foo.baz.helper", 11, resolver.Implicit, resolver.CauseNone, "foo.baz.helper", 3},
		{"package attribute", "foo.helper", 12, resolver.Explicit, resolver.CauseNone, "foo.helper", 2},
		{"never imported", "foo.deep.leaf.X", 13, resolver.Unresolved, resolver.CauseNotLoaded, "foo.deep.leaf.X", 4},
		{"external", "os.path.join", 14, resolver.Unresolved, resolver.CauseExternal, "", 0},
		{"builtin", "print", 15, resolver.Unresolved, resolver.CauseUnknown, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := refAt(t, res, "x.py", tt.dotted, tt.line)
			assert.Equal(t, tt.path, ref.Path)
			assert.Equal(t, tt.cause, ref.Cause)
			assert.Equal(t, tt.target, ref.Target)
			assert.Equal(t, tt.segments, ref.TargetSegments)
		})
	}
}

func TestResolveBindings(t *testing.T) {
	res := resolve(t, importsProject)

	ref := refAt(t, res, "x.py", "foo.bar.myfunc", 7)
	assert.Equal(t, resolver.BindImport, ref.Binding.Kind)
	assert.Equal(t, 0, ref.Binding.Statement)
	assert.Equal(t, 2, ref.Binding.Segments, "import foo.bar spells two segments")
	assert.Equal(t, "foo.bar", ref.Binding.Target)

	ref = refAt(t, res, "x.py", "foo.helper", 12)
	assert.Equal(t, 1, ref.Binding.Segments, "only the root is bound")
	assert.Equal(t, "foo", ref.Binding.Target)

	ref = refAt(t, res, "x.py", "mf", 10)
	assert.Equal(t, 3, ref.Binding.Statement)
	assert.Equal(t, "foo.bar.myfunc", ref.Binding.Target)

	fr := res.File("x.py")
	assert.True(t, fr.Loaded["foo.bar"])
	assert.True(t, fr.Loaded["foo"])
	assert.True(t, fr.Loaded["x"])
	assert.False(t, fr.Loaded["foo.baz"])
}

const scopesProject = `
-- pkg/__init__.py --
-- pkg/mod.py --
VALUE = 1


def func():
    pass


class Klass:
    VALUE = 2

    def method(self):
        return VALUE


def shadow(func):
    return func()


def late():
    from pkg import mod
    return mod.func()


def glob():
    global VALUE
    VALUE = 3
    return VALUE
-- pkg/star.py --
from pkg.mod import *

func()
`

func TestResolveScopes(t *testing.T) {
	res := resolve(t, scopesProject)

	ref := refAt(t, res, "pkg/mod.py", "VALUE", 12)
	assert.Equal(t, resolver.Explicit, ref.Path, "class bodies are not visible from methods")
	assert.Equal(t, resolver.BindSymbol, ref.Binding.Kind)
	assert.Equal(t, "pkg.mod.VALUE", ref.Target)

	ref = refAt(t, res, "pkg/mod.py", "func", 16)
	assert.Equal(t, resolver.Unresolved, ref.Path)
	assert.Equal(t, resolver.CauseLocal, ref.Cause, "parameter shadows the module function")

	ref = refAt(t, res, "pkg/mod.py", "mod.func", 21)
	assert.Equal(t, resolver.Explicit, ref.Path)
	assert.Equal(t, "pkg.mod.func", ref.Target)
	assert.Equal(t, 0, ref.Binding.Statement)

	ref = refAt(t, res, "pkg/mod.py", "VALUE", 27)
	assert.Equal(t, resolver.Explicit, ref.Path, "global statement jumps to module scope")
	assert.Equal(t, "pkg.mod.VALUE", ref.Target)

	ref = refAt(t, res, "pkg/star.py", "func", 3)
	assert.Equal(t, resolver.Unresolved, ref.Path)
	assert.Equal(t, resolver.CauseWildcard, ref.Cause)
	assert.Equal(t, []string{"pkg.mod"}, ref.Wildcards)
}

func TestResolveRelativeImports(t *testing.T) {
	res := resolve(t, `
-- pkg/__init__.py --
from . import sub
from .sub import thing

sub.thing()
thing()
-- pkg/sub.py --
def thing():
    pass
-- pkg/inner/__init__.py --
-- pkg/inner/user.py --
from .. import sub

sub.thing()
`)

	ref := refAt(t, res, "pkg/__init__.py", "sub.thing", 4)
	assert.Equal(t, resolver.Explicit, ref.Path)
	assert.Equal(t, "pkg.sub.thing", ref.Target)

	ref = refAt(t, res, "pkg/__init__.py", "thing", 5)
	assert.Equal(t, "pkg.sub.thing", ref.Target)

	ref = refAt(t, res, "pkg/inner/user.py", "sub.thing", 3)
	assert.Equal(t, resolver.Explicit, ref.Path)
	assert.Equal(t, "pkg.sub.thing", ref.Target)
}

func TestResolveCancelled(t *testing.T) {
	idx := enginetest.Index(t, importsProject)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := resolver.Resolve(ctx, idx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
