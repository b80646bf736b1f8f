package app

import (
	"testing"

	"relocate/internal/core/errors"
	"relocate/internal/engine/enginetest"
	"relocate/internal/engine/move"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inputsProject = `
-- foo/__init__.py --
-- foo/bar.py --
def myfunc():
    return 1
-- foo/sub/__init__.py --
-- foo/sub/mod.py --
X = 1
-- newpkg/__init__.py --
-- single.py --
Y = 2
`

func TestExpand(t *testing.T) {
	idx := enginetest.Index(t, inputsProject)

	tests := []struct {
		name     string
		sources  []string
		dest     string
		want     []move.Spec
		wantCode errors.ErrorCode
	}{
		{
			name:    "symbol rename",
			sources: []string{"foo.bar.myfunc"},
			dest:    "foo.bar.new_name",
			want:    []move.Spec{{Source: "foo.bar.myfunc", Destination: "foo.bar.new_name", Kind: move.KindSymbol}},
		},
		{
			name:    "symbol into existing module",
			sources: []string{"foo.bar.myfunc"},
			dest:    "single",
			want:    []move.Spec{{Source: "foo.bar.myfunc", Destination: "single.myfunc", Kind: move.KindSymbol}},
		},
		{
			name:    "symbol into new module of a package",
			sources: []string{"foo.bar.myfunc"},
			dest:    "foo.baz",
			want:    []move.Spec{{Source: "foo.bar.myfunc", Destination: "foo.baz.myfunc", Kind: move.KindSymbol}},
		},
		{
			name:    "symbol into new top-level module",
			sources: []string{"foo.bar.myfunc"},
			dest:    "brandnew",
			want:    []move.Spec{{Source: "foo.bar.myfunc", Destination: "brandnew.myfunc", Kind: move.KindSymbol}},
		},
		{
			name:    "module into package",
			sources: []string{"single"},
			dest:    "newpkg",
			want:    []move.Spec{{Source: "single", Destination: "newpkg.single", Kind: move.KindModule}},
		},
		{
			name:    "module rename",
			sources: []string{"single"},
			dest:    "renamed",
			want:    []move.Spec{{Source: "single", Destination: "renamed", Kind: move.KindModule}},
		},
		{
			name:    "module by path",
			sources: []string{"foo/bar.py"},
			dest:    "newpkg",
			want:    []move.Spec{{Source: "foo.bar", Destination: "newpkg.bar", Kind: move.KindModule}},
		},
		{
			name:    "package into existing package",
			sources: []string{"foo.sub"},
			dest:    "newpkg",
			want:    []move.Spec{{Source: "foo.sub", Destination: "newpkg.sub", Kind: move.KindModule}},
		},
		{
			name:    "package directory rename",
			sources: []string{"foo/sub"},
			dest:    "other",
			want:    []move.Spec{{Source: "foo.sub", Destination: "other", Kind: move.KindModule}},
		},
		{
			name:    "several sources",
			sources: []string{"single", "foo.bar"},
			dest:    "newpkg",
			want: []move.Spec{
				{ID: 0, Source: "single", Destination: "newpkg.single", Kind: move.KindModule},
				{ID: 1, Source: "foo.bar", Destination: "newpkg.bar", Kind: move.KindModule},
			},
		},
		{
			name:    "onto an existing module",
			sources: []string{"single"},
			dest:    "foo.bar",
			want:    []move.Spec{{Source: "single", Destination: "foo.bar", Kind: move.KindModule}},
		},
		{name: "symbol into package", sources: []string{"foo.bar.myfunc"}, dest: "newpkg", wantCode: errors.CodeValidationError},
		{name: "module to symbol", sources: []string{"single"}, dest: "foo.bar.myfunc", wantCode: errors.CodeValidationError},
		{name: "package into itself", sources: []string{"foo"}, dest: "foo.sub", wantCode: errors.CodeValidationError},
		{name: "to itself", sources: []string{"single"}, dest: "single", wantCode: errors.CodeValidationError},
		{name: "unknown source", sources: []string{"nope"}, dest: "x", wantCode: errors.CodeNotFound},
		{name: "missing symbol", sources: []string{"foo.bar.missing"}, dest: "single", wantCode: errors.CodeNotFound},
		{name: "no sources", dest: "single", wantCode: errors.CodeValidationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(idx, tt.sources, tt.dest, "", true)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			for i := range tt.want {
				tt.want[i].ID = i
				tt.want[i].Automove = true
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
