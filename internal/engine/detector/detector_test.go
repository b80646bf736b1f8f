package detector

import (
	"context"
	"testing"

	"relocate/internal/engine/enginetest"
	"relocate/internal/engine/move"
	"relocate/internal/engine/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const project = `
-- foo/__init__.py --
-- foo/bar.py --
def myfunc():
    return 1


def other():
    return 2
-- foo/baz.py --
def helper():
    pass
-- foo/qux.py --
import foo.baz

foo.baz.helper()
-- x.py --
import foo.bar

foo.bar.myfunc()
foo.baz.helper()
# see foo.bar.myfunc for details
LOOKUP = "foo.bar.myfunction"
-- star.py --
from foo.bar import *

myfunc()
-- broken.py --
def broken(:
    pass
`

func scan(t *testing.T, specs ...move.Spec) *Report {
	t.Helper()
	return scanProject(t, project, specs...)
}

func scanProject(t *testing.T, archive string, specs ...move.Spec) *Report {
	t.Helper()
	idx := enginetest.Index(t, archive)
	res, err := resolver.Resolve(context.Background(), idx, 2)
	require.NoError(t, err)
	for i := range specs {
		specs[i].ID = i
	}
	return Scan(idx, res, specs)
}

func kinds(diags []move.Diagnostic) []move.DiagnosticKind {
	var out []move.DiagnosticKind
	for _, d := range diags {
		out = append(out, d.Kind)
	}
	return out
}

func symbolMove(src, dst string) move.Spec {
	return move.Spec{Source: src, Destination: dst, Kind: move.KindSymbol, Automove: true}
}

func moduleMove(src, dst string) move.Spec {
	return move.Spec{Source: src, Destination: dst, Kind: move.KindModule, Automove: true}
}

func TestScanReportsParseFailures(t *testing.T) {
	rep := scan(t)
	require.Len(t, rep.Diagnostics, 1)
	assert.Equal(t, move.ParseError, rep.Diagnostics[0].Kind)
	assert.Equal(t, "broken.py", rep.Diagnostics[0].Location.File)
	assert.Equal(t, move.SeverityWarning, rep.Diagnostics[0].Severity)
}

func TestScanValidation(t *testing.T) {
	tests := []struct {
		name string
		spec move.Spec
		kind move.DiagnosticKind
	}{
		{"missing symbol", symbolMove("foo.bar.nope", "foo.baz.nope"), move.InvalidMove},
		{"onto itself", symbolMove("foo.bar.myfunc", "foo.bar.myfunc"), move.InvalidMove},
		{"symbol under symbol", symbolMove("foo.bar.myfunc", "foo.baz.helper.myfunc"), move.InvalidMove},
		{"module into itself", moduleMove("foo", "foo.inner"), move.InvalidMove},
		{"module under plain module", moduleMove("foo.qux", "foo.bar.qux"), move.InvalidMove},
		{"existing symbol", symbolMove("foo.bar.myfunc", "foo.baz.helper"), move.DestinationConflict},
		{"existing module", moduleMove("foo.bar", "foo.baz"), move.DestinationConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := scan(t, tt.spec)
			assert.Empty(t, rep.Accepted)
			require.Len(t, rep.Excluded, 1)
			assert.Contains(t, kinds(rep.Diagnostics), tt.kind)
			assert.True(t, move.Failing(rep.Diagnostics))
		})
	}
}

func TestScanBatchCollision(t *testing.T) {
	rep := scan(t,
		symbolMove("foo.bar.myfunc", "foo.baz.same"),
		symbolMove("foo.bar.other", "foo.baz.same"),
		symbolMove("foo.baz.helper", "foo.bar.helper"),
	)
	require.Len(t, rep.Accepted, 1)
	assert.Equal(t, "foo.baz.helper", rep.Accepted[0].Source)
	assert.Len(t, rep.Excluded, 2)

	n := 0
	for _, d := range rep.Diagnostics {
		if d.Kind == move.BatchCollision {
			n++
		}
	}
	assert.Equal(t, 2, n)
}

func TestScanVacatedDestination(t *testing.T) {
	rep := scan(t,
		moduleMove("foo.baz", "foo.baz2"),
		moduleMove("foo.bar", "foo.baz"),
	)
	assert.Len(t, rep.Accepted, 2, "foo.baz moves away in the same batch")
	assert.NotContains(t, kinds(rep.Diagnostics), move.DestinationConflict)
}

func TestScanOverlappingSources(t *testing.T) {
	rep := scan(t,
		moduleMove("foo.bar", "newfoo.bar"),
		symbolMove("foo.bar.myfunc", "foo.baz.myfunc"),
	)
	require.Len(t, rep.Accepted, 1)
	assert.Equal(t, "foo.bar", rep.Accepted[0].Source)
	assert.Contains(t, kinds(rep.Diagnostics), move.InvalidMove)
}

func TestScanImplicitUse(t *testing.T) {
	rep := scan(t, moduleMove("foo.baz", "newfoo.baz"))
	require.Len(t, rep.Accepted, 1)

	var implicit []move.Diagnostic
	for _, d := range rep.Diagnostics {
		if d.Kind == move.PossibleImplicitUse {
			implicit = append(implicit, d)
		}
	}
	require.Len(t, implicit, 1)
	assert.Equal(t, "x.py", implicit[0].Location.File)
	assert.Equal(t, 4, implicit[0].Location.Line)
	assert.Equal(t, move.SeverityError, implicit[0].Severity)
}

func TestScanWildcardHidesMovedModule(t *testing.T) {
	const archive = `
-- foo/__init__.py --
-- foo/bar.py --
def myfunc():
    return 1
-- y.py --
from foo import *

bar.myfunc()
`
	rep := scanProject(t, archive, moduleMove("foo.bar", "foo.newbar"))
	require.Len(t, rep.Accepted, 1)

	require.Len(t, rep.Diagnostics, 1)
	assert.Equal(t, move.WildcardAmbiguity, rep.Diagnostics[0].Kind)
	assert.Equal(t, "y.py", rep.Diagnostics[0].Location.File)
	assert.Equal(t, 3, rep.Diagnostics[0].Location.Line)
}

func TestScanWildcardAndStrings(t *testing.T) {
	rep := scan(t, symbolMove("foo.bar.myfunc", "foo.baz.myfunc"))
	require.Len(t, rep.Accepted, 1)

	var wildcard, strs []move.Diagnostic
	for _, d := range rep.Diagnostics {
		switch d.Kind {
		case move.WildcardAmbiguity:
			wildcard = append(wildcard, d)
		case move.StringReference:
			strs = append(strs, d)
		}
	}
	require.Len(t, wildcard, 1)
	assert.Equal(t, "star.py", wildcard[0].Location.File)

	require.Len(t, strs, 1, "the comment matches, the longer name in the string does not")
	assert.Equal(t, 5, strs[0].Location.Line)
	assert.Contains(t, strs[0].Message, "comment")
}

func TestContainsDotted(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"foo.bar", true},
		{"see foo.bar.baz", true},
		{"'foo.bar'", true},
		{"xfoo.bar", false},
		{"a.foo.bar", false},
		{"foo.barn", false},
		{"foo.barn foo.bar", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, containsDotted(tt.text, "foo.bar"), tt.text)
	}
}
