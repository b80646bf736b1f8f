package move

import (
	"testing"

	"relocate/internal/engine/parser"

	"github.com/stretchr/testify/assert"
)

func TestDiagnosticSeverity(t *testing.T) {
	d := NewDiagnostic(PossibleImplicitUse, parser.Location{File: "x.py", Line: 3, Column: 5}, 0, "foo.baz reached through %s", "foo")
	assert.Equal(t, SeverityError, d.Severity)
	assert.Equal(t, "x.py:3:5: PossibleImplicitUse: foo.baz reached through foo", d.String())

	warn := NewDiagnostic(StringReference, parser.Location{File: "y.py"}, 1, "mentioned in a string")
	assert.Equal(t, SeverityWarning, warn.Severity)
	assert.Equal(t, "y.py: StringReference: mentioned in a string", warn.String())

	assert.False(t, Failing([]Diagnostic{warn}))
	assert.True(t, Failing([]Diagnostic{warn, d}))
}

func TestSortDiagnostics(t *testing.T) {
	diags := []Diagnostic{
		{Kind: BatchCollision, Location: parser.Location{File: "b.py", Line: 1}},
		{Kind: KeptImport, Location: parser.Location{File: "a.py", Line: 9}},
		{Kind: DestinationConflict, Location: parser.Location{File: "a.py", Line: 2}},
	}
	SortDiagnostics(diags)
	assert.Equal(t, DestinationConflict, diags[0].Kind)
	assert.Equal(t, KeptImport, diags[1].Kind)
	assert.Equal(t, BatchCollision, diags[2].Kind)
}

func TestSpecAliasMode(t *testing.T) {
	assert.Equal(t, AliasAuto, Spec{}.AliasMode())
	assert.Equal(t, "baz", Spec{Alias: "baz"}.AliasMode())
	assert.Equal(t, "symbol foo.a -> foo.b", Spec{Source: "foo.a", Destination: "foo.b", Kind: KindSymbol}.String())
}
