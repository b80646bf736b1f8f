package rewriter

import (
	"context"
	"testing"

	"relocate/internal/core/errors"
	"relocate/internal/engine/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func span(start, end int) parser.Span {
	return parser.Span{Start: start, End: end}
}

func TestMaterializeSortsEdits(t *testing.T) {
	edits, err := Materialize("a.py", []Edit{
		{Span: span(10, 12), Text: "b"},
		Insert(4, "x"),
		{Span: span(4, 6), Text: "y"},
		Delete(span(0, 2)),
	})
	require.NoError(t, err)
	require.Len(t, edits, 4)
	assert.Equal(t, 0, edits[0].Span.Start)
	assert.Equal(t, Insert(4, "x"), edits[1], "insertions sort before replacements at the same offset")
	assert.Equal(t, span(4, 6), edits[2].Span)
	assert.Equal(t, span(10, 12), edits[3].Span)
}

func TestMaterializeRejectsOverlap(t *testing.T) {
	tests := []struct {
		name  string
		edits []Edit
	}{
		{"crossing", []Edit{{Span: span(0, 5)}, {Span: span(3, 8)}}},
		{"nested", []Edit{{Span: span(0, 10)}, {Span: span(3, 4)}}},
		{"double insert", []Edit{Insert(3, "a"), Insert(3, "b")}},
		{"insert inside", []Edit{{Span: span(2, 6)}, Insert(4, "a")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Materialize("a.py", tt.edits)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeInvariant))
		})
	}
}

func TestMaterializeAllowsAdjacentEdits(t *testing.T) {
	_, err := Materialize("a.py", []Edit{{Span: span(0, 3)}, {Span: span(3, 6)}, Insert(6, "x")})
	assert.NoError(t, err)
}

func TestApply(t *testing.T) {
	src := []byte("import foo.bar\n\nfoo.bar.myfunc()\n")
	edits, err := Materialize("a.py", []Edit{
		{Span: span(7, 14), Text: "foo.baz"},
		{Span: span(16, 23), Text: "foo.baz"},
	})
	require.NoError(t, err)
	assert.Equal(t, "import foo.baz\n\nfoo.baz.myfunc()\n", string(Apply(src, edits)))
	assert.Equal(t, string(src), string(Apply(src, nil)), "no edits keeps bytes identical")
}

func TestMaterializeAll(t *testing.T) {
	out, err := MaterializeAll(context.Background(), map[string][]Edit{
		"a.py": {Insert(5, "x"), Insert(1, "y")},
		"b.py": nil,
	}, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, out["a.py"][0].Span.Start)
	assert.Empty(t, out["b.py"])

	_, err = MaterializeAll(context.Background(), map[string][]Edit{
		"bad.py": {Insert(1, "a"), Insert(1, "b")},
	}, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlapping")
}

func TestUnifiedDiff(t *testing.T) {
	diff, err := UnifiedDiff("a.py", "a.py", []byte("one\ntwo\n"), []byte("one\nthree\n"))
	require.NoError(t, err)
	assert.Equal(t, "--- a/a.py\n+++ b/a.py\n@@ -1,2 +1,2 @@\n one\n-two\n+three\n", diff)

	diff, err = UnifiedDiff("a.py", "a.py", []byte("same\n"), []byte("same\n"))
	require.NoError(t, err)
	assert.Empty(t, diff)

	diff, err = UnifiedDiff("new.py", "new.py", nil, []byte("x = 1\n"))
	require.NoError(t, err)
	assert.Contains(t, diff, "--- /dev/null")
	assert.Contains(t, diff, "+x = 1\n")

	diff, err = UnifiedDiff("old.py", "new.py", []byte("x\n"), []byte("x\n"))
	require.NoError(t, err)
	assert.Equal(t, "rename from old.py\nrename to new.py\n", diff)
}
