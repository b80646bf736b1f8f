// Package rewriter turns planned edits into text. Bytes outside edited
// spans are copied through unchanged.
package rewriter

import (
	"bytes"
	"context"
	"sort"
	"time"

	"relocate/internal/core/errors"
	"relocate/internal/engine/parser"
	"relocate/internal/shared/observability"
	"relocate/internal/shared/util"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/sync/errgroup"
)

// Edit replaces Span with Text. An empty span is an insertion.
type Edit struct {
	Span parser.Span
	Text string
}

func Insert(at int, text string) Edit {
	return Edit{Span: parser.Span{Start: at, End: at}, Text: text}
}

func Delete(span parser.Span) Edit {
	return Edit{Span: span}
}

// Materialize orders edits by position and rejects overlaps. An overlap
// means the planner produced an unsafe result and is never repaired here.
func Materialize(path string, edits []Edit) ([]Edit, error) {
	out := make([]Edit, len(edits))
	copy(out, edits)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Span.Start != out[j].Span.Start {
			return out[i].Span.Start < out[j].Span.Start
		}
		return out[i].Span.End < out[j].Span.End
	})
	for i := 1; i < len(out); i++ {
		prev, cur := out[i-1], out[i]
		if prev.Span.Overlaps(cur.Span) {
			err := errors.Newf(errors.CodeInvariant, "overlapping edits [%d,%d) and [%d,%d)",
				prev.Span.Start, prev.Span.End, cur.Span.Start, cur.Span.End)
			return nil, errors.AddContext(err, errors.CtxPath, path)
		}
	}
	return out, nil
}

// MaterializeAll runs Materialize for every file on a bounded pool.
func MaterializeAll(ctx context.Context, plans map[string][]Edit, workers int) (map[string][]Edit, error) {
	start := time.Now()
	defer func() {
		observability.StageDuration.WithLabelValues("materialize").Observe(time.Since(start).Seconds())
	}()

	paths := util.SortedKeys(plans)
	results := make([][]Edit, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			edits, err := Materialize(path, plans[path])
			results[i] = edits
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string][]Edit, len(paths))
	for i, path := range paths {
		out[path] = results[i]
	}
	return out, nil
}

// Apply writes materialized edits over src.
func Apply(src []byte, edits []Edit) []byte {
	var buf bytes.Buffer
	buf.Grow(len(src))
	last := 0
	for _, e := range edits {
		buf.Write(src[last:e.Span.Start])
		buf.WriteString(e.Text)
		last = e.Span.End
	}
	buf.Write(src[last:])
	return buf.Bytes()
}

// UnifiedDiff renders a git-style diff; before or after may be nil for
// created or deleted files.
func UnifiedDiff(fromPath, toPath string, before, after []byte) (string, error) {
	if bytes.Equal(before, after) && fromPath == toPath {
		return "", nil
	}
	diff := difflib.UnifiedDiff{
		A:        splitLines(before),
		B:        splitLines(after),
		FromFile: "a/" + fromPath,
		ToFile:   "b/" + toPath,
		Context:  3,
	}
	if before == nil {
		diff.FromFile = "/dev/null"
	}
	if after == nil {
		diff.ToFile = "/dev/null"
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "render diff")
	}
	if text == "" && fromPath != toPath {
		text = "rename from " + fromPath + "\nrename to " + toPath + "\n"
	}
	return text, nil
}

func splitLines(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	lines := difflib.SplitLines(string(b))
	// SplitLines appends a newline to the final fragment; drop the empty
	// line it yields when b already ends in one.
	if bytes.HasSuffix(b, []byte("\n")) {
		lines = lines[:len(lines)-1]
	}
	return lines
}
