package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"relocate/internal/core/ports"
	"relocate/internal/shared/util"
)

// WriteMarkdown writes a run summary to filePath, replacing it atomically.
func WriteMarkdown(filePath string, res *ports.MoveResult) error {
	if err := util.EnsureParentDir(filePath); err != nil {
		return fmt.Errorf("create report dir for %q: %w", filePath, err)
	}

	dir := filepath.Dir(filePath)
	tmp, err := os.CreateTemp(dir, ".relocate-report-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", filePath, err)
	}
	tmpName := tmp.Name()

	writeErr := error(nil)
	if _, err := tmp.WriteString(Markdown(res)); err != nil {
		writeErr = fmt.Errorf("write temp report file %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil && writeErr == nil {
		writeErr = fmt.Errorf("close temp report file %q: %w", tmpName, err)
	}
	if writeErr != nil {
		_ = os.Remove(tmpName)
		return writeErr
	}

	if err := os.Rename(tmpName, filePath); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace report file %q: %w", filePath, err)
	}
	return nil
}

func Markdown(res *ports.MoveResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# relocate run %s\n\n", res.RunID)

	b.WriteString("## Moves\n\n")
	if len(res.Moves) == 0 {
		b.WriteString("None.\n")
	}
	for _, m := range res.Moves {
		fmt.Fprintf(&b, "- `%s` -> `%s` (%s)\n", m.Source, m.Destination, m.Kind)
	}

	if len(res.FileMoves) > 0 {
		b.WriteString("\n## File moves\n\n")
		for _, fm := range res.FileMoves {
			fmt.Fprintf(&b, "- `%s` -> `%s`\n", fm.From, fm.To)
		}
	}
	if len(res.FileRemovals) > 0 {
		b.WriteString("\n## Removed files\n\n")
		for _, path := range res.FileRemovals {
			fmt.Fprintf(&b, "- `%s`\n", path)
		}
	}

	fmt.Fprintf(&b, "\n## Files changed (%d)\n\n", len(res.FilesChanged))
	for _, f := range res.FilesChanged {
		fmt.Fprintf(&b, "- `%s`\n", f)
	}

	if len(res.Diagnostics) > 0 {
		b.WriteString("\n## Diagnostics\n\n")
		b.WriteString("| Location | Kind | Severity | Message |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, d := range res.Diagnostics {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", position(d), d.Kind, d.Severity, escapeCell(d.Message))
		}
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}
