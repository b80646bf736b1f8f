// Package report renders the outcome of a move run for people: a styled
// diagnostics listing for the terminal and a markdown summary file.
package report

import (
	"fmt"
	"io"
	"strings"

	"relocate/internal/core/ports"
	"relocate/internal/engine/move"

	"github.com/charmbracelet/lipgloss"
)

// Printer writes styled output. Styles degrade to plain text when the
// writer is not a terminal.
type Printer struct {
	w       io.Writer
	title   lipgloss.Style
	err     lipgloss.Style
	warning lipgloss.Style
	info    lipgloss.Style
	success lipgloss.Style
	pos     lipgloss.Style
}

func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:       w,
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#3B82F6")),
		err:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("#F87171")),
		warning: r.NewStyle().Foreground(lipgloss.Color("#FBBF24")),
		info:    r.NewStyle().Foreground(lipgloss.Color("#9CA3AF")),
		success: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981")),
		pos:     r.NewStyle().Faint(true),
	}
}

func (p *Printer) kindStyle(s move.Severity) lipgloss.Style {
	switch s {
	case move.SeverityError:
		return p.err
	case move.SeverityWarning:
		return p.warning
	}
	return p.info
}

// Diagnostics prints one line per diagnostic: file:line:col kind message.
func (p *Printer) Diagnostics(diags []move.Diagnostic) {
	for _, d := range diags {
		var b strings.Builder
		if pos := position(d); pos != "" {
			b.WriteString(p.pos.Render(pos))
			b.WriteByte(' ')
		}
		b.WriteString(p.kindStyle(d.Severity).Render(string(d.Kind)))
		b.WriteByte(' ')
		b.WriteString(d.Message)
		fmt.Fprintln(p.w, b.String())
	}
}

// Summary prints what the run did, or would do on a dry run.
func (p *Printer) Summary(res *ports.MoveResult, dryRun bool) {
	verb := "changed"
	if dryRun {
		verb = "would change"
	}
	fmt.Fprintln(p.w, p.title.Render("relocate"))
	for _, m := range res.Moves {
		fmt.Fprintf(p.w, "  %s\n", m.String())
	}
	for _, fm := range res.FileMoves {
		fmt.Fprintf(p.w, "  %s -> %s\n", fm.From, fm.To)
	}
	for _, path := range res.FileRemovals {
		fmt.Fprintf(p.w, "  %s removed\n", path)
	}

	errs, warns := countSeverities(res.Diagnostics)
	status := p.success.Render(fmt.Sprintf("%d files %s", len(res.FilesChanged), verb))
	if errs > 0 {
		status = p.err.Render(fmt.Sprintf("%d files %s, %d errors", len(res.FilesChanged), verb, errs))
	}
	if warns > 0 {
		status += " " + p.warning.Render(fmt.Sprintf("(%d warnings)", warns))
	}
	fmt.Fprintln(p.w, status)
}

func position(d move.Diagnostic) string {
	if d.Location.File == "" {
		return ""
	}
	if d.Location.Line == 0 {
		return d.Location.File
	}
	return fmt.Sprintf("%s:%d:%d", d.Location.File, d.Location.Line, d.Location.Column)
}

func countSeverities(diags []move.Diagnostic) (errs, warns int) {
	for _, d := range diags {
		switch d.Severity {
		case move.SeverityError:
			errs++
		case move.SeverityWarning:
			warns++
		}
	}
	return errs, warns
}
