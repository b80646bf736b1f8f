// Package move holds the values that flow between the detector, the planner
// and the command layer: move specifications and diagnostics.
package move

import (
	"fmt"
	"sort"

	"relocate/internal/engine/parser"
)

type Kind int

const (
	KindModule Kind = iota
	KindSymbol
)

func (k Kind) String() string {
	if k == KindSymbol {
		return "symbol"
	}
	return "module"
}

// Alias modes. Any other non-empty alias is a literal local name.
const (
	AliasAuto     = "auto"
	AliasFrom     = "from"
	AliasNone     = "none"
	AliasRelative = "relative"
)

// Spec moves one symbol or module. Source and Destination are fully
// qualified dotted paths.
type Spec struct {
	ID          int
	Source      string
	Destination string
	Kind        Kind
	Alias       string
	Automove    bool
}

func (s Spec) String() string {
	return fmt.Sprintf("%s %s -> %s", s.Kind, s.Source, s.Destination)
}

// AliasMode normalizes an empty alias to AliasAuto.
func (s Spec) AliasMode() string {
	if s.Alias == "" {
		return AliasAuto
	}
	return s.Alias
}

type DiagnosticKind string

const (
	ParseError          DiagnosticKind = "ParseError"
	UnresolvedReference DiagnosticKind = "UnresolvedReference"
	PossibleImplicitUse DiagnosticKind = "PossibleImplicitUse"
	DestinationConflict DiagnosticKind = "DestinationConflict"
	BatchCollision      DiagnosticKind = "BatchCollision"
	WildcardAmbiguity   DiagnosticKind = "WildcardAmbiguity"
	InvalidMove         DiagnosticKind = "InvalidMove"
	ImportAliasConflict DiagnosticKind = "ImportAliasConflict"
	StringReference     DiagnosticKind = "StringReference"
	KeptImport          DiagnosticKind = "KeptImport"
)

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	}
	return "info"
}

var severities = map[DiagnosticKind]Severity{
	ParseError:          SeverityWarning,
	UnresolvedReference: SeverityInfo,
	PossibleImplicitUse: SeverityError,
	DestinationConflict: SeverityError,
	BatchCollision:      SeverityError,
	WildcardAmbiguity:   SeverityError,
	InvalidMove:         SeverityError,
	ImportAliasConflict: SeverityWarning,
	StringReference:     SeverityWarning,
	KeptImport:          SeverityInfo,
}

type Diagnostic struct {
	Kind     DiagnosticKind
	Severity Severity
	Location parser.Location
	Message  string
	// MoveID is the Spec.ID the diagnostic is about, or -1.
	MoveID int
}

func NewDiagnostic(kind DiagnosticKind, loc parser.Location, moveID int, format string, args ...any) Diagnostic {
	return Diagnostic{
		Kind:     kind,
		Severity: severities[kind],
		Location: loc,
		Message:  fmt.Sprintf(format, args...),
		MoveID:   moveID,
	}
}

func (d Diagnostic) String() string {
	pos := d.Location.File
	if pos != "" && d.Location.Line > 0 {
		pos = fmt.Sprintf("%s:%d:%d", pos, d.Location.Line, d.Location.Column)
	}
	if pos == "" {
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", pos, d.Kind, d.Message)
}

// Failing reports whether any diagnostic should produce a non-zero exit.
func Failing(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// SortDiagnostics orders by file, position, then kind.
func SortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.Location.File != b.Location.File {
			return a.Location.File < b.Location.File
		}
		if a.Location.Line != b.Location.Line {
			return a.Location.Line < b.Location.Line
		}
		if a.Location.Column != b.Location.Column {
			return a.Location.Column < b.Location.Column
		}
		return a.Kind < b.Kind
	})
}
