package resolver

import (
	"strings"

	"relocate/internal/engine/index"
	"relocate/internal/engine/parser"
)

// Path is how a usage site reached its target.
type Path int

const (
	// Unresolved usages are never rewritten.
	Unresolved Path = iota
	// Explicit usages go through an import or definition in the same file.
	Explicit
	// Implicit usages only work because some other file imported the
	// submodule into the shared package object.
	Implicit
)

func (p Path) String() string {
	switch p {
	case Explicit:
		return "explicit"
	case Implicit:
		return "implicit"
	}
	return "unresolved"
}

// Cause qualifies an unresolved usage.
type Cause int

const (
	CauseNone Cause = iota
	// CauseExternal: bound by an import of something outside the project.
	CauseExternal
	// CauseLocal: a local variable, parameter or other non-import binding.
	CauseLocal
	// CauseWildcard: unbound, but a star import is in scope.
	CauseWildcard
	// CauseNotLoaded: reaches a project submodule nothing ever imports.
	CauseNotLoaded
	// CauseUnknown: unbound name, usually a builtin.
	CauseUnknown
)

func (c Cause) String() string {
	switch c {
	case CauseExternal:
		return "external"
	case CauseLocal:
		return "local"
	case CauseWildcard:
		return "wildcard"
	case CauseNotLoaded:
		return "not-loaded"
	case CauseUnknown:
		return "unknown"
	}
	return ""
}

type BindingKind int

const (
	BindNone BindingKind = iota
	BindImport
	BindSymbol
)

// Binding is what the first segments of a chain were bound by.
type Binding struct {
	Kind BindingKind
	// Statement and Clause index File.Imports for BindImport.
	Statement int
	Clause    int
	// Segments is how many leading chain segments the binding spells.
	Segments int
	// Target is the dotted path those segments denote.
	Target string
}

// Reference is a usage site paired with what it denotes.
type Reference struct {
	Usage int
	Chain []string
	// Target is the longest project module or symbol the chain spells, or ""
	// when it leaves the project.
	Target string
	// TargetSegments is how many chain segments spell Target.
	TargetSegments int
	Path           Path
	Cause          Cause
	Binding        Binding
	// Wildcards lists the absolute modules of star imports in scope.
	Wildcards []string
}

// Dotted returns the chain joined with dots.
func (r Reference) Dotted() string {
	return strings.Join(r.Chain, ".")
}

// FileResult holds one Reference per usage, in File.Usages order.
type FileResult struct {
	Module *index.Module
	Refs   []Reference
	// Loaded is every module this file's own imports load, plus the file's
	// module and their parents.
	Loaded map[string]bool
}

// Usage returns the usage site a reference was built from.
func (fr *FileResult) Usage(ref Reference) parser.Usage {
	return fr.Module.File.Usages[ref.Usage]
}

// Result maps filenames to their resolved references.
type Result struct {
	Files map[string]*FileResult
}

func (r *Result) File(path string) *FileResult {
	return r.Files[path]
}
