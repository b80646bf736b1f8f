package parser

import (
	"time"
)

// Span is a half-open byte range [Start, End) into a file's source.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int { return s.End - s.Start }

func (s Span) IsZero() bool { return s.Start == 0 && s.End == 0 }

// Contains reports whether o lies entirely within s.
func (s Span) Contains(o Span) bool { return s.Start <= o.Start && o.End <= s.End }

// Overlaps reports whether s and o share at least one byte.
// Two empty spans at the same offset also overlap.
func (s Span) Overlaps(o Span) bool {
	if s.Len() == 0 && o.Len() == 0 {
		return s.Start == o.Start
	}
	return s.Start < o.End && o.Start < s.End
}

type Location struct {
	File   string
	Line   int
	Column int
}

type File struct {
	Path        string
	Language    string
	Source      []byte
	LineEnding  string
	Definitions []Definition
	Imports     []ImportStatement
	Usages      []Usage
	// Scopes[0] is always the module scope.
	Scopes   []Scope
	Literals []Literal
	// HeaderEnd is the offset just past leading comments and the module docstring.
	HeaderEnd int
	ParsedAt  time.Time
}

type DefinitionKind int

const (
	KindFunction DefinitionKind = iota
	KindClass
	KindConstant
)

func (k DefinitionKind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindClass:
		return "class"
	case KindConstant:
		return "constant"
	}
	return "unknown"
}

// Definition is a top-level, independently movable definition.
type Definition struct {
	Name     string
	Kind     DefinitionKind
	Location Location
	NameSpan Span
	// Span covers the definition node including decorators.
	Span Span
	// Region covers whole lines: leading comments, the definition and its newline.
	Region Span
}

type ImportKind int

const (
	// ImportModule is `import a.b [as c]`.
	ImportModule ImportKind = iota
	// ImportFrom is `from a import b [as c]`, absolute or relative.
	ImportFrom
	// ImportFuture is `from __future__ import x`; never a move target.
	ImportFuture
)

type ImportStatement struct {
	Kind ImportKind
	// Module is the dotted source of a from-import, without leading dots.
	Module     string
	Level      int
	ModuleSpan Span
	Clauses    []ImportClause
	Wildcard   bool
	Span       Span
	// Lines covers the full lines of the statement when nothing else shares them.
	Lines    Span
	OwnLines bool
	// LineText is the source of the statement's lines, trailing comments included.
	LineText string
	Indent   string
	Scope    int
	Toplevel bool
	Location Location
}

// IsRelative reports whether the statement uses a parent-level count.
func (s ImportStatement) IsRelative() bool { return s.Level > 0 }

type ImportClause struct {
	// Name is the dotted name as written.
	Name  string
	Alias string
	Span  Span
	// RemovalSpan covers the clause and one separating comma.
	RemovalSpan Span
	Location    Location
}

// LocalName is the name the clause binds in its scope. For an unaliased
// `import a.b` this is the dotted "a.b", whose root "a" is the actual binding.
func (c ImportClause) LocalName() string {
	if c.Alias != "" {
		return c.Alias
	}
	return c.Name
}

// Usage is a bare name or dotted attribute chain in code position.
type Usage struct {
	Chain []string
	// Spans[i] runs from the start of Chain[0] to the end of Chain[i].
	Spans    []Span
	Scope    int
	Location Location
}

// PrefixSpan returns the span of the first n segments.
func (u Usage) PrefixSpan(n int) Span {
	return u.Spans[n-1]
}

func (u Usage) Span() Span {
	return u.Spans[len(u.Spans)-1]
}

type ScopeKind int

const (
	ScopeModule ScopeKind = iota
	ScopeFunction
	ScopeClass
	ScopeComprehension
)

type Scope struct {
	Kind     ScopeKind
	Parent   int
	Span     Span
	Bindings map[string]bool
	Globals  map[string]bool
}

// Literal is the text of a string literal or comment.
type Literal struct {
	Text     string
	Span     Span
	Comment  bool
	Location Location
}
