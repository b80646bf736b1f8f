package app

import (
	"path"
	"strings"

	"relocate/internal/core/errors"
	"relocate/internal/engine/index"
	"relocate/internal/engine/move"
	"relocate/internal/shared/util"
)

type nameKind int

const (
	kindUnknown nameKind = iota
	kindSymbol
	kindModule
	kindPackage
)

func (k nameKind) String() string {
	switch k {
	case kindSymbol:
		return "symbol"
	case kindModule:
		return "module"
	case kindPackage:
		return "package"
	}
	return "unknown"
}

// Expand turns command-line sources and a destination into move specs.
// Arguments are dotted names, .py paths or directories relative to the
// project root. A package becomes one module spec covering everything
// under it. Occupied and duplicate destinations are left for the detector,
// which drops only the affected spec.
func Expand(idx *index.Index, sources []string, dest, alias string, automove bool) ([]move.Spec, error) {
	if len(sources) == 0 {
		return nil, errors.New(errors.CodeValidationError, "at least one source is required")
	}
	newName, newKind, err := classify(idx, dest)
	if err != nil {
		return nil, err
	}

	specs := make([]move.Spec, 0, len(sources))
	for _, src := range sources {
		oldName, oldKind, err := classify(idx, src)
		if err != nil {
			return nil, err
		}
		spec, err := expandOne(idx, oldName, oldKind, newName, newKind)
		if err != nil {
			return nil, errors.AddContext(err, errors.CtxOperation, src+" -> "+dest)
		}
		spec.ID = len(specs)
		spec.Alias = alias
		spec.Automove = automove
		specs = append(specs, spec)
	}
	return specs, nil
}

func expandOne(idx *index.Index, oldName string, oldKind nameKind, newName string, newKind nameKind) (move.Spec, error) {
	if oldName == newName {
		return move.Spec{}, errors.Newf(errors.CodeValidationError, "cannot move %s to itself", oldName)
	}
	if oldKind != kindUnknown && !idx.Exists(oldName) {
		return move.Spec{}, errors.Newf(errors.CodeNotFound, "cannot move %s: no such %s", oldName, oldKind)
	}
	tail := util.DottedTail(oldName)

	switch oldKind {
	case kindSymbol:
		spec := move.Spec{Source: oldName, Kind: move.KindSymbol}
		switch newKind {
		case kindSymbol:
			spec.Destination = newName
		case kindModule:
			spec.Destination = util.DottedJoin(newName, tail)
		case kindPackage:
			return move.Spec{}, errors.Newf(errors.CodeValidationError, "cannot move symbol %s to a package (%s)", oldName, newName)
		default:
			// A new name without a dot cannot be a symbol, so it names a module.
			spec.Destination = newName
			if !strings.Contains(newName, ".") {
				spec.Destination = util.DottedJoin(newName, tail)
			}
		}
		return spec, nil

	case kindModule:
		spec := move.Spec{Source: oldName, Kind: move.KindModule}
		switch newKind {
		case kindSymbol:
			return move.Spec{}, errors.Newf(errors.CodeValidationError, "cannot move module %s to a symbol (%s)", oldName, newName)
		case kindModule:
			spec.Destination = newName
		case kindPackage:
			spec.Destination = util.DottedJoin(newName, tail)
		default:
			spec.Destination = newName
		}
		return spec, nil

	case kindPackage:
		spec := move.Spec{Source: oldName, Kind: move.KindModule, Destination: newName}
		switch newKind {
		case kindSymbol, kindModule:
			return move.Spec{}, errors.Newf(errors.CodeValidationError, "cannot move package %s into a %s (%s)", oldName, newKind, newName)
		case kindPackage:
			if util.DottedHasPrefix(newName, oldName) {
				return move.Spec{}, errors.Newf(errors.CodeValidationError, "cannot move package %s into its own subpackage %s", oldName, newName)
			}
			// mv semantics: an existing package receives the moved one.
			if idx.Module(newName) == nil {
				break
			}
			spec.Destination = util.DottedJoin(newName, tail)
		}
		return spec, nil
	}
	return move.Spec{}, errors.Newf(errors.CodeNotFound, "cannot figure out what %s is: no module, package or symbol by that name", oldName)
}

// classify normalizes an argument to a dotted name and tells what it names.
func classify(idx *index.Index, arg string) (string, nameKind, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", kindUnknown, errors.New(errors.CodeValidationError, "empty module or symbol name")
	}

	if strings.HasSuffix(arg, ".py") || util.HasSeparator(arg) {
		rel := util.CleanPath(arg)
		file := rel
		if !strings.HasSuffix(rel, ".py") {
			file = path.Join(rel, "__init__.py")
		}
		name, _, ok := idx.Namer.ModuleName(file)
		if !ok {
			return "", kindUnknown, errors.AddContext(
				errors.New(errors.CodeValidationError, "path is not a python module under a source root"), errors.CtxPath, arg)
		}
		if !strings.HasSuffix(rel, ".py") || path.Base(rel) == "__init__.py" {
			return name, kindPackage, nil
		}
		return name, kindModule, nil
	}

	if mod := idx.Module(arg); mod != nil {
		if mod.IsPackage || mod.File == nil {
			return arg, kindPackage, nil
		}
		return arg, kindModule, nil
	}
	if idx.IsSymbol(arg) {
		return arg, kindSymbol, nil
	}
	// foo.bar with foo a package names a new module; with foo a module, a
	// new symbol.
	if parent := util.DottedParent(arg); parent != "" {
		if mod := idx.Module(parent); mod != nil {
			if mod.IsPackage || mod.File == nil {
				return arg, kindModule, nil
			}
			return arg, kindSymbol, nil
		}
	}
	return arg, kindUnknown, nil
}
