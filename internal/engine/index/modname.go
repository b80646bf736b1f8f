package index

import (
	"path"
	"sort"
	"strings"

	"relocate/internal/shared/util"
)

// ModuleNamer maps project-relative file paths to dotted module paths.
type ModuleNamer struct {
	roots []string
}

// NewModuleNamer takes source roots relative to the project root; "." or ""
// is the project root itself. Longer roots win.
func NewModuleNamer(roots []string) *ModuleNamer {
	normalized := make([]string, 0, len(roots))
	for _, r := range roots {
		normalized = append(normalized, util.CleanPath(r))
	}
	if len(normalized) == 0 {
		normalized = append(normalized, "")
	}
	sort.Slice(normalized, func(i, j int) bool { return len(normalized[i]) > len(normalized[j]) })
	return &ModuleNamer{roots: normalized}
}

// ModuleName returns the dotted module for a .py path and whether it is a
// package (__init__.py).
func (n *ModuleNamer) ModuleName(relPath string) (name string, isPackage bool, ok bool) {
	p := util.CleanPath(relPath)
	if !strings.HasSuffix(p, ".py") {
		return "", false, false
	}
	rel, found := n.relative(p)
	if !found {
		return "", false, false
	}
	rel = strings.TrimSuffix(rel, ".py")
	if path.Base(rel) == "__init__" {
		isPackage = true
		rel = path.Dir(rel)
		if rel == "." {
			return "", false, false
		}
	}
	for _, seg := range strings.Split(rel, "/") {
		if !isIdentifier(seg) {
			return "", false, false
		}
	}
	return strings.ReplaceAll(rel, "/", "."), isPackage, true
}

// Filename returns the project-relative path for a module under the first
// source root that contains it. Used for modules that do not exist yet.
func (n *ModuleNamer) Filename(module string, isPackage bool) string {
	rel := strings.ReplaceAll(module, ".", "/")
	if isPackage {
		rel += "/__init__.py"
	} else {
		rel += ".py"
	}
	return path.Join(n.primaryRoot(), rel)
}

func (n *ModuleNamer) primaryRoot() string {
	// The shortest root is the most general one.
	return n.roots[len(n.roots)-1]
}

func (n *ModuleNamer) relative(p string) (string, bool) {
	for _, root := range n.roots {
		if root == "" {
			return p, true
		}
		if util.UnderDir(p, root) && p != root {
			return strings.TrimPrefix(p, root+"/"), true
		}
	}
	return "", false
}

func isIdentifier(value string) bool {
	if value == "" {
		return false
	}
	for i, r := range value {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r > 127:
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// ResolveRelative applies a from-import's parent-level count. For a package
// the starting point is the package itself.
func ResolveRelative(module string, isPackage bool, level int, target string) (string, bool) {
	if level <= 0 {
		return target, true
	}
	pkg := module
	if !isPackage {
		pkg = util.DottedParent(module)
	}
	for i := 1; i < level; i++ {
		if pkg == "" {
			return "", false
		}
		pkg = util.DottedParent(pkg)
	}
	joined := util.DottedJoin(pkg, target)
	return joined, joined != ""
}
